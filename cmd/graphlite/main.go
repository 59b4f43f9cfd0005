// Package main provides the GraphLite CLI entry point.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphlite-db/graphlite/pkg/auth"
	"github.com/graphlite-db/graphlite/pkg/config"
	"github.com/graphlite-db/graphlite/pkg/coordinator"
	"github.com/graphlite-db/graphlite/pkg/session"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphlite",
		Short: "GraphLite - an embedded property-graph database",
		Long: `GraphLite is an embedded property-graph database with a GQL-like
query language, a cost-aware query planner, a pipelined execution engine,
and a write-ahead log for crash recovery.

It is a library first: this CLI opens a database directory and gives you
a REPL and one-shot query runner over the same pkg/coordinator surface an
embedding application would use directly.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphlite v%s\n", version)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new GraphLite database directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Database directory")
	rootCmd.AddCommand(initCmd)

	queryCmd := &cobra.Command{
		Use:   "query [statement]",
		Short: "Execute a single GQL statement and print the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("data-dir", "./data", "Database directory")
	queryCmd.Flags().String("config", "", "Path to a YAML config file (overrides --data-dir)")
	queryCmd.Flags().String("username", "cli", "Session username")
	rootCmd.AddCommand(queryCmd)

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive GQL shell",
		RunE:  runShell,
	}
	shellCmd.Flags().String("data-dir", "./data", "Database directory")
	shellCmd.Flags().String("config", "", "Path to a YAML config file (overrides --data-dir)")
	shellCmd.Flags().String("username", "cli", "Session username")
	rootCmd.AddCommand(shellCmd)

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login-capable users",
	}
	createUserCmd := &cobra.Command{
		Use:   "create [username] [password]",
		Short: "Create a login-capable user",
		Args:  cobra.ExactArgs(2),
		RunE:  runUserCreate,
	}
	createUserCmd.Flags().String("data-dir", "./data", "Database directory")
	createUserCmd.Flags().String("role", "viewer", "Role: admin, editor, or viewer")
	userCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(userCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openCoordinator resolves --config/--data-dir into an open Coordinator:
// an explicit config file wins, otherwise the default config with the
// --data-dir flag is used.
func openCoordinator(cmd *cobra.Command) (*coordinator.Coordinator, *config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.Default()
		cfg.Database.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := coordinator.FromPath(cfg.Database.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

// newCLISession creates a session scoped to cfg's default schema/graph, so
// a query or shell command has a current graph to run against without
// first issuing a `SESSION SET GRAPH` statement.
func newCLISession(c *coordinator.Coordinator, cfg *config.Config, username string) *session.Session {
	sess := c.CreateSimpleSession(username)
	if cfg.Database.DefaultSchema != "" {
		sess.SetSchema(cfg.Database.DefaultSchema)
	}
	if cfg.Database.DefaultGraph != "" {
		sess.SetGraph(cfg.Database.DefaultGraph)
	}
	return sess
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("Initializing GraphLite database in %s\n", dataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	cfg := config.Default()
	cfg.Database.DataDir = dataDir
	configPath := filepath.Join(dataDir, "graphlite.yaml")
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	c, err := coordinator.FromPath(dataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer c.Close()

	fmt.Println("Database initialized successfully")
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Open a shell:  graphlite shell --data-dir %s\n", dataDir)
	fmt.Printf("  2. Run a query:   graphlite query --data-dir %s \"MATCH (n) RETURN n LIMIT 5\"\n", dataDir)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, cfg, err := openCoordinator(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	username, _ := cmd.Flags().GetString("username")
	sess := newCLISession(c, cfg, username)
	defer c.CloseSession(sess.ID)

	result, err := c.ProcessQuery(sess, args[0])
	if err != nil {
		return err
	}
	printResult(os.Stdout, result)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	c, cfg, err := openCoordinator(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	username, _ := cmd.Flags().GetString("username")
	sess := newCLISession(c, cfg, username)
	defer c.CloseSession(sess.ID)

	fmt.Println("GraphLite interactive shell. Type 'exit' or Ctrl+D to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Print("graphlite> ")
		} else {
			fmt.Print("       ... ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}
		if trimmed == "" {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte(' ')
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}
		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()

		result, err := c.ProcessQuery(sess, stmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResult(os.Stdout, result)
	}
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username, password := args[0], args[1]
	roleName, _ := cmd.Flags().GetString("role")
	role, err := auth.RoleFromString(roleName)
	if err != nil {
		return err
	}

	c, _, err := openCoordinator(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	user, err := c.CreateUser(username, password, []auth.Role{role})
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	fmt.Printf("Created user %q with role %s\n", user.Username, roleName)
	return nil
}

func printResult(w *os.File, result *coordinator.QueryResult) {
	if len(result.Rows) == 0 {
		if result.RowsAffected > 0 {
			fmt.Fprintf(w, "%d row(s) affected (%s)\n", result.RowsAffected, result.ExecutionTime)
		} else {
			fmt.Fprintf(w, "(no rows) (%s)\n", result.ExecutionTime)
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
		return
	}

	keys := make(map[string]struct{})
	for _, row := range result.Rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	fmt.Fprintln(w, strings.Join(columns, " | "))
	for _, row := range result.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok {
				cells[i] = v.String()
			}
		}
		fmt.Fprintln(w, strings.Join(cells, " | "))
	}
	fmt.Fprintf(w, "(%d row(s), %s)\n", len(result.Rows), result.ExecutionTime)
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

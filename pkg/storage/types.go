// Package storage implements GraphLite's storage engine: the in-memory
// property-graph representation the executor mutates during a statement,
// and the storage facade that persists whole-graph blobs and catalog
// provider blobs to disk.
//
// Design follows the teacher's property-graph model (pkg/storage/types.go,
// pkg/storage/memory.go in the example pack): strongly-typed NodeID/EdgeID,
// a thread-safe in-memory engine, and a pluggable facade in front of it.
//
// Example:
//
//	g := storage.NewGraph("main/social")
//	n := &storage.Node{ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Ada"}}
//	g.CreateNode(n)
package storage

import (
	"time"

	"github.com/graphlite-db/graphlite/pkg/errs"
)

// NodeID is a strongly-typed unique node identifier, content-hash-derived
// on INSERT per spec.md's node-identity invariant.
type NodeID string

// EdgeID is a strongly-typed unique edge identifier.
type EdgeID string

// Node is a graph vertex: a stable ID, an order-insensitive set of labels,
// and a property map. CreatedAt/UpdatedAt are bookkeeping fields outside
// the Value-typed property space; the executor does not set them.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HasLabel reports whether n carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Edge is a directed, single-labeled graph relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"start_node"`
	EndNode    NodeID         `json:"end_node"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Errors returned by the storage engine and facade. All but ErrInvalidEdge
// are graph-data names for pkg/errs sentinels (the same error values), so
// errors.Is matches either name; ErrInvalidEdge is a storage-kind
// *errs.GraphLiteError of its own.
var (
	ErrNodeNotFound    = errs.ErrNotFound
	ErrEdgeNotFound    = errs.ErrNotFound
	ErrNodeExists      = errs.ErrDuplicateEntry
	ErrEdgeExists      = errs.ErrDuplicateEntry
	ErrInvalidEdge     = errs.New(errs.KindStorage, "edge endpoint does not exist")
	ErrHasIncidentEdges = errs.ErrDetachRequired
)

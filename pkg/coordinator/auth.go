package coordinator

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/graphlite-db/graphlite/pkg/auth"
	"github.com/graphlite-db/graphlite/pkg/session"
)

// roleToPermissions maps an pkg/auth.Role onto the permission strings
// session.Session.HasPermission checks, grounded on
// original_source/graphlite/src/session/session.rs's permission set and
// the teacher's pkg/auth's Neo4j-style role names (admin/editor/viewer).
func roleToPermissions(roles []auth.Role) []string {
	for _, r := range roles {
		if r == auth.RoleAdmin {
			return []string{"All"}
		}
	}
	perms := make([]string, 0, len(roles)*2)
	for _, r := range roles {
		switch r {
		case auth.RoleEditor:
			perms = append(perms, "Read", "Write")
		case auth.RoleViewer:
			perms = append(perms, "Read")
		}
	}
	return perms
}

// newAuthenticator builds the coordinator's user/credential store. Security
// enforcement itself stays off by default (spec.md describes authentication
// as the embedding layer's concern, §6's CreateSimpleSession grants full
// access); Login below still goes through bcrypt verification and mints a
// real token whenever an application chooses to call it.
func newAuthenticator() (*auth.Authenticator, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("coordinator: generating auth secret: %w", err)
	}
	return auth.NewAuthenticator(auth.AuthConfig{
		JWTSecret:   secret,
		TokenExpiry: 24 * time.Hour,
	})
}

// CreateUser registers a login-capable user (bcrypt-hashed password) in
// pkg/auth's store only. The catalog's "security" provider user records,
// which CREATE/DROP USER manipulate, are a separate store; this method
// does not create or update a catalog user.
func (c *Coordinator) CreateUser(username, password string, roles []auth.Role) (*auth.User, error) {
	return c.authn.CreateUser(username, password, roles)
}

// Login verifies a username/password pair and, on success, mints both a
// bearer token (for callers embedding GraphLite behind their own network
// layer) and a live session scoped to the user's roles.
func (c *Coordinator) Login(username, password, ipAddress, userAgent string) (*auth.TokenResponse, *session.Session, error) {
	tok, user, err := c.authn.Authenticate(username, password, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}
	sess := c.CreateSession(username, stringRoles(user.Roles), roleToPermissions(user.Roles))
	return tok, sess, nil
}

func stringRoles(roles []auth.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

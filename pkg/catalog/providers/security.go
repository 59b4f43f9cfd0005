package providers

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

// PrincipalType discriminates User vs Role principals in an ACE.
type PrincipalType string

const (
	PrincipalUser PrincipalType = "User"
	PrincipalRole PrincipalType = "Role"
)

// User is a catalog principal record: password hash, enabled flag, and
// role set, grounded on
// original_source/graphlite/src/catalog/providers/security.rs's User.
type User struct {
	Name         string
	PasswordHash string // "" means no password set
	Enabled      bool
	Roles        map[string]struct{}
	Properties   map[string]string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// SetPassword stores the password using the exact "hash_"+password scheme
// the original implementation and spec.md both specify — deliberately not
// bcrypt (see DESIGN.md's Open Question resolution). The ambient pkg/auth
// package uses real bcrypt for its own, separate user store behind the
// coordinator's Login tokens.
func (u *User) SetPassword(password string) {
	u.PasswordHash = "hash_" + password
	u.ModifiedAt = time.Now()
}

// VerifyPassword checks password against the stored hash using the same
// "hash_"+password comparison.
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return u.PasswordHash == "hash_"+password
}

// RemoveRole removes a role from the user, refusing to remove the system
// "user" role (spec.md's invariant: "the user role cannot be revoked from
// any user").
func (u *User) RemoveRole(role string) error {
	if role == "user" {
		return errs.New(errs.KindCatalog, "cannot revoke system role 'user'").
			WithSubKind(string(errs.CatalogInvalidOperation))
	}
	delete(u.Roles, role)
	u.ModifiedAt = time.Now()
	return nil
}

// Role is a named permission bundle with optional parent roles (hierarchy
// reserved for future use, per the original's ROADMAP-gated
// add_parent_role/remove_parent_role — not exercised by any spec
// operation, so GraphLite keeps the fields but no traversal logic).
type Role struct {
	Name        string
	Description string
	ParentRoles map[string]struct{}
	Permissions map[string]struct{}
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// ACE is an access-control entry binding a principal to a resource path
// with a permission set and a grant/deny flag.
type ACE struct {
	ID            string
	PrincipalName string
	PrincipalType PrincipalType
	ResourcePath  string
	ResourceType  string
	Permissions   map[string]struct{}
	Granted       bool
	CreatedAt     time.Time
}

// SecurityProvider implements catalog.Provider for users, roles and ACEs.
type SecurityProvider struct {
	mu    sync.RWMutex
	users map[string]*User
	roles map[string]*Role
	aces  map[string]*ACE
}

func NewSecurityProvider() *SecurityProvider {
	return &SecurityProvider{
		users: make(map[string]*User),
		roles: make(map[string]*Role),
		aces:  make(map[string]*ACE),
	}
}

func (p *SecurityProvider) Name() string { return "security" }

// Init bootstraps the "user" and "admin" roles and an "admin" user holding
// both, on first use — mirroring SecurityCatalog::new.
func (p *SecurityProvider) Init(_ storage.Facade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.roles) > 0 || len(p.users) > 0 {
		return nil
	}
	now := time.Now()
	p.roles["user"] = &Role{Name: "user", Description: "Default user role for basic system access",
		ParentRoles: map[string]struct{}{}, Permissions: map[string]struct{}{}, CreatedAt: now, ModifiedAt: now}
	p.roles["admin"] = &Role{Name: "admin", Description: "Default administrator role with full system access",
		ParentRoles: map[string]struct{}{}, Permissions: map[string]struct{}{}, CreatedAt: now, ModifiedAt: now}
	p.users["admin"] = &User{
		Name: "admin", Enabled: true,
		Roles:      map[string]struct{}{"user": {}, "admin": {}},
		Properties: map[string]string{},
		CreatedAt:  now, ModifiedAt: now,
	}
	return nil
}

func (p *SecurityProvider) Execute(op catalog.Operation) (catalog.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch op.EntityType {
	case "user":
		return p.executeUser(op)
	case "role":
		return p.executeRole(op)
	case "ace":
		return p.executeACE(op)
	default:
		return catalog.NotSupported(), nil
	}
}

func (p *SecurityProvider) executeUser(op catalog.Operation) (catalog.Response, error) {
	switch op.Kind {
	case catalog.OpCreate:
		if _, exists := p.users[op.Name]; exists {
			return catalog.Response{}, errs.Duplicate("user", op.Name)
		}
		now := time.Now()
		u := &User{Name: op.Name, Enabled: true, Roles: map[string]struct{}{"user": {}}, Properties: map[string]string{}, CreatedAt: now, ModifiedAt: now}
		if enabled, ok := op.Params["enabled"].(bool); ok {
			u.Enabled = enabled
		}
		if pw, ok := op.Params["password"].(string); ok {
			u.SetPassword(pw)
		}
		if roles, ok := op.Params["roles"].([]string); ok {
			for _, r := range roles {
				u.Roles[r] = struct{}{}
			}
		}
		p.users[op.Name] = u
		return catalog.Success(map[string]any{"name": op.Name}), nil

	case catalog.OpDrop:
		if op.Name == "admin" {
			return catalog.Response{}, errs.New(errs.KindCatalog, "cannot drop the admin user").
				WithSubKind(string(errs.CatalogInvalidOperation))
		}
		if _, ok := p.users[op.Name]; !ok {
			return catalog.Response{}, errs.NotFound("user", op.Name)
		}
		delete(p.users, op.Name)
		return catalog.Success(nil), nil

	case catalog.OpUpdate:
		u, ok := p.users[op.Name]
		if !ok {
			return catalog.Response{}, errs.NotFound("user", op.Name)
		}
		for k, v := range op.Updates {
			switch k {
			case "password":
				if s, ok := v.(string); ok {
					u.SetPassword(s)
				}
			case "enabled":
				if b, ok := v.(bool); ok {
					u.Enabled = b
				}
			case "grant_role":
				if s, ok := v.(string); ok {
					u.Roles[s] = struct{}{}
				}
			case "revoke_role":
				if s, ok := v.(string); ok {
					if op.Name == "admin" && s == "admin" {
						return catalog.Response{}, errs.New(errs.KindCatalog,
							"cannot revoke the admin role from the admin user").
							WithSubKind(string(errs.CatalogInvalidOperation))
					}
					if err := u.RemoveRole(s); err != nil {
						return catalog.Response{}, err
					}
				}
			}
		}
		u.ModifiedAt = time.Now()
		return catalog.Success(map[string]any{"name": op.Name}), nil

	default:
		return catalog.NotSupported(), nil
	}
}

func (p *SecurityProvider) executeRole(op catalog.Operation) (catalog.Response, error) {
	switch op.Kind {
	case catalog.OpCreate:
		if _, exists := p.roles[op.Name]; exists {
			return catalog.Response{}, errs.Duplicate("role", op.Name)
		}
		now := time.Now()
		r := &Role{Name: op.Name, ParentRoles: map[string]struct{}{}, Permissions: map[string]struct{}{}, CreatedAt: now, ModifiedAt: now}
		if desc, ok := op.Params["description"].(string); ok {
			r.Description = desc
		}
		p.roles[op.Name] = r
		return catalog.Success(map[string]any{"name": op.Name}), nil

	case catalog.OpDrop:
		if op.Name == "user" || op.Name == "admin" {
			return catalog.Response{}, errs.New(errs.KindCatalog, "cannot drop a system role").
				WithSubKind(string(errs.CatalogInvalidOperation))
		}
		if _, ok := p.roles[op.Name]; !ok {
			return catalog.Response{}, errs.NotFound("role", op.Name)
		}
		if !op.Cascade {
			for _, u := range p.users {
				if _, has := u.Roles[op.Name]; has {
					return catalog.Response{}, errs.New(errs.KindCatalog,
						"role still referenced by a user; use cascade").
						WithSubKind(string(errs.CatalogInvalidOperation)).WithIdentifier(op.Name)
				}
			}
		} else {
			for _, u := range p.users {
				delete(u.Roles, op.Name)
			}
		}
		delete(p.roles, op.Name)
		return catalog.Success(nil), nil

	default:
		return catalog.NotSupported(), nil
	}
}

func (p *SecurityProvider) executeACE(op catalog.Operation) (catalog.Response, error) {
	switch op.Kind {
	case catalog.OpCreate:
		principalName, _ := op.Params["principal_name"].(string)
		if principalName == "" {
			return catalog.Response{}, errs.New(errs.KindCatalog, "missing principal_name").
				WithSubKind(string(errs.CatalogInvalidParameters))
		}
		resourcePath, _ := op.Params["resource_path"].(string)
		if resourcePath == "" {
			return catalog.Response{}, errs.New(errs.KindCatalog, "missing resource_path").
				WithSubKind(string(errs.CatalogInvalidParameters))
		}
		resourceType, _ := op.Params["resource_type"].(string)
		if resourceType == "" {
			resourceType = "catalog"
		}
		principalType := PrincipalUser
		if pt, ok := op.Params["principal_type"].(string); ok && pt == "role" {
			principalType = PrincipalRole
		}
		granted := true
		if g, ok := op.Params["granted"].(bool); ok {
			granted = g
		}
		perms := map[string]struct{}{}
		if list, ok := op.Params["permissions"].([]string); ok {
			for _, perm := range list {
				perms[perm] = struct{}{}
			}
		}
		id := fmt.Sprintf("%s:%s:%d", principalName, resourcePath, len(p.aces))
		p.aces[id] = &ACE{
			ID: id, PrincipalName: principalName, PrincipalType: principalType,
			ResourcePath: resourcePath, ResourceType: resourceType, Permissions: perms,
			Granted: granted, CreatedAt: time.Now(),
		}
		return catalog.Success(map[string]any{"id": id}), nil

	case catalog.OpDrop:
		if _, ok := p.aces[op.Name]; !ok {
			return catalog.Response{}, errs.NotFound("ace", op.Name)
		}
		delete(p.aces, op.Name)
		return catalog.Success(nil), nil

	default:
		return catalog.NotSupported(), nil
	}
}

func (p *SecurityProvider) ExecuteReadOnly(op catalog.Operation) (catalog.Response, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch op.Kind {
	case catalog.OpQuery:
		switch op.EntityType {
		case "user":
			u, ok := p.users[op.Name]
			if !ok {
				return catalog.Response{}, errs.NotFound("user", op.Name)
			}
			return catalog.QueryResp([]map[string]any{userToMap(u)}), nil
		case "role":
			r, ok := p.roles[op.Name]
			if !ok {
				return catalog.Response{}, errs.NotFound("role", op.Name)
			}
			return catalog.QueryResp([]map[string]any{roleToMap(r)}), nil
		case "authenticate":
			password, _ := op.Params["password"].(string)
			u, ok := p.users[op.Name]
			if !ok || !u.Enabled || !u.VerifyPassword(password) {
				return catalog.Response{}, errs.ErrAuthFailed
			}
			return catalog.Success(map[string]any{"name": u.Name, "roles": rolesSlice(u.Roles)}), nil
		default:
			return catalog.NotSupported(), nil
		}

	case catalog.OpList:
		var items []map[string]any
		switch op.EntityType {
		case "role":
			for _, r := range p.roles {
				items = append(items, roleToMap(r))
			}
		default:
			for _, u := range p.users {
				items = append(items, userToMap(u))
			}
		}
		return catalog.ListResp(items), nil
	default:
		return catalog.NotSupported(), nil
	}
}

func userToMap(u *User) map[string]any {
	return map[string]any{"name": u.Name, "enabled": u.Enabled, "roles": rolesSlice(u.Roles)}
}

func roleToMap(r *Role) map[string]any {
	return map[string]any{"name": r.Name, "description": r.Description}
}

func rolesSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	return out
}

type securityState struct {
	Users map[string]*User
	Roles map[string]*Role
	ACEs  map[string]*ACE
}

func (p *SecurityProvider) Save() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var buf bytes.Buffer
	state := securityState{Users: p.users, Roles: p.roles, ACEs: p.aces}
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("security provider: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *SecurityProvider) Load(blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var state securityState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&state); err != nil {
		return fmt.Errorf("security provider: decode: %w", err)
	}
	p.users, p.roles, p.aces = state.Users, state.Roles, state.ACEs
	return nil
}

func (p *SecurityProvider) Schema() map[string]any {
	return map[string]any{"entity": "security", "fields": []string{"user", "role", "ace"}}
}

func (p *SecurityProvider) SupportedOperations() []catalog.OpKind {
	return []catalog.OpKind{catalog.OpCreate, catalog.OpDrop, catalog.OpUpdate, catalog.OpQuery, catalog.OpList}
}

// Authenticate is a convenience wrapper the coordinator calls directly
// (bypassing the Operation envelope) for session creation.
func (p *SecurityProvider) Authenticate(username, password string) (*User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[username]
	if !ok || !u.Enabled || !u.VerifyPassword(password) {
		return nil, errs.ErrAuthFailed
	}
	return u, nil
}

// AcesForResource returns every ACE bound to the given resource path.
func (p *SecurityProvider) AcesForResource(path string) []*ACE {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*ACE
	for _, a := range p.aces {
		if a.ResourcePath == path {
			out = append(out, a)
		}
	}
	return out
}

// AcesForPrincipal returns every ACE bound to the given principal name.
func (p *SecurityProvider) AcesForPrincipal(name string) []*ACE {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*ACE
	for _, a := range p.aces {
		if a.PrincipalName == name {
			out = append(out, a)
		}
	}
	return out
}

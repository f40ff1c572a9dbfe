package keycloak

import (
	"context"
	"net/http"
	"sync"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// Permission is an operation on stored molecules.
type Permission string

const (
	PermMoleculeRead   Permission = "molecule:read"
	PermMoleculeWrite  Permission = "molecule:write"
	PermMoleculeDelete Permission = "molecule:delete"
)

// Role is a realm or client role name.
type Role string

const (
	RoleAdmin  Role = "molstruct_admin"
	RoleEditor Role = "molstruct_editor"
	RoleViewer Role = "molstruct_viewer"
)

// RolePermissionMapping maps roles to the permissions they grant.
type RolePermissionMapping map[Role][]Permission

// DefaultRolePermissionMapping grants viewers read, editors read and write,
// and admins everything.
func DefaultRolePermissionMapping() RolePermissionMapping {
	return RolePermissionMapping{
		RoleViewer: {PermMoleculeRead},
		RoleEditor: {PermMoleculeRead, PermMoleculeWrite},
		RoleAdmin:  {PermMoleculeRead, PermMoleculeWrite, PermMoleculeDelete},
	}
}

// Enforcer checks the roles in the request claims against a mapping.
type Enforcer struct {
	mu      sync.RWMutex
	mapping RolePermissionMapping
	logger  logging.Logger
}

// NewEnforcer creates an Enforcer.  A nil mapping uses the default.
func NewEnforcer(mapping RolePermissionMapping, logger logging.Logger) *Enforcer {
	if mapping == nil {
		mapping = DefaultRolePermissionMapping()
	}
	return &Enforcer{mapping: mapping, logger: logger}
}

// UpdateMapping swaps the mapping atomically.
func (e *Enforcer) UpdateMapping(mapping RolePermissionMapping) {
	e.mu.Lock()
	e.mapping = mapping
	e.mu.Unlock()
}

// HasPermission reports whether any role in ctx grants p.
func (e *Enforcer) HasPermission(ctx context.Context, p Permission) bool {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range claims.Roles {
		for _, granted := range e.mapping[Role(r)] {
			if granted == p {
				return true
			}
		}
	}
	return false
}

// Enforce returns an unauthorized error without claims and a forbidden
// error when no role grants p.
func (e *Enforcer) Enforce(ctx context.Context, p Permission) error {
	if _, ok := ClaimsFromContext(ctx); !ok {
		return errors.Unauthorized("no authentication context")
	}
	if !e.HasPermission(ctx, p) {
		return errors.Forbidden("access denied").WithDetail(string(p))
	}
	return nil
}

// Require is middleware enforcing p.
func (e *Enforcer) Require(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := e.Enforce(r.Context(), p); err != nil {
				sub, _ := SubjectFromContext(r.Context())
				e.logger.Info("permission denied",
					logging.String("subject", sub),
					logging.String("permission", string(p)),
					logging.String("path", r.URL.Path))
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

//Personal.AI order the ending

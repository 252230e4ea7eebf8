// Package authz decides which roles may perform privileged actions. Roles
// come from the profile flags; the role hierarchy and permissions live in an
// embedded casbin model and policy.
package authz

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"openstream/db"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Objects and actions named by the policy.
const (
	ObjVideos   = "videos"
	ObjSettings = "settings"
	ObjUsers    = "users"
	ObjStatus   = "status"

	ActModerate = "moderate"
	ActRead     = "read"
	ActWrite    = "write"
	ActManage   = "manage"
)

// Enforcer wraps a synced casbin enforcer loaded with the embedded policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether any of roles may perform act on obj.
func (e *Enforcer) Allowed(roles []string, obj, act string) (bool, error) {
	for _, role := range roles {
		ok, err := e.enforcer.Enforce(role, obj, act)
		if err != nil {
			return false, fmt.Errorf("enforcement failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ErrUnknownUser is returned by RolesOf for a user without a profile.
var ErrUnknownUser = errors.New("unknown user")

// RolesOf derives a user's roles from their profile flags.
func RolesOf(ctx context.Context, q db.Queryer, userID string) ([]string, error) {
	var isAdmin, isModerator bool
	err := q.QueryRowContext(ctx, `SELECT is_admin, is_moderator FROM profiles WHERE id = ?`, userID).
		Scan(&isAdmin, &isModerator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	roles := []string{RoleUser}
	if isModerator {
		roles = append(roles, RoleModerator)
	}
	if isAdmin {
		roles = append(roles, RoleAdmin)
	}
	return roles, nil
}

package rbac

import (
	"fmt"

	"github.com/ronittamrakar/xordon/internal/apperr"
)

// Engine answers allow/deny questions for (role, permission key) pairs.
// It is pure: no storage access, no side effects beyond the error returned
// by the Require variants. Role comes from an already-resolved tenant
// context; no permission check runs before tenant resolution completes.
type Engine struct {
	table Table
}

// NewEngine builds an engine over the given table. Passing nil uses the
// merged default table.
func NewEngine(table Table) *Engine {
	if table == nil {
		table = DefaultTable()
	}
	return &Engine{table: table}
}

// Has reports whether role meets the threshold for key.
func (e *Engine) Has(role Role, key string) bool {
	return role.Level() >= e.table.MinLevel(key)
}

// Require fails with ErrForbidden when role does not meet the threshold
// for key.
func (e *Engine) Require(role Role, key string) error {
	if !e.Has(role, key) {
		return fmt.Errorf("%w: missing permission %q", apperr.ErrForbidden, key)
	}
	return nil
}

// RequireAny passes when role holds at least one of keys.
func (e *Engine) RequireAny(role Role, keys ...string) error {
	for _, key := range keys {
		if e.Has(role, key) {
			return nil
		}
	}
	return fmt.Errorf("%w: missing all of permissions %v", apperr.ErrForbidden, keys)
}

// RequireAll passes only when role holds every one of keys.
func (e *Engine) RequireAll(role Role, keys ...string) error {
	for _, key := range keys {
		if err := e.Require(role, key); err != nil {
			return err
		}
	}
	return nil
}

// RequireRole fails with ErrForbidden when role ranks below min.
func (e *Engine) RequireRole(role Role, min Role) error {
	if !role.AtLeast(min) {
		return fmt.Errorf("%w: requires role %s or above", apperr.ErrForbidden, min)
	}
	return nil
}

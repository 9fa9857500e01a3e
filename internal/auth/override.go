package auth

// DevIdentityOverride is the development-only escape hatch that maps an
// absent or unknown token to a fixed fallback identity. It is a distinct
// strategy object, injected only when the deployment is a development
// one. Production wiring never constructs it, so the production code
// path has nothing to reach.
//
// Two independent conditions gate it: the environment must be a dev value
// AND the explicit opt-in flag must be set. Both are checked at
// construction and re-checked on every use; either missing means the
// override does not fire and an unresolved token stays unresolved.
type DevIdentityOverride struct {
	userID int64
	env    string
	optIn  bool
}

// NewDevIdentityOverride returns the override, or nil unless both gating
// conditions hold. Callers are expected to store the nil.
func NewDevIdentityOverride(env string, optIn bool, userID int64) *DevIdentityOverride {
	o := &DevIdentityOverride{userID: userID, env: env, optIn: optIn}
	if !o.Active() {
		return nil
	}
	return o
}

// Active re-verifies both gates. Called at every potential bypass site,
// not just at construction.
func (o *DevIdentityOverride) Active() bool {
	if o == nil {
		return false
	}
	return isDevEnv(o.env) && o.optIn
}

// UserID is the fixed fallback identity. Always the same user, never a
// guessed one, so bypassed requests stay consistent and traceable.
func (o *DevIdentityOverride) UserID() int64 {
	return o.userID
}

func isDevEnv(env string) bool {
	switch env {
	case "development", "dev", "local":
		return true
	}
	return false
}

package rbac

// Role is a workspace role from the closed set. Stored as its string form
// in workspace_members.role.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Level is the numeric rank used for threshold comparisons. Higher wins.
type Level int

const (
	LevelOwner   Level = 100
	LevelAdmin   Level = 80
	LevelManager Level = 60
	LevelMember  Level = 20
)

var roleLevels = map[Role]Level{
	RoleOwner:   LevelOwner,
	RoleAdmin:   LevelAdmin,
	RoleManager: LevelManager,
	RoleMember:  LevelMember,
}

// Level maps a role to its rank. An unknown role maps to 0, below every
// threshold in the table, so unrecognized roles can do nothing.
func (r Role) Level() Level {
	return roleLevels[r]
}

// Valid reports whether r is one of the closed set.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

package rbac

// Table maps a namespaced permission key to the minimum role level that
// may perform the action. There is exactly one table in the system; it is
// injected into the engine at construction so tests and future tenants can
// supply their own.
//
// Keys absent from the table resolve to LevelOwner. Default-deny: a typo
// in a permission key locks the action down to owners instead of opening
// it up.
type Table map[string]Level

// DefaultTable is the merged permission map. It reconciles the two tables
// the platform historically carried (the general RBAC table and the
// narrower HR/Growth table); where the two disagreed on a threshold for
// the same key, the stricter level won.
func DefaultTable() Table {
	return Table{
		// Contacts / CRM
		"contacts.view":   LevelMember,
		"contacts.create": LevelMember,
		"contacts.edit":   LevelMember,
		"contacts.delete": LevelManager,
		"contacts.export": LevelManager,
		"contacts.import": LevelManager,

		// Campaigns
		"campaigns.view":   LevelMember,
		"campaigns.create": LevelMember,
		"campaigns.edit":   LevelMember,
		"campaigns.send":   LevelManager,
		"campaigns.delete": LevelManager,

		// Templates
		"templates.view":   LevelMember,
		"templates.create": LevelMember,
		"templates.edit":   LevelMember,
		"templates.delete": LevelManager,

		// Tickets
		"tickets.view":   LevelMember,
		"tickets.create": LevelMember,
		"tickets.assign": LevelManager,
		"tickets.close":  LevelManager,
		"tickets.delete": LevelAdmin,

		// Invoices / billing documents
		"invoices.view":   LevelManager,
		"invoices.create": LevelManager,
		"invoices.edit":   LevelManager,
		"invoices.void":   LevelAdmin,
		"invoices.delete": LevelAdmin,

		// Analytics & reporting
		"analytics.view": LevelMember,
		"reports.view":   LevelManager,
		"reports.export": LevelManager,

		// HR / Growth. The HR table rated several of these looser than the
		// general table; the stricter threshold was kept.
		"hr.employees.view":   LevelManager,
		"hr.employees.manage": LevelAdmin,
		"hr.payroll.view":     LevelAdmin,
		"hr.payroll.run":      LevelOwner,
		"hr.shifts.view":      LevelMember,
		"hr.shifts.manage":    LevelManager,

		// Companies (sub-tenants)
		"companies.view":   LevelMember,
		"companies.switch": LevelMember,
		"companies.create": LevelAdmin,
		"companies.edit":   LevelAdmin,
		"companies.delete": LevelOwner,

		// Workspace administration
		"workspace.settings.view": LevelAdmin,
		"workspace.settings.edit": LevelAdmin,
		"workspace.branding.edit": LevelAdmin,
		"workspace.domains.edit":  LevelAdmin,
		"members.view":            LevelAdmin,
		"members.invite":          LevelAdmin,
		"members.remove":          LevelAdmin,
		"members.role.change":     LevelOwner,
		"billing.view":            LevelAdmin,
		"billing.manage":          LevelOwner,

		// Integrations & automation
		"integrations.view":   LevelManager,
		"integrations.manage": LevelAdmin,
		"automations.view":    LevelMember,
		"automations.manage":  LevelManager,
		"webhooks.manage":     LevelAdmin,
	}
}

// MinLevel returns the threshold for key, defaulting to LevelOwner for
// unknown keys.
func (t Table) MinLevel(key string) Level {
	if level, ok := t[key]; ok {
		return level
	}
	return LevelOwner
}

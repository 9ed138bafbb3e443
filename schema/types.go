package schema

// UserID identifies a user in the hosted backend.
type UserID string

// OrganizationID identifies an organization.
type OrganizationID string

// ApplicationID identifies an application.
type ApplicationID string

// VersionID identifies a version of an application.
type VersionID string

// EnvironmentID identifies a deployment environment.
type EnvironmentID string

// TabID identifies an open editor tab.
type TabID string

// Role names a role held on a scope (e.g. "Admin", "Member").
type Role string

// ActionKey names a permission-checked action (e.g. "update", "deploy").
type ActionKey string

// ScopeType is the kind of scope a permission is evaluated against.
type ScopeType string

const (
	// ScopeApp evaluates against the current application role.
	ScopeApp ScopeType = "app"
	// ScopeOrg evaluates against the current organization role.
	ScopeOrg ScopeType = "org"
	// ScopeProject evaluates against the current project role.
	ScopeProject ScopeType = "project"
	// ScopeVersion evaluates the version editability policy.
	ScopeVersion ScopeType = "version"
)

// TabType is the kind of editor a tab hosts.
type TabType string

const (
	// TabTypeDatabase edits a database definition.
	TabTypeDatabase TabType = "database"
	// TabTypeResource edits a resource definition.
	TabTypeResource TabType = "resource"
	// TabTypeEnvironment edits an environment.
	TabTypeEnvironment TabType = "environment"
	// TabTypeCode edits source code.
	TabTypeCode TabType = "code"
	// TabTypeSettings edits version settings.
	TabTypeSettings TabType = "settings"
	// TabTypeDashboard shows the version dashboard.
	TabTypeDashboard TabType = "dashboard"
)

var tabTypes = []TabType{
	TabTypeDatabase,
	TabTypeResource,
	TabTypeEnvironment,
	TabTypeCode,
	TabTypeSettings,
	TabTypeDashboard,
}

// TabTypes returns the known editor kinds.
func TabTypes() []TabType {
	out := make([]TabType, len(tabTypes))
	copy(out, tabTypes)
	return out
}

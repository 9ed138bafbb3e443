package schema

// DefaultAdminRole is the highest administrative role when the catalog does not name one.
const DefaultAdminRole Role = "Admin"

// WildcardAction grants every action on a scope.
const WildcardAction ActionKey = "*"

// Catalog is the role/type catalog served by GET /v1/types/all.
type Catalog struct {
	AdminRole Role                                `json:"adminRole,omitempty" yaml:"admin_role,omitempty"`
	Roles     map[ScopeType]map[Role][]ActionKey `json:"roles" yaml:"roles"`
	TabTypes  []TabType                           `json:"tabTypes,omitempty" yaml:"tab_types,omitempty"`
	Revision  string                              `json:"revision,omitempty" yaml:"revision,omitempty"`
}

// DefaultCatalog is used until the remote catalog has been fetched.
func DefaultCatalog() Catalog {
	readWrite := []ActionKey{"read", "create", "update", "delete", "deploy"}
	return Catalog{
		AdminRole: DefaultAdminRole,
		Roles: map[ScopeType]map[Role][]ActionKey{
			ScopeOrg: {
				"Admin":  {WildcardAction},
				"Member": {"read"},
			},
			ScopeApp: {
				"Admin":     {WildcardAction},
				"Developer": readWrite,
				"Member":    {"read"},
			},
			ScopeProject: {
				"Admin":     {WildcardAction},
				"Developer": readWrite,
				"Member":    {"read"},
			},
		},
		TabTypes: TabTypes(),
		Revision: "builtin",
	}
}

// Allows reports whether role holds action on scope according to the catalog.
func (c Catalog) Allows(scope ScopeType, role Role, action ActionKey) bool {
	if role == "" {
		return false
	}
	if role == c.Admin() {
		return true
	}
	for _, granted := range c.Roles[scope][role] {
		if granted == WildcardAction || granted == action {
			return true
		}
	}
	return false
}

// Admin returns the highest administrative role.
func (c Catalog) Admin() Role {
	if c.AdminRole == "" {
		return DefaultAdminRole
	}
	return c.AdminRole
}

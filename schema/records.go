package schema

// Organization is an organization the user belongs to.
type Organization struct {
	ID   OrganizationID `json:"id" yaml:"id"`
	Name string         `json:"name" yaml:"name"`
	Role Role           `json:"role" yaml:"role"`
}

// Deployment is the last known deployment state of a version.
type Deployment struct {
	State         string        `json:"state" yaml:"state"`
	EnvironmentID EnvironmentID `json:"environmentId,omitempty" yaml:"environment_id,omitempty"`
	Message       string        `json:"message,omitempty" yaml:"message,omitempty"`
	At            string        `json:"at,omitempty" yaml:"at,omitempty"`
}

// Version is a named, owned configuration snapshot of an application.
// Private and ReadOnly are independent axes.
type Version struct {
	ID         VersionID     `json:"id" yaml:"id"`
	AppID      ApplicationID `json:"appId,omitempty" yaml:"app_id,omitempty"`
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Private    bool          `json:"private" yaml:"private"`
	ReadOnly   bool          `json:"readOnly" yaml:"read_only"`
	CreatedBy  UserID        `json:"createdBy,omitempty" yaml:"created_by,omitempty"`
	Deployment *Deployment   `json:"deployment,omitempty" yaml:"deployment,omitempty"`
}

// Environment is a deployment environment and its last reported status.
type Environment struct {
	ID      EnvironmentID `json:"id" yaml:"id"`
	Name    string        `json:"name,omitempty" yaml:"name,omitempty"`
	Status  string        `json:"status,omitempty" yaml:"status,omitempty"`
	Message string        `json:"message,omitempty" yaml:"message,omitempty"`
	At      string        `json:"at,omitempty" yaml:"at,omitempty"`
}

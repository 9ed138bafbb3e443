package schema

import "encoding/json"

// Action is the discriminator of a realtime envelope.
type Action string

const (
	// ActionTypings carries editor type-definition fragments (name -> source).
	ActionTypings Action = "typings"
	// ActionEnvironmentStatus carries the status of one environment.
	ActionEnvironmentStatus Action = "environment.status"
	// ActionDeploymentState carries the deployment state of one version.
	ActionDeploymentState Action = "deployment.state"
	// ActionVersionUpdated carries a partial update of version flags.
	ActionVersionUpdated Action = "version.updated"
	// ActionDocumentSaved reports that a document path was saved remotely.
	ActionDocumentSaved Action = "document.saved"
)

// Envelope is a push-style realtime update from the collaboration/build service.
type Envelope struct {
	Action     Action          `json:"action"`
	Identifier string          `json:"identifier,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// TypingsData is the payload of a typings envelope.
type TypingsData map[string]string

// EnvironmentStatusData is the payload of an environment.status envelope.
type EnvironmentStatusData struct {
	Name    string `json:"name,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	At      string `json:"at,omitempty"`
}

// DeploymentStateData is the payload of a deployment.state envelope.
type DeploymentStateData struct {
	State         string        `json:"state"`
	EnvironmentID EnvironmentID `json:"environmentId,omitempty"`
	Message       string        `json:"message,omitempty"`
	At            string        `json:"at,omitempty"`
}

// VersionUpdatedData is the payload of a version.updated envelope. Nil fields are left unchanged.
type VersionUpdatedData struct {
	Name      *string `json:"name,omitempty"`
	Private   *bool   `json:"private,omitempty"`
	ReadOnly  *bool   `json:"readOnly,omitempty"`
	CreatedBy *UserID `json:"createdBy,omitempty"`
}

// DocumentSavedData is the payload of a document.saved envelope.
type DocumentSavedData struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr       string
	BaseURL    string
	BasePath   string
	HubHistory int
	// MaxEnvelopeBytes caps POST /api/events bodies and websocket ingress frames.
	MaxEnvelopeBytes int64
}

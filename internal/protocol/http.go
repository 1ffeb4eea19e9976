package protocol

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name string `json:"name"`
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	SessionID     string `json:"sessionId"`
	ServerVersion string `json:"serverVersion"`
}

// UnregisterRequest is the body of DELETE /api/register.
type UnregisterRequest struct {
	SessionID string `json:"sessionId"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

// ErrorResponse carries a validation failure. The HTTP status stays 200.
type ErrorResponse struct {
	Error string `json:"error"`
}

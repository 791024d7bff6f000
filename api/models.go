package api

import "time"

// ConnectRequest is the JSON body for POST /auth/otp.
type ConnectRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned from POST /auth/otp on success. The client
// is expected to persist both values as the UUID and Token cookies.
type AuthResponse struct {
	UUID  string `json:"uuid"`
	Token string `json:"token"`
}

// SessionSummary describes an active session to an administrator. The
// pad is deliberately absent; exposing it alongside a captured token
// would recover the credentials.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	Created      time.Time `json:"created"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccess   time.Time `json:"last_access"`
	LastOriginIP string    `json:"last_origin_ip"`
}

// ListSessionsResponse is returned from GET /auth/sessions.
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	PaginationMeta
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}

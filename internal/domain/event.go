package domain

// Event types published on session lifecycle transitions.
const (
	EventUserRegistered = "user.registered"
	EventSessionStarted = "session.started"
	EventSessionEnded   = "session.ended"
)

// Ways a session can start.
const (
	SessionMethodSignup  = "signup"
	SessionMethodLogin   = "login"
	SessionMethodRefresh = "refresh"
)

// UserRegisteredData is the payload of EventUserRegistered.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// SessionData is the payload of EventSessionStarted and EventSessionEnded.
type SessionData struct {
	UserID string `json:"user_id"`
	Method string `json:"method,omitempty"`
}

package lifecycle

// Broadcast event names, matching what connected clients subscribe to.
const (
	EventParticipantsUpdate = "participants-update"
	EventSessionTerminated  = "session-terminated"
	EventUserLeft           = "user-left"
)

// Notifier fans an event out to every client connected to the session's room.
// The lifecycle service calls it only after a successful commit; delivery
// failures never roll back or block the durable mutation, so the interface
// returns nothing.
type Notifier interface {
	Broadcast(sessionID int64, event string, payload any)
}

// NopNotifier discards broadcasts. Used where no transport is wired.
type NopNotifier struct{}

func (NopNotifier) Broadcast(int64, string, any) {}

// TerminatedPayload is the session-terminated event body.
type TerminatedPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// UserLeftPayload is the user-left event body.
type UserLeftPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	WasOwner bool   `json:"wasOwner"`
}

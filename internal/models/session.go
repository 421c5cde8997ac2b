package models

import "time"

// SessionStatus is the lifecycle state of a session. It starts at active and
// transitions at most once, to ended or terminated.
type SessionStatus string

const (
	StatusActive     SessionStatus = "active"
	StatusEnded      SessionStatus = "ended"
	StatusTerminated SessionStatus = "terminated"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusTerminated
}

const (
	// MaxSessionNameLen bounds the session name, matching the create validation.
	MaxSessionNameLen = 100
	// MaxSessionDescriptionLen bounds the optional description.
	MaxSessionDescriptionLen = 500
	// DefaultMaxParticipants applies when create omits a capacity.
	DefaultMaxParticipants = 10
	// MinMaxParticipants is the smallest meaningful capacity.
	MinMaxParticipants = 2
)

// Session is a multi-party video gathering. OwnerID is set at creation and
// never changes, regardless of membership churn.
type Session struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	OwnerID         int64         `json:"ownerId"`
	MaxParticipants int           `json:"maxParticipants"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

// SessionMember records that a user is currently present in a session.
// Unique per (SessionID, UserID).
type SessionMember struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionId"`
	UserID    int64     `json:"userId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Participant is the only membership shape sent to clients, identical in the
// HTTP response body and the broadcast payload.
type Participant struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsOwner  bool   `json:"isOwner"`
}

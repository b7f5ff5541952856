package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an authentication event.
type EventKind string

const (
	EventLoginSuccess  EventKind = "login_success"
	EventLoginFailed   EventKind = "login_failed"
	EventLogout        EventKind = "logout"
	EventAccountLocked EventKind = "account_locked"
	EventSuspicious    EventKind = "suspicious_activity"
)

// LoginEvent is one immutable entry in the authentication audit trail.
// UserID is nil when the principal could not be resolved (unknown email).
// CreatedAt is always assigned server-side on append.
type LoginEvent struct {
	ID        int64
	UserID    *uuid.UUID
	Kind      EventKind
	IP        string
	UserAgent string
	Detail    json.RawMessage
	CreatedAt time.Time
}

// EventDetail is the structured payload stored with an event.
type EventDetail struct {
	Reason       string `json:"reason,omitempty"`
	AttemptCount int    `json:"attempt_count,omitempty"`
	RiskScore    int    `json:"risk_score,omitempty"`
	Email        string `json:"email,omitempty"`
}

// KindCount is one row of an event statistics breakdown: how many events
// fell into a group within the queried window and when the group was last
// seen. Results are ordered by Count descending.
type KindCount struct {
	Key      string    `json:"key"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

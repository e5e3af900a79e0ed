package reading

import (
	"time"

	"github.com/shopspring/decimal"
)

// State - состояние сессии чтения
type State string

const (
	StateNotStarted      State = "not_started"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StateCollecting      State = "collecting"
	StateCollected       State = "collected"
	StateAlreadyRewarded State = "already_rewarded"
)

// Terminal reports whether no further reward can come out of the state.
func (s State) Terminal() bool {
	return s == StateCollected || s == StateAlreadyRewarded
}

// Snapshot is the read-only view of a session.
type Snapshot struct {
	ArticleID        int64           `json:"article_id"`
	Slug             string          `json:"slug"`
	State            State           `json:"state"`
	RequiredSeconds  int             `json:"required_seconds"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Degraded         bool            `json:"degraded"`
	CanCollect       bool            `json:"can_collect"`
	CanGift          bool            `json:"can_gift"`
	Busy             string          `json:"busy,omitempty"`
	PointsCollected  decimal.Decimal `json:"points_collected"`
	RequiredMinutes  *int            `json:"required_minutes,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
}

// EventKind classifies session events.
type EventKind string

const (
	EventState EventKind = "state"
	EventTick  EventKind = "tick"
	EventError EventKind = "error"
	EventGift  EventKind = "gift"
)

// Event is pushed to subscribers on every change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"session"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

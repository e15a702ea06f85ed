package chat

import (
	"time"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
)

// State is the lifecycle position of a session.
type State string

const (
	StateCreated       State = "created"
	StateAwaitingInput State = "awaiting_input"
	StateTurnInFlight  State = "turn_in_flight"
	StateReady         State = "ready"
	StateEnded         State = "ended"
)

// Session captures a transient anonymous conversation.
type Session struct {
	ID           string           `json:"id"`
	State        State            `json:"state"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastActiveAt time.Time        `json:"lastActiveAt"`
	Filters      *filter.Enhanced `json:"filters,omitempty"`
}

// TurnResult is what one dialogue turn hands back to the caller.
type TurnResult struct {
	SessionID string           `json:"sessionId"`
	Message   string           `json:"message"`
	Ready     bool             `json:"ready"`
	Filters   *filter.Enhanced `json:"filters,omitempty"`
}

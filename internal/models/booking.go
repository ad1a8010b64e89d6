package models

import (
	"strings"
	"time"
)

// Booking statuses. A booking is created as waiting and moves at most once
// to approved or rejected; both are terminal.
const (
	StatusWaiting  = "WAITING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// BookingRequest is the inbound booking creation payload.
type BookingRequest struct {
	ItemID int64     `json:"itemId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type Booking struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	BookerID  int64     `json:"booker_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransitionTo reports whether status may move to target. Only
// waiting -> approved/rejected is allowed.
func CanTransitionTo(status, target string) bool {
	if status != StatusWaiting {
		return false
	}
	return target == StatusApproved || target == StatusRejected
}

// IsTerminalStatus reports whether the status can never change again.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// State classifies bookings in listings relative to "now". It is a query
// parameter, not a persisted attribute.
type State string

const (
	StateAll      State = "ALL"
	StateCurrent  State = "CURRENT"
	StatePast     State = "PAST"
	StateFuture   State = "FUTURE"
	StateWaiting  State = "WAITING"
	StateRejected State = "REJECTED"
)

// ParseState parses a state string case-insensitively. Unknown values are
// reported via ok=false and are never defaulted to ALL.
func ParseState(raw string) (State, bool) {
	switch State(strings.ToUpper(strings.TrimSpace(raw))) {
	case StateAll:
		return StateAll, true
	case StateCurrent:
		return StateCurrent, true
	case StatePast:
		return StatePast, true
	case StateFuture:
		return StateFuture, true
	case StateWaiting:
		return StateWaiting, true
	case StateRejected:
		return StateRejected, true
	default:
		return "", false
	}
}

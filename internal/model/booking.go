package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// transitions is the full lifecycle. Cancelled and completed are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Label is the presentation name for a status badge.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCancelled:
		return "Cancelled"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// TransitionFilter narrows a status update to rows the caller may
// touch. Ownership lives in the statement itself, not only in
// application checks.
type TransitionFilter struct {
	ClientID   string
	ProviderID string
	From       []Status
}

// Booking is one appointment row. EndTime is computed from the service
// duration when the booking is created and never recomputed afterwards,
// so later edits to the service do not shift existing appointments.
type Booking struct {
	ID          string
	ClientID    string
	ProviderID  string
	ServiceID   string
	BookingDate time.Time // midnight UTC of the calendar day
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Service  *ServiceSummary
	Provider *ProviderSummary
}

package booking

import "strings"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses are the statuses that hold a listing's dates.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCancelled: {},
	StatusCompleted: {},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", ErrUnknownStatus
	}
	return s, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	allowed, ok := transitions[s]
	return ok && len(allowed) == 0
}

// HoldsDates reports whether a booking in this status blocks its range.
func (s Status) HoldsDates() bool {
	return s == StatusPending || s == StatusConfirmed
}

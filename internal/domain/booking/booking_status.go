package booking

import (
	"fmt"
	"strings"

	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusApproved   BookingStatus = "approved"
	StatusDeclined   BookingStatus = "declined"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
)

// validTransitions defines the state machine for booking status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusApproved, StatusDeclined},
	StatusApproved:   {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusDeclined:   {},
	StatusCompleted:  {},
}

// allStatuses keeps a stable order for listings and stats.
var allStatuses = []BookingStatus{
	StatusPending,
	StatusApproved,
	StatusInProgress,
	StatusCompleted,
	StatusDeclined,
}

// transitionVerbs names the action that reaches each status.
var transitionVerbs = map[BookingStatus]string{
	StatusApproved:   "accepted",
	StatusDeclined:   "declined",
	StatusInProgress: "started",
	StatusCompleted:  "completed",
}

// AllStatuses returns every valid status.
func AllStatuses() []BookingStatus {
	out := make([]BookingStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// ParseStatusFilter returns nil for an empty or unknown value; list filters ignore bad input.
func ParseStatusFilter(s string) *BookingStatus {
	status, err := ParseBookingStatus(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &status
}

// CheckTransition returns an InvalidTransition error carrying the current status
// when from -> to is not in the table.
func CheckTransition(from, to BookingStatus) error {
	if !to.IsValid() {
		return apperror.NewValidationError(fmt.Sprintf("invalid booking status: %s", to))
	}
	if from.CanTransitionTo(to) {
		return nil
	}
	return apperror.NewInvalidTransitionError(string(from), string(to)).
		WithMessage(transitionMessage(from, to))
}

// sourcesOf lists the statuses from which target is reachable.
func sourcesOf(target BookingStatus) []string {
	var out []string
	for _, s := range allStatuses {
		if s.CanTransitionTo(target) {
			out = append(out, string(s))
		}
	}
	return out
}

func transitionMessage(from, to BookingStatus) string {
	sources := sourcesOf(to)
	verb := transitionVerbs[to]
	if len(sources) == 0 || verb == "" {
		return fmt.Sprintf("Bookings cannot be moved to %s. Current status: %s", to, from)
	}
	return fmt.Sprintf("Only %s bookings can be %s. Current status: %s",
		strings.Join(sources, " or "), verb, from)
}

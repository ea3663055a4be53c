// internal/domain/notification/shared_types.go
package notification

import "fmt"

// DeliveryStatus is the lifecycle state of a cycle log.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read" // the senior replied
	StatusFailed    DeliveryStatus = "failed"
	StatusSkipped   DeliveryStatus = "skipped" // a new cycle started before any reply
)

var allowedTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusSent:      {StatusDelivered, StatusRead, StatusSkipped, StatusFailed},
	StatusDelivered: {StatusRead, StatusSkipped},
	StatusFailed:    {StatusRead},
	StatusSkipped:   {StatusRead},
	StatusRead:      nil,
}

// ParseDeliveryStatus validates a stored or provider supplied status.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(s)
	if _, ok := allowedTransitions[st]; !ok {
		return "", fmt.Errorf("unknown delivery status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether a log in status s may move to next.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SkipReason explains why a recipient got no message on a reminder tick.
type SkipReason string

const (
	SkipNoWeeklyLog      SkipReason = "no_weekly_log"
	SkipAlreadyCompleted SkipReason = "already_completed"
)

// CycleMode is what a tick does.
type CycleMode string

const (
	ModeMainSend CycleMode = "main"
	ModeReminder CycleMode = "reminder"
)

// ParseCycleMode accepts "main" or "reminder".
func ParseCycleMode(s string) (CycleMode, error) {
	switch CycleMode(s) {
	case ModeMainSend, ModeReminder:
		return CycleMode(s), nil
	default:
		return "", fmt.Errorf("unknown cycle mode %q", s)
	}
}

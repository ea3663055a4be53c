package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"estirar/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// LogLedger is the only writer of cycle logs. It owns the status transitions
// so callers never set Log.Status directly.
type LogLedger struct {
	logRepo notification.Repository
	logger  *logrus.Entry
}

func NewLogLedger(lr notification.Repository, logger *logrus.Entry) *LogLedger {
	return &LogLedger{logRepo: lr, logger: logger}
}

// RecordSend appends a log for a main-send attempt: 'sent' when the provider
// accepted the message, 'failed' otherwise.
func (l *LogLedger) RecordSend(ctx context.Context, seniorID, videoID int64, sentAt time.Time, delivered bool, messageID string) (*notification.Log, error) {
	entry := &notification.Log{
		SeniorID: seniorID,
		VideoID:  videoID,
		SentAt:   sentAt,
		Status:   notification.StatusSent,
	}
	if !delivered {
		entry.Status = notification.StatusFailed
	}
	if messageID != "" {
		entry.ProviderMessageID = sql.NullString{String: messageID, Valid: true}
	}

	if err := l.logRepo.CreateLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record send for senior %d: %w", seniorID, err)
	}
	l.logger.WithFields(logrus.Fields{
		"senior_id": seniorID,
		"video_id":  videoID,
		"log_id":    entry.ID,
		"status":    entry.Status,
	}).Debug("Send recorded")
	return entry, nil
}

// AttachReply stores an inbound reply on the senior's most recent open log.
// notification.ErrLogNotFound is returned when there is no open log.
func (l *LogLedger) AttachReply(ctx context.Context, seniorID int64, text string, at time.Time, completed bool) (*notification.Log, error) {
	open, err := l.logRepo.GetLatestOpenLog(ctx, seniorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open log for senior %d: %w", seniorID, err)
	}
	if err := transition(open, notification.StatusRead); err != nil {
		return nil, err
	}

	open.ReplyText = sql.NullString{String: text, Valid: true}
	open.RepliedAt = sql.NullTime{Time: at, Valid: true}
	if completed {
		open.Completed = sql.NullBool{Bool: true, Valid: true}
	}

	if err := l.logRepo.UpdateLog(ctx, open); err != nil {
		return nil, fmt.Errorf("failed to attach reply to log %d: %w", open.ID, err)
	}
	return open, nil
}

// MarkAbandoned moves the senior's unanswered 'sent' and 'delivered' logs to 'skipped' before a new cycle starts.
func (l *LogLedger) MarkAbandoned(ctx context.Context, seniorID int64) (int64, error) {
	n, err := l.logRepo.MarkUnansweredLogsSkipped(ctx, seniorID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned logs for senior %d: %w", seniorID, err)
	}
	if n > 0 {
		l.logger.WithFields(logrus.Fields{"senior_id": seniorID, "count": n}).Info("Marked abandoned logs as skipped")
	}
	return n, nil
}

// ApplyDeliveryReceipt updates the log of a provider message with a receipt status.
func (l *LogLedger) ApplyDeliveryReceipt(ctx context.Context, messageID string, status notification.DeliveryStatus) (*notification.Log, error) {
	entry, err := l.logRepo.GetLogByProviderMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find log for message %s: %w", messageID, err)
	}
	if entry.Status == status {
		return entry, nil
	}
	if err := transition(entry, status); err != nil {
		return entry, err
	}
	if err := l.logRepo.UpdateLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to apply receipt to log %d: %w", entry.ID, err)
	}
	return entry, nil
}

func transition(entry *notification.Log, next notification.DeliveryStatus) error {
	if !entry.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: log %d from %s to %s", notification.ErrInvalidTransition, entry.ID, entry.Status, next)
	}
	entry.Status = next
	return nil
}

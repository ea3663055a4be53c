// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines operations on the cycle log ledger.
type Repository interface {
	CreateLog(ctx context.Context, l *Log) error
	UpdateLog(ctx context.Context, l *Log) error
	GetLogByProviderMessageID(ctx context.Context, messageID string) (*Log, error)

	// GetLatestLog returns the newest log of the senior by sent_at together with
	// the sequence position of its video.
	GetLatestLog(ctx context.Context, seniorID int64) (*Log, int, error)
	// GetLatestOpenLog returns the newest log of the senior with a null replied_at.
	GetLatestOpenLog(ctx context.Context, seniorID int64) (*Log, error)
	// GetLatestLogSince returns the newest log with sent_at >= since.
	GetLatestLogSince(ctx context.Context, seniorID int64, since time.Time) (*Log, error)
	// ListLogsSince returns logs with sent_at >= since, newest first, at most limit.
	ListLogsSince(ctx context.Context, seniorID int64, since time.Time, limit int) ([]*Log, error)

	// MarkUnansweredLogsSkipped moves every 'sent' or 'delivered' log without a reply to 'skipped'
	// and returns how many rows changed.
	MarkUnansweredLogsSkipped(ctx context.Context, seniorID int64) (int64, error)

	ListRecentWithDetails(ctx context.Context, limit int) ([]*LogDetails, error)
}

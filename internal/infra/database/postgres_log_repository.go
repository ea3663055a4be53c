// internal/infra/database/postgres_log_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"

	"github.com/lib/pq"
)

// ErrMissingReference is returned when a log points to a senior or video that does not exist.
var ErrMissingReference = errors.New("log references a missing senior or video")

const foreignKeyViolation = "23503"

const logColumns = `l.id, l.senior_id, l.video_id, l.sent_at, l.status, l.provider_message_id, l.reply_text, l.replied_at, l.completed`

type PostgresLogRepository struct {
	db *sql.DB
}

func NewPostgresLogRepository(db *sql.DB) *PostgresLogRepository {
	return &PostgresLogRepository{db: db}
}

func scanLog(row rowScanner, extra ...any) (*notification.Log, error) {
	l := &notification.Log{}
	var status string
	dest := append([]any{
		&l.ID, &l.SeniorID, &l.VideoID, &l.SentAt, &status,
		&l.ProviderMessageID, &l.ReplyText, &l.RepliedAt, &l.Completed,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	l.Status = notification.DeliveryStatus(status)
	return l, nil
}

func (r *PostgresLogRepository) CreateLog(ctx context.Context, l *notification.Log) error {
	query := `INSERT INTO logs (senior_id, video_id, sent_at, status, provider_message_id, reply_text, replied_at, completed)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		l.SeniorID, l.VideoID, l.SentAt, l.Status, l.ProviderMessageID, l.ReplyText, l.RepliedAt, l.Completed,
	).Scan(&l.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w (senior %d, video %d)", ErrMissingReference, l.SeniorID, l.VideoID)
		}
		return fmt.Errorf("error creating log: %w", err)
	}
	return nil
}

func (r *PostgresLogRepository) UpdateLog(ctx context.Context, l *notification.Log) error {
	query := `UPDATE logs
               SET status = $1, provider_message_id = $2, reply_text = $3, replied_at = $4, completed = $5
               WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, l.Status, l.ProviderMessageID, l.ReplyText, l.RepliedAt, l.Completed, l.ID)
	if err != nil {
		return fmt.Errorf("error updating log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for log %d: %w", l.ID, err)
	}
	if n == 0 {
		return notification.ErrLogNotFound
	}
	return nil
}

func (r *PostgresLogRepository) getOne(ctx context.Context, what string, query string, args ...any) (*notification.Log, error) {
	l, err := scanLog(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrLogNotFound
		}
		return nil, fmt.Errorf("error getting %s: %w", what, err)
	}
	return l, nil
}

func (r *PostgresLogRepository) GetLogByProviderMessageID(ctx context.Context, messageID string) (*notification.Log, error) {
	query := `SELECT ` + logColumns + ` FROM logs l WHERE l.provider_message_id = $1 ORDER BY l.id DESC LIMIT 1`
	return r.getOne(ctx, "log by provider message ID", query, messageID)
}

func (r *PostgresLogRepository) GetLatestLog(ctx context.Context, seniorID int64) (*notification.Log, int, error) {
	query := `SELECT ` + logColumns + `, v.sequence_order
               FROM logs l
               JOIN videos v ON v.id = l.video_id
               WHERE l.senior_id = $1
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT 1`
	var position int
	l, err := scanLog(r.db.QueryRowContext(ctx, query, seniorID), &position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, notification.ErrLogNotFound
		}
		return nil, 0, fmt.Errorf("error getting latest log: %w", err)
	}
	return l, position, nil
}

func (r *PostgresLogRepository) GetLatestOpenLog(ctx context.Context, seniorID int64) (*notification.Log, error) {
	query := `SELECT ` + logColumns + `
               FROM logs l
               WHERE l.senior_id = $1 AND l.replied_at IS NULL
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT 1`
	return r.getOne(ctx, "latest open log", query, seniorID)
}

func (r *PostgresLogRepository) GetLatestLogSince(ctx context.Context, seniorID int64, since time.Time) (*notification.Log, error) {
	query := `SELECT ` + logColumns + `
               FROM logs l
               WHERE l.senior_id = $1 AND l.sent_at >= $2
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT 1`
	return r.getOne(ctx, "latest log in window", query, seniorID, since)
}

func (r *PostgresLogRepository) ListLogsSince(ctx context.Context, seniorID int64, since time.Time, limit int) ([]*notification.Log, error) {
	query := `SELECT ` + logColumns + `
               FROM logs l
               WHERE l.senior_id = $1 AND l.sent_at >= $2
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, seniorID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying logs since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	logs := make([]*notification.Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return logs, nil
}

func (r *PostgresLogRepository) MarkUnansweredLogsSkipped(ctx context.Context, seniorID int64) (int64, error) {
	query := `UPDATE logs SET status = $1
               WHERE senior_id = $2 AND status IN ($3, $4)
                 AND completed IS NULL AND replied_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, notification.StatusSkipped, seniorID, notification.StatusSent, notification.StatusDelivered)
	if err != nil {
		return 0, fmt.Errorf("error marking logs skipped: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n, nil
}

func (r *PostgresLogRepository) ListRecentWithDetails(ctx context.Context, limit int) ([]*notification.LogDetails, error) {
	query := `SELECT ` + logColumns + `, s.phone_number, s.language, v.title, v.youtube_url
               FROM logs l
               JOIN seniors s ON s.id = l.senior_id
               JOIN videos v ON v.id = l.video_id
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent logs: %w", err)
	}
	defer rows.Close()

	details := make([]*notification.LogDetails, 0)
	for rows.Next() {
		d := &notification.LogDetails{}
		var lang string
		l, err := scanLog(rows, &d.PhoneNumber, &lang, &d.VideoTitle, &d.VideoURL)
		if err != nil {
			return nil, fmt.Errorf("error scanning recent log row: %w", err)
		}
		d.Log = *l
		d.Language = senior.Language(lang)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent log rows: %w", err)
	}
	return details, nil
}

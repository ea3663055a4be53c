package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL, applies the schema and empties every table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres tests")
	}
	db, err := NewPostgresConnection(dsn)
	if err != nil {
		t.Skipf("Postgres not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE logs, videos, seniors RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func seedCatalog(t *testing.T, repo *PostgresVideoRepository, lang senior.Language, n int) []*video.Video {
	t.Helper()
	out := make([]*video.Video, 0, n)
	for i := 1; i <= n; i++ {
		v := &video.Video{Title: string(lang) + " chair video", URL: "https://youtu.be/x", Category: "Yoga", Language: lang, SequencePosition: i}
		require.NoError(t, repo.Upsert(context.Background(), v))
		out = append(out, v)
	}
	return out
}

func TestPostgresSeniorRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresSeniorRepository(db)
	ctx := context.Background()

	s := &senior.Senior{PhoneNumber: "+13055629885", Language: senior.LanguageSpanish, IsActive: true}
	require.NoError(t, repo.Upsert(ctx, s))
	assert.NotZero(t, s.ID)

	again := &senior.Senior{PhoneNumber: "+13055629885", Language: senior.LanguageEnglish, IsActive: false}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, s.ID, again.ID)

	got, err := repo.GetByPhone(ctx, "13055629885")
	require.NoError(t, err)
	assert.Equal(t, senior.LanguageEnglish, got.Language)
	assert.False(t, got.IsActive)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got.IsActive = true
	require.NoError(t, repo.Update(ctx, got))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, errors.Is(err, senior.ErrSeniorNotFound))
}

func TestPostgresVideoRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVideoRepository(db)
	ctx := context.Background()
	seedCatalog(t, repo, senior.LanguageEnglish, 3)
	seedCatalog(t, repo, senior.LanguageSpanish, 2)

	next, err := repo.GetNextInSequence(ctx, senior.LanguageEnglish, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.SequencePosition)

	_, err = repo.GetNextInSequence(ctx, senior.LanguageEnglish, 3)
	assert.True(t, errors.Is(err, video.ErrVideoNotFound))

	es, err := repo.ListByLanguages(ctx, []senior.Language{senior.LanguageSpanish})
	require.NoError(t, err)
	assert.Len(t, es, 2)

	// Re-seeding the same position replaces the entry.
	replacement := &video.Video{Title: "Renamed", URL: "https://youtu.be/y", Language: senior.LanguageSpanish, SequencePosition: 1}
	require.NoError(t, repo.Upsert(ctx, replacement))
	got, err := repo.GetBySequence(ctx, senior.LanguageSpanish, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, replacement.ID, got.ID)
}

func TestPostgresLogRepository(t *testing.T) {
	db := openTestDB(t)
	seniors := NewPostgresSeniorRepository(db)
	videos := NewPostgresVideoRepository(db)
	logs := NewPostgresLogRepository(db)
	ctx := context.Background()

	s := &senior.Senior{PhoneNumber: "+15550000001", Language: senior.LanguageEnglish, IsActive: true}
	require.NoError(t, seniors.Upsert(ctx, s))
	catalog := seedCatalog(t, videos, senior.LanguageEnglish, 2)

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	first := &notification.Log{SeniorID: s.ID, VideoID: catalog[0].ID, SentAt: base, Status: notification.StatusSent,
		ProviderMessageID: sql.NullString{String: "wamid.a", Valid: true}}
	second := &notification.Log{SeniorID: s.ID, VideoID: catalog[1].ID, SentAt: base.AddDate(0, 0, 7), Status: notification.StatusSent}
	require.NoError(t, logs.CreateLog(ctx, first))
	require.NoError(t, logs.CreateLog(ctx, second))

	latest, position, err := logs.GetLatestLog(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 2, position)

	byMessage, err := logs.GetLogByProviderMessageID(ctx, "wamid.a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byMessage.ID)

	since, err := logs.GetLatestLogSince(ctx, s.ID, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, second.ID, since.ID)

	second.Status = notification.StatusRead
	second.ReplyText = sql.NullString{String: "done", Valid: true}
	second.RepliedAt = sql.NullTime{Time: base.AddDate(0, 0, 8), Valid: true}
	second.Completed = sql.NullBool{Bool: true, Valid: true}
	require.NoError(t, logs.UpdateLog(ctx, second))

	open, err := logs.GetLatestOpenLog(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)

	first.Status = notification.StatusDelivered
	require.NoError(t, logs.UpdateLog(ctx, first))

	n, err := logs.MarkUnansweredLogsSkipped(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := logs.ListLogsSince(ctx, s.ID, base, 52)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].IsCompleted())
	assert.Equal(t, notification.StatusSkipped, recent[1].Status)

	details, err := logs.ListRecentWithDetails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "+15550000001", details[0].PhoneNumber)
	assert.Equal(t, "done", details[0].ReplyText.String)

	err = logs.CreateLog(ctx, &notification.Log{SeniorID: 9999, VideoID: catalog[0].ID, SentAt: base, Status: notification.StatusSent})
	assert.True(t, errors.Is(err, ErrMissingReference))

	err = logs.UpdateLog(ctx, &notification.Log{ID: 9999, Status: notification.StatusRead})
	assert.True(t, errors.Is(err, notification.ErrLogNotFound))
}

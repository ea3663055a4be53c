package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"estirar/internal/domain/messaging"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sunday    = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	wednesday = time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
)

type cycleFixture struct {
	seniors  *fakeSeniorRepo
	videos   *fakeVideoRepo
	logs     *fakeLogRepo
	provider *MockProvider
	telegram *fakeTelegram
	service  *CycleService
}

func newCycleFixture(t *testing.T, cfg CycleConfig, now time.Time) *cycleFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	videos := &fakeVideoRepo{}
	videos.seed(senior.LanguageEnglish, 6, 1)
	videos.seed(senior.LanguageSpanish, 6, 101)

	messages, err := LoadMessages()
	require.NoError(t, err)

	f := &cycleFixture{
		seniors:  &fakeSeniorRepo{},
		videos:   videos,
		logs:     newFakeLogRepo(videos),
		provider: NewMockProvider(ctrl),
		telegram: &fakeTelegram{},
	}
	f.service = NewCycleService(f.seniors, f.videos, f.logs, f.provider, messages, f.telegram, cfg, testLogger())
	f.service.now = func() time.Time { return now }
	return f
}

func videoTemplate(lang senior.Language, title, url string) messaging.Template {
	return messaging.Template{Name: "weekly_chair_exercise", Language: lang, Parameters: []string{title, url}}
}

func TestRunMode_FirstMainSendStartsAtFirstVideo(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)
	f.seniors.add(2, "+5070000002", senior.LanguageSpanish, true)
	f.seniors.add(3, "+15550000003", senior.LanguageEnglish, false)

	f.provider.EXPECT().
		SendTemplate(gomock.Any(), "+15550000001", videoTemplate(senior.LanguageEnglish, "en video 1", "https://videos.example/en/1")).
		Return("wamid.1", nil)
	f.provider.EXPECT().
		SendTemplate(gomock.Any(), "+5070000002", videoTemplate(senior.LanguageSpanish, "es video 1", "https://videos.example/es/1")).
		Return("wamid.2", nil)

	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, notification.ModeMainSend, result.Mode)
	require.Len(t, result.Recipients, 2)
	for _, rr := range result.Recipients {
		assert.True(t, rr.Success)
		assert.Empty(t, rr.Error)
	}

	require.Len(t, f.logs.logs, 2)
	assert.Equal(t, int64(1), f.logs.logs[0].VideoID)
	assert.Equal(t, int64(101), f.logs.logs[1].VideoID)
	for _, l := range f.logs.logs {
		assert.Equal(t, notification.StatusSent, l.Status)
		assert.Equal(t, sunday, l.SentAt)
		assert.True(t, l.ProviderMessageID.Valid)
		assert.False(t, l.Completed.Valid)
	}
}

func TestRunMode_MainSendSkipsAbandonedAndWraps(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)
	abandoned := f.logs.add(notification.Log{SeniorID: 1, VideoID: 6, SentAt: sunday.AddDate(0, 0, -7), Status: notification.StatusSent})

	f.provider.EXPECT().
		SendTemplate(gomock.Any(), "+15550000001", videoTemplate(senior.LanguageEnglish, "en video 1", "https://videos.example/en/1")).
		Return("wamid.3", nil)

	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	require.Len(t, result.Recipients, 1)
	assert.Equal(t, int64(1), result.Recipients[0].SkippedLogs)
	assert.Equal(t, "en video 1", result.Recipients[0].VideoTitle)
	assert.Equal(t, notification.StatusSkipped, f.logs.byID(abandoned.ID).Status)
	assert.Len(t, f.logs.logs, 2)
}

func TestRunMode_MainSendSkipsDeliveredWithoutReply(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)

	gomock.InOrder(
		f.provider.EXPECT().
			SendTemplate(gomock.Any(), "+15550000001", videoTemplate(senior.LanguageEnglish, "en video 1", "https://videos.example/en/1")).
			Return("wamid.A", nil),
		f.provider.EXPECT().
			SendTemplate(gomock.Any(), "+15550000001", videoTemplate(senior.LanguageEnglish, "en video 2", "https://videos.example/en/2")).
			Return("wamid.B", nil),
	)

	_, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)

	_, err = NewLogLedger(f.logs, testLogger()).ApplyDeliveryReceipt(context.Background(), "wamid.A", notification.StatusDelivered)
	require.NoError(t, err)
	first := f.logs.logs[0]
	require.Equal(t, notification.StatusDelivered, first.Status)

	nextSunday := sunday.AddDate(0, 0, 7)
	f.service.now = func() time.Time { return nextSunday }
	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	require.Len(t, result.Recipients, 1)
	assert.Equal(t, int64(1), result.Recipients[0].SkippedLogs)
	assert.Equal(t, notification.StatusSkipped, f.logs.byID(first.ID).Status)
	assert.Equal(t, notification.StatusSent, f.logs.logs[1].Status)
}

func TestRunMode_FailedSendIsLoggedAndIsolated(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)
	f.seniors.add(2, "+15550000002", senior.LanguageEnglish, true)

	gomock.InOrder(
		f.provider.EXPECT().SendTemplate(gomock.Any(), "+15550000001", gomock.Any()).Return("", errors.New("provider rejected")),
		f.provider.EXPECT().SendTemplate(gomock.Any(), "+15550000002", gomock.Any()).Return("wamid.4", nil),
	)

	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	require.Len(t, result.Recipients, 2)

	assert.False(t, result.Recipients[0].Success)
	assert.Contains(t, result.Recipients[0].Error, "provider rejected")
	assert.True(t, result.Recipients[1].Success)

	sent, failed, skipped := result.Counts()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, skipped)

	require.Len(t, f.logs.logs, 2)
	assert.Equal(t, notification.StatusFailed, f.logs.logs[0].Status)
	assert.False(t, f.logs.logs[0].ProviderMessageID.Valid)
	assert.Equal(t, notification.StatusSent, f.logs.logs[1].Status)
}

func TestRunMode_LogWriteFailureDoesNotStopRun(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)
	f.logs.markErr = errors.New("db unavailable")

	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	require.Len(t, result.Recipients, 1)
	assert.False(t, result.Recipients[0].Success)
	assert.Contains(t, result.Recipients[0].Error, "db unavailable")
}

func TestRunMode_ListActiveFailureAbortsRun(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	f.seniors.listErr = errors.New("connection refused")

	_, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, f.telegram.sent)
}

func TestRunMode_Reminders(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), wednesday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true) // nothing this week
	f.seniors.add(2, "+15550000002", senior.LanguageEnglish, true) // already done
	f.seniors.add(3, "+5070000003", senior.LanguageSpanish, true)  // still open

	f.logs.add(notification.Log{SeniorID: 1, VideoID: 2, SentAt: sunday.AddDate(0, 0, -7), Status: notification.StatusSkipped})
	f.logs.add(notification.Log{
		SeniorID:  2,
		VideoID:   3,
		SentAt:    sunday,
		Status:    notification.StatusRead,
		RepliedAt: sql.NullTime{Time: sunday.Add(time.Hour), Valid: true},
		Completed: sql.NullBool{Bool: true, Valid: true},
	})
	open := f.logs.add(notification.Log{SeniorID: 3, VideoID: 104, SentAt: sunday, Status: notification.StatusDelivered})

	f.provider.EXPECT().
		SendTemplate(gomock.Any(), "+5070000003", messaging.Template{
			Name:       "chair_exercise_reminder",
			Language:   senior.LanguageSpanish,
			Parameters: []string{"es video 4", "https://videos.example/es/4"},
		}).
		Return("wamid.5", nil)

	result, err := f.service.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notification.ModeReminder, result.Mode)
	require.Len(t, result.Recipients, 3)

	assert.Equal(t, notification.SkipNoWeeklyLog, result.Recipients[0].SkipReason)
	assert.Equal(t, notification.SkipAlreadyCompleted, result.Recipients[1].SkipReason)
	assert.True(t, result.Recipients[2].Success)
	assert.Equal(t, "es video 4", result.Recipients[2].VideoTitle)

	// Reminders never write logs.
	assert.Len(t, f.logs.logs, 3)
	assert.Equal(t, notification.StatusDelivered, f.logs.byID(open.ID).Status)

	sent, failed, skipped := result.Counts()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, skipped)
}

func TestTick_MainSendDayAndDailyCadence(t *testing.T) {
	f := newCycleFixture(t, DefaultCycleConfig(), sunday)
	result, err := f.service.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notification.ModeMainSend, result.Mode)

	cfg := DefaultCycleConfig()
	cfg.Cadence = CadenceDaily
	f = newCycleFixture(t, cfg, wednesday)
	result, err = f.service.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notification.ModeMainSend, result.Mode)
}

func TestRunMode_FreeFormText(t *testing.T) {
	cfg := DefaultCycleConfig()
	cfg.UseTemplates = false
	f := newCycleFixture(t, cfg, sunday)
	f.seniors.add(1, "+5070000001", senior.LanguageSpanish, true)

	var body string
	f.provider.EXPECT().
		SendText(gomock.Any(), "+5070000001", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, text string) (string, error) {
			body = text
			return "wamid.6", nil
		})

	_, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "¡Hola! 👋"))
	assert.Contains(t, body, "📹 es video 1")
	assert.Contains(t, body, "https://videos.example/es/1")
}

func TestRunMode_NotifiesOperator(t *testing.T) {
	cfg := DefaultCycleConfig()
	cfg.OperatorChatID = 42
	f := newCycleFixture(t, cfg, sunday)
	f.seniors.add(1, "+15550000001", senior.LanguageEnglish, true)
	f.provider.EXPECT().SendTemplate(gomock.Any(), gomock.Any(), gomock.Any()).Return("wamid.7", nil)

	result, err := f.service.RunMode(context.Background(), notification.ModeMainSend)
	require.NoError(t, err)
	require.Len(t, f.telegram.sent, 1)
	assert.Contains(t, f.telegram.sent[0], result.RunID)
	assert.Contains(t, f.telegram.sent[0], "1 sent, 0 failed, 0 skipped")
}

func TestSendTest(t *testing.T) {
	t.Run("unknown address is not logged", func(t *testing.T) {
		f := newCycleFixture(t, DefaultCycleConfig(), sunday)
		f.provider.EXPECT().
			SendTemplate(gomock.Any(), "+15551234567", videoTemplate(senior.LanguageEnglish, "en video 1", "https://videos.example/en/1")).
			Return("wamid.8", nil)

		res, err := f.service.SendTest(context.Background(), "15551234567", senior.LanguageEnglish)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.Logged)
		assert.Equal(t, "+15551234567", res.PhoneNumber)
		assert.Empty(t, f.logs.logs)
	})

	t.Run("enrolled senior is logged", func(t *testing.T) {
		f := newCycleFixture(t, DefaultCycleConfig(), sunday)
		f.seniors.add(9, "+5071234567", senior.LanguageSpanish, true)
		f.provider.EXPECT().SendTemplate(gomock.Any(), "+5071234567", gomock.Any()).Return("wamid.9", nil)

		res, err := f.service.SendTest(context.Background(), "+5071234567", senior.LanguageSpanish)
		require.NoError(t, err)
		assert.True(t, res.Logged)
		require.Len(t, f.logs.logs, 1)
		assert.Equal(t, int64(9), f.logs.logs[0].SeniorID)
		assert.Equal(t, int64(101), f.logs.logs[0].VideoID)
	})

	t.Run("provider failure is reported", func(t *testing.T) {
		f := newCycleFixture(t, DefaultCycleConfig(), sunday)
		f.provider.EXPECT().SendTemplate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("invalid recipient"))

		res, err := f.service.SendTest(context.Background(), "+15550000000", senior.LanguageEnglish)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "invalid recipient", res.Error)
	})
}

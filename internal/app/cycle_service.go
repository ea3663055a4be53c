// internal/app/cycle_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estirar/internal/domain/messaging"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	domainTelegram "estirar/internal/domain/telegram"
	"estirar/internal/domain/video"
	"estirar/internal/infra/errtrack"
	"estirar/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecipientResult is the outcome of one senior within a tick.
type RecipientResult struct {
	SeniorID    int64                   `json:"seniorId"`
	PhoneNumber string                  `json:"phoneNumber"`
	VideoTitle  string                  `json:"videoTitle,omitempty"`
	Success     bool                    `json:"success"`
	MessageID   string                  `json:"messageId,omitempty"`
	Error       string                  `json:"error,omitempty"`
	SkipReason  notification.SkipReason `json:"skipReason,omitempty"`
	SkippedLogs int64                   `json:"skippedLogs,omitempty"`
}

// CycleResult is the structured outcome of a tick.
type CycleResult struct {
	RunID      string                 `json:"runId"`
	Mode       notification.CycleMode `json:"mode"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Recipients []RecipientResult      `json:"results"`
}

// Counts returns how many recipients were sent to, failed and skipped.
func (r *CycleResult) Counts() (sent, failed, skipped int) {
	for _, rr := range r.Recipients {
		switch {
		case rr.SkipReason != "":
			skipped++
		case rr.Success:
			sent++
		default:
			failed++
		}
	}
	return sent, failed, skipped
}

// TestSendResult is the outcome of an operator-triggered test message.
type TestSendResult struct {
	PhoneNumber string `json:"phoneNumber"`
	VideoTitle  string `json:"videoTitle"`
	Success     bool   `json:"success"`
	MessageID   string `json:"messageId,omitempty"`
	Error       string `json:"error,omitempty"`
	Logged      bool   `json:"logged"`
}

// CycleService runs the weekly (or daily) message cycle.
type CycleService struct {
	seniorRepo     senior.Repository
	videoRepo      video.Repository
	logRepo        notification.Repository
	ledger         *LogLedger
	sequencer      *VideoSequencer
	provider       messaging.Provider
	messages       *Messages
	telegramClient domainTelegram.Client // optional, nil disables run summaries
	cfg            CycleConfig
	logger         *logrus.Entry
	now            func() time.Time
}

func NewCycleService(
	sr senior.Repository,
	vr video.Repository,
	lr notification.Repository,
	provider messaging.Provider,
	messages *Messages,
	tc domainTelegram.Client,
	cfg CycleConfig,
	logger *logrus.Entry,
) *CycleService {
	return &CycleService{
		seniorRepo:     sr,
		videoRepo:      vr,
		logRepo:        lr,
		ledger:         NewLogLedger(lr, logger),
		sequencer:      NewVideoSequencer(lr, vr),
		provider:       provider,
		messages:       messages,
		telegramClient: tc,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// Tick runs whatever the calendar says: a main send on the main-send day
// (or every day in the daily cadence), reminders otherwise.
func (s *CycleService) Tick(ctx context.Context) (*CycleResult, error) {
	now := s.now()
	return s.RunMode(ctx, s.cfg.ModeFor(now))
}

// RunMode runs an explicit mode regardless of the calendar.
func (s *CycleService) RunMode(ctx context.Context, mode notification.CycleMode) (*CycleResult, error) {
	result := &CycleResult{
		RunID:      uuid.NewString(),
		Mode:       mode,
		StartedAt:  s.now(),
		Recipients: []RecipientResult{},
	}
	runLogger := s.logger.WithFields(logrus.Fields{"run_id": result.RunID, "mode": mode})
	runLogger.Info("Cycle run started")

	activeSeniors, err := s.seniorRepo.ListActive(ctx)
	if err != nil {
		runLogger.WithError(err).Error("Failed to list active seniors")
		errtrack.CaptureError(err, map[string]interface{}{"operation": "list_active", "run_id": result.RunID})
		return nil, fmt.Errorf("failed to list active seniors: %w", err)
	}
	if len(activeSeniors) == 0 {
		runLogger.Info("No active seniors found. Nothing to send.")
	}

	windowStart := s.cfg.WindowStart(result.StartedAt)
	for _, sn := range activeSeniors {
		if err := ctx.Err(); err != nil {
			runLogger.WithError(err).Warn("Cycle run interrupted")
			break
		}
		recipientLogger := runLogger.WithField("senior_id", sn.ID)
		switch mode {
		case notification.ModeMainSend:
			result.Recipients = append(result.Recipients, s.mainSendTo(ctx, sn, result.StartedAt, recipientLogger))
		default:
			result.Recipients = append(result.Recipients, s.remindOne(ctx, sn, windowStart, recipientLogger))
		}
	}

	result.FinishedAt = s.now()
	sent, failed, skipped := result.Counts()
	runLogger.WithFields(logrus.Fields{
		"sent":    sent,
		"failed":  failed,
		"skipped": skipped,
	}).Info("Cycle run finished")
	metrics.RecordCycleRun(string(mode), result.FinishedAt.Sub(result.StartedAt).Seconds())
	s.notifyOperator(result)
	return result, nil
}

// mainSendTo closes the previous cycle of sn and sends the next video.
func (s *CycleService) mainSendTo(ctx context.Context, sn *senior.Senior, now time.Time, logger *logrus.Entry) RecipientResult {
	res := RecipientResult{SeniorID: sn.ID, PhoneNumber: sn.PhoneNumber}
	logger = logger.WithField("operation", "main_send")

	skipped, err := s.ledger.MarkAbandoned(ctx, sn.ID)
	if err != nil {
		return s.recipientFailure(res, logger, "mark_abandoned", err)
	}
	res.SkippedLogs = skipped

	v, err := s.sequencer.NextVideo(ctx, sn.ID, sn.Language)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			res.Error = "no video found"
			logger.WithError(err).Error("No video available for senior")
			return res
		}
		return s.recipientFailure(res, logger, "next_video", err)
	}
	res.VideoTitle = v.Title

	messageID, sendErr := s.deliverVideo(ctx, sn.PhoneNumber, sn.Language, v)
	metrics.RecordMessage("video", string(sn.Language), sendErr == nil)

	if _, err := s.ledger.RecordSend(ctx, sn.ID, v.ID, now, sendErr == nil, messageID); err != nil {
		return s.recipientFailure(res, logger, "record_send", err)
	}
	if sendErr != nil {
		return s.recipientFailure(res, logger, "send_video", sendErr)
	}

	res.Success = true
	res.MessageID = messageID
	logger.WithFields(logrus.Fields{"video_id": v.ID, "video_title": v.Title}).Info("Video sent")
	return res
}

// remindOne nudges sn about this cycle's video unless there is nothing to remind about.
func (s *CycleService) remindOne(ctx context.Context, sn *senior.Senior, windowStart time.Time, logger *logrus.Entry) RecipientResult {
	res := RecipientResult{SeniorID: sn.ID, PhoneNumber: sn.PhoneNumber}
	logger = logger.WithField("operation", "reminder")

	current, err := s.logRepo.GetLatestLogSince(ctx, sn.ID, windowStart)
	if err != nil {
		if errors.Is(err, notification.ErrLogNotFound) {
			return s.recipientSkip(res, logger, notification.SkipNoWeeklyLog)
		}
		return s.recipientFailure(res, logger, "current_log", err)
	}
	if current.IsCompleted() {
		return s.recipientSkip(res, logger, notification.SkipAlreadyCompleted)
	}

	v, err := s.videoRepo.GetByID(ctx, current.VideoID)
	if err != nil {
		return s.recipientFailure(res, logger, "reminder_video", err)
	}
	res.VideoTitle = v.Title

	messageID, err := s.deliverReminder(ctx, sn.PhoneNumber, sn.Language, v)
	metrics.RecordMessage("reminder", string(sn.Language), err == nil)
	if err != nil {
		return s.recipientFailure(res, logger, "send_reminder", err)
	}

	res.Success = true
	res.MessageID = messageID
	logger.WithField("log_id", current.ID).Info("Reminder sent")
	return res
}

// SendTest sends video #1 of lang to an arbitrary address. The send is logged only
// when the address belongs to an enrolled senior.
func (s *CycleService) SendTest(ctx context.Context, phone string, lang senior.Language) (*TestSendResult, error) {
	to := senior.NormalizePhone(phone)
	logger := s.logger.WithFields(logrus.Fields{"operation": "test_send", "phone": to, "language": lang})

	v, err := s.videoRepo.GetBySequence(ctx, lang, video.FirstSequencePosition)
	if err != nil {
		logger.WithError(err).Error("Failed to get first video for test send")
		return nil, fmt.Errorf("failed to get first video for %s: %w", lang, err)
	}
	res := &TestSendResult{PhoneNumber: to, VideoTitle: v.Title}

	messageID, sendErr := s.deliverVideo(ctx, to, lang, v)
	metrics.RecordMessage("test", string(lang), sendErr == nil)
	res.Success = sendErr == nil
	res.MessageID = messageID
	if sendErr != nil {
		res.Error = sendErr.Error()
		logger.WithError(sendErr).Error("Test message failed")
	}

	matched, err := s.seniorRepo.GetByPhone(ctx, to)
	switch {
	case err == nil:
		if _, err := s.ledger.RecordSend(ctx, matched.ID, v.ID, s.now(), sendErr == nil, messageID); err != nil {
			logger.WithError(err).Error("Failed to log test send")
			return res, fmt.Errorf("failed to log test send: %w", err)
		}
		res.Logged = true
	case errors.Is(err, senior.ErrSeniorNotFound):
		logger.Info("Test address is not an enrolled senior. Sent without logging.")
	default:
		logger.WithError(err).Error("Failed to look up senior for test send")
		return res, fmt.Errorf("failed to look up senior for test send: %w", err)
	}

	if res.Success {
		logger.WithField("video_title", v.Title).Info("Test message sent")
	}
	return res, nil
}

func (s *CycleService) deliverVideo(ctx context.Context, to string, lang senior.Language, v *video.Video) (string, error) {
	if s.cfg.UseTemplates {
		return s.provider.SendTemplate(ctx, to, messaging.Template{
			Name:       s.cfg.VideoTemplate,
			Language:   lang,
			Parameters: []string{v.Title, v.URL},
		})
	}
	return s.provider.SendText(ctx, to, s.messages.VideoMessage(lang, v))
}

func (s *CycleService) deliverReminder(ctx context.Context, to string, lang senior.Language, v *video.Video) (string, error) {
	if s.cfg.UseTemplates {
		return s.provider.SendTemplate(ctx, to, messaging.Template{
			Name:       s.cfg.ReminderTemplate,
			Language:   lang,
			Parameters: []string{v.Title, v.URL},
		})
	}
	return s.provider.SendText(ctx, to, s.messages.ReminderMessage(lang, v))
}

func (s *CycleService) recipientFailure(res RecipientResult, logger *logrus.Entry, step string, err error) RecipientResult {
	res.Success = false
	res.Error = err.Error()
	logger.WithError(err).WithField("step", step).Error("Recipient processing failed")
	errtrack.CaptureError(err, map[string]interface{}{"senior_id": res.SeniorID, "operation": step})
	return res
}

func (s *CycleService) recipientSkip(res RecipientResult, logger *logrus.Entry, reason notification.SkipReason) RecipientResult {
	res.SkipReason = reason
	logger.WithField("reason", reason).Info("Recipient skipped")
	metrics.RecordSkip(string(reason))
	return res
}

// notifyOperator pushes a one-line summary of the run to the operator chat.
func (s *CycleService) notifyOperator(result *CycleResult) {
	if s.telegramClient == nil || s.cfg.OperatorChatID == 0 {
		return
	}
	sent, failed, skipped := result.Counts()
	text := fmt.Sprintf("Cycle %s finished (run %s): %d sent, %d failed, %d skipped.", result.Mode, result.RunID, sent, failed, skipped)
	if err := s.telegramClient.SendMessage(s.cfg.OperatorChatID, text); err != nil {
		s.logger.WithError(err).WithField("run_id", result.RunID).Warn("Failed to send run summary to operator")
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estirar/internal/domain/messaging"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Reasons a reply is not stored.
const (
	DropUnknownSender = "unknown_sender"
	DropNoOpenLog     = "no_open_log"
)

// ReplyOutcome describes what happened to an inbound reply.
type ReplyOutcome struct {
	SeniorID   int64
	LogID      int64
	Completed  bool
	Dropped    bool
	DropReason string
}

// ReplyService handles inbound replies and delivery receipts from the provider webhook.
type ReplyService struct {
	seniorRepo senior.Repository
	ledger     *LogLedger
	classifier *ReplyClassifier
	streaks    *StreakCalculator
	provider   messaging.Provider
	messages   *Messages
	ackEnabled bool
	logger     *logrus.Entry
	now        func() time.Time
}

func NewReplyService(
	sr senior.Repository,
	lr notification.Repository,
	provider messaging.Provider,
	messages *Messages,
	classifierCfg ClassifierConfig,
	cycleCfg CycleConfig,
	logger *logrus.Entry,
) *ReplyService {
	return &ReplyService{
		seniorRepo: sr,
		ledger:     NewLogLedger(lr, logger),
		classifier: NewReplyClassifier(classifierCfg),
		streaks:    NewStreakCalculator(lr, cycleCfg.StreakCutoff, cycleCfg.StreakWindow),
		provider:   provider,
		messages:   messages,
		ackEnabled: cycleCfg.ReplyAckEnabled,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleInbound attributes a reply to the sender's most recent open log.
// Unknown senders and replies without an open log are dropped without error.
func (s *ReplyService) HandleInbound(ctx context.Context, msg messaging.InboundMessage) (*ReplyOutcome, error) {
	from := senior.NormalizePhone(msg.From)
	logger := s.logger.WithFields(logrus.Fields{"operation": "inbound_reply", "phone": from})

	sn, err := s.seniorRepo.GetByPhone(ctx, from)
	if err != nil {
		if errors.Is(err, senior.ErrSeniorNotFound) {
			logger.Info("Message from unknown number")
			metrics.RecordDroppedReply(DropUnknownSender)
			return &ReplyOutcome{Dropped: true, DropReason: DropUnknownSender}, nil
		}
		return nil, fmt.Errorf("failed to look up sender %s: %w", from, err)
	}
	logger = logger.WithField("senior_id", sn.ID)

	text := strings.TrimSpace(msg.Text)
	completed := s.classifier.IsCompletion(text)
	repliedAt := msg.Timestamp
	if repliedAt.IsZero() {
		repliedAt = s.now()
	}

	entry, err := s.ledger.AttachReply(ctx, sn.ID, text, repliedAt, completed)
	if err != nil {
		if errors.Is(err, notification.ErrLogNotFound) {
			logger.Warn("No recent log found to update with reply")
			metrics.RecordDroppedReply(DropNoOpenLog)
			return &ReplyOutcome{SeniorID: sn.ID, Dropped: true, DropReason: DropNoOpenLog}, nil
		}
		return nil, err
	}
	metrics.RecordReply(completed)
	logger.WithFields(logrus.Fields{"log_id": entry.ID, "completed": completed}).Info("Reply logged")

	if completed && s.ackEnabled {
		s.acknowledge(ctx, sn, logger)
	}
	return &ReplyOutcome{SeniorID: sn.ID, LogID: entry.ID, Completed: completed}, nil
}

// acknowledge thanks the senior with their streak. Failures are logged only.
func (s *ReplyService) acknowledge(ctx context.Context, sn *senior.Senior, logger *logrus.Entry) {
	streak, err := s.streaks.CompletionStreak(ctx, sn.ID)
	if err != nil {
		logger.WithError(err).Warn("Failed to compute streak for acknowledgement")
		return
	}
	if _, err := s.provider.SendText(ctx, sn.PhoneNumber, s.messages.CompletionAck(sn.Language, streak)); err != nil {
		logger.WithError(err).Warn("Failed to send completion acknowledgement")
		return
	}
	metrics.RecordMessage("ack", string(sn.Language), true)
}

// HandleStatus applies delivered and failed receipts. Other receipts are ignored:
// 'read' in the ledger means the senior replied, not that WhatsApp showed the message.
func (s *ReplyService) HandleStatus(ctx context.Context, upd messaging.StatusUpdate) error {
	var status notification.DeliveryStatus
	switch upd.Status {
	case "delivered":
		status = notification.StatusDelivered
	case "failed":
		status = notification.StatusFailed
	default:
		return nil
	}

	logger := s.logger.WithFields(logrus.Fields{"operation": "delivery_receipt", "message_id": upd.MessageID, "status": status})
	_, err := s.ledger.ApplyDeliveryReceipt(ctx, upd.MessageID, status)
	switch {
	case err == nil:
		logger.Debug("Delivery receipt applied")
		return nil
	case errors.Is(err, notification.ErrLogNotFound), errors.Is(err, notification.ErrInvalidTransition):
		logger.WithError(err).Debug("Delivery receipt ignored")
		return nil
	default:
		return err
	}
}

package httpapi

import (
	"io"
	"net/http"

	"estirar/internal/infra/errtrack"
	"estirar/internal/infra/whatsapp"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if whatsapp.VerifyWebhook(q.Get("hub.mode"), q.Get("hub.verify_token"), s.opts.VerifyToken) {
		s.logger.Info("Webhook verified successfully")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	s.logger.Warn("Webhook verification failed")
	http.Error(w, "Verification failed", http.StatusForbidden)
}

// handleWebhook answers 200 for everything it could process or deliberately
// ignore. Internal failures get a generic 500 so the provider retries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.WithField("operation", "webhook")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.WithError(err).Error("Failed to read webhook body")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !whatsapp.ValidateSignature(s.opts.AppSecret, body, r.Header.Get(whatsapp.SignatureHeader)) {
		logger.Warn("Webhook signature mismatch")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	events, err := whatsapp.ParseWebhook(body)
	if err != nil {
		// Malformed payloads will not get better on retry.
		logger.WithError(err).Warn("Ignoring unparseable webhook payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, msg := range events.Messages {
		if _, err := s.webhook.HandleInbound(r.Context(), msg); err != nil {
			logger.WithError(err).WithField("message_id", msg.MessageID).Error("Error handling incoming message")
			errtrack.CaptureError(err, map[string]interface{}{"operation": "inbound_reply", "message_id": msg.MessageID})
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	for _, st := range events.Statuses {
		if err := s.webhook.HandleStatus(r.Context(), st); err != nil {
			logger.WithError(err).WithField("message_id", st.MessageID).Error("Error handling delivery status")
			errtrack.CaptureError(err, map[string]interface{}{"operation": "delivery_receipt", "message_id": st.MessageID})
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"estirar/internal/app"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"
	"estirar/internal/infra/scheduler"
)

type sendResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	RunID   string                 `json:"runId,omitempty"`
	Mode    notification.CycleMode `json:"mode,omitempty"`
	Results []app.RecipientResult  `json:"results"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleSend runs a cycle. Without ?mode the calendar decides, as the cron job does.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var (
		result *app.CycleResult
		err    error
	)
	if raw := r.URL.Query().Get("mode"); raw != "" {
		mode, perr := notification.ParseCycleMode(raw)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: perr.Error()})
			return
		}
		result, err = s.runner.RunMode(r.Context(), mode)
	} else {
		result, err = s.runner.Tick(r.Context())
	}

	if err != nil {
		if errors.Is(err, scheduler.ErrCycleInProgress) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		s.logger.WithError(err).WithField("operation", "http_send").Error("Cycle run failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := sendResponse{
		Success: true,
		RunID:   result.RunID,
		Mode:    result.Mode,
		Results: result.Recipients,
		Message: fmt.Sprintf("Processed %d messages", len(result.Recipients)),
	}
	if len(result.Recipients) == 0 {
		resp.Message = "No active seniors to send messages to"
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendTestRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Language    string `json:"language"`
}

func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	var req sendTestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.PhoneNumber == "" {
		req.PhoneNumber = s.opts.TestPhoneNumber
	}
	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "phoneNumber is required"})
		return
	}
	lang := senior.LanguageEnglish
	if req.Language != "" {
		parsed, err := senior.ParseLanguage(req.Language)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		lang = parsed
	}

	res, err := s.tester.SendTest(r.Context(), req.PhoneNumber, lang)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		s.logger.WithError(err).WithField("operation", "http_send_test").Error("Test send failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

package httpapi

import (
	_ "embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"estirar/internal/app"
	"estirar/internal/domain/notification"
	"estirar/internal/infra/metrics"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"fmtTime": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"completed": func(b *bool) string {
		if b == nil {
			return "-"
		}
		if *b {
			return "✅"
		}
		return "no"
	},
}).Parse(dashboardHTML))

type logSenior struct {
	PhoneNumber string `json:"phoneNumber"`
	Language    string `json:"language"`
}

type logVideo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type logDTO struct {
	ID        int64      `json:"id"`
	SentAt    time.Time  `json:"sentAt"`
	Status    string     `json:"status"`
	ReplyText *string    `json:"replyText"`
	RepliedAt *time.Time `json:"repliedAt"`
	Completed *bool      `json:"completed"`
	Senior    logSenior  `json:"senior"`
	Video     logVideo   `json:"video"`
}

func toLogDTO(d *notification.LogDetails) logDTO {
	out := logDTO{
		ID:     d.ID,
		SentAt: d.SentAt,
		Status: string(d.Status),
		Senior: logSenior{PhoneNumber: d.PhoneNumber, Language: string(d.Language)},
		Video:  logVideo{Title: d.VideoTitle, URL: d.VideoURL},
	}
	if d.ReplyText.Valid {
		out.ReplyText = &d.ReplyText.String
	}
	if d.RepliedAt.Valid {
		out.RepliedAt = &d.RepliedAt.Time
	}
	if d.Completed.Valid {
		out.Completed = &d.Completed.Bool
	}
	return out
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return app.DefaultRecentLogsLimit
	}
	return n
}

func (s *Server) recentLogDTOs(r *http.Request) ([]logDTO, error) {
	logs, err := s.admin.RecentLogs(r.Context(), limitParam(r))
	if err != nil {
		return nil, err
	}
	out := make([]logDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toLogDTO(l))
	}
	return out, nil
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.recentLogDTOs(r)
	if err != nil {
		s.logger.WithError(err).WithField("operation", "admin_logs").Error("Error fetching logs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": logs})
}

func (s *Server) handleSeniors(w http.ResponseWriter, r *http.Request) {
	seniors, err := s.admin.SeniorOverview(r.Context())
	if err != nil {
		s.logger.WithError(err).WithField("operation", "admin_seniors").Error("Error fetching seniors")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "seniors": seniors})
}

type dashboardData struct {
	Token   string
	Logs    []logDTO
	Seniors []app.SeniorSummary
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	logs, err := s.recentLogDTOs(r)
	if err != nil {
		s.logger.WithError(err).WithField("operation", "admin_dashboard").Error("Error fetching logs")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	seniors, err := s.admin.SeniorOverview(r.Context())
	if err != nil {
		s.logger.WithError(err).WithField("operation", "admin_dashboard").Error("Error fetching seniors")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := dashboardData{Token: r.URL.Query().Get("token"), Logs: logs, Seniors: seniors}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to render dashboard")
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.opts.MetricsEnabled {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w)
}

// internal/infra/httpapi/server.go
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"estirar/internal/app"
	"estirar/internal/domain/messaging"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"

	"github.com/sirupsen/logrus"
)

// CycleRunner starts cycle runs; implemented by scheduler.CycleRunner.
type CycleRunner interface {
	Tick(ctx context.Context) (*app.CycleResult, error)
	RunMode(ctx context.Context, mode notification.CycleMode) (*app.CycleResult, error)
}

type TestSender interface {
	SendTest(ctx context.Context, phone string, lang senior.Language) (*app.TestSendResult, error)
}

// WebhookHandler consumes parsed webhook events; implemented by app.ReplyService.
type WebhookHandler interface {
	HandleInbound(ctx context.Context, msg messaging.InboundMessage) (*app.ReplyOutcome, error)
	HandleStatus(ctx context.Context, upd messaging.StatusUpdate) error
}

type AdminReader interface {
	RecentLogs(ctx context.Context, limit int) ([]*notification.LogDetails, error)
	SeniorOverview(ctx context.Context) ([]app.SeniorSummary, error)
}

// Options are the secrets and defaults of the HTTP surface.
type Options struct {
	CronSecret      string
	VerifyToken     string
	AppSecret       string // empty disables webhook signature checks
	TestPhoneNumber string
	MetricsEnabled  bool
}

type Server struct {
	runner  CycleRunner
	tester  TestSender
	webhook WebhookHandler
	admin   AdminReader
	opts    Options
	logger  *logrus.Entry
}

func NewServer(runner CycleRunner, tester TestSender, webhook WebhookHandler, admin AdminReader, opts Options, logger *logrus.Entry) *Server {
	return &Server{
		runner:  runner,
		tester:  tester,
		webhook: webhook,
		admin:   admin,
		opts:    opts,
		logger:  logger,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)

	mux.HandleFunc("GET /webhook", s.handleWebhookVerification)
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	mux.Handle("POST /messages/send", s.requireBearer(http.HandlerFunc(s.handleSend)))
	mux.Handle("POST /messages/send-test", s.requireBearer(http.HandlerFunc(s.handleSendTest)))

	mux.Handle("GET /admin", s.requireToken(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("GET /admin/api/logs", s.requireToken(http.HandlerFunc(s.handleLogs)))
	mux.Handle("GET /admin/api/seniors", s.requireToken(http.HandlerFunc(s.handleSeniors)))

	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s.logRequests(mux)
}

// NewHTTPServer builds the listener with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// cycle runs triggered over HTTP can take minutes
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Estirar Connect - WhatsApp Chair Exercise Bot",
		"version": "1.0.0",
	})
}

// requireBearer accepts only "Authorization: Bearer <CRON_SECRET>".
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validSecret(bearerToken(r)) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken also accepts ?token=, so the dashboard can be opened from a browser.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = bearerToken(r)
		}
		if !s.validSecret(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validSecret(token string) bool {
	return s.opts.CronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.CronSecret)) == 1
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

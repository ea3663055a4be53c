package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // zone names must resolve on minimal images

	"estirar/internal/app"
	"estirar/internal/infra/whatsapp"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	Environment string

	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string // empty disables webhook signature checks
	WhatsAppAPIVersion    string
	WhatsAppBaseURL       string

	CronSecret string

	UseTemplates     bool
	TemplateVideo    string
	TemplateReminder string

	CycleCadence     app.Cadence
	MainSendWeekday  time.Weekday
	CycleTimezone    *time.Location
	CronSpecCycle    string
	SendTimeTimezone *time.Location
	CycleTimeout     time.Duration
	CycleLockFile    string

	StreakCutoff       time.Time
	StreakWindow       int
	CompletionKeywords []string
	ClassifierPolicy   app.MatchPolicy
	ReplyAckEnabled    bool

	TelegramToken      string // empty disables the operator console
	OperatorTelegramID int64

	MetricsEnabled    bool
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string

	TestPhoneNumber string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	required := map[string]*string{
		"DATABASE_URL":             &cfg.DatabaseURL,
		"WHATSAPP_ACCESS_TOKEN":    &cfg.WhatsAppAccessToken,
		"WHATSAPP_PHONE_NUMBER_ID": &cfg.WhatsAppPhoneNumberID,
		"WHATSAPP_VERIFY_TOKEN":    &cfg.WhatsAppVerifyToken,
		"CRON_SECRET":              &cfg.CronSecret,
	}
	for _, name := range []string{"DATABASE_URL", "WHATSAPP_ACCESS_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_VERIFY_TOKEN", "CRON_SECRET"} {
		*required[name] = os.Getenv(name)
		if *required[name] == "" {
			return nil, fmt.Errorf("%s is not set", name)
		}
	}

	cfg.Port = getenv("PORT", "3000")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.WhatsAppAppSecret = os.Getenv("WHATSAPP_APP_SECRET")
	cfg.WhatsAppAPIVersion = getenv("WHATSAPP_API_VERSION", whatsapp.DefaultAPIVersion)
	cfg.WhatsAppBaseURL = getenv("WHATSAPP_API_BASE_URL", whatsapp.DefaultBaseURL)

	if cfg.UseTemplates, err = getBool("USE_TEMPLATES", true); err != nil {
		return nil, err
	}
	cfg.TemplateVideo = getenv("TEMPLATE_VIDEO", "weekly_chair_exercise")
	cfg.TemplateReminder = getenv("TEMPLATE_REMINDER", "chair_exercise_reminder")

	if cfg.CycleCadence, err = app.ParseCadence(getenv("CYCLE_CADENCE", string(app.CadenceWeekly))); err != nil {
		return nil, fmt.Errorf("invalid CYCLE_CADENCE: %w", err)
	}
	if cfg.MainSendWeekday, err = app.ParseWeekday(getenv("MAIN_SEND_WEEKDAY", "sunday")); err != nil {
		return nil, fmt.Errorf("invalid MAIN_SEND_WEEKDAY: %w", err)
	}

	cfg.CronSpecCycle = getenv("CRON_SPEC_CYCLE", "0 9 * * *") // Default: 9 AM daily
	if cfg.SendTimeTimezone, err = time.LoadLocation(getenv("SEND_TIME_TIMEZONE", "America/New_York")); err != nil {
		return nil, fmt.Errorf("invalid SEND_TIME_TIMEZONE: %w", err)
	}
	// the weekday of a tick must be the one the cron fired on
	cfg.CycleTimezone = cfg.SendTimeTimezone
	if v := os.Getenv("CYCLE_TIMEZONE"); v != "" {
		if cfg.CycleTimezone, err = time.LoadLocation(v); err != nil {
			return nil, fmt.Errorf("invalid CYCLE_TIMEZONE: %w", err)
		}
	}
	if cfg.CycleTimeout, err = time.ParseDuration(getenv("CYCLE_TIMEOUT", "10m")); err != nil {
		return nil, fmt.Errorf("invalid CYCLE_TIMEOUT: %w", err)
	}
	cfg.CycleLockFile = getenv("CYCLE_LOCK_FILE", os.TempDir()+"/estirar-cycle.lock")

	cfg.StreakCutoff = app.DefaultStreakCutoff
	if v := os.Getenv("STREAK_CUTOFF"); v != "" {
		if cfg.StreakCutoff, err = time.Parse(time.RFC3339, v); err != nil {
			if cfg.StreakCutoff, err = time.Parse(time.DateOnly, v); err != nil {
				return nil, fmt.Errorf("invalid STREAK_CUTOFF: %w", err)
			}
		}
	}
	if cfg.StreakWindow, err = getInt("STREAK_WINDOW", app.DefaultStreakWindow); err != nil {
		return nil, err
	}

	cfg.CompletionKeywords = app.DefaultCompletionKeywords
	if v := os.Getenv("COMPLETION_KEYWORDS"); v != "" {
		cfg.CompletionKeywords = splitList(v)
	}
	if cfg.ClassifierPolicy, err = app.ParseMatchPolicy(getenv("CLASSIFIER_POLICY", string(app.MatchWord))); err != nil {
		return nil, fmt.Errorf("invalid CLASSIFIER_POLICY: %w", err)
	}
	if cfg.ReplyAckEnabled, err = getBool("REPLY_ACK_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if v := os.Getenv("OPERATOR_TELEGRAM_ID"); v != "" {
		if cfg.OperatorTelegramID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid OPERATOR_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.OperatorTelegramID == 0 {
		return nil, fmt.Errorf("OPERATOR_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	if cfg.MetricsEnabled, err = getBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.SentryEnvironment = getenv("SENTRY_ENVIRONMENT", cfg.Environment)
	cfg.SentryRelease = os.Getenv("SENTRY_RELEASE")

	cfg.TestPhoneNumber = os.Getenv("TEST_PHONE_NUMBER")

	return cfg, nil
}

// CycleConfig is the orchestrator view of the configuration.
func (c *AppConfig) CycleConfig() app.CycleConfig {
	return app.CycleConfig{
		Cadence:          c.CycleCadence,
		MainSendWeekday:  c.MainSendWeekday,
		Location:         c.CycleTimezone,
		UseTemplates:     c.UseTemplates,
		VideoTemplate:    c.TemplateVideo,
		ReminderTemplate: c.TemplateReminder,
		StreakCutoff:     c.StreakCutoff,
		StreakWindow:     c.StreakWindow,
		ReplyAckEnabled:  c.ReplyAckEnabled,
		OperatorChatID:   c.OperatorTelegramID,
	}
}

func (c *AppConfig) ClassifierConfig() app.ClassifierConfig {
	return app.ClassifierConfig{Keywords: c.CompletionKeywords, Policy: c.ClassifierPolicy}
}

func (c *AppConfig) WhatsAppConfig() whatsapp.Config {
	return whatsapp.Config{
		BaseURL:       c.WhatsAppBaseURL,
		APIVersion:    c.WhatsAppAPIVersion,
		PhoneNumberID: c.WhatsAppPhoneNumberID,
		AccessToken:   c.WhatsAppAccessToken,
	}
}

func getenv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func getBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func getInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

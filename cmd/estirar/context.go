package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"estirar/internal/app"
	domainTelegram "estirar/internal/domain/telegram"
	"estirar/internal/infra/config"
	"estirar/internal/infra/database"
	"estirar/internal/infra/errtrack"
	"estirar/internal/infra/logger"
	"estirar/internal/infra/metrics"
	"estirar/internal/infra/scheduler"
	"estirar/internal/infra/telegram"
	"estirar/internal/infra/whatsapp"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const whatsappHTTPTimeout = 30 * time.Second

type commandContext struct {
	configOnce sync.Once
	config     *config.AppConfig
	configErr  error

	db *sql.DB
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureConfig loads the configuration once and initialises the global
// logger, metrics and error tracking from it.
func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load configuration: %w", err)
			return
		}
		logger.Init(cfg)
		metrics.Init(cfg.MetricsEnabled)
		if err := errtrack.Init(errtrack.Options{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     cfg.SentryRelease,
		}); err != nil {
			logger.Log.WithError(err).Warn("Error tracking disabled")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openDB() (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Component("main").Info("Database connection established successfully.")
	c.db = db
	return db, nil
}

func (c *commandContext) close() {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

// services is the wired application graph shared by the commands.
type services struct {
	seniorRepo *database.PostgresSeniorRepository
	videoRepo  *database.PostgresVideoRepository
	logRepo    *database.PostgresLogRepository

	cycle   *app.CycleService
	replies *app.ReplyService
	admin   *app.AdminService
	runner  *scheduler.CycleRunner
}

// buildServices wires repositories and services. tc may be nil, which disables
// operator run summaries.
func (c *commandContext) buildServices(tc domainTelegram.Client) (*services, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := c.openDB()
	if err != nil {
		return nil, err
	}

	messages, err := app.LoadMessages()
	if err != nil {
		return nil, err
	}
	provider := whatsapp.NewClient(cfg.WhatsAppConfig(), &http.Client{Timeout: whatsappHTTPTimeout})

	svc := &services{
		seniorRepo: database.NewPostgresSeniorRepository(db),
		videoRepo:  database.NewPostgresVideoRepository(db),
		logRepo:    database.NewPostgresLogRepository(db),
	}
	cycleCfg := cfg.CycleConfig()

	svc.cycle = app.NewCycleService(svc.seniorRepo, svc.videoRepo, svc.logRepo, provider, messages, tc, cycleCfg, logger.Component("cycle"))
	svc.replies = app.NewReplyService(svc.seniorRepo, svc.logRepo, provider, messages, cfg.ClassifierConfig(), cycleCfg, logger.Component("replies"))
	svc.admin = app.NewAdminService(svc.seniorRepo, svc.logRepo, cycleCfg)
	svc.runner = scheduler.NewCycleRunner(svc.cycle, cfg.CycleLockFile, cfg.CycleTimeout, logger.Component("cycle_runner"))
	return svc, nil
}

// newOperatorBot returns nil when no Telegram token is configured.
func newOperatorBot(cfg *config.AppConfig, log *logrus.Entry) (*telebot.Bot, error) {
	if cfg.TelegramToken == "" {
		return nil, nil
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

// operatorClient wraps bot for run summaries, keeping the interface nil when bot is nil.
func operatorClient(bot *telebot.Bot) domainTelegram.Client {
	if bot == nil {
		return nil
	}
	return telegram.NewTelebotAdapter(bot)
}

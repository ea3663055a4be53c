package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estirar/internal/infra/database"
	"estirar/internal/infra/httpapi"
	"estirar/internal/infra/logger"
	"estirar/internal/infra/scheduler"
	"estirar/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Run the webhook server, the cycle scheduler and the operator bot",
		Annotations: map[string]string{"longRunning": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mainLogger := logger.Component("main")

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(runCtx, db); err != nil {
				return err
			}
			mainLogger.Info("Database schema is up to date.")

			bot, err := newOperatorBot(cfg, logger.Component("telegram"))
			if err != nil {
				return err
			}
			svc, err := ctx.buildServices(operatorClient(bot))
			if err != nil {
				return err
			}

			var cycleScheduler *scheduler.CycleScheduler
			if !noScheduler {
				cycleScheduler = scheduler.NewCycleScheduler(svc.runner, logger.Component("scheduler"), cfg.CronSpecCycle, cfg.SendTimeTimezone)
				if err := cycleScheduler.Start(); err != nil {
					return err
				}
				mainLogger.WithField("next_run", cycleScheduler.Next()).Info("Cycle scheduler running.")
			}

			if bot != nil {
				commands := telegram.NewOperatorCommands(svc.admin, svc.cycle)
				telegram.RegisterBotCommands(bot, commands, cfg.OperatorTelegramID, logger.Component("telegram"))
				telegram.RegisterOperatorHandlers(runCtx, bot, commands, cfg.OperatorTelegramID, logger.Component("telegram"))
				// Start bot in a goroutine so it doesn't block graceful shutdown handling
				go bot.Start()
				mainLogger.WithField("operator_id", cfg.OperatorTelegramID).Info("Operator bot started.")
			}

			api := httpapi.NewServer(svc.runner, svc.cycle, svc.replies, svc.admin, httpapi.Options{
				CronSecret:      cfg.CronSecret,
				VerifyToken:     cfg.WhatsAppVerifyToken,
				AppSecret:       cfg.WhatsAppAppSecret,
				TestPhoneNumber: cfg.TestPhoneNumber,
				MetricsEnabled:  cfg.MetricsEnabled,
			}, logger.Component("http"))
			server := httpapi.NewHTTPServer(net.JoinHostPort("", cfg.Port), api.Handler())
			server.BaseContext = func(net.Listener) context.Context { return runCtx }

			serverErr := make(chan error, 1)
			go func() {
				mainLogger.WithFields(logrus.Fields{"port": cfg.Port, "environment": cfg.Environment}).Info("HTTP server listening.")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			shutdown := func() {
				if cycleScheduler != nil {
					cycleScheduler.Stop()
				}
				if bot != nil {
					bot.Stop()
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
				}
			}

			select {
			case <-runCtx.Done():
				mainLogger.Info("Shutting down application...")
			case err, ok := <-serverErr:
				if ok {
					mainLogger.WithError(err).Error("HTTP server failed")
					shutdown()
					return err
				}
			}

			shutdown()
			mainLogger.Info("Application shut down gracefully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve HTTP only; cycles are triggered externally via POST /messages/send")
	return cmd
}

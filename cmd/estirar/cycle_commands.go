package main

import (
	"errors"
	"fmt"
	"strings"

	"estirar/internal/app"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/infra/logger"
	"estirar/internal/infra/scheduler"

	"github.com/spf13/cobra"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Run one cycle tick now (main send or reminders)",
		Long: "Run one cycle tick. Without --mode the calendar decides: main send on the main-send day,\n" +
			"reminders on the other days. The run holds the cycle lock, so it never overlaps the scheduler.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var mode notification.CycleMode
			if strings.TrimSpace(modeFlag) != "" {
				if mode, err = notification.ParseCycleMode(modeFlag); err != nil {
					return err
				}
			}

			bot, err := newOperatorBot(cfg, logger.Component("telegram"))
			if err != nil {
				logger.Component("main").WithError(err).Warn("Run summary will not be posted to Telegram")
				bot = nil
			}
			svc, err := ctx.buildServices(operatorClient(bot))
			if err != nil {
				return err
			}

			var result *app.CycleResult
			if mode == "" {
				result, err = svc.runner.Tick(cmd.Context())
			} else {
				result, err = svc.runner.RunMode(cmd.Context(), mode)
			}
			if err != nil {
				if errors.Is(err, scheduler.ErrCycleInProgress) {
					return fmt.Errorf("another cycle run holds %s; try again later", cfg.CycleLockFile)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Recipients) > 0 {
				fmt.Fprintln(out, renderTable(recipientTable(result)))
			}
			fmt.Fprintln(out, summarizeResult(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "Force a mode: main or reminder")
	return cmd
}

func newTestSendCommand(ctx *commandContext) *cobra.Command {
	var langFlag string

	cmd := &cobra.Command{
		Use:   "test-send <phone>",
		Short: "Send video #1 to any phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := senior.ParseLanguage(langFlag)
			if err != nil {
				return err
			}
			svc, err := ctx.buildServices(nil)
			if err != nil {
				return err
			}

			res, err := svc.cycle.SendTest(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Success {
				return fmt.Errorf("test message to %s failed: %s", res.PhoneNumber, res.Error)
			}
			fmt.Fprintf(out, "Sent %q to %s (message id %s)\n", res.VideoTitle, res.PhoneNumber, res.MessageID)
			if res.Logged {
				fmt.Fprintln(out, "Logged against the enrolled senior.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&langFlag, "lang", string(senior.LanguageEnglish), "Language of the test video: en or es")
	return cmd
}

func summarizeResult(result *app.CycleResult) string {
	sent, failed, skipped := result.Counts()
	if len(result.Recipients) == 0 {
		return fmt.Sprintf("%s run %s: no active seniors to send messages to", result.Mode, result.RunID)
	}
	return fmt.Sprintf("%s run %s: %d sent, %d failed, %d skipped", result.Mode, result.RunID, sent, failed, skipped)
}

func recipientTable(result *app.CycleResult) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Senior", "Phone", "Video", "Outcome", "Detail"}
	rows := make([][]string, 0, len(result.Recipients))
	for _, r := range result.Recipients {
		outcome, detail := "sent", r.MessageID
		switch {
		case r.SkipReason != "":
			outcome, detail = "skipped", string(r.SkipReason)
		case !r.Success:
			outcome, detail = "failed", r.Error
		}
		if r.SkippedLogs > 0 {
			detail = strings.TrimSpace(fmt.Sprintf("%s (%d abandoned)", detail, r.SkippedLogs))
		}
		rows = append(rows, []string{fmt.Sprintf("%d", r.SeniorID), r.PhoneNumber, r.VideoTitle, outcome, detail})
	}
	return headers, rows, []columnAlignment{alignRight}
}

package main

import (
	"fmt"
	"strconv"

	"estirar/internal/app"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func newAddSeniorCommand(ctx *commandContext) *cobra.Command {
	var langFlag string

	cmd := &cobra.Command{
		Use:   "add-senior <phone>",
		Short: "Enroll a senior, or re-activate an enrolled one",
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
			sn, err := svc.admin.EnrollSenior(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Senior %s enrolled (id %d, language %s)\n", sn.PhoneNumber, sn.ID, sn.Language)
			return nil
		},
	}

	cmd.Flags().StringVar(&langFlag, "lang", string(senior.LanguageEnglish), "Preferred language: en or es")
	return cmd
}

func newSeniorsCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "seniors",
		Short: "List seniors with their completion streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.buildServices(nil)
			if err != nil {
				return err
			}
			overview, err := svc.admin.SeniorOverview(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				overview = activeOnly(overview)
			}
			if len(overview) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No seniors found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(seniorTable(overview)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include inactive seniors")
	return cmd
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent sends and replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			svc, err := ctx.buildServices(nil)
			if err != nil {
				return err
			}
			logs, err := svc.admin.RecentLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages sent yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(logTable(logs)))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", app.DefaultRecentLogsLimit, "Number of logs to show")
	return cmd
}

func activeOnly(in []app.SeniorSummary) []app.SeniorSummary {
	out := make([]app.SeniorSummary, 0, len(in))
	for _, s := range in {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

func seniorTable(overview []app.SeniorSummary) ([]string, [][]string, []columnAlignment) {
	headers := []string{"ID", "Phone", "Language", "Active", "Streak", "Enrolled"}
	rows := make([][]string, 0, len(overview))
	for _, s := range overview {
		enrolled := "-"
		if !s.CreatedAt.IsZero() {
			enrolled = s.CreatedAt.UTC().Format(timeLayout)
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.PhoneNumber,
			string(s.Language),
			yesNo(s.IsActive),
			strconv.Itoa(s.Streak),
			enrolled,
		})
	}
	return headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}
}

func logTable(logs []*notification.LogDetails) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Sent", "Phone", "Video", "Status", "Reply", "Completed"}
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		reply := ""
		if l.ReplyText.Valid {
			reply = l.ReplyText.String
		}
		completed := "-"
		if l.Completed.Valid {
			completed = yesNo(l.Completed.Bool)
		}
		rows = append(rows, []string{
			l.SentAt.UTC().Format(timeLayout),
			l.PhoneNumber,
			l.VideoTitle,
			string(l.Status),
			reply,
			completed,
		})
	}
	return headers, rows, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

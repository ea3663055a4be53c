package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"estirar/internal/app"
	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"
)

// SeniorAdmin is the part of app.AdminService the console uses.
type SeniorAdmin interface {
	EnrollSenior(ctx context.Context, phone string, lang senior.Language) (*senior.Senior, error)
	SetActive(ctx context.Context, phone string, active bool) (*senior.Senior, error)
	ListSeniors(ctx context.Context, activeOnly bool) ([]*senior.Senior, error)
	RecentLogs(ctx context.Context, limit int) ([]*notification.LogDetails, error)
	Streak(ctx context.Context, phone string) (*app.SeniorSummary, error)
}

type TestSender interface {
	SendTest(ctx context.Context, phone string, lang senior.Language) (*app.TestSendResult, error)
}

const defaultLogsInChat = 10

// OperatorCommands turns command arguments into reply texts. It knows nothing
// about Telegram so the handlers stay thin.
type OperatorCommands struct {
	admin  SeniorAdmin
	tester TestSender
}

func NewOperatorCommands(admin SeniorAdmin, tester TestSender) *OperatorCommands {
	return &OperatorCommands{admin: admin, tester: tester}
}

func (oc *OperatorCommands) Help() string {
	var b strings.Builder
	b.WriteString("Operator commands:\n\n")
	b.WriteString("/add_senior <phone> <en|es> - enroll a senior (or re-activate)\n")
	b.WriteString("/deactivate <phone> - stop messages to a senior\n")
	b.WriteString("/activate <phone> - resume messages to a senior\n")
	b.WriteString("/list_seniors [active|all] - list seniors\n")
	b.WriteString("/logs [n] - latest sends and replies\n")
	b.WriteString("/test_send <phone> [en|es] - send video #1 to any number\n")
	b.WriteString("/streak <phone> - completion streak of a senior\n")
	b.WriteString("/help - show this message")
	return b.String()
}

func (oc *OperatorCommands) AddSenior(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "Invalid format. Use: /add_senior <phone> <en|es>"
	}
	lang, err := senior.ParseLanguage(args[1])
	if err != nil {
		return "Language must be 'en' or 'es'."
	}
	sn, err := oc.admin.EnrollSenior(ctx, args[0], lang)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPhone) {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Failed to enroll senior: %s", err.Error())
	}
	return fmt.Sprintf("Senior %s (ID: %d, %s) enrolled and active.", sn.PhoneNumber, sn.ID, sn.Language)
}

func (oc *OperatorCommands) SetActive(ctx context.Context, args []string, active bool) string {
	command := "/deactivate"
	if active {
		command = "/activate"
	}
	if len(args) != 1 {
		return fmt.Sprintf("Invalid format. Use: %s <phone>", command)
	}

	sn, err := oc.admin.SetActive(ctx, args[0], active)
	switch {
	case err == nil:
		if active {
			return fmt.Sprintf("Senior %s activated.", sn.PhoneNumber)
		}
		return fmt.Sprintf("Senior %s deactivated.", sn.PhoneNumber)
	case errors.Is(err, senior.ErrSeniorNotFound):
		return fmt.Sprintf("No senior enrolled with phone %s.", args[0])
	case errors.Is(err, app.ErrSeniorAlreadyActive):
		return fmt.Sprintf("Senior %s is already active.", sn.PhoneNumber)
	case errors.Is(err, app.ErrSeniorAlreadyInactive):
		return fmt.Sprintf("Senior %s is already inactive.", sn.PhoneNumber)
	case errors.Is(err, app.ErrInvalidPhone):
		return "Error: " + err.Error()
	default:
		return fmt.Sprintf("Failed to update senior: %s", err.Error())
	}
}

// ListSeniors returns the reply text and the listed seniors, for inline buttons.
func (oc *OperatorCommands) ListSeniors(ctx context.Context, args []string) (string, []*senior.Senior) {
	listType := "active"
	if len(args) > 0 {
		listType = strings.ToLower(args[0])
	}
	var title string
	switch listType {
	case "active":
		title = "Active seniors"
	case "all":
		title = "All seniors"
	default:
		return "Invalid argument. Use 'active' or 'all', or leave empty for active seniors.", nil
	}

	seniors, err := oc.admin.ListSeniors(ctx, listType == "active")
	if err != nil {
		return fmt.Sprintf("Failed to list seniors: %s", err.Error()), nil
	}
	if len(seniors) == 0 {
		if listType == "active" {
			return "No active seniors.", nil
		}
		return "No seniors enrolled.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ---\n", title)
	for _, s := range seniors {
		status := "inactive"
		if s.IsActive {
			status = "active"
		}
		fmt.Fprintf(&b, "ID: %d, Phone: %s, Language: %s, Status: %s\n", s.ID, s.PhoneNumber, s.Language, status)
	}
	return b.String(), seniors
}

func (oc *OperatorCommands) Logs(ctx context.Context, args []string) string {
	limit := defaultLogsInChat
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 || n > app.DefaultRecentLogsLimit {
			return fmt.Sprintf("Count must be a number between 1 and %d.", app.DefaultRecentLogsLimit)
		}
		limit = n
	}
	logs, err := oc.admin.RecentLogs(ctx, limit)
	if err != nil {
		return fmt.Sprintf("Failed to load logs: %s", err.Error())
	}
	if len(logs) == 0 {
		return "No messages sent yet."
	}

	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s %s [%s] %s", l.SentAt.UTC().Format("2006-01-02 15:04"), l.PhoneNumber, l.Status, l.VideoTitle)
		if l.ReplyText.Valid {
			fmt.Fprintf(&b, " - reply: %q", l.ReplyText.String)
		}
		if l.IsCompleted() {
			b.WriteString(" ✅")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (oc *OperatorCommands) TestSend(ctx context.Context, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Invalid format. Use: /test_send <phone> [en|es]"
	}
	lang := senior.LanguageEnglish
	if len(args) == 2 {
		parsed, err := senior.ParseLanguage(args[1])
		if err != nil {
			return "Language must be 'en' or 'es'."
		}
		lang = parsed
	}

	res, err := oc.tester.SendTest(ctx, args[0], lang)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			return fmt.Sprintf("No first video in the %s catalog. Run the seed first.", lang)
		}
		return fmt.Sprintf("Test send failed: %s", err.Error())
	}
	if !res.Success {
		return fmt.Sprintf("WhatsApp rejected the test message to %s: %s", res.PhoneNumber, res.Error)
	}
	reply := fmt.Sprintf("Test message %q sent to %s (message id %s).", res.VideoTitle, res.PhoneNumber, res.MessageID)
	if res.Logged {
		reply += " Logged for the enrolled senior."
	}
	return reply
}

func (oc *OperatorCommands) Streak(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Invalid format. Use: /streak <phone>"
	}
	summary, err := oc.admin.Streak(ctx, args[0])
	if err != nil {
		if errors.Is(err, senior.ErrSeniorNotFound) {
			return fmt.Sprintf("No senior enrolled with phone %s.", args[0])
		}
		return fmt.Sprintf("Failed to compute streak: %s", err.Error())
	}
	return fmt.Sprintf("%s has completed %d cycle(s) in a row.", summary.PhoneNumber, summary.Streak)
}

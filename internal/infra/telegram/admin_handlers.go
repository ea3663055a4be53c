package telegram

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// toggleSeniorUnique identifies the inline activate/deactivate buttons under /list_seniors.
const toggleSeniorUnique = "toggle_senior"

const maxToggleButtons = 20

// RegisterOperatorHandlers registers the operator console commands.
// Every command is restricted to the configured operator Telegram ID.
func RegisterOperatorHandlers(ctx context.Context, b *telebot.Bot, commands *OperatorCommands, operatorTelegramID int64, baseLogger *logrus.Entry) {
	guarded := func(name string, run func(c telebot.Context, log *logrus.Entry) error) {
		b.Handle(name, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   name,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if c.Sender().ID != operatorTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send("Error: you are not allowed to run this command.")
			}
			return run(c, handlerLogger)
		})
	}

	guarded("/add_senior", func(c telebot.Context, log *logrus.Entry) error {
		reply := commands.AddSenior(ctx, c.Args())
		log.WithField("reply", reply).Debug("Replying")
		return c.Send(reply)
	})

	guarded("/deactivate", func(c telebot.Context, _ *logrus.Entry) error {
		return c.Send(commands.SetActive(ctx, c.Args(), false))
	})

	guarded("/activate", func(c telebot.Context, _ *logrus.Entry) error {
		return c.Send(commands.SetActive(ctx, c.Args(), true))
	})

	guarded("/list_seniors", func(c telebot.Context, log *logrus.Entry) error {
		reply, seniors := commands.ListSeniors(ctx, c.Args())
		if len(seniors) == 0 || len(seniors) > maxToggleButtons {
			return c.Send(reply)
		}

		markup := &telebot.ReplyMarkup{}
		rows := make([]telebot.Row, 0, len(seniors))
		for _, s := range seniors {
			label, action := "Deactivate "+s.PhoneNumber, toggleOff
			if !s.IsActive {
				label, action = "Activate "+s.PhoneNumber, toggleOn
			}
			rows = append(rows, markup.Row(markup.Data(label, toggleSeniorUnique, action, s.PhoneNumber)))
		}
		markup.Inline(rows...)
		log.WithField("count", len(seniors)).Info("Listed seniors")
		return c.Send(reply, markup)
	})

	guarded("/logs", func(c telebot.Context, _ *logrus.Entry) error {
		return c.Send(commands.Logs(ctx, c.Args()), &telebot.SendOptions{DisableWebPagePreview: true})
	})

	guarded("/test_send", func(c telebot.Context, log *logrus.Entry) error {
		reply := commands.TestSend(ctx, c.Args())
		log.WithField("reply", reply).Info("Test send finished")
		return c.Send(reply)
	})

	guarded("/streak", func(c telebot.Context, _ *logrus.Entry) error {
		return c.Send(commands.Streak(ctx, c.Args()))
	})

	b.Handle(&telebot.InlineButton{Unique: toggleSeniorUnique}, func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":       "toggle_senior_callback",
			"sender_id":     c.Sender().ID,
			"callback_data": c.Callback().Data,
		})

		if c.Sender().ID != operatorTelegramID {
			handlerLogger.Warn("Unauthorized callback")
			return c.Respond(&telebot.CallbackResponse{Text: "Not allowed."})
		}

		active, phone, ok := parseToggleData(c.Callback().Data)
		if !ok {
			handlerLogger.Warn("Invalid callback data")
			return c.Respond(&telebot.CallbackResponse{Text: "Invalid button."})
		}

		reply := commands.SetActive(ctx, []string{phone}, active)
		handlerLogger.WithField("reply", reply).Info("Senior toggled from list")

		if err := c.Respond(&telebot.CallbackResponse{Text: reply}); err != nil {
			handlerLogger.WithError(err).Warn("Failed to answer callback")
		}
		return c.Edit(c.Message().Text + "\n\n" + reply)
	})
}

const (
	toggleOn  = "on"
	toggleOff = "off"
)

// parseToggleData parses the "on|<phone>" / "off|<phone>" payload of a toggle button.
func parseToggleData(data string) (active bool, phone string, ok bool) {
	action, phone, found := strings.Cut(data, "|")
	if !found || strings.TrimSpace(phone) == "" {
		return false, "", false
	}
	switch action {
	case toggleOn:
		return true, phone, true
	case toggleOff:
		return false, phone, true
	default:
		return false, "", false
	}
}

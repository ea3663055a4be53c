package app

import (
	"embed"
	"fmt"
	"strings"

	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"

	"github.com/leonelquinteros/gotext"
)

//go:embed locales/*.po
var localeFS embed.FS

// Messages renders the free-form texts sent when templates are disabled,
// and the completion acknowledgement.
type Messages struct {
	catalogs map[senior.Language]*gotext.Po
}

// LoadMessages parses the embedded catalogs for every supported language.
func LoadMessages() (*Messages, error) {
	m := &Messages{catalogs: make(map[senior.Language]*gotext.Po)}
	for _, lang := range []senior.Language{senior.LanguageEnglish, senior.LanguageSpanish} {
		data, err := localeFS.ReadFile(fmt.Sprintf("locales/%s.po", lang))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s catalog: %w", lang, err)
		}
		po := gotext.NewPo()
		po.Parse(data)
		m.catalogs[lang] = po
	}
	return m, nil
}

func (m *Messages) po(lang senior.Language) *gotext.Po {
	if po, ok := m.catalogs[lang]; ok {
		return po
	}
	return m.catalogs[senior.LanguageEnglish]
}

// VideoMessage is the cycle-start text for v.
func (m *Messages) VideoMessage(lang senior.Language, v *video.Video) string {
	po := m.po(lang)
	return strings.Join([]string{
		po.Get("video.greeting"),
		po.Get("video.intro"),
		fmt.Sprintf(po.Get("video.title"), v.Title),
		v.URL,
		po.Get("video.hint"),
	}, "\n\n")
}

// ReminderMessage nudges a senior who has not completed v yet.
func (m *Messages) ReminderMessage(lang senior.Language, v *video.Video) string {
	po := m.po(lang)
	return strings.Join([]string{
		po.Get("reminder.greeting"),
		po.Get("reminder.intro"),
		fmt.Sprintf(po.Get("video.title"), v.Title),
		v.URL,
		po.Get("video.hint"),
	}, "\n\n")
}

// CompletionAck thanks the senior and shows the current streak.
func (m *Messages) CompletionAck(lang senior.Language, streak int) string {
	po := m.po(lang)
	return po.Get("ack.thanks") + "\n" + fmt.Sprintf(po.Get("ack.streak"), streak)
}

package senior

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Language is the preferred language of a senior. It also selects the video catalog.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// ErrSeniorNotFound is returned by repositories when no senior matches the lookup.
var ErrSeniorNotFound = errors.New("senior not found")

// ErrUnsupportedLanguage is returned by ParseLanguage.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Senior is a registered recipient of the exercise videos.
type Senior struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"` // unique, always stored with a leading '+'
	Language    Language  `json:"language"`
	IsActive    bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ParseLanguage accepts "en" or "es" in any case.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageSpanish:
		return LanguageSpanish, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}
}

// NormalizePhone converts an address as delivered by the provider ("13055629885")
// into the stored form ("+13055629885").
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}

package app

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchPolicy selects how a reply is compared against the completion keywords.
type MatchPolicy string

const (
	// MatchExact requires the whole reply to be a keyword.
	MatchExact MatchPolicy = "exact"
	// MatchWord requires a keyword to appear as whole word(s) inside the reply.
	MatchWord MatchPolicy = "word"
	// MatchSubstring accepts a keyword anywhere, including inside other words ("fin" in "final").
	MatchSubstring MatchPolicy = "substring"
)

// DefaultCompletionKeywords covers the English and Spanish replies seniors use.
var DefaultCompletionKeywords = []string{
	"done", "complete", "completed",
	"fin", "listo", "hecho", "terminé", "lo hice",
}

// ClassifierConfig configures the ReplyClassifier.
type ClassifierConfig struct {
	Keywords []string
	Policy   MatchPolicy // defaults to MatchWord
}

// ParseMatchPolicy accepts exact, word or substring.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch p := MatchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MatchExact, MatchWord, MatchSubstring:
		return p, nil
	default:
		return "", fmt.Errorf("unknown classifier policy %q", s)
	}
}

// ReplyClassifier decides whether an inbound reply means the exercise was done.
type ReplyClassifier struct {
	keywords []string // normalised
	policy   MatchPolicy
}

func NewReplyClassifier(cfg ClassifierConfig) *ReplyClassifier {
	source := cfg.Keywords
	if len(source) == 0 {
		source = DefaultCompletionKeywords
	}
	policy := cfg.Policy
	if policy == "" {
		policy = MatchWord
	}

	keywords := make([]string, 0, len(source))
	for _, kw := range source {
		if n := normalizeReply(kw); n != "" {
			keywords = append(keywords, n)
		}
	}
	return &ReplyClassifier{keywords: keywords, policy: policy}
}

// IsCompletion reports whether text signals exercise completion.
func (c *ReplyClassifier) IsCompletion(text string) bool {
	reply := normalizeReply(text)
	if reply == "" {
		return false
	}
	padded := " " + reply + " "
	for _, kw := range c.keywords {
		switch c.policy {
		case MatchExact:
			if reply == kw {
				return true
			}
		case MatchSubstring:
			if strings.Contains(reply, kw) {
				return true
			}
		default:
			if strings.Contains(padded, " "+kw+" ") {
				return true
			}
		}
	}
	return false
}

// normalizeReply folds case, strips accents and turns punctuation and emoji
// into single spaces, so "¡Terminé! ✅" becomes "termine".
func normalizeReply(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

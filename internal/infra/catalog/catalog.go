// Package catalog holds the exercise video catalog and seeds it into the store.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

//go:embed videos.toml
var defaultCatalog string

// Entry is one [[video]] table of a catalog file.
type Entry struct {
	Language string `toml:"language"`
	Position int    `toml:"position"`
	Title    string `toml:"title"`
	URL      string `toml:"url"`
	Category string `toml:"category"`
}

// Catalog is the parsed content of a catalog file.
type Catalog struct {
	Videos []Entry `toml:"video"`
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Parse(strings.NewReader(defaultCatalog))
}

// LoadFile parses and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes a TOML catalog and validates it.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every entry is complete, positions are unique per
// language and every language has a first video.
func (c *Catalog) Validate() error {
	if len(c.Videos) == 0 {
		return errors.New("catalog has no videos")
	}

	seen := make(map[string]bool)
	hasFirst := make(map[senior.Language]bool)
	for i, e := range c.Videos {
		lang, err := senior.ParseLanguage(e.Language)
		if err != nil {
			return fmt.Errorf("video %d: %w", i+1, err)
		}
		if e.Position < video.FirstSequencePosition {
			return fmt.Errorf("video %d: position must be >= %d", i+1, video.FirstSequencePosition)
		}
		if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.URL) == "" {
			return fmt.Errorf("video %d: title and url are required", i+1)
		}
		key := fmt.Sprintf("%s/%d", lang, e.Position)
		if seen[key] {
			return fmt.Errorf("video %d: duplicate position %d for language %s", i+1, e.Position, lang)
		}
		seen[key] = true
		if e.Position == video.FirstSequencePosition {
			hasFirst[lang] = true
		}
	}
	for key := range seen {
		lang := senior.Language(strings.SplitN(key, "/", 2)[0])
		if !hasFirst[lang] {
			return fmt.Errorf("language %s has no video at position %d", lang, video.FirstSequencePosition)
		}
	}
	return nil
}

// ToVideos converts the entries into domain videos.
func (c *Catalog) ToVideos() []*video.Video {
	out := make([]*video.Video, 0, len(c.Videos))
	for _, e := range c.Videos {
		lang, _ := senior.ParseLanguage(e.Language)
		out = append(out, &video.Video{
			Title:            strings.TrimSpace(e.Title),
			URL:              strings.TrimSpace(e.URL),
			Category:         strings.TrimSpace(e.Category),
			Language:         lang,
			SequencePosition: e.Position,
		})
	}
	return out
}

// Seed upserts every catalog video keyed by language and position, so it can be rerun
// after editing titles or links. It returns the number of videos per language.
func Seed(ctx context.Context, repo video.Repository, c *Catalog, logger *logrus.Entry) (map[senior.Language]int, error) {
	counts := make(map[senior.Language]int)
	for _, v := range c.ToVideos() {
		if err := repo.Upsert(ctx, v); err != nil {
			return counts, fmt.Errorf("failed to seed video %q (%s #%d): %w", v.Title, v.Language, v.SequencePosition, err)
		}
		counts[v.Language]++
		logger.WithFields(logrus.Fields{
			"video_id": v.ID,
			"language": v.Language,
			"position": v.SequencePosition,
		}).Debug("Video seeded")
	}
	logger.WithFields(logrus.Fields{
		"english": counts[senior.LanguageEnglish],
		"spanish": counts[senior.LanguageSpanish],
	}).Info("Catalog seeded")
	return counts, nil
}

package video

import (
	"context"
	"errors"

	"estirar/internal/domain/senior"
)

// FirstSequencePosition is where every language catalog starts and wraps back to.
const FirstSequencePosition = 1

// ErrVideoNotFound is returned when no video exists at the requested position.
var ErrVideoNotFound = errors.New("video not found")

// Video is one entry of the static exercise catalog.
// SequencePosition is unique per language and defines the rotation order.
type Video struct {
	ID               int64
	Title            string
	URL              string
	Category         string
	Language         senior.Language
	SequencePosition int
}

// Repository gives read access to the catalog plus the upsert used by seeding.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Video, error)
	GetBySequence(ctx context.Context, lang senior.Language, position int) (*Video, error)
	// GetNextInSequence returns the video with the smallest position strictly
	// greater than after, or ErrVideoNotFound at the end of the catalog.
	GetNextInSequence(ctx context.Context, lang senior.Language, after int) (*Video, error)
	ListByLanguages(ctx context.Context, langs []senior.Language) ([]*Video, error)
	Upsert(ctx context.Context, v *Video) error
}

package app

import (
	"context"
	"errors"
	"fmt"

	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
	"estirar/internal/domain/video"
)

// VideoSequencer picks the next video of a senior's perpetual rotation.
type VideoSequencer struct {
	logRepo   notification.Repository
	videoRepo video.Repository
}

func NewVideoSequencer(lr notification.Repository, vr video.Repository) *VideoSequencer {
	return &VideoSequencer{logRepo: lr, videoRepo: vr}
}

// NextVideo returns the video after the one last sent to the senior, wrapping to the
// first position at the end of the catalog. A senior without logs starts at position 1.
// video.ErrVideoNotFound is only returned when the language has no first video.
func (s *VideoSequencer) NextVideo(ctx context.Context, seniorID int64, lang senior.Language) (*video.Video, error) {
	_, lastPosition, err := s.logRepo.GetLatestLog(ctx, seniorID)
	switch {
	case err == nil:
		next, err := s.videoRepo.GetNextInSequence(ctx, lang, lastPosition)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, video.ErrVideoNotFound) {
			return nil, fmt.Errorf("failed to get video after position %d for language %s: %w", lastPosition, lang, err)
		}
		// end of catalog, wrap around
	case errors.Is(err, notification.ErrLogNotFound):
	default:
		return nil, fmt.Errorf("failed to get latest log for senior %d: %w", seniorID, err)
	}

	first, err := s.videoRepo.GetBySequence(ctx, lang, video.FirstSequencePosition)
	if err != nil {
		return nil, fmt.Errorf("failed to get first video for language %s: %w", lang, err)
	}
	return first, nil
}

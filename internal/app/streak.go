package app

import (
	"context"
	"fmt"
	"time"

	"estirar/internal/domain/notification"
)

// DefaultStreakWindow caps how many logs are inspected, one year of weekly cycles.
const DefaultStreakWindow = 52

// DefaultStreakCutoff is when the weekly cadence started. Older logs come from the
// daily model and would inflate streaks.
var DefaultStreakCutoff = time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)

// StreakCalculator counts consecutive completed cycles, newest first.
type StreakCalculator struct {
	logRepo notification.Repository
	cutoff  time.Time
	window  int
}

func NewStreakCalculator(lr notification.Repository, cutoff time.Time, window int) *StreakCalculator {
	if window <= 0 {
		window = DefaultStreakWindow
	}
	return &StreakCalculator{logRepo: lr, cutoff: cutoff, window: window}
}

// CompletionStreak returns the number of consecutive completed logs since the cutoff.
func (c *StreakCalculator) CompletionStreak(ctx context.Context, seniorID int64) (int, error) {
	logs, err := c.logRepo.ListLogsSince(ctx, seniorID, c.cutoff, c.window)
	if err != nil {
		return 0, fmt.Errorf("failed to list logs for streak of senior %d: %w", seniorID, err)
	}
	return CountStreak(logs), nil
}

// CountStreak walks logs ordered newest first and stops at the first one
// whose completed flag is false or null.
func CountStreak(logs []*notification.Log) int {
	streak := 0
	for _, l := range logs {
		if !l.IsCompleted() {
			break
		}
		streak++
	}
	return streak
}

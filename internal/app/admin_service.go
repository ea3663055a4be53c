package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estirar/internal/domain/notification"
	"estirar/internal/domain/senior"
)

// Custom application-level errors for admin service
var ErrInvalidPhone = errors.New("phone number must be 7 to 15 digits with an optional leading '+'")
var ErrSeniorAlreadyInactive = errors.New("senior is already inactive")
var ErrSeniorAlreadyActive = errors.New("senior is already active")

// DefaultRecentLogsLimit is how many logs the dashboard shows.
const DefaultRecentLogsLimit = 50

// SeniorSummary is a senior with their current completion streak.
type SeniorSummary struct {
	*senior.Senior
	Streak int `json:"streak"`
}

type AdminService struct {
	seniorRepo senior.Repository
	logRepo    notification.Repository
	streaks    *StreakCalculator
}

func NewAdminService(sr senior.Repository, lr notification.Repository, cycleCfg CycleConfig) *AdminService {
	return &AdminService{
		seniorRepo: sr,
		logRepo:    lr,
		streaks:    NewStreakCalculator(lr, cycleCfg.StreakCutoff, cycleCfg.StreakWindow),
	}
}

// EnrollSenior adds a senior, or re-activates and updates the language of an enrolled phone.
func (s *AdminService) EnrollSenior(ctx context.Context, phone string, lang senior.Language) (*senior.Senior, error) {
	normalized, err := validatePhone(phone)
	if err != nil {
		return nil, err
	}
	if _, err := senior.ParseLanguage(string(lang)); err != nil {
		return nil, err
	}

	sn := &senior.Senior{
		PhoneNumber: normalized,
		Language:    lang,
		IsActive:    true, // enrollment always activates
	}
	if err := s.seniorRepo.Upsert(ctx, sn); err != nil {
		return nil, fmt.Errorf("failed to enroll senior in repository: %w", err)
	}
	return sn, nil
}

// SetActive toggles whether a senior receives messages.
func (s *AdminService) SetActive(ctx context.Context, phone string, active bool) (*senior.Senior, error) {
	normalized, err := validatePhone(phone)
	if err != nil {
		return nil, err
	}

	target, err := s.seniorRepo.GetByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, senior.ErrSeniorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get senior by phone: %w", err)
	}

	if target.IsActive == active {
		if active {
			return target, ErrSeniorAlreadyActive
		}
		return target, ErrSeniorAlreadyInactive
	}

	target.IsActive = active
	if err := s.seniorRepo.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update senior in repository: %w", err)
	}
	return target, nil
}

func (s *AdminService) ListSeniors(ctx context.Context, activeOnly bool) ([]*senior.Senior, error) {
	if activeOnly {
		return s.seniorRepo.ListActive(ctx)
	}
	return s.seniorRepo.ListAll(ctx)
}

// RecentLogs returns the newest logs joined with senior and video details.
func (s *AdminService) RecentLogs(ctx context.Context, limit int) ([]*notification.LogDetails, error) {
	if limit <= 0 {
		limit = DefaultRecentLogsLimit
	}
	return s.logRepo.ListRecentWithDetails(ctx, limit)
}

// Streak returns the completion streak of the senior enrolled with phone.
func (s *AdminService) Streak(ctx context.Context, phone string) (*SeniorSummary, error) {
	normalized, err := validatePhone(phone)
	if err != nil {
		return nil, err
	}
	sn, err := s.seniorRepo.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, err
	}
	streak, err := s.streaks.CompletionStreak(ctx, sn.ID)
	if err != nil {
		return nil, err
	}
	return &SeniorSummary{Senior: sn, Streak: streak}, nil
}

// SeniorOverview lists every senior with their current streak.
func (s *AdminService) SeniorOverview(ctx context.Context) ([]SeniorSummary, error) {
	all, err := s.seniorRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list seniors: %w", err)
	}
	out := make([]SeniorSummary, 0, len(all))
	for _, sn := range all {
		streak, err := s.streaks.CompletionStreak(ctx, sn.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SeniorSummary{Senior: sn, Streak: streak})
	}
	return out, nil
}

func validatePhone(phone string) (string, error) {
	normalized := senior.NormalizePhone(phone)
	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	return normalized, nil
}

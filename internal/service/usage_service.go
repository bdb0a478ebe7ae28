package service

import (
	"context"
	"fmt"

	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/models"
)

// UsageService exposes the quota ledger to callers: current counters,
// plan limits and the period reset.
type UsageService struct {
	usage  UsageRepository
	limits config.PlanLimits
}

func NewUsageService(usage UsageRepository, limits config.PlanLimits) *UsageService {
	return &UsageService{
		usage:  usage,
		limits: limits,
	}
}

// Get returns the user's counters, creating a zeroed ledger on first use.
func (s *UsageService) Get(ctx context.Context, userID string) (*models.UsageCounters, error) {
	const op = "service.UsageService.Get"

	usage, err := s.usage.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get usage: %w", op, err)
	}

	return usage, nil
}

// Reset starts a new usage period: all counters zeroed, last_reset stamped.
// Invoked by the external billing scheduler at period boundaries.
func (s *UsageService) Reset(ctx context.Context, userID string) (*models.UsageCounters, error) {
	const op = "service.UsageService.Reset"

	usage, err := s.usage.Reset(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to reset usage: %w", op, err)
	}

	return usage, nil
}

// Limits returns the plan limits the ledger is enforcing.
func (s *UsageService) Limits() config.PlanLimits {
	return s.limits
}

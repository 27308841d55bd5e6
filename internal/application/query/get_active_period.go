package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE PERIOD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetActivePeriodHandler is a read-through cached lookup of the single
// ACTIVE period. Absence is cached too, so a system with no active period
// does not hit the store on every request. Cache failures degrade to the
// store silently.
type GetActivePeriodHandler struct {
	periods period.Repository
	cache   period.Cache
	logger  *slog.Logger
}

func NewGetActivePeriodHandler(periods period.Repository, cache period.Cache, logger *slog.Logger) *GetActivePeriodHandler {
	return &GetActivePeriodHandler{periods: periods, cache: cache, logger: logger}
}

// Handle returns the active period, or (nil, nil) when none is active.
func (h *GetActivePeriodHandler) Handle(ctx context.Context) (*period.AcademicPeriod, error) {
	if p, found, err := h.cache.Get(ctx); err == nil && found {
		return p, nil
	} else if err != nil {
		h.logger.Warn("active period cache read failed", "error", err)
	}

	p, err := h.periods.GetActive(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotFound) {
			if cerr := h.cache.Set(ctx, nil); cerr != nil {
				h.logger.Warn("active period cache write failed", "error", cerr)
			}
			return nil, nil
		}
		return nil, err
	}

	if cerr := h.cache.Set(ctx, p); cerr != nil {
		h.logger.Warn("active period cache write failed", "error", cerr)
	}
	return p, nil
}

// MustActive returns the active period or shared.ErrPeriodNotActive, for
// callers that require one.
func (h *GetActivePeriodHandler) MustActive(ctx context.Context) (*period.AcademicPeriod, error) {
	p, err := h.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.ErrPeriodNotActive
	}
	return p, nil
}

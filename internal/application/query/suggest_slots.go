package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/schedule"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUGGEST SLOTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// SuggestSlotsQuery asks for an advisor's free slot starts on a date.
type SuggestSlotsQuery struct {
	AdvisorID int64
	Date      time.Time
}

// SuggestSlotsResult carries the free slot starts as "HH:MM" strings and the
// policy the walk used, so callers can render slot length.
type SuggestSlotsResult struct {
	Slots    []string
	Settings period.Settings
}

// SuggestSlotsHandler walks the active period's working window and emits
// every slot the advisor could still take in full.
type SuggestSlotsHandler struct {
	sessions session.Repository
	exams    exam.Reader
	active   *GetActivePeriodHandler
	logger   *slog.Logger
}

func NewSuggestSlotsHandler(sessions session.Repository, exams exam.Reader, active *GetActivePeriodHandler, logger *slog.Logger) *SuggestSlotsHandler {
	return &SuggestSlotsHandler{sessions: sessions, exams: exams, active: active, logger: logger}
}

// Handle returns the free slots. With no active period the built-in defaults
// apply, so the suggestion endpoint keeps working between periods.
func (h *SuggestSlotsHandler) Handle(ctx context.Context, q SuggestSlotsQuery) (*SuggestSlotsResult, error) {
	settings := period.DefaultSettings()
	if p, err := h.active.Handle(ctx); err == nil && p != nil {
		settings = p.Settings
	}

	busy, err := GatherBusy(ctx, h.sessions, h.exams, q.AdvisorID, q.Date, nil)
	if err != nil {
		return nil, err
	}

	starts := schedule.FreeSlots(settings.WorkStartMinutes, settings.WorkEndMinutes, settings.SlotMinutes, busy)

	slots := make([]string, len(starts))
	for i, m := range starts {
		slots[i] = timeutil.FormatClock(m)
	}
	return &SuggestSlotsResult{Slots: slots, Settings: settings}, nil
}

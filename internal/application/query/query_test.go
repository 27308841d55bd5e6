package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
)

var (
	testDate = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSessionRepo struct {
	sessions []*session.Session
	listErr  error
}

func (f *fakeSessionRepo) Create(_ context.Context, s *session.Session) error { return nil }
func (f *fakeSessionRepo) GetByID(_ context.Context, id int64) (*session.Session, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrSessionNotFound
}
func (f *fakeSessionRepo) Update(_ context.Context, s *session.Session) error { return nil }
func (f *fakeSessionRepo) List(_ context.Context, opts session.ListOptions) (*session.Page, error) {
	total := len(f.sessions)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}
	return &session.Page{Sessions: f.sessions[start:end], Total: total}, nil
}
func (f *fakeSessionRepo) CountByProject(_ context.Context, projectID int64) (int, error) {
	n := 0
	for _, s := range f.sessions {
		if s.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
func (f *fakeSessionRepo) LockAdvisorDay(_ context.Context, _ int64, _ time.Time) error { return nil }
func (f *fakeSessionRepo) ListScheduledByAdvisorOnDate(_ context.Context, advisorID int64, _ time.Time) ([]*session.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*session.Session
	for _, s := range f.sessions {
		if s.AdvisorID == advisorID && s.Status == session.StatusScheduled {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeSessionRepo) AddReschedule(_ context.Context, _ *session.Reschedule) error { return nil }
func (f *fakeSessionRepo) ListReschedules(_ context.Context, _ int64) ([]*session.Reschedule, error) {
	return nil, nil
}

type fakeExamReader struct {
	commitments []*exam.Commitment
}

func (f *fakeExamReader) ListByAdvisorOnDate(_ context.Context, advisorID int64, _ time.Time) ([]*exam.Commitment, error) {
	var out []*exam.Commitment
	for _, c := range f.commitments {
		if c.AdvisorID == advisorID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePeriodRepo struct {
	active *period.AcademicPeriod
	calls  int
}

func (f *fakePeriodRepo) Create(_ context.Context, _ *period.AcademicPeriod) error { return nil }
func (f *fakePeriodRepo) GetByID(_ context.Context, _ int64) (*period.AcademicPeriod, error) {
	return nil, shared.ErrPeriodNotFound
}
func (f *fakePeriodRepo) GetByYear(_ context.Context, _ string) (*period.AcademicPeriod, error) {
	return nil, shared.ErrPeriodNotFound
}
func (f *fakePeriodRepo) GetActive(_ context.Context) (*period.AcademicPeriod, error) {
	f.calls++
	if f.active == nil {
		return nil, shared.ErrPeriodNotFound
	}
	return f.active, nil
}
func (f *fakePeriodRepo) Update(_ context.Context, _ *period.AcademicPeriod) error { return nil }
func (f *fakePeriodRepo) Delete(_ context.Context, _ int64) error                  { return nil }
func (f *fakePeriodRepo) List(_ context.Context) ([]*period.AcademicPeriod, error) { return nil, nil }
func (f *fakePeriodRepo) ListDueForOpening(_ context.Context, _ time.Time) ([]*period.AcademicPeriod, error) {
	return nil, nil
}
func (f *fakePeriodRepo) CountDependents(_ context.Context, _ int64) (int, error) { return 0, nil }

type fakeCache struct {
	value  *period.AcademicPeriod
	found  bool
	getErr error
}

func (f *fakeCache) Get(_ context.Context) (*period.AcademicPeriod, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.value, f.found, nil
}
func (f *fakeCache) Set(_ context.Context, p *period.AcademicPeriod) error {
	f.value, f.found = p, true
	return nil
}
func (f *fakeCache) Invalidate(_ context.Context) error {
	f.value, f.found = nil, false
	return nil
}

func scheduled(id, advisorID int64, start, end string) *session.Session {
	d := testDate
	return &session.Session{
		ID:        id,
		ProjectID: 1,
		AdvisorID: advisorID,
		Date:      &d,
		StartTime: start,
		EndTime:   end,
		Status:    session.StatusScheduled,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Conflict check
// ─────────────────────────────────────────────────────────────────────────────

func TestCheckConflict(t *testing.T) {
	repo := &fakeSessionRepo{sessions: []*session.Session{
		scheduled(1, 7, "09:00", "10:00"),
	}}
	exams := &fakeExamReader{commitments: []*exam.Commitment{
		{ID: 1, AdvisorID: 7, Date: testDate, StartTime: "13:00", EndTime: "14:00"},
	}}
	h := NewCheckConflictHandler(repo, exams, discard)

	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"overlapping a session", "09:30", "10:30", true},
		{"abutting a session is free", "10:00", "11:00", false},
		{"ending at a session start is free", "08:00", "09:00", false},
		{"overlapping an exam commitment", "13:30", "14:30", true},
		{"containing a busy window", "08:30", "11:00", true},
		{"free mid-day gap", "11:00", "12:00", false},
		{"missing end assumes default duration", "09:30", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), CheckConflictQuery{
				AdvisorID: 7, Date: testDate, StartTime: tt.start, EndTime: tt.end,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.HasConflict)
		})
	}

	t.Run("excluded session does not count", func(t *testing.T) {
		id := int64(1)
		res, err := h.Handle(context.Background(), CheckConflictQuery{
			AdvisorID: 7, Date: testDate, StartTime: "09:00", EndTime: "10:00",
			ExcludeSessionID: &id,
		})
		require.NoError(t, err)
		assert.False(t, res.HasConflict)
	})

	t.Run("other advisor is unaffected", func(t *testing.T) {
		res, err := h.Handle(context.Background(), CheckConflictQuery{
			AdvisorID: 8, Date: testDate, StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)
		assert.False(t, res.HasConflict)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Slot suggestion
// ─────────────────────────────────────────────────────────────────────────────

func TestSuggestSlots(t *testing.T) {
	repo := &fakeSessionRepo{sessions: []*session.Session{
		scheduled(1, 7, "09:00", "10:00"),
	}}
	exams := &fakeExamReader{commitments: []*exam.Commitment{
		{ID: 1, AdvisorID: 7, Date: testDate, StartTime: "13:00", EndTime: "14:00"},
	}}
	active := NewGetActivePeriodHandler(&fakePeriodRepo{}, &fakeCache{}, discard)
	h := NewSuggestSlotsHandler(repo, exams, active, discard)

	t.Run("two busy hours leave six slots", func(t *testing.T) {
		res, err := h.Handle(context.Background(), SuggestSlotsQuery{AdvisorID: 7, Date: testDate})
		require.NoError(t, err)
		assert.Equal(t, []string{"08:00", "10:00", "11:00", "12:00", "14:00", "15:00"}, res.Slots)
	})

	t.Run("idle advisor gets the full window", func(t *testing.T) {
		res, err := h.Handle(context.Background(), SuggestSlotsQuery{AdvisorID: 99, Date: testDate})
		require.NoError(t, err)
		assert.Len(t, res.Slots, 8)
		assert.Equal(t, "08:00", res.Slots[0])
		assert.Equal(t, "15:00", res.Slots[7])
	})

	t.Run("active period settings override defaults", func(t *testing.T) {
		p, err := period.New("2026/2027", "", testDate, testDate)
		require.NoError(t, err)
		require.NoError(t, p.Open(1, period.Settings{
			WorkStartMinutes: 9 * 60, WorkEndMinutes: 12 * 60,
			SlotMinutes: 60, SessionMinutes: 60,
		}, testDate))

		withPeriod := NewSuggestSlotsHandler(repo, exams, NewGetActivePeriodHandler(
			&fakePeriodRepo{active: p}, &fakeCache{}, discard), discard)

		res, err := withPeriod.Handle(context.Background(), SuggestSlotsQuery{AdvisorID: 99, Date: testDate})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00", "11:00"}, res.Slots)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Active period lookup
// ─────────────────────────────────────────────────────────────────────────────

func TestGetActivePeriod(t *testing.T) {
	newActive := func(t *testing.T) *period.AcademicPeriod {
		t.Helper()
		p, err := period.New("2026/2027", "", testDate, testDate)
		require.NoError(t, err)
		require.NoError(t, p.Open(1, period.DefaultSettings(), testDate))
		return p
	}

	t.Run("read-through populates the cache", func(t *testing.T) {
		repo := &fakePeriodRepo{active: newActive(t)}
		cache := &fakeCache{}
		h := NewGetActivePeriodHandler(repo, cache, discard)

		p, err := h.Handle(context.Background())
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 1, repo.calls)

		_, err = h.Handle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, repo.calls, "second read served from cache")
	})

	t.Run("absence is cached", func(t *testing.T) {
		repo := &fakePeriodRepo{}
		cache := &fakeCache{}
		h := NewGetActivePeriodHandler(repo, cache, discard)

		p, err := h.Handle(context.Background())
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Equal(t, 1, repo.calls)

		p, err = h.Handle(context.Background())
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Equal(t, 1, repo.calls)
	})

	t.Run("cache failure degrades to the store", func(t *testing.T) {
		repo := &fakePeriodRepo{active: newActive(t)}
		cache := &fakeCache{getErr: errors.New("redis down")}
		h := NewGetActivePeriodHandler(repo, cache, discard)

		p, err := h.Handle(context.Background())
		require.NoError(t, err)
		require.NotNil(t, p)
	})

	t.Run("MustActive with no active period", func(t *testing.T) {
		h := NewGetActivePeriodHandler(&fakePeriodRepo{}, &fakeCache{}, discard)
		_, err := h.MustActive(context.Background())
		assert.ErrorIs(t, err, shared.ErrPeriodNotActive)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Session listing
// ─────────────────────────────────────────────────────────────────────────────

func TestListSessions(t *testing.T) {
	repo := &fakeSessionRepo{}
	for i := int64(1); i <= 45; i++ {
		repo.sessions = append(repo.sessions, scheduled(i, 7, "09:00", "10:00"))
	}
	h := NewListSessionsHandler(repo)

	t.Run("defaults", func(t *testing.T) {
		res, err := h.Handle(context.Background(), ListSessionsQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Page)
		assert.Equal(t, session.DefaultPageSize, res.PageSize)
		assert.Len(t, res.Sessions, 20)
		assert.Equal(t, 45, res.Total)
		assert.Equal(t, 3, res.TotalPages)
	})

	t.Run("last partial page", func(t *testing.T) {
		res, err := h.Handle(context.Background(), ListSessionsQuery{Page: 3})
		require.NoError(t, err)
		assert.Len(t, res.Sessions, 5)
	})

	t.Run("page below one is treated as the first", func(t *testing.T) {
		res, err := h.Handle(context.Background(), ListSessionsQuery{Page: -2, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Page)
		assert.Len(t, res.Sessions, 10)
	})
}

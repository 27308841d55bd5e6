package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/exam"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/shared"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/thesis"
	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/uow"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

var (
	testNow  = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	testDate = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory store and unit of work
// ─────────────────────────────────────────────────────────────────────────────

type memStore struct {
	nextID      int64
	sessions    map[int64]*session.Session
	reschedules []*session.Reschedule
	periods     map[int64]*period.AcademicPeriod
	projects    map[int64]*thesis.Project
	assignments []*thesis.Assignment
	revisions   map[int64]*thesis.DocumentRevision
	commitments []*exam.Commitment
	dependents  map[int64]int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newStore() *memStore {
	return &memStore{
		sessions:   make(map[int64]*session.Session),
		periods:    make(map[int64]*period.AcademicPeriod),
		projects:   make(map[int64]*thesis.Project),
		revisions:  make(map[int64]*thesis.DocumentRevision),
		dependents: make(map[int64]int),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

// memUow mimics the postgres unit of work: advisory locks taken through
// LockAdvisorDay are held until Commit or Rollback releases them.
type memUow struct {
	s    *memStore
	held []*sync.Mutex
}

func (u *memUow) Sessions() session.Repository          { return memSessions{u} }
func (u *memUow) Periods() period.Repository            { return memPeriods{u.s} }
func (u *memUow) Projects() thesis.ProjectRepository    { return memProjects{u.s} }
func (u *memUow) Assignments() thesis.AssignmentRepository {
	return memAssignments{u.s}
}
func (u *memUow) Revisions() thesis.RevisionRepository { return memRevisions{u.s} }
func (u *memUow) Commitments() exam.Reader             { return memCommitments{u.s} }
func (u *memUow) Commit(context.Context) error         { u.release(); return nil }
func (u *memUow) Rollback(context.Context) error       { u.release(); return nil }

func (u *memUow) release() {
	for _, l := range u.held {
		l.Unlock()
	}
	u.held = nil
}

type memFactory struct{ s *memStore }

func (f memFactory) Begin(context.Context) (uow.UnitOfWork, error) { return &memUow{s: f.s}, nil }

type memSessions struct{ u *memUow }

func (r memSessions) Create(_ context.Context, s *session.Session) error {
	s.ID = r.u.s.id()
	r.u.s.sessions[s.ID] = s
	return nil
}
func (r memSessions) GetByID(_ context.Context, id int64) (*session.Session, error) {
	s, ok := r.u.s.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return s, nil
}
func (r memSessions) Update(_ context.Context, s *session.Session) error {
	r.u.s.sessions[s.ID] = s
	return nil
}
func (r memSessions) List(_ context.Context, opts session.ListOptions) (*session.Page, error) {
	var all []*session.Session
	for _, s := range r.u.s.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return &session.Page{Sessions: all, Total: len(all)}, nil
}
func (r memSessions) CountByProject(_ context.Context, projectID int64) (int, error) {
	n := 0
	for _, s := range r.u.s.sessions {
		if s.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
func (r memSessions) LockAdvisorDay(_ context.Context, advisorID int64, date time.Time) error {
	key := fmt.Sprintf("%d:%s", advisorID, timeutil.FormatDate(date))
	r.u.s.mu.Lock()
	l, ok := r.u.s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.u.s.locks[key] = l
	}
	r.u.s.mu.Unlock()

	l.Lock()
	r.u.held = append(r.u.held, l)
	return nil
}
func (r memSessions) ListScheduledByAdvisorOnDate(_ context.Context, advisorID int64, date time.Time) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.u.s.sessions {
		if s.AdvisorID == advisorID && s.Status == session.StatusScheduled &&
			s.Date != nil && timeutil.SameDay(*s.Date, date) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (r memSessions) AddReschedule(_ context.Context, rec *session.Reschedule) error {
	rec.ID = r.u.s.id()
	r.u.s.reschedules = append(r.u.s.reschedules, rec)
	return nil
}
func (r memSessions) ListReschedules(_ context.Context, sessionID int64) ([]*session.Reschedule, error) {
	var out []*session.Reschedule
	for _, rec := range r.u.s.reschedules {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memPeriods struct{ s *memStore }

func (r memPeriods) Create(_ context.Context, p *period.AcademicPeriod) error {
	for _, o := range r.s.periods {
		if o.AcademicYear == p.AcademicYear {
			return shared.ErrYearAlreadyExists
		}
	}
	p.ID = r.s.id()
	r.s.periods[p.ID] = p
	return nil
}
func (r memPeriods) GetByID(_ context.Context, id int64) (*period.AcademicPeriod, error) {
	p, ok := r.s.periods[id]
	if !ok {
		return nil, shared.ErrPeriodNotFound
	}
	return p, nil
}
func (r memPeriods) GetByYear(_ context.Context, year string) (*period.AcademicPeriod, error) {
	for _, p := range r.s.periods {
		if p.AcademicYear == year {
			return p, nil
		}
	}
	return nil, shared.ErrPeriodNotFound
}
func (r memPeriods) GetActive(_ context.Context) (*period.AcademicPeriod, error) {
	for _, p := range r.s.periods {
		if p.Status == period.StatusActive {
			return p, nil
		}
	}
	return nil, shared.ErrPeriodNotFound
}
func (r memPeriods) Update(_ context.Context, p *period.AcademicPeriod) error {
	r.s.periods[p.ID] = p
	return nil
}
func (r memPeriods) Delete(_ context.Context, id int64) error {
	delete(r.s.periods, id)
	return nil
}
func (r memPeriods) List(_ context.Context) ([]*period.AcademicPeriod, error) {
	var out []*period.AcademicPeriod
	for _, p := range r.s.periods {
		out = append(out, p)
	}
	return out, nil
}
func (r memPeriods) ListDueForOpening(_ context.Context, now time.Time) ([]*period.AcademicPeriod, error) {
	var out []*period.AcademicPeriod
	for _, p := range r.s.periods {
		if p.IsDue(now) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (r memPeriods) CountDependents(_ context.Context, id int64) (int, error) {
	return r.s.dependents[id], nil
}

type memProjects struct{ s *memStore }

func (r memProjects) GetByID(_ context.Context, id int64) (*thesis.Project, error) {
	p, ok := r.s.projects[id]
	if !ok {
		return nil, shared.ErrProjectNotFound
	}
	return p, nil
}
func (r memProjects) CountOpenByPeriod(_ context.Context, periodID int64) (int, error) {
	n := 0
	for _, p := range r.s.projects {
		if p.PeriodID == periodID && p.Status == thesis.ProjectOpen {
			n++
		}
	}
	return n, nil
}

type memAssignments struct{ s *memStore }

func (r memAssignments) GetRole(_ context.Context, projectID, advisorID int64) (thesis.SupervisoryRole, error) {
	for _, a := range r.s.assignments {
		if a.ProjectID == projectID && a.AdvisorID == advisorID {
			return a.Role, nil
		}
	}
	return "", shared.ErrNoSupervisoryRole
}
func (r memAssignments) ListByProject(_ context.Context, projectID int64) ([]*thesis.Assignment, error) {
	var out []*thesis.Assignment
	for _, a := range r.s.assignments {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memRevisions struct{ s *memStore }

func (r memRevisions) GetByID(_ context.Context, id int64) (*thesis.DocumentRevision, error) {
	rev, ok := r.s.revisions[id]
	if !ok {
		return nil, shared.ErrRevisionNotFound
	}
	return rev, nil
}
func (r memRevisions) GetLatestBySession(_ context.Context, sessionID int64) (*thesis.DocumentRevision, error) {
	var latest *thesis.DocumentRevision
	for _, rev := range r.s.revisions {
		if rev.SessionID != nil && *rev.SessionID == sessionID {
			if latest == nil || rev.Version > latest.Version {
				latest = rev
			}
		}
	}
	if latest == nil {
		return nil, shared.ErrRevisionNotFound
	}
	return latest, nil
}
func (r memRevisions) Update(_ context.Context, rev *thesis.DocumentRevision) error {
	r.s.revisions[rev.ID] = rev
	return nil
}

type memCommitments struct{ s *memStore }

func (r memCommitments) ListByAdvisorOnDate(_ context.Context, advisorID int64, date time.Time) ([]*exam.Commitment, error) {
	var out []*exam.Commitment
	for _, c := range r.s.commitments {
		if c.AdvisorID == advisorID && timeutil.SameDay(c.Date, date) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator fakes
// ─────────────────────────────────────────────────────────────────────────────

type capturePublisher struct{ events []shared.Event }

func (p *capturePublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) types() []shared.EventType {
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type captureAudit struct{ entries []audit.Entry }

func (a *captureAudit) Record(_ context.Context, e audit.Entry) {
	a.entries = append(a.entries, e)
}

type countingCache struct{ invalidations int }

func (c *countingCache) Get(context.Context) (*period.AcademicPeriod, bool, error) {
	return nil, false, nil
}
func (c *countingCache) Set(context.Context, *period.AcademicPeriod) error { return nil }
func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

type defaultSettings struct{}

func (defaultSettings) SchedulingDefaults(context.Context) (period.Settings, error) {
	return period.DefaultSettings(), nil
}

// fixture wires one store through every handler.
type fixture struct {
	store     *memStore
	publisher *capturePublisher
	audits    *captureAudit
	cache     *countingCache
	clock     timeutil.FixedClock
}

func newFixture() *fixture {
	return &fixture{
		store:     newStore(),
		publisher: &capturePublisher{},
		audits:    &captureAudit{},
		cache:     &countingCache{},
		clock:     timeutil.FixedClock{T: testNow},
	}
}

func (f *fixture) factory() uow.Factory { return memFactory{f.store} }

func (f *fixture) periodService() *PeriodService {
	return NewPeriodService(f.factory(), f.cache, defaultSettings{}, f.publisher, f.audits, f.clock, discard)
}

// seedActive opens a period for 2026/2027, returning its ID.
func (f *fixture) seedActive(t *testing.T) int64 {
	t.Helper()
	svc := f.periodService()
	p, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{
		AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1,
	})
	require.NoError(t, err)
	return p.ID
}

// seedProject creates a project supervised by the advisor.
func (f *fixture) seedProject(periodID, studentID, advisorID int64) int64 {
	id := f.store.id()
	f.store.projects[id] = &thesis.Project{
		ID: id, PeriodID: periodID, StudentID: studentID, Status: thesis.ProjectOpen,
	}
	f.store.assignments = append(f.store.assignments, &thesis.Assignment{
		ID: f.store.id(), ProjectID: id, AdvisorID: advisorID, Role: thesis.RoleFirstSupervisor,
	})
	return id
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduling
// ─────────────────────────────────────────────────────────────────────────────

func TestScheduleSession(t *testing.T) {
	newHandler := func(f *fixture) *ScheduleSessionHandler {
		return NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
	}

	t.Run("sequence numbers are assigned count plus one", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		h := newHandler(f)

		for i, start := range []string{"08:00", "09:00", "10:00"} {
			d := testDate
			res, err := h.Handle(context.Background(), ScheduleSessionCommand{
				ProjectID: projectID, ActorID: 7, Date: &d, StartTime: start,
			})
			require.NoError(t, err)
			assert.Equal(t, i+1, res.SequenceNo)
		}
	})

	t.Run("cancelled sessions keep their ordinal", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		h := newHandler(f)

		d := testDate
		first, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "08:00",
		})
		require.NoError(t, err)

		cancel := NewCancelSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, cancel.Handle(context.Background(), CancelSessionCommand{
			SessionID: first.SessionID, ActorID: 7,
		}))

		second, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "08:00",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, second.SequenceNo, "cancelled session still burns its number")
	})

	t.Run("empty session without a date", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)

		res, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7,
		})
		require.NoError(t, err)
		assert.False(t, f.store.sessions[res.SessionID].HasSchedule())
	})

	t.Run("no active period", func(t *testing.T) {
		f := newFixture()
		projectID := f.seedProject(99, 100, 7)

		d := testDate
		_, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "08:00",
		})
		assert.ErrorIs(t, err, shared.ErrPeriodNotActive)
	})

	t.Run("actor without a supervisory role", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)

		d := testDate
		_, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 8, Date: &d, StartTime: "08:00",
		})
		assert.ErrorIs(t, err, shared.ErrNoSupervisoryRole)
	})

	t.Run("second writer on the same slot loses", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectA := f.seedProject(periodID, 100, 7)
		projectB := f.seedProject(periodID, 101, 7)
		h := newHandler(f)

		d := testDate
		_, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectA, ActorID: 7, Date: &d, StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectB, ActorID: 7, Date: &d, StartTime: "09:30", EndTime: "10:30",
		})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("conflict error names the clashing window", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectA := f.seedProject(periodID, 100, 7)
		projectB := f.seedProject(periodID, 101, 7)
		h := newHandler(f)

		d := testDate
		_, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectA, ActorID: 7, Date: &d, StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectB, ActorID: 7, Date: &d, StartTime: "09:30", EndTime: "10:30",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "09:00-10:00")
	})

	t.Run("racing writers for one slot yield a single winner", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projects := []int64{
			f.seedProject(periodID, 100, 7),
			f.seedProject(periodID, 101, 7),
		}
		h := newHandler(f)

		d := testDate
		errs := make([]error, len(projects))
		var wg sync.WaitGroup
		for i, projectID := range projects {
			i, projectID := i, projectID
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.Handle(context.Background(), ScheduleSessionCommand{
					ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "10:00", EndTime: "11:00",
				})
			}()
		}
		wg.Wait()

		conflicts := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, shared.ErrConflict)
				conflicts++
			}
		}
		assert.Equal(t, 1, conflicts, "exactly one writer must win the slot")
	})

	t.Run("abutting slot is accepted", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		h := newHandler(f)

		d := testDate
		_, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "10:00", EndTime: "11:00",
		})
		assert.NoError(t, err)
	})

	t.Run("exam commitment blocks the slot", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		f.store.commitments = append(f.store.commitments, &exam.Commitment{
			ID: 1, AdvisorID: 7, Date: testDate, StartTime: "09:00", EndTime: "11:00",
		})

		d := testDate
		_, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "10:00", EndTime: "10:30",
		})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("malformed time is rejected at the boundary", func(t *testing.T) {
		f := newFixture()
		d := testDate
		_, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: 1, ActorID: 7, Date: &d, StartTime: "9am",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("audit and event on success", func(t *testing.T) {
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)

		d := testDate
		_, err := newHandler(f).Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "08:00",
		})
		require.NoError(t, err)
		assert.Contains(t, f.publisher.types(), shared.EventSessionScheduled)
		require.NotEmpty(t, f.audits.entries)
		assert.Equal(t, audit.ActionSessionScheduled, f.audits.entries[len(f.audits.entries)-1].Action)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Rescheduling
// ─────────────────────────────────────────────────────────────────────────────

func TestRescheduleSession(t *testing.T) {
	seed := func(t *testing.T) (*fixture, int64) {
		t.Helper()
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		h := NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		d := testDate
		res, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)
		return f, res.SessionID
	}

	t.Run("moves the session and records history", func(t *testing.T) {
		f, id := seed(t)
		h := NewRescheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)

		err := h.Handle(context.Background(), RescheduleSessionCommand{
			SessionID: id, ActorID: 7,
			NewDate: testDate.AddDate(0, 0, 1), StartTime: "13:00", EndTime: "14:00",
			Reason: "advisor travel",
		})
		require.NoError(t, err)

		s := f.store.sessions[id]
		assert.Equal(t, "13:00", s.StartTime)
		require.Len(t, f.store.reschedules, 1)
		assert.Equal(t, "09:00", f.store.reschedules[0].OldStart)
		assert.Equal(t, "13:00", f.store.reschedules[0].NewStart)
	})

	t.Run("does not conflict with itself", func(t *testing.T) {
		f, id := seed(t)
		h := NewRescheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)

		// Same day, shifted half an hour into its own old window.
		err := h.Handle(context.Background(), RescheduleSessionCommand{
			SessionID: id, ActorID: 7,
			NewDate: testDate, StartTime: "09:30", EndTime: "10:30",
		})
		assert.NoError(t, err)
	})

	t.Run("conflicting target window is rejected", func(t *testing.T) {
		f, id := seed(t)
		sched := NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		d := testDate
		_, err := sched.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: f.store.sessions[id].ProjectID, ActorID: 7,
			Date: &d, StartTime: "13:00", EndTime: "14:00",
		})
		require.NoError(t, err)

		h := NewRescheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		err = h.Handle(context.Background(), RescheduleSessionCommand{
			SessionID: id, ActorID: 7,
			NewDate: testDate, StartTime: "13:30", EndTime: "14:30",
		})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("only the session advisor may move it", func(t *testing.T) {
		f, id := seed(t)
		h := NewRescheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		err := h.Handle(context.Background(), RescheduleSessionCommand{
			SessionID: id, ActorID: 99,
			NewDate: testDate, StartTime: "13:00",
		})
		assert.ErrorIs(t, err, shared.ErrNotSessionAdvisor)
	})

	t.Run("completed session cannot move", func(t *testing.T) {
		f, id := seed(t)
		require.NoError(t, f.store.sessions[id].Complete(testNow))

		h := NewRescheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		err := h.Handle(context.Background(), RescheduleSessionCommand{
			SessionID: id, ActorID: 7,
			NewDate: testDate.AddDate(0, 0, 1), StartTime: "13:00",
		})
		assert.ErrorIs(t, err, shared.ErrSessionCompleted)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Completion and sign-off
// ─────────────────────────────────────────────────────────────────────────────

func TestCompleteSession(t *testing.T) {
	seed := func(t *testing.T) (*fixture, int64) {
		t.Helper()
		f := newFixture()
		periodID := f.seedActive(t)
		projectID := f.seedProject(periodID, 100, 7)
		h := NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		d := testDate
		res, err := h.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "09:00",
		})
		require.NoError(t, err)
		return f, res.SessionID
	}

	t.Run("completion signs off the actor's role only", func(t *testing.T) {
		f, id := seed(t)
		projectID := f.store.sessions[id].ProjectID
		revID := f.store.id()
		f.store.revisions[revID] = &thesis.DocumentRevision{
			ID: revID, ProjectID: projectID, SessionID: &id, Version: 2,
		}

		h := NewCompleteSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, h.Handle(context.Background(), CompleteSessionCommand{SessionID: id, ActorID: 7}))

		assert.Equal(t, session.StatusCompleted, f.store.sessions[id].Status)
		rev := f.store.revisions[revID]
		require.NotNil(t, rev.FirstSignedBy)
		assert.Equal(t, int64(7), *rev.FirstSignedBy)
		assert.False(t, rev.Approved(), "one signature must not approve the revision")
	})

	t.Run("both roles signing approves the revision", func(t *testing.T) {
		f, id := seed(t)
		projectID := f.store.sessions[id].ProjectID
		f.store.assignments = append(f.store.assignments, &thesis.Assignment{
			ID: f.store.id(), ProjectID: projectID, AdvisorID: 8, Role: thesis.RoleSecondSupervisor,
		})
		revID := f.store.id()
		f.store.revisions[revID] = &thesis.DocumentRevision{
			ID: revID, ProjectID: projectID, SessionID: &id, Version: 2,
		}

		h := NewCompleteSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, h.Handle(context.Background(), CompleteSessionCommand{SessionID: id, ActorID: 7}))
		rev := f.store.revisions[revID]
		require.False(t, rev.Approved())

		// The second supervisor discusses the same draft in their own session.
		sched := NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		d := testDate
		res, err := sched.Handle(context.Background(), ScheduleSessionCommand{
			ProjectID: projectID, ActorID: 8, Date: &d, StartTime: "11:00",
		})
		require.NoError(t, err)
		rev.SessionID = &res.SessionID
		require.NoError(t, h.Handle(context.Background(), CompleteSessionCommand{SessionID: res.SessionID, ActorID: 8}))

		require.NotNil(t, rev.SecondSignedBy)
		assert.Equal(t, int64(8), *rev.SecondSignedBy)
		assert.True(t, rev.Approved())
		assert.Contains(t, f.publisher.types(), shared.EventRevisionApproved)
	})

	t.Run("completes without a revision", func(t *testing.T) {
		f, id := seed(t)
		h := NewCompleteSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, h.Handle(context.Background(), CompleteSessionCommand{SessionID: id, ActorID: 7}))
		assert.Equal(t, session.StatusCompleted, f.store.sessions[id].Status)
	})

	t.Run("revert restores scheduled status", func(t *testing.T) {
		f, id := seed(t)
		complete := NewCompleteSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, complete.Handle(context.Background(), CompleteSessionCommand{SessionID: id, ActorID: 7}))

		revert := NewRevertCompletionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		require.NoError(t, revert.Handle(context.Background(), RevertCompletionCommand{
			SessionID: id, ActorID: 7, Reason: "wrong session",
		}))
		assert.Equal(t, session.StatusScheduled, f.store.sessions[id].Status)
		assert.Contains(t, f.publisher.types(), shared.EventSessionReverted)
	})

	t.Run("revert of a scheduled session fails", func(t *testing.T) {
		f, id := seed(t)
		revert := NewRevertCompletionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
		err := revert.Handle(context.Background(), RevertCompletionCommand{SessionID: id, ActorID: 7})
		assert.ErrorIs(t, err, shared.ErrStateTransition)
	})
}

func TestConfirmSession(t *testing.T) {
	f := newFixture()
	periodID := f.seedActive(t)
	projectID := f.seedProject(periodID, 100, 7)
	sched := NewScheduleSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)
	d := testDate
	res, err := sched.Handle(context.Background(), ScheduleSessionCommand{
		ProjectID: projectID, ActorID: 7, Date: &d, StartTime: "09:00",
	})
	require.NoError(t, err)

	h := NewConfirmSessionHandler(f.factory(), f.publisher, f.audits, f.clock, discard)

	t.Run("other students are rejected", func(t *testing.T) {
		err := h.Handle(context.Background(), ConfirmSessionCommand{SessionID: res.SessionID, StudentID: 999})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("the project's student confirms", func(t *testing.T) {
		require.NoError(t, h.Handle(context.Background(), ConfirmSessionCommand{
			SessionID: res.SessionID, StudentID: 100,
		}))
		s := f.store.sessions[res.SessionID]
		assert.True(t, s.Confirmed)
		require.NotNil(t, s.ConfirmedAt)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Period lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestPeriodLifecycle(t *testing.T) {
	t.Run("duplicate academic year", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		a, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1})
		require.NoError(t, err)
		require.NoError(t, svc.Close(context.Background(), a.ID, 1, "done"))

		_, err = svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1})
		assert.ErrorIs(t, err, shared.ErrYearAlreadyExists)
	})

	t.Run("at most one active period", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		_, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1})
		require.NoError(t, err)

		_, err = svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2027/2028", StartDate: testNow.AddDate(1, 0, 0), ActorID: 1})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("promoting an already promoted period is benign", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		p, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1}, testNow.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, svc.PromoteNow(context.Background(), p.ID))

		err = svc.PromoteNow(context.Background(), p.ID)
		assert.ErrorIs(t, err, shared.ErrPeriodAlreadyActive)
	})

	t.Run("promotion is attributed to the system", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		p, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1}, testNow.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, svc.PromoteNow(context.Background(), p.ID))

		got := f.store.periods[p.ID]
		assert.Equal(t, period.StatusActive, got.Status)
		require.NotNil(t, got.OpenedBy)
		assert.Zero(t, *got.OpenedBy)
	})

	t.Run("close requires no open projects", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		periodID := f.seedActive(t)
		f.seedProject(periodID, 100, 7)

		err := svc.Close(context.Background(), periodID, 1, "wrapping up")
		assert.ErrorIs(t, err, shared.ErrPeriodHasOpenWork)

		for _, p := range f.store.projects {
			p.Status = thesis.ProjectDefended
		}
		require.NoError(t, svc.Close(context.Background(), periodID, 1, "wrapping up"))
		assert.Equal(t, period.StatusClosed, f.store.periods[periodID].Status)
		assert.Equal(t, "wrapping up", f.store.periods[periodID].Remarks)
	})

	t.Run("closed period frees the slot for the next one", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		a := f.seedActive(t)
		require.NoError(t, svc.Close(context.Background(), a, 1, ""))

		_, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2027/2028", StartDate: testNow.AddDate(1, 0, 0), ActorID: 1})
		assert.NoError(t, err)
	})

	t.Run("cancelling a scheduled opening removes the period", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		p, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1}, testNow.Add(24*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, f.store.periods[p.ID].OpensAt)

		require.NoError(t, svc.CancelScheduledOpening(context.Background(), p.ID, 1))
		_, ok := f.store.periods[p.ID]
		assert.False(t, ok)
	})

	t.Run("two armed openings cannot coexist", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		_, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1}, testNow.Add(2*time.Hour))
		require.NoError(t, err)

		_, err = svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2027/2028", StartDate: testNow.AddDate(1, 0, 0), ActorID: 1}, testNow.Add(3*time.Hour))
		assert.ErrorIs(t, err, shared.ErrOpeningOverlap)

		// The guard cuts both ways: an earlier opening is just as rejected.
		_, err = svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2028/2029", StartDate: testNow.AddDate(2, 0, 0), ActorID: 1}, testNow.Add(time.Hour))
		assert.ErrorIs(t, err, shared.ErrOpeningOverlap)
	})

	t.Run("no arming while a period is active", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		f.seedActive(t)

		_, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2027/2028", StartDate: testNow.AddDate(1, 0, 0), ActorID: 1}, testNow.Add(time.Hour))
		assert.ErrorIs(t, err, shared.ErrOpeningOverlap)
	})

	t.Run("delete guards", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		active := f.seedActive(t)

		err := svc.Delete(context.Background(), active, 1)
		assert.ErrorIs(t, err, shared.ErrPeriodIsActive)

		require.NoError(t, svc.Close(context.Background(), active, 1, ""))
		p, err := svc.OpenScheduled(context.Background(), OpenPeriodCommand{AcademicYear: "2027/2028", StartDate: testNow.AddDate(1, 0, 0), ActorID: 1}, testNow.Add(time.Hour))
		require.NoError(t, err)

		f.store.dependents[p.ID] = 3
		err = svc.Delete(context.Background(), p.ID, 1)
		assert.ErrorIs(t, err, shared.ErrPeriodHasDependents)

		f.store.dependents[p.ID] = 0
		require.NoError(t, svc.Delete(context.Background(), p.ID, 1))
		_, ok := f.store.periods[p.ID]
		assert.False(t, ok)

		// A closed period without dependents is removable too.
		require.NoError(t, svc.Delete(context.Background(), active, 1))
		_, ok = f.store.periods[active]
		assert.False(t, ok)
	})

	t.Run("every transition invalidates the cache", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()

		before := f.cache.invalidations
		p, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1})
		require.NoError(t, err)
		require.NoError(t, svc.Close(context.Background(), p.ID, 1, ""))
		assert.Equal(t, before+2, f.cache.invalidations)
	})

	t.Run("events carry the transition", func(t *testing.T) {
		f := newFixture()
		svc := f.periodService()
		p, err := svc.OpenImmediately(context.Background(), OpenPeriodCommand{AcademicYear: "2026/2027", StartDate: testNow, ActorID: 1})
		require.NoError(t, err)
		require.NoError(t, svc.Close(context.Background(), p.ID, 1, ""))

		types := f.publisher.types()
		assert.Contains(t, types, shared.EventPeriodOpened)
		assert.Contains(t, types, shared.EventPeriodClosed)
	})
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm/internal/domain"
	"crm/internal/driverapi"
	"crm/internal/prefetch"
	"crm/internal/repository"
)

const submitLockTTL = 30 * time.Second

// CounterStore keeps the durable daily call tally.
type CounterStore interface {
	Load(ctx context.Context, workspace string, day time.Time) (domain.Tally, error)
	Add(ctx context.Context, workspace string, day time.Time, calls int, active time.Duration) (domain.Tally, error)
}

// SubmitLocker guards a driver against concurrent call submissions.
type SubmitLocker interface {
	AcquireSubmitLock(ctx context.Context, workspace, driverID string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, workspace, driverID string) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Loader   *prefetch.Loader
	API      prefetch.DriverAPI
	CallLogs repository.CallLogRepository
	Counters CounterStore
	Locks    SubmitLocker // optional
	Prefetch prefetch.Config
	Location *time.Location
	Now      func() time.Time
	Log      zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Session is one operator's call screen. All methods are safe for
// concurrent use; network calls run outside the session lock.
type Session struct {
	operatorID string
	deps       Deps
	log        zerolog.Logger

	mu          sync.Mutex
	generation  uint64
	workspace   string
	state       State
	loadingNext bool
	current     *domain.DriverRecord
	history     map[string][]*domain.CallLogEntry
	form        Form
	tally       domain.Tally
	lastErr     string
	ctrl        *prefetch.Controller
}

// NewSession creates a session with no workspace open.
func NewSession(operatorID string, deps Deps) *Session {
	deps = deps.withDefaults()
	return &Session{
		operatorID: operatorID,
		deps:       deps,
		log:        deps.Log.With().Str("operator_id", operatorID).Logger(),
		state:      StateNoWorkspace,
		history:    make(map[string][]*domain.CallLogEntry),
	}
}

func (s *Session) today() time.Time {
	return s.deps.Now().In(s.deps.Location)
}

// Open switches the session to workspace. The previous workspace's prefetch
// is stopped, the day's tally is re-read from the counter store, and the
// workspace's current driver is loaded.
func (s *Session) Open(ctx context.Context, workspace string) error {
	s.mu.Lock()
	old := s.ctrl
	s.ctrl = nil
	s.generation++
	gen := s.generation
	s.workspace = workspace
	s.current = nil
	s.history = make(map[string][]*domain.CallLogEntry)
	s.form = Form{}
	s.tally = domain.Tally{}
	s.loadingNext = false
	s.lastErr = ""
	if workspace == "" {
		s.state = StateNoWorkspace
	} else {
		s.state = StateInitialLoading
	}
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if workspace == "" {
		return nil
	}

	log := s.log.With().Str("workspace", workspace).Logger()

	tally, err := s.deps.Counters.Load(ctx, workspace, s.today())
	if err != nil {
		log.Warn().Err(err).Msg("load call counters failed, starting from zero")
		tally = domain.Tally{}
	}

	record, loadErr := s.deps.Loader.Load(ctx, workspace, "")

	var history []*domain.CallLogEntry
	if loadErr == nil {
		history = s.fetchHistory(ctx, workspace, record.DriverOriginID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrSessionChanged
	}
	s.tally = tally

	if loadErr != nil {
		s.state = StateNoDriver
		if errors.Is(loadErr, driverapi.ErrNotFound) {
			log.Info().Msg("workspace has no current driver")
			return nil
		}
		s.lastErr = loadErr.Error()
		return fmt.Errorf("load current driver: %w", loadErr)
	}

	s.current = record
	s.history[record.DriverOriginID] = history
	s.state = StateReady

	ctrl := prefetch.NewController(workspace, s.deps.Loader, s.deps.API, s.deps.Prefetch, log)
	s.ctrl = ctrl
	ctrl.Start()
	ctrl.PrefetchAdjacent(record)

	log.Info().Str("driver_id", record.DriverOriginID).Msg("workspace opened")
	return nil
}

// Next moves to the displayed driver's next neighbour.
func (s *Session) Next(ctx context.Context) error {
	return s.navigate(ctx, func(r *domain.DriverRecord) domain.DriverRef { return r.Next })
}

// Previous moves to the displayed driver's previous neighbour.
func (s *Session) Previous(ctx context.Context) error {
	return s.navigate(ctx, func(r *domain.DriverRecord) domain.DriverRef { return r.Previous })
}

func (s *Session) navigate(ctx context.Context, pick func(*domain.DriverRecord) domain.DriverRef) error {
	s.mu.Lock()
	if err := s.navigableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	ref := pick(s.current)
	s.mu.Unlock()

	return s.advance(ctx, ref)
}

func (s *Session) navigableLocked() error {
	switch {
	case s.workspace == "":
		return ErrNoWorkspace
	case s.loadingNext:
		return ErrNavigationInProgress
	case s.state == StateSubmitting:
		return ErrSubmitInProgress
	case s.state == StateCallInProgress:
		return ErrCallInProgress
	case s.current == nil:
		return ErrNoDriver
	}
	return nil
}

// advance displays the driver ref points at. An empty ref is a no-op. A
// cached driver is swapped in immediately; otherwise the session shows the
// inline loading flag while the driver is fetched.
func (s *Session) advance(ctx context.Context, ref domain.DriverRef) error {
	if ref.IsZero() {
		return nil
	}
	id := ref.String()

	s.mu.Lock()
	if s.loadingNext {
		s.mu.Unlock()
		return ErrNavigationInProgress
	}
	gen, workspace, ctrl := s.generation, s.workspace, s.ctrl

	record, cached := s.deps.Loader.Cached(workspace, id)
	if !cached {
		s.loadingNext = true
	}
	s.mu.Unlock()

	if !cached {
		var err error
		record, err = s.deps.Loader.Load(ctx, workspace, id)

		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return ErrSessionChanged
		}
		s.loadingNext = false
		if err != nil {
			s.lastErr = err.Error()
			s.mu.Unlock()
			return fmt.Errorf("load driver %s: %w", id, err)
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	// A call may have started on the displayed driver while the lock was released.
	switch s.state {
	case StateCallInProgress:
		s.mu.Unlock()
		return ErrCallInProgress
	case StateSubmitting:
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.current = record
	s.form = Form{}
	s.state = StateReady
	s.lastErr = ""
	_, haveHistory := s.history[record.DriverOriginID]
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Consume(record.DriverOriginID)
		ctrl.PrefetchAdjacent(record)
	}

	if !haveHistory {
		history := s.fetchHistory(ctx, workspace, record.DriverOriginID)
		s.mu.Lock()
		if gen == s.generation {
			if _, ok := s.history[record.DriverOriginID]; !ok {
				s.history[record.DriverOriginID] = history
			}
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) fetchHistory(ctx context.Context, workspace, driverID string) []*domain.CallLogEntry {
	history, err := s.deps.CallLogs.ListByDriver(ctx, workspace, driverID)
	if err != nil {
		s.log.Warn().Err(err).Str("driver_id", driverID).Msg("load call history failed")
		return []*domain.CallLogEntry{}
	}
	return history
}

// StartCall starts the call timer.
func (s *Session) StartCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.current == nil:
		return ErrNoDriver
	case s.state == StateCallInProgress:
		return ErrCallInProgress
	case s.state != StateReady:
		return ErrSubmitInProgress
	}

	now := s.deps.Now()
	s.form.CallStartedAt = &now
	s.state = StateCallInProgress
	return nil
}

// EndCall stops the call timer and adds the elapsed time to the form.
func (s *Session) EndCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCallInProgress || s.form.CallStartedAt == nil {
		return ErrCallNotStarted
	}
	s.stopTimerLocked()
	return nil
}

func (s *Session) stopTimerLocked() {
	if s.form.CallStartedAt == nil {
		return
	}
	if elapsed := s.deps.Now().Sub(*s.form.CallStartedAt); elapsed > 0 {
		s.form.ActiveTime += elapsed
	}
	s.form.CallStartedAt = nil
	s.state = StateReady
}

// UpdateForm replaces the note, status and callback date.
func (s *Session) UpdateForm(in FormInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoDriver
	}
	if s.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	if in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}

	s.form.Note = in.Note
	s.form.Status = in.Status
	s.form.CallbackDate = in.CallbackDate
	return nil
}

// Submit records the call for the displayed driver, then advances to the
// next driver. Validation failures make no network call. When persistence
// fails the form is left untouched so the operator can retry.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.submittableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.state == StateCallInProgress {
		s.stopTimerLocked()
	}

	gen, workspace := s.generation, s.workspace
	driverID := s.current.DriverOriginID
	next := s.current.Next
	entry := &domain.CallLogEntry{
		ID:           uuid.NewString(),
		WorkspaceID:  workspace,
		DriverID:     driverID,
		Date:         s.deps.Now().UTC(),
		Status:       s.form.Status,
		Note:         s.form.Note,
		CallbackDate: s.form.CallbackDate,
		Duration:     s.form.ActiveTime.Truncate(time.Second),
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	stored, err := s.persist(ctx, entry)
	if err != nil {
		s.mu.Lock()
		if gen == s.generation {
			s.state = StateReady
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		return err
	}

	tally, counterErr := s.deps.Counters.Add(ctx, workspace, s.today(), 1, entry.Duration)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	s.history[driverID] = append([]*domain.CallLogEntry{stored}, s.history[driverID]...)
	if counterErr != nil {
		s.log.Warn().Err(counterErr).Msg("update call counters failed, counting locally")
		s.tally.Calls++
		s.tally.ActiveTime += entry.Duration
	} else {
		s.tally = tally
	}
	s.form = Form{}
	s.state = StateReady
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info().
		Str("workspace", workspace).
		Str("driver_id", driverID).
		Str("status", string(entry.Status)).
		Dur("duration", entry.Duration).
		Msg("call submitted")

	if err := s.advance(ctx, next); err != nil {
		s.log.Warn().Err(err).Msg("advance after submit failed")
	}
	return nil
}

func (s *Session) submittableLocked() error {
	switch {
	case s.workspace == "":
		return ErrNoWorkspace
	case s.current == nil:
		return ErrNoDriver
	case s.state == StateSubmitting:
		return ErrSubmitInProgress
	case s.loadingNext:
		return ErrNavigationInProgress
	case s.form.Status == "":
		return ErrStatusRequired
	case !s.form.Status.Valid():
		return ErrInvalidStatus
	case s.form.CallbackDate == nil:
		return ErrCallbackDateRequired
	}
	return nil
}

func (s *Session) persist(ctx context.Context, entry *domain.CallLogEntry) (*domain.CallLogEntry, error) {
	if s.deps.Locks != nil {
		ok, err := s.deps.Locks.AcquireSubmitLock(ctx, entry.WorkspaceID, entry.DriverID, submitLockTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("submit lock unavailable, continuing without it")
		case !ok:
			return nil, ErrSubmitInProgress
		default:
			defer func() {
				if err := s.deps.Locks.ReleaseSubmitLock(context.WithoutCancel(ctx), entry.WorkspaceID, entry.DriverID); err != nil {
					s.log.Warn().Err(err).Msg("release submit lock failed")
				}
			}()
		}
	}

	stored, err := s.deps.CallLogs.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("save call log: %w", err)
	}
	return stored, nil
}

// Close stops background prefetching.
func (s *Session) Close() {
	s.mu.Lock()
	ctrl := s.ctrl
	s.ctrl = nil
	s.generation++
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Stop()
	}
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		OperatorID:  s.operatorID,
		WorkspaceID: s.workspace,
		State:       s.state,
		LoadingNext: s.loadingNext,
		Form: FormView{
			Note:          s.form.Note,
			Status:        s.form.Status,
			CallbackDate:  s.form.CallbackDate,
			ActiveTime:    domain.FormatMinutes(s.form.ActiveTime),
			CallStartedAt: s.form.CallStartedAt,
		},
		History: []*domain.CallLogEntry{},
		Stats: OperatorStats{
			CallsToday:      s.tally.Calls,
			AverageCallTime: domain.FormatMinutes(s.tally.AverageCallTime()),
			TotalCallTime:   domain.FormatMinutes(s.tally.ActiveTime),
		},
		LastError: s.lastErr,
	}

	if s.current != nil {
		driver := *s.current
		v.Driver = &driver
		v.DriverName = driver.FullName()
		v.WeeklyRides = driver.AverageWeeklyRides()
		v.Stats.RevenueGenerated = driver.RevenueTotal * revenueShare
		if h := s.history[driver.DriverOriginID]; h != nil {
			v.History = append(v.History, h...)
		}
	}
	if s.ctrl != nil {
		stats := s.ctrl.Stats()
		v.Prefetch = &stats
	}
	return v
}

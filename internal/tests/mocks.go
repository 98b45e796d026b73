package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crm/internal/domain"
	"crm/internal/driverapi"
	"crm/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER API
// ──────────────────────────────────────────────

// MockDriverAPI is an in-memory remote driver API with a linear roster.
type MockDriverAPI struct {
	mu      sync.RWMutex
	roster  map[string][]domain.DriverRecord
	current map[string]string
	failIDs map[string]error
	gate    chan struct{}

	// Counters for verification
	GetDriverCallCount   int32
	ListDriversCallCount int32
	perID                sync.Map // key -> *int32

	// Error injection
	ListError error
}

// NewMockDriverAPI creates an empty mock API.
func NewMockDriverAPI() *MockDriverAPI {
	return &MockDriverAPI{
		roster:  make(map[string][]domain.DriverRecord),
		current: make(map[string]string),
		failIDs: make(map[string]error),
	}
}

// SetRoster installs the workspace roster, linking each record to its
// neighbours. The first driver becomes the workspace's current driver.
func (m *MockDriverAPI) SetRoster(workspace string, records ...domain.DriverRecord) {
	linked := make([]domain.DriverRecord, len(records))
	copy(linked, records)
	for i := range linked {
		linked[i].Next, linked[i].Previous = "", ""
		if i > 0 {
			linked[i].Previous = domain.DriverRef(linked[i-1].DriverOriginID)
		}
		if i < len(linked)-1 {
			linked[i].Next = domain.DriverRef(linked[i+1].DriverOriginID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster[workspace] = linked
	if len(linked) > 0 {
		m.current[workspace] = linked[0].DriverOriginID
	} else {
		delete(m.current, workspace)
	}
}

// FailDriver makes GetDriver fail for id. A nil err clears the failure.
func (m *MockDriverAPI) FailDriver(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failIDs, id)
		return
	}
	m.failIDs[id] = err
}

// Hold makes GetDriver block until Release is called or the request
// context ends.
func (m *MockDriverAPI) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks fetches held by Hold.
func (m *MockDriverAPI) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// CallsFor returns how many times GetDriver was asked for id.
func (m *MockDriverAPI) CallsFor(id string) int {
	v, ok := m.perID.Load(id)
	if !ok {
		return 0
	}
	return int(atomic.LoadInt32(v.(*int32)))
}

func (m *MockDriverAPI) GetDriver(ctx context.Context, workspace, driverID string) (*domain.DriverRecord, error) {
	atomic.AddInt32(&m.GetDriverCallCount, 1)
	counter, _ := m.perID.LoadOrStore(driverID, new(int32))
	atomic.AddInt32(counter.(*int32), 1)

	m.mu.RLock()
	gate := m.gate
	m.mu.RUnlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if workspace == "" {
		return nil, driverapi.ErrInvalidWorkspace
	}
	id := driverID
	if id == "" {
		id = m.current[workspace]
	}
	if err, ok := m.failIDs[id]; ok {
		return nil, err
	}
	for _, record := range m.roster[workspace] {
		if record.DriverOriginID == id {
			copy := record
			return &copy, nil
		}
	}
	return nil, driverapi.ErrNotFound
}

func (m *MockDriverAPI) ListDrivers(ctx context.Context, workspace string, limit, offset int) ([]domain.DriverRecord, error) {
	atomic.AddInt32(&m.ListDriversCallCount, 1)
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	roster := m.roster[workspace]
	if offset >= len(roster) {
		return []domain.DriverRecord{}, nil
	}
	end := offset + limit
	if end > len(roster) {
		end = len(roster)
	}
	page := make([]domain.DriverRecord, end-offset)
	copy(page, roster[offset:end])
	return page, nil
}

// ──────────────────────────────────────────────
// MOCK REVENUE API
// ──────────────────────────────────────────────

// RevenueCall records one revenue request.
type RevenueCall struct {
	Resource  string
	Workspace string
	Start     time.Time
	End       time.Time
}

// MockRevenueAPI answers the revenue endpoints with a canned body that
// echoes the resource and workspace.
type MockRevenueAPI struct {
	mu    sync.Mutex
	calls []RevenueCall

	// Error injection
	Error error
}

// NewMockRevenueAPI creates a mock revenue API.
func NewMockRevenueAPI() *MockRevenueAPI {
	return &MockRevenueAPI{}
}

// Calls returns the recorded requests.
func (m *MockRevenueAPI) Calls() []RevenueCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RevenueCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockRevenueAPI) TotalRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return m.answer("revenu-general", workspace, start, end)
}

func (m *MockRevenueAPI) DailyRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return m.answer("revenu-journalier", workspace, start, end)
}

func (m *MockRevenueAPI) CoreElectron(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return m.answer("core-electron", workspace, start, end)
}

func (m *MockRevenueAPI) answer(resource, workspace string, start, end time.Time) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RevenueCall{Resource: resource, Workspace: workspace, Start: start, End: end})
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	return json.RawMessage(fmt.Sprintf(`{"resource":%q,"workspace":%q}`, resource, workspace)), nil
}

// ──────────────────────────────────────────────
// MOCK CALL LOG REPOSITORY
// ──────────────────────────────────────────────

// MockCallLogRepository is a mock implementation of CallLogRepository.
type MockCallLogRepository struct {
	mu        sync.RWMutex
	entries   []*domain.CallLogEntry
	createErr error

	// Counters for verification
	CreateCallCount int32
	ListCallCount   int32
}

// NewMockCallLogRepository creates a new mock call log repository.
func NewMockCallLogRepository() *MockCallLogRepository {
	return &MockCallLogRepository{}
}

// SetCreateError makes Create fail with err until cleared with nil.
func (m *MockCallLogRepository) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// AddEntry seeds an existing call log.
func (m *MockCallLogRepository) AddEntry(entry *domain.CallLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

// Entries returns every stored call log.
func (m *MockCallLogRepository) Entries() []*domain.CallLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.CallLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *MockCallLogRepository) Create(ctx context.Context, entry *domain.CallLogEntry) (*domain.CallLogEntry, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.entries {
		if existing.ID == entry.ID {
			return nil, repository.ErrDuplicate
		}
	}

	stored := *entry
	stored.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, &stored)
	copy := stored
	return &copy, nil
}

func (m *MockCallLogRepository) ListByDriver(ctx context.Context, workspaceID, driverID string) ([]*domain.CallLogEntry, error) {
	atomic.AddInt32(&m.ListCallCount, 1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.CallLogEntry, 0)
	for _, e := range m.entries {
		if e.WorkspaceID == workspaceID && e.DriverID == driverID {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK COUNTER STORE
// ──────────────────────────────────────────────

// MockCounterStore is an in-memory daily call tally.
type MockCounterStore struct {
	mu      sync.RWMutex
	tallies map[string]domain.Tally

	// Counters for verification
	LoadCallCount int32
	AddCallCount  int32

	// Error injection
	LoadError error
	AddError  error
}

// NewMockCounterStore creates a new mock counter store.
func NewMockCounterStore() *MockCounterStore {
	return &MockCounterStore{tallies: make(map[string]domain.Tally)}
}

func tallyKey(workspace string, day time.Time) string {
	return day.Format("2006-01-02") + "_" + workspace
}

// Seed sets the stored tally for workspace on day.
func (m *MockCounterStore) Seed(workspace string, day time.Time, tally domain.Tally) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tallies[tallyKey(workspace, day)] = tally
}

// Tally returns the stored tally for workspace on day.
func (m *MockCounterStore) Tally(workspace string, day time.Time) domain.Tally {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tallies[tallyKey(workspace, day)]
}

func (m *MockCounterStore) Load(ctx context.Context, workspace string, day time.Time) (domain.Tally, error) {
	atomic.AddInt32(&m.LoadCallCount, 1)
	if m.LoadError != nil {
		return domain.Tally{}, m.LoadError
	}
	return m.Tally(workspace, day), nil
}

func (m *MockCounterStore) Add(ctx context.Context, workspace string, day time.Time, calls int, active time.Duration) (domain.Tally, error) {
	atomic.AddInt32(&m.AddCallCount, 1)
	if m.AddError != nil {
		return domain.Tally{}, m.AddError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := tallyKey(workspace, day)
	t := m.tallies[key]
	t.Calls += calls
	t.ActiveTime += active.Truncate(time.Second)
	m.tallies[key] = t
	return t, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of the submission lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]bool)}
}

// Hold marks the driver's lock as taken by someone else.
func (m *MockLockStore) Hold(workspace, driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[workspace+":"+driverID] = true
}

func (m *MockLockStore) AcquireSubmitLock(ctx context.Context, workspace, driverID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := workspace + ":" + driverID
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MockLockStore) ReleaseSubmitLock(ctx context.Context, workspace, driverID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, workspace+":"+driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK ORDER / DRIVER REPOSITORIES
// ──────────────────────────────────────────────

// MockOrderRepository serves a fixed order list.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string][]domain.Order

	// Counters for verification
	ListCallCount int32

	// Error injection
	ListError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string][]domain.Order)}
}

// AddOrders appends orders to the workspace.
func (m *MockOrderRepository) AddOrders(workspace string, orders ...domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[workspace] = append(m.orders[workspace], orders...)
}

func (m *MockOrderRepository) ListBetween(ctx context.Context, workspaceID string, from, to time.Time) ([]domain.Order, error) {
	atomic.AddInt32(&m.ListCallCount, 1)
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Order
	for _, o := range m.orders[workspaceID] {
		if !o.BookedAt.Before(from) && o.BookedAt.Before(to) {
			result = append(result, o)
		}
	}
	return result, nil
}

// MockDriverRepository serves a fixed roster presence list and directory.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string][]domain.DriverPresence
	roster  map[string][]domain.RosterEntry

	// Error injection
	ListError error

	// Last ListRoster arguments
	LastSearch string
	LastAsOf   time.Time
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string][]domain.DriverPresence),
		roster:  make(map[string][]domain.RosterEntry),
	}
}

// AddRoster appends directory entries to the workspace.
func (m *MockDriverRepository) AddRoster(workspace string, entries ...domain.RosterEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster[workspace] = append(m.roster[workspace], entries...)
}

func (m *MockDriverRepository) ListRoster(ctx context.Context, workspaceID, search string, asOf time.Time) ([]domain.RosterEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSearch, m.LastAsOf = search, asOf

	term := strings.ToLower(strings.TrimSpace(search))
	var out []domain.RosterEntry
	for _, e := range m.roster[workspaceID] {
		if term == "" || rosterMatches(e, term) {
			out = append(out, e)
		}
	}
	return out, nil
}

func rosterMatches(e domain.RosterEntry, term string) bool {
	fields := []string{e.FirstName, e.LastName, e.DriverOriginID}
	fields = append(fields, e.Phones...)
	for _, car := range e.Cars {
		fields = append(fields, car.Callsign)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// AddDrivers appends roster entries to the workspace.
func (m *MockDriverRepository) AddDrivers(workspace string, drivers ...domain.DriverPresence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[workspace] = append(m.drivers[workspace], drivers...)
}

func (m *MockDriverRepository) ListPresence(ctx context.Context, workspaceID string) ([]domain.DriverPresence, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DriverPresence, len(m.drivers[workspaceID]))
	copy(out, m.drivers[workspaceID])
	return out, nil
}

// Ensure mocks implement interfaces.
var (
	_ repository.CallLogRepository = (*MockCallLogRepository)(nil)
	_ repository.OrderRepository   = (*MockOrderRepository)(nil)
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
)

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY STORE
// ──────────────────────────────────────────────

// MockIdempotencyStore keeps replayable responses in memory.
type MockIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMockIdempotencyStore creates an empty store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{data: make(map[string][]byte)}
}

func (m *MockIdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MockIdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

// Len returns the number of stored responses.
func (m *MockIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/supatable-api/internal/models"
)

var (
	t1    = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	john  = models.User{ID: "1", Email: "john@x.com", FullName: "John Smith", Role: models.RoleAdmin, CreatedAt: t1}
	alice = models.User{ID: "2", Email: "alice@x.com", FullName: "Alice Johnson", Role: models.RoleUser, CreatedAt: t1.Add(time.Hour)}
)

// recordingFetcher answers immediately and keeps every filter it was asked for.
type recordingFetcher struct {
	mu      sync.Mutex
	filters []models.UserFilter
	respond func(models.UserFilter) (*models.UserPage, error)
}

func (f *recordingFetcher) FetchUsers(_ context.Context, filter models.UserFilter) (*models.UserPage, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &models.UserPage{Items: []models.User{}}, nil
	}
	return respond(filter)
}

func (f *recordingFetcher) calls() []models.UserFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.UserFilter, len(f.filters))
	copy(out, f.filters)
	return out
}

type fetchResult struct {
	page *models.UserPage
	err  error
}

type pendingFetch struct {
	filter  models.UserFilter
	release chan fetchResult
}

// gatedFetcher blocks every fetch until the test releases it.
type gatedFetcher struct {
	pending chan *pendingFetch
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{pending: make(chan *pendingFetch, 16)}
}

func (f *gatedFetcher) FetchUsers(_ context.Context, filter models.UserFilter) (*models.UserPage, error) {
	p := &pendingFetch{filter: filter, release: make(chan fetchResult, 1)}
	f.pending <- p
	r := <-p.release
	return r.page, r.err
}

func (f *gatedFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.pending:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch to be issued")
		return nil
	}
}

func (f *gatedFetcher) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.pending:
		t.Fatalf("unexpected fetch for %+v", p.filter)
	case <-time.After(50 * time.Millisecond):
	}
}

// manualTimers records debounce callbacks so tests decide when they fire.
type manualTimers struct {
	mu    sync.Mutex
	funcs []func()
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, f)
	return func() bool { return true }
}

// fire runs the i-th scheduled callback even if it was stopped, like a timer that already expired.
func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.funcs[i]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.funcs)
}

func waitFor(t *testing.T, c *Coordinator, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return c.Snapshot()
}

func settledWith(filter models.UserFilter) func(Snapshot) bool {
	return func(s Snapshot) bool {
		return s.Filter == filter && (s.State == StateSucceeded || s.State == StateFailed)
	}
}

func TestCoordinatorStartLoadsDefaultPage(t *testing.T) {
	fetcher := &recordingFetcher{respond: func(models.UserFilter) (*models.UserPage, error) {
		return &models.UserPage{Items: []models.User{alice, john}, TotalCount: 2}, nil
	}}
	c := NewCoordinator(fetcher, Options{})
	defer c.Close()

	assert.Equal(t, StateIdle, c.Snapshot().State)
	c.Start(models.DefaultUserFilter())

	snap := waitFor(t, c, settledWith(models.DefaultUserFilter()))
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, []models.User{alice, john}, snap.Items)
	assert.Equal(t, 2, snap.TotalCount)
	assert.Equal(t, []models.UserFilter{models.DefaultUserFilter()}, fetcher.calls())

	c.Start(models.DefaultUserFilter())
	assert.Len(t, fetcher.calls(), 1)
}

func TestCoordinatorDiscardsStaleResponse(t *testing.T) {
	fetcher := newGatedFetcher()
	core, logs := observer.New(zap.DebugLevel)
	c := NewCoordinator(fetcher, Options{Logger: zap.New(core)})
	defer c.Close()

	c.Start(models.DefaultUserFilter())
	first := fetcher.next(t)

	c.SetRole(models.RoleAdmin)
	second := fetcher.next(t)
	assert.Equal(t, models.RoleAdmin, second.filter.Role)

	second.release <- fetchResult{page: &models.UserPage{Items: []models.User{john}, TotalCount: 1}}
	waitFor(t, c, func(s Snapshot) bool { return s.State == StateSucceeded })

	first.release <- fetchResult{page: &models.UserPage{Items: []models.User{alice, john}, TotalCount: 2}}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("discarded stale users response").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, []models.User{john}, snap.Items)
	assert.Equal(t, 1, snap.TotalCount)
	assert.Equal(t, models.RoleAdmin, snap.Filter.Role)
}

func TestCoordinatorDiscardsStaleError(t *testing.T) {
	fetcher := newGatedFetcher()
	core, logs := observer.New(zap.DebugLevel)
	c := NewCoordinator(fetcher, Options{Logger: zap.New(core)})
	defer c.Close()

	c.Start(models.DefaultUserFilter())
	first := fetcher.next(t)
	c.SetLimit(10)
	second := fetcher.next(t)

	second.release <- fetchResult{page: &models.UserPage{Items: []models.User{alice}, TotalCount: 1}}
	waitFor(t, c, func(s Snapshot) bool { return s.State == StateSucceeded })

	first.release <- fetchResult{err: errors.New("HTTP 502: bad gateway")}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("discarded stale users response").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.Err)
}

func TestCoordinatorResetIssuesExactlyOneFetch(t *testing.T) {
	fetcher := &recordingFetcher{}
	timers := &manualTimers{}
	c := NewCoordinator(fetcher, Options{AfterFunc: timers.AfterFunc})
	defer c.Close()

	start := models.UserFilter{Search: "alice", Role: models.RoleAdmin, Offset: 20, Limit: 50}
	c.Start(start)
	waitFor(t, c, settledWith(start))

	c.SetSearch("alicia")
	require.Equal(t, 1, timers.count())

	c.Reset()
	timers.fire(0)

	snap := waitFor(t, c, settledWith(models.DefaultUserFilter()))
	assert.Equal(t, "", snap.DraftSearch)
	assert.Equal(t, []models.UserFilter{start, {Search: "", Role: models.RoleAll, Offset: 0, Limit: 50}}, fetcher.calls())
}

func TestCoordinatorDebounceCoalescesSearchEdits(t *testing.T) {
	fetcher := &recordingFetcher{}
	timers := &manualTimers{}
	c := NewCoordinator(fetcher, Options{AfterFunc: timers.AfterFunc})
	defer c.Close()

	start := models.UserFilter{Role: models.RoleAll, Offset: 100, Limit: 50}
	c.Start(start)
	waitFor(t, c, settledWith(start))

	c.SetSearch("a")
	c.SetSearch("al")
	c.SetSearch("alice")

	snap := c.Snapshot()
	assert.Equal(t, "alice", snap.DraftSearch)
	assert.Equal(t, "", snap.Filter.Search)

	timers.fire(0)
	timers.fire(1)
	assert.Len(t, fetcher.calls(), 1)

	timers.fire(2)
	want := models.UserFilter{Search: "alice", Role: models.RoleAll, Offset: 0, Limit: 50}
	waitFor(t, c, settledWith(want))
	assert.Equal(t, []models.UserFilter{start, want}, fetcher.calls())
}

func TestCoordinatorSkipsUnchangedFilter(t *testing.T) {
	fetcher := &recordingFetcher{}
	timers := &manualTimers{}
	c := NewCoordinator(fetcher, Options{AfterFunc: timers.AfterFunc})
	defer c.Close()

	c.Start(models.DefaultUserFilter())
	waitFor(t, c, settledWith(models.DefaultUserFilter()))

	c.SetSearch("   ")
	timers.fire(0)
	c.SetRole(models.RoleAll)
	c.SetRole("")
	c.SetLimit(500)
	c.SetOffset(-3)

	assert.Len(t, fetcher.calls(), 1)

	c.Refresh()
	require.Eventually(t, func() bool { return len(fetcher.calls()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorPagination(t *testing.T) {
	fetcher := &recordingFetcher{respond: func(models.UserFilter) (*models.UserPage, error) {
		return &models.UserPage{Items: []models.User{john}, TotalCount: 120}, nil
	}}
	c := NewCoordinator(fetcher, Options{})
	defer c.Close()

	page := func(offset int) models.UserFilter {
		return models.UserFilter{Role: models.RoleAll, Offset: offset, Limit: 50}
	}

	c.Start(models.DefaultUserFilter())
	waitFor(t, c, settledWith(page(0)))

	c.NextPage()
	waitFor(t, c, settledWith(page(50)))
	c.NextPage()
	waitFor(t, c, settledWith(page(100)))

	c.NextPage()
	assert.Equal(t, page(100), c.Snapshot().Filter)

	c.PrevPage()
	waitFor(t, c, settledWith(page(50)))
	c.PrevPage()
	waitFor(t, c, settledWith(page(0)))
	c.PrevPage()

	c.SetOffset(100)
	waitFor(t, c, settledWith(page(100)))
	c.SetRole(models.RoleManager)
	snap := waitFor(t, c, settledWith(models.UserFilter{Role: models.RoleManager, Offset: 0, Limit: 50}))
	assert.Equal(t, 120, snap.TotalCount)

	assert.Len(t, fetcher.calls(), 7)
}

func TestCoordinatorFailureEmptiesItemsAndKeepsMessage(t *testing.T) {
	fetcher := newGatedFetcher()
	c := NewCoordinator(fetcher, Options{})
	defer c.Close()

	c.Start(models.DefaultUserFilter())
	fetcher.next(t).release <- fetchResult{page: &models.UserPage{Items: []models.User{alice, john}, TotalCount: 2}}
	waitFor(t, c, func(s Snapshot) bool { return s.State == StateSucceeded })

	c.Refresh()
	retry := fetcher.next(t)

	loading := c.Snapshot()
	assert.Equal(t, StateFetching, loading.State)
	assert.Len(t, loading.Items, 2)
	assert.Equal(t, ModePopulated, BuildView(loading, DefaultSort()).Mode)

	retry.release <- fetchResult{err: errors.New("failed to load users")}
	snap := waitFor(t, c, func(s Snapshot) bool { return s.State == StateFailed })
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, snap.TotalCount)
	assert.Equal(t, "failed to load users", snap.Err)

	c.Refresh()
	fetcher.next(t).release <- fetchResult{page: &models.UserPage{Items: []models.User{john}, TotalCount: 1}}
	snap = waitFor(t, c, func(s Snapshot) bool { return s.State == StateSucceeded })
	assert.Empty(t, snap.Err)
	assert.Equal(t, []models.User{john}, snap.Items)
}

func TestCoordinatorCloseDiscardsInFlightFetch(t *testing.T) {
	fetcher := newGatedFetcher()
	timers := &manualTimers{}
	core, logs := observer.New(zap.DebugLevel)
	c := NewCoordinator(fetcher, Options{Logger: zap.New(core), AfterFunc: timers.AfterFunc})

	c.Start(models.DefaultUserFilter())
	inFlight := fetcher.next(t)
	c.SetSearch("bob")

	c.Close()
	inFlight.release <- fetchResult{page: &models.UserPage{Items: []models.User{john}, TotalCount: 1}}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("discarded stale users response").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	timers.fire(0)
	c.SetRole(models.RoleAdmin)
	c.Reset()
	c.Refresh()
	fetcher.assertIdle(t)

	assert.Empty(t, c.Snapshot().Items)
}

func TestCoordinatorNotifiesOnChange(t *testing.T) {
	fetcher := &recordingFetcher{}
	c := NewCoordinator(fetcher, Options{})
	defer c.Close()

	c.Start(models.DefaultUserFilter())
	select {
	case <-c.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

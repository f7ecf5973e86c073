package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supatable-api/internal/models"
)

// DefaultDebounce is the quiet period applied to search edits.
const DefaultDebounce = 250 * time.Millisecond

var errEmptyResponse = errors.New("empty response")

// Fetcher loads one page of users for a filter.
type Fetcher interface {
	FetchUsers(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
}

// State is the lifecycle of the most recently issued fetch.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Options tunes a Coordinator. Zero values select the defaults.
type Options struct {
	Debounce  time.Duration
	Timeout   time.Duration
	Logger    *zap.Logger
	AfterFunc AfterFunc
}

// Snapshot is a consistent copy of the coordinator state.
type Snapshot struct {
	State       State
	Filter      models.UserFilter
	DraftSearch string
	Items       []models.User
	TotalCount  int
	Err         string
	Generation  uint64
}

// Fetching reports whether a fetch is in flight.
func (s Snapshot) Fetching() bool {
	return s.State == StateFetching
}

// Coordinator owns the filter state of one users view and makes sure only the response to the
// most recently issued fetch is ever applied, whatever order responses arrive in.
type Coordinator struct {
	fetcher   Fetcher
	debounce  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	afterFunc AfterFunc

	mu          sync.Mutex
	filter      models.UserFilter
	draft       string
	state       State
	items       []models.User
	total       int
	errMsg      string
	generation  uint64
	debounceSeq uint64
	stopTimer   func() bool
	started     bool
	closed      bool

	changes chan struct{}
}

// NewCoordinator creates a coordinator holding the default filter. Call Start to issue the first fetch.
func NewCoordinator(fetcher Fetcher, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = timeAfterFunc
	}
	return &Coordinator{
		fetcher:   fetcher,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		afterFunc: opts.AfterFunc,
		filter:    models.DefaultUserFilter(),
		items:     []models.User{},
		changes:   make(chan struct{}, 1),
	}
}

// Changes signals that the snapshot changed. Signals coalesce; read Snapshot after each one.
func (c *Coordinator) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]models.User, len(c.items))
	copy(items, c.items)
	return Snapshot{
		State:       c.state,
		Filter:      c.filter,
		DraftSearch: c.draft,
		Items:       items,
		TotalCount:  c.total,
		Err:         c.errMsg,
		Generation:  c.generation,
	}
}

// Start issues the initial fetch for filter. Later calls are ignored.
func (c *Coordinator) Start(filter models.UserFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.filter = filter.Normalize()
	c.draft = c.filter.Search
	c.fetchLocked()
}

// SetSearch records a search edit. The committed search changes only after the debounce period
// passes without another edit.
func (c *Coordinator) SetSearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.draft = search
	c.cancelDebounceLocked()
	seq := c.debounceSeq
	c.stopTimer = c.afterFunc(c.debounce, func() { c.settleSearch(seq) })
	c.notify()
}

func (c *Coordinator) settleSearch(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.debounceSeq {
		return
	}
	c.stopTimer = nil
	next := c.filter
	next.Search = c.draft
	next.Offset = 0
	c.applyLocked(next)
}

// SetRole switches the role filter and returns to the first page.
func (c *Coordinator) SetRole(role models.UserRole) {
	c.update(func(f *models.UserFilter) {
		f.Role = role
		f.Offset = 0
	})
}

// SetOffset jumps to offset.
func (c *Coordinator) SetOffset(offset int) {
	c.update(func(f *models.UserFilter) {
		f.Offset = offset
	})
}

// SetLimit changes the page size and returns to the first page.
func (c *Coordinator) SetLimit(limit int) {
	c.update(func(f *models.UserFilter) {
		f.Limit = limit
		f.Offset = 0
	})
}

// NextPage advances one page when more rows exist past the current one.
func (c *Coordinator) NextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.filter.Offset+c.filter.Limit >= c.total {
		return
	}
	next := c.filter
	next.Offset += next.Limit
	c.applyLocked(next)
}

// PrevPage goes back one page, stopping at the first.
func (c *Coordinator) PrevPage() {
	c.update(func(f *models.UserFilter) {
		f.Offset -= f.Limit
	})
}

// Reset clears search (draft and pending debounce included), role, offset and limit in one step
// and issues exactly one fetch for the default filter.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cancelDebounceLocked()
	c.draft = ""
	c.filter = models.DefaultUserFilter()
	c.started = true
	c.fetchLocked()
}

// Refresh re-issues the current filter, for retrying after an error.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.started = true
	c.fetchLocked()
}

// Close tears the coordinator down. Fetches still in flight complete but are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	c.cancelDebounceLocked()
}

func (c *Coordinator) update(mutate func(f *models.UserFilter)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	next := c.filter
	mutate(&next)
	c.applyLocked(next)
}

func (c *Coordinator) applyLocked(next models.UserFilter) {
	next = next.Normalize()
	if c.started && next == c.filter {
		return
	}
	c.filter = next
	c.started = true
	c.fetchLocked()
}

func (c *Coordinator) cancelDebounceLocked() {
	c.debounceSeq++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Coordinator) fetchLocked() {
	c.generation++
	gen := c.generation
	filter := c.filter
	c.state = StateFetching
	c.errMsg = ""
	c.notify()

	c.logger.Debug("fetching users",
		zap.Uint64("generation", gen),
		zap.String("search", filter.Search),
		zap.String("role", string(filter.Role)),
		zap.Int("offset", filter.Offset),
		zap.Int("limit", filter.Limit),
	)

	go func() {
		ctx := context.Background()
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		page, err := c.fetcher.FetchUsers(ctx, filter)
		c.settle(gen, page, err)
	}()
}

func (c *Coordinator) settle(gen uint64, page *models.UserPage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("discarded stale users response",
			zap.Uint64("generation", gen),
			zap.Uint64("current", c.generation),
		)
		return
	}

	if err == nil && page == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.state = StateFailed
		c.items = []models.User{}
		c.total = 0
		c.errMsg = err.Error()
		c.logger.Debug("users fetch failed", zap.Uint64("generation", gen), zap.Error(err))
		c.notify()
		return
	}

	c.state = StateSucceeded
	c.items = page.Items
	if c.items == nil {
		c.items = []models.User{}
	}
	c.total = page.TotalCount
	c.notify()
}

func (c *Coordinator) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

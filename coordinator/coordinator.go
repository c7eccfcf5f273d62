package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/ostrom-go/calc"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/metrics"
	"github.com/icodeforyou/ostrom-go/ostrom"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRetryDelay     = 10 * time.Minute
	DefaultRefreshTimeout = time.Minute
)

type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Fetching
	ReadyWithError
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Fetching:
		return "fetching"
	case ReadyWithError:
		return "ready_with_error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// History persists readings and snapshots between cycles and restarts.
type History interface {
	SaveReadings(ctx context.Context, r types.Readings) error
	ConsumptionSince(ctx context.Context, since time.Time) ([]types.Consumption, error)
	SaveSnapshot(ctx context.Context, s types.Snapshot) error
	LatestSnapshot(ctx context.Context) (types.Snapshot, bool, error)
}

type Option func(*Coordinator)

func WithHistory(h History) Option {
	return func(c *Coordinator) { c.history = h }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithRefreshTimeout bounds a refresh started by the retry timer.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the current snapshot. Refreshes from the scheduler, the
// retry timer and manual triggers share one in-flight cycle.
type Coordinator struct {
	logger         *slog.Logger
	provider       types.DataProvider
	history        History
	retryDelay     time.Duration
	refreshTimeout time.Duration
	loc            *time.Location
	now            func() time.Time
	group          singleflight.Group

	mu          sync.RWMutex
	state       State
	initialized bool
	snapshot    types.Snapshot
	hasSnapshot bool
	retry       *time.Timer
	listeners   []func(types.Snapshot)
	closed      bool
	inflight    sync.WaitGroup
}

func New(provider types.DataProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:         slog.Default().With("module", "coordinator"),
		provider:       provider,
		retryDelay:     DefaultRetryDelay,
		refreshTimeout: DefaultRefreshTimeout,
		loc:            hours.Location(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUpdate registers fn to be called with the snapshot after every cycle.
func (c *Coordinator) OnUpdate(fn func(types.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Setup restores the stored snapshot, initializes the provider and runs the
// first refresh. An initialization error is returned so the host can show an
// auth required or connection condition, the snapshot stays readable.
func (c *Coordinator) Setup(ctx context.Context) error {
	c.restore(ctx)

	if err := c.initialize(ctx); err != nil {
		c.fail(uuid.NewString(), err)
		return err
	}

	c.Refresh(ctx)
	return nil
}

// Refresh runs one cycle and returns the resulting snapshot. Concurrent
// callers wait for and share the cycle already in flight.
func (c *Coordinator) Refresh(ctx context.Context) types.Snapshot {
	c.mu.Lock()
	if c.closed {
		s := c.snapshot
		c.mu.Unlock()
		return s
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	v, _, shared := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx), nil
	})
	if shared {
		c.logger.Debug("joined refresh already in flight")
	}
	return v.(types.Snapshot)
}

// Reinitialize forgets the account data of the provider and runs a cycle
// that loads it again. A cycle already in flight is joined and the reload
// happens on the next one.
func (c *Coordinator) Reinitialize(ctx context.Context) types.Snapshot {
	c.reset()
	c.logger.Info("reinitializing ostrom provider")
	return c.Refresh(ctx)
}

// Snapshot returns the latest snapshot, ok is false before the first cycle.
func (c *Coordinator) Snapshot() (types.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnapshot
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RetryPending reports whether a retry timer is armed.
func (c *Coordinator) RetryPending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry != nil
}

// Teardown stops the retry timer and waits for an in-flight refresh.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	c.closed = true
	c.cancelRetry()
	c.listeners = nil
	c.mu.Unlock()

	c.inflight.Wait()
}

func (c *Coordinator) refresh(ctx context.Context) types.Snapshot {
	runID := uuid.NewString()
	logger := c.logger.With(slog.String("run", runID))
	startedAt := time.Now()

	if err := c.initialize(ctx); err != nil {
		metrics.ObserveRefresh(startedAt, err)
		return c.fail(runID, err)
	}

	c.setState(Fetching)
	logger.Debug("refreshing ostrom data")

	now := c.now()
	readings, err := c.provider.Fetch(ctx, now)
	if err != nil {
		metrics.ObserveRefresh(startedAt, err)
		return c.fail(runID, err)
	}

	contract := maybe.None[types.Contract]()
	if ct, ok := c.provider.Contract(); ok {
		contract = maybe.Some(ct)
	}

	in := calc.InputFor(now, c.loc, readings, contract)
	if c.history != nil {
		if err := c.history.SaveReadings(ctx, readings); err != nil {
			logger.Error("failed to store readings", slog.Any("error", err))
		}
		since := hours.Year(now, c.loc).Start
		if start, ok := in.ContractStart.Get(); ok {
			if cy := hours.ContractYear(start, now, c.loc).Start; cy.Before(since) {
				since = cy
			}
		}
		history, err := c.history.ConsumptionSince(ctx, since)
		if err != nil {
			logger.Error("failed to read consumption history", slog.Any("error", err))
		} else {
			in.History = history
		}
	}

	snapshot, err := calc.FromData(in)
	if err != nil {
		metrics.ObserveRefresh(startedAt, err)
		return c.fail(runID, err)
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.hasSnapshot = true
	c.state = Ready
	c.cancelRetry()
	listeners := c.listeners
	c.mu.Unlock()

	if c.history != nil {
		if err := c.history.SaveSnapshot(ctx, snapshot); err != nil {
			logger.Error("failed to store snapshot", slog.Any("error", err))
		}
	}

	metrics.ObserveRefresh(startedAt, nil)
	metrics.SetPrice("now", maybe.Map(snapshot.PriceNow, types.SpotPrice.Total).Ptr())
	metrics.SetPrice("min_today", maybe.Map(snapshot.MinToday, types.SpotPrice.Total).Ptr())
	metrics.SetPrice("min_tomorrow", maybe.Map(snapshot.MinTomorrow, types.SpotPrice.Total).Ptr())

	logger.Info("ostrom data refreshed",
		slog.Int("prices", len(readings.SpotPrices)),
		slog.Int("consumptions", len(readings.Consumptions)),
		slog.Float64("price", snapshot.PriceNow.Value().Total()),
		slog.Bool("minimumIsNow", snapshot.MinimumIsNow))

	notify(listeners, snapshot)
	return snapshot
}

func (c *Coordinator) initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.state = Initializing
	c.mu.Unlock()

	if err := c.provider.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize ostrom provider: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.state = Ready
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
	c.provider.Invalidate()
}

// fail flags the last snapshot with err and arms a retry. Authentication
// failures arm no retry and make the next cycle initialize again.
func (c *Coordinator) fail(runID string, err error) types.Snapshot {
	logger := c.logger.With(slog.String("run", runID))

	c.mu.Lock()
	var s types.Snapshot
	if c.hasSnapshot {
		s = c.snapshot.WithError(err.Error())
	} else {
		s = types.Snapshot{}.WithError(err.Error())
	}
	c.snapshot = s
	c.hasSnapshot = true
	if c.initialized {
		c.state = ReadyWithError
	} else {
		c.state = Uninitialized
	}

	auth := errors.Is(err, ostrom.ErrAuth)
	if auth {
		c.cancelRetry()
		c.initialized = false
		logger.Error("ostrom authentication failed", slog.Any("error", err))
	} else if !c.closed {
		c.armRetry()
		logger.Warn("ostrom refresh failed, retry scheduled",
			slog.Any("error", err), slog.Duration("in", c.retryDelay))
	}
	listeners := c.listeners
	c.mu.Unlock()

	if auth {
		c.provider.Invalidate()
	}
	notify(listeners, s)
	return s
}

// armRetry must be called with mu held. An already pending retry is replaced.
func (c *Coordinator) armRetry() {
	c.cancelRetry()
	var t *time.Timer
	t = time.AfterFunc(c.retryDelay, func() {
		c.mu.Lock()
		if c.retry != t {
			c.mu.Unlock()
			return
		}
		c.retry = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()
		c.Refresh(ctx)
	})
	c.retry = t
}

// cancelRetry must be called with mu held.
func (c *Coordinator) cancelRetry() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) restore(ctx context.Context) {
	if c.history == nil {
		return
	}
	s, ok, err := c.history.LatestSnapshot(ctx)
	if err != nil {
		c.logger.Warn("failed to restore snapshot", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.hasSnapshot {
		c.snapshot = s
		c.hasSnapshot = true
	}
	c.mu.Unlock()
	c.logger.Info("restored last snapshot", slog.Any("timestamp", s.Timestamp.Ptr()), slog.Bool("ok", s.Ok))
}

func notify(listeners []func(types.Snapshot), s types.Snapshot) {
	for _, fn := range listeners {
		fn(s)
	}
}

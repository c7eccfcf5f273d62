package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/icodeforyou/ostrom-go/calc"
	"github.com/icodeforyou/ostrom-go/ostrom"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)

type stubProvider struct {
	mu            sync.Mutex
	initErr       error
	fetchErrs     []error
	readings      types.Readings
	initCalls     atomic.Int32
	fetchCalls    atomic.Int32
	invalidations atomic.Int32
	loaded        atomic.Bool
	budgets       []time.Duration
	started       chan struct{}
	release       chan struct{}
}

func (p *stubProvider) Initialize(ctx context.Context) error {
	p.initCalls.Add(1)
	if p.initErr == nil {
		p.loaded.Store(true)
	}
	return p.initErr
}

func (p *stubProvider) Invalidate() {
	p.invalidations.Add(1)
	p.loaded.Store(false)
}

func (p *stubProvider) Fetch(ctx context.Context, at time.Time) (types.Readings, error) {
	p.fetchCalls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		p.budgets = append(p.budgets, time.Until(dl))
	}
	if len(p.fetchErrs) > 0 {
		err := p.fetchErrs[0]
		p.fetchErrs = p.fetchErrs[1:]
		if err != nil {
			return types.Readings{}, err
		}
	}
	return p.readings, nil
}

func (p *stubProvider) Contract() (types.Contract, bool) {
	if !p.loaded.Load() {
		return types.Contract{}, false
	}
	return types.Contract{
		ID:             "100523456",
		ProductCode:    "SIMPLY_DYNAMIC",
		StartDate:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		MonthlyDeposit: 80,
	}, true
}

type stubHistory struct {
	mu        sync.Mutex
	saved     []types.Readings
	snapshots []types.Snapshot
	since     time.Time
	history   []types.Consumption
	latest    *types.Snapshot
}

func (h *stubHistory) SaveReadings(ctx context.Context, r types.Readings) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, r)
	return nil
}

func (h *stubHistory) ConsumptionSince(ctx context.Context, since time.Time) ([]types.Consumption, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.since = since
	return h.history, nil
}

func (h *stubHistory) SaveSnapshot(ctx context.Context, s types.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = append(h.snapshots, s)
	return nil
}

func (h *stubHistory) LatestSnapshot(ctx context.Context) (types.Snapshot, bool, error) {
	if h.latest == nil {
		return types.Snapshot{}, false, nil
	}
	return *h.latest, true, nil
}

// readings has 72 hourly prices from yesterday midnight, cheapest at 14:00
// today, and 24 consumption hours of 0.5 kWh for yesterday.
func readings() types.Readings {
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	var r types.Readings
	for h := 0; h < 72; h++ {
		t := start.Add(time.Duration(h) * time.Hour)
		gross := 0.20
		if h == 38 {
			gross = 0.05
		}
		r.SpotPrices = append(r.SpotPrices, types.SpotPrice{StartsAt: t, GrossPerKWh: gross, GrossTaxPerKWh: 0.15})
		if h < 24 {
			r.Consumptions = append(r.Consumptions, types.Consumption{StartsAt: t, KWh: 0.5})
		}
	}
	return r
}

func newCoordinator(p *stubProvider, opts ...Option) *Coordinator {
	opts = append([]Option{withClock(func() time.Time { return now }), WithLocation(time.UTC)}, opts...)
	return New(p, opts...)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "ready_with_error", ReadyWithError.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestSetup(t *testing.T) {
	p := &stubProvider{readings: readings()}
	c := newCoordinator(p)
	defer c.Teardown()

	var updates []types.Snapshot
	c.OnUpdate(func(s types.Snapshot) { updates = append(updates, s) })

	require.NoError(t, c.Setup(context.Background()))

	s, ok := c.Snapshot()
	require.True(t, ok)
	assert.True(t, s.Ok)
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), s.Timestamp.Value())
	assert.Equal(t, time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC), s.MinTodayFromNow.Value().StartsAt)
	assert.False(t, s.MinimumIsNow)
	assert.InDelta(t, 12.0, s.ConsumptionYesterday.Value(), 1e-9)
	assert.Equal(t, "SIMPLY_DYNAMIC", s.ProductCode)
	assert.False(t, c.RetryPending())
	assert.Len(t, updates, 1)

	c.Refresh(context.Background())
	assert.Equal(t, int32(1), p.initCalls.Load(), "provider is initialized once")
	assert.Equal(t, int32(2), p.fetchCalls.Load())
}

func TestSetupAuthFailure(t *testing.T) {
	authErr := &ostrom.APIError{StatusCode: 401, Endpoint: "/oauth2/token", Message: "invalid_client"}
	p := &stubProvider{initErr: authErr}
	c := newCoordinator(p)
	defer c.Teardown()

	err := c.Setup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ostrom.ErrAuth)

	s, ok := c.Snapshot()
	require.True(t, ok)
	assert.False(t, s.Ok)
	assert.Contains(t, s.Error, "invalid_client")
	assert.False(t, s.PriceNow.IsValid())
	assert.Equal(t, Uninitialized, c.State())
	assert.False(t, c.RetryPending(), "auth failures are not retried")
	assert.Equal(t, int32(0), p.fetchCalls.Load())
}

func TestSetupConnectionFailureRestoresSnapshot(t *testing.T) {
	stored := types.Snapshot{Ok: true, Timestamp: maybe.Some(now.Truncate(time.Hour)), ProductCode: "SIMPLY_FIXED"}
	h := &stubHistory{latest: &stored}
	p := &stubProvider{initErr: ostrom.ErrConnection}
	c := newCoordinator(p, WithHistory(h))
	defer c.Teardown()

	err := c.Setup(context.Background())
	assert.ErrorIs(t, err, ostrom.ErrConnection)

	s, _ := c.Snapshot()
	assert.False(t, s.Ok)
	assert.Equal(t, "SIMPLY_FIXED", s.ProductCode, "restored data is kept")
	assert.True(t, c.RetryPending())
}

func TestRefreshFailureKeepsLastSnapshot(t *testing.T) {
	p := &stubProvider{readings: readings()}
	c := newCoordinator(p)
	defer c.Teardown()

	require.NoError(t, c.Setup(context.Background()))
	good, _ := c.Snapshot()

	p.mu.Lock()
	p.fetchErrs = []error{errors.New("context deadline exceeded")}
	p.mu.Unlock()

	s := c.Refresh(context.Background())
	assert.False(t, s.Ok)
	assert.Equal(t, "context deadline exceeded", s.Error)
	assert.True(t, s.PriceNow.Value().Equal(good.PriceNow.Value()))
	assert.Equal(t, ReadyWithError, c.State())
	assert.True(t, c.RetryPending())

	s = c.Refresh(context.Background())
	assert.True(t, s.Ok)
	assert.Empty(t, s.Error)
	assert.False(t, c.RetryPending(), "success cancels the pending retry")
}

func TestRefreshFailureWithoutSnapshot(t *testing.T) {
	p := &stubProvider{fetchErrs: []error{ostrom.ErrConnection}}
	c := newCoordinator(p)
	defer c.Teardown()

	s := c.Refresh(context.Background())
	assert.False(t, s.Ok)
	assert.Equal(t, ostrom.ErrConnection.Error(), s.Error)
	assert.False(t, s.Timestamp.IsValid())
	assert.Equal(t, ReadyWithError, c.State())
}

func TestRefreshWithoutCurrentPrice(t *testing.T) {
	r := readings()
	r.SpotPrices = nil
	p := &stubProvider{readings: r}
	c := newCoordinator(p)
	defer c.Teardown()

	s := c.Refresh(context.Background())
	assert.False(t, s.Ok)
	assert.Equal(t, calc.ErrNoCurrentPrice.Error(), s.Error)
	assert.True(t, c.RetryPending())
}

func TestRetryAfterFailure(t *testing.T) {
	p := &stubProvider{readings: readings(), fetchErrs: []error{ostrom.ErrConnection}}
	c := newCoordinator(p, WithRetryDelay(50*time.Millisecond))
	defer c.Teardown()

	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, ReadyWithError, c.State())

	assert.Eventually(t, func() bool {
		return c.State() == Ready
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), p.fetchCalls.Load())
}

func TestConcurrentRefreshIsCollapsed(t *testing.T) {
	p := &stubProvider{
		readings: readings(),
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	c := newCoordinator(p)
	defer c.Teardown()

	var wg sync.WaitGroup
	results := make([]types.Snapshot, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.Refresh(context.Background())
	}()
	<-p.started
	assert.Equal(t, Fetching, c.State())

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	assert.Equal(t, int32(1), p.fetchCalls.Load())
	for _, s := range results {
		assert.True(t, s.Ok)
	}
}

func TestRefreshUsesHistory(t *testing.T) {
	h := &stubHistory{history: []types.Consumption{
		{StartsAt: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), KWh: 100},
		{StartsAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), KWh: 10},
		{StartsAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), KWh: 1},
	}}
	p := &stubProvider{readings: readings()}
	c := newCoordinator(p, WithHistory(h))
	defer c.Teardown()

	s := c.Refresh(context.Background())
	require.True(t, s.Ok)

	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), h.since)
	assert.Len(t, h.saved, 1)
	assert.Len(t, h.snapshots, 1)
	assert.InDelta(t, 1.0, s.ConsumptionThisMonth.Value(), 1e-9)
	assert.InDelta(t, 11.0, s.ConsumptionThisYear.Value(), 1e-9)
	assert.InDelta(t, 111.0, s.ConsumptionThisContractYear.Value(), 1e-9)
}

func TestTeardown(t *testing.T) {
	p := &stubProvider{fetchErrs: []error{ostrom.ErrConnection}}
	c := newCoordinator(p, WithRetryDelay(10*time.Millisecond))

	c.Refresh(context.Background())
	require.True(t, c.RetryPending())

	c.Teardown()
	assert.False(t, c.RetryPending())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), p.fetchCalls.Load())

	c.Refresh(context.Background())
	assert.Equal(t, int32(1), p.fetchCalls.Load(), "refresh after teardown is a no-op")
}

func TestReinitializeReloadsContract(t *testing.T) {
	p := &stubProvider{readings: readings()}
	c := newCoordinator(p)
	defer c.Teardown()

	require.NoError(t, c.Setup(context.Background()))
	require.Equal(t, int32(1), p.initCalls.Load())

	s := c.Reinitialize(context.Background())
	assert.True(t, s.Ok)
	assert.Equal(t, "SIMPLY_DYNAMIC", s.ProductCode)
	assert.Equal(t, int32(1), p.invalidations.Load())
	assert.Equal(t, int32(2), p.initCalls.Load())
	assert.Equal(t, Ready, c.State())
}

func TestAuthFailureOnFetchInitializesNextCycle(t *testing.T) {
	authErr := &ostrom.APIError{StatusCode: 401, Endpoint: "/spot-prices", Message: "token revoked"}
	p := &stubProvider{readings: readings()}
	c := newCoordinator(p, WithRetryDelay(10*time.Millisecond))
	defer c.Teardown()

	require.NoError(t, c.Setup(context.Background()))

	p.mu.Lock()
	p.fetchErrs = []error{authErr}
	p.mu.Unlock()

	s := c.Refresh(context.Background())
	assert.False(t, s.Ok)
	assert.Equal(t, ReadyWithError, c.State())
	assert.False(t, c.RetryPending())
	assert.Equal(t, int32(1), p.invalidations.Load())
	_, ok := p.Contract()
	assert.False(t, ok, "contract data is dropped")

	s = c.Refresh(context.Background())
	assert.True(t, s.Ok)
	assert.Equal(t, "SIMPLY_DYNAMIC", s.ProductCode)
	assert.Equal(t, int32(2), p.initCalls.Load())
}

func TestRetryUsesRefreshTimeout(t *testing.T) {
	p := &stubProvider{readings: readings(), fetchErrs: []error{ostrom.ErrConnection}}
	c := newCoordinator(p, WithRetryDelay(10*time.Millisecond), WithRefreshTimeout(5*time.Minute))
	defer c.Teardown()

	c.Refresh(context.Background())
	require.Eventually(t, func() bool {
		return c.State() == Ready
	}, time.Second, 5*time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.budgets, 1, "only the retry runs with a deadline")
	assert.Greater(t, p.budgets[0], 4*time.Minute)
	assert.LessOrEqual(t, p.budgets[0], 5*time.Minute)
}

package ostrom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/ostrom-go/slice"
	"github.com/icodeforyou/ostrom-go/types"
)

// API is the part of Client the provider depends on.
type API interface {
	Token(ctx context.Context, force bool) (string, error)
	GetUser(ctx context.Context) (types.User, error)
	GetContracts(ctx context.Context) ([]types.Contract, error)
	GetConsumption(ctx context.Context, contractID string, start, end time.Time, resolution Resolution) ([]types.Consumption, error)
	GetSpotPrices(ctx context.Context, zip string, start, end time.Time, resolution Resolution) ([]types.SpotPrice, error)
}

// Provider resolves the account once and fetches the hourly data windows.
type Provider struct {
	logger *slog.Logger
	api    API

	mu         sync.RWMutex
	contractID string
	zip        string
	user       *types.User
	contracts  []types.Contract
}

var _ types.DataProvider = (*Provider)(nil)

// NewProvider creates a provider. Empty contractID or zip are resolved from
// the account's first contract during Initialize.
func NewProvider(api API, contractID, zip string) *Provider {
	return &Provider{
		logger:     slog.Default().With("module", "provider"),
		api:        api,
		contractID: contractID,
		zip:        zip,
	}
}

func (p *Provider) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Initialize authenticates, loads the user and the contracts and selects a
// contract. Errors match ErrAuth or ErrConnection.
func (p *Provider) Initialize(ctx context.Context) error {
	if _, err := p.api.Token(ctx, false); err != nil {
		return classify("authenticate", err)
	}

	user, err := p.api.GetUser(ctx)
	if err != nil {
		return classify("fetch user", err)
	}

	contracts, err := p.api.GetContracts(ctx)
	if err != nil {
		return classify("fetch contracts", err)
	}
	if len(contracts) == 0 {
		return fmt.Errorf("%w: account has no contracts", ErrConnection)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.user = &user
	p.contracts = contracts
	if p.contractID == "" {
		p.contractID = contracts[0].ID
	}

	selected, ok := p.selected()
	if !ok {
		p.logger.Warn("configured contract not found on account", slog.String("contract_id", p.contractID))
	}
	if p.zip == "" && ok {
		p.zip = selected.Address.Zip
	}

	p.logger.Info("provider initialized",
		slog.String("contract_id", p.contractID),
		slog.String("zip", p.zip),
		slog.Int("contracts", len(contracts)))
	return nil
}

// Fetch loads yesterday's consumption and the spot prices from yesterday
// until the end of tomorrow, all boundaries at UTC midnight.
func (p *Provider) Fetch(ctx context.Context, now time.Time) (types.Readings, error) {
	p.mu.RLock()
	contractID, zip := p.contractID, p.zip
	p.mu.RUnlock()

	if contractID == "" || zip == "" {
		return types.Readings{}, errors.New("contract id or zip code not set, provider not initialized")
	}

	consumptionStart, consumptionEnd, pricesEnd := FetchWindow(now)

	consumptions, err := p.api.GetConsumption(ctx, contractID, consumptionStart, consumptionEnd, ResolutionHour)
	if err != nil {
		return types.Readings{}, classify("fetch consumption", err)
	}

	prices, err := p.api.GetSpotPrices(ctx, zip, consumptionStart, pricesEnd, ResolutionHour)
	if err != nil {
		return types.Readings{}, classify("fetch spot prices", err)
	}

	p.logger.Debug("fetched readings",
		slog.Int("consumptions", len(consumptions)),
		slog.Int("spot_prices", len(prices)))
	return types.Readings{SpotPrices: prices, Consumptions: consumptions}, nil
}

// FetchWindow returns yesterday 00:00 UTC, today 00:00 UTC and the day after
// tomorrow 00:00 UTC relative to now.
func FetchWindow(now time.Time) (yesterday, today, dayAfterTomorrow time.Time) {
	u := now.UTC()
	today = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -1), today, today.AddDate(0, 0, 2)
}

// Contract returns the selected contract, if it is known.
func (p *Provider) Contract() (types.Contract, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected()
}

func (p *Provider) User() (types.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return types.User{}, false
	}
	return *p.user, true
}

func (p *Provider) Contracts() []types.Contract {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.Contract(nil), p.contracts...)
}

// Invalidate forgets the cached account data, the next Initialize reloads it.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = nil
	p.contracts = nil
}

func (p *Provider) selected() (types.Contract, bool) {
	return slice.Find(p.contracts, func(c types.Contract) bool { return c.ID == p.contractID })
}

// classify makes sure err matches either ErrAuth or ErrConnection.
func classify(op string, err error) error {
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrConnection) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrConnection, err)
}

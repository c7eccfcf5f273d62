package types

import (
	"context"
	"time"

	"github.com/icodeforyou/ostrom-go/types/maybe"
)

// Timed is implemented by hourly records.
type Timed interface {
	When() time.Time
}

// SpotPrice is one hourly price. Per kWh values are in EUR, monthly fees in EUR.
type SpotPrice struct {
	StartsAt             time.Time `json:"startsAt"`
	NetPerMWh            float64   `json:"netPerMWh"`
	NetPerKWh            float64   `json:"netPerKWh"`
	GrossPerKWh          float64   `json:"grossPerKWh"`
	NetTaxPerKWh         float64   `json:"netTaxPerKWh"`
	GrossTaxPerKWh       float64   `json:"grossTaxPerKWh"`
	NetBaseFeePerMonth   float64   `json:"netBaseFeePerMonth"`
	GrossBaseFeePerMonth float64   `json:"grossBaseFeePerMonth"`
	NetGridFeePerMonth   float64   `json:"netGridFeePerMonth"`
	GrossGridFeePerMonth float64   `json:"grossGridFeePerMonth"`
}

func (p SpotPrice) When() time.Time {
	return p.StartsAt
}

// Total is the consumer facing price, gross energy price plus gross taxes and levies.
func (p SpotPrice) Total() float64 {
	return p.GrossPerKWh + p.GrossTaxPerKWh
}

func (p SpotPrice) Equal(o SpotPrice) bool {
	return p.StartsAt.Equal(o.StartsAt) &&
		p.NetPerMWh == o.NetPerMWh &&
		p.NetPerKWh == o.NetPerKWh &&
		p.GrossPerKWh == o.GrossPerKWh &&
		p.NetTaxPerKWh == o.NetTaxPerKWh &&
		p.GrossTaxPerKWh == o.GrossTaxPerKWh &&
		p.NetBaseFeePerMonth == o.NetBaseFeePerMonth &&
		p.GrossBaseFeePerMonth == o.GrossBaseFeePerMonth &&
		p.NetGridFeePerMonth == o.NetGridFeePerMonth &&
		p.GrossGridFeePerMonth == o.GrossGridFeePerMonth
}

type Consumption struct {
	StartsAt time.Time `json:"startsAt"`
	KWh      float64   `json:"kWh"`
}

func (c Consumption) When() time.Time {
	return c.StartsAt
}

type User struct {
	Email     string
	FirstName string
	LastName  string
	Language  string
}

type Address struct {
	Zip         string
	City        string
	Street      string
	HouseNumber string
}

type Contract struct {
	ID                string
	Type              string
	ProductCode       string
	Status            string
	CustomerFirstName string
	CustomerLastName  string
	StartDate         time.Time
	MonthlyDeposit    float64 // EUR
	Address           Address
}

// Readings is the result of one fetch from the provider.
type Readings struct {
	SpotPrices   []SpotPrice
	Consumptions []Consumption
}

// DataProvider is the remote side of a refresh cycle.
type DataProvider interface {
	Initialize(ctx context.Context) error
	Fetch(ctx context.Context, now time.Time) (Readings, error)
	Contract() (Contract, bool)
	// Invalidate drops the cached account data so Initialize reloads it.
	Invalidate()
}

// Snapshot is the aggregated consumer data of one refresh cycle.
type Snapshot struct {
	Ok        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	Timestamp maybe.Maybe[time.Time] `json:"timestamp"`

	PriceNow        maybe.Maybe[SpotPrice] `json:"priceNow"`
	MinToday        maybe.Maybe[SpotPrice] `json:"minToday"`
	MinTodayFromNow maybe.Maybe[SpotPrice] `json:"minTodayFromNow"`
	MinTomorrow     maybe.Maybe[SpotPrice] `json:"minTomorrow"`
	MinAllAvailable maybe.Maybe[SpotPrice] `json:"minAllAvailable"`
	MinimumIsNow    bool                   `json:"minimumIsNow"`

	ConsumptionYesterday        maybe.Maybe[float64] `json:"consumptionYesterday"`
	CostYesterday               maybe.Maybe[float64] `json:"costYesterday"`
	ConsumptionThisMonth        maybe.Maybe[float64] `json:"consumptionThisMonth"`
	ConsumptionThisYear         maybe.Maybe[float64] `json:"consumptionThisYear"`
	ConsumptionThisContractYear maybe.Maybe[float64] `json:"consumptionThisContractYear"`

	ContractStart  maybe.Maybe[time.Time] `json:"contractStart"`
	MonthlyDeposit maybe.Maybe[float64]   `json:"monthlyDeposit"`
	ProductCode    string                 `json:"productCode,omitempty"`

	SpotPrices   []SpotPrice   `json:"spotPrices,omitempty"`
	Consumptions []Consumption `json:"consumptions,omitempty"`
}

// WithError returns a copy of s flagged as failed. The slices are shared, they are never mutated.
func (s Snapshot) WithError(msg string) Snapshot {
	s.Ok = false
	s.Error = msg
	return s
}

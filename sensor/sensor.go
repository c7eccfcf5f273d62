package sensor

import (
	"time"

	"github.com/icodeforyou/ostrom-go/calc"
	"github.com/icodeforyou/ostrom-go/convert"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// State is the flat, rounded view of a snapshot. Nil fields have no value.
// JSON keys equal the entity ids without the "ostrom_" prefix.
type State struct {
	Status    string  `json:"status"`
	Error     *string `json:"error"`
	Timestamp *string `json:"timestamp"`

	ElectricityPrice *float64 `json:"electricity_price"`
	NetEnergyPrice   *float64 `json:"net_energy_price"`
	TaxesAndLevies   *float64 `json:"taxes_and_levies"`
	Forecast         *float64 `json:"forecast"`
	MonthlyBaseFee   *float64 `json:"monthly_base_fee"`
	MonthlyGridFee   *float64 `json:"monthly_grid_fee"`
	MonthlyFees      *float64 `json:"monthly_fees"`

	MinimumPriceToday             *float64 `json:"minimum_price_today"`
	MinimumPriceTodayTime         *string  `json:"minimum_price_today_time"`
	MinimumPriceUpcomingToday     *float64 `json:"minimum_price_upcoming_today"`
	MinimumPriceUpcomingTodayTime *string  `json:"minimum_price_upcoming_today_time"`
	MinimumPriceTomorrow          *float64 `json:"minimum_price_tomorrow"`
	MinimumPriceTomorrowTime      *string  `json:"minimum_price_tomorrow_time"`
	MinimumPriceAllAvailable      *float64 `json:"minimum_price_all_available"`
	MinimumPriceAllAvailableTime  *string  `json:"minimum_price_all_available_time"`
	LowestPriceIsNow              bool     `json:"lowest_price_is_now"`

	ConsumptionYesterday        *float64 `json:"consumption_yesterday"`
	CostYesterday               *float64 `json:"cost_yesterday"`
	ConsumptionThisMonth        *float64 `json:"consumption_this_month"`
	ConsumptionThisYear         *float64 `json:"consumption_this_year"`
	ConsumptionThisContractYear *float64 `json:"consumption_this_contract_year"`

	MonthlyDeposit    *float64 `json:"monthly_deposit"`
	ContractStartDate *string  `json:"contract_start_date"`
	ProductCode       *string  `json:"product_code"`
}

// FromSnapshot maps a snapshot to sensor values. Prices per kWh get 4
// decimals, money 2 and energy 3.
func FromSnapshot(s types.Snapshot) State {
	now := s.PriceNow

	st := State{
		Status:    StatusError,
		Timestamp: isoTime(s.Timestamp),

		ElectricityPrice: totalPrice(now),
		NetEnergyPrice:   round(maybe.Map(now, func(p types.SpotPrice) float64 { return p.NetPerKWh }), 4),
		TaxesAndLevies:   round(maybe.Map(now, func(p types.SpotPrice) float64 { return p.GrossTaxPerKWh }), 4),
		Forecast:         totalPrice(now),
		MonthlyBaseFee:   round(maybe.Map(now, func(p types.SpotPrice) float64 { return p.GrossBaseFeePerMonth }), 2),
		MonthlyGridFee:   round(maybe.Map(now, func(p types.SpotPrice) float64 { return p.GrossGridFeePerMonth }), 2),
		MonthlyFees:      round(maybe.Map(now, calc.MonthlyFees), 2),

		MinimumPriceToday:             totalPrice(s.MinToday),
		MinimumPriceTodayTime:         priceTime(s.MinToday),
		MinimumPriceUpcomingToday:     totalPrice(s.MinTodayFromNow),
		MinimumPriceUpcomingTodayTime: priceTime(s.MinTodayFromNow),
		MinimumPriceTomorrow:          totalPrice(s.MinTomorrow),
		MinimumPriceTomorrowTime:      priceTime(s.MinTomorrow),
		MinimumPriceAllAvailable:      totalPrice(s.MinAllAvailable),
		MinimumPriceAllAvailableTime:  priceTime(s.MinAllAvailable),
		LowestPriceIsNow:              s.MinimumIsNow,

		ConsumptionYesterday:        round(s.ConsumptionYesterday, 3),
		CostYesterday:               round(s.CostYesterday, 2),
		ConsumptionThisMonth:        round(s.ConsumptionThisMonth, 3),
		ConsumptionThisYear:         round(s.ConsumptionThisYear, 3),
		ConsumptionThisContractYear: round(s.ConsumptionThisContractYear, 3),

		MonthlyDeposit:    round(s.MonthlyDeposit, 2),
		ContractStartDate: isoTime(s.ContractStart),
	}

	if s.Ok {
		st.Status = StatusOK
	}
	if s.Error != "" {
		st.Error = &s.Error
	}
	if s.ProductCode != "" {
		st.ProductCode = &s.ProductCode
	}
	return st
}

// FormatTime renders t the way all sensor timestamps are rendered.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func round(v maybe.Maybe[float64], decimals int) *float64 {
	return maybe.Map(v, func(f float64) float64 { return convert.RoundFloat64(f, decimals) }).Ptr()
}

func totalPrice(p maybe.Maybe[types.SpotPrice]) *float64 {
	return maybe.Map(p, func(p types.SpotPrice) float64 { return convert.FourDecimals(p.Total()) }).Ptr()
}

func priceTime(p maybe.Maybe[types.SpotPrice]) *string {
	return maybe.Map(p, func(p types.SpotPrice) string { return FormatTime(p.StartsAt) }).Ptr()
}

func isoTime(t maybe.Maybe[time.Time]) *string {
	return maybe.Map(t, FormatTime).Ptr()
}

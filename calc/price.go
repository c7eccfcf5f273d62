package calc

import "github.com/icodeforyou/ostrom-go/types"

// GrossPrice is what one kWh costs the consumer in EUR during the price's hour.
func GrossPrice(p types.SpotPrice) float64 {
	return p.GrossPerKWh + p.GrossTaxPerKWh
}

// HourCost is the EUR cost of kWh consumed at price p.
func HourCost(kWh float64, p types.SpotPrice) float64 {
	return kWh * GrossPrice(p)
}

// MonthlyFees is the sum of the gross base fee and the gross grid fees in EUR.
func MonthlyFees(p types.SpotPrice) float64 {
	return p.GrossBaseFeePerMonth + p.GrossGridFeePerMonth
}

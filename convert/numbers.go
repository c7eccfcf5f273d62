package convert

import (
	"math"
)

func FourDecimals(number float64) float64 {
	return RoundFloat64(number, 4)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(decimals)) / math.Pow10(decimals)
}

// CentsToEuro converts the API's ct/kWh into EUR/kWh.
func CentsToEuro(cents float64) float64 {
	return cents / 100.0
}

package ostrom

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/ostrom-go/convert"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/types"
)

// Document is a decoded JSON object as returned by the API.
type Document map[string]any

// Rejected is an entry of a list response that could not be parsed.
type Rejected struct {
	Index int
	Err   error
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSpotPrice parses one hourly spot price. The API sends prices in ct/kWh,
// they are stored in EUR/kWh. Monthly fees are already in EUR.
func ParseSpotPrice(raw map[string]any) (types.SpotPrice, error) {
	var p types.SpotPrice
	r := reader{raw: raw}
	p.StartsAt = r.time("date")
	p.NetPerMWh = r.float("netMwhPrice")
	p.NetPerKWh = convert.CentsToEuro(r.float("netKwhPrice"))
	p.GrossPerKWh = convert.CentsToEuro(r.float("grossKwhPrice"))
	p.NetTaxPerKWh = convert.CentsToEuro(r.float("netKwhTaxAndLevies"))
	p.GrossTaxPerKWh = convert.CentsToEuro(r.float("grossKwhTaxAndLevies"))
	p.NetBaseFeePerMonth = r.float("netMonthlyOstromBaseFee")
	p.GrossBaseFeePerMonth = r.float("grossMonthlyOstromBaseFee")
	p.NetGridFeePerMonth = r.float("netMonthlyGridFees")
	p.GrossGridFeePerMonth = r.float("grossMonthlyGridFees")
	if r.err != nil {
		return types.SpotPrice{}, r.err
	}
	return p, nil
}

func ParseConsumption(raw map[string]any) (types.Consumption, error) {
	r := reader{raw: raw}
	c := types.Consumption{
		StartsAt: r.time("date"),
		KWh:      r.float("kWh"),
	}
	if r.err != nil {
		return types.Consumption{}, r.err
	}
	return c, nil
}

func ParseUser(raw map[string]any) (types.User, error) {
	r := reader{raw: raw}
	u := types.User{
		Email:     r.string("email"),
		FirstName: r.string("firstName"),
		LastName:  r.string("lastName"),
		Language:  r.string("language"),
	}
	if r.err != nil {
		return types.User{}, r.err
	}
	return u, nil
}

func ParseContract(raw map[string]any) (types.Contract, error) {
	r := reader{raw: raw}
	c := types.Contract{
		ID:                r.string("id"),
		Type:              r.string("type"),
		ProductCode:       r.string("productCode"),
		Status:            r.string("status"),
		CustomerFirstName: r.string("customerFirstName"),
		CustomerLastName:  r.string("customerLastName"),
		StartDate:         r.localTime("startDate", hours.Location()),
		MonthlyDeposit:    r.float("currentMonthlyDepositAmount"),
	}
	address := r.object("address")
	if r.err != nil {
		return types.Contract{}, r.err
	}

	ar := reader{raw: address, prefix: "address."}
	c.Address = types.Address{
		Zip:         ar.string("zip"),
		City:        ar.string("city"),
		Street:      ar.string("street"),
		HouseNumber: ar.string("houseNumber"),
	}
	if ar.err != nil {
		return types.Contract{}, ar.err
	}
	return c, nil
}

// ParseSpotPrices keeps the parsable entries of doc["data"] in input order.
func ParseSpotPrices(doc Document) ([]types.SpotPrice, []Rejected) {
	return parseList(doc, ParseSpotPrice)
}

func ParseConsumptions(doc Document) ([]types.Consumption, []Rejected) {
	return parseList(doc, ParseConsumption)
}

func ParseContracts(doc Document) ([]types.Contract, []Rejected) {
	return parseList(doc, ParseContract)
}

func parseList[T any](doc Document, parse func(map[string]any) (T, error)) ([]T, []Rejected) {
	entries, ok := doc["data"].([]any)
	if !ok {
		return []T{}, nil
	}

	result := make([]T, 0, len(entries))
	var rejected []Rejected
	for i, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			rejected = append(rejected, Rejected{Index: i, Err: &RejectedError{Reason: fmt.Sprintf("entry is %T, not an object", entry)}})
			continue
		}
		v, err := parse(raw)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Err: err})
			continue
		}
		result = append(result, v)
	}
	return result, rejected
}

// reader extracts typed fields and remembers the first failure.
type reader struct {
	raw    map[string]any
	prefix string
	err    error
}

func (r *reader) fail(key, reason string) {
	if r.err == nil {
		r.err = &RejectedError{Field: r.prefix + key, Reason: reason}
	}
}

func (r *reader) value(key string) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.raw[key]
	if !ok {
		r.fail(key, "missing")
		return nil, false
	}
	if v == nil {
		r.fail(key, "null")
		return nil, false
	}
	return v, true
}

func (r *reader) float(key string) float64 {
	v, ok := r.value(key)
	if !ok {
		return 0
	}

	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		r.fail(key, fmt.Sprintf("unexpected type %T", v))
		return 0
	}
	if err != nil {
		r.fail(key, fmt.Sprintf("not a number: %v", v))
		return 0
	}
	return f
}

func (r *reader) string(key string) string {
	v, ok := r.value(key)
	if !ok {
		return ""
	}

	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		r.fail(key, fmt.Sprintf("unexpected type %T", v))
		return ""
	}
}

func (r *reader) time(key string) time.Time {
	s := r.string(key)
	if r.err != nil {
		return time.Time{}
	}

	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	r.fail(key, fmt.Sprintf("not an ISO-8601 timestamp: %q", s))
	return time.Time{}
}

// localTime keeps the offset of a zoned timestamp. Date-only and naive
// values are wall clock times in loc.
func (r *reader) localTime(key string, loc *time.Location) time.Time {
	s := r.string(key)
	if r.err != nil {
		return time.Time{}
	}

	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	r.fail(key, fmt.Sprintf("not an ISO-8601 timestamp: %q", s))
	return time.Time{}
}

func (r *reader) object(key string) map[string]any {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		r.fail(key, fmt.Sprintf("unexpected type %T", v))
		return nil
	}
	return m
}

package sensor

const (
	UnitEuroPerKWh = "EUR/kWh"
	UnitEuro       = "EUR"
	UnitKWh        = "kWh"
)

type Component string

const (
	ComponentSensor       Component = "sensor"
	ComponentBinarySensor Component = "binary_sensor"
	ComponentButton       Component = "button"
)

// Entity describes one named value exposed to a home automation host.
type Entity struct {
	Component   Component
	Key         string // State JSON key
	Name        string
	Unit        string
	Icon        string
	DeviceClass string
	StateClass  string
	Precision   int
	// Attributes is set when the entity carries the forecast attributes.
	Attributes bool
}

// UniqueID is the stable identifier, e.g. "ostrom_electricity_price".
func (e Entity) UniqueID() string {
	return "ostrom_" + e.Key
}

const RefreshKey = "refresh_data"

func price(key, name, icon string) Entity {
	return Entity{Component: ComponentSensor, Key: key, Name: name, Unit: UnitEuroPerKWh, Icon: icon, StateClass: "measurement", Precision: 4}
}

func money(key, name, icon string) Entity {
	return Entity{Component: ComponentSensor, Key: key, Name: name, Unit: UnitEuro, Icon: icon, StateClass: "measurement", Precision: 2}
}

func energy(key, name string) Entity {
	return Entity{Component: ComponentSensor, Key: key, Name: name, Unit: UnitKWh, Icon: "mdi:lightning-bolt", DeviceClass: "energy", StateClass: "total", Precision: 3}
}

func timestamp(key, name, icon string) Entity {
	return Entity{Component: ComponentSensor, Key: key, Name: name, Icon: icon, DeviceClass: "timestamp"}
}

var entities = []Entity{
	{Component: ComponentSensor, Key: "status", Name: "Status", Icon: "mdi:cloud-alert"},
	price("electricity_price", "Current Electricity Price", "mdi:currency-eur"),
	price("net_energy_price", "Current Net Energy Price", "mdi:flash"),
	price("taxes_and_levies", "Current Taxes And Levies", "mdi:receipt"),
	{Component: ComponentSensor, Key: "forecast", Name: "Forecast", Unit: UnitEuroPerKWh, Icon: "mdi:chart-timeline-variant", StateClass: "measurement", Precision: 4, Attributes: true},
	money("monthly_base_fee", "Monthly Base Fee", "mdi:cash-minus"),
	money("monthly_grid_fee", "Monthly Grid Fee", "mdi:transmission-tower"),
	money("monthly_fees", "Monthly Fees", "mdi:cash-multiple"),
	price("minimum_price_today", "Minimum Price Today", "mdi:calendar-clock"),
	price("minimum_price_upcoming_today", "Minimum Price Upcoming Today", "mdi:calendar-arrow-right"),
	price("minimum_price_tomorrow", "Minimum Price Tomorrow", "mdi:weather-night"),
	price("minimum_price_all_available", "Minimum Price All Available", "mdi:chart-line"),
	timestamp("minimum_price_today_time", "Minimum Price Today Time", "mdi:clock-outline"),
	timestamp("minimum_price_upcoming_today_time", "Minimum Price Upcoming Today Time", "mdi:clock-outline"),
	timestamp("minimum_price_tomorrow_time", "Minimum Price Tomorrow Time", "mdi:clock-outline"),
	timestamp("minimum_price_all_available_time", "Minimum Price All Available Time", "mdi:clock-outline"),
	energy("consumption_yesterday", "Consumption Yesterday"),
	money("cost_yesterday", "Cost Yesterday", "mdi:currency-eur"),
	energy("consumption_this_month", "Consumption This Month"),
	energy("consumption_this_year", "Consumption This Year"),
	energy("consumption_this_contract_year", "Consumption This Contract Year"),
	money("monthly_deposit", "Monthly Deposit", "mdi:account-cash-outline"),
	timestamp("contract_start_date", "Contract Start Date", "mdi:calendar-start"),
	{Component: ComponentSensor, Key: "product_code", Name: "Product Code", Icon: "mdi:tag"},
	{Component: ComponentBinarySensor, Key: "lowest_price_is_now", Name: "Lowest Price Is Now", Icon: "mdi:power-plug"},
	{Component: ComponentButton, Key: RefreshKey, Name: "Refresh Data", Icon: "mdi:refresh"},
}

// Entities returns the catalogue of exposed entities.
func Entities() []Entity {
	return append([]Entity(nil), entities...)
}

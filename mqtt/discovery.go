package mqtt

import (
	"fmt"
	"strings"

	"github.com/icodeforyou/ostrom-go/sensor"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
	PayloadRefresh = "PRESS"
)

// Topics derives every topic from the discovery prefix and the base topic.
type Topics struct {
	discoveryPrefix string
	base            string
}

func NewTopics(discoveryPrefix, base string) Topics {
	return Topics{
		discoveryPrefix: strings.TrimSuffix(discoveryPrefix, "/"),
		base:            strings.TrimSuffix(base, "/"),
	}
}

func (t Topics) State() string {
	return t.base + "/state"
}

func (t Topics) Availability() string {
	return t.base + "/status"
}

func (t Topics) Refresh() string {
	return t.base + "/" + sensor.RefreshKey + "/set"
}

func (t Topics) Attributes(e sensor.Entity) string {
	return t.base + "/" + e.Key + "/attributes"
}

// Config is the retained discovery topic,
// e.g. "homeassistant/sensor/ostrom/ostrom_forecast/config".
func (t Topics) Config(e sensor.Entity) string {
	return fmt.Sprintf("%s/%s/ostrom/%s/config", t.discoveryPrefix, e.Component, e.UniqueID())
}

type device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

type discoveryConfig struct {
	Name                      string `json:"name"`
	UniqueID                  string `json:"unique_id"`
	ObjectID                  string `json:"object_id"`
	Icon                      string `json:"icon,omitempty"`
	AvailabilityTopic         string `json:"availability_topic"`
	PayloadAvailable          string `json:"payload_available"`
	PayloadNotAvailable       string `json:"payload_not_available"`
	StateTopic                string `json:"state_topic,omitempty"`
	ValueTemplate             string `json:"value_template,omitempty"`
	JSONAttributesTopic       string `json:"json_attributes_topic,omitempty"`
	CommandTopic              string `json:"command_topic,omitempty"`
	PayloadPress              string `json:"payload_press,omitempty"`
	PayloadOn                 string `json:"payload_on,omitempty"`
	PayloadOff                string `json:"payload_off,omitempty"`
	UnitOfMeasurement         string `json:"unit_of_measurement,omitempty"`
	DeviceClass               string `json:"device_class,omitempty"`
	StateClass                string `json:"state_class,omitempty"`
	SuggestedDisplayPrecision *int   `json:"suggested_display_precision,omitempty"`
	Device                    device `json:"device"`
}

// discovery builds the Home Assistant discovery payload of e.
func discovery(t Topics, e sensor.Entity, version string) discoveryConfig {
	c := discoveryConfig{
		Name:                e.Name,
		UniqueID:            e.UniqueID(),
		ObjectID:            e.UniqueID(),
		Icon:                e.Icon,
		AvailabilityTopic:   t.Availability(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		UnitOfMeasurement:   e.Unit,
		DeviceClass:         e.DeviceClass,
		StateClass:          e.StateClass,
		Device: device{
			Identifiers:  []string{t.base},
			Name:         "Ostrom",
			Manufacturer: "Ostrom",
			Model:        "Ostrom API",
			SwVersion:    version,
		},
	}

	switch e.Component {
	case sensor.ComponentButton:
		c.CommandTopic = t.Refresh()
		c.PayloadPress = PayloadRefresh
	case sensor.ComponentBinarySensor:
		c.StateTopic = t.State()
		c.ValueTemplate = fmt.Sprintf("{{ 'ON' if value_json.%s else 'OFF' }}", e.Key)
		c.PayloadOn = "ON"
		c.PayloadOff = "OFF"
	default:
		c.StateTopic = t.State()
		c.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", e.Key)
		if e.Precision > 0 {
			p := e.Precision
			c.SuggestedDisplayPrecision = &p
		}
	}

	if e.Attributes {
		c.JSONAttributesTopic = t.Attributes(e)
	}

	return c
}

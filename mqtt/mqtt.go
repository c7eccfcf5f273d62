package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/icodeforyou/ostrom-go/types"
)

const (
	publishTimeout = 5 * time.Second
	refreshTimeout = time.Minute
)

type Refresher interface {
	Refresh(ctx context.Context) types.Snapshot
}

// Publisher announces the sensors to Home Assistant over MQTT, publishes
// every snapshot as one retained state message and triggers a refresh when
// the refresh button is pressed.
type Publisher struct {
	client     paho.Client
	logger     *slog.Logger
	topics     Topics
	version    string
	refresher  Refresher
	now        func() time.Time
	mu         sync.Mutex
	last       *types.Snapshot
	refreshing atomic.Bool
}

func New(cnfg config.AppConfigMqtt, refresher Refresher, version string) *Publisher {
	logger := slog.Default().With("module", "mqtt")
	p := &Publisher{
		logger:    logger,
		topics:    NewTopics(cnfg.GetDiscoveryPrefix(), cnfg.GetBaseTopic()),
		version:   version,
		refresher: refresher,
		now:       time.Now,
	}

	clientID := cnfg.GetClientID()
	if clientID == "" {
		clientID = "ostrom-" + uuid.NewString()[:8]
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID(clientID)
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(p.topics.Availability(), PayloadOffline, 1, true)
	opts.OnConnect = p.onConnect
	opts.OnConnectionLost = func(client paho.Client, err error) {
		logger.Warn("mqtt connection lost", slog.Any("error", err))
	}

	pahoLog := slog.Default().With("module", "paho")
	paho.CRITICAL = newPahoLogger(pahoLog, slog.LevelError)
	paho.ERROR = newPahoLogger(pahoLog, slog.LevelError)
	paho.WARN = newPahoLogger(pahoLog, slog.LevelWarn)

	p.client = paho.NewClient(opts)
	return p
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting mqtt client")
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *Publisher) Disconnect() {
	p.logger.Info("disconnecting mqtt client")
	if err := p.publish(p.topics.Availability(), true, []byte(PayloadOffline)); err != nil {
		p.logger.Warn("publishing offline status failed", slog.Any("error", err))
	}
	token := p.client.Unsubscribe(p.topics.Refresh())
	token.WaitTimeout(time.Second)
	p.client.Disconnect(250)
}

// Publish sends the sensor state of snap. The snapshot is kept and sent again
// after a reconnect.
func (p *Publisher) Publish(snap types.Snapshot) {
	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.logger.Debug("mqtt not connected, state will be sent on connect")
		return
	}
	p.publishSnapshot(snap)
}

func (p *Publisher) publishSnapshot(snap types.Snapshot) {
	state, err := json.Marshal(sensor.FromSnapshot(snap))
	if err != nil {
		p.logger.Error("marshalling sensor state failed", slog.Any("error", err))
		return
	}
	if err := p.publish(p.topics.State(), true, state); err != nil {
		p.logger.Error("publishing sensor state failed", slog.Any("error", err))
		return
	}

	for _, e := range sensor.Entities() {
		if !e.Attributes {
			continue
		}
		attrs, err := json.Marshal(sensor.Forecast(snap, p.now()))
		if err != nil {
			p.logger.Error("marshalling forecast attributes failed", slog.Any("error", err))
			continue
		}
		if err := p.publish(p.topics.Attributes(e), true, attrs); err != nil {
			p.logger.Error("publishing forecast attributes failed", slog.Any("error", err))
		}
	}
}

func (p *Publisher) onConnect(client paho.Client) {
	p.logger.Info("mqtt connected")

	if err := p.publish(p.topics.Availability(), true, []byte(PayloadOnline)); err != nil {
		p.logger.Error("publishing online status failed", slog.Any("error", err))
	}
	p.announce()

	token := client.Subscribe(p.topics.Refresh(), 1, p.onRefresh)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		p.logger.Error("subscribing to refresh topic failed",
			slog.String("topic", p.topics.Refresh()),
			slog.Any("error", token.Error()))
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last != nil {
		p.publishSnapshot(*last)
	}
}

// announce publishes the retained discovery config of every entity.
func (p *Publisher) announce() {
	for _, e := range sensor.Entities() {
		payload, err := json.Marshal(discovery(p.topics, e, p.version))
		if err != nil {
			p.logger.Error("marshalling discovery config failed", slog.String("entity", e.UniqueID()), slog.Any("error", err))
			continue
		}
		if err := p.publish(p.topics.Config(e), true, payload); err != nil {
			p.logger.Error("publishing discovery config failed", slog.String("entity", e.UniqueID()), slog.Any("error", err))
		}
	}
}

func (p *Publisher) onRefresh(_ paho.Client, msg paho.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	if payload != "" && !strings.EqualFold(payload, PayloadRefresh) {
		p.logger.Warn("ignoring unknown refresh command", slog.String("payload", payload))
		return
	}
	if !p.refreshing.CompareAndSwap(false, true) {
		p.logger.Debug("refresh already running")
		return
	}

	p.logger.Info("refresh requested over mqtt")
	go func() {
		defer p.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		p.refresher.Refresh(ctx)
	}()
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
)

// ErrNotConnected is returned by SendNow while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	TelemetryTopic string
	SystemTopic    string
	BufferSize     int
	ConnectTimeout time.Duration
	Now            func() time.Time
}

type subscription struct {
	qos     byte
	handler func(payload []byte)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are held in an outbox and replayed on reconnect.
// Subscriptions are restored on every reconnect.
type RealPublisher struct {
	client paho.Client
	opts   Options
	log    *logger.Logger

	mu            sync.Mutex
	connected     bool
	everConnected bool
	buffer        *outbox
	subs          map[string]subscription
}

func newPublisher(opts Options, log *logger.Logger) *RealPublisher {
	if opts.TelemetryTopic == "" {
		opts.TelemetryTopic = DefaultTelemetryTopic
	}
	if opts.SystemTopic == "" {
		opts.SystemTopic = DefaultSystemTopic
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RealPublisher{
		opts:   opts,
		log:    log,
		buffer: newOutbox(opts.BufferSize, log),
		subs:   make(map[string]subscription),
	}
}

// NewRealPublisher connects to opts.Broker. An unreachable broker is not an
// error: the client keeps retrying in the background and messages are
// buffered until it connects.
func NewRealPublisher(opts Options, log *logger.Logger) (*RealPublisher, error) {
	p := newPublisher(opts, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.opts.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	po := paho.NewClientOptions().
		AddBroker(p.opts.Broker).
		SetClientID(p.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.opts.SystemTopic, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(po)
	token := p.client.Connect()
	if !token.WaitTimeout(p.opts.ConnectTimeout) {
		log.Warnw("mqtt broker not reachable yet, buffering", "broker", p.opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everConnected
	p.everConnected = true
	pending := p.buffer.drainAll()
	subs := make(map[string]subscription, len(p.subs))
	for topic, s := range p.subs {
		subs[topic] = s
	}
	p.mu.Unlock()

	for topic, s := range subs {
		if err := p.subscribe(c, topic, s); err != nil {
			p.log.Warnw("mqtt resubscribe failed", "topic", topic, "err", err)
		}
	}

	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warnw("mqtt replay failed", "topic", msg.topic, "err", err)
		}
	}
	p.log.Infow("mqtt connected", "broker", p.opts.Broker, "replayed", len(pending))

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.opts.Now(), Event: "RECONNECTED"}); err != nil {
			p.log.Warnw("mqtt publish reconnected failed", "err", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warnw("mqtt connection lost", "err", err)
}

func (p *RealPublisher) subscribe(c paho.Client, topic string, s subscription) error {
	token := c.Subscribe(topic, s.qos, func(_ paho.Client, m paho.Message) {
		s.handler(m.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	return token.Error()
}

// publish sends msg now, or buffers it while disconnected.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

// send publishes msg and re-buffers it on failure.
func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.requeue(msg)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.requeue(msg)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) requeue(msg bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(msg)
	p.mu.Unlock()
}

// Publish sends a control-loop event, QoS 0, not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.opts.TelemetryTopic, payload: payload})
}

// PublishSystem sends a system lifecycle event, QoS 1 so shutdown and
// startup snapshots are delivered at least once.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.opts.SystemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// SendNow publishes payload at QoS 0 without buffering. Used for relay
// commands, which are worthless once stale and are resent on a cadence.
func (p *RealPublisher) SendNow(topic string, payload []byte) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is made now if
// connected and restored after every reconnect. handler runs on the MQTT
// client's goroutine and must not block.
func (p *RealPublisher) Subscribe(topic string, qos byte, handler func(payload []byte)) error {
	s := subscription{qos: qos, handler: handler}
	p.mu.Lock()
	p.subs[topic] = s
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	if err := p.subscribe(p.client, topic, s); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	d := make(chan struct{})
	close(d)
	return &fakeToken{err: err, done: d}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient is a paho.Client that records traffic.
type fakeClient struct {
	mu         sync.Mutex
	published  []published
	subscribed map[string]paho.MessageHandler
	publishErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return newToken(nil) }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return newToken(c.publishErr)
	}
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return newToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[topic] = cb
	return newToken(nil)
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return newToken(nil)
}
func (c *fakeClient) Unsubscribe(...string) paho.Token        { return newToken(nil) }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	cb := c.subscribed[topic]
	c.mu.Unlock()
	if cb != nil {
		cb(c, fakeMessage{topic: topic, payload: payload})
	}
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

var fixedNow = func() time.Time { return time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC) }

func newTestPublisher(bufferSize int) (*RealPublisher, *fakeClient) {
	p := newPublisher(Options{BufferSize: bufferSize, Now: fixedNow}, logger.Nop())
	c := newFakeClient()
	p.client = c
	return p, c
}

func TestPublisherBuffersUntilConnected(t *testing.T) {
	p, c := newTestPublisher(10)

	p.Publish(heaterEvent(logic.EventHeaterOn, logic.StateOn, logic.ReadingOf(18)))
	p.PublishSystem(SystemEvent{Timestamp: fixedNow(), Event: "STARTUP", Retained: true})

	if len(c.sent()) != 0 {
		t.Fatal("nothing should be published while disconnected")
	}
	if p.Buffered() != 2 {
		t.Fatalf("expected 2 buffered, got %d", p.Buffered())
	}

	p.onConnect(c)

	sent := c.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(sent))
	}
	if sent[0].topic != DefaultTelemetryTopic || sent[0].qos != 0 {
		t.Errorf("first replay: %+v", sent[0])
	}
	if sent[1].topic != DefaultSystemTopic || sent[1].qos != 1 || !sent[1].retained {
		t.Errorf("second replay: %+v", sent[1])
	}
	if p.Buffered() != 0 {
		t.Errorf("buffer should be empty after replay, got %d", p.Buffered())
	}
}

func TestPublisherReconnectAnnouncesAndResubscribes(t *testing.T) {
	p, c := newTestPublisher(10)

	var got []string
	if err := p.Subscribe("acks", 1, func(b []byte) { got = append(got, string(b)) }); err != nil {
		t.Fatal(err)
	}

	p.onConnect(c)
	c.deliver("acks", []byte("one"))

	p.onConnectionLost(c, errors.New("network down"))
	if p.IsConnected() {
		t.Fatal("expected disconnected")
	}
	if err := p.SendNow("cmd", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendNow while disconnected: got %v", err)
	}

	// Simulate a broker that forgot the session.
	c.subscribed = make(map[string]paho.MessageHandler)
	before := len(c.sent())
	p.onConnect(c)

	c.deliver("acks", []byte("two"))
	if len(got) != 2 || got[1] != "two" {
		t.Errorf("subscription not restored, handler saw %v", got)
	}

	sent := c.sent()[before:]
	if len(sent) != 1 {
		t.Fatalf("expected RECONNECTED only, got %d messages", len(sent))
	}
	want := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(sent[0].payload) != want {
		t.Errorf("reconnect payload: %s", sent[0].payload)
	}
}

func TestPublisherRequeuesOnFailure(t *testing.T) {
	p, c := newTestPublisher(10)
	p.onConnect(c)

	c.publishErr = errors.New("broker overloaded")
	if err := p.Publish(heaterEvent(logic.EventHeaterOff, logic.StateOff, logic.NoReading)); err == nil {
		t.Error("expected publish error")
	}
	if p.Buffered() != 1 {
		t.Errorf("failed message should be buffered, got %d", p.Buffered())
	}
}

func TestPublisherSendNow(t *testing.T) {
	p, c := newTestPublisher(10)
	p.onConnect(c)

	if err := p.SendNow("home/heating/relay/command", []byte(`{"heater":"ON","id":"t"}`)); err != nil {
		t.Fatal(err)
	}
	sent := c.sent()
	if len(sent) != 1 || sent[0].qos != 0 || sent[0].retained {
		t.Errorf("unexpected send: %+v", sent)
	}
}

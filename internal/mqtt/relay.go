package mqtt

import (
	"fmt"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/relay"
)

// Transport is the part of a broker connection the relay link needs.
type Transport interface {
	SendNow(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler func(payload []byte)) error
}

// RelayLink talks to a relay node through the broker: commands go out on
// one topic, acknowledgments come back on another.
type RelayLink struct {
	t            Transport
	commandTopic string
	acks         chan relay.Ack
	log          *logger.Logger
}

// NewRelayLink subscribes to ackTopic on t.
func NewRelayLink(t Transport, commandTopic, ackTopic string, log *logger.Logger) (*RelayLink, error) {
	l := &RelayLink{
		t:            t,
		commandTopic: commandTopic,
		acks:         make(chan relay.Ack, 8),
		log:          log,
	}
	if err := t.Subscribe(ackTopic, 1, l.handleAck); err != nil {
		return nil, fmt.Errorf("subscribe relay acks: %w", err)
	}
	return l, nil
}

// handleAck runs on the MQTT client goroutine.
func (l *RelayLink) handleAck(payload []byte) {
	ack, err := relay.DecodeAck(payload)
	if err != nil {
		l.log.Debugw("relay ack discarded", "err", err)
		return
	}
	select {
	case l.acks <- ack:
	default:
		l.log.Debugw("relay ack dropped, channel full")
	}
}

// Send implements relay.Link.
func (l *RelayLink) Send(cmd relay.Command) error {
	payload, err := relay.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return l.t.SendNow(l.commandTopic, payload)
}

// Acks implements relay.Link.
func (l *RelayLink) Acks() <-chan relay.Ack {
	return l.acks
}

// Close is a no-op; the broker connection belongs to the publisher.
func (l *RelayLink) Close() error {
	return nil
}

package mqtt

import "github.com/sweeney/thermostat/internal/logger"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable, oldest
// first, up to capacity.
//
// A retained message replaces any buffered retained message on the same
// topic; the broker would only keep the last one. When full, the oldest
// non-retained message is evicted first so a buffered STARTUP or SHUTDOWN
// snapshot outlives a burst of telemetry.
//
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
	warned   bool
	log      *logger.Logger
}

func newOutbox(capacity int, log *logger.Logger) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
		log:      log,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.remove(i)
				break
			}
		}
	}
	if len(o.msgs) == o.capacity {
		o.evict()
	}
	o.msgs = append(o.msgs, msg)
}

// evict drops the oldest non-retained message, or the oldest message if
// every buffered message is retained.
func (o *outbox) evict() {
	victim := 0
	for i, m := range o.msgs {
		if !m.retained {
			victim = i
			break
		}
	}
	o.remove(victim)
	o.dropped++
	if !o.warned {
		o.log.Warnw("mqtt buffer full, dropping messages", "capacity", o.capacity)
		o.warned = true
	}
}

func (o *outbox) remove(i int) {
	copy(o.msgs[i:], o.msgs[i+1:])
	o.msgs = o.msgs[:len(o.msgs)-1]
}

// drainAll returns the buffered messages in publish order and empties the
// outbox.
func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := make([]bufferedMsg, len(o.msgs))
	copy(out, o.msgs)
	o.msgs = o.msgs[:0]
	if o.warned {
		o.log.Infow("mqtt buffer drained after overflow", "dropped", o.dropped)
		o.warned = false
	}
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}

package relay

import "sync"

// FakeLink records sent commands and lets tests inject acknowledgments.
type FakeLink struct {
	mu sync.Mutex

	// Sent contains every command passed to Send, in order.
	Sent []Command

	// SendError, if set, is returned by Send. The command is still recorded.
	SendError error

	// AutoAck makes every successful Send acknowledge the commanded state.
	AutoAck bool

	Closed bool

	acks chan Ack
}

// NewFakeLink creates a FakeLink with a buffered ack channel.
func NewFakeLink() *FakeLink {
	return &FakeLink{acks: make(chan Ack, 16)}
}

func (f *FakeLink) Send(cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, cmd)
	if f.SendError != nil {
		return f.SendError
	}
	if f.AutoAck {
		offer(f.acks, Ack{State: cmd.Heater})
	}
	return nil
}

func (f *FakeLink) Acks() <-chan Ack {
	return f.acks
}

func (f *FakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Deliver decodes a wire acknowledgment and, if accepted, queues it.
// Rejected messages are dropped, as a real link would.
func (f *FakeLink) Deliver(data []byte) error {
	ack, err := DecodeAck(data)
	if err != nil {
		return err
	}
	offer(f.acks, ack)
	return nil
}

// SentCount returns the number of Send calls.
func (f *FakeLink) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// Last returns the last sent command, or false if none.
func (f *FakeLink) Last() (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return Command{}, false
	}
	return f.Sent[len(f.Sent)-1], true
}

//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
)

// GPIOLink drives a relay wired directly to a GPIO output line using the
// Linux GPIO character device. The line is read back after every write and
// the read-back value is reported as the acknowledgment.
type GPIOLink struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	acks chan Ack
	log  *logger.Logger
}

// NewGPIOLink requests offset on chipName as an output, initially OFF.
func NewGPIOLink(chipName string, offset int, activeLow bool, log *logger.Logger) (*GPIOLink, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("thermostat")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay line %d: %w", offset, err)
	}

	return &GPIOLink{
		chip: chip,
		line: line,
		acks: make(chan Ack, 4),
		log:  log,
	}, nil
}

// Send sets the line. cmd.ID is ignored; there is only one relay.
func (g *GPIOLink) Send(cmd Command) error {
	v := 0
	if cmd.Heater.On() {
		v = 1
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay line: %w", err)
	}

	got, err := g.line.Value()
	if err != nil {
		g.log.Warnw("relay read-back failed", "err", err)
		return nil
	}
	if !offer(g.acks, Ack{State: logic.StateFromBool(got == 1)}) {
		g.log.Debugw("relay ack dropped, channel full")
	}
	return nil
}

// Acks implements Link.
func (g *GPIOLink) Acks() <-chan Ack {
	return g.acks
}

// Close drives the relay OFF and returns the line to an input with
// pull-down, the Raspberry Pi boot default.
func (g *GPIOLink) Close() error {
	var errs []error
	if g.line != nil {
		if err := g.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release relay: %w", err))
		}
		if err := g.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay line: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay line: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

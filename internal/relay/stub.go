//go:build !linux

package relay

import (
	"errors"

	"github.com/sweeney/thermostat/internal/logger"
)

// GPIOLink is not available on non-Linux platforms.
type GPIOLink struct{}

// NewGPIOLink returns an error on non-Linux platforms.
func NewGPIOLink(chipName string, offset int, activeLow bool, log *logger.Logger) (*GPIOLink, error) {
	return nil, errors.New("relay: gpio not supported on this platform (requires Linux)")
}

func (g *GPIOLink) Send(cmd Command) error {
	return errors.New("relay: gpio not supported")
}

func (g *GPIOLink) Acks() <-chan Ack {
	return nil
}

func (g *GPIOLink) Close() error {
	return nil
}

// Package sensor samples a DS18B20 temperature sensor without blocking the
// control loop for the conversion time.
package sensor

import (
	"errors"
	"time"
)

// ErrNoDevice is returned by a Bus when no sensor answers.
var ErrNoDevice = errors.New("sensor: no device on bus")

// DisconnectedC is the value a DS18B20 driver reports for a device that
// dropped off the bus.
const DisconnectedC = -127.0

// Valid DS18B20 measuring range.
const (
	MinTempC = -55.0
	MaxTempC = 125.0
)

// Address is the stable 1-Wire ROM address of a device, e.g. "28-0316a2794bff".
type Address string

// Bus is a 1-Wire bus with DS18B20 devices.
type Bus interface {
	// Scan returns the number of devices that answered.
	Scan() (int, error)
	// Address resolves the stable address of the device at index i.
	Address(i int) (Address, error)
	// SetResolution configures conversion resolution in bits (9..12).
	SetResolution(addr Address, bits int) error
	// Convert requests a temperature conversion on every device. It returns
	// immediately; the result is readable after ConversionTime.
	Convert() error
	// ReadAddress reads the last conversion result of the device at addr.
	ReadAddress(addr Address) (float64, error)
	// ReadIndex reads the last conversion result of the device at index i.
	ReadIndex(i int) (float64, error)
}

// ConversionTime returns how long a conversion takes at the given resolution.
func ConversionTime(bits int) time.Duration {
	switch bits {
	case 9:
		return 94 * time.Millisecond
	case 10:
		return 188 * time.Millisecond
	case 11:
		return 375 * time.Millisecond
	default:
		return 750 * time.Millisecond
	}
}

// ValidTemp reports whether t is a plausible reading.
func ValidTemp(t float64) bool {
	if t == DisconnectedC {
		return false
	}
	return t >= MinTempC && t <= MaxTempC
}

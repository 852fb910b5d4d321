package sensor

import (
	"errors"
	"fmt"
)

// FakeBus is a test double with a single scripted device.
type FakeBus struct {
	// Devices is the count returned by Scan. 0 simulates an empty bus.
	Devices int
	// Addr is returned by Address(0). Empty makes Address fail.
	Addr Address
	// Temps contains scripted readings. Each read consumes the next one;
	// the last is repeated once exhausted.
	Temps []float64
	index int

	// ReadError, if set, is returned by reads.
	ReadError error
	// ConvertError, if set, is returned by Convert.
	ConvertError error

	Scans       int
	Conversions int
	AddrReads   int
	IndexReads  int
	Resolution  int
}

// NewFakeBus creates a bus with one device at addr returning temps.
func NewFakeBus(addr Address, temps ...float64) *FakeBus {
	return &FakeBus{Devices: 1, Addr: addr, Temps: temps}
}

func (f *FakeBus) Scan() (int, error) {
	f.Scans++
	return f.Devices, nil
}

func (f *FakeBus) Address(i int) (Address, error) {
	if f.Devices == 0 || i >= f.Devices {
		return "", ErrNoDevice
	}
	if f.Addr == "" {
		return "", errors.New("address not resolved")
	}
	return f.Addr, nil
}

func (f *FakeBus) SetResolution(addr Address, bits int) error {
	f.Resolution = bits
	return nil
}

func (f *FakeBus) Convert() error {
	if f.ConvertError != nil {
		return f.ConvertError
	}
	if f.Devices == 0 {
		return ErrNoDevice
	}
	f.Conversions++
	return nil
}

func (f *FakeBus) ReadAddress(addr Address) (float64, error) {
	if addr != f.Addr {
		return 0, fmt.Errorf("unknown address %s", addr)
	}
	f.AddrReads++
	return f.next()
}

func (f *FakeBus) ReadIndex(i int) (float64, error) {
	if i >= f.Devices {
		return 0, ErrNoDevice
	}
	f.IndexReads++
	return f.next()
}

func (f *FakeBus) next() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.Devices == 0 {
		return DisconnectedC, nil
	}
	if len(f.Temps) == 0 {
		return 0, errors.New("no temperatures configured")
	}
	t := f.Temps[f.index]
	if f.index < len(f.Temps)-1 {
		f.index++
	}
	return t, nil
}

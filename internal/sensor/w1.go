package sensor

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DS18B20 family code prefix in the w1 sysfs device names.
const ds18b20Family = "28-"

// DefaultW1Root is where the kernel exposes 1-Wire devices.
const DefaultW1Root = "/sys/bus/w1/devices"

// W1Bus talks to DS18B20 devices through the Linux w1_therm sysfs interface.
// A conversion is started for all devices by writing "trigger" to the bus
// master's therm_bulk_read; each device's temperature file then returns the
// result in millidegrees without starting another conversion.
type W1Bus struct {
	fs     afero.Fs
	root   string
	master string
}

// NewW1Bus creates a bus rooted at root (normally DefaultW1Root).
func NewW1Bus(fs afero.Fs, root string) *W1Bus {
	return &W1Bus{fs: fs, root: root, master: "w1_bus_master1"}
}

func (b *W1Bus) devices() ([]string, error) {
	entries, err := afero.ReadDir(b.fs, b.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.root, err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ds18b20Family) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Scan returns the number of DS18B20 devices present.
func (b *W1Bus) Scan() (int, error) {
	names, err := b.devices()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Address resolves the device at index i. A device whose temperature
// attribute is not yet exposed is still enumerating and is not resolved.
func (b *W1Bus) Address(i int) (Address, error) {
	names, err := b.devices()
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(names) {
		return "", ErrNoDevice
	}
	ok, err := afero.Exists(b.fs, path.Join(b.root, names[i], "temperature"))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("device %s not ready", names[i])
	}
	return Address(names[i]), nil
}

// SetResolution writes the resolution attribute.
func (b *W1Bus) SetResolution(addr Address, bits int) error {
	p := path.Join(b.root, string(addr), "resolution")
	if err := afero.WriteFile(b.fs, p, []byte(strconv.Itoa(bits)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Convert triggers a bulk conversion on the bus master.
func (b *W1Bus) Convert() error {
	p := path.Join(b.root, b.master, "therm_bulk_read")
	if err := afero.WriteFile(b.fs, p, []byte("trigger\n"), 0o200); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// ReadAddress reads the temperature of the device at addr in °C.
func (b *W1Bus) ReadAddress(addr Address) (float64, error) {
	p := path.Join(b.root, string(addr), "temperature")
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p, err)
	}
	return parseMilliC(data)
}

// ReadIndex reads the temperature of the device at index i in °C.
func (b *W1Bus) ReadIndex(i int) (float64, error) {
	names, err := b.devices()
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(names) {
		return 0, ErrNoDevice
	}
	return b.ReadAddress(Address(names[i]))
}

func parseMilliC(data []byte) (float64, error) {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, fmt.Errorf("empty temperature")
	}
	milli, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", s, err)
	}
	return float64(milli) / 1000, nil
}

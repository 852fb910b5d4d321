package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/thermostat/internal/logger"
)

// Status is the outcome of one Poll.
type Status int

const (
	// Pending means a conversion is in flight; keep the previous reading.
	Pending Status = iota
	// Valid means Temp holds a fresh reading.
	Valid
	// Absent means no usable reading: no device, a read error, or out of range.
	Absent
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Valid:
		return "valid"
	default:
		return "absent"
	}
}

// Sample is the result of one Poll.
type Sample struct {
	Temp   float64
	Status Status
}

// Config controls the Sampler.
type Config struct {
	Resolution    int
	ProbeInterval time.Duration
	// MaxFailures is how many consecutive failed reads mark the device gone.
	MaxFailures int
}

// Sampler drives one DS18B20 through start-conversion / wait / read cycles.
// Not safe for concurrent use; it is owned by the control loop.
type Sampler struct {
	bus        Bus
	cfg        Config
	conversion time.Duration
	log        *logger.Logger

	present   bool
	addr      Address
	probed    bool
	lastProbe time.Time

	converting bool
	convStart  time.Time
	failures   int
}

// NewSampler creates a sampler. Nothing touches the bus until the first Poll.
func NewSampler(bus Bus, cfg Config, log *logger.Logger) *Sampler {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	return &Sampler{
		bus:        bus,
		cfg:        cfg,
		conversion: ConversionTime(cfg.Resolution),
		log:        log,
	}
}

// Conversion returns the configured conversion duration.
func (s *Sampler) Conversion() time.Duration {
	return s.conversion
}

// Present reports whether a device is currently known on the bus.
func (s *Sampler) Present() bool {
	return s.present
}

// DeviceAddress returns the resolved address, or "" while reading by index.
func (s *Sampler) DeviceAddress() Address {
	return s.addr
}

// Poll advances the sampler by one step. It never waits for the conversion:
// the first call starts one and returns Pending, later calls return Pending
// until the conversion time has passed, then read and return Valid or Absent.
func (s *Sampler) Poll(now time.Time) Sample {
	if !s.present {
		if s.probed && now.Sub(s.lastProbe) < s.cfg.ProbeInterval {
			return Sample{Status: Absent}
		}
		s.probe(now)
		if !s.present {
			return Sample{Status: Absent}
		}
	}

	if !s.converting {
		if s.addr == "" {
			s.resolveAddress()
		}
		if err := s.bus.Convert(); err != nil {
			s.fail(now, fmt.Errorf("start conversion: %w", err))
			return Sample{Status: Absent}
		}
		s.converting = true
		s.convStart = now
		return Sample{Status: Pending}
	}

	if now.Sub(s.convStart) < s.conversion {
		return Sample{Status: Pending}
	}
	s.converting = false

	temp, err := s.read()
	if err != nil {
		s.fail(now, err)
		return Sample{Status: Absent}
	}
	if !ValidTemp(temp) {
		s.fail(now, fmt.Errorf("reading %.2f out of range", temp))
		return Sample{Status: Absent}
	}
	s.failures = 0
	return Sample{Temp: temp, Status: Valid}
}

func (s *Sampler) read() (float64, error) {
	if s.addr != "" {
		return s.bus.ReadAddress(s.addr)
	}
	return s.bus.ReadIndex(0)
}

// probe rescans the bus. Devices may be hot-plugged at any time.
func (s *Sampler) probe(now time.Time) {
	s.probed = true
	s.lastProbe = now

	n, err := s.bus.Scan()
	if err != nil || n == 0 {
		if err == nil {
			err = ErrNoDevice
		}
		s.log.Debugw("sensor probe found nothing", "err", err)
		return
	}

	s.present = true
	s.failures = 0
	s.converting = false
	s.resolveAddress()
	s.log.Infow("sensor found", "devices", n, "address", string(s.addr))
}

func (s *Sampler) resolveAddress() {
	addr, err := s.bus.Address(0)
	if err != nil {
		s.log.Debugw("sensor address not resolved, reading by index", "err", err)
		return
	}
	s.addr = addr
	if err := s.bus.SetResolution(addr, s.cfg.Resolution); err != nil {
		s.log.Warnw("set sensor resolution", "address", string(addr), "err", err)
	}
}

func (s *Sampler) fail(now time.Time, err error) {
	s.converting = false
	s.failures++
	s.log.Warnw("sensor read failed", "err", err, "consecutive", s.failures)
	if s.failures >= s.cfg.MaxFailures {
		s.log.Warnw("sensor lost, will re-probe", "address", string(s.addr), "interval", s.cfg.ProbeInterval)
		s.present = false
		s.addr = ""
		s.failures = 0
		s.lastProbe = now
	}
}

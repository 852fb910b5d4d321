// Command thermostat reads a DS18B20, drives a heater relay, and follows a
// remote setpoint authority.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/sweeney/thermostat/internal/config"
	"github.com/sweeney/thermostat/internal/control"
	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/relay"
	"github.com/sweeney/thermostat/internal/remote"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/status"
	"github.com/sweeney/thermostat/internal/store"
	"github.com/sweeney/thermostat/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to YAML config (missing file uses defaults)")
	printConfig := flag.Bool("print-config", false, "Print effective config and exit")
	printStateFlag := flag.Bool("print-state", false, "Read the sensor once, print it, and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	if err := run(cfg, *printStateFlag); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printOnly bool) error {
	lg := logger.New(cfg.Log.Level)
	defer lg.Sync()

	sampler := sensor.NewSampler(newBus(cfg.Sensor), sensor.Config{
		Resolution:    cfg.Sensor.Resolution,
		ProbeInterval: cfg.Sensor.ProbeInterval,
		MaxFailures:   cfg.Sensor.MaxFailures,
	}, lg.Named("sensor"))

	if printOnly {
		return printState(sampler, os.Stdout, time.Now, time.Sleep)
	}

	st, closeStore, err := openStore(cfg.Store, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewBuildInfoCollector())

	// Telemetry and the MQTT relay share one broker connection.
	var (
		publisher mqtt.Publisher
		conn      *mqtt.RealPublisher
	)
	if cfg.MQTT.Broker != "" {
		conn, err = mqtt.NewRealPublisher(mqtt.Options{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			TelemetryTopic: cfg.MQTT.TelemetryTopic,
			SystemTopic:    cfg.MQTT.SystemTopic,
			BufferSize:     cfg.MQTT.BufferSize,
		}, lg.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer conn.Close()
		publisher = conn
	}

	link, err := openRelay(cfg.Relay, conn, lg.Named("relay"))
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exchanges control.Exchanges
	if cfg.Remote.Endpoint != "" {
		ex, err := remote.NewHTTPExchanger(cfg.Remote.Endpoint, cfg.Remote.Timeout)
		if err != nil {
			return fmt.Errorf("init remote: %w", err)
		}
		w := remote.NewWorker(ex, time.Now, lg.Named("remote"))
		go w.Run(ctx)
		exchanges = w
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	loop := control.New(controlConfig(cfg), control.Deps{
		Sampler:    sampler,
		Link:       link,
		Store:      st,
		Exchanges:  exchanges,
		Publisher:  publisher,
		Tracker:    tracker,
		Log:        lg.Named("control"),
		Registerer: reg,
		Network:    readNetworkInfo,
	}, time.Now())
	loop.Startup(time.Now())

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, loop, reg, lg.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.Errorw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		lg.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	lg.Infow("started",
		"device", loop.DeviceID(),
		"tick", cfg.Control.Tick,
		"relay", cfg.Relay.Driver,
		"remote", cfg.Remote.Endpoint,
		"store", cfg.Store.Driver,
	)

	ticker := time.NewTicker(cfg.Control.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, time.Now, ticker.C, sigCh, lg)
}

// runLoop ticks the controller until a signal arrives, then shuts it down.
func runLoop(loop *control.Loop, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, lg *logger.Logger) error {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			lg.Infow("shutting down", "signal", name)
			loop.Shutdown(now(), name)
			return nil
		case <-tick:
			loop.Tick(now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func newBus(c config.SensorConfig) sensor.Bus {
	if c.Driver == "fake" {
		return sensor.NewFakeBus("28-00000000fa4e", c.FakeTempC)
	}
	return sensor.NewW1Bus(afero.NewOsFs(), c.W1Root)
}

// openStore returns the configured store and a func releasing it.
func openStore(c config.StoreConfig, fsys afero.Fs) (store.Store, func() error, error) {
	switch c.Driver {
	case "sqlite":
		db, err := store.OpenSQLite(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init store: %w", err)
		}
		return store.NewSQLiteStore(db), db.Close, nil
	default:
		return store.NewFileStore(fsys, c.Path), func() error { return nil }, nil
	}
}

// openRelay builds the relay link. The mqtt driver needs conn.
func openRelay(c config.RelayConfig, conn *mqtt.RealPublisher, lg *logger.Logger) (relay.Link, error) {
	switch c.Driver {
	case "gpio":
		l, err := relay.NewGPIOLink(c.GPIOChip, c.GPIOLine, c.ActiveLow, lg)
		if err != nil {
			return nil, fmt.Errorf("init relay: %w", err)
		}
		return l, nil
	default:
		if conn == nil {
			return nil, fmt.Errorf("init relay: mqtt driver without a broker")
		}
		l, err := mqtt.NewRelayLink(conn, c.CommandTopic, c.AckTopic, lg)
		if err != nil {
			return nil, fmt.Errorf("init relay: %w", err)
		}
		return l, nil
	}
}

// printState polls the sensor until it yields a reading or gives up.
func printState(s *sensor.Sampler, w io.Writer, now func() time.Time, sleep func(time.Duration)) error {
	for {
		sample := s.Poll(now())
		switch sample.Status {
		case sensor.Valid:
			addr := s.DeviceAddress()
			if addr == "" {
				addr = "index 0"
			}
			fmt.Fprintf(w, "sensor %s: %.2f°C\n", addr, sample.Temp)
			return nil
		case sensor.Absent:
			return fmt.Errorf("read sensor: %w", sensor.ErrNoDevice)
		}
		sleep(s.Conversion())
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		DeviceID:          cfg.Device.ID,
		TickMs:            cfg.Control.Tick.Milliseconds(),
		BandC:             cfg.Control.Band,
		OverheatC:         cfg.Control.OverheatC,
		SendIntervalMs:    cfg.Relay.SendInterval.Milliseconds(),
		FreshnessMs:       cfg.Relay.Freshness.Milliseconds(),
		MaxOnMs:           cfg.Interlock.MaxOn.Milliseconds(),
		CooldownMs:        cfg.Interlock.Cooldown.Milliseconds(),
		RemoteEndpoint:    cfg.Remote.Endpoint,
		RemoteIntervalMs:  cfg.Remote.Interval.Milliseconds(),
		StandbyEnabled:    cfg.Standby.Enabled,
		StandbyThresholdC: cfg.Standby.ThresholdC,
		HeartbeatMs:       cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:            cfg.MQTT.Broker,
		HTTPPort:          cfg.HTTP.Addr,
		StoreDriver:       cfg.Store.Driver,
	}
}

func controlConfig(cfg *config.Config) control.Config {
	return control.Config{
		DeviceID:          cfg.Device.ID,
		Band:              cfg.Control.Band,
		OverheatC:         cfg.Control.OverheatC,
		SendInterval:      cfg.Relay.SendInterval,
		SendOnChange:      cfg.Relay.SendOnChange,
		Freshness:         cfg.Relay.Freshness,
		MaxOn:             cfg.Interlock.MaxOn,
		Cooldown:          cfg.Interlock.Cooldown,
		RemoteInterval:    cfg.Remote.Interval,
		Epsilon:           cfg.Remote.Epsilon,
		StandbyEnabled:    cfg.Standby.Enabled,
		StandbyThresholdC: cfg.Standby.ThresholdC,
		StandbyDuration:   cfg.Standby.Duration,
		PersistGap:        cfg.Store.MinGap,
		Heartbeat:         cfg.MQTT.Heartbeat,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

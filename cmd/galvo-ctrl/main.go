// Command galvo-ctrl exposes analog galvanometer outputs as a Bluetooth LE
// peripheral and publishes what it does to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/ble"
	"github.com/sweeney/galvo-ctrl/internal/channel"
	"github.com/sweeney/galvo-ctrl/internal/config"
	"github.com/sweeney/galvo-ctrl/internal/gpio"
	"github.com/sweeney/galvo-ctrl/internal/logic"
	"github.com/sweeney/galvo-ctrl/internal/mqtt"
	"github.com/sweeney/galvo-ctrl/internal/pwm"
	"github.com/sweeney/galvo-ctrl/internal/service"
	"github.com/sweeney/galvo-ctrl/internal/status"
	"github.com/sweeney/galvo-ctrl/internal/web"
	"periph.io/x/conn/v3/physic"
)

const (
	// eventBuffer bounds the telemetry queue between BLE callbacks and MQTT.
	eventBuffer = 64
	// statusInterval is how often the run loop refreshes the tracker.
	statusInterval = time.Second
)

func main() {
	fs, fl := newFlagSet(os.Args[0])
	fs.Parse(os.Args[1:])

	cfg, err := loadConfig(fl, fs)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if fl.printConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// flags holds command-line overrides. Only flags given explicitly replace
// config file values.
type flags struct {
	configPath   string
	printConfig  bool
	deviceID     string
	broker       string
	heartbeat    time.Duration
	httpAddr     string
	backend      string
	frequency    int64
	noIndicator  bool
	verbose      bool
	startupDelay time.Duration
}

func newFlagSet(name string) (*flag.FlagSet, *flags) {
	fl := &flags{}
	def := config.Default()
	fs := flag.NewFlagSet(name, flag.ExitOnError)

	fs.StringVar(&fl.configPath, "config", "", "YAML config file (built-in defaults when empty)")
	fs.BoolVar(&fl.printConfig, "print-config", false, "Print the effective config as YAML and exit")
	fs.StringVar(&fl.deviceID, "device-id", def.Device.ID, "Device ID used in MQTT topics")
	fs.StringVar(&fl.broker, "broker", def.MQTT.Broker, "MQTT broker address")
	fs.DurationVar(&fl.heartbeat, "heartbeat", def.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&fl.httpAddr, "http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	fs.StringVar(&fl.backend, "pwm", def.PWM.Backend, `PWM backend: "pin" or "pca9685"`)
	fs.Int64Var(&fl.frequency, "pwm-frequency", def.PWM.FrequencyHz, "PWM frequency in Hz")
	fs.BoolVar(&fl.noIndicator, "no-indicator", false, "Run without the connection indicator line")
	fs.BoolVar(&fl.verbose, "verbose", false, "Log ignored and rejected writes")
	fs.DurationVar(&fl.startupDelay, "startup-delay", 0, "Wait before touching hardware (for a serial console to attach)")
	return fs, fl
}

// loadConfig reads the config file (if any), overlays explicitly set flags,
// then validates and normalizes the result.
func loadConfig(fl *flags, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if fl.configPath != "" {
		var err error
		if cfg, err = config.Load(fl.configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device-id":
			cfg.Device.ID = fl.deviceID
		case "broker":
			cfg.MQTT.Broker = fl.broker
		case "heartbeat":
			cfg.MQTT.Heartbeat = fl.heartbeat
		case "http":
			cfg.HTTP.Addr = fl.httpAddr
		case "pwm":
			cfg.PWM.Backend = fl.backend
		case "pwm-frequency":
			cfg.PWM.FrequencyHz = fl.frequency
		case "no-indicator":
			cfg.Indicator.Disabled = fl.noIndicator
		case "verbose":
			cfg.Debug.Verbose = fl.verbose
		case "startup-delay":
			cfg.Debug.StartupDelay = fl.startupDelay
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func run(cfg *config.Config) error {
	if d := cfg.Debug.StartupDelay; d > 0 {
		log.Printf("startup delay %v", d)
		time.Sleep(d)
	}

	if err := pwm.Init(); err != nil {
		return fmt.Errorf("init periph: %w", err)
	}

	outputs, closeOutputs, err := openOutputs(cfg)
	if err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	defer closeOutputs()

	table, err := channel.New(outputs)
	if err != nil {
		return fmt.Errorf("init channels: %w", err)
	}
	defer func() {
		if err := table.Close(); err != nil {
			log.Printf("close channels: %v", err)
		}
	}()

	indicator, err := openIndicator(cfg)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	defer indicator.Close()

	adapter, err := ble.NewAdapter(ble.DeviceName)
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer adapter.Close()

	publisher := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.Device.ID)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	events := service.NewChanSink(eventBuffer)
	faults := make(chan error, 1)
	peripheral := service.New(adapter, table, indicator, service.Sinks{tracker, events}, service.Options{
		Verbose: cfg.Debug.Verbose,
		Fault: func(err error) {
			select {
			case faults <- err:
			default:
			}
		},
	})
	if err := peripheral.Start(); err != nil {
		return err
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("startup event not sent yet: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: %s channels=%d pwm=%s@%dHz broker=%s heartbeat=%v",
		ble.DeviceName, table.Len(), cfg.PWM.Backend, cfg.PWM.FrequencyHz, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(publisher, publisher, tracker, events, faults, cfg.MQTT.Heartbeat, time.Now, ticker.C, sigCh)
}

// openOutputs builds one channel output per configured channel. The
// returned closer releases the backend after the table has zeroed them.
func openOutputs(cfg *config.Config) ([]channel.Output, func(), error) {
	freq := physic.Frequency(cfg.PWM.FrequencyHz) * physic.Hertz
	outputs := make([]channel.Output, 0, len(cfg.Channels))

	switch cfg.PWM.Backend {
	case config.BackendPin:
		for i, ch := range cfg.Channels {
			out, err := pwm.NewPinOutput(ch.Pin, freq)
			if err != nil {
				return nil, nil, fmt.Errorf("channel %d: %w", i, err)
			}
			outputs = append(outputs, out)
		}
		return outputs, func() {}, nil

	case config.BackendPCA9685:
		board, err := pwm.OpenPCA9685(cfg.PWM.I2CBus, cfg.PWM.I2CAddr, freq)
		if err != nil {
			return nil, nil, err
		}
		closeBoard := func() {
			if err := board.Close(); err != nil {
				log.Printf("close pca9685: %v", err)
			}
		}
		for i, ch := range cfg.Channels {
			out, err := board.Output(ch.Output)
			if err != nil {
				closeBoard()
				return nil, nil, fmt.Errorf("channel %d: %w", i, err)
			}
			outputs = append(outputs, out)
		}
		return outputs, closeBoard, nil
	}
	return nil, nil, fmt.Errorf("unknown pwm backend %q", cfg.PWM.Backend)
}

func openIndicator(cfg *config.Config) (gpio.Indicator, error) {
	if cfg.Indicator.Disabled {
		return gpio.NopIndicator{}, nil
	}
	return gpio.NewRealIndicator(cfg.Indicator.Chip, cfg.Indicator.Line, cfg.Indicator.ActiveLow)
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		DeviceName:  ble.DeviceName,
		Channels:    len(cfg.Channels),
		Backend:     cfg.PWM.Backend,
		FrequencyHz: cfg.PWM.FrequencyHz,
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Verbose:     cfg.Debug.Verbose,
	}
}

// runLoop is the daemon's idle loop. BLE callbacks do the real work; the
// loop forwards their events to MQTT, refreshes the tracker on each tick,
// sends heartbeats, and returns on a signal (nil) or a peripheral fault.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, events *service.ChanSink, faults <-chan error, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			drainEvents(publisher, events)
			publishShutdown(publisher, mqttStatus, tracker, now, signalName(s))
			return nil

		case err := <-faults:
			log.Printf("peripheral fault: %v", err)
			drainEvents(publisher, events)
			publishShutdown(publisher, mqttStatus, tracker, now, "FAULT")
			return fmt.Errorf("peripheral fault: %w", err)

		case e := <-events.C:
			publishEvent(publisher, e)

		case <-tick:
			t := now()
			refresh(mqttStatus, tracker, events)

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			c := snap.Counts
			log.Printf("heartbeat: uptime=%v conn=%s writes=%d ignored=%d rejected=%d connects=%d dropped=%d",
				snap.Uptime().Truncate(time.Second), snap.Conn, c.Writes, c.Ignored, c.Rejected, c.Connects, snap.Dropped)

			hb := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hb); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func publishEvent(publisher mqtt.Publisher, e logic.Event) {
	if err := publisher.Publish(e); err != nil {
		log.Printf("publish %s: %v", e.Type, err)
	}
}

// drainEvents publishes whatever is still queued without blocking.
func drainEvents(publisher mqtt.Publisher, events *service.ChanSink) {
	for {
		select {
		case e := <-events.C:
			publishEvent(publisher, e)
		default:
			return
		}
	}
}

func refresh(mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, events *service.ChanSink) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	tracker.SetDropped(events.Dropped())
}

func publishShutdown(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, reason string) {
	event := mqtt.SystemEvent{
		Timestamp: now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
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

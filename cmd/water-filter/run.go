package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/water-filter/internal/clock"
	"github.com/sweeney/water-filter/internal/config"
	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
	"github.com/sweeney/water-filter/internal/metrics"
	"github.com/sweeney/water-filter/internal/mqtt"
	"github.com/sweeney/water-filter/internal/serialio"
	"github.com/sweeney/water-filter/internal/status"
	"github.com/sweeney/water-filter/internal/store"
	"github.com/sweeney/water-filter/internal/web"
)

// useCountStore persists the filter use counter.
type useCountStore interface {
	SaveUseCount(n int) error
}

// console is the serial side of the operator interface.
type console interface {
	Reply(r logic.CommandResult) error
	WriteData(s engine.TelemetrySnapshot) error
}

// loop holds everything runLoop touches. Optional collaborators may be nil.
type loop struct {
	engine       *engine.Engine
	publisher    mqtt.Publisher
	mqttStatus   mqtt.ConnectionStatus
	tracker      *status.Tracker
	metrics      *metrics.Metrics
	store        useCountStore
	console      console
	notify       func(state string)
	publishEvery time.Duration
	heartbeat    time.Duration
	watchdog     bool
	now          func() time.Time

	savedUseCount int
	lastPublish   time.Time
}

// sources are the channels runLoop selects on. A nil channel is never ready.
type sources struct {
	tick   <-chan time.Time
	sig    <-chan os.Signal
	mqtt   <-chan mqtt.ControlMessage
	serial <-chan logic.Command
	web    <-chan web.CommandRequest
}

func run(cfg *config.Config) error {
	clk := clock.System{}

	hw, err := openHardware(cfg, clk)
	if err != nil {
		return err
	}
	defer hw.Close()

	var st *store.Store
	useCount := 0
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer st.Close()
		if useCount, err = st.LoadUseCount(); err != nil {
			return fmt.Errorf("load use count: %w", err)
		}
		log.Printf("restored use count %d/%d", useCount, cfg.Filter.UseLimit)
	}

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
		mqtt.CommandSource
	} = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT)
	}
	defer publisher.Close()

	startTime := clk.Now()
	eng := engine.New(cfg, hw.sensors, hw.board, useCount, startTime)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:      cfg.Loop.Poll.Milliseconds(),
		PublishMs:   cfg.Loop.Publish.Milliseconds(),
		HeartbeatMs: cfg.Loop.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		SerialPort:  cfg.Serial.Port,
		UseLimit:    cfg.Filter.UseLimit,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	refreshHost(tracker)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	m := metrics.New()
	webCommands := make(chan web.CommandRequest)
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, webCommands, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	l := &loop{
		engine:       eng,
		publisher:    publisher,
		mqttStatus:   publisher,
		tracker:      tracker,
		metrics:      m,
		notify:       sdNotify,
		publishEvery: cfg.Loop.Publish,
		heartbeat:    cfg.Loop.Heartbeat,
		now:          clk.Now,
	}
	if st != nil {
		l.store = st
	}
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		if interval/2 < cfg.Loop.Poll {
			log.Printf("systemd watchdog %v is shorter than twice the poll interval %v", interval, cfg.Loop.Poll)
		}
		l.watchdog = true
	}

	src := sources{
		mqtt: publisher.Commands(),
		web:  webCommands,
	}
	if cfg.Serial.Port != "" {
		con, err := serialio.Open(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Printf("serial console disabled: %v", err)
		} else {
			defer con.Close()
			l.console = con
			src.serial = con.Commands()
			log.Printf("serial console on %s", cfg.Serial.Port)
		}
	}

	log.Printf("started: poll=%v publish=%v broker=%s heartbeat=%v", cfg.Loop.Poll, cfg.Loop.Publish, cfg.MQTT.Broker, cfg.Loop.Heartbeat)

	ticker := time.NewTicker(cfg.Loop.Poll)
	defer ticker.Stop()
	src.tick = ticker.C

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	src.sig = sigCh

	sdNotify(daemon.SdNotifyReady)
	return runLoop(l, src)
}

func runLoop(l *loop, src sources) error {
	l.savedUseCount = l.engine.UseCount()

	for {
		select {
		case s := <-src.sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(s)
			return nil

		case msg := <-src.mqtt:
			cmd, err := logic.ParseCommand(msg.Command)
			if err != nil {
				log.Printf("mqtt: %v", err)
				l.publishStatus(mqtt.StatusMessage{
					Timestamp: l.now(),
					Status:    mqtt.StatusReject,
					Message:   err.Error(),
					Command:   msg.Command,
				})
				continue
			}
			l.handleCommand(cmd, "mqtt")

		case cmd, ok := <-src.serial:
			if !ok {
				log.Printf("serial console closed")
				src.serial = nil
				continue
			}
			res := l.handleCommand(cmd, "serial")
			if l.console != nil {
				if err := l.console.Reply(res); err != nil {
					log.Printf("serial: %v", err)
				}
			}

		case req := <-src.web:
			req.Reply <- l.handleCommand(req.Command, "http")

		case <-src.tick:
			l.tick(l.now())
		}
	}
}

// tick runs one control cycle and fans the result out.
func (l *loop) tick(t time.Time) {
	events := l.engine.Tick(t)
	for _, ev := range events {
		l.publishStatus(mqtt.StatusFromEvent(ev))
	}
	l.saveUseCount()

	snap := l.engine.Snapshot()
	connected := l.mqttStatus != nil && l.mqttStatus.IsConnected()
	if l.metrics != nil {
		l.metrics.RecordEvents(events)
		l.metrics.Observe(snap)
		l.metrics.SetMQTTConnected(connected)
	}

	// Update status tracker for HTTP consumers
	if l.tracker != nil {
		l.tracker.Update(snap, l.engine.Counts())
		l.tracker.SetMQTTConnected(connected)
	}

	if l.lastPublish.IsZero() || t.Sub(l.lastPublish) >= l.publishEvery {
		l.lastPublish = t
		if err := l.publisher.PublishTelemetry(snap); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
		if l.console != nil {
			if err := l.console.WriteData(snap); err != nil {
				log.Printf("serial: %v", err)
			}
		}
	}

	// Check for heartbeat
	if hbData := l.engine.CheckHeartbeat(t, l.heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v pump_on=%d pump_off=%d alarm_on=%d rejected=%d",
			hbData.Uptime, hbData.Counts.PumpOn, hbData.Counts.PumpOff, hbData.Counts.AlarmOn, hbData.Counts.CommandsRejected)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network and host info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			refreshHost(l.tracker)
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}

	if l.watchdog {
		l.notify(daemon.SdNotifyWatchdog)
	}
}

// handleCommand validates a command against the engine and acknowledges it
// on the status topic.
func (l *loop) handleCommand(cmd logic.Command, source string) logic.CommandResult {
	res := l.engine.HandleCommand(cmd, source)
	if l.metrics != nil {
		l.metrics.RecordCommand(res)
	}
	l.publishStatus(mqtt.StatusFromResult(res, l.now()))
	return res
}

func (l *loop) publishStatus(msg mqtt.StatusMessage) {
	if err := l.publisher.PublishStatus(msg); err != nil {
		log.Printf("status publish error: %v", err)
	}
}

// saveUseCount persists the use counter when it has changed.
func (l *loop) saveUseCount() {
	n := l.engine.UseCount()
	if n == l.savedUseCount || l.store == nil {
		return
	}
	if err := l.store.SaveUseCount(n); err != nil {
		log.Printf("store: %v", err)
		return
	}
	l.savedUseCount = n
}

func (l *loop) shutdown(s os.Signal) {
	if l.notify != nil {
		l.notify(daemon.SdNotifyStopping)
	}
	if err := l.engine.Shutdown(); err != nil {
		log.Printf("gpio: shutdown: %v", err)
	}
	l.saveUseCount()

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		l.tracker.Update(l.engine.Snapshot(), l.engine.Counts())
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func refreshHost(tracker *status.Tracker) {
	info, err := status.ReadHost()
	if err != nil {
		log.Printf("host stats: %v", err)
	}
	tracker.SetHost(info)
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("systemd notify %s: %v", state, err)
	}
}

// resetUseCount zeroes the persisted counter and returns its previous value.
func resetUseCount(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("no store path configured")
	}
	st, err := store.Open(path)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	prev, err := st.LoadUseCount()
	if err != nil {
		return 0, err
	}
	if err := st.SaveUseCount(0); err != nil {
		return prev, err
	}
	return prev, nil
}

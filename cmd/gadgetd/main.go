// Command gadgetd runs the touch, PMU and advertising producers of a handheld
// gadget and dispatches their events to the UI and power policy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pocketgadget/gadgetd/internal/config"
	"github.com/pocketgadget/gadgetd/internal/dispatch"
	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/messaging"
	"github.com/pocketgadget/gadgetd/internal/mqtt"
	"github.com/pocketgadget/gadgetd/internal/retry"
	"github.com/pocketgadget/gadgetd/internal/status"
	"github.com/pocketgadget/gadgetd/internal/ui"
	"github.com/pocketgadget/gadgetd/internal/web"
)

// flags holds command-line overrides. Empty values leave the file alone.
type flags struct {
	config string
	level  string
	http   string
	broker string
	redis  string
	radio  string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML config file (defaults when empty)")
	flag.StringVar(&f.level, "log", "info", "log level: none, error, warn, info, debug")
	flag.StringVar(&f.http, "http", "", `HTTP status address, overrides http.addr ("off" disables)`)
	flag.StringVar(&f.broker, "broker", "", `MQTT broker, overrides mqtt.broker ("off" disables)`)
	flag.StringVar(&f.redis, "redis", "", `Redis address, overrides redis.addr ("off" disables)`)
	flag.StringVar(&f.radio, "radio", "", "advertising backend: hci, bluez or off")
	flag.Parse()

	if err := run(f); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the file, applies flag overrides, then validates.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	override := func(dst *string, v string) {
		switch v {
		case "":
		case "off":
			*dst = ""
		default:
			*dst = v
		}
	}
	override(&cfg.HTTP.Addr, f.http)
	override(&cfg.MQTT.Broker, f.broker)
	override(&cfg.Redis.Addr, f.redis)
	if f.radio != "" {
		cfg.Advert.Backend = f.radio
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func run(f flags) error {
	level, err := logger.ParseLevel(f.level)
	if err != nil {
		return err
	}
	lg := logger.NewStderr(level)

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Radio:       cfg.Advert.Backend,
		Broker:      cfg.MQTT.Broker,
		Redis:       cfg.Redis.Addr,
		HTTPAddr:    cfg.HTTP.Addr,
		BusCapacity: cfg.Bus.Capacity,
		HoldMs:      int64(cfg.Advert.HoldMs),
		RetryCount:  cfg.Retry.Attempts,
	})
	policy := func(l *logger.Logger) retry.Policy {
		return retry.Policy{
			Retries: cfg.Retry.Attempts,
			Base:    time.Duration(cfg.Retry.BaseMs) * time.Millisecond,
			Notify: func(err error, wait time.Duration) {
				l.Debugf("retry in %v: %v", wait, err)
			},
		}
	}

	hw, err := bringUp(cfg, lg.WithTag("hw"))
	if err != nil {
		return err
	}
	defer hw.Close()

	bus := events.NewBus(cfg.Bus.Capacity)
	view := ui.New(lg.WithTag("ui"))

	var tasks []task
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	dopts := []dispatch.Option{
		dispatch.WithRecorder(displayRecorder{Tracker: tracker, ui: view}),
		dispatch.WithRetry(policy(lg.WithTag("dispatch"))),
		dispatch.WithLogger(lg.WithTag("dispatch")),
		dispatch.WithBrightness(cfg.Display.DefaultBrightness),
	}

	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			Prefix:             cfg.MQTT.TopicPrefix,
			Log:                lg.WithTag("mqtt"),
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		defer rp.Close()
		publisher, mqttStatus = rp, rp
		fwd := mqtt.NewForwarder(rp, mqtt.DefaultForwardQueue, lg.WithTag("mqtt"))
		dopts = append(dopts, dispatch.WithPublisher(fwd))
		tasks = append(tasks, task{name: "mqtt", run: fwd.Run})
	}

	adv, err := openAdvertiser(cfg, tracker, view, policy(lg.WithTag("advert")), lg.WithTag("advert"))
	if err != nil {
		lg.Errorf("advertising disabled: %v", err)
		tracker.SetFault("advert", err)
	}
	if adv != nil {
		defer adv.Close()
		dopts = append(dopts, dispatch.WithAdvertiser(adv.Controller()))
		tasks = append(tasks, task{name: "advert", run: adv.Run, stop: adv.Controller().Terminate})
	}

	d := dispatch.New(bus, view, dispatch.NewPMIC(hw.pmic), dopts...)
	view.Bind(d.Controls())
	if err := hw.setBacklight(cfg.Display.DefaultBrightness, policy(lg.WithTag("hw"))); err != nil {
		lg.Warnf("backlight: %v", err)
	}

	tasks = append(tasks,
		task{name: "touch", run: hw.touchTask(bus, cfg, policy(lg.WithTag("touch")), lg.WithTag("touch")).Run},
		task{name: "pmu", run: hw.pmuTask(bus, cfg, policy(lg.WithTag("pmu")), lg.WithTag("pmu")).Run},
		task{name: "dispatch", run: d.Run},
	)

	if cfg.Redis.Addr != "" {
		rc := messaging.New(tracker, d.Controls(), messaging.Options{
			Addr:   cfg.Redis.Addr,
			Hash:   cfg.Redis.Hash,
			Prefix: cfg.Redis.CommandPrefix,
			Log:    lg.WithTag("redis"),
		})
		defer rc.Close()
		tasks = append(tasks, task{name: "redis", run: rc.Run})
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, d.Controls(), lg.WithTag("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Errorf("http server: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		lg.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	dm := &daemon{tracker: tracker, pub: publisher, mqttStatus: mqttStatus, log: lg}
	dm.publishSystem(mqtt.EventStartup, "", true)
	lg.Infof("started: radio=%s bus=%d broker=%q redis=%q", cfg.Advert.Backend, cfg.Bus.Capacity, cfg.MQTT.Broker, cfg.Redis.Addr)

	var heartbeat <-chan time.Time
	if cfg.MQTT.HeartbeatS > 0 {
		t := time.NewTicker(time.Duration(cfg.MQTT.HeartbeatS) * time.Second)
		defer t.Stop()
		heartbeat = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return dm.runLoop(tasks, heartbeat, sigCh)
}

// stopGrace bounds how long shutdown waits for tasks with a stop hook to
// return before their context is cancelled.
var stopGrace = 3 * time.Second

// task is one long-running subsystem. A non-nil stop asks run to return on
// its own; the context is cancelled once it has, or after stopGrace.
type task struct {
	name string
	run  func(ctx context.Context) error
	stop func(ctx context.Context) error
}

type daemon struct {
	tracker    *status.Tracker
	pub        mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	log        *logger.Logger

	stopping atomic.Bool
}

type gracefulTask struct {
	task
	done <-chan struct{}
}

// runLoop starts every task and blocks until a signal arrives. A task that
// fails is logged and marked faulted; the others keep running.
func (dm *daemon) runLoop(tasks []task, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g errgroup.Group
	var graceful []gracefulTask
	for _, t := range tasks {
		done := make(chan struct{})
		if t.stop != nil {
			graceful = append(graceful, gracefulTask{task: t, done: done})
		}
		g.Go(func() error {
			defer close(done)
			dm.supervise(ctx, t)
			return nil
		})
	}

	for {
		select {
		case s := <-sig:
			dm.log.Infof("received %v, shutting down", s)
			dm.publishSystem(mqtt.EventShutdown, signalName(s), true)
			dm.stopTasks(graceful)
			cancel()
			return g.Wait()

		case <-heartbeat:
			dm.publishSystem(mqtt.EventHeartbeat, "", false)
		}
	}
}

// stopTasks calls every stop hook and waits, up to stopGrace in total, for
// those tasks to return.
func (dm *daemon) stopTasks(tasks []gracefulTask) {
	dm.stopping.Store(true)
	if len(tasks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	for _, t := range tasks {
		if err := t.stop(ctx); err != nil {
			dm.log.Warnf("%s: stop: %v", t.name, err)
		}
	}
	for _, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			dm.log.Warnf("%s: still running after %v, cancelling", t.name, stopGrace)
			return
		}
	}
}

func (dm *daemon) supervise(ctx context.Context, t task) {
	err := t.run(ctx)
	if ctx.Err() != nil || (err == nil && dm.stopping.Load()) {
		return
	}
	if err == nil {
		err = errors.New("stopped unexpectedly")
	}
	dm.log.Errorf("%s: %v", t.name, err)
	dm.tracker.SetFault(t.name, err)
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
func (dm *daemon) publishSystem(event, reason string, retained bool) {
	if dm.pub == nil {
		return
	}
	if dm.mqttStatus != nil {
		dm.tracker.SetMQTTConnected(dm.mqttStatus.IsConnected())
	}
	snap := dm.tracker.Snapshot()
	err := dm.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		dm.log.Warnf("publish %s: %v", event, err)
		return
	}
	dm.log.Debugf("published %s", event)
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

// displayRecorder mirrors the backlight step into the UI as well as the
// tracker, so remote brightness changes show on the menu.
type displayRecorder struct {
	*status.Tracker
	ui *ui.Headless
}

func (r displayRecorder) SetBrightness(step, mv int) {
	r.Tracker.SetBrightness(step, mv)
	r.ui.SetBrightness(step)
}

// Command magic-clock runs the magic clock: a clock face whose time can be
// secretly shifted from a hidden keypad and later eased back to real time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/peterbourgon/ff/v3"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/gpio"
	"github.com/sweeney/magic-clock/internal/logging"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/metrics"
	"github.com/sweeney/magic-clock/internal/mqtt"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/timesource"
	"github.com/sweeney/magic-clock/internal/trigger"
	"github.com/sweeney/magic-clock/internal/tui"
	"github.com/sweeney/magic-clock/internal/web"
)

// inputQueue is the capacity of the channel producers feed the loop through.
const inputQueue = 64

type config struct {
	zone           string
	fps            int
	settingsPath   string
	broker         string
	wsBroker       string
	httpAddr       string
	heartbeat      time.Duration
	buttonPin      int
	buttonChip     string
	buttonPoll     time.Duration
	buttonDebounce time.Duration
	tui            bool
	logLevel       string
	logJSON        bool
	logFile        string
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "magic-clock: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "magic-clock: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		closeLog()
		os.Exit(1)
	}
}

// parseFlags reads flags, falling back to MAGIC_CLOCK_* environment variables.
func parseFlags(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("magic-clock", flag.ContinueOnError)
	fs.StringVar(&c.zone, "zone", timesource.DefaultZone, "IANA time zone of the clock")
	fs.IntVar(&c.fps, "fps", 60, "frame rate")
	fs.StringVar(&c.settingsPath, "settings", "magic-clock.yaml", "settings file")
	fs.StringVar(&c.broker, "broker", "tcp://localhost:1883", `MQTT broker address ("off" disables MQTT)`)
	fs.StringVar(&c.wsBroker, "ws-broker", "=broker", `MQTT websocket URL shown on the status page ("=broker" derives from -broker, "off" disables)`)
	fs.StringVar(&c.httpAddr, "http", ":8080", "HTTP address for the face and status (empty to disable)")
	fs.DurationVar(&c.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	fs.IntVar(&c.buttonPin, "button-pin", 0, fmt.Sprintf("BCM pin of the remote button, usually %d (0 to disable)", gpio.DefaultPin))
	fs.StringVar(&c.buttonChip, "button-chip", gpio.DefaultChip, "GPIO chip of the remote button")
	fs.DurationVar(&c.buttonPoll, "button-poll", 20*time.Millisecond, "button polling interval")
	fs.DurationVar(&c.buttonDebounce, "button-debounce", 50*time.Millisecond, "button debounce duration")
	fs.BoolVar(&c.tui, "tui", false, "show the clock in the terminal")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&c.logJSON, "log-json", false, "log in JSON")
	fs.StringVar(&c.logFile, "log-file", "", "append logs to this file (default stderr, or nowhere with -tui)")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("MAGIC_CLOCK")); err != nil {
		return c, err
	}
	if c.fps <= 0 || c.fps > 240 {
		return c, fmt.Errorf("fps %d out of range 1..240", c.fps)
	}
	if c.buttonPin > 0 && (c.buttonPoll <= 0 || c.buttonDebounce < 0) {
		return c, errors.New("button-poll must be positive and button-debounce not negative")
	}
	if c.broker == "off" {
		c.broker = ""
	}
	c.wsBroker = resolveWSBroker(c.wsBroker, c.broker)
	return c, nil
}

// newLogger builds the process logger. The terminal UI owns the screen, so
// with -tui logs go to -log-file or are dropped.
func newLogger(cfg config) (*slog.Logger, func(), error) {
	opts := []logging.Option{logging.WithLevel(cfg.logLevel), logging.WithJSON(cfg.logJSON)}
	switch {
	case cfg.logFile != "":
		f, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logging.New(append(opts, logging.WithWriter(f))...), func() { f.Close() }, nil
	case cfg.tui:
		return logging.New(append(opts, logging.WithWriter(io.Discard))...), func() {}, nil
	}
	return logging.New(opts...), func() {}, nil
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	clock := clockz.RealClock
	src, err := timesource.New(clock, cfg.zone)
	if err != nil {
		return fmt.Errorf("time source: %w", err)
	}
	now := src.Now

	store := settings.NewFileStore(cfg.settingsPath)
	s, err := store.Load()
	if err != nil {
		logger.Warn("settings unreadable, using defaults", slog.Any("error", err))
	}

	var closers []io.Closer
	defer func() {
		var merr *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			merr = multierror.Append(merr, closers[i].Close())
		}
		if err := merr.ErrorOrNil(); err != nil {
			logger.Warn("close", slog.Any("error", err))
		}
	}()

	inputs := make(chan trigger.Input, inputQueue)
	m := metrics.New()

	publisher, mqttStatus, err := newPublisher(cfg, inputs, now, logger)
	if err != nil {
		return err
	}
	closers = append(closers, publisher)

	var reader gpio.Reader
	if cfg.buttonPin > 0 {
		r, err := gpio.NewRealReader(cfg.buttonChip, cfg.buttonPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		reader = r
		closers = append(closers, r)
	}

	tracker := status.NewTracker(now(), status.Config{
		Zone:        src.Location().String(),
		FPS:         cfg.fps,
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
		WSBroker:    cfg.wsBroker,
		ButtonPin:   cfg.buttonPin,
	})

	ctrl := logic.NewController(logic.DefaultConfig(), s.ReturnPlan(), now())
	rec := gesture.NewRecognizer(gesture.DefaultConfig(), s.ShakeSensitivity)
	disp := trigger.New(ctrl, rec, store, s,
		trigger.WithLogger(logger),
		trigger.WithGestureHook(m.ObserveGesture))

	l := &loop{
		ctrl:       ctrl,
		disp:       disp,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		heartbeat:  cfg.heartbeat,
		now:        now,
		logger:     logger,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker,
			web.WithInputs(inputs),
			web.WithMetrics(m.Handler()),
			web.WithLogger(logger),
			web.WithClock(now))
		l.sinks = append(l.sinks, srv.Hub())
		l.eventSinks = append(l.eventSinks, srv.Hub())

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(sctx)
		})
		logger.Info("http server listening", slog.String("addr", cfg.httpAddr))
	}

	if reader != nil {
		poll := clock.NewTicker(cfg.buttonPoll)
		g.Go(func() error {
			defer poll.Stop()
			pollButton(gctx, reader, gesture.NewButton(cfg.buttonDebounce), poll.C(), now, inputs, logger)
			return nil
		})
	}

	if cfg.tui {
		p := tui.New(inputs, gctx.Done(), now)
		l.sinks = append(l.sinks, p)
		l.eventSinks = append(l.eventSinks, p)

		g.Go(func() error {
			defer cancel()
			if err := p.Run(); err != nil {
				return fmt.Errorf("terminal ui: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			p.Quit()
			return nil
		})
	}

	l.startup()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	frames := clock.NewTicker(time.Second / time.Duration(cfg.fps))
	g.Go(func() error {
		defer cancel()
		defer frames.Stop()
		return runLoop(gctx, l, frames.C(), inputs, sig)
	})

	logger.Info("started",
		slog.String("zone", src.Location().String()),
		slog.Int("fps", cfg.fps),
		slog.String("broker", cfg.broker),
		slog.Duration("heartbeat", cfg.heartbeat),
		slog.String("settings", store.Path()))

	return g.Wait()
}

// newPublisher connects to the broker, or returns a publisher that drops
// everything when MQTT is off. The returned status is nil in that case.
func newPublisher(cfg config, inputs chan<- trigger.Input, now func() time.Time, logger *slog.Logger) (mqtt.Publisher, mqtt.ConnectionStatus, error) {
	if cfg.broker == "" {
		logger.Info("mqtt disabled")
		return mqtt.NopPublisher{}, nil, nil
	}
	p, err := mqtt.NewRealPublisher(cfg.broker, mqtt.Options{
		OnCommand: remoteCommand(inputs, logger),
		Logger:    logger,
		Now:       now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init mqtt: %w", err)
	}
	return p, p, nil
}

// remoteCommand forwards MQTT commands to the event loop. It never blocks the
// MQTT client: when the queue is full the command is dropped.
func remoteCommand(inputs chan<- trigger.Input, logger *slog.Logger) mqtt.CommandHandler {
	return func(c mqtt.Command) {
		in, ok := trigger.NamedInput(c.Name, c.Key)
		if !ok {
			logger.Warn("unknown remote command", slog.String("command", c.Name), slog.String("key", c.Key))
			return
		}
		select {
		case inputs <- in:
		default:
			logger.Warn("input queue full, dropping remote command", slog.String("command", c.Name))
		}
	}
}

// pollButton samples the button on every tick and forwards debounced presses.
// Read errors are logged once per outage and the sample is skipped.
func pollButton(ctx context.Context, r gpio.Reader, b *gesture.Button, tick <-chan time.Time, now func() time.Time, inputs chan<- trigger.Input, logger *slog.Logger) {
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		pressed, err := r.Read()
		if err != nil {
			if !failing {
				logger.Warn("gpio read error", slog.Any("error", err))
				failing = true
			}
			continue
		}
		if failing {
			logger.Info("gpio read recovered")
			failing = false
		}

		if _, ok := b.Sample(pressed, now()); !ok {
			continue
		}
		logger.Debug("button pressed")
		select {
		case inputs <- trigger.ButtonInput{}:
		case <-ctx.Done():
			return
		}
	}
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or an
// empty broker disables it.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		slog.Warn("ws-broker: cannot parse broker", slog.String("broker", broker), slog.Any("error", err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

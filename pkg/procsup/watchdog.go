package procsup

import (
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// watchdogLogger is the logging surface a Watchdog needs. *slog.Logger
// satisfies it; tests may substitute a fake.
type watchdogLogger interface {
	Warn(msg string, args ...any)
}

// killFunc terminates a process group, waiting up to grace before
// escalating from SIGTERM to SIGKILL.
type killFunc func(grace time.Duration) error

// KillGrace is the wait between SIGTERM and SIGKILL, both for the
// per-task watchdog and for the top-level interrupt path that kills every
// outstanding Handle directly.
const KillGrace = 5 * time.Second

// killPollWindow is how long the watchdog polls for process death after
// SIGKILL before giving up and logging a warning.
const killPollWindow = 10 * time.Second

// killPollInterval is the polling cadence within killPollWindow.
const killPollInterval = 250 * time.Millisecond

// WatchdogConfig configures a Watchdog.
type WatchdogConfig struct {
	PID     int
	Logger  watchdogLogger
	Timeout time.Duration
	Kill    killFunc
	Span    trace.Span
}

// Watchdog arms a timer that, on firing, kills a subprocess tree: SIGTERM,
// a five-second grace window, SIGKILL, then a ten-second poll for death.
// Grounded on the stall-detection shape of a CGO-worker watchdog,
// retargeted from "call did not return" to "subprocess exceeded its
// wall-clock budget".
type Watchdog struct {
	mu sync.Mutex

	timer   *time.Timer
	killed  bool
	fired   bool
	logger  watchdogLogger
	kill    killFunc
	span    trace.Span
	pid     int
	timeout time.Duration
}

// NewWatchdog arms a timer for cfg.Timeout. Returns nil if Timeout is zero
// or negative (disabled).
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.Timeout <= 0 {
		return nil
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	wd := &Watchdog{
		logger:  lg,
		kill:    cfg.Kill,
		span:    cfg.Span,
		pid:     cfg.PID,
		timeout: cfg.Timeout,
	}

	wd.timer = time.AfterFunc(cfg.Timeout, wd.fire)

	return wd
}

// Killed reports whether the watchdog fired and killed the process. Safe
// to call repeatedly, including after Stop.
func (wd *Watchdog) Killed() bool {
	wd.mu.Lock()
	defer wd.mu.Unlock()

	return wd.killed
}

// Stop disarms the timer. Call after the subprocess exits normally so a
// race with a near-simultaneous timeout does not kill an already-reaped
// process.
func (wd *Watchdog) Stop() {
	wd.timer.Stop()
}

// fire runs in the timer's own goroutine: SIGTERM, wait up to KillGrace,
// SIGKILL survivors, then poll up to killPollWindow before giving up.
func (wd *Watchdog) fire() {
	wd.mu.Lock()
	wd.fired = true
	wd.killed = true
	wd.mu.Unlock()

	wd.logger.Warn("process supervisor watchdog fired",
		slog.Int("pid", wd.pid),
		slog.Duration("timeout", wd.timeout),
	)

	if wd.span != nil {
		wd.span.AddEvent("procsup.watchdog.fired", trace.WithAttributes(
			attribute.Int("pid", wd.pid),
		))
	}

	if wd.kill == nil {
		return
	}

	if err := wd.kill(KillGrace); err != nil {
		wd.logger.Warn("process supervisor watchdog kill failed",
			slog.Int("pid", wd.pid),
			slog.String("error", err.Error()),
		)
	}

	wd.pollForDeath()
}

func (wd *Watchdog) pollForDeath() {
	deadline := time.Now().Add(killPollWindow)

	for time.Now().Before(deadline) {
		if !processAlive(wd.pid) {
			return
		}

		time.Sleep(killPollInterval)
	}

	if processAlive(wd.pid) {
		wd.logger.Warn("process supervisor watchdog: process still alive after kill window",
			slog.Int("pid", wd.pid),
		)
	}
}

package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrel-flight/kestrel/internal/api"
	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
	"github.com/kestrel-flight/kestrel/internal/hal"
	"github.com/kestrel-flight/kestrel/internal/health"
	_ "github.com/kestrel-flight/kestrel/internal/infra/metrics" // Register Prometheus metrics
	"github.com/kestrel-flight/kestrel/internal/state"
	"github.com/kestrel-flight/kestrel/internal/tasks"
	"github.com/kestrel-flight/kestrel/internal/telemetry"
)

// FlightComputer is the wired kernel: one executive, one mode machine,
// one health ledger, one telemetry store, one command surface. Every
// component receives its collaborators explicitly; nothing reaches for
// globals.
type FlightComputer struct {
	Config  Config
	Exec    *exec.Executive
	Bank    *hal.Bank
	States  *state.Manager
	Monitor *health.Monitor
	Store   *telemetry.Store
	Proc    *command.Processor
	Server  *api.Server

	cancel context.CancelFunc
}

// New wires a flight computer from the configuration.
func New(cfg Config, version string) (*FlightComputer, error) {
	ex, err := exec.New(exec.Config{
		BaseHz:      cfg.Scheduler.BaseHz,
		FaultBudget: cfg.Scheduler.FaultBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("executive: %w", err)
	}

	store, err := telemetry.Open(cfg.Telemetry.Dir)
	if err != nil {
		return nil, fmt.Errorf("telemetry store: %w", err)
	}
	if err := tasks.RegisterStreams(store); err != nil {
		store.Close()
		return nil, fmt.Errorf("register streams: %w", err)
	}

	fc := &FlightComputer{
		Config: cfg,
		Exec:   ex,
		Bank:   hal.NewSimBank(cfg.Sim.Seed),
		Store:  store,
	}

	// The processor and monitor see the mode machine through fc, which
	// delegates to the manager once the task set exists.
	queue := command.NewQueue(cfg.Uplink.QueueCapacity)
	fc.Proc = command.NewProcessor(queue, fc, ex, store, nil)
	fc.Monitor = health.NewMonitor(health.DefaultConfig(), fc, fc.Bank)

	set, err := tasks.Build(tasks.Deps{
		Bank:   fc.Bank,
		Health: fc.Monitor,
		Store:  store,
		Proc:   fc.Proc,
		Modes:  fc,
		Ticks:  ex,
		TM:     store,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("task set: %w", err)
	}

	fc.States, err = state.NewManager(ex, set)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("state manager: %w", err)
	}

	for _, name := range fc.Bank.Names() {
		asil, err := fc.Bank.ASIL(name)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("device %s: %w", name, err)
		}
		fc.Monitor.Track(name, asil)
	}

	fc.Server = api.NewServer(ex, fc, fc.Monitor, store, queue, version)
	if cfg.API.Metrics {
		fc.Server.EnableMetrics()
	}
	return fc, nil
}

// ─── Mode Machine Delegation ────────────────────────────────────────────────

// Current returns the operating mode.
func (fc *FlightComputer) Current() domain.Mode { return fc.States.Current() }

// RequestTransition forwards an adjacency-checked transition request.
func (fc *FlightComputer) RequestTransition(target domain.Mode) error {
	return fc.States.RequestTransition(target)
}

// ForceTransition forwards a forced transition.
func (fc *FlightComputer) ForceTransition(target domain.Mode, reason string) error {
	return fc.States.ForceTransition(target, reason)
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Boot installs the STARTUP task table. Must run before Serve.
func (fc *FlightComputer) Boot() {
	fc.States.Boot()
}

// Serve runs the tick loop and the HTTP API until a signal or context
// cancellation, then shuts down cleanly.
func (fc *FlightComputer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	fc.cancel = cancel

	addr := fmt.Sprintf("%s:%d", fc.Config.API.Host, fc.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      fc.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Printf("[daemon] signal received — shutting down")
			cancel()
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Printf("[daemon] kestrel serving on http://%s (base %.1f Hz, mode %s)",
		addr, fc.Config.Scheduler.BaseHz, fc.Current())

	// The tick loop blocks until the context ends.
	fc.Exec.Run(ctx)

	select {
	case err := <-errCh:
		fc.Store.Close()
		return err
	default:
	}
	return fc.Store.Close()
}

// Close releases daemon resources.
func (fc *FlightComputer) Close() {
	if fc.cancel != nil {
		fc.cancel()
	}
	if fc.Store != nil {
		_ = fc.Store.Close()
	}
}

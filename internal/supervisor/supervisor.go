// Package supervisor owns process startup and shutdown for the ingest
// daemon: it applies migrations, launches the watch adapter and the worker
// loops as goroutines, and tears everything down on signal. Each named
// loop runs in its own goroutine under a shared cancelable context and a
// WaitGroup, with a bounded grace period for shutdown after SIGINT/SIGTERM.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"

	"vaultingest/internal/database"
)

// Loop is anything the supervisor runs for the daemon's lifetime. It must
// return once ctx is canceled.
type Loop func(ctx context.Context)

// Supervisor wires the migration step, the watch adapter, and the worker
// loops together and runs them until signaled.
type Supervisor struct {
	db            *database.DB
	migrationsDir string
	loops         map[string]Loop
	shutdownGrace time.Duration
}

// New builds a Supervisor. migrationsDir defaults to "migrations" if empty.
func New(db *database.DB, migrationsDir string) *Supervisor {
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	return &Supervisor{
		db:            db,
		migrationsDir: migrationsDir,
		loops:         make(map[string]Loop),
		shutdownGrace: 30 * time.Second,
	}
}

// Register adds a named daemon loop. Loops are started together in Run and
// must respect ctx cancellation to participate in graceful shutdown.
func (s *Supervisor) Register(name string, loop Loop) {
	s.loops[name] = loop
}

// ApplyMigrations runs goose's pending migrations idempotently. Safe to call
// on every startup.
func (s *Supervisor) ApplyMigrations() error {
	if err := goose.Run("up", s.db.DB.DB, s.migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM, running every registered loop
// concurrently. On signal, loops are given shutdownGrace to finish their
// current row before Run returns; the caller is responsible for closing the
// database pool afterward.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.ApplyMigrations(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLoops(sigCtx, s.loops, s.shutdownGrace)
	return nil
}

// runLoops starts every loop as a goroutine and waits for ctx to be
// canceled, then gives the loops up to grace to exit before returning.
// Factored out of Run so the shutdown-grace behavior is testable without a
// live database or real OS signals.
func runLoops(ctx context.Context, loops map[string]Loop, grace time.Duration) {
	var wg sync.WaitGroup
	for name, loop := range loops {
		wg.Add(1)
		go func(name string, loop Loop) {
			defer wg.Done()
			slog.Info("supervisor: loop started", "loop", name)
			loop(ctx)
			slog.Info("supervisor: loop exited", "loop", name)
		}(name, loop)
	}

	<-ctx.Done()
	slog.Info("supervisor: shutdown signal received, waiting for loops to finish", "grace", grace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("supervisor: all loops exited cleanly")
	case <-time.After(grace):
		slog.Warn("supervisor: shutdown grace period elapsed, some loops did not exit")
	}
}

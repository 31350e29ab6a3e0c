// Package shutdown coordinates releasing the resources of a running session:
// caches, watchers, the metrics endpoint and the store.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"myday/internal/utils"
)

// CleanupFunc releases one resource. The context expires when the
// shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager runs registered cleanups once, in reverse registration order.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	ran      bool
	logger   *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewManager creates a manager. logger may be nil.
func NewManager(logger *utils.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a cleanup. Cleanups registered after Wait has run are
// executed immediately.
func (m *Manager) Register(name string, fn CleanupFunc) {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		if err := fn(context.Background()); err != nil {
			m.logf("cleanup %s failed: %v", name, err)
		}
		return
	}
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
	m.mu.Unlock()
}

// RegisterCloser adds a cleanup for anything with a Close method.
func (m *Manager) RegisterCloser(name string, c interface{ Close() error }) {
	m.Register(name, func(context.Context) error { return c.Close() })
}

// Shutdown cancels Context. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
		m.cancel()
	})
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// HandleSignals calls Shutdown on SIGINT or SIGTERM. The returned func
// stops listening.
func (m *Manager) HandleSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			m.logf("received %s, shutting down", sig)
			m.Shutdown()
		case <-done:
		}
	}()
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// Wait starts shutdown and runs the cleanups in LIFO order. Every cleanup
// runs even if an earlier one fails; their errors are joined. Wait returns
// ctx.Err() if the deadline passes first.
func (m *Manager) Wait(ctx context.Context) error {
	m.Shutdown()

	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return nil
	}
	m.ran = true
	cleanups := m.cleanups
	m.cleanups = nil
	m.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				m.logf("cleanup %s failed: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		errCh <- errors.Join(errs...)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(format, args...)
	}
}

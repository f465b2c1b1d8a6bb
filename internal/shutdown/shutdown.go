// Package shutdown coordinates graceful teardown: the HTTP server stops
// accepting requests, in-flight syncs drain, then the store closes.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler manages graceful shutdown of the application
type Handler struct {
	mu             sync.Mutex
	shutdownFuncs  []func(context.Context) error
	timeout        time.Duration
	signalChan     chan os.Signal
	shutdownChan   chan struct{}
	isShuttingDown bool
}

// New creates a new shutdown handler
func New(timeout time.Duration) *Handler {
	return &Handler{
		shutdownFuncs: make([]func(context.Context) error, 0),
		timeout:       timeout,
		signalChan:    make(chan os.Signal, 1),
		shutdownChan:  make(chan struct{}),
	}
}

// Register adds a shutdown function to be called during graceful shutdown
// Functions are called in reverse order of registration (LIFO)
func (h *Handler) Register(fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownFuncs = append(h.shutdownFuncs, fn)
}

// Wait blocks until a shutdown signal is received
func (h *Handler) Wait() {
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-h.signalChan
	h.Shutdown()
}

// Shutdown executes all registered shutdown functions with a timeout
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.isShuttingDown {
		h.mu.Unlock()
		return nil
	}
	h.isShuttingDown = true
	h.mu.Unlock()

	close(h.shutdownChan)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Later registrations depend on earlier ones (the HTTP server drains
	// before the store closes), so functions run one at a time in reverse
	// registration order. An error does not stop the remaining functions.
	var firstErr error
	for i := len(h.shutdownFuncs) - 1; i >= 0; i-- {
		errChan := make(chan error, 1)
		go func(fn func(context.Context) error) {
			errChan <- fn(ctx)
		}(h.shutdownFuncs[i])

		select {
		case err := <-errChan:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return firstErr
}

// IsShuttingDown returns true if shutdown has been initiated
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isShuttingDown
}

// ShutdownChan returns a channel that is closed when shutdown is initiated
func (h *Handler) ShutdownChan() <-chan struct{} {
	return h.shutdownChan
}

// TriggerShutdown programmatically triggers a shutdown
func (h *Handler) TriggerShutdown() {
	select {
	case h.signalChan <- syscall.SIGTERM:
	default:
	}
}

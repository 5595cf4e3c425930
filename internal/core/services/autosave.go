package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FlushFunc writes the live report if it is stale and reports whether it wrote.
type FlushFunc func(ctx context.Context) (bool, error)

// Autosaver periodically flushes the live report as a fallback to the
// event-driven saves. A tick that finds nothing stale does not write.
type Autosaver struct {
	flush  FlushFunc
	logger *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
}

// AutosaverConfig holds configuration for the autosaver.
type AutosaverConfig struct {
	Flush    FlushFunc
	Logger   *slog.Logger
	Interval time.Duration // How often to check for unsaved state (default: 30s)
}

// NewAutosaver creates a new autosaver.
func NewAutosaver(cfg AutosaverConfig) *Autosaver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Autosaver{
		flush:    cfg.Flush,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the autosave loop.
// It runs until Stop is called or context is cancelled.
func (a *Autosaver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	a.logger.Info("autosaver starting", "interval", a.interval)

	go a.run(ctx)

	return nil
}

// Stop stops the loop and waits for an in-flight flush to finish.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.mu.Unlock()

	<-a.doneCh

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.logger.Info("autosaver stopped")
}

// IsRunning reports whether the loop is active.
func (a *Autosaver) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("autosaver context cancelled")
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Autosaver) tick(ctx context.Context) {
	if a.flush == nil {
		return
	}
	wrote, err := a.flush(ctx)
	if err != nil {
		a.logger.Warn("periodic autosave failed", "error", err)
		return
	}
	if wrote {
		a.logger.Debug("periodic autosave written")
	}
}

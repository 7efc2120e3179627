package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency the readiness monitor checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessMonitor pings the backends on an interval and records whether
// the service can take traffic.
type ReadinessMonitor struct {
	checks   map[string]Pinger
	interval time.Duration
	logger   *zap.Logger

	ready     atomic.Bool
	mu        sync.Mutex
	lastErrs  map[string]string
	listeners []func(ready bool)

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
}

// NewReadinessMonitor creates a monitor over the named checks.
func NewReadinessMonitor(checks map[string]Pinger, interval time.Duration, logger *zap.Logger) *ReadinessMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ReadinessMonitor{
		checks:   checks,
		interval: interval,
		logger:   logger.Named("readiness"),
		lastErrs: map[string]string{},
		stopCh:   make(chan struct{}),
	}
}

// OnChange registers fn to run whenever readiness flips. It must be called
// before Start.
func (m *ReadinessMonitor) OnChange(fn func(ready bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start runs a first check synchronously, then checks on every tick.
func (m *ReadinessMonitor) Start() {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.ticker = time.NewTicker(m.interval)
	m.mu.Unlock()

	m.Check(context.Background())
	m.logger.Info("started", zap.Duration("interval", m.interval))

	go m.run()
}

func (m *ReadinessMonitor) run() {
	for {
		select {
		case <-m.ticker.C:
			m.Check(context.Background())
		case <-m.stopCh:
			m.logger.Info("stopped")
			return
		}
	}
}

// Check pings every dependency once and updates readiness.
func (m *ReadinessMonitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errs := map[string]string{}
	for name, p := range m.checks {
		if err := p.Ping(ctx); err != nil {
			errs[name] = err.Error()
		}
	}
	ready := len(errs) == 0

	m.mu.Lock()
	m.lastErrs = errs
	listeners := m.listeners
	m.mu.Unlock()

	if m.ready.Swap(ready) != ready {
		if ready {
			m.logger.Info("service ready")
		} else {
			m.logger.Warn("service not ready", zap.Any("failures", errs))
		}
		for _, fn := range listeners {
			fn(ready)
		}
	}
	return ready
}

// Ready reports the result of the last check.
func (m *ReadinessMonitor) Ready() bool {
	return m.ready.Load()
}

// Failures returns the errors of the last check by dependency name.
func (m *ReadinessMonitor) Failures() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.lastErrs))
	for k, v := range m.lastErrs {
		out[k] = v
	}
	return out
}

// Stop stops the monitor.
func (m *ReadinessMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.stopCh)
		m.isRunning = false
	})
}

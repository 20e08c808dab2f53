package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-async-runtime/core"
)

// RuntimeSnapshotProvider provides current runtime stats snapshots.
// *core.Runtime satisfies it through its Stats method.
type RuntimeSnapshotProvider interface {
	Stats() core.RuntimeStats
}

// SnapshotPoller periodically exports Runtime.Stats() snapshots into
// Prometheus gauges. It covers the queue-depth style metrics that are
// cheaper to sample than to push on every transition.
type SnapshotPoller struct {
	interval time.Duration

	runtimesMu sync.RWMutex
	runtimes   map[string]RuntimeSnapshotProvider

	computeQueued   *prom.GaugeVec
	blockingQueued  *prom.GaugeVec
	computeWorkers  *prom.GaugeVec
	blockingWorkers *prom.GaugeVec
	activeTimers    *prom.GaugeVec
	ioRegistrations *prom.GaugeVec
	closed          *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	computeQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "compute_queued",
		Help:      "Tasks waiting in the compute pool queues.",
	}, []string{"runtime"})
	blockingQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "blocking_queued",
		Help:      "Jobs waiting in the blocking pool queues.",
	}, []string{"runtime"})
	computeWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "compute_workers",
		Help:      "Compute pool worker count.",
	}, []string{"runtime"})
	blockingWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "blocking_workers",
		Help:      "Blocking pool worker count.",
	}, []string{"runtime"})
	activeTimers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "active_timers",
		Help:      "Live timers registered with the reactor.",
	}, []string{"runtime"})
	ioRegistrations := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "io_registrations",
		Help:      "Live I/O sources registered with the reactor.",
	}, []string{"runtime"})
	closed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "runtime",
		Name:      "closed",
		Help:      "Runtime closed state (1=closed, 0=running).",
	}, []string{"runtime"})

	var err error
	if computeQueued, err = registerCollector(reg, computeQueued); err != nil {
		return nil, err
	}
	if blockingQueued, err = registerCollector(reg, blockingQueued); err != nil {
		return nil, err
	}
	if computeWorkers, err = registerCollector(reg, computeWorkers); err != nil {
		return nil, err
	}
	if blockingWorkers, err = registerCollector(reg, blockingWorkers); err != nil {
		return nil, err
	}
	if activeTimers, err = registerCollector(reg, activeTimers); err != nil {
		return nil, err
	}
	if ioRegistrations, err = registerCollector(reg, ioRegistrations); err != nil {
		return nil, err
	}
	if closed, err = registerCollector(reg, closed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		runtimes:        make(map[string]RuntimeSnapshotProvider),
		computeQueued:   computeQueued,
		blockingQueued:  blockingQueued,
		computeWorkers:  computeWorkers,
		blockingWorkers: blockingWorkers,
		activeTimers:    activeTimers,
		ioRegistrations: ioRegistrations,
		closed:          closed,
	}, nil
}

// AddRuntime adds or replaces a runtime snapshot provider by name.
func (p *SnapshotPoller) AddRuntime(name string, provider RuntimeSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runtime")
	p.runtimesMu.Lock()
	p.runtimes[name] = provider
	p.runtimesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	p.stateMu.Lock()
	done := p.done
	p.stateMu.Unlock()
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collect()
		}
	}
}

func (p *SnapshotPoller) collect() {
	p.runtimesMu.RLock()
	providers := make(map[string]RuntimeSnapshotProvider, len(p.runtimes))
	for name, provider := range p.runtimes {
		providers[name] = provider
	}
	p.runtimesMu.RUnlock()

	for name, provider := range providers {
		stats := provider.Stats()
		p.computeQueued.WithLabelValues(name).Set(float64(stats.ComputeQueued))
		p.blockingQueued.WithLabelValues(name).Set(float64(stats.BlockingQueued))
		p.computeWorkers.WithLabelValues(name).Set(float64(stats.ComputeWorkers))
		p.blockingWorkers.WithLabelValues(name).Set(float64(stats.BlockingWorkers))
		p.activeTimers.WithLabelValues(name).Set(float64(stats.ActiveTimers))
		p.ioRegistrations.WithLabelValues(name).Set(float64(stats.IoRegistrations))
		if stats.Closed {
			p.closed.WithLabelValues(name).Set(1)
		} else {
			p.closed.WithLabelValues(name).Set(0)
		}
	}
}

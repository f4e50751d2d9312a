package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/metrics"
)

// Sink receives events one at a time on the dispatcher goroutine.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

type DispatcherConfig struct {
	// Buffer is the queue length.  Defaults to 256.
	Buffer int

	// SinkTimeout bounds each Handle call.  Defaults to 5s.
	SinkTimeout time.Duration
}

// Dispatcher delivers events to every sink in emit order on a single
// goroutine.  Emit never blocks: a full queue drops the event.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	done    chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, cfg.Buffer),
		done:    make(chan struct{}),
		timeout: cfg.SinkTimeout,
		logger:  logger,
		metrics: m,
	}
	go d.loop()
	return d
}

// Emit queues ev and reports whether it was accepted.
func (d *Dispatcher) Emit(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.EventDropped()
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.metrics.EventDropped()
		d.logger.Warn("event queue full, dropping event",
			"kind", ev.Kind,
			"token_id", ev.TokenID,
		)
		return false
	}
}

// Close stops accepting events, delivers what is queued and waits.  It is
// safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for ev := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, ev)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := s.Handle(ctx, ev); err != nil {
		d.metrics.EventSinkFailed(s.Name())
		d.logger.Error("event sink failed",
			"sink", s.Name(),
			"kind", ev.Kind,
			"token_id", ev.TokenID,
			"error", err,
		)
	}
}

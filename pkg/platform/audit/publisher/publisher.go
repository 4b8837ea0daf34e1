package publisher

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "skillbadge/pkg/domain-errors"
	audit "skillbadge/pkg/platform/audit"
)

// Metrics tracks publisher queue health.
type Metrics struct {
	EventsDropped   prometheus.Counter
	PersistFailures *prometheus.CounterVec
}

// NewMetrics registers publisher metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "skillbadge_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to full buffer",
		}),
		PersistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillbadge_audit_persist_failures_total",
			Help: "Total number of audit sink failures, labeled by sink index",
		}, []string{"sink"}),
	}
}

// Publisher fans audit events out to one or more sinks. With an async buffer
// events are delivered from a background goroutine and Emit never blocks.
type Publisher struct {
	sinks   []audit.Sink
	events  chan audit.Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *Metrics
	async   bool
	once    sync.Once
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics attaches queue metrics.
func WithMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sinks []audit.Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sinks: sinks}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		p.deliver(context.Background(), event)
	}
}

// deliver writes to every sink; one failing sink does not starve the others.
func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	var firstErr error
	for i, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if p.metrics != nil {
				p.metrics.PersistFailures.WithLabelValues(strconv.Itoa(i)).Inc()
			}
			if p.logger != nil {
				p.logger.Error("failed to persist audit event",
					"error", err,
					"action", event.Action,
					"attempt_id", event.AttemptID.String(),
				)
			}
		}
	}
	return firstErr
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		p.once.Do(func() {
			close(p.events)
		})
		p.wg.Wait()
	}
}

func (p *Publisher) Emit(ctx context.Context, base audit.Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if !p.async {
		return p.deliver(ctx, base)
	}
	select {
	case p.events <- base:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.EventsDropped.Inc()
		}
		if p.logger != nil {
			p.logger.Warn("audit buffer full, event dropped",
				"action", base.Action,
				"attempt_id", base.AttemptID.String(),
			)
		}
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}

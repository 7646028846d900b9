package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"synapse-project-api/internal/config"
)

const tracerName = "synapse-project-api/events"

// DispatcherConfig sizes the queue and bounds delivery attempts.
type DispatcherConfig struct {
	Buffer         int
	Retry          RetryConfig
	PublishTimeout time.Duration
}

// DispatcherConfigFrom derives dispatcher settings from the events config.
func DispatcherConfigFrom(cfg config.EventsConfig) DispatcherConfig {
	retryCfg := DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	if cfg.RetryDelay > 0 {
		retryCfg.InitialDelay = cfg.RetryDelay
	}
	return DispatcherConfig{
		Buffer:         cfg.Buffer,
		Retry:          retryCfg,
		PublishTimeout: cfg.PublishTimeout,
	}
}

type DispatcherOption func(*Dispatcher)

func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// Dispatcher decouples event producers from the bus. Emit enqueues without
// blocking; one worker delivers events in order, retrying with backoff.
// Delivery failures are logged and counted but never reach the producer.
type Dispatcher struct {
	publisher Publisher
	cfg       DispatcherConfig
	logger    *zap.Logger
	recorder  Recorder
	tracer    trace.Tracer

	mu     sync.RWMutex
	closed bool
	queue  chan Event

	// stopCtx is cancelled when Close gives up waiting, aborting retries.
	stopCtx context.Context
	stop    context.CancelFunc
	done    chan struct{}
}

// NewDispatcher starts the delivery worker. Call Close to stop it.
func NewDispatcher(publisher Publisher, cfg DispatcherConfig, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	stopCtx, stop := context.WithCancel(context.Background())
	d := &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("events"),
		recorder:  noopRecorder{},
		tracer:    otel.Tracer(tracerName),
		queue:     make(chan Event, cfg.Buffer),
		stopCtx:   stopCtx,
		stop:      stop,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Emit queues ev for delivery and reports whether it was accepted. A full
// queue or a closed dispatcher drops the event.
func (d *Dispatcher) Emit(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.drop(ev, "queue full")
		return false
	}
}

// Close stops intake and waits for queued events to be delivered. If ctx ends
// first, pending retries are abandoned, the rest of the queue is dropped and
// ctx.Err() is returned. The publisher is left open.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		d.stop()
		return nil
	case <-ctx.Done():
		d.stop()
		<-d.done
		return ctx.Err()
	}
}

// Ping checks the underlying publisher.
func (d *Dispatcher) Ping(ctx context.Context) error {
	return d.publisher.Ping(ctx)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		if d.stopCtx.Err() != nil {
			d.drop(ev, "shutdown deadline exceeded")
			continue
		}
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, span := d.tracer.Start(d.stopCtx, "event.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.topic", ev.Topic),
			attribute.String("event.id", ev.ID.String()),
		))
	defer span.End()

	attempts := 0
	err := retry(ctx, d.cfg.Retry, func() (err error) {
		attempts++
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("publisher panic: %v", r)
			}
		}()
		pctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
		defer cancel()
		return d.publisher.Publish(pctx, ev)
	})
	span.SetAttributes(attribute.Int("event.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		d.logger.Error("Failed to publish event",
			zap.String("topic", ev.Topic),
			zap.String("event_id", ev.ID.String()),
			zap.Int("attempts", attempts),
			zap.Error(err))
		d.recorder.EventFailed(ev.Topic)
		return
	}
	d.logger.Debug("Event delivered",
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.ID.String()),
		zap.Int("attempts", attempts))
	d.recorder.EventPublished(ev.Topic)
}

func (d *Dispatcher) drop(ev Event, reason string) {
	d.logger.Warn("Dropping event",
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.ID.String()),
		zap.String("reason", reason))
	d.recorder.EventDropped(ev.Topic)
}

package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"synapse-project-api/internal/config"
)

// fakePublisher fails the first failFirst attempts, then records the event.
type fakePublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []Event
	block     chan struct{}
	panicOnce bool
}

func (p *fakePublisher) Publish(ctx context.Context, ev Event) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.panicOnce {
		p.panicOnce = false
		panic("boom")
	}
	if p.calls <= p.failFirst {
		return errors.New("bus unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *fakePublisher) Ping(context.Context) error { return nil }

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.published...)
}

type countingRecorder struct {
	published, failed, dropped atomic.Int64
}

func (r *countingRecorder) EventPublished(string) { r.published.Add(1) }
func (r *countingRecorder) EventFailed(string)    { r.failed.Add(1) }
func (r *countingRecorder) EventDropped(string)   { r.dropped.Add(1) }

func fastConfig(buffer, retries int) DispatcherConfig {
	return DispatcherConfig{
		Buffer: buffer,
		Retry: RetryConfig{
			MaxRetries:   retries,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
		PublishTimeout: time.Second,
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(16, 0), zap.NewNop(), WithRecorder(rec))

	var sent []Event
	for i := 0; i < 10; i++ {
		ev := NewEvent("project.created.v1", i)
		sent = append(sent, ev)
		require.True(t, d.Emit(ev))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, sent, pub.snapshot())
	assert.EqualValues(t, 10, rec.published.Load())
	assert.Zero(t, rec.failed.Load())
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{failFirst: 2}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(4, 3), zap.NewNop(), WithRecorder(rec))

	require.True(t, d.Emit(NewEvent("project.created.v1", "x")))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, pub.snapshot(), 1)
	assert.Equal(t, 3, pub.calls)
	assert.EqualValues(t, 1, rec.published.Load())
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{failFirst: 100}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(4, 2), zap.NewNop(), WithRecorder(rec))

	require.True(t, d.Emit(NewEvent("project.created.v1", "x")))
	require.True(t, d.Emit(NewEvent("project.created.v1", "y")))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 6, pub.calls)
	assert.EqualValues(t, 2, rec.failed.Load())
	assert.Zero(t, rec.published.Load())
}

func TestDispatcher_RecoversPublisherPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{panicOnce: true}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(4, 1), zap.NewNop(), WithRecorder(rec))

	require.True(t, d.Emit(NewEvent("project.created.v1", "x")))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, pub.snapshot(), 1)
	assert.EqualValues(t, 1, rec.published.Load())
}

func TestDispatcher_EmitNeverBlocksWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{block: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(1, 0), zap.NewNop(), WithRecorder(rec))

	accepted := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			if d.Emit(NewEvent("project.created.v1", i)) {
				accepted++
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	// worker holds at most one event and the queue one more
	assert.LessOrEqual(t, accepted, 2)
	assert.EqualValues(t, 20-accepted, rec.dropped.Load())

	close(pub.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, pub.snapshot(), accepted)
}

func TestDispatcher_EmitAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &countingRecorder{}
	d := NewDispatcher(&fakePublisher{}, fastConfig(4, 0), zap.NewNop(), WithRecorder(rec))
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Emit(NewEvent("project.created.v1", "late")))
	assert.EqualValues(t, 1, rec.dropped.Load())
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{block: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(pub, fastConfig(8, 0), zap.NewNop(), WithRecorder(rec))

	for i := 0; i < 3; i++ {
		require.True(t, d.Emit(NewEvent("project.created.v1", i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the in-flight publish fails and the two still queued are dropped
	assert.EqualValues(t, 1, rec.failed.Load())
	assert.EqualValues(t, 2, rec.dropped.Load())
	assert.Empty(t, pub.snapshot())
}

func TestDispatcher_RecordsSpan(t *testing.T) {
	defer goleak.VerifyNone(t)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	d := NewDispatcher(&fakePublisher{}, fastConfig(4, 0), zap.NewNop(), WithTracerProvider(tp))
	require.True(t, d.Emit(NewEvent("project.created.v1", "x")))
	require.NoError(t, d.Close(context.Background()))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "event.publish", spans[0].Name())
}

func TestDispatcherConfigFrom(t *testing.T) {
	cfg := DispatcherConfigFrom(config.EventsConfig{
		Buffer:         12,
		MaxRetries:     5,
		RetryDelay:     250 * time.Millisecond,
		PublishTimeout: 2 * time.Second,
	})
	assert.Equal(t, 12, cfg.Buffer)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.PublishTimeout)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, Multiplier: 2}, func() error {
		calls++
		cancel()
		return errors.New("nope")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

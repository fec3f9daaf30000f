package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mymoney/internal/amqp"
	applog "mymoney/internal/log"
)

type call struct {
	owner       int64
	year, month int
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []call
	fail  map[int64]error
}

func (g *fakeGenerator) GenerateForPeriod(_ context.Context, owner int64, year, month int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{owner, year, month})
	if err := g.fail[owner]; err != nil {
		return 0, err
	}
	return 2, nil
}

func (g *fakeGenerator) snapshot() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

type fakeConsumer struct {
	msgs    []*amqp.GenerateRequestMessage
	handled chan error
	err     error
}

func (c *fakeConsumer) ConsumeGenerateRequests(ctx context.Context, handler func(context.Context, *amqp.GenerateRequestMessage) error) error {
	for _, m := range c.msgs {
		c.handled <- handler(ctx, m)
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeExporter struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (e *fakeExporter) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
	return nil
}

func (e *fakeExporter) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}

func quietLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	return applog.New(cfg)
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
}

func TestHandleGenerateRequest(t *testing.T) {
	gen := &fakeGenerator{fail: map[int64]error{9: errors.New("store down")}}
	w := NewGenerationWorker(gen, Config{}, WithLogger(quietLogger()))

	err := w.HandleGenerateRequest(context.Background(), amqp.NewGenerateRequestMessage(1, 2024, 5))
	require.NoError(t, err)
	assert.Equal(t, []call{{1, 2024, 5}}, gen.snapshot())

	err = w.HandleGenerateRequest(context.Background(), amqp.NewGenerateRequestMessage(9, 2024, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestGenerateCurrentMonth(t *testing.T) {
	gen := &fakeGenerator{fail: map[int64]error{2: errors.New("boom")}}
	w := NewGenerationWorker(gen, Config{Owners: []int64{1, 2, 3}},
		WithLogger(quietLogger()), WithClock(fixedClock))

	created, err := w.GenerateCurrentMonth(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner 2")
	assert.Equal(t, 4, created)
	assert.Equal(t, []call{{1, 2024, 3}, {2, 2024, 3}, {3, 2024, 3}}, gen.snapshot())
}

func TestGenerateCurrentMonth_CancelledContext(t *testing.T) {
	gen := &fakeGenerator{}
	w := NewGenerationWorker(gen, Config{Owners: []int64{1}}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.GenerateCurrentMonth(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.snapshot())
}

func TestRun_ProcessesScheduleAndQueue(t *testing.T) {
	gen := &fakeGenerator{}
	consumer := &fakeConsumer{
		msgs:    []*amqp.GenerateRequestMessage{amqp.NewGenerateRequestMessage(7, 2023, 12)},
		handled: make(chan error, 1),
	}
	exporter := &fakeExporter{}
	w := NewGenerationWorker(gen, Config{Owners: []int64{1}, Interval: time.Hour},
		WithLogger(quietLogger()),
		WithClock(fixedClock),
		WithConsumer(consumer),
		WithExporter(exporter))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-consumer.handled:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generate request was not handled")
	}
	require.Eventually(t, func() bool { return len(gen.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.ElementsMatch(t, []call{{1, 2024, 3}, {7, 2023, 12}}, gen.snapshot())
	assert.True(t, exporter.started)
	assert.True(t, exporter.stopped)
}

func TestRun_ConsumerFailureStopsWorker(t *testing.T) {
	consumer := &fakeConsumer{err: errors.New("message channel closed")}
	exporter := &fakeExporter{}
	w := NewGenerationWorker(&fakeGenerator{}, Config{},
		WithLogger(quietLogger()),
		WithConsumer(consumer),
		WithExporter(exporter))

	err := w.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "message channel closed")
	assert.True(t, exporter.stopped)
}

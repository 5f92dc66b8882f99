package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearing-monitor/station/internal/metric"
)

type testWork struct {
	id    int
	block chan struct{}
	fail  bool
	panic bool
}

func process(_ context.Context, w testWork) error {
	if w.block != nil {
		<-w.block
	}
	if w.panic {
		panic("boom")
	}
	if w.fail {
		return errors.New("simulated error")
	}
	return nil
}

func TestNewPoolDefaults(t *testing.T) {
	p, err := NewPool(0, 0, process)
	require.NoError(t, err)
	assert.Equal(t, 4, p.workers)
	assert.Equal(t, 64, p.queueSize)

	assert.Panics(t, func() { _, _ = NewPool[testWork](1, 1, nil) })
}

func TestPoolLifecycle(t *testing.T) {
	var done atomic.Int64
	p, err := NewPool(2, 10, func(_ context.Context, _ testWork) error {
		done.Add(1)
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Submit(testWork{}), ErrPoolNotStarted)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(testWork{id: i}))
	}
	require.NoError(t, p.Stop(5*time.Second))

	assert.Equal(t, int64(5), done.Load())
	assert.ErrorIs(t, p.Submit(testWork{}), ErrPoolStopped)
}

func TestPoolQueueFull(t *testing.T) {
	block := make(chan struct{})
	p, err := NewPool(1, 1, process)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	// First item occupies the worker, second the only queue slot.
	require.NoError(t, p.Submit(testWork{block: block}))
	require.Eventually(t, func() bool { return p.Stats().Busy == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Submit(testWork{block: block}))
	assert.ErrorIs(t, p.Submit(testWork{block: block}), ErrQueueFull)

	close(block)
	require.NoError(t, p.Stop(5*time.Second))

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Submitted)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestPoolFailuresAndPanics(t *testing.T) {
	reg := metric.NewRegistry()
	p, err := NewPool(2, 10, process, WithMetrics[testWork](reg, "test_pool"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(testWork{fail: true}))
	require.NoError(t, p.Submit(testWork{panic: true}))
	require.NoError(t, p.Submit(testWork{}))
	require.NoError(t, p.Stop(5*time.Second))

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.failed))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.metrics.submitted))
}

func TestPanicError(t *testing.T) {
	p, err := NewPool(1, 1, process)
	require.NoError(t, err)
	err = p.safeProcess(context.Background(), testWork{panic: true})
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "boom")
}

func TestDuplicateMetricsPrefix(t *testing.T) {
	reg := metric.NewRegistry()
	_, err := NewPool(1, 1, process, WithMetrics[testWork](reg, "dup"))
	require.NoError(t, err)
	_, err = NewPool(1, 1, process, WithMetrics[testWork](reg, "dup"))
	assert.ErrorIs(t, err, metric.ErrDuplicate)
}

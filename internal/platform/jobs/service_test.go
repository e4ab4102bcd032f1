package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/platform/metrics"
)

func TestRunNowReturnsTaskResult(t *testing.T) {
	collector := metrics.New()
	svc := New(collector)
	n, err := svc.RunNow(context.Background(), Task{Name: "purge", Run: func(context.Context) (int, error) {
		return 3, nil
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(1), collector.Snapshot()["sweepsTotal"])

	_, err = svc.RunNow(context.Background(), Task{Name: "broken", Run: func(context.Context) (int, error) {
		return 0, errors.New("boom")
	}})
	assert.Error(t, err)
}

func TestScheduledTaskRuns(t *testing.T) {
	var calls atomic.Int32
	svc := New(nil)
	svc.Register(Task{Name: "tick", Interval: 5 * time.Millisecond, Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

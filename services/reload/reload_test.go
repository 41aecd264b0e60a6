package reload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsUntilCancelled(t *testing.T) {
	var calls int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Loop(ctx, 5*time.Millisecond, nil, "test", func(ctx context.Context) error {
			atomic.AddInt64(&calls, 1)
			return nil
		})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestLoopSurvivesErrors(t *testing.T) {
	var calls int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Loop(ctx, 5*time.Millisecond, nil, "test", func(ctx context.Context) error {
			atomic.AddInt64(&calls, 1)
			return errors.New("transient")
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

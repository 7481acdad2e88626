package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunLoops_StopsAllLoopsOnCancel(t *testing.T) {
	var started, exited int32
	loops := map[string]Loop{
		"a": func(ctx context.Context) {
			atomic.AddInt32(&started, 1)
			<-ctx.Done()
			atomic.AddInt32(&exited, 1)
		},
		"b": func(ctx context.Context) {
			atomic.AddInt32(&started, 1)
			<-ctx.Done()
			atomic.AddInt32(&exited, 1)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	runLoops(ctx, loops, time.Second)

	assert.EqualValues(t, 2, atomic.LoadInt32(&started))
	assert.EqualValues(t, 2, atomic.LoadInt32(&exited))
}

func TestRunLoops_ReturnsAfterGraceEvenIfLoopHangs(t *testing.T) {
	loops := map[string]Loop{
		"stuck": func(ctx context.Context) {
			<-ctx.Done()
			time.Sleep(time.Hour)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		runLoops(ctx, loops, 20*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runLoops did not return within the grace-plus-margin window")
	}
}

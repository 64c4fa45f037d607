package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"decrease", Decrease, false},
		{"left", Decrease, false},
		{"increase", Increase, false},
		{"right", Increase, false},
		{"up", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetController_HoldIncrease(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)
	defer o.Close()

	o.Hold(Increase)
	require.Eventually(t, func() bool { return o.Offset() >= 15 }, time.Second, time.Millisecond)
	o.Release()

	assert.False(t, o.Holding())
	stopped := o.Offset()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, o.Offset(), "no steps after release")
	assert.Zero(t, int(stopped)%5, "offset moves in whole steps")
}

func TestOffsetController_HoldDecrease(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)
	defer o.Close()

	o.Hold(Decrease)
	require.Eventually(t, func() bool { return o.Offset() <= -10 }, time.Second, time.Millisecond)
	o.Release()
}

func TestOffsetController_DecreaseWinsWhenBothHeld(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)
	defer o.Close()

	o.Hold(Increase)
	o.Hold(Decrease)
	require.Eventually(t, func() bool { return o.Offset() <= -10 }, time.Second, time.Millisecond)
	o.Release()
}

func TestOffsetController_SingleTimer(t *testing.T) {
	o := NewOffsetController(context.Background(), 1, 5*time.Millisecond)
	defer o.Close()

	o.Hold(Increase)
	first := o.task
	o.Hold(Increase)
	o.Hold(Decrease)

	assert.Same(t, first, o.task)
	o.Release()
}

func TestOffsetController_Recenter(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)
	defer o.Close()

	o.Hold(Increase)
	require.Eventually(t, func() bool { return o.Offset() >= 10 }, time.Second, time.Millisecond)
	o.Release()

	o.Recenter()
	assert.Zero(t, o.Offset())
}

func TestOffsetController_CloseCancelsTimer(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)

	o.Hold(Increase)
	o.Close()
	assert.False(t, o.Holding())

	o.Hold(Increase)
	assert.False(t, o.Holding(), "hold after close is ignored")
}

func TestOffsetController_ContextCancelStopsTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOffsetController(ctx, 5, time.Millisecond)

	o.Hold(Increase)
	cancel()

	require.Eventually(t, func() bool { return !o.Holding() }, time.Second, time.Millisecond)
}

func isDone(task interface{ Done() <-chan struct{} }) bool {
	select {
	case <-task.Done():
		return true
	default:
		return false
	}
}

func TestOffsetController_ReleaseWaitsForTimerExit(t *testing.T) {
	o := NewOffsetController(context.Background(), 1, time.Millisecond)
	defer o.Close()

	for range 20 {
		o.Hold(Increase)
		first := o.task
		require.NotNil(t, first)

		o.Release()
		assert.True(t, isDone(first), "released timer still running")

		o.Hold(Decrease)
		assert.NotSame(t, first, o.task)
		o.Release()
	}
}

func TestOffsetController_NoStepAfterRelease(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)
	defer o.Close()

	o.Hold(Increase)
	require.Eventually(t, func() bool { return o.Offset() >= 5 }, time.Second, time.Millisecond)
	o.Release()

	settled := o.Offset()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, settled, o.Offset())
}

func TestOffsetController_CloseWaitsForTimerExit(t *testing.T) {
	o := NewOffsetController(context.Background(), 5, time.Millisecond)

	o.Hold(Increase)
	task := o.task
	o.Close()

	assert.True(t, isDone(task))
}

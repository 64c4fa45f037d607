package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/internal/schedule"
)

// Direction is a press-and-hold intent.
type Direction int

const (
	Decrease Direction = iota
	Increase
)

// ParseDirection accepts "decrease"/"left" and "increase"/"right".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "decrease", "left":
		return Decrease, nil
	case "increase", "right":
		return Increase, nil
	}
	return 0, fmt.Errorf("unknown direction: %q", s)
}

func (d Direction) String() string {
	if d == Increase {
		return "increase"
	}
	return "decrease"
}

// OffsetController accumulates a manual bearing offset while an intent is held.
// At most one stepping timer is live at a time. Decrease wins if both intents are held.
type OffsetController struct {
	step     float64
	interval time.Duration

	mu       sync.Mutex
	ctx      context.Context
	offset   float64
	decrease bool
	increase bool
	task     *schedule.Task
	stopping *schedule.Task
	closed   bool
}

// NewOffsetController creates a stepper bound to ctx. Cancelling ctx has the same effect as Close.
func NewOffsetController(ctx context.Context, step float64, interval time.Duration) *OffsetController {
	return &OffsetController{
		ctx:      ctx,
		step:     step,
		interval: interval,
	}
}

// Offset returns the current offset in degrees.
func (o *OffsetController) Offset() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offset
}

// Hold sets an intent and starts stepping if no timer is live. A timer
// cancelled by Release must exit before its replacement is armed.
func (o *OffsetController) Hold(d Direction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if d == Increase {
		o.increase = true
	} else {
		o.decrease = true
	}
	if o.task != nil && o.task.Running() {
		return
	}
	o.task = nil

	if prev := o.stopping; prev != nil {
		o.mu.Unlock()
		<-prev.Done()
		o.mu.Lock()
		if o.stopping == prev {
			o.stopping = nil
		}
		// Another caller may have armed, released or closed meanwhile.
		if o.closed || o.task != nil || !(o.decrease || o.increase) {
			return
		}
	}
	o.task = schedule.Every(o.ctx, o.interval, o.tick)
}

// tick is a no-op once its task has been cancelled.
func (o *OffsetController) tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	switch {
	case o.decrease:
		o.offset -= o.step
	case o.increase:
		o.offset += o.step
	}
}

// Release clears both intents, cancels the timer and waits for it to exit.
func (o *OffsetController) Release() {
	o.mu.Lock()
	o.decrease, o.increase = false, false
	prev := o.stopLocked()
	o.mu.Unlock()
	wait(prev)
}

// Recenter sets the offset back to zero. Held intents keep stepping from there.
func (o *OffsetController) Recenter() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offset = 0
}

// Holding reports whether a stepping timer is live.
func (o *OffsetController) Holding() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.task != nil && o.task.Running()
}

// Close cancels any live timer and waits for it. Further Hold calls are ignored.
func (o *OffsetController) Close() {
	o.mu.Lock()
	o.closed = true
	o.decrease, o.increase = false, false
	prev := o.stopLocked()
	o.mu.Unlock()
	wait(prev)
}

// stopLocked cancels the live task and returns the task still winding down.
func (o *OffsetController) stopLocked() *schedule.Task {
	if o.task != nil {
		o.task.Stop()
		o.stopping = o.task
		o.task = nil
	}
	return o.stopping
}

func wait(t *schedule.Task) {
	if t != nil {
		<-t.Done()
	}
}

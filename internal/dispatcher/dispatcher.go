// Package dispatcher routes UI events from the map to the view that owns them.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// Queued is the result of a dispatch accepted by an asynchronous handler.
const Queued = "queued"

var (
	// ErrQueueFull is returned when a non-blocking buffered handler has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is one UI event from the map, keyed by its message type.
type Event struct {
	Command   string
	Payload   json.RawMessage
	Timestamp time.Time
}

// FromEnvelope turns an inbound map message into an Event stamped with the current time.
func FromEnvelope(env streaming.Envelope) Event {
	return Event{Command: env.Type, Payload: env.Payload, Timestamp: time.Now()}
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*routeOptions)

type routeOptions struct {
	buffer   int
	blocking bool
	latest   bool
	logged   bool
}

// Buffered runs the handler on its own goroutine behind a queue of size.
// Dispatch returns Queued, or ErrQueueFull when the queue has no room.
func Buffered(size int) Option {
	return func(o *routeOptions) { o.buffer = size }
}

// Blocking makes a buffered handler wait for room instead of dropping.
func Blocking() Option {
	return func(o *routeOptions) { o.blocking = true }
}

// Latest runs the handler asynchronously and keeps only the newest pending
// event, so a burst collapses to its final value.
func Latest() Option {
	return func(o *routeOptions) { o.latest = true }
}

// Logged logs each event and its outcome.
func Logged() Option {
	return func(o *routeOptions) { o.logged = true }
}

type route struct {
	command string
	attr    metric.MeasurementOption
	handle  HandlerFunc
	queue   chan Event // nil when the handler runs on the caller's goroutine
	opts    routeOptions
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup

	pending  metric.Int64ObservableGauge
	handled  metric.Int64Counter
	failed   metric.Int64Counter
	dropped  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[string]*route),
	}

	m := meter()
	var err error

	if d.pending, err = m.Int64ObservableGauge("ui.events.pending",
		metric.WithDescription("Events waiting in a handler queue")); err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}
	if _, err = m.RegisterCallback(d.observe, d.pending); err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}
	if d.handled, err = m.Int64Counter("ui.events.handled",
		metric.WithDescription("Events run to completion")); err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}
	if d.failed, err = m.Int64Counter("ui.events.failed",
		metric.WithDescription("Events whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter("ui.events.dropped",
		metric.WithDescription("Events rejected by a full queue or replaced before running")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if d.duration, err = m.Float64Histogram("ui.event.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

func (d *Dispatcher) observe(_ context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.routes {
		if r.queue != nil {
			o.ObserveInt64(d.pending, int64(len(r.queue)), r.attr)
		}
	}
	return nil
}

// Register adds the handler for command, replacing any earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{
		command: command,
		attr:    metric.WithAttributes(attribute.String("command", command)),
		handle:  h,
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	switch {
	case r.opts.latest:
		r.queue = make(chan Event, 1)
	case r.opts.buffer > 0:
		r.queue = make(chan Event, r.opts.buffer)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if old, ok := d.routes[command]; ok && old.queue != nil {
		close(old.queue)
	}
	d.routes[command] = r
	if r.queue != nil {
		d.workers.Add(1)
		go d.work(r)
	}
}

// Dispatch routes an event to its handler. Synchronous handlers return their
// own result; asynchronous ones return Queued.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrClosed
	}
	r, ok := d.routes[e.Command]
	if !ok {
		d.mu.RUnlock()
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if r.queue == nil {
		d.mu.RUnlock()
		return d.run(r, e)
	}
	// the read lock keeps the queue open until the send completes
	defer d.mu.RUnlock()
	return d.enqueue(r, e)
}

func (d *Dispatcher) enqueue(r *route, e Event) (any, error) {
	ctx := context.Background()
	switch {
	case r.opts.latest:
		for {
			select {
			case r.queue <- e:
				return Queued, nil
			default:
			}
			select {
			case <-r.queue:
				d.dropped.Add(ctx, 1, r.attr)
			default:
			}
		}
	case r.opts.blocking:
		r.queue <- e
		return Queued, nil
	default:
		select {
		case r.queue <- e:
			return Queued, nil
		default:
			d.dropped.Add(ctx, 1, r.attr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, r.command)
		}
	}
}

func (d *Dispatcher) work(r *route) {
	defer d.workers.Done()
	for e := range r.queue {
		_, _ = d.run(r, e)
	}
}

func (d *Dispatcher) run(r *route, e Event) (any, error) {
	start := time.Now()
	if r.opts.logged {
		d.logger.Debug("handling event", "command", r.command, "payloadBytes", len(e.Payload))
	}

	result, err := r.handle(e)

	took := time.Since(start)
	ctx := context.Background()
	d.duration.Record(ctx, float64(took.Microseconds())/1000, r.attr)
	if err != nil {
		d.failed.Add(ctx, 1, r.attr)
		if r.opts.logged || r.queue != nil {
			d.logger.Error("event failed", "command", r.command, "duration", took, "error", err)
		}
		return result, err
	}
	d.handled.Add(ctx, 1, r.attr)
	if r.opts.logged {
		d.logger.Debug("event complete", "command", r.command, "duration", took)
	}
	return result, nil
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Close stops accepting events and waits for queued ones to finish.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, r := range d.routes {
			if r.queue != nil {
				close(r.queue)
			}
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("DEBUG", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("INFO", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("ERROR", msg, kv) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatch_Sync(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("map_click", func(e Event) (any, error) {
		got = e
		return "veh-1", nil
	})

	res, err := d.Dispatch(Event{Command: "map_click", Payload: json.RawMessage(`{"x":1,"y":2}`)})
	require.NoError(t, err)
	assert.Equal(t, "veh-1", res)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(got.Payload))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "teleport"})
	assert.EqualError(t, err, "unknown command: teleport")
}

func TestDispatch_SyncErrorPassesThrough(t *testing.T) {
	d, logger := newTestDispatcher(t)
	boom := errors.New("boom")
	d.Register("fit_all", func(Event) (any, error) { return nil, boom })

	_, err := d.Dispatch(Event{Command: "fit_all"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, logger.count("ERROR"), "unlogged sync handlers leave reporting to the caller")
}

func TestDispatch_Buffered(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	d.Register("show_all_routes", func(Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 3; i++ {
		res, err := d.Dispatch(Event{Command: "show_all_routes"})
		require.NoError(t, err)
		assert.Equal(t, Queued, res)
	}
	wg.Wait()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatch_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("show_all_routes", func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	_, err := d.Dispatch(Event{Command: "show_all_routes"})
	require.NoError(t, err)
	<-started
	for i := 0; i < 2; i++ {
		_, err = d.Dispatch(Event{Command: "show_all_routes"})
		require.NoError(t, err)
	}

	_, err = d.Dispatch(Event{Command: "show_all_routes"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatch_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("hold", func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Event{Command: "hold"})
	<-started
	_, _ = d.Dispatch(Event{Command: "hold"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Command: "hold"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume after the queue drained")
	}
}

func TestDispatch_LatestKeepsNewest(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var seen []string
	d.Register("resize", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		mu.Lock()
		seen = append(seen, string(e.Payload))
		mu.Unlock()
		return nil, nil
	}, Latest())

	_, err := d.Dispatch(Event{Command: "resize", Payload: json.RawMessage(`1`)})
	require.NoError(t, err)
	<-started
	for _, p := range []string{`2`, `3`, `4`} {
		res, err := d.Dispatch(Event{Command: "resize", Payload: json.RawMessage(p)})
		require.NoError(t, err)
		assert.Equal(t, Queued, res)
	}
	close(block)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{`1`, `4`}, seen)
	mu.Unlock()
}

func TestDispatch_Logged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("recenter", func(Event) (any, error) { return "ok", nil }, Logged())
	d.Register("fit_all", func(Event) (any, error) { return nil, errors.New("empty") }, Logged())

	_, err := d.Dispatch(Event{Command: "recenter", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, logger.count("DEBUG"))

	_, err = d.Dispatch(Event{Command: "fit_all"})
	assert.Error(t, err)
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestDispatch_AsyncErrorsAreLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)
	d.Register("show_all_routes", func(Event) (any, error) {
		return nil, errors.New("route fetch failed")
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: "show_all_routes"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return logger.count("ERROR") == 1 }, time.Second, time.Millisecond)
}

func TestRegister_ReplacesHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("zoom", func(Event) (any, error) { return 1, nil }, Buffered(1))
	d.Register("zoom", func(Event) (any, error) { return 2, nil })

	res, err := d.Dispatch(Event{Command: "zoom"})
	require.NoError(t, err)
	assert.Equal(t, 2, res)
}

func TestHasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("release", func(Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler("release"))
	assert.False(t, d.HasHandler("press"))
}

func TestClose_DrainsQueueAndRejects(t *testing.T) {
	logger := &recordingLogger{}
	d, err := New(logger)
	require.NoError(t, err)

	var processed atomic.Int32
	d.Register("show_all_routes", func(Event) (any, error) {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(5))

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(Event{Command: "show_all_routes"})
		require.NoError(t, err)
	}
	d.Close()
	d.Close()

	assert.Equal(t, int32(3), processed.Load())
	_, err = d.Dispatch(Event{Command: "show_all_routes"})
	assert.ErrorIs(t, err, ErrClosed)

	d.Register("late", func(Event) (any, error) { return nil, nil })
	assert.False(t, d.HasHandler("late"))
}

func TestFromEnvelope(t *testing.T) {
	env := streaming.Envelope{Type: streaming.TypeZoom, Payload: json.RawMessage(`{"zoom":14}`)}

	e := FromEnvelope(env)
	assert.Equal(t, "zoom", e.Command)
	assert.JSONEq(t, `{"zoom":14}`, string(e.Payload))
	assert.False(t, e.Timestamp.IsZero())
}

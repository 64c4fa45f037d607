// Package session holds the identity of one viewer session: the overview or
// a ride-along on a single entity.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode is the view a session is showing.
type Mode string

const (
	Overview  Mode = "overview"
	RideAlong Mode = "ride"
)

// Context holds the current session. Ride-along sessions carry the followed
// entity ID; the overview leaves it empty.
type Context struct {
	mu       sync.RWMutex
	id       string
	started  time.Time
	mode     Mode
	entityID string
}

// New starts a session in the given mode.
func New(mode Mode, entityID string) *Context {
	return &Context{
		id:       uuid.NewString(),
		started:  time.Now(),
		mode:     mode,
		entityID: entityID,
	}
}

func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Context) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// EntityID returns the followed entity, empty in overview mode.
func (c *Context) EntityID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entityID
}

func (c *Context) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Uptime returns how long the session has been running.
func (c *Context) Uptime() time.Duration {
	return time.Since(c.Started())
}

// Switch moves the session to another view under a fresh ID, as when the
// ride-along ends and the UI falls back to the overview.
func (c *Context) Switch(mode Mode, entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = uuid.NewString()
	c.started = time.Now()
	c.mode = mode
	c.entityID = entityID
}

// LogAttrs returns the session attributes injected into every log record.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{
		slog.String("session", c.id),
		slog.String("mode", string(c.mode)),
	}
	if c.entityID != "" {
		attrs = append(attrs, slog.String("entity", c.entityID))
	}
	return attrs
}

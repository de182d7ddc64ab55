package sharing

import (
	"github.com/rs/zerolog"
)

// zlog is the structured logger for the sharing layer. Defaults to a no-op
// logger; installs via SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs the structured logger used by stores and clients.
func SetLogger(l zerolog.Logger) { zlog = l }

// Mode tells model serialization code what an encode episode is for.
type Mode int

const (
	// Persist encodes for durable storage. Models should emit everything
	// needed to reload later, and may drop recomputable derived state.
	Persist Mode = iota
	// Share encodes for fast cross-process transfer within one run.
	Share
)

func (m Mode) String() string {
	switch m {
	case Persist:
		return "persist"
	case Share:
		return "share"
	default:
		return "unknown"
	}
}

// Context carries the sharing state for one logical thread of control: the
// current serialization mode and the stack of currently-active stores.
// A Context is not safe for concurrent use; each logical thread owns its own.
type Context struct {
	mode   Mode
	active []ModelStore
}

// NewContext returns a fresh context in Persist mode with no active stores.
func NewContext() *Context { return &Context{} }

// EnterShare switches the context into Share mode and returns a release
// function restoring the mode seen on entry. Releases must run on every exit
// path, including errors; nesting is fine, each release undoes only its own
// entry.
func (c *Context) EnterShare() (release func()) {
	prev := c.mode
	c.mode = Share
	return func() { c.mode = prev }
}

// Sharing reports whether the context is currently in Share mode.
func (c *Context) Sharing() bool { return c.mode == Share }

// Mode returns the context's current serialization mode.
func (c *Context) Mode() Mode { return c.mode }

// ActiveStore returns the innermost active store, or nil when no store is
// entered on this context.
func (c *Context) ActiveStore() ModelStore {
	if len(c.active) == 0 {
		return nil
	}
	return c.active[len(c.active)-1]
}

func (c *Context) push(s ModelStore) { c.active = append(c.active, s) }

// pop removes the innermost active store. The popped store must be s; an
// imbalance means scopes were released out of order, which is a programming
// error, not a runtime condition.
func (c *Context) pop(s ModelStore) {
	if len(c.active) == 0 || c.active[len(c.active)-1] != s {
		panic("sharing: store activation stack out of balance")
	}
	c.active = c.active[:len(c.active)-1]
}

package directory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teranos/dirsvc/errors"
)

// Factory creates a backend client.
type Factory func(ctx context.Context) (Client, error)

// Handle owns the process's backend client and creates it on first use.
//
// Concurrent first callers block until one creation attempt finishes, so at
// most one client is ever created. A failed attempt is not remembered: the
// error goes back to the caller and the next Client call tries again.
type Handle struct {
	factory Factory

	client atomic.Pointer[clientBox]
	mu     sync.Mutex
	closed bool
}

type clientBox struct{ c Client }

// NewHandle creates a handle that builds its client with factory.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// StaticHandle wraps an existing client. Useful in tests.
func StaticHandle(c Client) *Handle {
	h := &Handle{}
	h.client.Store(&clientBox{c: c})
	return h
}

// Client returns the backend client, creating it if needed.
// Creation failures are marked with errors.ErrBackendUnavailable and keep
// the factory's message.
func (h *Handle) Client(ctx context.Context) (Client, error) {
	if box := h.client.Load(); box != nil {
		return box.c, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if box := h.client.Load(); box != nil {
		return box.c, nil
	}
	if h.closed {
		return nil, errors.Wrap(errors.ErrBackendUnavailable, "directory handle is closed")
	}
	if h.factory == nil {
		return nil, errors.Wrap(errors.ErrBackendUnavailable, "no directory backend configured")
	}

	c, err := h.factory(ctx)
	if err != nil {
		return nil, errors.Mark(errors.WithStack(err), errors.ErrBackendUnavailable)
	}
	if c == nil {
		return nil, errors.Wrap(errors.ErrBackendUnavailable, "backend factory returned no client")
	}
	h.client.Store(&clientBox{c: c})
	return c, nil
}

// Close closes the client if one was created. Later Client calls fail.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	box := h.client.Swap(nil)
	if box == nil {
		return nil
	}
	return box.c.Close()
}

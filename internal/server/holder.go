package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/example/spake/internal/ngram"
)

// ErrNoLoader is returned by Reload when the holder was built without one.
var ErrNoLoader = errors.New("server: no model loader configured")

// Loader produces a fresh model, typically by loading the project artifact
// or rebuilding it from the corpus.
type Loader func(ctx context.Context) (*ngram.Model, error)

// Holder owns the model served to requests. Readers get an immutable
// snapshot; Reload swaps in a complete new model or leaves the old one.
type Holder struct {
	cur  atomic.Pointer[ngram.Model]
	load Loader
	mu   sync.Mutex // serializes reloads
}

// NewHolder returns a holder that reloads through load. The holder starts
// empty until Reload or Set is called.
func NewHolder(load Loader) *Holder {
	return &Holder{load: load}
}

// Model returns the current model, or nil.
func (h *Holder) Model() *ngram.Model {
	return h.cur.Load()
}

// Set replaces the current model.
func (h *Holder) Set(m *ngram.Model) {
	h.cur.Store(m)
}

// Reload runs the loader and publishes its model. On error the current
// model stays in place.
func (h *Holder) Reload(ctx context.Context) (*ngram.Model, error) {
	if h.load == nil {
		return nil, ErrNoLoader
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.load(ctx)
	if err != nil {
		return nil, err
	}

	h.cur.Store(m)

	return m, nil
}

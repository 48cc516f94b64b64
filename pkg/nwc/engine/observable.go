package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// maxRequestLifetime is the hard upper bound on how long a
// RequestHandle stays observable before it force-fails with a
// timeout, independent of any context the caller passed in.
const maxRequestLifetime = 600 * time.Second

// RequestHandle is an observable, cancellable view of one in-flight
// request. Transform converts the registry's raw completion into T.
type RequestHandle[T any] struct {
	mu         sync.Mutex
	state      types.RequestState[T]
	done       chan struct{}
	cancelled  chan struct{}
	cancelOnce sync.Once
}

// newRequestHandle starts a goroutine that awaits the raw completion
// channel and applies transform, or fails the handle with a timeout
// once maxRequestLifetime elapses. A later Cancel() wins the select
// outright, so a raw arrival after cancellation is never applied.
func newRequestHandle[T any, R any](raw <-chan R, transform func(R) types.RequestState[T]) *RequestHandle[T] {
	h := &RequestHandle[T]{
		state:     types.Loading[T](),
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		select {
		case <-h.cancelled:
		case r := <-raw:
			h.set(transform(r))
		case <-time.After(maxRequestLifetime):
			h.set(types.FailureState[T](types.TimeoutFailure("request exceeded maximum lifetime")))
		}
	}()
	return h
}

// FromChannel builds a RequestHandle from a channel that will deliver
// exactly one terminal RequestState, for façade methods (describe,
// refresh) whose work isn't routed through the registry.
func FromChannel[T any](ch <-chan types.RequestState[T]) *RequestHandle[T] {
	return newRequestHandle(ch, func(s types.RequestState[T]) types.RequestState[T] { return s })
}

// set applies s unless the handle already reached a terminal state —
// guarding against the goroutine's select having already committed to
// the raw/timeout branch the instant before Cancel ran.
func (h *RequestHandle[T]) set(s types.RequestState[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.IsTerminal() {
		return
	}
	h.state = s
}

// Snapshot returns the current state without blocking.
func (h *RequestHandle[T]) Snapshot() types.RequestState[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Cancel stops the background task awaiting the raw completion channel
// — per spec.md §4.9, "cancel() cancels the background task" — and
// marks the handle failed if it hasn't already reached a terminal
// state. Closing cancelled makes the goroutine's select return
// immediately instead of potentially picking up a later arrival on
// raw; set()'s terminal guard covers the remaining race where the
// select had already committed to that arrival the instant before
// Cancel ran. The underlying registry entry, if still pending, is left
// for the caller to clean up via Registry.CancelAll.
func (h *RequestHandle[T]) Cancel() {
	h.mu.Lock()
	if !h.state.IsTerminal() {
		h.state = types.FailureState[T](types.UnknownFailure("request cancelled by caller", nil))
	}
	h.mu.Unlock()

	h.cancelOnce.Do(func() { close(h.cancelled) })
}

// AwaitResult blocks until the handle reaches a terminal state or ctx
// is done, returning (state, true) on the former and (Loading, false)
// on the latter.
func (h *RequestHandle[T]) AwaitResult(ctx context.Context) (types.RequestState[T], bool) {
	select {
	case <-h.done:
		return h.Snapshot(), true
	case <-ctx.Done():
		return types.Loading[T](), false
	}
}

// ToResult awaits completion and converts the terminal state to a Result.
func (h *RequestHandle[T]) ToResult(ctx context.Context) types.Result[T] {
	s, ok := h.AwaitResult(ctx)
	if !ok {
		return types.Err[T](types.TimeoutFailure("context cancelled while awaiting result"))
	}
	return s.ToResult()
}

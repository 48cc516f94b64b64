// Package registry tracks in-flight NWC requests and routes inbound
// responses back to their awaiters, single or batched.
package registry

import (
	"sync"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// AddOutcome is the result of adding a result into a multi-request entry.
type AddOutcome int

const (
	Partial AddOutcome = iota
	MultiCompleted
	MultiNotFound
)

// CompleteOutcome is the result of completing a single-request entry.
type CompleteOutcome int

const (
	SingleCompleted CompleteOutcome = iota
	NotFound
	AlreadyCompleted
)

type entryKind int

const (
	kindSingle entryKind = iota
	kindMulti
)

type entry struct {
	kind      entryKind
	method    string
	completed bool

	// single
	singleSignal chan types.RawResponse

	// multi
	expected map[string]bool
	results  map[string]types.RawResponse
	multiSignal chan map[string]types.RawResponse
}

// Registry is the thread-safe pending-request table described in
// spec.md §4.4. Completion signals are sent on buffered (capacity 1)
// channels so a signal send never blocks while the table mutex is held.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// RegisterSingle inserts a Single pending entry, returning its
// completion-signal channel. Registering a duplicate id is a caller
// bug; it panics the same way a duplicate-key insert into an
// exclusively-owned table should.
func (r *Registry) RegisterSingle(id, method string) <-chan types.RawResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		panic("registry: duplicate pending request id " + id)
	}
	ch := make(chan types.RawResponse, 1)
	r.entries[id] = &entry{kind: kindSingle, method: method, singleSignal: ch}
	return ch
}

// RegisterMulti inserts a Multi pending entry keyed by the expected
// sub-item ids, returning its completion-signal channel.
func (r *Registry) RegisterMulti(id, method string, expectedKeys []string) <-chan map[string]types.RawResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		panic("registry: duplicate pending request id " + id)
	}
	expected := make(map[string]bool, len(expectedKeys))
	for _, k := range expectedKeys {
		expected[k] = true
	}
	ch := make(chan map[string]types.RawResponse, 1)
	r.entries[id] = &entry{
		kind:        kindMulti,
		method:      method,
		expected:    expected,
		results:     make(map[string]types.RawResponse, len(expectedKeys)),
		multiSignal: ch,
	}
	return ch
}

// CompleteSingle signals the Single awaiter for id, if present and not
// already completed, and removes the entry.
func (r *Registry) CompleteSingle(id string, resp types.RawResponse) CompleteOutcome {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.kind != kindSingle {
		r.mu.Unlock()
		return NotFound
	}
	if e.completed {
		r.mu.Unlock()
		return AlreadyCompleted
	}
	e.completed = true
	delete(r.entries, id)
	r.mu.Unlock()

	e.singleSignal <- resp
	return SingleCompleted
}

// AddMulti inserts one sub-item's response into a Multi entry. Only
// the first arrival for a given key is accepted. When every expected
// key has arrived, the entry completes and is removed.
func (r *Registry) AddMulti(id, key string, resp types.RawResponse) AddOutcome {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.kind != kindMulti {
		r.mu.Unlock()
		return MultiNotFound
	}
	if _, already := e.results[key]; already {
		r.mu.Unlock()
		return Partial
	}
	e.results[key] = resp

	if !allPresent(e.expected, e.results) {
		r.mu.Unlock()
		return Partial
	}

	snapshot := make(map[string]types.RawResponse, len(e.results))
	for k, v := range e.results {
		snapshot[k] = v
	}
	delete(r.entries, id)
	r.mu.Unlock()

	e.multiSignal <- snapshot
	return MultiCompleted
}

func allPresent(expected map[string]bool, results map[string]types.RawResponse) bool {
	for k := range expected {
		if _, ok := results[k]; !ok {
			return false
		}
	}
	return true
}

// CompleteWithError fans an error out to whichever awaiter is pending
// for id: a Single entry gets a synthetic RawResponse carrying the
// error; a Multi entry gets every still-missing expected key filled
// with that same error.
func (r *Registry) CompleteWithError(id string, nerr types.NwcError) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	r.mu.Unlock()

	switch e.kind {
	case kindSingle:
		if !e.completed {
			e.singleSignal <- types.RawResponse{ResultType: e.method, Error: &nerr}
		}
	case kindMulti:
		for k := range e.expected {
			if _, ok := e.results[k]; !ok {
				e.results[k] = types.RawResponse{ResultType: e.method, Error: &nerr}
			}
		}
		e.multiSignal <- e.results
	}
}

// ResolveRequestID disambiguates a response lacking an `#e` tag: if
// exactly one request is pending, that's the match; else if exactly
// one pending request's method matches resultType, that's the match;
// otherwise resolution fails.
func (r *Registry) ResolveRequestID(resultType string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 1 {
		for id := range r.entries {
			return id, true
		}
	}

	matchID, matches := "", 0
	for id, e := range r.entries {
		if e.method == resultType {
			matchID = id
			matches++
		}
	}
	if matches == 1 {
		return matchID, true
	}
	return "", false
}

// CancelAll signals cancellation to every awaiter (via a synthetic
// error response with code CLIENT_CLOSED) and empties the table.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	cancelErr := types.NwcError{Code: "CLIENT_CLOSED", Message: "client closed while request was pending"}
	for _, e := range entries {
		switch e.kind {
		case kindSingle:
			if !e.completed {
				e.singleSignal <- types.RawResponse{ResultType: e.method, Error: &cancelErr}
			}
		case kindMulti:
			for k := range e.expected {
				if _, ok := e.results[k]; !ok {
					e.results[k] = types.RawResponse{ResultType: e.method, Error: &cancelErr}
				}
			}
			e.multiSignal <- e.results
		}
	}
}

// Len reports the number of pending entries — used by tests asserting
// the registry empties out after a request completes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Package sessionfake provides a hand-rolled in-memory session.Provider
// and session.Handle for tests, so the engine and client façade can be
// exercised without a live relay or network I/O.
package sessionfake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
)

// Provider hands out a single fixed Handle, or fails Connect with Err.
type Provider struct {
	Handle *Handle
	Err    error
}

// Connect implements session.Provider.
func (p *Provider) Connect(ctx context.Context, relays []string, clientSecretHex string) (session.Handle, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Handle, nil
}

// Handle is an in-memory stand-in for a live relay connection. Every
// Sign call is recorded and every injected inbound event is delivered
// synchronously (Send records nothing), so tests never race against real network
// timing. Its RuntimeHandles are backed by named RelayHandles the test
// configures up front via NewHandle, so each relay can be made to
// succeed or fail its shared subscription/publish independently.
type Handle struct {
	mu sync.Mutex

	clientPubkey string

	infoEvent session.InboundEvent
	infoFound bool
	infoErr   error

	signErr error
	sendErr error

	sent   []session.SignedEvent
	nextID int64

	relays  []*RelayHandle
	sub     *subscription
	closed  bool
	snapsCh chan []session.RelaySnapshot
}

// NewHandle constructs a fake handle with one RelayHandle per url in
// relayURLs, each starting out connected and subscribable.
func NewHandle(clientPubkey string, relayURLs ...string) *Handle {
	h := &Handle{
		clientPubkey: clientPubkey,
		snapsCh:      make(chan []session.RelaySnapshot, 1),
	}
	for _, url := range relayURLs {
		h.relays = append(h.relays, newRelayHandle(url))
	}
	return h
}

// Relay returns the named RelayHandle, for tests that want to arrange
// its subscribe/publish/query behavior before exercising the machine.
func (h *Handle) Relay(url string) *RelayHandle {
	for _, rh := range h.relays {
		if rh.url == url {
			return rh
		}
	}
	return nil
}

// SetInfo configures the event FetchInfo returns.
func (h *Handle) SetInfo(ev session.InboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.infoEvent = ev
	h.infoFound = true
}

// SetInfoErr makes FetchInfo fail.
func (h *Handle) SetInfoErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.infoErr = err
}

// SetSignErr makes every subsequent Sign fail.
func (h *Handle) SetSignErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signErr = err
}

// SetSendErr makes every subsequent Send fail.
func (h *Handle) SetSendErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
}

// Sent returns every event signed so far, in order.
func (h *Handle) Sent() []session.SignedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]session.SignedEvent, len(h.sent))
	copy(out, h.sent)
	return out
}

// Deliver pushes ev into every configured relay's shared subscription
// — the path the init machine's drain loop actually reads from — plus
// the merged Subscribe() feed, if one is open. It blocks if a
// subscriber's channel is full, matching a real relay feed.
func (h *Handle) Deliver(ev session.InboundEvent) {
	h.mu.Lock()
	sub := h.sub
	relays := h.relays
	h.mu.Unlock()
	if sub != nil {
		sub.ch <- ev
	}
	for _, rh := range relays {
		rh.Deliver(ev)
	}
}

// DeliverVia pushes ev into the named relay's shared subscription, the
// path the init machine's drain loop actually reads from.
func (h *Handle) DeliverVia(url string, ev session.InboundEvent) {
	if rh := h.Relay(url); rh != nil {
		rh.Deliver(ev)
	}
}

// Sign implements session.Handle.
func (h *Handle) Sign(ev session.OutboundEvent) (session.SignedEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signErr != nil {
		return session.SignedEvent{}, h.signErr
	}
	id := fmt.Sprintf("fake-evt-%d", atomic.AddInt64(&h.nextID, 1))
	se := session.SignedEvent{ID: id}
	h.sent = append(h.sent, se)
	return se, nil
}

// ClientPubkey implements session.Handle.
func (h *Handle) ClientPubkey() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientPubkey
}

// Send implements session.Handle.
func (h *Handle) Send(ctx context.Context, se session.SignedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sendErr
}

// Subscribe implements session.Handle. Only one subscription is live at
// a time; a second call replaces the first.
func (h *Handle) Subscribe(ctx context.Context, filter session.Filter) (session.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &subscription{ch: make(chan session.InboundEvent, 16), handle: h}
	h.sub = sub
	return sub, nil
}

// FetchInfo implements session.Handle.
func (h *Handle) FetchInfo(ctx context.Context, walletPubkey string) (session.InboundEvent, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.infoErr != nil {
		return session.InboundEvent{}, false, h.infoErr
	}
	return h.infoEvent, h.infoFound, nil
}

// RuntimeHandles implements session.Handle.
func (h *Handle) RuntimeHandles() []session.RelayHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]session.RelayHandle, len(h.relays))
	for i, rh := range h.relays {
		out[i] = rh
	}
	return out
}

// Snapshots implements session.Handle. PushSnapshot is what tests use
// to make it emit.
func (h *Handle) Snapshots() <-chan []session.RelaySnapshot {
	return h.snapsCh
}

// PushSnapshot delivers a connection-state batch to Snapshots' reader.
func (h *Handle) PushSnapshot(snaps []session.RelaySnapshot) {
	h.snapsCh <- snaps
}

// Close implements session.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type subscription struct {
	ch     chan session.InboundEvent
	handle *Handle
}

func (s *subscription) Events() <-chan session.InboundEvent { return s.ch }

func (s *subscription) Close() {
	s.handle.mu.Lock()
	defer s.handle.mu.Unlock()
	if s.handle.sub == s {
		s.handle.sub = nil
	}
}

// RelayHandle is an in-memory stand-in for one relay's session.RelayHandle.
// Tests configure its subscribe/publish/query outcomes before the
// machine touches it.
type RelayHandle struct {
	mu sync.Mutex

	url   string
	state session.RelayState

	subscribeFail bool
	publishErr    error
	queryOutcome  session.QueryOutcome

	sub *relaySub
}

func newRelayHandle(url string) *RelayHandle {
	return &RelayHandle{url: url, state: session.RelayConnected}
}

// SetSubscribeFail makes CreateSharedSubscription report failure.
func (rh *RelayHandle) SetSubscribeFail(fail bool) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.subscribeFail = fail
}

// SetPublishErr makes PublishTo fail with err (nil clears it).
func (rh *RelayHandle) SetPublishErr(err error) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.publishErr = err
}

// SetState overrides the relay's reported connection state.
func (rh *RelayHandle) SetState(s session.RelayState) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.state = s
}

// Deliver pushes ev to this relay's currently open shared subscription,
// if any.
func (rh *RelayHandle) Deliver(ev session.InboundEvent) {
	rh.mu.Lock()
	sub := rh.sub
	rh.mu.Unlock()
	if sub == nil {
		return
	}
	sub.ch <- ev
}

// URL implements session.RelayHandle.
func (rh *RelayHandle) URL() string { return rh.url }

// Snapshot implements session.RelayHandle.
func (rh *RelayHandle) Snapshot() session.RelaySnapshot {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return session.RelaySnapshot{URL: rh.url, State: rh.state}
}

// CreateSharedSubscription implements session.RelayHandle.
func (rh *RelayHandle) CreateSharedSubscription(ctx context.Context, filter session.Filter, timeout time.Duration) (session.Subscription, bool) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	if rh.subscribeFail {
		return nil, false
	}
	sub := &relaySub{ch: make(chan session.InboundEvent, 16), owner: rh}
	rh.sub = sub
	return sub, true
}

// PublishTo implements session.RelayHandle.
func (rh *RelayHandle) PublishTo(ctx context.Context, se session.SignedEvent) error {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.publishErr
}

// SetQueryOutcome configures what Query returns.
func (rh *RelayHandle) SetQueryOutcome(o session.QueryOutcome) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.queryOutcome = o
}

// Query implements session.RelayHandle.
func (rh *RelayHandle) Query(ctx context.Context, filter session.Filter, timeout time.Duration) session.QueryOutcome {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.queryOutcome
}

type relaySub struct {
	ch    chan session.InboundEvent
	owner *RelayHandle
}

func (s *relaySub) Events() <-chan session.InboundEvent { return s.ch }

func (s *relaySub) Close() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.sub == s {
		s.owner.sub = nil
	}
}

// Package engine implements the parts of the NWC client that sit
// between the wire codec and the public façade: initialization,
// request dispatch, and notification routing.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/codec"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/crypto"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// InitKind discriminates InitSnapshot.
type InitKind int

const (
	NotStarted InitKind = iota
	Initializing
	Ready
	PartialReady
	Failed
)

// InitSnapshot is a point-in-time view of initialization progress.
type InitSnapshot struct {
	Kind       InitKind
	Descriptor types.WalletDescriptor
	Failure    types.Failure
	Ready      []session.RelayHandle // relays with a live response subscription
	Pending    []session.RelayHandle // relays Recovery is still retrying
}

const (
	perRelaySubscribeTimeout = 5 * time.Second
	recoveryInterval         = 3 * time.Second
)

// responseFilter is the subscription every ready relay holds open for
// the lifetime of the client: responses and notifications authored by
// the wallet, per spec.md §4.5's filter table. Neither kind is filtered
// on the `p` tag, so notifications that omit it are still received; the
// router itself checks the tag on every event.
func responseFilter(creds types.Credentials) session.Filter {
	return session.Filter{
		Kinds:   []int{23195, 23197},
		Authors: []string{creds.WalletPubkey},
	}
}

// readyRelay pairs a RelayHandle with the subscription Recovery/attempt
// opened on it, so the drain loop can read responses off it and Close
// can tear it down.
type readyRelay struct {
	handle session.RelayHandle
	sub    session.Subscription
}

// InitMachine drives the connect -> fetch-info -> subscribe-per-relay
// sequence once, then keeps retrying quietly in the background if any
// relay failed to come up, per spec §4.6.
type InitMachine struct {
	provider session.Provider
	creds    types.Credentials

	mu       sync.Mutex
	snapshot atomic.Pointer[InitSnapshot]
	changed  chan struct{}

	handle       session.Handle
	conv         *crypto.Conversation
	clientPubkey string

	ready     map[string]*readyRelay
	readyMu   sync.Mutex

	dispatch func(session.InboundEvent)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewInitMachine constructs a machine in NotStarted state. dispatch
// receives every event read off a per-relay response subscription; the
// client wires it to the Router.
func NewInitMachine(provider session.Provider, creds types.Credentials, dispatch func(session.InboundEvent)) *InitMachine {
	m := &InitMachine{
		provider: provider,
		creds:    creds,
		changed:  make(chan struct{}),
		stop:     make(chan struct{}),
		ready:    make(map[string]*readyRelay),
		dispatch: dispatch,
	}
	m.store(InitSnapshot{Kind: NotStarted})
	return m
}

// Snapshot returns the current state without blocking.
func (m *InitMachine) Snapshot() InitSnapshot {
	return *m.snapshot.Load()
}

// Handle returns the live session handle, valid once Snapshot is Ready
// or PartialReady.
func (m *InitMachine) Handle() session.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Conversation returns the encryption context, valid once Ready or
// PartialReady.
func (m *InitMachine) Conversation() *crypto.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv
}

// WalletPubkey is the credentials' wallet pubkey, used by the router
// to enforce spec.md §4.8's authenticity check.
func (m *InitMachine) WalletPubkey() string { return m.creds.WalletPubkey }

// ClientPubkey is this client's own pubkey, derived from the session
// handle once connected; empty before that.
func (m *InitMachine) ClientPubkey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientPubkey
}

// Start kicks off initialization in the background. Safe to call once;
// NewClient calls it immediately so construction never blocks.
func (m *InitMachine) Start(ctx context.Context) {
	m.store(InitSnapshot{Kind: Initializing})
	go m.run(ctx)
}

func (m *InitMachine) run(ctx context.Context) {
	for {
		ok := m.attempt(ctx)
		if ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-time.After(recoveryInterval):
		}
	}
}

// attempt implements spec.md §4.6 steps 2-5: open the session, create a
// shared subscription per relay with a 5s timeout, partition relays
// into R (subscribed) and F (failed/timed out), and land on
// Ready/PartialReady/Failed accordingly. On both PartialReady and
// Failed it hands the relays still in F to Recovery, which keeps
// retrying them until pending is empty.
func (m *InitMachine) attempt(ctx context.Context) bool {
	conv, err := crypto.NewConversation(m.creds.ClientSecret, m.creds.WalletPubkey)
	if err != nil {
		m.fail(types.UnknownFailure("failed to derive encryption context", err))
		return false
	}

	handle, err := m.provider.Connect(ctx, m.creds.Relays, m.creds.ClientSecret)
	if err != nil {
		m.fail(session.SignerError("failed to connect to relays", err))
		return false
	}

	m.mu.Lock()
	m.handle, m.conv, m.clientPubkey = handle, conv, handle.ClientPubkey()
	m.mu.Unlock()

	descriptor := m.negotiateDescriptor(ctx, handle)

	filter := responseFilter(m.creds)
	pending := handle.RuntimeHandles()
	var readyHandles []session.RelayHandle
	for _, rh := range pending {
		if m.subscribeRelay(ctx, rh, filter) {
			readyHandles = append(readyHandles, rh)
		}
	}
	failedHandles := subtractHandles(pending, readyHandles)

	return m.settle(descriptor, readyHandles, failedHandles, filter)
}

// negotiateDescriptor fetches the info event and picks an encryption
// scheme. A negotiation failure is never fatal to initialization — per
// §4.6 the state machine only partitions on relay connectivity. When
// no info event is found or it names no usable scheme, the descriptor
// falls back to crypto.Preference[0] and requests are encrypted with
// that scheme; no EncryptionUnsupported failure is reported for it.
func (m *InitMachine) negotiateDescriptor(ctx context.Context, handle session.Handle) types.WalletDescriptor {
	descriptor := types.WalletDescriptor{URI: m.creds.URI()}

	infoCtx, cancel := context.WithTimeout(ctx, perRelaySubscribeTimeout)
	ev, found, err := handle.FetchInfo(infoCtx, m.creds.WalletPubkey)
	cancel()
	if err != nil || !found {
		descriptor.ActiveEncryption = crypto.Preference[0]
		return descriptor
	}

	meta := decodeInfo(ev)
	descriptor.Metadata = meta
	scheme, negErr := (crypto.Negotiator{}).Select(meta)
	if negErr != nil {
		descriptor.ActiveEncryption = crypto.Preference[0]
		return descriptor
	}
	descriptor.ActiveEncryption = scheme
	return descriptor
}

// subscribeRelay tries to bring one relay into the R set: subscribe to
// it, and if that succeeds, start draining it into dispatch.
func (m *InitMachine) subscribeRelay(ctx context.Context, rh session.RelayHandle, filter session.Filter) bool {
	sub, ok := rh.CreateSharedSubscription(ctx, filter, perRelaySubscribeTimeout)
	if !ok {
		return false
	}
	m.readyMu.Lock()
	m.ready[rh.URL()] = &readyRelay{handle: rh, sub: sub}
	m.readyMu.Unlock()
	go m.drain(sub)
	return true
}

func (m *InitMachine) drain(sub session.Subscription) {
	for ev := range sub.Events() {
		if m.dispatch != nil {
			m.dispatch(ev)
		}
	}
}

// settle applies §4.6 step 5 and, when some relay is still pending,
// launches Recovery for it. It returns true in every case: once the
// session is open, Recovery rather than run retries the relays in F.
func (m *InitMachine) settle(descriptor types.WalletDescriptor, ready, failed []session.RelayHandle, filter session.Filter) bool {
	switch {
	case len(ready) > 0 && len(failed) == 0:
		m.store(InitSnapshot{Kind: Ready, Descriptor: descriptor, Ready: ready})
		return true
	case len(ready) > 0:
		m.store(InitSnapshot{Kind: PartialReady, Descriptor: descriptor, Ready: ready, Pending: failed})
		go m.recover(failed, descriptor, filter)
		return true
	default:
		m.store(InitSnapshot{Kind: Failed, Failure: types.NetworkFailure("no relay subscription came up"), Pending: failed})
		go m.recover(failed, descriptor, filter)
		return true
	}
}

// recover implements §4.6's Recovery loop: at ≥3s intervals, retry
// every still-pending relay's shared subscription; any success
// promotes it to ready, and once pending is empty the machine
// transitions to Ready.
func (m *InitMachine) recover(pending []session.RelayHandle, descriptor types.WalletDescriptor, filter session.Filter) {
	remaining := append([]session.RelayHandle(nil), pending...)
	for {
		select {
		case <-m.stop:
			return
		case <-time.After(recoveryInterval):
		}

		var stillPending []session.RelayHandle
		for _, rh := range remaining {
			if m.subscribeRelay(context.Background(), rh, filter) {
				continue
			}
			stillPending = append(stillPending, rh)
		}
		remaining = stillPending

		m.readyMu.Lock()
		ready := make([]session.RelayHandle, 0, len(m.ready))
		for _, rr := range m.ready {
			ready = append(ready, rr.handle)
		}
		m.readyMu.Unlock()

		if len(remaining) == 0 {
			m.store(InitSnapshot{Kind: Ready, Descriptor: descriptor, Ready: ready})
			return
		}
		m.store(InitSnapshot{Kind: PartialReady, Descriptor: descriptor, Ready: ready, Pending: remaining})
	}
}

func subtractHandles(all, keep []session.RelayHandle) []session.RelayHandle {
	keepSet := make(map[string]bool, len(keep))
	for _, rh := range keep {
		keepSet[rh.URL()] = true
	}
	out := make([]session.RelayHandle, 0, len(all)-len(keep))
	for _, rh := range all {
		if !keepSet[rh.URL()] {
			out = append(out, rh)
		}
	}
	return out
}

func (m *InitMachine) fail(f types.Failure) {
	m.store(InitSnapshot{Kind: Failed, Failure: f})
}

func (m *InitMachine) store(s InitSnapshot) {
	m.snapshot.Store(&s)
	m.mu.Lock()
	old := m.changed
	m.changed = make(chan struct{})
	m.mu.Unlock()
	close(old)
}

func (m *InitMachine) changeSignal() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// AwaitReady blocks until the machine reaches Ready, PartialReady, or
// Failed, or ctx is done.
func (m *InitMachine) AwaitReady(ctx context.Context) InitSnapshot {
	for {
		s := m.Snapshot()
		if s.Kind == Ready || s.Kind == PartialReady || s.Kind == Failed {
			return s
		}
		select {
		case <-ctx.Done():
			return m.Snapshot()
		case <-m.changeSignal():
		}
	}
}

// Close stops the recovery loop and closes the live session handle.
func (m *InitMachine) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.readyMu.Lock()
	for _, rr := range m.ready {
		rr.sub.Close()
	}
	m.readyMu.Unlock()
	if h := m.Handle(); h != nil {
		return h.Close()
	}
	return nil
}

func decodeInfo(ev session.InboundEvent) types.WalletMetadata {
	tags := make([]codec.NostrTag, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tags = append(tags, codec.NostrTag(t))
	}
	return codec.DecodeInfoEvent(ev.Content, tags)
}

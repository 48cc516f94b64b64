package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
)

// PoolProvider builds relay Handles. It shares one go-nostr SimplePool
// for the merged Send/Subscribe/FetchInfo surface (the way the
// teacher's bunker client shares one pool across reconnects), and
// separately tracks one low-level *nostr.Relay connection per URL for
// the per-relay RelayHandle surface spec.md §4.5 needs — grounded in
// the teacher's own internal/nwc/nwc.go, which drives a single relay
// with nostr.RelayConnect/relay.Subscribe/relay.Publish directly.
type PoolProvider struct {
	log *zerolog.Logger
}

// NewPoolProvider constructs a Provider. A nil logger falls back to a
// no-op logger so the session package never requires a caller to wire
// logging just to function.
func NewPoolProvider(log *zerolog.Logger) *PoolProvider {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &PoolProvider{log: log}
}

func (p *PoolProvider) Connect(ctx context.Context, relays []string, clientSecretHex string) (Handle, error) {
	if len(relays) == 0 {
		return nil, fmt.Errorf("session: no relays configured")
	}
	pubkey, err := nostr.GetPublicKey(clientSecretHex)
	if err != nil {
		return nil, fmt.Errorf("session: invalid client secret: %w", err)
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	pool := nostr.NewSimplePool(poolCtx)

	h := &poolHandle{
		ctx:       poolCtx,
		pool:      pool,
		cancel:    cancel,
		relays:    relays,
		secretHex: clientSecretHex,
		pubkey:    pubkey,
		log:       p.log,
		conns:     make(map[string]*relayConn, len(relays)),
	}
	for _, url := range relays {
		h.conns[url] = &relayConn{url: url, state: RelayConnecting, log: p.log}
	}
	return h, nil
}

// poolHandle is the concrete Handle.
type poolHandle struct {
	ctx    context.Context
	cancel context.CancelFunc

	pool      *nostr.SimplePool
	relays    []string
	secretHex string
	pubkey    string
	log       *zerolog.Logger

	conns map[string]*relayConn
}

func (h *poolHandle) ClientPubkey() string { return h.pubkey }

func (h *poolHandle) Sign(ev OutboundEvent) (SignedEvent, error) {
	event := nostr.Event{
		PubKey:    h.pubkey,
		CreatedAt: nostr.Timestamp(ev.CreatedAt),
		Kind:      ev.Kind,
		Content:   ev.Content,
		Tags:      toNostrTags(ev.Tags),
	}
	event.ID = event.GetID()
	if err := event.Sign(h.secretHex); err != nil {
		h.log.Error().Err(err).Msg("failed to sign outbound event")
		return SignedEvent{}, fmt.Errorf("session: sign event: %w", err)
	}
	return SignedEvent{ID: event.ID, raw: event}, nil
}

func (h *poolHandle) Send(ctx context.Context, se SignedEvent) error {
	event, ok := se.raw.(nostr.Event)
	if !ok {
		return fmt.Errorf("session: signed event was not produced by this session")
	}

	accepted := false
	for res := range h.pool.PublishMany(ctx, h.relays, event) {
		if res.Error == nil {
			accepted = true
		} else {
			h.log.Error().Err(res.Error).Str("relay", res.RelayURL).Msg("publish rejected by relay")
		}
	}
	if !accepted {
		return fmt.Errorf("session: no relay accepted the event")
	}
	return nil
}

func (h *poolHandle) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	nfilter := nostr.Filter{Kinds: filter.Kinds, Authors: filter.Authors}
	if len(filter.Tags) > 0 {
		nfilter.Tags = nostr.TagMap(filter.Tags)
	}

	out := make(chan InboundEvent, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		for re := range h.pool.SubscribeMany(subCtx, h.relays, nfilter) {
			select {
			case out <- toInboundEvent(re.Event):
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &poolSubscription{events: out, cancel: cancel}, nil
}

func (h *poolHandle) FetchInfo(ctx context.Context, walletPubkey string) (InboundEvent, bool, error) {
	filter := nostr.Filter{Kinds: []int{13194}, Authors: []string{walletPubkey}, Limit: 1}
	for re := range h.pool.FetchMany(ctx, h.relays, filter) {
		return toInboundEvent(re.Event), true, nil
	}
	return InboundEvent{}, false, nil
}

func (h *poolHandle) RuntimeHandles() []RelayHandle {
	out := make([]RelayHandle, 0, len(h.relays))
	for _, url := range h.relays {
		out = append(out, &relayHandle{conn: h.conns[url], secretHex: h.secretHex, log: h.log})
	}
	return out
}

// Snapshots polls every relayConn at a fixed interval and emits the
// full set whenever it differs from the last one sent, closing when
// the handle's own context ends.
func (h *poolHandle) Snapshots() <-chan []RelaySnapshot {
	out := make(chan []RelaySnapshot, 1)
	go func() {
		defer close(out)
		var last []RelaySnapshot
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-h.ctx.Done():
				return
			case <-ticker.C:
				cur := h.currentSnapshots()
				if snapshotsEqual(last, cur) {
					continue
				}
				last = cur
				select {
				case out <- cur:
				case <-h.ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (h *poolHandle) currentSnapshots() []RelaySnapshot {
	out := make([]RelaySnapshot, 0, len(h.relays))
	for _, url := range h.relays {
		out = append(out, h.conns[url].snapshot())
	}
	return out
}

func snapshotsEqual(a, b []RelaySnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (h *poolHandle) Close() error {
	h.cancel()
	for _, c := range h.conns {
		c.close()
	}
	return nil
}

type poolSubscription struct {
	events <-chan InboundEvent
	cancel context.CancelFunc
}

func (s *poolSubscription) Events() <-chan InboundEvent { return s.events }
func (s *poolSubscription) Close()                      { s.cancel() }

func toInboundEvent(ev *nostr.Event) InboundEvent {
	if ev == nil {
		return InboundEvent{}
	}
	tags := make([][]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tags = append(tags, []string(t))
	}
	return InboundEvent{ID: ev.ID, PubKey: ev.PubKey, Kind: ev.Kind, Content: ev.Content, Tags: tags}
}

func toNostrTags(tags [][]string) nostr.Tags {
	out := make(nostr.Tags, 0, len(tags))
	for _, t := range tags {
		out = append(out, nostr.Tag(t))
	}
	return out
}

func toNostrFilter(f Filter) nostr.Filter {
	nf := nostr.Filter{Kinds: f.Kinds, Authors: f.Authors}
	if len(f.Tags) > 0 {
		nf.Tags = nostr.TagMap(f.Tags)
	}
	return nf
}

// relayConn owns one low-level *nostr.Relay connection, reconnected
// lazily on demand the way the teacher's sendRequest retries a
// "connection closed" publish by redialing nostr.RelayConnect.
type relayConn struct {
	mu    sync.Mutex
	url   string
	relay *nostr.Relay
	state RelayState
	log   *zerolog.Logger
}

func (c *relayConn) snapshot() RelaySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RelaySnapshot{URL: c.url, State: c.state}
}

func (c *relayConn) setState(s RelayState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ensure returns the live relay connection, dialing it if necessary.
func (c *relayConn) ensure(ctx context.Context) (*nostr.Relay, error) {
	c.mu.Lock()
	r := c.relay
	c.mu.Unlock()
	if r != nil && r.IsConnected() {
		return r, nil
	}

	c.setState(RelayConnecting)
	r, err := nostr.RelayConnect(ctx, c.url)
	if err != nil {
		c.setState(RelayFailed)
		c.log.Error().Err(err).Str("relay", c.url).Msg("relay connect failed")
		return nil, err
	}
	c.mu.Lock()
	c.relay = r
	c.mu.Unlock()
	c.setState(RelayConnected)
	return r, nil
}

func (c *relayConn) close() {
	c.mu.Lock()
	r := c.relay
	c.relay = nil
	c.mu.Unlock()
	c.setState(RelayDisconnecting)
	if r != nil {
		r.Close()
	}
	c.setState(RelayDisconnected)
}

// relayHandle is the RelayHandle a single relayConn presents to the
// init machine and request engine.
type relayHandle struct {
	conn      *relayConn
	secretHex string
	log       *zerolog.Logger
}

func (rh *relayHandle) URL() string               { return rh.conn.url }
func (rh *relayHandle) Snapshot() RelaySnapshot    { return rh.conn.snapshot() }

func (rh *relayHandle) CreateSharedSubscription(ctx context.Context, filter Filter, timeout time.Duration) (Subscription, bool) {
	setupCtx, cancelSetup := context.WithTimeout(ctx, timeout)
	defer cancelSetup()

	r, err := rh.conn.ensure(setupCtx)
	if err != nil {
		return nil, false
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	sub, err := r.Subscribe(streamCtx, nostr.Filters{toNostrFilter(filter)})
	if err != nil {
		rh.conn.setState(RelayFailed)
		cancelStream()
		return nil, false
	}

	out := make(chan InboundEvent, 16)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				select {
				case out <- toInboundEvent(ev):
				case <-streamCtx.Done():
					return
				}
			case <-streamCtx.Done():
				return
			}
		}
	}()
	return &poolSubscription{events: out, cancel: cancelStream}, true
}

func (rh *relayHandle) PublishTo(ctx context.Context, se SignedEvent) error {
	event, ok := se.raw.(nostr.Event)
	if !ok {
		return fmt.Errorf("session: signed event was not produced by this session")
	}
	r, err := rh.conn.ensure(ctx)
	if err != nil {
		return err
	}
	if err := r.Publish(ctx, event); err != nil {
		rh.conn.setState(RelayFailed)
		return err
	}
	return nil
}

func (rh *relayHandle) Query(ctx context.Context, filter Filter, timeout time.Duration) QueryOutcome {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r, err := rh.conn.ensure(deadline)
	if err != nil {
		return QueryOutcome{Kind: QueryConnectionFailed, Err: err}
	}
	events, err := r.QuerySync(deadline, toNostrFilter(filter))
	if err != nil {
		rh.conn.setState(RelayFailed)
		return QueryOutcome{Kind: QueryConnectionFailed, Err: err}
	}
	if len(events) == 0 {
		if deadline.Err() != nil {
			return QueryOutcome{Kind: QueryTimeout}
		}
		return QueryOutcome{Kind: QuerySuccess, Events: nil}
	}
	out := make([]InboundEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toInboundEvent(e))
	}
	return QueryOutcome{Kind: QuerySuccess, Events: out}
}

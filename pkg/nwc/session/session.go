// Package session defines the relay-session contract the engine is
// built against, so the rest of the client never imports go-nostr
// directly.
package session

import (
	"context"
	"time"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// InboundEvent is the minimal shape the engine needs from a relay
// event: kind, tags, content, the author, and the event id for
// correlation. PubKey is what lets the router enforce spec.md §4.8
// step 1's authenticity check — relays are untrusted, so a filter's
// Authors clause is a hint, never proof, of who actually signed an
// event.
type InboundEvent struct {
	ID      string
	PubKey  string
	Kind    int
	Content string
	Tags    [][]string
}

// Tag looks up the first value of the first tag named name.
func (e InboundEvent) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

// OutboundEvent is what the engine asks the session to sign: an
// unsigned kind-23194 request event, already encrypted.
type OutboundEvent struct {
	Kind      int
	Content   string
	Tags      [][]string
	CreatedAt int64
}

// SignedEvent is the result of signing an OutboundEvent. ID is the
// event's content-addressed id — the correlation key a wallet's
// response will echo back in its `e` tag — computed deterministically
// from the event's fields, so it's only known once signing happens,
// not when the caller builds the OutboundEvent. The engine registers
// its pending-request entry under this ID before publishing, so no
// response can arrive un-correlatable.
type SignedEvent struct {
	ID  string
	raw any
}

// Handle is a live connection to the wallet's relay set. Send,
// Subscribe and FetchInfo operate across every configured relay for
// callers that don't care which relay answered; RuntimeHandles exposes
// the per-relay seam the init machine and request engine need for
// spec.md §4.6's R/F partition and §4.7's relay race.
type Handle interface {
	// Sign computes the event id and signature for ev without sending
	// anything over the network.
	Sign(ev OutboundEvent) (SignedEvent, error)

	// ClientPubkey is the hex pubkey Sign signs events with, so callers
	// that never touch go-nostr directly can still check it against an
	// inbound event's `p` tag.
	ClientPubkey() string

	// Send transmits an already-signed event, returning once at least
	// one relay accepted it.
	Send(ctx context.Context, se SignedEvent) error

	// Subscribe opens a subscription for the given kinds/authors/tag
	// filter and streams matching events from every relay until ctx is
	// done or Close is called on the returned Subscription.
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)

	// FetchInfo fetches the wallet's kind-13194 info event once, or
	// reports that none was found within ctx.
	FetchInfo(ctx context.Context, walletPubkey string) (InboundEvent, bool, error)

	// RuntimeHandles returns one RelayHandle per configured relay, per
	// spec.md §4.5's runtime_handles().
	RuntimeHandles() []RelayHandle

	// Snapshots streams the full per-relay connection state whenever
	// any relay's state changes.
	Snapshots() <-chan []RelaySnapshot

	// Close tears down all relay connections.
	Close() error
}

// RelayHandle is the per-relay session object spec.md §4.5 describes:
// a single relay's subscribe/publish/query surface.
type RelayHandle interface {
	// URL is the relay this handle addresses.
	URL() string

	// Snapshot is this relay's current connection state.
	Snapshot() RelaySnapshot

	// CreateSharedSubscription opens a long-lived subscription on this
	// relay alone, or reports failure if it didn't come up within
	// timeout.
	CreateSharedSubscription(ctx context.Context, filter Filter, timeout time.Duration) (Subscription, bool)

	// PublishTo sends se to this relay only.
	PublishTo(ctx context.Context, se SignedEvent) error

	// Query fans a one-shot filter out to this relay and returns its
	// matching events, or Timeout/ConnectionFailed.
	Query(ctx context.Context, filter Filter, timeout time.Duration) QueryOutcome
}

// QueryKind discriminates QueryOutcome, mirroring the
// {Success, Timeout, ConnectionFailed} outcome space spec.md §4.5
// gives session.query and session.request_one_via.
type QueryKind int

const (
	QuerySuccess QueryKind = iota
	QueryTimeout
	QueryConnectionFailed
)

// QueryOutcome is the result of a per-relay Query.
type QueryOutcome struct {
	Kind   QueryKind
	Events []InboundEvent
	Err    error
}

// Filter narrows a Subscribe call; zero-value Authors/Tags mean
// unfiltered on that dimension.
type Filter struct {
	Kinds   []int
	Authors []string
	Tags    map[string][]string
}

// Subscription streams InboundEvents until closed.
type Subscription interface {
	Events() <-chan InboundEvent
	Close()
}

// Provider builds a Handle for a given set of relay URLs, and signs
// events on the client's behalf. It is the seam tests fake.
type Provider interface {
	Connect(ctx context.Context, relays []string, clientSecretHex string) (Handle, error)
}

// SignerError wraps a failure to reach or use a relay as a Network
// types.Failure, so callers never see a raw go-nostr error.
func SignerError(msg string, cause error) types.Failure {
	f := types.NetworkFailure(msg)
	f.Cause = cause
	return f
}

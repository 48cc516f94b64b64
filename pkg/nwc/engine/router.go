package engine

import (
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/codec"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/crypto"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

const (
	responseKind     = 23195
	notificationKind = 23197
)

// Router dispatches inbound relay events to the registry (responses)
// or the notification pipeline (notifications), after checking each
// event's encryption tag against the negotiated scheme and retrying
// once with NIP-04 when the tag-less inference turns out wrong.
type Router struct {
	engine *Engine
	pipe   *Pipeline
	neg    crypto.Negotiator
}

// NewRouter wires a router to its engine and outbound notification
// pipeline.
func NewRouter(e *Engine, pipe *Pipeline) *Router {
	return &Router{engine: e, pipe: pipe}
}

// Dispatch routes one inbound event. It is safe to call concurrently
// from multiple relay-draining goroutines.
func (r *Router) Dispatch(ev session.InboundEvent) {
	switch ev.Kind {
	case responseKind:
		r.dispatchResponse(ev)
	case notificationKind:
		r.dispatchNotification(ev)
	}
}

// authentic implements spec.md §4.8 step 1, both for responses and
// notifications: the event must be authored by the wallet, and if it
// carries a `p` tag at all that tag must name the client. Relays are
// untrusted, so a subscription's own Authors filter is never proof by
// itself — see Open Question 3's relay-forwarding threat.
func (r *Router) authentic(ev session.InboundEvent) bool {
	if ev.PubKey != r.engine.InitMachine().WalletPubkey() {
		return false
	}
	if p, ok := ev.Tag("p"); ok && p != r.engine.InitMachine().ClientPubkey() {
		return false
	}
	return true
}

func (r *Router) dispatchResponse(ev session.InboundEvent) {
	if !r.authentic(ev) {
		return
	}
	conv := r.engine.InitMachine().Conversation()
	if conv == nil {
		return
	}
	snap := r.engine.InitMachine().Snapshot()
	active := snap.Descriptor.ActiveEncryption

	tagValue, hasTag := ev.Tag("encryption")
	decision := r.neg.ForInboundEvent(tagValue, hasTag, active)

	plaintext, err := conv.Decrypt(ev.Content, decision.Scheme)
	if err != nil && r.neg.ShouldRetryWithNIP04(decision, snap.Descriptor.Metadata) {
		plaintext, err = conv.Decrypt(ev.Content, types.SchemeNIP04)
	}
	if err != nil {
		return
	}

	raw, err := codec.DecodeResponse([]byte(plaintext))
	if err != nil {
		return
	}

	requestID, hasRequestID := ev.Tag("e")
	dTag, hasD := ev.Tag("d")

	reg := r.engine.Registry()
	if hasRequestID && hasD {
		// requestID is the per-item signed event's own id, not the
		// shared multi registry id; resolveMultiID maps one to the
		// other via the table the engine filled in at send time.
		if multiID, ok := r.engine.resolveMultiID(requestID); ok {
			reg.AddMulti(multiID, dTag, raw)
			return
		}
		return
	}
	if hasRequestID {
		reg.CompleteSingle(requestID, raw)
		return
	}

	if id, ok := reg.ResolveRequestID(raw.ResultType); ok {
		reg.CompleteSingle(id, raw)
	}
}

func (r *Router) dispatchNotification(ev session.InboundEvent) {
	if !r.authentic(ev) {
		return
	}
	conv := r.engine.InitMachine().Conversation()
	if conv == nil {
		return
	}
	snap := r.engine.InitMachine().Snapshot()
	active := snap.Descriptor.ActiveEncryption

	tagValue, hasTag := ev.Tag("encryption")
	decision := r.neg.ForInboundEvent(tagValue, hasTag, active)

	plaintext, err := conv.Decrypt(ev.Content, decision.Scheme)
	if err != nil && r.neg.ShouldRetryWithNIP04(decision, snap.Descriptor.Metadata) {
		plaintext, err = conv.Decrypt(ev.Content, types.SchemeNIP04)
	}
	if err != nil {
		return
	}

	notif, err := codec.DecodeNotification([]byte(plaintext))
	if err != nil {
		return
	}
	r.pipe.Publish(notif)
}

package engine

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/codec"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/registry"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

const requestKind = 23194

// nextMultiID generates an 8-byte hex sub-item id for a multi request
// whose caller didn't supply one of its own.
func nextMultiID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// Engine dispatches requests against a ready InitMachine and a shared
// Registry, and is the type the router delivers inbound responses
// into.
type Engine struct {
	init *InitMachine
	reg  *registry.Registry

	mu           sync.Mutex
	eventToMulti map[string]string // signed event id -> multi registry id
}

// NewEngine wires an Engine to a machine and registry that the caller
// owns and keeps alive for the Engine's lifetime.
func NewEngine(init *InitMachine, reg *registry.Registry) *Engine {
	return &Engine{init: init, reg: reg, eventToMulti: make(map[string]string)}
}

// SendSingle builds, encrypts, signs, publishes, and awaits a single
// request/response round trip, retrying once on timeout.
func (e *Engine) SendSingle(ctx context.Context, method string, params any) (types.RawResponse, error) {
	snap := e.init.Snapshot()
	if snap.Kind != Ready && snap.Kind != PartialReady {
		return types.RawResponse{}, types.NetworkFailure("client is not connected to a wallet")
	}

	resp, err := e.sendSingleOnce(ctx, method, params, snap)
	if err == nil {
		return resp, nil
	}
	if f, ok := err.(types.Failure); ok && f.Kind == types.FailureTimeout {
		return e.sendSingleOnce(ctx, method, params, e.init.Snapshot())
	}
	return types.RawResponse{}, err
}

func (e *Engine) sendSingleOnce(ctx context.Context, method string, params any, snap InitSnapshot) (types.RawResponse, error) {
	handle := e.init.Handle()
	conv := e.init.Conversation()
	if handle == nil || conv == nil || len(snap.Ready) == 0 {
		return types.RawResponse{}, types.NetworkFailure("no response subscriptions available")
	}
	scheme := snap.Descriptor.ActiveEncryption

	body, err := codec.EncodeRequest(method, params)
	if err != nil {
		return types.RawResponse{}, types.ProtocolFailure(err.Error())
	}
	ciphertext, err := conv.Encrypt(string(body), scheme)
	if err != nil {
		return types.RawResponse{}, err
	}

	signed, err := handle.Sign(session.OutboundEvent{
		Kind:      requestKind,
		Content:   ciphertext,
		Tags:      [][]string{{"p", e.init.WalletPubkey()}, {"encryption", scheme.WireName()}},
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return types.RawResponse{}, session.SignerError("failed to sign request", err)
	}

	// Register before publishing so a response arriving the instant a
	// relay accepts it can never be dropped for want of a pending entry.
	ch := e.reg.RegisterSingle(signed.ID, method)

	outcome := racePublish(ctx, snap.Ready, signed)
	if !outcome.anySucceeded {
		failure := outcome.failure()
		e.reg.CompleteWithError(signed.ID, types.NwcError{Code: "NETWORK", Message: failure.Error()})
		<-ch
		return types.RawResponse{}, failure
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		e.reg.CompleteWithError(signed.ID, types.NwcError{Code: "TIMEOUT", Message: "no response before deadline"})
		return types.RawResponse{}, types.TimeoutFailure("no response before deadline")
	}
}

// publishOutcome aggregates the per-relay publish race of spec.md §4.7
// step 4: first success wins, and when every relay fails, Timeout is
// preferred over ConnectionFailed.
type publishOutcome struct {
	anySucceeded bool
	timedOut     bool
	lastErr      error
}

func (o publishOutcome) failure() types.Failure {
	if o.timedOut {
		return types.TimeoutFailure("no relay accepted the request before deadline")
	}
	return session.SignerError("failed to publish request", o.lastErr)
}

// racePublish spawns one publish task per ready relay and waits for
// all of them, since any could be the one whose response eventually
// arrives through its already-open subscription.
func racePublish(ctx context.Context, relays []session.RelayHandle, signed session.SignedEvent) publishOutcome {
	type result struct{ err error }
	results := make(chan result, len(relays))
	for _, rh := range relays {
		go func(rh session.RelayHandle) {
			results <- result{err: rh.PublishTo(ctx, signed)}
		}(rh)
	}

	var out publishOutcome
	for range relays {
		r := <-results
		if r.err == nil {
			out.anySucceeded = true
			continue
		}
		out.lastErr = r.err
		if ctx.Err() != nil {
			out.timedOut = true
		}
	}
	return out
}

// MultiItem is one sub-request within a multi_pay_invoice/
// multi_pay_keysend call.
type MultiItem struct {
	ID     string
	Params any
}

// SendMulti builds one event per item, each tagged `d` with its
// sub-item key, races it across every ready relay, and awaits every
// item's response.
func (e *Engine) SendMulti(ctx context.Context, method string, items []MultiItem) (map[string]types.RawResponse, error) {
	snap := e.init.Snapshot()
	if snap.Kind != Ready && snap.Kind != PartialReady {
		return nil, types.NetworkFailure("client is not connected to a wallet")
	}
	handle := e.init.Handle()
	conv := e.init.Conversation()
	if handle == nil || conv == nil || len(snap.Ready) == 0 {
		return nil, types.NetworkFailure("no response subscriptions available")
	}

	keys := make([]string, len(items))
	for i, it := range items {
		key := it.ID
		if key == "" {
			key = nextMultiID()
		}
		keys[i] = key
	}

	multiID := uuid.New().String()
	ch := e.reg.RegisterMulti(multiID, method, keys)

	signedEventIDs := make([]string, 0, len(items))
	cleanup := func(nerr types.NwcError) {
		e.reg.CompleteWithError(multiID, nerr)
		e.mu.Lock()
		for _, eid := range signedEventIDs {
			delete(e.eventToMulti, eid)
		}
		e.mu.Unlock()
		<-ch
	}

	for i, it := range items {
		body, err := codec.EncodeRequest(method, it.Params)
		if err != nil {
			cleanup(types.NwcError{Code: "PROTOCOL", Message: err.Error()})
			return nil, types.ProtocolFailure(err.Error())
		}
		ciphertext, err := conv.Encrypt(string(body), snap.Descriptor.ActiveEncryption)
		if err != nil {
			cleanup(types.NwcError{Code: "ENCRYPTION", Message: err.Error()})
			return nil, err
		}

		signed, err := handle.Sign(session.OutboundEvent{
			Kind:    requestKind,
			Content: ciphertext,
			Tags: [][]string{
				{"p", e.init.WalletPubkey()},
				{"encryption", snap.Descriptor.ActiveEncryption.WireName()},
				{"d", keys[i]},
			},
			CreatedAt: time.Now().Unix(),
		})
		if err != nil {
			cleanup(types.NwcError{Code: "PROTOCOL", Message: err.Error()})
			return nil, session.SignerError("failed to sign multi request item", err)
		}

		e.mu.Lock()
		e.eventToMulti[signed.ID] = multiID
		e.mu.Unlock()
		signedEventIDs = append(signedEventIDs, signed.ID)

		outcome := racePublish(ctx, snap.Ready, signed)
		if !outcome.anySucceeded {
			failure := outcome.failure()
			cleanup(types.NwcError{Code: "NETWORK", Message: failure.Error()})
			return nil, failure
		}
	}

	defer func() {
		e.mu.Lock()
		for _, eid := range signedEventIDs {
			delete(e.eventToMulti, eid)
		}
		e.mu.Unlock()
	}()

	select {
	case results := <-ch:
		return results, nil
	case <-ctx.Done():
		e.reg.CompleteWithError(multiID, types.NwcError{Code: "TIMEOUT", Message: "no response before deadline"})
		return nil, types.TimeoutFailure("no response before deadline")
	}
}

// resolveMultiID maps a signed request event's id back to the multi
// registry entry it belongs to, if any.
func (e *Engine) resolveMultiID(eventID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.eventToMulti[eventID]
	return id, ok
}

// Registry exposes the underlying registry for the router to deliver into.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// InitMachine exposes the underlying machine for the router/client to
// read the active encryption scheme and wallet metadata from.
func (e *Engine) InitMachine() *InitMachine { return e.init }

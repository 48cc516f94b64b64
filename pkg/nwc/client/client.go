// Package client is the public entry point for the NWC engine: one
// suspending and one observable method per wallet operation, wired to
// the registry, relay session, initialization machine, and
// notification pipeline underneath.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/codec"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/engine"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/registry"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// Client is the wallet-facing façade. Construction never blocks;
// initialization runs in the background and Ready-ness is observed
// through AwaitReady or any request's own deadline handling.
type Client struct {
	creds  types.Credentials
	init   *engine.InitMachine
	eng    *engine.Engine
	router *engine.Router
	pipe   *engine.Pipeline
	log    *zerolog.Logger
}

// Option customizes Client construction.
type Option func(*Client)

// WithLogger records a logger on the Client. Nothing in the client or
// engine packages writes to it, and it is not passed to the session
// provider, which takes its own logger.
func WithLogger(log *zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient constructs a Client from already-parsed Credentials and a
// session Provider, and immediately starts background initialization.
func NewClient(ctx context.Context, creds types.Credentials, provider session.Provider, opts ...Option) (*Client, error) {
	if len(creds.Relays) == 0 {
		return nil, fmt.Errorf("client: credentials have no relays")
	}

	reg := registry.New()
	pipe := engine.NewPipeline()

	// router is assigned below, but the closure is only ever invoked
	// from a relay-drain goroutine started after Start(), by which
	// point the assignment has long since happened.
	var router *engine.Router
	dispatch := func(ev session.InboundEvent) { router.Dispatch(ev) }

	initM := engine.NewInitMachine(provider, creds, dispatch)
	eng := engine.NewEngine(initM, reg)
	router = engine.NewRouter(eng, pipe)

	c := &Client{creds: creds, init: initM, eng: eng, router: router, pipe: pipe}
	for _, opt := range opts {
		opt(c)
	}

	initM.Start(ctx)
	return c, nil
}

// NewClientFromURI parses a nostr+walletconnect:// connection string
// and constructs a Client from it.
func NewClientFromURI(ctx context.Context, uri string, provider session.Provider, opts ...Option) (*Client, error) {
	creds, err := types.ParseConnectionURI(uri)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, creds, provider, opts...)
}

// Notifications returns a live subscription to decoded push
// notifications. The caller must Close it when done.
func (c *Client) Notifications() *engine.Subscription { return c.pipe.Subscribe() }

// AwaitReady blocks until initialization reaches a terminal state.
func (c *Client) AwaitReady(ctx context.Context) engine.InitSnapshot { return c.init.AwaitReady(ctx) }

// Close tears down the session and stops the recovery loop.
func (c *Client) Close() error {
	c.pipe.Close()
	return c.init.Close()
}

func withDeadline(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	if deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, deadline)
}

// --- get_balance ---------------------------------------------------

// GetBalance returns the wallet balance in millisatoshis.
func (c *Client) GetBalance(ctx context.Context, deadline time.Duration) types.Result[types.BitcoinAmount] {
	return c.GetBalanceRequest(ctx, deadline).ToResult(ctx)
}

// GetBalanceRequest returns an observable handle for get_balance.
func (c *Client) GetBalanceRequest(ctx context.Context, deadline time.Duration) *engine.RequestHandle[types.BitcoinAmount] {
	return observeSingle(c, ctx, deadline, "get_balance", nil, func(raw types.RawResponse) types.RequestState[types.BitcoinAmount] {
		if raw.Error != nil {
			return types.FailureState[types.BitcoinAmount](types.WalletFailure(*raw.Error))
		}
		var res struct {
			Balance uint64 `json:"balance"`
		}
		if err := unmarshalResult(raw.Result, &res); err != nil {
			return types.FailureState[types.BitcoinAmount](err.(types.Failure))
		}
		return types.Success(types.BitcoinAmount(res.Balance))
	})
}

// --- get_info --------------------------------------------------------

// GetInfo returns the wallet's advertised info.
func (c *Client) GetInfo(ctx context.Context, deadline time.Duration) types.Result[types.GetInfoResult] {
	return c.GetInfoRequest(ctx, deadline).ToResult(ctx)
}

// GetInfoRequest returns an observable handle for get_info.
func (c *Client) GetInfoRequest(ctx context.Context, deadline time.Duration) *engine.RequestHandle[types.GetInfoResult] {
	return observeSingle(c, ctx, deadline, "get_info", nil, func(raw types.RawResponse) types.RequestState[types.GetInfoResult] {
		if raw.Error != nil {
			return types.FailureState[types.GetInfoResult](types.WalletFailure(*raw.Error))
		}
		res, err := codec.DecodeGetInfoResult(raw.Result)
		if err != nil {
			return types.FailureState[types.GetInfoResult](err.(types.Failure))
		}
		return types.Success(res)
	})
}

// --- pay_invoice -----------------------------------------------------

// PayResult is the decoded result of a pay_invoice/pay_keysend call.
type PayResult struct {
	Preimage    string
	FeesPaid    types.BitcoinAmount
	HasFeesPaid bool
}

type payInvoiceParams struct {
	Invoice  string `json:"invoice"`
	Amount   *int64 `json:"amount,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

// PayInvoice pays a BOLT11 invoice.
func (c *Client) PayInvoice(ctx context.Context, deadline time.Duration, invoice string, amount *int64, metadata any) types.Result[PayResult] {
	return c.PayInvoiceRequest(ctx, deadline, invoice, amount, metadata).ToResult(ctx)
}

// PayInvoiceRequest returns an observable handle for pay_invoice.
func (c *Client) PayInvoiceRequest(ctx context.Context, deadline time.Duration, invoice string, amount *int64, metadata any) *engine.RequestHandle[PayResult] {
	params := payInvoiceParams{Invoice: invoice, Amount: amount, Metadata: metadata}
	return observeSingle(c, ctx, deadline, "pay_invoice", params, decodePayResult)
}

func decodePayResult(raw types.RawResponse) types.RequestState[PayResult] {
	if raw.Error != nil {
		return types.FailureState[PayResult](types.WalletFailure(*raw.Error))
	}
	var res struct {
		Preimage string  `json:"preimage"`
		FeesPaid *uint64 `json:"fees_paid"`
	}
	if err := unmarshalResult(raw.Result, &res); err != nil {
		return types.FailureState[PayResult](err.(types.Failure))
	}
	out := PayResult{Preimage: res.Preimage}
	if res.FeesPaid != nil {
		out.FeesPaid, out.HasFeesPaid = types.BitcoinAmount(*res.FeesPaid), true
	}
	return types.Success(out)
}

// --- pay_keysend -----------------------------------------------------

// TLVRecord is a custom keysend record.
type TLVRecord struct {
	Type     uint64
	ValueHex string
}

type keysendParams struct {
	Pubkey     string      `json:"pubkey"`
	Amount     int64       `json:"amount"`
	Preimage   string      `json:"preimage,omitempty"`
	TLVRecords []tlvWire   `json:"tlv_records,omitempty"`
}

type tlvWire struct {
	Type     uint64 `json:"type"`
	ValueHex string `json:"value"`
}

// PayKeysend sends a keysend payment.
func (c *Client) PayKeysend(ctx context.Context, deadline time.Duration, pubkey string, amount int64, preimage string, tlv []TLVRecord) types.Result[PayResult] {
	return c.PayKeysendRequest(ctx, deadline, pubkey, amount, preimage, tlv).ToResult(ctx)
}

// PayKeysendRequest returns an observable handle for pay_keysend.
func (c *Client) PayKeysendRequest(ctx context.Context, deadline time.Duration, pubkey string, amount int64, preimage string, tlv []TLVRecord) *engine.RequestHandle[PayResult] {
	params := keysendParams{Pubkey: pubkey, Amount: amount, Preimage: preimage, TLVRecords: toTLVWire(tlv)}
	return observeSingle(c, ctx, deadline, "pay_keysend", params, decodePayResult)
}

func toTLVWire(tlv []TLVRecord) []tlvWire {
	out := make([]tlvWire, 0, len(tlv))
	for _, t := range tlv {
		out = append(out, tlvWire{Type: t.Type, ValueHex: t.ValueHex})
	}
	return out
}

// --- multi_pay_invoice / multi_pay_keysend ---------------------------

// MultiInvoice is one item in a multi_pay_invoice call.
type MultiInvoice struct {
	ID       string
	Invoice  string
	Amount   *int64
	Metadata any
}

// MultiPayInvoice pays several invoices in one batched request.
func (c *Client) MultiPayInvoice(ctx context.Context, deadline time.Duration, invoices []MultiInvoice) types.Result[map[string]types.MultiResult[PayResult]] {
	return c.MultiPayInvoiceRequest(ctx, deadline, invoices).ToResult(ctx)
}

// MultiPayInvoiceRequest returns an observable handle for multi_pay_invoice.
func (c *Client) MultiPayInvoiceRequest(ctx context.Context, deadline time.Duration, invoices []MultiInvoice) *engine.RequestHandle[map[string]types.MultiResult[PayResult]] {
	items := make([]engine.MultiItem, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, engine.MultiItem{
			ID:     inv.ID,
			Params: payInvoiceParams{Invoice: inv.Invoice, Amount: inv.Amount, Metadata: inv.Metadata},
		})
	}
	return observeMulti(c, ctx, deadline, "multi_pay_invoice", items, decodePayResult)
}

// MultiKeysend is one item in a multi_pay_keysend call.
type MultiKeysend struct {
	ID       string
	Pubkey   string
	Amount   int64
	Preimage string
	TLV      []TLVRecord
}

// MultiPayKeysend sends several keysend payments in one batched request.
func (c *Client) MultiPayKeysend(ctx context.Context, deadline time.Duration, keysends []MultiKeysend) types.Result[map[string]types.MultiResult[PayResult]] {
	return c.MultiPayKeysendRequest(ctx, deadline, keysends).ToResult(ctx)
}

// MultiPayKeysendRequest returns an observable handle for multi_pay_keysend.
func (c *Client) MultiPayKeysendRequest(ctx context.Context, deadline time.Duration, keysends []MultiKeysend) *engine.RequestHandle[map[string]types.MultiResult[PayResult]] {
	items := make([]engine.MultiItem, 0, len(keysends))
	for _, ks := range keysends {
		items = append(items, engine.MultiItem{
			ID:     ks.ID,
			Params: keysendParams{Pubkey: ks.Pubkey, Amount: ks.Amount, Preimage: ks.Preimage, TLVRecords: toTLVWire(ks.TLV)},
		})
	}
	return observeMulti(c, ctx, deadline, "multi_pay_keysend", items, decodePayResult)
}

// --- make_invoice ----------------------------------------------------

type makeInvoiceParams struct {
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Expiry          *int64 `json:"expiry,omitempty"`
	Metadata        any    `json:"metadata,omitempty"`
}

// MakeInvoice requests a new invoice from the wallet.
func (c *Client) MakeInvoice(ctx context.Context, deadline time.Duration, amount int64, description, descriptionHash string, expiry *int64, metadata any) types.Result[types.Transaction] {
	return c.MakeInvoiceRequest(ctx, deadline, amount, description, descriptionHash, expiry, metadata).ToResult(ctx)
}

// MakeInvoiceRequest returns an observable handle for make_invoice.
func (c *Client) MakeInvoiceRequest(ctx context.Context, deadline time.Duration, amount int64, description, descriptionHash string, expiry *int64, metadata any) *engine.RequestHandle[types.Transaction] {
	params := makeInvoiceParams{Amount: amount, Description: description, DescriptionHash: descriptionHash, Expiry: expiry, Metadata: metadata}
	return observeSingle(c, ctx, deadline, "make_invoice", params, decodeTransaction)
}

func decodeTransaction(raw types.RawResponse) types.RequestState[types.Transaction] {
	if raw.Error != nil {
		return types.FailureState[types.Transaction](types.WalletFailure(*raw.Error))
	}
	tx, err := codec.DecodeTransaction(raw.Result)
	if err != nil {
		return types.FailureState[types.Transaction](err.(types.Failure))
	}
	return types.Success(tx)
}

// --- lookup_invoice --------------------------------------------------

type lookupInvoiceParams struct {
	PaymentHash string `json:"payment_hash,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
}

// LookupInvoice looks up a transaction by payment hash or invoice.
func (c *Client) LookupInvoice(ctx context.Context, deadline time.Duration, paymentHash, invoice string) types.Result[types.Transaction] {
	return c.LookupInvoiceRequest(ctx, deadline, paymentHash, invoice).ToResult(ctx)
}

// LookupInvoiceRequest returns an observable handle for lookup_invoice.
func (c *Client) LookupInvoiceRequest(ctx context.Context, deadline time.Duration, paymentHash, invoice string) *engine.RequestHandle[types.Transaction] {
	params := lookupInvoiceParams{PaymentHash: paymentHash, Invoice: invoice}
	return observeSingle(c, ctx, deadline, "lookup_invoice", params, decodeTransaction)
}

// --- list_transactions -------------------------------------------------

// ListTransactionsParams narrows a list_transactions call.
type ListTransactionsParams struct {
	From   *int64
	Until  *int64
	Limit  *int64
	Offset *int64
	Unpaid bool
	Type   string
}

type listTransactionsWire struct {
	From   *int64 `json:"from,omitempty"`
	Until  *int64 `json:"until,omitempty"`
	Limit  *int64 `json:"limit,omitempty"`
	Offset *int64 `json:"offset,omitempty"`
	Unpaid bool   `json:"unpaid"`
	Type   string `json:"type,omitempty"`
}

// ListTransactions lists wallet transactions matching params.
func (c *Client) ListTransactions(ctx context.Context, deadline time.Duration, params ListTransactionsParams) types.Result[[]types.Transaction] {
	return c.ListTransactionsRequest(ctx, deadline, params).ToResult(ctx)
}

// ListTransactionsRequest returns an observable handle for list_transactions.
func (c *Client) ListTransactionsRequest(ctx context.Context, deadline time.Duration, params ListTransactionsParams) *engine.RequestHandle[[]types.Transaction] {
	wire := listTransactionsWire{From: params.From, Until: params.Until, Limit: params.Limit, Offset: params.Offset, Unpaid: params.Unpaid, Type: params.Type}
	return observeSingle(c, ctx, deadline, "list_transactions", wire, func(raw types.RawResponse) types.RequestState[[]types.Transaction] {
		if raw.Error != nil {
			return types.FailureState[[]types.Transaction](types.WalletFailure(*raw.Error))
		}
		txs, err := codec.DecodeTransactionList(raw.Result)
		if err != nil {
			return types.FailureState[[]types.Transaction](err.(types.Failure))
		}
		return types.Success(txs)
	})
}

// --- refresh_wallet_metadata / describe_wallet ------------------------

// RefreshWalletMetadata re-fetches and decodes the wallet's info event
// and returns the result. It does not change the negotiated encryption
// scheme or the descriptor that DescribeWallet returns.
func (c *Client) RefreshWalletMetadata(ctx context.Context, deadline time.Duration) types.Result[types.WalletMetadata] {
	return c.RefreshWalletMetadataRequest(ctx, deadline).ToResult(ctx)
}

// RefreshWalletMetadataRequest returns an observable handle for re-fetching metadata.
func (c *Client) RefreshWalletMetadataRequest(ctx context.Context, deadline time.Duration) *engine.RequestHandle[types.WalletMetadata] {
	ch := make(chan types.RequestState[types.WalletMetadata], 1)
	go func() {
		dctx, cancel := withDeadline(ctx, deadline)
		defer cancel()
		handle := c.init.Handle()
		if handle == nil {
			ch <- types.FailureState[types.WalletMetadata](types.NetworkFailure("client is not connected"))
			return
		}
		ev, found, err := handle.FetchInfo(dctx, c.creds.WalletPubkey)
		if err != nil {
			ch <- types.FailureState[types.WalletMetadata](session.SignerError("failed to fetch wallet info", err))
			return
		}
		if !found {
			ch <- types.FailureState[types.WalletMetadata](types.ProtocolFailure("wallet published no info event"))
			return
		}
		tags := make([]codec.NostrTag, 0, len(ev.Tags))
		for _, t := range ev.Tags {
			tags = append(tags, codec.NostrTag(t))
		}
		ch <- types.Success(codec.DecodeInfoEvent(ev.Content, tags))
	}()
	return engine.FromChannel(ch)
}

// DescribeWallet returns the descriptor built during initialization:
// the connection URI, wallet metadata, and negotiated encryption. Its
// Info field is left zero, since initialization never calls get_info.
func (c *Client) DescribeWallet(ctx context.Context, deadline time.Duration) types.Result[types.WalletDescriptor] {
	return c.DescribeWalletRequest(ctx, deadline).ToResult(ctx)
}

// DescribeWalletRequest returns an observable handle that resolves to
// the current descriptor once initialization is terminal.
func (c *Client) DescribeWalletRequest(ctx context.Context, deadline time.Duration) *engine.RequestHandle[types.WalletDescriptor] {
	ch := make(chan types.RequestState[types.WalletDescriptor], 1)
	go func() {
		dctx, cancel := withDeadline(ctx, deadline)
		defer cancel()
		snap := c.init.AwaitReady(dctx)
		switch snap.Kind {
		case engine.Ready, engine.PartialReady:
			ch <- types.Success(snap.Descriptor)
		case engine.Failed:
			ch <- types.FailureState[types.WalletDescriptor](snap.Failure)
		default:
			ch <- types.FailureState[types.WalletDescriptor](types.TimeoutFailure("initialization did not complete before deadline"))
		}
	}()
	return engine.FromChannel(ch)
}

// --- shared plumbing ---------------------------------------------------

func unmarshalResult(raw []byte, out any) error {
	if len(raw) == 0 {
		return types.ProtocolFailure("response missing result payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return types.ProtocolFailure("malformed result payload: " + err.Error())
	}
	return nil
}

func observeSingle[T any](c *Client, ctx context.Context, deadline time.Duration, method string, params any, decode func(types.RawResponse) types.RequestState[T]) *engine.RequestHandle[T] {
	ch := make(chan types.RequestState[T], 1)
	go func() {
		dctx, cancel := withDeadline(ctx, deadline)
		defer cancel()
		raw, err := c.eng.SendSingle(dctx, method, params)
		if err != nil {
			if f, ok := err.(types.Failure); ok {
				ch <- types.FailureState[T](f)
			} else {
				ch <- types.FailureState[T](types.UnknownFailure(err.Error(), err))
			}
			return
		}
		ch <- decode(raw)
	}()
	return engine.FromChannel(ch)
}

func observeMulti[T any](c *Client, ctx context.Context, deadline time.Duration, method string, items []engine.MultiItem, decode func(types.RawResponse) types.RequestState[T]) *engine.RequestHandle[map[string]types.MultiResult[T]] {
	ch := make(chan types.RequestState[map[string]types.MultiResult[T]], 1)
	go func() {
		dctx, cancel := withDeadline(ctx, deadline)
		defer cancel()
		raws, err := c.eng.SendMulti(dctx, method, items)
		if err != nil {
			if f, ok := err.(types.Failure); ok {
				ch <- types.FailureState[map[string]types.MultiResult[T]](f)
			} else {
				ch <- types.FailureState[map[string]types.MultiResult[T]](types.UnknownFailure(err.Error(), err))
			}
			return
		}
		out := make(map[string]types.MultiResult[T], len(raws))
		for k, raw := range raws {
			state := decode(raw)
			if state.Kind == types.StateFailure {
				out[k] = types.MultiErr[T](types.NwcError{Code: "WALLET_ERROR", Message: state.Err.Error()})
			} else {
				out[k] = types.MultiOk(state.Value)
			}
		}
		ch <- types.Success(out)
	}()
	return engine.FromChannel(ch)
}

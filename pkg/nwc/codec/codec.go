// Package codec implements the NIP-47 wire format: request bodies,
// response envelopes, transaction objects, and the wallet info event.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// requestBody is the plaintext payload encrypted into a kind-23194 event.
type requestBody struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// EncodeRequest serializes a {method, params} body deterministically.
func EncodeRequest(method string, params any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(requestBody{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return b, nil
}

type responseEnvelope struct {
	ResultType string          `json:"result_type"`
	Result     json.RawMessage `json:"result"`
	Error      *wireError      `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeResponse parses a {result_type, result, error} envelope.
func DecodeResponse(raw []byte) (types.RawResponse, error) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.RawResponse{}, types.ProtocolFailure("malformed response JSON: " + err.Error())
	}
	if env.ResultType == "" {
		return types.RawResponse{}, types.ProtocolFailure("response missing result_type")
	}

	out := types.RawResponse{ResultType: env.ResultType}
	if len(env.Result) > 0 && string(env.Result) != "null" {
		out.Result = []byte(env.Result)
	}
	if env.Error != nil && env.Error.Code != "" {
		out.Error = &types.NwcError{Code: env.Error.Code, Message: env.Error.Message}
	}
	return out, nil
}

type txWire struct {
	Type            string          `json:"type"`
	State           string          `json:"state"`
	Invoice         string          `json:"invoice"`
	Description     string          `json:"description"`
	DescriptionHash string          `json:"description_hash"`
	Preimage        string          `json:"preimage"`
	PaymentHash     string          `json:"payment_hash"`
	Amount          *uint64         `json:"amount"`
	FeesPaid        *uint64         `json:"fees_paid"`
	CreatedAt       *int64          `json:"created_at"`
	ExpiresAt       *int64          `json:"expires_at"`
	SettledAt       *int64          `json:"settled_at"`
	Metadata        json.RawMessage `json:"metadata"`
}

// DecodeTransaction parses a transaction object per spec.md §4.1:
// type/payment_hash/amount/created_at are required; unrecognized type
// is a Protocol failure, unrecognized state is reported as "no state".
func DecodeTransaction(raw json.RawMessage) (types.Transaction, error) {
	var w txWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Transaction{}, types.ProtocolFailure("malformed transaction JSON: " + err.Error())
	}

	var direction types.Direction
	switch w.Type {
	case "incoming":
		direction = types.DirectionIncoming
	case "outgoing":
		direction = types.DirectionOutgoing
	default:
		return types.Transaction{}, types.ProtocolFailure("unrecognized transaction type: " + w.Type)
	}

	if w.PaymentHash == "" {
		return types.Transaction{}, types.ProtocolFailure("transaction missing payment_hash")
	}
	if w.Amount == nil {
		return types.Transaction{}, types.ProtocolFailure("transaction missing amount")
	}
	if w.CreatedAt == nil {
		return types.Transaction{}, types.ProtocolFailure("transaction missing created_at")
	}

	tx := types.Transaction{
		Direction:       direction,
		Invoice:         w.Invoice,
		Description:     w.Description,
		DescriptionHash: w.DescriptionHash,
		Preimage:        w.Preimage,
		PaymentHash:     w.PaymentHash,
		Amount:          types.BitcoinAmount(*w.Amount),
		CreatedAt:       *w.CreatedAt,
	}

	switch w.State {
	case "pending":
		tx.State, tx.HasState = types.TxStatePending, true
	case "settled":
		tx.State, tx.HasState = types.TxStateSettled, true
	case "expired":
		tx.State, tx.HasState = types.TxStateExpired, true
	case "failed":
		tx.State, tx.HasState = types.TxStateFailed, true
	case "unknown":
		tx.State, tx.HasState = types.TxStateUnknown, true
	case "":
		// absent state is fine, HasState stays false
	default:
		// unrecognized enum value normalizes to "no state" rather than erroring
	}

	if w.FeesPaid != nil {
		tx.FeesPaid, tx.HasFeesPaid = types.BitcoinAmount(*w.FeesPaid), true
	}
	if w.ExpiresAt != nil {
		tx.ExpiresAt, tx.HasExpiresAt = *w.ExpiresAt, true
	}
	if w.SettledAt != nil {
		tx.SettledAt, tx.HasSettledAt = *w.SettledAt, true
	}
	if len(w.Metadata) > 0 && string(w.Metadata) != "null" {
		var meta map[string]any
		if err := json.Unmarshal(w.Metadata, &meta); err == nil {
			tx.Metadata = meta
		}
	}

	return tx, nil
}

type transactionsResult struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// DecodeTransactionList unpacks the list_transactions result shape.
func DecodeTransactionList(raw []byte) ([]types.Transaction, error) {
	var res transactionsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, types.ProtocolFailure("malformed transactions list: " + err.Error())
	}
	out := make([]types.Transaction, 0, len(res.Transactions))
	for _, r := range res.Transactions {
		tx, err := DecodeTransaction(r)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// NostrTag is the minimal tag shape the codec needs — [name, value, ...].
type NostrTag []string

// DecodeInfoEvent parses the kind-13194 info event: content is a
// whitespace-separated capability list, the encryption tag is
// space-or-comma separated scheme tokens, the notifications tag's
// first value is a space-separated notification-type list.
func DecodeInfoEvent(content string, tags []NostrTag) types.WalletMetadata {
	meta := types.WalletMetadata{}

	for _, tok := range strings.Fields(content) {
		meta.Capabilities = append(meta.Capabilities, types.ParseCapabilityToken(tok))
	}

	encryptionTag, hasEncryption := findTag(tags, "encryption")
	if !hasEncryption {
		// missing tag: schemes stay empty, defaulted flag lets the
		// negotiator fall back to NIP-04 per spec.md §4.1/§4.3
		meta.DefaultedToNIP04 = true
	} else {
		for _, tok := range splitSchemeTokens(encryptionTag) {
			if s := types.ParseScheme(tok); s != types.SchemeUnknown {
				meta.Encryption = append(meta.Encryption, s)
			}
		}
	}

	if notifTag, ok := findTag(tags, "notifications"); ok {
		for _, tok := range strings.Fields(notifTag) {
			meta.NotificationTypes = append(meta.NotificationTypes, types.ParseNotificationToken(tok))
		}
	}

	return meta
}

func findTag(tags []NostrTag, name string) (string, bool) {
	for _, t := range tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

func splitSchemeTokens(s string) []string {
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Fields(s)
}

type notificationWire struct {
	NotificationType string          `json:"notification_type"`
	Notification     json.RawMessage `json:"notification"`
}

// DecodeNotification parses the plaintext content of a kind-23197 event.
func DecodeNotification(raw []byte) (types.Notification, error) {
	var w notificationWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Notification{}, types.ProtocolFailure("malformed notification JSON: " + err.Error())
	}
	if w.NotificationType == "" {
		return types.Notification{}, types.ProtocolFailure("notification missing notification_type")
	}
	return types.Notification{
		Type:    types.ParseNotificationToken(w.NotificationType),
		Payload: []byte(w.Notification),
	}, nil
}

type infoResultWire struct {
	Alias         string   `json:"alias"`
	Color         string   `json:"color"`
	Pubkey        string   `json:"pubkey"`
	Network       string   `json:"network"`
	BlockHeight   *int64   `json:"block_height"`
	BlockHash     *string  `json:"block_hash"`
	Methods       []string `json:"methods"`
	Notifications []string `json:"notifications"`
}

// DecodeGetInfoResult parses the get_info method's result payload.
func DecodeGetInfoResult(raw []byte) (types.GetInfoResult, error) {
	var w infoResultWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.GetInfoResult{}, types.ProtocolFailure("malformed get_info result: " + err.Error())
	}
	res := types.GetInfoResult{
		Alias:   w.Alias,
		Color:   w.Color,
		Pubkey:  w.Pubkey,
		Network: types.ParseNetwork(w.Network),
	}
	if w.BlockHeight != nil {
		res.BlockHeight, res.HasBlockHeight = *w.BlockHeight, true
	}
	if w.BlockHash != nil {
		res.BlockHash, res.HasBlockHash = *w.BlockHash, true
	}
	for _, m := range w.Methods {
		res.Capabilities = append(res.Capabilities, types.ParseCapabilityToken(m))
	}
	for _, n := range w.Notifications {
		res.Notifications = append(res.Notifications, types.ParseNotificationToken(n))
	}
	return res, nil
}

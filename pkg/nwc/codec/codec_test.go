package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

func TestEncodeRequest(t *testing.T) {
	body, err := EncodeRequest("get_balance", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"method":"get_balance","params":{}}`, string(body))

	body, err = EncodeRequest("pay_invoice", map[string]any{"invoice": "lnbc1..."})
	require.NoError(t, err)
	require.JSONEq(t, `{"method":"pay_invoice","params":{"invoice":"lnbc1..."}}`, string(body))
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, r types.RawResponse)
	}{
		{
			name: "success envelope",
			raw:  `{"result_type":"get_balance","result":{"balance":1000},"error":null}`,
			check: func(t *testing.T, r types.RawResponse) {
				require.Equal(t, "get_balance", r.ResultType)
				require.JSONEq(t, `{"balance":1000}`, string(r.Result))
				require.Nil(t, r.Error)
			},
		},
		{
			name: "wallet error envelope",
			raw:  `{"result_type":"pay_invoice","result":null,"error":{"code":"INSUFFICIENT_BALANCE","message":"not enough funds"}}`,
			check: func(t *testing.T, r types.RawResponse) {
				require.Nil(t, r.Result)
				require.NotNil(t, r.Error)
				require.Equal(t, "INSUFFICIENT_BALANCE", r.Error.Code)
			},
		},
		{
			name:    "missing result_type",
			raw:     `{"result":{}}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeResponse([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestDecodeTransaction(t *testing.T) {
	tx, err := DecodeTransaction([]byte(`{
		"type": "incoming",
		"state": "settled",
		"payment_hash": "abc123",
		"amount": 50000,
		"fees_paid": 10,
		"created_at": 1000,
		"settled_at": 1005
	}`))
	require.NoError(t, err)
	require.Equal(t, types.DirectionIncoming, tx.Direction)
	require.True(t, tx.HasState)
	require.Equal(t, types.TxStateSettled, tx.State)
	require.Equal(t, types.BitcoinAmount(50000), tx.Amount)
	require.True(t, tx.HasFeesPaid)
	require.Equal(t, types.BitcoinAmount(10), tx.FeesPaid)
	require.True(t, tx.HasSettledAt)
	require.False(t, tx.HasExpiresAt)
}

func TestDecodeTransaction_UnrecognizedStateIsNoState(t *testing.T) {
	tx, err := DecodeTransaction([]byte(`{
		"type": "outgoing",
		"state": "something_new",
		"payment_hash": "abc123",
		"amount": 1,
		"created_at": 1
	}`))
	require.NoError(t, err)
	require.False(t, tx.HasState)
}

func TestDecodeTransaction_MissingRequiredFields(t *testing.T) {
	_, err := DecodeTransaction([]byte(`{"type":"incoming"}`))
	require.Error(t, err)

	_, err = DecodeTransaction([]byte(`{"type":"bogus","payment_hash":"x","amount":1,"created_at":1}`))
	require.Error(t, err)
}

func TestDecodeTransactionList(t *testing.T) {
	txs, err := DecodeTransactionList([]byte(`{"transactions":[
		{"type":"incoming","payment_hash":"a","amount":1,"created_at":1},
		{"type":"outgoing","payment_hash":"b","amount":2,"created_at":2}
	]}`))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, types.DirectionOutgoing, txs[1].Direction)
}

func TestDecodeInfoEvent(t *testing.T) {
	meta := DecodeInfoEvent("get_balance pay_invoice", []NostrTag{
		{"encryption", "nip44_v2 nip04"},
		{"notifications", "payment_received payment_sent"},
	})
	require.False(t, meta.DefaultedToNIP04)
	require.Len(t, meta.Capabilities, 2)
	require.Equal(t, []types.EncryptionScheme{types.SchemeNIP44V2, types.SchemeNIP04}, meta.Encryption)
	require.Len(t, meta.NotificationTypes, 2)
}

func TestDecodeInfoEvent_MissingEncryptionTagDefaultsToNIP04(t *testing.T) {
	meta := DecodeInfoEvent("get_balance", []NostrTag{})
	require.True(t, meta.DefaultedToNIP04)
	require.Empty(t, meta.Encryption)
}

func TestDecodeInfoEvent_CommaSeparatedSchemeTokens(t *testing.T) {
	meta := DecodeInfoEvent("", []NostrTag{{"encryption", "nip44_v2,nip04"}})
	require.Equal(t, []types.EncryptionScheme{types.SchemeNIP44V2, types.SchemeNIP04}, meta.Encryption)
}

func TestDecodeNotification(t *testing.T) {
	n, err := DecodeNotification([]byte(`{"notification_type":"payment_received","notification":{"amount":100}}`))
	require.NoError(t, err)
	require.True(t, n.Type.IsKnown)
	require.Equal(t, "payment_received", n.Type.Token)
	require.JSONEq(t, `{"amount":100}`, string(n.Payload))
}

func TestDecodeNotification_MissingType(t *testing.T) {
	_, err := DecodeNotification([]byte(`{"notification":{}}`))
	require.Error(t, err)
}

func TestDecodeGetInfoResult(t *testing.T) {
	res, err := DecodeGetInfoResult([]byte(`{
		"alias": "my wallet",
		"pubkey": "deadbeef",
		"network": "mainnet",
		"block_height": 800000,
		"methods": ["get_balance", "pay_invoice"],
		"notifications": ["payment_received"]
	}`))
	require.NoError(t, err)
	require.Equal(t, "my wallet", res.Alias)
	require.Equal(t, types.NetworkMainnet, res.Network)
	require.True(t, res.HasBlockHeight)
	require.Equal(t, int64(800000), res.BlockHeight)
	require.Len(t, res.Capabilities, 2)
	require.Len(t, res.Notifications, 1)
}

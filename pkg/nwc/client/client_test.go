package client

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/crypto"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/engine"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session/sessionfake"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

type testWallet struct {
	creds  types.Credentials
	secret string
	handle *sessionfake.Handle
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	clientSecret := nostr.GeneratePrivateKey()
	walletSecret := nostr.GeneratePrivateKey()
	walletPubkey, err := nostr.GetPublicKey(walletSecret)
	require.NoError(t, err)

	clientPubkey, err := nostr.GetPublicKey(clientSecret)
	require.NoError(t, err)

	h := sessionfake.NewHandle(clientPubkey, "wss://relay.example")
	h.SetInfo(session.InboundEvent{
		PubKey:  walletPubkey,
		Kind:    13194,
		Content: "get_balance pay_invoice multi_pay_invoice make_invoice lookup_invoice list_transactions",
		Tags:    [][]string{{"encryption", "nip44_v2 nip04"}},
	})

	return &testWallet{
		creds: types.Credentials{
			WalletPubkey: walletPubkey,
			Relays:       []string{"wss://relay.example"},
			ClientSecret: clientSecret,
		},
		secret: walletSecret,
		handle: h,
	}
}

func (w *testWallet) conversation(t *testing.T) *crypto.Conversation {
	t.Helper()
	clientPubkey, err := nostr.GetPublicKey(w.creds.ClientSecret)
	require.NoError(t, err)
	conv, err := crypto.NewConversation(w.secret, clientPubkey)
	require.NoError(t, err)
	return conv
}

func startReadyClient(t *testing.T, w *testWallet) (*Client, engine.InitSnapshot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := NewClient(ctx, w.creds, &sessionfake.Provider{Handle: w.handle})
	require.NoError(t, err)

	snap := c.AwaitReady(ctx)
	require.Equal(t, engine.Ready, snap.Kind)
	return c, snap
}

func waitForSent(t *testing.T, h *sessionfake.Handle, n int) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sent := h.Sent()
		if len(sent) >= n {
			return sent[n-1].ID
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d signed events", n)
	return ""
}

func TestClient_GetBalance_RoundTrip(t *testing.T) {
	w := newTestWallet(t)
	c, snap := startReadyClient(t, w)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		res types.Result[types.BitcoinAmount]
	}
	done := make(chan result, 1)
	go func() { done <- result{c.GetBalance(ctx, time.Second)} }()

	id := waitForSent(t, w.handle, 1)
	wConv := w.conversation(t)
	ciphertext, err := wConv.Encrypt(`{"result_type":"get_balance","result":{"balance":12345},"error":null}`, snap.Descriptor.ActiveEncryption)
	require.NoError(t, err)

	w.handle.Deliver(session.InboundEvent{
		PubKey:  w.creds.WalletPubkey,
		Kind:    23195,
		Content: ciphertext,
		Tags:    [][]string{{"e", id}, {"encryption", snap.Descriptor.ActiveEncryption.WireName()}},
	})

	r := <-done
	require.False(t, r.res.IsError)
	require.Equal(t, types.BitcoinAmount(12345), r.res.Value)
}

func TestClient_PayInvoice_WalletError(t *testing.T) {
	w := newTestWallet(t)
	c, snap := startReadyClient(t, w)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		res types.Result[PayResult]
	}
	done := make(chan result, 1)
	go func() { done <- result{c.PayInvoice(ctx, time.Second, "lnbc1...", nil, nil)} }()

	id := waitForSent(t, w.handle, 1)
	wConv := w.conversation(t)
	ciphertext, err := wConv.Encrypt(`{"result_type":"pay_invoice","result":null,"error":{"code":"INSUFFICIENT_BALANCE","message":"not enough funds"}}`, snap.Descriptor.ActiveEncryption)
	require.NoError(t, err)

	w.handle.Deliver(session.InboundEvent{
		PubKey:  w.creds.WalletPubkey,
		Kind:    23195,
		Content: ciphertext,
		Tags:    [][]string{{"e", id}, {"encryption", snap.Descriptor.ActiveEncryption.WireName()}},
	})

	r := <-done
	require.True(t, r.res.IsError)
	require.Equal(t, "INSUFFICIENT_BALANCE", r.res.Err.Wallet.Code)
}

func TestClient_MultiPayInvoice_RoundTrip(t *testing.T) {
	w := newTestWallet(t)
	c, snap := startReadyClient(t, w)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	invoices := []MultiInvoice{{ID: "a", Invoice: "lnbc1a"}, {ID: "b", Invoice: "lnbc1b"}}
	type result struct {
		res types.Result[map[string]types.MultiResult[PayResult]]
	}
	done := make(chan result, 1)
	go func() { done <- result{c.MultiPayInvoice(ctx, 2*time.Second, invoices)} }()

	idA := waitForSent(t, w.handle, 1)
	idB := waitForSent(t, w.handle, 2)

	wConv := w.conversation(t)
	for key, id := range map[string]string{"a": idA, "b": idB} {
		ciphertext, err := wConv.Encrypt(`{"result_type":"multi_pay_invoice","result":{"preimage":"`+key+`"},"error":null}`, snap.Descriptor.ActiveEncryption)
		require.NoError(t, err)
		w.handle.Deliver(session.InboundEvent{
			PubKey:  w.creds.WalletPubkey,
			Kind:    23195,
			Content: ciphertext,
			Tags: [][]string{
				{"e", id},
				{"d", key},
				{"encryption", snap.Descriptor.ActiveEncryption.WireName()},
			},
		})
	}

	r := <-done
	require.False(t, r.res.IsError)
	require.Len(t, r.res.Value, 2)
	require.Equal(t, "a", r.res.Value["a"].Value.Preimage)
	require.Equal(t, "b", r.res.Value["b"].Value.Preimage)
}

func TestClient_Notifications_Delivered(t *testing.T) {
	w := newTestWallet(t)
	c, snap := startReadyClient(t, w)
	defer c.Close()

	sub := c.Notifications()
	defer sub.Close()

	wConv := w.conversation(t)
	ciphertext, err := wConv.Encrypt(`{"notification_type":"payment_received","notification":{"amount":500}}`, snap.Descriptor.ActiveEncryption)
	require.NoError(t, err)

	w.handle.Deliver(session.InboundEvent{
		PubKey:  w.creds.WalletPubkey,
		Kind:    23197,
		Content: ciphertext,
		Tags:    [][]string{{"encryption", snap.Descriptor.ActiveEncryption.WireName()}},
	})

	select {
	case n := <-sub.Notifications():
		require.Equal(t, "payment_received", n.Type.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestClient_DescribeWallet_ReturnsDescriptor(t *testing.T) {
	w := newTestWallet(t)
	c, snap := startReadyClient(t, w)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := c.DescribeWallet(ctx, time.Second)
	require.False(t, res.IsError)
	require.Equal(t, snap.Descriptor.ActiveEncryption, res.Value.ActiveEncryption)
}

func TestClient_NewClient_RequiresRelays(t *testing.T) {
	w := newTestWallet(t)
	w.creds.Relays = nil
	_, err := NewClient(context.Background(), w.creds, &sessionfake.Provider{Handle: w.handle})
	require.Error(t, err)
}

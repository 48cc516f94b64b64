package crypto

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

func TestConversation_RoundTrip(t *testing.T) {
	clientSecret := nostr.GeneratePrivateKey()
	walletSecret := nostr.GeneratePrivateKey()
	walletPubkey, err := nostr.GetPublicKey(walletSecret)
	require.NoError(t, err)

	clientConv, err := NewConversation(clientSecret, walletPubkey)
	require.NoError(t, err)
	defer clientConv.Close()

	clientPubkey, err := nostr.GetPublicKey(clientSecret)
	require.NoError(t, err)
	walletConv, err := NewConversation(walletSecret, clientPubkey)
	require.NoError(t, err)
	defer walletConv.Close()

	for _, scheme := range []types.EncryptionScheme{types.SchemeNIP44V2, types.SchemeNIP04} {
		ct, err := clientConv.Encrypt("hello wallet", scheme)
		require.NoError(t, err)

		pt, err := walletConv.Decrypt(ct, scheme)
		require.NoError(t, err)
		require.Equal(t, "hello wallet", pt)
	}
}

func TestConversation_UnknownScheme(t *testing.T) {
	clientSecret := nostr.GeneratePrivateKey()
	walletSecret := nostr.GeneratePrivateKey()
	walletPubkey, err := nostr.GetPublicKey(walletSecret)
	require.NoError(t, err)

	conv, err := NewConversation(clientSecret, walletPubkey)
	require.NoError(t, err)
	defer conv.Close()

	_, err = conv.Encrypt("x", types.SchemeUnknown)
	require.Error(t, err)

	_, err = conv.Decrypt("x", types.SchemeUnknown)
	require.Error(t, err)
}

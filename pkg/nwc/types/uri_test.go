package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConnectionURI_Full(t *testing.T) {
	uri := "nostr+walletconnect://" +
		"b889ff5b1513b641e2a139f661a661364979c5beee91842f8f0ef42ab558b99" +
		"?relay=wss%3A%2F%2Frelay1.example&relay=wss%3A%2F%2Frelay2.example" +
		"&secret=deadbeef&lud16=user%40example.com"

	creds, err := ParseConnectionURI(uri)
	require.NoError(t, err)
	require.Equal(t, "b889ff5b1513b641e2a139f661a661364979c5beee91842f8f0ef42ab558b99", creds.WalletPubkey)
	require.Equal(t, []string{"wss://relay1.example", "wss://relay2.example"}, creds.Relays)
	require.Equal(t, "deadbeef", creds.ClientSecret)
	require.True(t, creds.HasLUD16)
	require.Equal(t, "user@example.com", creds.LUD16)
}

func TestParseConnectionURI_CaseInsensitiveScheme(t *testing.T) {
	uri := "NOSTR+WALLETCONNECT://abc123?relay=wss%3A%2F%2Frelay.example&secret=xyz"
	creds, err := ParseConnectionURI(uri)
	require.NoError(t, err)
	require.Equal(t, "abc123", creds.WalletPubkey)
}

func TestParseConnectionURI_DedupesRelays(t *testing.T) {
	uri := "nostr+walletconnect://abc123" +
		"?relay=wss%3A%2F%2Frelay.example&relay=wss%3A%2F%2Frelay.example&secret=xyz"
	creds, err := ParseConnectionURI(uri)
	require.NoError(t, err)
	require.Equal(t, []string{"wss://relay.example"}, creds.Relays)
}

func TestParseConnectionURI_WrongScheme(t *testing.T) {
	_, err := ParseConnectionURI("https://abc123?relay=wss%3A%2F%2Frelay.example&secret=xyz")
	require.Error(t, err)
}

func TestParseConnectionURI_MissingSecret(t *testing.T) {
	_, err := ParseConnectionURI("nostr+walletconnect://abc123?relay=wss%3A%2F%2Frelay.example")
	require.Error(t, err)
}

func TestParseConnectionURI_MissingRelay(t *testing.T) {
	_, err := ParseConnectionURI("nostr+walletconnect://abc123?secret=xyz")
	require.Error(t, err)
}

func TestParseConnectionURI_MissingPubkey(t *testing.T) {
	_, err := ParseConnectionURI("nostr+walletconnect://?relay=wss%3A%2F%2Frelay.example&secret=xyz")
	require.Error(t, err)
}

func TestCredentials_URI_RoundTrips(t *testing.T) {
	creds := Credentials{
		WalletPubkey: "abc123",
		Relays:       []string{"wss://relay1.example", "wss://relay2.example"},
		ClientSecret: "deadbeef",
		LUD16:        "user@example.com",
		HasLUD16:     true,
	}

	reparsed, err := ParseConnectionURI(creds.URI())
	require.NoError(t, err)
	require.Equal(t, creds.WalletPubkey, reparsed.WalletPubkey)
	require.Equal(t, creds.Relays, reparsed.Relays)
	require.Equal(t, creds.ClientSecret, reparsed.ClientSecret)
	require.Equal(t, creds.LUD16, reparsed.LUD16)
}

package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Credentials is the immutable connection bundle for a wallet: its
// pubkey, the relays it's reachable through, the client's own secret
// key, and an optional lightning address.
type Credentials struct {
	WalletPubkey string
	Relays       []string
	ClientSecret string
	LUD16        string
	HasLUD16     bool
}

const scheme = "nostr+walletconnect"

// ParseConnectionURI parses a nostr+walletconnect:// connection string
// per spec.md §6.1: case-insensitive scheme, repeatable ordered
// deduped relay params, required secret, optional lud16.
func ParseConnectionURI(uri string) (Credentials, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid NWC URI: %w", err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return Credentials{}, fmt.Errorf("invalid NWC URI: expected scheme %s, got %s", scheme, u.Scheme)
	}

	walletPubkey := strings.ToLower(u.Host)
	if walletPubkey == "" {
		// some producers put the pubkey in the opaque/path segment instead of Host
		walletPubkey = strings.ToLower(strings.TrimPrefix(u.Opaque, "//"))
		walletPubkey = strings.TrimPrefix(walletPubkey, "/")
	}
	if walletPubkey == "" {
		return Credentials{}, fmt.Errorf("invalid NWC URI: missing wallet pubkey")
	}

	q := u.Query()
	secret := q.Get("secret")
	if secret == "" {
		return Credentials{}, fmt.Errorf("invalid NWC URI: missing secret")
	}

	relays := dedupeTrim(q["relay"])
	if len(relays) == 0 {
		return Credentials{}, fmt.Errorf("invalid NWC URI: at least one relay is required")
	}

	creds := Credentials{
		WalletPubkey: walletPubkey,
		Relays:       relays,
		ClientSecret: strings.ToLower(secret),
	}
	if lud16 := q.Get("lud16"); lud16 != "" {
		creds.LUD16 = lud16
		creds.HasLUD16 = true
	}
	return creds, nil
}

func dedupeTrim(relays []string) []string {
	seen := make(map[string]bool, len(relays))
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// URI re-serializes Credentials into a nostr+walletconnect:// string.
func (c Credentials) URI() string {
	v := url.Values{}
	for _, r := range c.Relays {
		v.Add("relay", r)
	}
	v.Set("secret", c.ClientSecret)
	if c.HasLUD16 {
		v.Set("lud16", c.LUD16)
	}
	return fmt.Sprintf("%s://%s?%s", scheme, c.WalletPubkey, v.Encode())
}

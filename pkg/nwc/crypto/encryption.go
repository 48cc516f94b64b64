// Package crypto adapts the two NIP-47 content-encryption schemes
// (NIP-44 v2 and NIP-04) behind one stateless interface, and picks
// which scheme to use for a given wallet and inbound event.
package crypto

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip44"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// Conversation holds both per-peer secrets, derived once at
// construction and held for the lifetime of the client.
type Conversation struct {
	conversationKey [32]byte
	sharedSecret    []byte
}

// NewConversation derives the NIP-44 conversation key and the NIP-04
// shared secret from (clientSecretHex, walletPubkeyHex).
func NewConversation(clientSecretHex, walletPubkeyHex string) (*Conversation, error) {
	ck, err := nip44.GenerateConversationKey(walletPubkeyHex, clientSecretHex)
	if err != nil {
		return nil, fmt.Errorf("derive nip44 conversation key: %w", err)
	}
	shared, err := nip04.ComputeSharedSecret(walletPubkeyHex, clientSecretHex)
	if err != nil {
		return nil, fmt.Errorf("derive nip04 shared secret: %w", err)
	}
	return &Conversation{conversationKey: ck, sharedSecret: shared}, nil
}

// Encrypt encrypts plaintext under the given scheme.
func (c *Conversation) Encrypt(plaintext string, scheme types.EncryptionScheme) (string, error) {
	switch scheme {
	case types.SchemeNIP44V2:
		ct, err := nip44.Encrypt(plaintext, c.conversationKey)
		if err != nil {
			return "", fmt.Errorf("nip44 encrypt: %w", err)
		}
		return ct, nil
	case types.SchemeNIP04:
		ct, err := nip04.Encrypt(plaintext, c.sharedSecret)
		if err != nil {
			return "", fmt.Errorf("nip04 encrypt: %w", err)
		}
		return ct, nil
	default:
		return "", types.EncryptionUnsupportedFailure("cannot encrypt with an unknown scheme")
	}
}

// Decrypt decrypts ciphertext using the given scheme.
func (c *Conversation) Decrypt(ciphertext string, scheme types.EncryptionScheme) (string, error) {
	switch scheme {
	case types.SchemeNIP44V2:
		pt, err := nip44.Decrypt(ciphertext, c.conversationKey)
		if err != nil {
			return "", fmt.Errorf("nip44 decrypt: %w", err)
		}
		return pt, nil
	case types.SchemeNIP04:
		pt, err := nip04.Decrypt(ciphertext, c.sharedSecret)
		if err != nil {
			return "", fmt.Errorf("nip04 decrypt: %w", err)
		}
		return pt, nil
	default:
		return "", types.EncryptionUnsupportedFailure("cannot decrypt with an unknown scheme")
	}
}

// Close zeroes the key material. The zero value is still usable after
// Close only in the trivial "nothing left to zero" sense — callers
// must not use a Conversation post-Close.
func (c *Conversation) Close() {
	for i := range c.conversationKey {
		c.conversationKey[i] = 0
	}
	for i := range c.sharedSecret {
		c.sharedSecret[i] = 0
	}
}

package crypto

import (
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

// Preference is the fixed scheme preference order from spec.md §4.3.
var Preference = []types.EncryptionScheme{types.SchemeNIP44V2, types.SchemeNIP04}

// Negotiator selects which scheme is active for a wallet, and which
// scheme to use when decrypting a specific inbound event.
type Negotiator struct{}

// Select implements spec.md §4.3 step 1-2: candidates are the
// advertised, non-Unknown schemes; if that set is empty and the info
// event defaulted to NIP-04, candidates become {NIP-04}; otherwise the
// wallet is unusable. The first preferred candidate wins, else any
// candidate.
func (Negotiator) Select(meta types.WalletMetadata) (types.EncryptionScheme, error) {
	candidates := meta.Encryption
	if len(candidates) == 0 {
		if meta.DefaultedToNIP04 {
			candidates = []types.EncryptionScheme{types.SchemeNIP04}
		} else {
			return types.SchemeUnknown, types.EncryptionUnsupportedFailure(
				"wallet advertises no supported encryption scheme")
		}
	}

	for _, pref := range Preference {
		for _, c := range candidates {
			if c == pref {
				return pref, nil
			}
		}
	}
	return candidates[0], nil
}

// InboundDecision is the scheme to try for a specific inbound event,
// and whether it came from an authoritative tag (vs. inferred from
// the currently active scheme).
type InboundDecision struct {
	Scheme      types.EncryptionScheme
	FromTag     bool
}

// ForInboundEvent implements spec.md §4.3's per-event rule: an
// `encryption` tag naming a supported scheme is authoritative;
// otherwise fall back to the currently active scheme.
func (Negotiator) ForInboundEvent(tagValue string, hasTag bool, active types.EncryptionScheme) InboundDecision {
	if hasTag {
		if s := types.ParseScheme(tagValue); s != types.SchemeUnknown {
			return InboundDecision{Scheme: s, FromTag: true}
		}
	}
	return InboundDecision{Scheme: active, FromTag: false}
}

// ShouldRetryWithNIP04 implements the one-shot fallback rule: a
// decryption failure is retried once with NIP-04 only when the scheme
// used was inferred (not tag-authoritative) and the wallet advertises
// NIP-04 support.
func (Negotiator) ShouldRetryWithNIP04(decision InboundDecision, meta types.WalletMetadata) bool {
	if decision.FromTag {
		return false
	}
	if decision.Scheme == types.SchemeNIP04 {
		return false
	}
	return meta.HasEncryption(types.SchemeNIP04) || meta.DefaultedToNIP04
}

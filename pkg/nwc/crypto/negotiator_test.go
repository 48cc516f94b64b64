package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

func TestNegotiator_Select(t *testing.T) {
	tests := []struct {
		name    string
		meta    types.WalletMetadata
		want    types.EncryptionScheme
		wantErr bool
	}{
		{
			name: "prefers nip44 when both advertised",
			meta: types.WalletMetadata{Encryption: []types.EncryptionScheme{types.SchemeNIP04, types.SchemeNIP44V2}},
			want: types.SchemeNIP44V2,
		},
		{
			name: "falls back to nip04 when only nip04 advertised",
			meta: types.WalletMetadata{Encryption: []types.EncryptionScheme{types.SchemeNIP04}},
			want: types.SchemeNIP04,
		},
		{
			name: "empty + defaulted uses nip04",
			meta: types.WalletMetadata{DefaultedToNIP04: true},
			want: types.SchemeNIP04,
		},
		{
			name:    "empty without default is unusable",
			meta:    types.WalletMetadata{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, err := (Negotiator{}).Select(tt.meta)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, scheme)
		})
	}
}

func TestNegotiator_ForInboundEvent(t *testing.T) {
	n := Negotiator{}

	d := n.ForInboundEvent("nip04", true, types.SchemeNIP44V2)
	require.Equal(t, types.SchemeNIP04, d.Scheme)
	require.True(t, d.FromTag)

	d = n.ForInboundEvent("garbage", true, types.SchemeNIP44V2)
	require.Equal(t, types.SchemeNIP44V2, d.Scheme)
	require.False(t, d.FromTag)

	d = n.ForInboundEvent("", false, types.SchemeNIP04)
	require.Equal(t, types.SchemeNIP04, d.Scheme)
	require.False(t, d.FromTag)
}

func TestNegotiator_ShouldRetryWithNIP04(t *testing.T) {
	n := Negotiator{}
	meta := types.WalletMetadata{Encryption: []types.EncryptionScheme{types.SchemeNIP44V2, types.SchemeNIP04}}

	require.True(t, n.ShouldRetryWithNIP04(InboundDecision{Scheme: types.SchemeNIP44V2, FromTag: false}, meta))
	require.False(t, n.ShouldRetryWithNIP04(InboundDecision{Scheme: types.SchemeNIP44V2, FromTag: true}, meta))
	require.False(t, n.ShouldRetryWithNIP04(InboundDecision{Scheme: types.SchemeNIP04, FromTag: false}, meta))

	noFallback := types.WalletMetadata{Encryption: []types.EncryptionScheme{types.SchemeNIP44V2}}
	require.False(t, n.ShouldRetryWithNIP04(InboundDecision{Scheme: types.SchemeNIP44V2, FromTag: false}, noFallback))
}

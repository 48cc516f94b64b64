package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The three literal examples from spec.md §8 scenario S9.
func TestAggregate_S9Examples(t *testing.T) {
	cases := []struct {
		name string
		in   []RelaySnapshot
		want ConnectionState
	}{
		{
			name: "one ready one disconnected is degraded",
			in: []RelaySnapshot{
				{URL: "a", State: RelayConnected},
				{URL: "b", State: RelayDisconnected},
			},
			want: ConnDegraded,
		},
		{
			name: "one failed one connecting is failed",
			in: []RelaySnapshot{
				{URL: "a", State: RelayFailed},
				{URL: "b", State: RelayConnecting},
			},
			want: ConnFailed,
		},
		{
			name: "both ready is ready",
			in: []RelaySnapshot{
				{URL: "a", State: RelayConnected},
				{URL: "b", State: RelayConnected},
			},
			want: ConnReady,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Aggregate(tc.in))
		})
	}
}

func TestAggregate_NoRelaysIsDisconnected(t *testing.T) {
	require.Equal(t, ConnDisconnected, Aggregate(nil))
}

func TestAggregate_AnyConnectedWinsOverFailed(t *testing.T) {
	// A relay connected and another outright failed must still read as
	// Degraded, not Failed — failure only dominates when nothing is
	// connected, matching §4.6's R/F partition (PartialReady requires
	// only R != empty, independent of what's in F).
	got := Aggregate([]RelaySnapshot{
		{URL: "a", State: RelayConnected},
		{URL: "b", State: RelayFailed},
	})
	require.Equal(t, ConnDegraded, got)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

func TestPipeline_PublishFansOutToAllSubscribers(t *testing.T) {
	p := NewPipeline()
	a := p.Subscribe()
	b := p.Subscribe()
	defer a.Close()
	defer b.Close()

	p.Publish(types.Notification{Type: types.UnknownableToken{Token: "payment_received", IsKnown: true}})

	na := <-a.Notifications()
	nb := <-b.Notifications()
	require.Equal(t, "payment_received", na.Type.Token)
	require.Equal(t, "payment_received", nb.Type.Token)
}

func TestPipeline_DropsOldestWhenFull(t *testing.T) {
	p := NewPipeline()
	sub := p.Subscribe()
	defer sub.Close()

	for i := 0; i < notificationCapacity+5; i++ {
		p.Publish(types.Notification{Type: types.UnknownableToken{Token: "payment_received", IsKnown: true}})
	}

	count := 0
	for {
		select {
		case <-sub.Notifications():
			count++
		default:
			require.Equal(t, notificationCapacity, count)
			return
		}
	}
}

func TestPipeline_CloseUnblocksSubscribers(t *testing.T) {
	p := NewPipeline()
	sub := p.Subscribe()

	p.Close()

	_, ok := <-sub.Notifications()
	require.False(t, ok)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	p := NewPipeline()
	sub := p.Subscribe()
	sub.Close()

	// Publish after close must not panic or deliver anywhere.
	p.Publish(types.Notification{Type: types.UnknownableToken{Token: "payment_sent", IsKnown: true}})

	select {
	case _, ok := <-sub.Notifications():
		require.False(t, ok)
	default:
	}
}

package trades

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/types"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	_, ch1 := bus.Subscribe()
	_, ch2 := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	update := []models.Trade{
		{TokenID: "1", Type: types.TradeMint, Amount: "1", Cost: "100", Timestamp: 10},
	}
	bus.Publish(update)

	require.Len(t, <-ch1, 1)
	require.Len(t, <-ch2, 1)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Unknown ids are ignored.
	bus.Unsubscribe("not-a-subscriber")
}

func TestBus_EmptyPublishIsDropped(t *testing.T) {
	bus := NewBus()

	_, ch := bus.Subscribe()
	bus.Publish(nil)

	select {
	case <-ch:
		t.Fatal("expected no delivery for an empty update")
	default:
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()

	_, ch := bus.Subscribe()
	update := []models.Trade{
		{TokenID: "1", Type: types.TradeMint, Amount: "1", Cost: "100", Timestamp: 10},
	}

	// Fill the buffer and then some; extra publishes are dropped, not
	// blocked on.
	for i := 0; i < 100; i++ {
		bus.Publish(update)
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 16, drained)
}

package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cloudforge/auctionhouse/hub"
	"github.com/cloudforge/auctionhouse/models"
)

func TestSubscribe_DeliversSnapshotFirst(t *testing.T) {
	h := hub.New()
	lotID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lot := &models.Lot{ID: lotID, BidCount: 3}
	ch, _ := h.Subscribe(ctx, lotID, lot, time.Now())

	first := <-ch
	require.Equal(t, hub.EventSnapshot, first.Kind)
	require.Equal(t, 3, first.Lot.BidCount)
}

func TestPublish_OrderPreservedPerLot(t *testing.T) {
	h := hub.New()
	lotID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := h.Subscribe(ctx, lotID, &models.Lot{ID: lotID}, time.Now())
	<-ch // drain snapshot

	for i := 0; i < 5; i++ {
		h.Publish(lotID, hub.Event{Kind: hub.EventBid, At: int64(i)})
	}

	for i := 0; i < 5; i++ {
		ev := <-ch
		require.Equal(t, int64(i), ev.At)
	}
}

func TestPublish_DifferentLotsAreIndependent(t *testing.T) {
	h := hub.New()
	lotA, lotB := uuid.New(), uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA, _ := h.Subscribe(ctx, lotA, &models.Lot{ID: lotA}, time.Now())
	chB, _ := h.Subscribe(ctx, lotB, &models.Lot{ID: lotB}, time.Now())
	<-chA
	<-chB

	h.Publish(lotA, hub.Event{Kind: hub.EventBid, At: 1})

	select {
	case ev := <-chA:
		require.Equal(t, int64(1), ev.At)
	case <-time.After(time.Second):
		t.Fatal("expected event on lot A's channel")
	}

	select {
	case ev := <-chB:
		t.Fatalf("unexpected event on lot B's channel: %+v", ev)
	default:
	}
}

func TestSubscribe_DetachOnContextCancel(t *testing.T) {
	h := hub.New()
	lotID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := h.Subscribe(ctx, lotID, &models.Lot{ID: lotID}, time.Now())
	<-ch

	require.Equal(t, 1, h.SubscriberCount(lotID))
	cancel()
	require.Eventually(t, func() bool {
		return h.SubscriberCount(lotID) == 0
	}, time.Second, time.Millisecond)

	_, stillOpen := <-ch
	require.False(t, stillOpen)
}

func TestPublish_SlowSubscriberDetachedNotBlocked(t *testing.T) {
	h := hub.New()
	lotID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := h.Subscribe(ctx, lotID, &models.Lot{ID: lotID}, time.Now())
	<-ch // drain snapshot, never read again

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(lotID, hub.Event{Kind: hub.EventBid, At: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	require.Equal(t, 0, h.SubscriberCount(lotID))
	// draining ch should eventually observe it closed once detached
	for range ch {
	}
}

package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/openlottery/gamemaster/internal/app/events"
)

func TestRandIsStableUntilFed(t *testing.T) {
	svc, err := New(nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	first, err := svc.Rand(ctx)
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	second, err := svc.Rand(ctx)
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	if first.Cmp(second) != 0 {
		t.Fatal("rand changed without a feed")
	}

	if err := svc.Feed(ctx, 42); err != nil {
		t.Fatalf("feed: %v", err)
	}
	third, err := svc.Rand(ctx)
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	if first.Cmp(third) == 0 {
		t.Fatal("feed did not change the randomness")
	}
}

func TestSameSeedStillAdvancesState(t *testing.T) {
	svc, err := New(nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if err := svc.Feed(ctx, 7); err != nil {
		t.Fatalf("feed: %v", err)
	}
	first, _ := svc.Rand(ctx)
	if err := svc.Feed(ctx, 7); err != nil {
		t.Fatalf("feed: %v", err)
	}
	second, _ := svc.Rand(ctx)
	if first.Cmp(second) == 0 {
		t.Fatal("repeated seed must still advance the chain")
	}
}

func TestFeedPublishesEvent(t *testing.T) {
	rb := events.NewRingBuffer(4)
	svc, err := New(rb, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := svc.Feed(context.Background(), 1); err != nil {
		t.Fatalf("feed: %v", err)
	}
	recent := rb.Recent(1)
	if len(recent) != 1 || recent[0].Type != events.OracleSeeded {
		t.Fatalf("expected oracle.seeded event, got %v", recent)
	}
}

type notifyingSource struct {
	Fixed
	fed chan struct{}
}

func (n *notifyingSource) Feed(ctx context.Context, seed int64) error {
	select {
	case n.fed <- struct{}{}:
	default:
	}
	return nil
}

func TestEntropyFeederFeedsAndStops(t *testing.T) {
	source := &notifyingSource{fed: make(chan struct{}, 1)}
	feeder := NewEntropyFeeder(source, 5*time.Millisecond, nil)

	ctx := context.Background()
	if err := feeder.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-source.fed:
	case <-time.After(time.Second):
		t.Fatal("feeder never fed the source")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := feeder.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

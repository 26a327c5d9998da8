package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/observability"
)

func TestInMemoryDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher(4, 1, zap.NewNop())

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{}, 2)
	)
	d.Subscribe(func(_ context.Context, e TransitionEvent) error {
		return errors.New("first handler fails")
	})
	d.Subscribe(func(_ context.Context, e TransitionEvent) error {
		mu.Lock()
		seen = append(seen, e.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx) //nolint:errcheck

	for _, id := range []string{"e1", "e2"} {
		if err := d.Publish(context.Background(), TransitionEvent{ID: id, Kind: domain.TransitionAccept}); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "e1" || seen[1] != "e2" {
		t.Errorf("seen = %v", seen)
	}
}

func TestInMemoryDispatcherPublishNeverBlocks(t *testing.T) {
	d := NewInMemoryDispatcher(1, 1, zap.NewNop())
	if err := d.Publish(context.Background(), TransitionEvent{ID: "a"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := d.Publish(context.Background(), TransitionEvent{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second publish err = %v, want ErrQueueFull", err)
	}
}

func TestInMemoryDispatcherRunStopsOnCancel(t *testing.T) {
	d := NewInMemoryDispatcher(1, 3, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInMemoryDispatcherDrainsQueueOnShutdown(t *testing.T) {
	metrics := observability.NewMetrics()
	d := NewInMemoryDispatcher(16, 1, zap.NewNop(), WithMetrics(metrics))

	var (
		mu        sync.Mutex
		handled   int
		cancelled int
		started   = make(chan struct{}, 1)
	)
	d.Subscribe(func(ctx context.Context, _ TransitionEvent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-time.After(50 * time.Millisecond):
			mu.Lock()
			handled++
			mu.Unlock()
		case <-ctx.Done():
			mu.Lock()
			cancelled++
			mu.Unlock()
		}
		return nil
	})
	for i := 0; i < 5; i++ {
		if err := d.Publish(context.Background(), TransitionEvent{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(stopped)
	}()
	<-started
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if handled != 5 || cancelled != 0 {
		t.Fatalf("handled=%d cancelled=%d, want 5 and 0", handled, cancelled)
	}
	if got := metrics.Snapshot().DroppedEvents; got != 0 {
		t.Fatalf("dropped = %d", got)
	}
}

func TestInMemoryDispatcherDropsAfterDrainTimeout(t *testing.T) {
	metrics := observability.NewMetrics()
	d := NewInMemoryDispatcher(16, 1, zap.NewNop(), WithMetrics(metrics), WithDrainTimeout(30*time.Millisecond))

	var (
		mu      sync.Mutex
		calls   int
		started = make(chan struct{}, 1)
	)
	d.Subscribe(func(ctx context.Context, _ TransitionEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
	for _, id := range []string{"a", "b", "c"} {
		if err := d.Publish(context.Background(), TransitionEvent{ID: id}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(stopped)
	}()
	<-started
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after drain timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if got := metrics.Snapshot().DroppedEvents; got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

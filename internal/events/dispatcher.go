package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticket-service/internal/observability"
)

// DefaultDrainTimeout is how long handlers may keep running once Run's context is done.
const DefaultDrainTimeout = 30 * time.Second

// ErrQueueFull is returned by Publish when the in-memory buffer has no room.
var ErrQueueFull = errors.New("event queue full")

// EventHandler handles a published event.
type EventHandler func(context.Context, TransitionEvent) error

// Publisher accepts events without waiting for them to be handled.
type Publisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}

// Dispatcher decouples publication from handling. Run blocks until ctx is done.
type Dispatcher interface {
	Publisher
	Subscribe(handler EventHandler)
	Run(ctx context.Context) error
}

// Option configures a dispatcher.
type Option func(*handlerSet)

// WithDrainTimeout sets the shutdown budget for queued and in-flight events.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *handlerSet) {
		if d > 0 {
			h.drainTimeout = d
		}
	}
}

// WithMetrics records events dropped at shutdown.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *handlerSet) { h.metrics = m }
}

type handlerSet struct {
	mu           sync.RWMutex
	handlers     []EventHandler
	logger       *zap.Logger
	metrics      *observability.Metrics
	drainTimeout time.Duration
}

func newHandlerSet(logger *zap.Logger, opts []Option) handlerSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := handlerSet{logger: logger, drainTimeout: DefaultDrainTimeout}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func (h *handlerSet) add(handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// handlerContext detaches handlers from ctx so a committed transition's
// fan-out survives shutdown. The returned context is cancelled drainTimeout
// after ctx is done, or when stop is called.
func (h *handlerSet) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	handlerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-handlerCtx.Done():
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(h.drainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			stop()
		case <-handlerCtx.Done():
		}
	}()
	return handlerCtx, stop
}

func (h *handlerSet) invoke(ctx context.Context, event TransitionEvent) {
	h.mu.RLock()
	handlers := append([]EventHandler{}, h.handlers...)
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			h.logger.Error("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("ticket_id", event.Ticket.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))
		}
	}
}

func (h *handlerSet) drop(event TransitionEvent, reason string) {
	h.metrics.RecordDroppedEvent()
	h.logger.Error("dropping transition event",
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.Ticket.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("reason", reason))
}

// inMemoryDispatcher buffers events in a channel drained by a fixed worker pool.
type inMemoryDispatcher struct {
	handlerSet
	queue   chan TransitionEvent
	workers int
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(bufferSize, workers int, logger *zap.Logger, opts ...Option) Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &inMemoryDispatcher{
		handlerSet: newHandlerSet(logger, opts),
		queue:      make(chan TransitionEvent, bufferSize),
		workers:    workers,
	}
}

// Publish enqueues the event or fails immediately when the buffer is full.
func (d *inMemoryDispatcher) Publish(_ context.Context, event TransitionEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe registers a handler for every event.
func (d *inMemoryDispatcher) Subscribe(handler EventHandler) {
	d.add(handler)
}

// Run handles events until ctx is done, then keeps draining the buffer until
// it is empty or the drain timeout passes. Events left over are dropped and logged.
func (d *inMemoryDispatcher) Run(ctx context.Context) error {
	handlerCtx, stop := d.handlerContext(ctx)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					d.drain(handlerCtx)
					return
				}
				select {
				case <-ctx.Done():
				case event := <-d.queue:
					d.invoke(handlerCtx, event)
				}
			}
		}()
	}
	wg.Wait()

	for {
		select {
		case event := <-d.queue:
			d.drop(event, "drain timeout")
		default:
			return nil
		}
	}
}

func (d *inMemoryDispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case event := <-d.queue:
			d.invoke(ctx, event)
		default:
			return
		}
	}
}

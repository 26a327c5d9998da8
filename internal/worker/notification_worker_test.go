package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/service"
)

func TestNotificationWorkerStopsWithContext(t *testing.T) {
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(4, 2, logger)
	notifier := service.NewNotificationService(service.NotificationDependencies{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := StartNotificationWorker(ctx, dispatcher, notifier, logger)

	select {
	case <-done:
		t.Fatal("worker stopped before cancel")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestNotificationWorkerWithoutDispatcher(t *testing.T) {
	done := StartNotificationWorker(context.Background(), nil, nil, zap.NewNop())
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}

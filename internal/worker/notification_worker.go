package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/service"
)

// StartNotificationWorker registers notification handlers and runs the
// dispatcher until ctx is done and the queued events are drained. The
// returned channel closes once it has stopped.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notificationService *service.NotificationService, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if dispatcher == nil || notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers(dispatcher)

	go func() {
		defer close(done)
		logger.Info("notification worker started")
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("notification worker stopped", zap.Error(err))
			return
		}
		logger.Info("notification worker stopped")
	}()
	return done
}

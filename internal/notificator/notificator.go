package notificator

import (
	"context"
	"runtime/debug"

	"github.com/core-coin/liqnotify/internal/metrics"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// Notificator fans a notification out to every configured sink.
type Notificator struct {
	logger *logger.Logger
	sinks  []models.NotificationSink
}

func NewNotificator(logger *logger.Logger, sinks ...models.NotificationSink) *Notificator {
	return &Notificator{logger: logger, sinks: sinks}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning).
// It returns false if fn panicked.
func (n *Notificator) safeCall(fn func(), context string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

// SendNotification delivers to the sinks in order. A failing sink does not
// stop the others.
func (n *Notificator) SendNotification(ctx context.Context, notification *models.Notification) {
	for _, sink := range n.sinks {
		var err error
		ok := n.safeCall(func() { err = sink.Send(ctx, notification) }, sink.Name()+"Notification")

		result := "ok"
		switch {
		case !ok:
			result = "panic"
		case err != nil:
			result = "error"
			n.logger.Error("Failed to send notification", "sink", sink.Name(), "token", notification.Token, "error", err)
		default:
			n.logger.Info("Notification sent", "sink", sink.Name(), "token", notification.Token,
				"subscribers", len(notification.Subscribers))
		}
		metrics.NotificationsTotal.WithLabelValues(sink.Name(), result).Inc()
	}
}

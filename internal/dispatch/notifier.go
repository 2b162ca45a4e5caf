// README: Outbound notifications. The log notifier is the default; FCM
// is used when Firebase credentials are configured. Both are
// fire-and-forget so a push outage never blocks a ride transition.
package dispatch

import (
	"context"
	"time"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"savari/internal/types"
)

// TokenResolver maps a user to their current device token. Returns an
// empty string when the user has no registered device.
type TokenResolver interface {
	DeviceToken(ctx context.Context, userID types.ID) (string, error)
}

// LogNotifier writes notifications to the log stream. Used in
// development and as the fallback when FCM is not configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string) {
	n.log.Info("notification",
		zap.String("user_id", string(userID)),
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("meta", meta))
}

// FCMNotifier delivers pushes through Firebase Cloud Messaging.
type FCMNotifier struct {
	client *messaging.Client
	tokens TokenResolver
	log    *zap.Logger
}

func NewFCMNotifier(client *messaging.Client, tokens TokenResolver, log *zap.Logger) *FCMNotifier {
	return &FCMNotifier{client: client, tokens: tokens, log: log}
}

func (n *FCMNotifier) Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string) {
	token, err := n.tokens.DeviceToken(ctx, userID)
	if err != nil || token == "" {
		n.log.Debug("no device token", zap.String("user_id", string(userID)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err = n.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: meta,
	})
	if err != nil {
		n.log.Warn("fcm send failed", zap.String("user_id", string(userID)), zap.Error(err))
	}
}

package models

import "context"

// Notification is a liquidity broadcast for one token.
type Notification struct {
	Token       string   `json:"token"`
	Symbol      string   `json:"symbol"`
	Subscribers []string `json:"subscribers"`
	// Amount is the formatted amount of the transfer that fired the watch.
	Amount string `json:"amount"`
}

// NotificationSink delivers a notification to one chat platform.
type NotificationSink interface {
	Name() string
	Send(ctx context.Context, notification *Notification) error
}

// NotificationService fans a notification out to every configured sink.
type NotificationService interface {
	SendNotification(ctx context.Context, notification *Notification)
}

package models

import (
	"context"
	"time"
)

// SubscribeOutcome tells the chat layer how a subscription request ended.
type SubscribeOutcome int

const (
	// OutcomeFailed means a storage or watcher error aborted the request.
	OutcomeFailed SubscribeOutcome = iota
	// OutcomeAlreadySubscribed means the user was already waiting on the token.
	OutcomeAlreadySubscribed
	// OutcomeInvalidToken means the symbol lookup failed.
	OutcomeInvalidToken
	// OutcomeCreated means the token was new: a watcher was armed and an entry created.
	OutcomeCreated
	// OutcomeJoined means the user was appended to a token already being watched.
	OutcomeJoined
)

func (o SubscribeOutcome) String() string {
	switch o {
	case OutcomeAlreadySubscribed:
		return "already_subscribed"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeCreated:
		return "created"
	case OutcomeJoined:
		return "joined"
	}
	return "failed"
}

// WatcherInfo describes one armed token listener.
type WatcherInfo struct {
	Token   string    `json:"token"`
	State   string    `json:"state"`
	ArmedAt time.Time `json:"armed_at"`
}

// LiqnotifyI is the application surface used by the chat and HTTP layers.
type LiqnotifyI interface {
	// Start re-arms every pending subscription.
	Start(ctx context.Context) error
	Stop()

	// Subscribe runs the !liq flow for user and token.
	Subscribe(ctx context.Context, token, user string) (SubscribeOutcome, string, error)

	// Reconcile arms pending tokens that have no listener and disarms
	// listeners whose token left the registry.
	Reconcile(ctx context.Context) error

	Subscriptions() ([]Subscription, error)
	Subscription(token string) (*Subscription, error)
	Watchers() []WatcherInfo
}

// APIServer serves the read-only status API.
type APIServer interface {
	// Start blocks until the server is shut down.
	Start()
	Shutdown() error
}

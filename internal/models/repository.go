package models

// Repository is the subscription registry. Every call reloads the full
// registry from its backend and every mutation writes it back.
type Repository interface {
	Load() ([]Subscription, error)
	Save(subscriptions []Subscription) error

	Exists(token string) (bool, error)
	IsSubscribed(token, user string) (bool, error)
	// SubscribersOf returns the users of token, and false when the token is
	// not in the registry.
	SubscribersOf(token string) ([]string, bool, error)

	// AddSubscription appends a new entry. The caller makes sure token is not
	// tracked yet.
	AddSubscription(token, user string) error
	// AddUser appends user to an existing entry, and is a no-op when token is
	// not tracked.
	AddUser(token, user string) error
	// Remove deletes the first entry for token, if any.
	Remove(token string) error

	Close() error
}

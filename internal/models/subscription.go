package models

import "errors"

// ErrSubscriptionNotFound is returned when a token is not in the registry.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Subscription pairs a token contract with the chat users waiting for its
// liquidity event.
type Subscription struct {
	// TokenAddress is the token contract address, matched exactly (case-sensitive).
	TokenAddress string `json:"token_address"`
	// Users are chat user IDs in the order they subscribed. Uniqueness is by
	// convention only.
	Users []string `json:"users"`
}

// HasUser reports whether user is one of the subscribers.
func (s Subscription) HasUser(user string) bool {
	for _, u := range s.Users {
		if u == user {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so callers can hand subscriptions out without
// sharing the users slice.
func (s Subscription) Clone() Subscription {
	users := make([]string, len(s.Users))
	copy(users, s.Users)
	return Subscription{TokenAddress: s.TokenAddress, Users: users}
}

package types

import "time"

// Credential is the process-wide Graph API bearer credential. A single
// writer (the token lifecycle manager) replaces the whole value on every
// refresh; readers obtain an immutable snapshot and never mutate it.
//
// The token values are typed SecretString so a Credential can be logged
// or dumped without leaking material.
type Credential struct {
	AccessToken  SecretString `json:"access_token"`
	RefreshToken SecretString `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         string       `json:"user"`
}

// Valid reports whether the credential holds a token that has not yet
// expired at the given instant.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// Subscription is a time-bounded registration with the chat platform to
// receive change notifications for a resource. At most one active
// subscription per resource path is maintained (query-before-create,
// then renew-in-place).
type Subscription struct {
	ID        string    `json:"id"`
	Resource  string    `json:"resource"`
	ExpiresAt time.Time `json:"expirationDateTime"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

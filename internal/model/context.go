package model

import "time"

// ProviderContext is one prioritized context fragment produced by a provider.
// Fragments are recomputed every decision cycle and never persisted.
type ProviderContext struct {
	Provider  string     `json:"provider"`
	Content   string     `json:"content"`
	Priority  int        `json:"priority"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the fragment has an expiry in the past.
func (c ProviderContext) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

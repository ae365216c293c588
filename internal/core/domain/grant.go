package domain

import "time"

// ExpiryFrom converts a relative grant lifetime to an absolute instant; zero means permanent.
func ExpiryFrom(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	at := now.Add(ttl)
	return &at
}

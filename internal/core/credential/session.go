package credential

import "time"

// SessionActive reports whether a session expiring at expiresAt is still
// valid at now. A session is dead from the instant it expires.
func SessionActive(expiresAt, now time.Time) bool {
	return now.Before(expiresAt)
}

// Package user defines the administrative account entity: a bearer-token
// authenticated operator able to acknowledge/resolve alerts and inspect the
// cluster (spec.md §6). It lives in domain/, rather than a store package,
// so every backend and consumer shares one type.
package user

import "time"

// User is an administrative account.
type User struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time
}

// Package identity holds the user records certificates are issued against.
package identity

import "time"

// User is one registered identity. The certificate core treats the ID as an
// opaque key; everything else exists for the API layer.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Created      time.Time
	Active       time.Time
}

package model

import "time"

// User is a registered account. Username is the identity key.
type User struct {
	Username    string    `json:"username"`
	Password    string    `json:"password,omitempty"` // plaintext on requests, bcrypt hash at rest
	DisplayName string    `json:"displayName"`
	Online      bool      `json:"online"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Equal reports whether two users share an identity
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Username == other.Username
}

// Public returns a copy safe to send to other clients
func (u User) Public() User {
	u.Password = ""
	return u
}

package db

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Credentials carries a recovered username/password pair between token
// decryption and connection-string construction. The password lives in a
// memguard enclave so it is encrypted in memory except for the brief
// window in which the connection URI is assembled.
type Credentials struct {
	Username string
	password *memguard.Enclave
}

// NewCredentials seals the password into an enclave. The caller should
// drop its own copy of the plaintext as soon as possible.
func NewCredentials(username, password string) *Credentials {
	c := &Credentials{Username: username}
	if password != "" {
		c.password = memguard.NewEnclave([]byte(password))
	}
	return c
}

// Matches reports whether the pair equals the given plaintext values,
// opening the enclave only for the duration of the comparison.
func (c *Credentials) Matches(username, password string) bool {
	if c.Username != username {
		return false
	}
	buf, err := c.openPassword()
	if err != nil {
		return false
	}
	if buf == nil {
		return password == ""
	}
	defer buf.Destroy()
	return buf.String() == password
}

// openPassword decrypts the enclave. The returned buffer, when non-nil,
// must be destroyed by the caller. A nil buffer means the password was
// empty.
func (c *Credentials) openPassword() (*memguard.LockedBuffer, error) {
	if c.password == nil {
		return nil, nil
	}
	buf, err := c.password.Open()
	if err != nil {
		return nil, fmt.Errorf("db: opening password enclave: %w", err)
	}
	return buf, nil
}

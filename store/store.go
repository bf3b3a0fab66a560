package store

import "errors"

// Keys under which the session is persisted. The record and the token are
// independent entries but are always written and cleared together.
const (
	KeyCurrentUser = "currentUser"
	KeyToken       = "jwtToken"
)

var ErrClosed = errors.New("store is closed")

// Store is the persisted key-value session store, the local-storage of the
// client. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and whether the key was present.
	Get(key string) (string, bool, error)

	// Set creates or overwrites the key.
	Set(key, value string) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(key string) error
}

// Clear removes both session keys.
func Clear(s Store) error {
	return errors.Join(s.Remove(KeyCurrentUser), s.Remove(KeyToken))
}

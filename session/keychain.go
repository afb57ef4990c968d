package session

import "context"

// Persisted-state keys. Both are always written and cleared together; finding
// only one of them on bootstrap reads as "no session".
const (
	KeyAuthToken   = "auth_token"
	KeyUserSession = "user_session"
)

// Keychain is the device secure key/value store the session is persisted to.
// Implementations: securefile.Store (encrypted file), keychainfakes.FakeKeychain.
type Keychain interface {
	// Get returns the stored value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

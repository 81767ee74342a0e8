// Package storage provides the key-value persistence behind the session
// store. The session survives process restarts the way a browser session
// survives a page reload: by writing the credential keys to durable
// storage and reading them back on startup.
package storage

// Keys under which the session store persists its state. All three are
// written and cleared together; refreshToken may be absent when a login
// response did not include one.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Storage is a minimal string key-value store. Implementations must be
// safe for concurrent use.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set writes key to value, overwriting any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Clear removes every key. Idempotent.
	Clear() error
}

// storage.go - Pluggable key/value persistence for scan state.
//
// The scanner checkpoints its fetch offset and the owner's encrypted
// outputs between runs. Anything that can hold small string pairs works;
// the interface is intentionally tiny.

package storage

// Backend persists string pairs across client sessions.
type Backend interface {
	// Get returns the value for key, or ("", nil) when absent.
	Get(key string) (string, error)
	// Set stores the value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
	// Clear drops every stored pair.
	Clear() error
}

// Package cache provides a TTL cache; the gate uses it to hold each
// symbol on cooldown after an execution attempt.
package cache

import "time"

// Cache is a TTL key-value cache.
type Cache interface {
	// Get returns (value, true) when the key is present and unexpired.
	Get(key string) (interface{}, bool)

	// Set stores a value until its TTL lapses. The write is best-effort;
	// false means the cache declined the entry.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a key.
	Delete(key string)

	// Clear drops every entry.
	Clear()

	// Close releases the cache's resources.
	Close()
}

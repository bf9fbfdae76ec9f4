// Package kv provides the durable key-value medium backing the session store.
// Implementations must survive process restarts (FileStore, RedisStore) or
// serve as test doubles (MemoryStore).
package kv

import "context"

// Store is the contract the session layer requires of a durable medium.
// Get returns found=false for absent keys rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Package shard provides keyed mutexes so in-memory stores serialize work per
// key without a single global lock.
package shard

import "sync"

// Count is the number of shards in a Locks.
const Count = 128

// Locks is a fixed array of mutexes selected by key hash.
type Locks struct {
	shards [Count]sync.Mutex
}

// Index returns the shard a key maps to.
func Index(key string) int {
	return int(hashString(key) % Count)
}

// Lock acquires the shard for key and returns its unlock function.
func (l *Locks) Lock(key string) func() {
	m := &l.shards[Index(key)]
	m.Lock()
	return m.Unlock
}

// LockIndex acquires shard i directly. Used by sweeps that walk every shard.
func (l *Locks) LockIndex(i int) func() {
	m := &l.shards[i]
	m.Lock()
	return m.Unlock
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

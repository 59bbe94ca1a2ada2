// Package locks serializes state changes per game. Every mutating service
// operation takes the game's lock so read-modify-write sequences against the
// store stay consistent without a global mutex.
package locks

import "sync"

// Keyed hands out one mutex per game number. Locks are never released from
// the map; the population is bounded by the number of games.
type Keyed struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewKeyed creates an empty lock set.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[uint64]*sync.Mutex)}
}

// Lock acquires the mutex for gameNumber and returns its unlock function.
func (k *Keyed) Lock(gameNumber uint64) func() {
	k.mu.Lock()
	l, ok := k.locks[gameNumber]
	if !ok {
		l = &sync.Mutex{}
		k.locks[gameNumber] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

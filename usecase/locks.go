package usecase

import "sync"

// KeyedMutex hands out one mutex per key so callers can serialize work for a
// single user without blocking the rest. The zero value is ready to use.
type KeyedMutex struct {
	mus sync.Map
}

// Lock blocks until the key's mutex is held and returns its unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	v, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

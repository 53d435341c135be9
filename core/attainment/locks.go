package attainment

import "sync"

// keyedMutex serializes work per key; idle keys are released.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	waiters int
}

func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	l, ok := km.locks[key]
	if !ok {
		l = new(keyedLock)
		km.locks[key] = l
	}
	l.waiters++
	km.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		km.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

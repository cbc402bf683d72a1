package filelock

import "sync"

// Keyed serializes writers per key. Within a process, callers for the same
// key wait on a mutex; across processes they wait on the flock of the lock
// file passed to Do.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyed creates an empty Keyed locker.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) mutex(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Do runs fn while holding the in-process mutex for key and the file lock
// at lockPath. An empty lockPath skips the file lock.
func (k *Keyed) Do(key, lockPath string, fn func() error) error {
	m := k.mutex(key)
	m.Lock()
	defer m.Unlock()

	if lockPath == "" {
		return fn()
	}

	fl := New(lockPath)
	if err := fl.Lock(); err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

// Forget drops the mutex for key. Callers use it after the keyed resource
// is deleted; a concurrent Do for the same key simply allocates a new one.
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	delete(k.locks, key)
	k.mu.Unlock()
}

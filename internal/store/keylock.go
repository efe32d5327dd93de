package store

import (
	"sort"
	"sync"
)

// KeyLocker hands out exclusive in-process locks by name. Keys are always
// taken in sorted order so two callers asking for overlapping sets cannot
// deadlock.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until every key is held and returns the function releasing them.
func (l *KeyLocker) Lock(keys ...string) (unlock func()) {
	ordered := NormalizeKeys(keys)

	held := make([]*keyLock, 0, len(ordered))
	for _, k := range ordered {
		kl := l.acquire(k)
		kl.mu.Lock()
		held = append(held, kl)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

func (l *KeyLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		return
	}
	kl.refs--
	if kl.refs <= 0 {
		delete(l.locks, key)
	}
}

func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// NormalizeKeys returns keys sorted with duplicates and empty names removed.
func NormalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

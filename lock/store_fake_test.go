package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soroosh-tanzadeh/nxlock/contracts"
)

// fakeStore is an in-memory contracts.Store. setHook, when set, decides the
// result of every ConditionalSet call instead of the map.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]string

	sets    atomic.Int64
	deletes atomic.Int64

	setHook    func(call int64) (bool, error)
	setCtxHook func(ctx context.Context)
	deleteFail error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]string)}
}

func (f *fakeStore) ConditionalSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	call := f.sets.Add(1)
	if f.setCtxHook != nil {
		f.setCtxHook(ctx)
	}
	if f.setHook != nil {
		return f.setHook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = value
	return true, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) (bool, error) {
	f.deletes.Add(1)
	if f.deleteFail != nil {
		return false, contracts.NewStoreError("delete", key, f.deleteFail)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	delete(f.entries, key)
	return ok, nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

var errConnectionReset = errors.New("connection reset by peer")

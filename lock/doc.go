// Package lock implements a mutual-exclusion lock coordinated through a shared
// key-value store.
//
// A Lock polls the store with an atomic create-if-absent call until it wins,
// is aborted, or runs out of its wait budget:
//
//	l := lock.New("job-42", redisstore.New(client), lock.WithAbortAfter(5*time.Second))
//	if err := l.Acquire(ctx); err != nil {
//	    return err // errors.Is(err, contracts.ErrAcquireFailed)
//	}
//	defer l.Release(ctx)
//
// The store is the only point of serialization. There is no queueing of
// waiters and no fencing: Release deletes the key unconditionally, and a key
// that expires while its holder is still working is simply lost. ReleaseOwned
// and Refresh are owner-checked alternatives for stores that support them.
package lock

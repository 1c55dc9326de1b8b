package contracts

import "context"

// RetryFunc is called once after every failed acquisition attempt.
type RetryFunc func()

type Lock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Abort()
	OnRetry(callback RetryFunc)
}

package contracts

type LockError string

func (e LockError) Error() string { return string(e) }

// Is lets ErrAborted and ErrTimedOut also match the generic ErrAcquireFailed.
func (e LockError) Is(target error) bool {
	t, ok := target.(LockError)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t == ErrAcquireFailed && (e == ErrAborted || e == ErrTimedOut)
}

const (
	ErrAcquireFailed        LockError = "lock: acquire failed"
	ErrAborted              LockError = "lock: acquisition aborted"
	ErrTimedOut             LockError = "lock: acquisition timed out"
	ErrAcquireInProgress    LockError = "lock: acquisition already in progress"
	ErrAlreadyHeld          LockError = "lock: already held"
	ErrNotHeld              LockError = "lock: not held"
	ErrLockLost             LockError = "lock: ownership lost"
	ErrOwnershipUnsupported LockError = "lock: store does not support owner checks"
)

// StoreError is a transport or protocol failure reported by a Store, as
// opposed to a conditional operation that simply did not apply.
type StoreError struct {
	op  string
	key string
	err error
}

func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{
		op:  op,
		key: key,
		err: err,
	}
}

func (s *StoreError) Error() string {
	return "store " + s.op + " " + s.key + ": " + s.err.Error()
}

func (s *StoreError) Unwrap() error {
	return s.err
}

func (s *StoreError) GetOp() string {
	return s.op
}

func (s *StoreError) GetKey() string {
	return s.key
}

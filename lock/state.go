package lock

type State uint32

// abortBit is set on the stored state word while an acquisition is asked to
// stop. It only ever accompanies StateAcquiring and is dropped by the
// transition out of it.
const abortBit uint32 = 1 << 31

const (
	StateIdle State = iota
	StateAcquiring
	StateHeld
	StateReleased
	StateAborted
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateHeld:
		return "held"
	case StateReleased:
		return "released"
	case StateAborted:
		return "aborted"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

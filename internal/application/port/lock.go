package port

// ProcessLock is a lock shared across processes on the same host
type ProcessLock interface {
	// TryLock acquires the lock without blocking. It returns false when another holder has it.
	TryLock() (bool, error)
	Unlock() error
}

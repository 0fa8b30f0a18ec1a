package fund

import "context"

// Store owns fund rows. Controllers never mutate funds directly; every
// compound check-then-act sequence runs inside WithLock.
type Store interface {
	// Get reads a fund without locking it.
	Get(ctx context.Context, memberID, currency string) (Fund, error)

	// Create provisions a zero-balance fund. Creating an existing fund is a
	// no-op returning the stored row.
	Create(ctx context.Context, memberID, currency string) (Fund, error)

	// WithLock acquires an exclusive lock on the fund row (creating it lazily
	// on first reference), applies fn to the mutable fund, re-checks the
	// invariant and commits. Concurrent WithLock calls on the same
	// (member, currency) pair serialize. An error from fn, or an invariant
	// violation, aborts without committing.
	WithLock(ctx context.Context, memberID, currency string, fn func(*Fund) error) (Fund, error)
}

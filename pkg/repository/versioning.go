package repository

import (
	"errors"
	"fmt"
)

// Versioned is implemented by entities that use optimistic locking. UpdateItem
// only succeeds when the stored version equals GetVersion, and stores the
// incremented version.
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// ErrOptimisticLock matches every *OptimisticLockError through errors.Is.
var ErrOptimisticLock = errors.New("optimistic lock failed")

// OptimisticLockError is returned when an optimistic lock conflict is detected
type OptimisticLockError struct {
	EntityID string
	Expected int64
	Actual   int64
}

// Error describes the conflicting versions.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failed for entity %s: expected version %d, got %d",
		e.EntityID, e.Expected, e.Actual)
}

// Is reports whether target is ErrOptimisticLock.
func (e *OptimisticLockError) Is(target error) bool {
	return target == ErrOptimisticLock
}

// NewOptimisticLockError creates a new OptimisticLockError
func NewOptimisticLockError(entityID string, expected, actual int64) *OptimisticLockError {
	return &OptimisticLockError{
		EntityID: entityID,
		Expected: expected,
		Actual:   actual,
	}
}

// AsVersioned returns item as Versioned when it implements it.
func AsVersioned(item any) (Versioned, bool) {
	v, ok := item.(Versioned)
	return v, ok
}

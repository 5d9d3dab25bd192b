package entity

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time for lifecycle stamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies identifiers for new records.
type IDGenerator interface {
	NewID() string
}

// Normalize converts t to UTC at millisecond precision, the resolution both
// SQL timestamps and BSON dates round-trip without loss.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the normalized current time.
func (SystemClock) Now() time.Time {
	return Normalize(time.Now())
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return Normalize(f())
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return Normalize(time.Time(c))
}

// UUIDGenerator produces random (v4) UUID strings.
type UUIDGenerator struct{}

// NewID returns a new random UUID.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator produces deterministic UUID-shaped identifiers
// 00000000-0000-0000-0000-000000000001, ...002 and so on. Safe for concurrent use.
type SequenceGenerator struct {
	next atomic.Uint64
}

// NewID returns the next identifier in the sequence.
func (g *SequenceGenerator) NewID() string {
	n := g.next.Add(1)
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

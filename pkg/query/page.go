package query

import (
	"errors"
	"fmt"
)

// Paging defaults applied when a request leaves a value at zero.
const (
	DefaultPageSize  = 5
	DefaultPageIndex = 1
)

// ErrInvalidPage is returned for negative page sizes or indices.
var ErrInvalidPage = errors.New("invalid page")

// PageRequest selects one page of a filtered, ordered result set.
// Index is 1-based. Sort names a field, prefixed with NegationMarker for
// descending order. Include lists related collections separated by commas.
type PageRequest struct {
	Size    int
	Index   int
	Sort    string
	Include string
}

// Normalize applies defaults to zero values and rejects negative ones.
func (p PageRequest) Normalize() (PageRequest, error) {
	size, err := NormalizePageSize(p.Size)
	if err != nil {
		return p, err
	}
	if p.Index < 0 {
		return p, fmt.Errorf("%w: page index %d", ErrInvalidPage, p.Index)
	}
	if p.Index == 0 {
		p.Index = DefaultPageIndex
	}
	p.Size = size
	return p, nil
}

// Offset returns how many records precede the page.
func (p PageRequest) Offset() int {
	if p.Index <= 1 {
		return 0
	}
	return (p.Index - 1) * p.Limit()
}

// Limit returns the maximum number of records on the page.
func (p PageRequest) Limit() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	return p.Size
}

// NormalizePageSize returns DefaultPageSize for zero and rejects negatives.
func NormalizePageSize(size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: page size %d", ErrInvalidPage, size)
	}
	if size == 0 {
		return DefaultPageSize, nil
	}
	return size, nil
}

// PageCount returns ceil(matches/size): the number of pages, not records.
func PageCount(matches int64, size int) int64 {
	if matches <= 0 || size <= 0 {
		return 0
	}
	s := int64(size)
	return (matches + s - 1) / s
}

package health

import (
	"context"
	"sort"
	"time"
)

// Checkable is implemented by every store adapter.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker checks a store adapter within a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a new health checker for an adapter. A zero
// timeout means 5s.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.adapter.HealthCheck(checkCtx); err != nil {
		return CheckResult{
			Name:     c.name,
			Status:   StatusUnhealthy,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}
	return CheckResult{
		Name:     c.name,
		Status:   StatusHealthy,
		Message:  "OK",
		Duration: time.Since(start),
	}
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}

// CollectionLister is implemented by document stores.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

// CollectionsChecker lists the collections of a document store. An empty
// database is reported as degraded; the sorted names are in Metadata["collections"].
type CollectionsChecker struct {
	name    string
	lister  CollectionLister
	timeout time.Duration
}

// NewCollectionsChecker creates a collections check. A zero timeout means 5s.
func NewCollectionsChecker(name string, lister CollectionLister, timeout time.Duration) *CollectionsChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CollectionsChecker{name: name, lister: lister, timeout: timeout}
}

// Check lists the collections.
func (c *CollectionsChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names, err := c.lister.ListCollections(checkCtx)
	if err != nil {
		return CheckResult{
			Name:     c.name,
			Status:   StatusUnhealthy,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}
	sort.Strings(names)
	result := CheckResult{
		Name:     c.name,
		Status:   StatusHealthy,
		Message:  "OK",
		Duration: time.Since(start),
		Metadata: map[string]any{"collections": names},
	}
	if len(names) == 0 {
		result.Status = StatusDegraded
		result.Message = "no collections"
	}
	return result
}

// Name returns the name of the health check
func (c *CollectionsChecker) Name() string {
	return c.name
}

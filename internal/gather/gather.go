// Package gather backfills daily bar data into a BarStore.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one backfill pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

package activity

import (
	"context"
)

// Filter selects feed entries. Zero values match everything.
type Filter struct {
	// Type keeps only entries of this type.
	Type Type

	// Limit caps the result size.
	Limit int
}

// Repository defines the interface for activity feed persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Save appends a feed entry.
	Save(ctx context.Context, log *Log) error

	// Recent returns matching entries newest first.
	Recent(ctx context.Context, f Filter) ([]*Log, error)
}

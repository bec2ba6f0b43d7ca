package metadata

import "context"

// Source is one tier of the resolution chain
type Source interface {
	// Name identifies the tier in logs
	Name() string

	// Fetch resolves ref. A nil record with a nil error is treated as a miss.
	Fetch(ctx context.Context, ref TokenRef) (*Metadata, error)
}

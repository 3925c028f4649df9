// Package cursor provides storage backends for per-member read cursors.
package cursor

import (
	"context"
	"time"
)

// Store holds one watermark per (member, thread). Advance must be monotonic:
// a watermark never moves backwards, so concurrent advances by the same
// member converge on the furthest one.
type Store interface {
	Advance(ctx context.Context, memberID, threadID string, t time.Time) error
	Get(ctx context.Context, memberID, threadID string) (time.Time, error)
	All(ctx context.Context, memberID string) (map[string]time.Time, error)
}

// Package export defines the outbound reporting boundary: a room summary
// pushed to an external spreadsheet for bookkeeping.
package export

import (
	"context"

	"splitroom/internal/core"
)

// SummaryWriter appends one settlement summary to an external sink and
// returns a reference to where it landed.
type SummaryWriter interface {
	Append(ctx context.Context, snap core.Snapshot, sum core.Summary) (string, error)
}

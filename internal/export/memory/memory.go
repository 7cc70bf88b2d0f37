// Package memory is an in-memory SummaryWriter used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"splitroom/internal/core"
	"splitroom/internal/export"
)

// Row is one recorded export.
type Row struct {
	Snapshot core.Snapshot
	Summary  core.Summary
}

type Writer struct {
	mu   sync.Mutex
	rows []Row
}

var _ export.SummaryWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) Append(_ context.Context, snap core.Snapshot, sum core.Summary) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, Row{Snapshot: snap, Summary: sum})
	return fmt.Sprintf("memory!A%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Row(nil), w.rows...)
}

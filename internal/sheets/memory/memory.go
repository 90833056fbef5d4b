// Package memory provides an in-memory sheet exporter for tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"duit/internal/events"
	"duit/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []*events.TransactionMessage
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Append(_ context.Context, m *events.TransactionMessage) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, m)
	return fmt.Sprintf("memory!A%d", len(e.rows)), nil
}

func (e *Exporter) DeleteByID(_ context.Context, transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, row := range e.rows {
		if row.TransactionID == transactionID {
			e.rows = append(e.rows[:i], e.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the stored rows.
func (e *Exporter) Rows() []*events.TransactionMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.TransactionMessage(nil), e.rows...)
}

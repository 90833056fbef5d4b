// Package sheets defines the outbound port for mirroring transactions to a
// spreadsheet, with a Google Sheets adapter under google/ and an in-memory
// adapter under memory/ for tests.
package sheets

import (
	"context"

	"duit/internal/events"
)

// Exporter mirrors transaction mutations to an external sheet.
type Exporter interface {
	// Append writes one created transaction and returns a row reference.
	Append(ctx context.Context, m *events.TransactionMessage) (rowRef string, err error)

	// DeleteByID removes the row for a transaction id. Missing rows are not
	// an error; the delete may arrive after a restart that lost the row.
	DeleteByID(ctx context.Context, transactionID string) error
}

// Package worker consumes transaction events and mirrors them to the
// configured sheet exporter.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"duit/internal/events"
	"duit/internal/sheets"
)

// ExportWorker applies transaction mutation messages to the sheet.
type ExportWorker struct {
	exporter sheets.Exporter
}

func NewExportWorker(exporter sheets.Exporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleMessage processes one message. Returning an error makes the consumer
// nack and requeue, so only retryable failures should be returned.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *events.TransactionMessage) error {
	switch msg.Kind {
	case events.KindTransactionCreated:
		ref, err := w.exporter.Append(ctx, msg)
		if err != nil {
			return fmt.Errorf("append to sheet: %w", err)
		}
		slog.InfoContext(ctx, "transaction exported",
			"transaction_id", msg.TransactionID,
			"owner", msg.Owner,
			"sheets_ref", ref)
		return nil

	case events.KindTransactionDeleted:
		if err := w.exporter.DeleteByID(ctx, msg.TransactionID); err != nil {
			return fmt.Errorf("delete from sheet: %w", err)
		}
		slog.InfoContext(ctx, "transaction export removed",
			"transaction_id", msg.TransactionID,
			"owner", msg.Owner)
		return nil

	default:
		// unknown kinds are dropped, requeueing would loop forever
		slog.WarnContext(ctx, "unknown message kind, dropping",
			"kind", msg.Kind,
			"transaction_id", msg.TransactionID)
		return nil
	}
}

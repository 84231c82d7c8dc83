package worker

import (
	"context"
	"errors"
	"fmt"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
	"invoicer/internal/sheets"
	"invoicer/internal/storage"
)

// Store is the slice of the repository the worker reads and marks.
type Store interface {
	Get(ctx context.Context, id int64) (storage.StoredInvoice, error)
	MarkSynced(ctx context.Context, id, version int64) error
	MarkSyncError(ctx context.Context, id, version int64) error
	PendingSync(ctx context.Context, limit int) ([]storage.PendingSyncRow, error)
}

type Renderer interface {
	RenderRecord(ctx context.Context, rec core.InvoiceRecord) (*pdf.Document, error)
}

type Archiver interface {
	Save(doc *pdf.Document) (string, error)
}

// SyncWorker mirrors stored invoices into the PDF archive and the ledger.
type SyncWorker struct {
	store     Store
	ledger    sheets.LedgerWriter
	renderer  Renderer
	archive   Archiver
	calc      core.Calculator
	batchSize int
	logger    *applog.Logger
}

type Option func(*SyncWorker)

// WithArchive renders every synced invoice into archive.
func WithArchive(renderer Renderer, archive Archiver) Option {
	return func(w *SyncWorker) {
		w.renderer = renderer
		w.archive = archive
	}
}

func WithCalculator(calc core.Calculator) Option {
	return func(w *SyncWorker) { w.calc = calc }
}

func WithBatchSize(n int) Option {
	return func(w *SyncWorker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *applog.Logger) Option {
	return func(w *SyncWorker) { w.logger = logger }
}

func NewSyncWorker(store Store, ledger sheets.LedgerWriter, opts ...Option) *SyncWorker {
	w := &SyncWorker{
		store:     store,
		ledger:    ledger,
		batchSize: 10,
		logger:    applog.Default(applog.ComponentWorker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleEvent processes one invoice event from AMQP. A returned error
// requeues the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.InvoiceEvent) error {
	w.logger.InfoContext(ctx, "Processing invoice event",
		applog.FieldInvoiceID, ev.InvoiceID,
		applog.FieldVersion, ev.Version,
		applog.FieldOperation, string(ev.Action))

	switch ev.Action {
	case amqp.ActionUpsert:
		return w.SyncInvoice(ctx, ev.InvoiceID)
	case amqp.ActionDelete:
		return w.deleteInvoice(ctx, ev)
	default:
		return fmt.Errorf("%w: action %q", amqp.ErrInvalidEvent, ev.Action)
	}
}

// SyncInvoice archives and ledgers the latest version of an invoice. Events
// carry only the id, so an older event still syncs the current state.
func (w *SyncWorker) SyncInvoice(ctx context.Context, id int64) error {
	stored, err := w.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Invoice no longer exists, skipping sync",
			applog.FieldInvoiceID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get invoice from storage: %w", err)
	}

	if err := w.sync(ctx, stored); err != nil {
		if merr := w.store.MarkSyncError(ctx, stored.ID, stored.Version); merr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				applog.FieldInvoiceID, stored.ID,
				applog.FieldError, merr)
		}
		return err
	}

	if err := w.store.MarkSynced(ctx, stored.ID, stored.Version); err != nil {
		// The ledger already holds the row; a retry would only rewrite it.
		w.logger.WarnContext(ctx, "Failed to mark invoice as synced",
			applog.FieldInvoiceID, stored.ID,
			applog.FieldError, err)
	}
	return nil
}

func (w *SyncWorker) sync(ctx context.Context, stored storage.StoredInvoice) error {
	rec, totals := w.calc.Apply(stored.InvoiceRecord)

	if w.renderer != nil && w.archive != nil {
		doc, err := w.renderer.RenderRecord(ctx, rec)
		if err != nil {
			return fmt.Errorf("render invoice %s: %w", rec.Number, err)
		}
		path, err := w.archive.Save(doc)
		if err != nil {
			return fmt.Errorf("archive invoice %s: %w", rec.Number, err)
		}
		w.logger.InfoContext(ctx, "Archived invoice PDF",
			applog.FieldInvoiceNumber, rec.Number,
			applog.FieldFileName, path)
	}

	if w.ledger == nil {
		return nil
	}
	ref, err := w.ledger.Upsert(ctx, sheets.RowFromInvoice(rec, totals))
	if err != nil {
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	w.logger.InfoContext(ctx, "Synced invoice to ledger",
		applog.FieldInvoiceID, rec.ID,
		applog.FieldInvoiceNumber, rec.Number,
		applog.FieldVersion, rec.Version,
		applog.FieldLedgerRef, ref)
	return nil
}

func (w *SyncWorker) deleteInvoice(ctx context.Context, ev *amqp.InvoiceEvent) error {
	if w.ledger == nil {
		w.logger.WarnContext(ctx, "No ledger configured, skipping delete",
			applog.FieldInvoiceID, ev.InvoiceID)
		return nil
	}
	if err := w.ledger.Delete(ctx, ev.Number); err != nil {
		return fmt.Errorf("delete ledger row %s: %w", ev.Number, err)
	}
	w.logger.InfoContext(ctx, "Deleted invoice from ledger",
		applog.FieldInvoiceID, ev.InvoiceID,
		applog.FieldInvoiceNumber, ev.Number)
	return nil
}

// ProcessPending syncs up to limit invoices whose latest version has not
// reached the ledger. It recovers from lost messages and worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (synced, failed int, err error) {
	if limit <= 0 {
		limit = w.batchSize
	}
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending invoices: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending invoices", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.SyncInvoice(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync invoice",
				applog.FieldInvoiceID, p.ID,
				applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// StartupSyncCheck runs one larger pending pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

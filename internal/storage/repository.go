package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"invoicer/internal/core"
	applog "invoicer/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")
	ErrVersionConflict = errors.New("invoice was modified by another request")
)

// Ledger sync states of a stored invoice.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// StoredInvoice is a persisted record with the totals computed when it was written.
type StoredInvoice struct {
	core.InvoiceRecord
	Totals     core.TotalsResult
	SyncStatus string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ListFilter narrows List. A Limit of zero or less returns every match.
type ListFilter struct {
	Status core.PaymentStatus
	Limit  int
	Offset int
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

// DSN adds the pragmas the repository relies on to a database path.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Default(applog.ComponentStorage)
	}
	logger = logger.WithComponent(applog.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Debug("Database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create stores a new invoice with its items and totals.
func (r *SQLiteRepository) Create(ctx context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (StoredInvoice, error) {
	var row Invoice
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		row, err = q.CreateInvoice(ctx, toParams(rec, totals))
		if err != nil {
			return mapWriteError(err)
		}
		return insertItems(ctx, q, row.ID, rec.Items)
	})
	if err != nil {
		return StoredInvoice{}, fmt.Errorf("create invoice: %w", err)
	}

	r.logger.InfoContext(ctx, "Invoice saved to SQLite",
		applog.FieldInvoiceID, row.ID,
		applog.FieldInvoiceNumber, row.InvoiceNumber,
		applog.FieldItemCount, len(rec.Items),
		applog.FieldNetTotal, row.NetTotal)

	return r.Get(ctx, row.ID)
}

// Update replaces an invoice and its items. When rec.Version is non-zero it
// must match the stored version.
func (r *SQLiteRepository) Update(ctx context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (StoredInvoice, error) {
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.UpdateInvoice(ctx, rec.ID, rec.Version, toParams(rec, totals))
		if errors.Is(err, sql.ErrNoRows) {
			if _, verr := q.GetInvoiceVersion(ctx, rec.ID); errors.Is(verr, sql.ErrNoRows) {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		if err != nil {
			return mapWriteError(err)
		}
		if err := q.DeleteInvoiceItems(ctx, row.ID); err != nil {
			return err
		}
		return insertItems(ctx, q, row.ID, rec.Items)
	})
	if err != nil {
		return StoredInvoice{}, fmt.Errorf("update invoice %d: %w", rec.ID, err)
	}
	return r.Get(ctx, rec.ID)
}

// Get loads an invoice with its items.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (StoredInvoice, error) {
	row, err := r.queries.GetInvoice(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredInvoice{}, ErrNotFound
	}
	if err != nil {
		return StoredInvoice{}, fmt.Errorf("get invoice %d: %w", id, err)
	}
	items, err := r.queries.ListInvoiceItems(ctx, id)
	if err != nil {
		return StoredInvoice{}, fmt.Errorf("get items of invoice %d: %w", id, err)
	}
	return fromRow(row, items), nil
}

// List returns invoices newest first.
func (r *SQLiteRepository) List(ctx context.Context, f ListFilter) ([]StoredInvoice, error) {
	limit := int64(f.Limit)
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListInvoices(ctx, ListInvoicesParams{
		PaymentStatus: string(f.Status),
		Limit:         limit,
		Offset:        int64(f.Offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	out := make([]StoredInvoice, 0, len(rows))
	for _, row := range rows {
		items, err := r.queries.ListInvoiceItems(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("get items of invoice %d: %w", row.ID, err)
		}
		out = append(out, fromRow(row, items))
	}
	return out, nil
}

// Delete removes an invoice and its items.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteInvoiceItems(ctx, id); err != nil {
			return err
		}
		n, err := q.DeleteInvoice(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Invoice deleted", applog.FieldInvoiceID, id)
	return nil
}

// UpdatePaymentStatus sets the persisted payment status and bumps the version.
func (r *SQLiteRepository) UpdatePaymentStatus(ctx context.Context, id int64, status core.PaymentStatus) (StoredInvoice, error) {
	if !status.Valid() {
		return StoredInvoice{}, core.ErrInvalidStatus
	}
	_, err := r.queries.UpdatePaymentStatus(ctx, id, string(status))
	if errors.Is(err, sql.ErrNoRows) {
		return StoredInvoice{}, ErrNotFound
	}
	if err != nil {
		return StoredInvoice{}, fmt.Errorf("update status of invoice %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

// CountInYear counts invoices issued in year, for numbering.
func (r *SQLiteRepository) CountInYear(ctx context.Context, year int) (int, error) {
	n, err := r.queries.CountInvoicesInYear(ctx, fmt.Sprintf("%04d", year))
	if err != nil {
		return 0, fmt.Errorf("count invoices in %d: %w", year, err)
	}
	return int(n), nil
}

// MarkSynced records that the ledger holds this version of the invoice.
// A newer version written in the meantime stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	return r.queries.SetSyncStatus(ctx, id, version, SyncSynced)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id, version int64) error {
	return r.queries.SetSyncStatus(ctx, id, version, SyncError)
}

// PendingSync lists invoices whose latest version has not reached the ledger.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSyncRow, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, q *Queries, invoiceID int64, items []core.LineItem) error {
	for i, it := range items {
		err := q.InsertInvoiceItem(ctx, InvoiceItem{
			InvoiceID:   invoiceID,
			Seq:         int64(i + 1),
			ProductName: it.Description,
			Unit:        string(it.Unit),
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.String(),
			LineTotal:   core.LineTotal(it.Quantity, it.UnitPrice).String(),
		})
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}
	return nil
}

func mapWriteError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: invoices.invoice_number") {
		return ErrDuplicateNumber
	}
	return err
}

func toParams(rec core.InvoiceRecord, totals core.TotalsResult) InvoiceParams {
	return InvoiceParams{
		InvoiceNumber:       rec.Number,
		IssueDate:           rec.IssueDate.String(),
		DueDate:             rec.DueDate.String(),
		CustomerName:        rec.CustomerName,
		CustomerEmail:       rec.CustomerEmail,
		CustomerAddress:     rec.CustomerAddress,
		CustomerPhone:       rec.CustomerPhone,
		PaymentStatus:       string(rec.PaymentStatus),
		ServiceChargeType:   string(rec.ServiceCharge.Kind),
		ServiceChargeValue:  rec.ServiceCharge.Value.String(),
		VatType:             string(rec.VAT.Kind),
		VatValue:            rec.VAT.Value.String(),
		SpecialDiscount:     rec.SpecialDiscount.String(),
		Notes:               rec.Notes,
		Subtotal:            totals.Subtotal.String(),
		ServiceChargeAmount: totals.ServiceChargeAmount.String(),
		VatAmount:           totals.VATAmount.String(),
		GrandTotal:          totals.GrandTotal.String(),
		NetTotal:            totals.NetTotal.String(),
	}
}

func fromRow(row Invoice, items []InvoiceItem) StoredInvoice {
	issue, _ := core.ParseDate(row.IssueDate)
	due, _ := core.ParseDate(row.DueDate)

	rec := core.InvoiceRecord{
		ID:              row.ID,
		Number:          row.InvoiceNumber,
		IssueDate:       issue,
		DueDate:         due,
		CustomerName:    row.CustomerName,
		CustomerEmail:   row.CustomerEmail,
		CustomerAddress: row.CustomerAddress,
		CustomerPhone:   row.CustomerPhone,
		PaymentStatus:   core.PaymentStatus(row.PaymentStatus),
		ServiceCharge: core.ChargeSpec{
			Kind:     core.ChargeKind(row.ServiceChargeType),
			Value:    core.ParseAmount(row.ServiceChargeValue),
			Computed: core.ParseAmount(row.ServiceChargeAmount),
		},
		VAT: core.ChargeSpec{
			Kind:     core.ChargeKind(row.VatType),
			Value:    core.ParseAmount(row.VatValue),
			Computed: core.ParseAmount(row.VatAmount),
		},
		SpecialDiscount: core.ParseAmount(row.SpecialDiscount),
		Notes:           row.Notes,
		Version:         row.Version,
		Items:           make([]core.LineItem, 0, len(items)),
	}
	for _, it := range items {
		rec.Items = append(rec.Items, core.LineItem{
			Seq:         int(it.Seq),
			Description: it.ProductName,
			Unit:        core.Unit(it.Unit),
			Quantity:    core.ParseAmount(it.Quantity),
			UnitPrice:   core.ParseAmount(it.UnitPrice),
			LineTotal:   core.ParseAmount(it.LineTotal),
		})
	}

	return StoredInvoice{
		InvoiceRecord: rec,
		Totals: core.TotalsResult{
			Subtotal:            core.ParseAmount(row.Subtotal),
			ServiceChargeAmount: core.ParseAmount(row.ServiceChargeAmount),
			VATAmount:           core.ParseAmount(row.VatAmount),
			GrandTotal:          core.ParseAmount(row.GrandTotal),
			SpecialDiscount:     core.ParseAmount(row.SpecialDiscount),
			NetTotal:            core.ParseAmount(row.NetTotal),
		},
		SyncStatus: row.SyncStatus,
		CreatedAt:  parseTimestamp(row.CreatedAt),
		UpdatedAt:  parseTimestamp(row.UpdatedAt),
	}
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}

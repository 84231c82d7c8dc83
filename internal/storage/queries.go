package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Invoice is a row of the invoices table. Amounts are decimal strings.
type Invoice struct {
	ID                  int64
	InvoiceNumber       string
	IssueDate           string
	DueDate             string
	CustomerName        string
	CustomerEmail       string
	CustomerAddress     string
	CustomerPhone       string
	PaymentStatus       string
	ServiceChargeType   string
	ServiceChargeValue  string
	VatType             string
	VatValue            string
	SpecialDiscount     string
	Notes               string
	Subtotal            string
	ServiceChargeAmount string
	VatAmount           string
	GrandTotal          string
	NetTotal            string
	Version             int64
	SyncStatus          string
	CreatedAt           string
	UpdatedAt           string
}

type InvoiceItem struct {
	InvoiceID   int64
	Seq         int64
	ProductName string
	Unit        string
	Quantity    string
	UnitPrice   string
	LineTotal   string
}

const invoiceColumns = `id, invoice_number, issue_date, due_date, customer_name, customer_email,
customer_address, customer_phone, payment_status, service_charge_type, service_charge_value,
vat_type, vat_value, special_discount, notes, subtotal, service_charge_amount, vat_amount,
grand_total, net_total, version, sync_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.IssueDate,
		&i.DueDate,
		&i.CustomerName,
		&i.CustomerEmail,
		&i.CustomerAddress,
		&i.CustomerPhone,
		&i.PaymentStatus,
		&i.ServiceChargeType,
		&i.ServiceChargeValue,
		&i.VatType,
		&i.VatValue,
		&i.SpecialDiscount,
		&i.Notes,
		&i.Subtotal,
		&i.ServiceChargeAmount,
		&i.VatAmount,
		&i.GrandTotal,
		&i.NetTotal,
		&i.Version,
		&i.SyncStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

type InvoiceParams struct {
	InvoiceNumber       string
	IssueDate           string
	DueDate             string
	CustomerName        string
	CustomerEmail       string
	CustomerAddress     string
	CustomerPhone       string
	PaymentStatus       string
	ServiceChargeType   string
	ServiceChargeValue  string
	VatType             string
	VatValue            string
	SpecialDiscount     string
	Notes               string
	Subtotal            string
	ServiceChargeAmount string
	VatAmount           string
	GrandTotal          string
	NetTotal            string
}

func (p InvoiceParams) args() []interface{} {
	return []interface{}{
		p.InvoiceNumber,
		p.IssueDate,
		p.DueDate,
		p.CustomerName,
		p.CustomerEmail,
		p.CustomerAddress,
		p.CustomerPhone,
		p.PaymentStatus,
		p.ServiceChargeType,
		p.ServiceChargeValue,
		p.VatType,
		p.VatValue,
		p.SpecialDiscount,
		p.Notes,
		p.Subtotal,
		p.ServiceChargeAmount,
		p.VatAmount,
		p.GrandTotal,
		p.NetTotal,
	}
}

const createInvoice = `INSERT INTO invoices (
    invoice_number, issue_date, due_date, customer_name, customer_email,
    customer_address, customer_phone, payment_status, service_charge_type, service_charge_value,
    vat_type, vat_value, special_discount, notes, subtotal, service_charge_amount, vat_amount,
    grand_total, net_total
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + invoiceColumns

func (q *Queries) CreateInvoice(ctx context.Context, arg InvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, createInvoice, arg.args()...))
}

const updateInvoice = `UPDATE invoices SET
    invoice_number = ?, issue_date = ?, due_date = ?, customer_name = ?, customer_email = ?,
    customer_address = ?, customer_phone = ?, payment_status = ?, service_charge_type = ?,
    service_charge_value = ?, vat_type = ?, vat_value = ?, special_discount = ?, notes = ?,
    subtotal = ?, service_charge_amount = ?, vat_amount = ?, grand_total = ?, net_total = ?,
    version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND (? = 0 OR version = ?)
RETURNING ` + invoiceColumns

// UpdateInvoice bumps the version. A non-zero expectedVersion must match the stored one.
func (q *Queries) UpdateInvoice(ctx context.Context, id, expectedVersion int64, arg InvoiceParams) (Invoice, error) {
	args := append(arg.args(), id, expectedVersion, expectedVersion)
	return scanInvoice(q.db.QueryRowContext(ctx, updateInvoice, args...))
}

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id))
}

const invoiceVersion = `SELECT version FROM invoices WHERE id = ?`

func (q *Queries) GetInvoiceVersion(ctx context.Context, id int64) (int64, error) {
	var v int64
	err := q.db.QueryRowContext(ctx, invoiceVersion, id).Scan(&v)
	return v, err
}

const listInvoices = `SELECT ` + invoiceColumns + ` FROM invoices
WHERE (? = '' OR payment_status = ?)
ORDER BY issue_date DESC, id DESC
LIMIT ? OFFSET ?`

type ListInvoicesParams struct {
	PaymentStatus string
	Limit         int64
	Offset        int64
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoices, arg.PaymentStatus, arg.PaymentStatus, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteInvoice = `DELETE FROM invoices WHERE id = ?`

func (q *Queries) DeleteInvoice(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteInvoice, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updatePaymentStatus = `UPDATE invoices
SET payment_status = ?, version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + invoiceColumns

func (q *Queries) UpdatePaymentStatus(ctx context.Context, id int64, status string) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, updatePaymentStatus, status, id))
}

const countInvoicesInYear = `SELECT COUNT(*) FROM invoices WHERE substr(issue_date, 1, 4) = ?`

func (q *Queries) CountInvoicesInYear(ctx context.Context, year string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countInvoicesInYear, year).Scan(&n)
	return n, err
}

const setSyncStatus = `UPDATE invoices SET sync_status = ? WHERE id = ? AND version = ?`

func (q *Queries) SetSyncStatus(ctx context.Context, id, version int64, status string) error {
	_, err := q.db.ExecContext(ctx, setSyncStatus, status, id, version)
	return err
}

const pendingSync = `SELECT id, version FROM invoices WHERE sync_status != 'synced' ORDER BY id LIMIT ?`

type PendingSyncRow struct {
	ID      int64
	Version int64
}

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, pendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var i PendingSyncRow
		if err := rows.Scan(&i.ID, &i.Version); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertItem = `INSERT INTO invoice_items (invoice_id, seq, product_name, unit, quantity, unit_price, line_total)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertInvoiceItem(ctx context.Context, arg InvoiceItem) error {
	_, err := q.db.ExecContext(ctx, insertItem,
		arg.InvoiceID, arg.Seq, arg.ProductName, arg.Unit, arg.Quantity, arg.UnitPrice, arg.LineTotal)
	return err
}

const deleteItems = `DELETE FROM invoice_items WHERE invoice_id = ?`

func (q *Queries) DeleteInvoiceItems(ctx context.Context, invoiceID int64) error {
	_, err := q.db.ExecContext(ctx, deleteItems, invoiceID)
	return err
}

const listItems = `SELECT invoice_id, seq, product_name, unit, quantity, unit_price, line_total
FROM invoice_items WHERE invoice_id = ? ORDER BY seq`

func (q *Queries) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.db.QueryContext(ctx, listItems, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var i InvoiceItem
		if err := rows.Scan(&i.InvoiceID, &i.Seq, &i.ProductName, &i.Unit, &i.Quantity, &i.UnitPrice, &i.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

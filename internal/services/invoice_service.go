package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
	"invoicer/internal/storage"
)

// ErrNoRenderer is returned by RenderPDF when the service was built without a renderer.
var ErrNoRenderer = errors.New("pdf renderer not configured")

// Repository is the persistence the service needs.
type Repository interface {
	Create(ctx context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (storage.StoredInvoice, error)
	Update(ctx context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (storage.StoredInvoice, error)
	Get(ctx context.Context, id int64) (storage.StoredInvoice, error)
	List(ctx context.Context, f storage.ListFilter) ([]storage.StoredInvoice, error)
	Delete(ctx context.Context, id int64) error
	UpdatePaymentStatus(ctx context.Context, id int64, status core.PaymentStatus) (storage.StoredInvoice, error)
	CountInYear(ctx context.Context, year int) (int, error)
	Ping(ctx context.Context) error
}

// EventPublisher announces invoice changes to the worker.
type EventPublisher interface {
	PublishInvoiceEvent(ctx context.Context, event *amqp.InvoiceEvent) error
}

// DocumentRenderer turns a record into a PDF.
type DocumentRenderer interface {
	RenderRecord(ctx context.Context, rec core.InvoiceRecord) (*pdf.Document, error)
}

// StatusInfo is the display status of an invoice at read time.
type StatusInfo struct {
	Display      core.DisplayStatus `json:"display_status"`
	Label        string             `json:"status_label"`
	Color        string             `json:"status_color"`
	DaysUntilDue *int               `json:"days_until_due,omitempty"`
}

// Preview is the live summary of an unsaved draft.
type Preview struct {
	Invoice       core.InvoiceRecord `json:"invoice"`
	Totals        core.TotalsResult  `json:"totals"`
	Formatted     FormattedTotals    `json:"formatted"`
	AmountInWords string             `json:"amountInWords"`
	Status        StatusInfo         `json:"status"`
}

// FormattedTotals holds the totals as printed on the document.
type FormattedTotals struct {
	Subtotal      string `json:"subtotal"`
	ServiceCharge string `json:"serviceCharge"`
	VAT           string `json:"vat"`
	GrandTotal    string `json:"grandTotal"`
	Discount      string `json:"specialDiscount"`
	NetTotal      string `json:"netTotal"`
}

// InvoiceService orchestrates invoice operations across SQLite, the PDF
// renderer and AMQP. Every write goes through the same calculator the
// renderer and the preview use.
type InvoiceService struct {
	repo      Repository
	publisher EventPublisher
	renderer  DocumentRenderer
	calc      core.Calculator
	policy    core.ValidationPolicy
	rule      core.StatusRule
	currency  core.CurrencyFormat
	words     core.WordsFormat
	now       func() time.Time
	logger    *applog.Logger
}

type Option func(*InvoiceService)

// WithPublisher enables event publishing. A nil publisher disables it.
func WithPublisher(p EventPublisher) Option {
	return func(s *InvoiceService) { s.publisher = p }
}

func WithRenderer(r DocumentRenderer) Option {
	return func(s *InvoiceService) { s.renderer = r }
}

func WithCalculator(calc core.Calculator) Option {
	return func(s *InvoiceService) { s.calc = calc }
}

func WithValidationPolicy(p core.ValidationPolicy) Option {
	return func(s *InvoiceService) { s.policy = p }
}

func WithStatusRule(rule core.StatusRule) Option {
	return func(s *InvoiceService) { s.rule = rule }
}

// WithFormats sets how previews print amounts and spell the net total.
func WithFormats(currency core.CurrencyFormat, words core.WordsFormat) Option {
	return func(s *InvoiceService) {
		s.currency = currency
		s.words = words
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *InvoiceService) { s.logger = logger }
}

func NewInvoiceService(repo Repository, opts ...Option) *InvoiceService {
	s := &InvoiceService{
		repo:     repo,
		rule:     core.DefaultStatusRule,
		currency: core.DefaultCurrencyFormat,
		words:    core.DefaultWordsFormat,
		now:      time.Now,
		logger:   applog.Default(applog.ComponentInvoice),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new invoice. A blank number is assigned from
// the count of invoices issued in the same year, a blank issue date is today.
func (s *InvoiceService) Create(ctx context.Context, rec core.InvoiceRecord) (storage.StoredInvoice, error) {
	rec = core.Normalize(rec)
	if rec.IssueDate.IsEmpty() {
		rec.IssueDate = core.DateOf(s.now())
	}
	autoNumber := rec.Number == ""
	if autoNumber {
		rec.Number = s.nextNumber(ctx, rec.IssueDate.Year())
	}
	if err := s.policy.Validate(rec); err != nil {
		return storage.StoredInvoice{}, err
	}

	rec, totals := s.calc.Apply(rec)
	stored, err := s.repo.Create(ctx, rec, totals)
	if autoNumber && errors.Is(err, storage.ErrDuplicateNumber) {
		// Another request took the same sequence number.
		rec.Number = core.FallbackInvoiceNumber(s.now())
		stored, err = s.repo.Create(ctx, rec, totals)
	}
	if err != nil {
		return storage.StoredInvoice{}, fmt.Errorf("save invoice: %w", err)
	}

	s.publish(ctx, stored, amqp.ActionUpsert)
	return stored, nil
}

// Update replaces the invoice with the given id. A non-zero rec.Version must
// match the stored version.
func (s *InvoiceService) Update(ctx context.Context, id int64, rec core.InvoiceRecord) (storage.StoredInvoice, error) {
	rec = core.Normalize(rec)
	rec.ID = id
	if err := s.policy.Validate(rec); err != nil {
		return storage.StoredInvoice{}, err
	}

	rec, totals := s.calc.Apply(rec)
	stored, err := s.repo.Update(ctx, rec, totals)
	if err != nil {
		return storage.StoredInvoice{}, fmt.Errorf("save invoice: %w", err)
	}

	s.publish(ctx, stored, amqp.ActionUpsert)
	return stored, nil
}

func (s *InvoiceService) Get(ctx context.Context, id int64) (storage.StoredInvoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, f storage.ListFilter) ([]storage.StoredInvoice, error) {
	return s.repo.List(ctx, f)
}

// Delete removes an invoice and tells the worker to drop its ledger row.
func (s *InvoiceService) Delete(ctx context.Context, id int64) error {
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	s.publish(ctx, stored, amqp.ActionDelete)
	return nil
}

// SetPaymentStatus stores an explicit payment status.
func (s *InvoiceService) SetPaymentStatus(ctx context.Context, id int64, status core.PaymentStatus) (storage.StoredInvoice, error) {
	if !status.Valid() {
		return storage.StoredInvoice{}, &core.ValidationError{
			Err: core.ErrInvalidRecord,
			Details: []core.FieldError{{
				Field:   "paymentStatus",
				Message: core.ErrInvalidStatus.Error(),
				Err:     core.ErrInvalidStatus,
			}},
		}
	}
	return s.changeStatus(ctx, id, status)
}

// ToggleStatus flips a paid invoice back to pending and anything else to paid.
// The choice follows the display status at the time of the call.
func (s *InvoiceService) ToggleStatus(ctx context.Context, id int64) (storage.StoredInvoice, error) {
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return storage.StoredInvoice{}, err
	}
	display := s.rule.Derive(stored.PaymentStatus, stored.DueDate, s.now())
	return s.changeStatus(ctx, id, core.NextPaymentStatus(display))
}

func (s *InvoiceService) changeStatus(ctx context.Context, id int64, status core.PaymentStatus) (storage.StoredInvoice, error) {
	stored, err := s.repo.UpdatePaymentStatus(ctx, id, status)
	if err != nil {
		return storage.StoredInvoice{}, err
	}
	s.logger.InfoContext(ctx, "Payment status changed",
		applog.FieldInvoiceID, id,
		applog.FieldPaymentStatus, status)

	s.publish(ctx, stored, amqp.ActionUpsert)
	return stored, nil
}

// NextNumber proposes the number of the next invoice issued today.
func (s *InvoiceService) NextNumber(ctx context.Context) string {
	return s.nextNumber(ctx, s.now().Year())
}

func (s *InvoiceService) nextNumber(ctx context.Context, year int) string {
	count, err := s.repo.CountInYear(ctx, year)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to count invoices, using fallback number",
			applog.FieldError, err)
		return core.FallbackInvoiceNumber(s.now())
	}
	return core.NextInvoiceNumber(year, count)
}

// Totals recomputes the totals of a stored invoice.
func (s *InvoiceService) Totals(ctx context.Context, id int64) (core.TotalsResult, error) {
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.TotalsResult{}, err
	}
	return s.calc.ComputeRecord(stored.InvoiceRecord), nil
}

// Preview computes everything the form shows for a draft. It never fails:
// unparsable numbers have already been read as zero.
func (s *InvoiceService) Preview(rec core.InvoiceRecord) Preview {
	applied, totals := s.calc.Apply(core.Normalize(rec))
	return Preview{
		Invoice:       applied,
		Totals:        totals,
		Formatted:     s.format(totals),
		AmountInWords: s.words.Spell(totals.NetTotal),
		Status:        s.Status(applied),
	}
}

func (s *InvoiceService) format(t core.TotalsResult) FormattedTotals {
	return FormattedTotals{
		Subtotal:      s.currency.Format(t.Subtotal),
		ServiceCharge: s.currency.Format(t.ServiceChargeAmount),
		VAT:           s.currency.Format(t.VATAmount),
		GrandTotal:    s.currency.Format(t.GrandTotal),
		Discount:      s.currency.Format(t.SpecialDiscount),
		NetTotal:      s.currency.Format(t.NetTotal),
	}
}

// Status derives the display status of rec now.
func (s *InvoiceService) Status(rec core.InvoiceRecord) StatusInfo {
	now := s.now()
	display := s.rule.Derive(rec.PaymentStatus, rec.DueDate, now)
	info := StatusInfo{
		Display: display,
		Label:   core.StatusLabel(display),
		Color:   core.StatusColor(display),
	}
	if !rec.DueDate.IsEmpty() {
		days := core.DaysUntilDue(rec.DueDate, now)
		info.DaysUntilDue = &days
	}
	return info
}

// Summary counts every stored invoice by display status.
func (s *InvoiceService) Summary(ctx context.Context) (core.StatusSummary, error) {
	stored, err := s.repo.List(ctx, storage.ListFilter{})
	if err != nil {
		return core.StatusSummary{}, err
	}
	records := make([]core.InvoiceRecord, len(stored))
	for i, inv := range stored {
		records[i] = inv.InvoiceRecord
	}
	return s.rule.Summarize(records, s.calc, s.now()), nil
}

// RenderPDF renders a stored invoice.
func (s *InvoiceService) RenderPDF(ctx context.Context, id int64) (*pdf.Document, error) {
	if s.renderer == nil {
		return nil, ErrNoRenderer
	}
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.RenderRecord(ctx, stored.InvoiceRecord)
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", stored.Number, err)
	}
	s.logger.InfoContext(ctx, "Invoice rendered",
		applog.FieldInvoiceNumber, stored.Number,
		applog.FieldFileName, doc.FileName)
	return doc, nil
}

// Ping reports whether the store is reachable.
func (s *InvoiceService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *InvoiceService) publish(ctx context.Context, stored storage.StoredInvoice, action amqp.Action) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping invoice event",
			applog.FieldInvoiceID, stored.ID)
		return
	}

	event := amqp.NewInvoiceEvent(stored.ID, stored.Number, stored.Version, action)
	if err := s.publisher.PublishInvoiceEvent(ctx, event); err != nil {
		// The invoice is saved locally; the ledger catches up on the next change.
		s.logger.ErrorContext(ctx, "Failed to publish invoice event",
			applog.FieldInvoiceID, stored.ID,
			applog.FieldVersion, stored.Version,
			applog.FieldError, err)
	}
}

// Close closes the store and the publisher when they hold connections.
func (s *InvoiceService) Close() error {
	var errs []error

	if c, ok := s.repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close invoice service: %w", errors.Join(errs...))
	}
	return nil
}

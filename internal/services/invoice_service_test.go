package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
	"invoicer/internal/storage"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]storage.StoredInvoice
	countErr error
	pingErr  error
	closed   bool
	// dupOnce makes the next Create fail with ErrDuplicateNumber.
	dupOnce bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{invoices: map[int64]storage.StoredInvoice{}}
}

func (r *fakeRepo) Create(_ context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (storage.StoredInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dupOnce {
		r.dupOnce = false
		return storage.StoredInvoice{}, storage.ErrDuplicateNumber
	}
	for _, inv := range r.invoices {
		if inv.Number == rec.Number {
			return storage.StoredInvoice{}, storage.ErrDuplicateNumber
		}
	}
	r.nextID++
	rec.ID = r.nextID
	rec.Version = 1
	stored := storage.StoredInvoice{InvoiceRecord: rec.Clone(), Totals: totals, SyncStatus: storage.SyncPending}
	r.invoices[rec.ID] = stored
	return stored, nil
}

func (r *fakeRepo) Update(_ context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (storage.StoredInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.invoices[rec.ID]
	if !ok {
		return storage.StoredInvoice{}, storage.ErrNotFound
	}
	if rec.Version != 0 && rec.Version != cur.Version {
		return storage.StoredInvoice{}, storage.ErrVersionConflict
	}
	rec.Version = cur.Version + 1
	stored := storage.StoredInvoice{InvoiceRecord: rec.Clone(), Totals: totals, SyncStatus: storage.SyncPending}
	r.invoices[rec.ID] = stored
	return stored, nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (storage.StoredInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return storage.StoredInvoice{}, storage.ErrNotFound
	}
	return inv, nil
}

func (r *fakeRepo) List(_ context.Context, f storage.ListFilter) ([]storage.StoredInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []storage.StoredInvoice
	for id := int64(1); id <= r.nextID; id++ {
		inv, ok := r.invoices[id]
		if !ok || (f.Status != "" && inv.PaymentStatus != f.Status) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *fakeRepo) UpdatePaymentStatus(_ context.Context, id int64, status core.PaymentStatus) (storage.StoredInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return storage.StoredInvoice{}, storage.ErrNotFound
	}
	inv.PaymentStatus = status
	inv.Version++
	r.invoices[id] = inv
	return inv, nil
}

func (r *fakeRepo) CountInYear(_ context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	n := 0
	for _, inv := range r.invoices {
		if inv.IssueDate.Year() == year {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Ping(context.Context) error { return r.pingErr }

func (r *fakeRepo) Close() error {
	r.closed = true
	return nil
}

type fakePublisher struct {
	events []*amqp.InvoiceEvent
	err    error
}

func (p *fakePublisher) PublishInvoiceEvent(_ context.Context, event *amqp.InvoiceEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeRenderer struct {
	got core.InvoiceRecord
	err error
}

func (r *fakeRenderer) RenderRecord(_ context.Context, rec core.InvoiceRecord) (*pdf.Document, error) {
	r.got = rec
	if r.err != nil {
		return nil, r.err
	}
	return &pdf.Document{FileName: pdf.FileName(rec.Number, fixedNow), Data: []byte("%PDF-1.3"), Pages: 1}, nil
}

func newTestService(repo *fakeRepo, opts ...Option) *InvoiceService {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(applog.Discard()),
	}
	return NewInvoiceService(repo, append(base, opts...)...)
}

func draft() core.InvoiceRecord {
	return core.InvoiceRecord{
		CustomerName: "  Acme Ltd ",
		DueDate:      core.NewDate(2025, 6, 16),
		Items: []core.LineItem{
			{Description: "Cement", Quantity: core.AmountFromInt(2), UnitPrice: core.AmountFromInt(50)},
			{Description: "Sand", Unit: core.UnitCFT, Quantity: core.AmountFromInt(10), UnitPrice: core.ParseAmount("2.5")},
		},
		ServiceCharge: core.ChargeSpec{Kind: core.ChargePercentage, Value: core.AmountFromInt(10)},
		VAT:           core.ChargeSpec{Kind: core.ChargeFixed, Value: core.AmountFromInt(5)},
	}
}

func TestCreate_AssignsNumberAndTotals(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, WithPublisher(pub))

	stored, err := svc.Create(context.Background(), draft())
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-0001", stored.Number)
	assert.Equal(t, "Acme Ltd", stored.CustomerName)
	assert.Equal(t, core.StatusPending, stored.PaymentStatus)
	assert.Equal(t, "2025-06-01", stored.IssueDate.String())
	assert.Equal(t, 2, stored.Items[1].Seq)
	assert.Equal(t, core.UnitPCS, stored.Items[0].Unit)
	assert.Equal(t, "25", stored.Items[1].LineTotal.String())

	assert.Equal(t, "125", stored.Totals.Subtotal.String())
	assert.Equal(t, "12.5", stored.Totals.ServiceChargeAmount.String())
	assert.Equal(t, "142.5", stored.Totals.NetTotal.String())
	assert.Equal(t, "12.5", stored.ServiceCharge.Computed.String())

	require.Len(t, pub.events, 1)
	assert.Equal(t, amqp.ActionUpsert, pub.events[0].Action)
	assert.Equal(t, stored.ID, pub.events[0].InvoiceID)
	assert.Equal(t, int64(1), pub.events[0].Version)

	second, err := svc.Create(context.Background(), draft())
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0002", second.Number)
}

func TestCreate_KeepsExplicitNumber(t *testing.T) {
	svc := newTestService(newFakeRepo())
	rec := draft()
	rec.Number = " INV-2024-0042 "

	stored, err := svc.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-0042", stored.Number)
}

func TestCreate_FallbackNumberWhenCountFails(t *testing.T) {
	repo := newFakeRepo()
	repo.countErr = errors.New("db locked")
	svc := newTestService(repo)

	stored, err := svc.Create(context.Background(), draft())
	require.NoError(t, err)
	assert.Equal(t, core.FallbackInvoiceNumber(fixedNow), stored.Number)
}

func TestCreate_RetriesDuplicateAutoNumber(t *testing.T) {
	repo := newFakeRepo()
	repo.dupOnce = true
	svc := newTestService(repo)

	stored, err := svc.Create(context.Background(), draft())
	require.NoError(t, err)
	assert.Equal(t, core.FallbackInvoiceNumber(fixedNow), stored.Number)
}

func TestCreate_DuplicateExplicitNumber(t *testing.T) {
	svc := newTestService(newFakeRepo())
	rec := draft()
	rec.Number = "INV-2025-0001"

	_, err := svc.Create(context.Background(), rec)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateNumber)
}

func TestCreate_ValidationFails(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(newFakeRepo(), WithPublisher(pub))

	rec := draft()
	rec.CustomerName = ""
	rec.CustomerEmail = "not-an-email"

	_, err := svc.Create(context.Background(), rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
	assert.ErrorIs(t, err, core.ErrEmptyCustomerName)
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
	assert.Empty(t, pub.events)
}

func TestCreate_PolicyRequiresPositivePrice(t *testing.T) {
	rec := draft()
	rec.Items[0].UnitPrice = core.Amount{}

	_, err := newTestService(newFakeRepo()).Create(context.Background(), rec)
	require.NoError(t, err)

	strict := newTestService(newFakeRepo(), WithValidationPolicy(core.ValidationPolicy{RequirePositivePrice: true}))
	_, err = strict.Create(context.Background(), rec)
	assert.ErrorIs(t, err, core.ErrInvalidPrice)
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	svc := newTestService(newFakeRepo(), WithPublisher(pub))

	stored, err := svc.Create(context.Background(), draft())
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)
	assert.Len(t, pub.events, 1)
}

func TestUpdate(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, WithPublisher(pub))
	ctx := context.Background()

	stored, err := svc.Create(ctx, draft())
	require.NoError(t, err)

	edit := stored.InvoiceRecord
	edit.SpecialDiscount = core.AmountFromInt(200)
	updated, err := svc.Update(ctx, stored.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "-57.5", updated.Totals.NetTotal.String())

	require.Len(t, pub.events, 2)
	assert.Equal(t, int64(2), pub.events[1].Version)

	t.Run("stale version", func(t *testing.T) {
		_, err := svc.Update(ctx, stored.ID, stored.InvoiceRecord)
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
	})

	t.Run("missing invoice", func(t *testing.T) {
		rec := draft()
		rec.Number = "INV-2025-0099"
		_, err := svc.Update(ctx, 999, rec)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := stored.InvoiceRecord
		rec.Items = nil
		_, err := svc.Update(ctx, stored.ID, rec)
		assert.ErrorIs(t, err, core.ErrNoItems)
	})
}

func TestUpdate_FloorPolicy(t *testing.T) {
	svc := newTestService(newFakeRepo(), WithCalculator(core.NewCalculator(core.TotalsPolicy{FloorNetTotalAtZero: true})))
	rec := draft()
	rec.SpecialDiscount = core.AmountFromInt(1000)

	stored, err := svc.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, stored.Totals.NetTotal.IsZero())
}

func TestDelete_PublishesNumber(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(newFakeRepo(), WithPublisher(pub))
	ctx := context.Background()

	stored, err := svc.Create(ctx, draft())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, stored.ID))
	_, err = svc.Get(ctx, stored.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, amqp.ActionDelete, last.Action)
	assert.Equal(t, stored.Number, last.Number)
	require.NoError(t, last.Validate())

	assert.ErrorIs(t, svc.Delete(ctx, stored.ID), storage.ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	rec := draft()
	rec.DueDate = core.NewDate(2025, 5, 20)
	stored, err := svc.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, core.DisplayOverdue, svc.Status(stored.InvoiceRecord).Display)

	paid, err := svc.ToggleStatus(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, paid.PaymentStatus)

	back, err := svc.ToggleStatus(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, back.PaymentStatus)

	_, err = svc.ToggleStatus(ctx, 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetPaymentStatus(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	stored, err := svc.Create(ctx, draft())
	require.NoError(t, err)

	updated, err := svc.SetPaymentStatus(ctx, stored.ID, core.StatusOverdue)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, updated.PaymentStatus)

	_, err = svc.SetPaymentStatus(ctx, stored.ID, "cancelled")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "paymentStatus", verr.Details[0].Field)
}

func TestStatus(t *testing.T) {
	svc := newTestService(newFakeRepo())

	tests := []struct {
		name    string
		payment core.PaymentStatus
		due     core.Date
		display core.DisplayStatus
		days    *int
	}{
		{"paid overrides past due", core.StatusPaid, core.NewDate(2020, 1, 1), core.DisplayPaid, intPtr(-1978)},
		{"due in two days", core.StatusPending, core.NewDate(2025, 6, 3), core.DisplayDueSoon, intPtr(2)},
		{"due today", core.StatusPending, core.NewDate(2025, 6, 1), core.DisplayDueSoon, intPtr(0)},
		{"far away", core.StatusPending, core.NewDate(2025, 7, 1), core.DisplayPending, intPtr(30)},
		{"no due date", "", core.Date{}, core.DisplayPending, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := svc.Status(core.InvoiceRecord{PaymentStatus: tt.payment, DueDate: tt.due})
			assert.Equal(t, tt.display, info.Display)
			assert.Equal(t, core.StatusLabel(tt.display), info.Label)
			assert.Equal(t, tt.days, info.DaysUntilDue)
		})
	}
}

func intPtr(n int) *int { return &n }

func TestPreview(t *testing.T) {
	svc := newTestService(newFakeRepo())

	rec := draft()
	rec.Items = append(rec.Items, core.LineItem{Description: "Half-typed", Quantity: core.ParseAmount("abc"), UnitPrice: core.AmountFromInt(9)})

	p := svc.Preview(rec)
	assert.Equal(t, "142.5", p.Totals.NetTotal.String())
	assert.Equal(t, "TK 142.50", p.Formatted.NetTotal)
	assert.Equal(t, "One Hundred Forty Two Taka and Fifty Poisha Only", p.AmountInWords)
	assert.Equal(t, 3, p.Invoice.Items[2].Seq)
	assert.True(t, p.Invoice.Items[2].LineTotal.IsZero())
	assert.Equal(t, "Acme Ltd", p.Invoice.CustomerName)
	assert.Empty(t, rec.Items[2].Unit, "input must stay untouched")
}

func TestSummary(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	overdue := draft()
	overdue.DueDate = core.NewDate(2025, 5, 1)
	paid := draft()
	paid.PaymentStatus = core.StatusPaid
	soon := draft()
	soon.DueDate = core.NewDate(2025, 6, 2)

	for _, rec := range []core.InvoiceRecord{overdue, paid, soon, draft()} {
		_, err := svc.Create(ctx, rec)
		require.NoError(t, err)
	}

	s, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Paid)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 1, s.DueSoon)
	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, "570", s.NetTotal.String())
	assert.Equal(t, "427.5", s.Unpaid.String())
}

func TestRenderPDF(t *testing.T) {
	ctx := context.Background()

	t.Run("no renderer", func(t *testing.T) {
		_, err := newTestService(newFakeRepo()).RenderPDF(ctx, 1)
		assert.ErrorIs(t, err, ErrNoRenderer)
	})

	t.Run("renders stored record", func(t *testing.T) {
		r := &fakeRenderer{}
		svc := newTestService(newFakeRepo(), WithRenderer(r))
		stored, err := svc.Create(ctx, draft())
		require.NoError(t, err)

		doc, err := svc.RenderPDF(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "Invoice_INV-2025-0001_2025-06-01.pdf", doc.FileName)
		assert.Equal(t, stored.Number, r.got.Number)
	})

	t.Run("render error", func(t *testing.T) {
		r := &fakeRenderer{err: errors.New("boom")}
		svc := newTestService(newFakeRepo(), WithRenderer(r))
		stored, err := svc.Create(ctx, draft())
		require.NoError(t, err)

		_, err = svc.RenderPDF(ctx, stored.ID)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("missing", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), WithRenderer(&fakeRenderer{}))
		_, err := svc.RenderPDF(ctx, 7)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTotalsAndNextNumber(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	assert.Equal(t, "INV-2025-0001", svc.NextNumber(ctx))
	stored, err := svc.Create(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0002", svc.NextNumber(ctx))

	totals, err := svc.Totals(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, totals.NetTotal.Equal(stored.Totals.NetTotal))
}

func TestClose(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	require.NoError(t, svc.Close())
	assert.True(t, repo.closed)
}

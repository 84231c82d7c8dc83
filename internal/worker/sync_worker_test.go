package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
	"invoicer/internal/profile"
	"invoicer/internal/sheets"
	"invoicer/internal/sheets/memory"
	"invoicer/internal/storage"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type syncMark struct {
	id, version int64
	ok          bool
}

type fakeStore struct {
	mu       sync.Mutex
	invoices map[int64]storage.StoredInvoice
	marks    []syncMark
	getErr   error
}

func newFakeStore(invoices ...storage.StoredInvoice) *fakeStore {
	s := &fakeStore{invoices: map[int64]storage.StoredInvoice{}}
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id int64) (storage.StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return storage.StoredInvoice{}, s.getErr
	}
	inv, ok := s.invoices[id]
	if !ok {
		return storage.StoredInvoice{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *fakeStore) MarkSynced(_ context.Context, id, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, syncMark{id, version, true})
	if inv, ok := s.invoices[id]; ok && inv.Version == version {
		inv.SyncStatus = storage.SyncSynced
		s.invoices[id] = inv
	}
	return nil
}

func (s *fakeStore) MarkSyncError(_ context.Context, id, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, syncMark{id, version, false})
	if inv, ok := s.invoices[id]; ok && inv.Version == version {
		inv.SyncStatus = storage.SyncError
		s.invoices[id] = inv
	}
	return nil
}

func (s *fakeStore) PendingSync(_ context.Context, limit int) ([]storage.PendingSyncRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.PendingSyncRow
	for id := int64(1); id <= int64(len(s.invoices)) && len(out) < limit; id++ {
		inv, ok := s.invoices[id]
		if ok && inv.SyncStatus != storage.SyncSynced {
			out = append(out, storage.PendingSyncRow{ID: inv.ID, Version: inv.Version})
		}
	}
	return out, nil
}

type failingLedger struct{}

func (failingLedger) Upsert(context.Context, sheets.LedgerRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingLedger) Delete(context.Context, string) error {
	return errors.New("quota exceeded")
}

func storedInvoice(id int64, number string) storage.StoredInvoice {
	return storage.StoredInvoice{
		InvoiceRecord: core.InvoiceRecord{
			ID:            id,
			Number:        number,
			IssueDate:     core.NewDate(2025, 5, 28),
			DueDate:       core.NewDate(2025, 6, 12),
			CustomerName:  "Acme Ltd",
			PaymentStatus: core.StatusPending,
			Items: []core.LineItem{
				{Seq: 1, Description: "Cement", Unit: core.UnitPCS, Quantity: core.AmountFromInt(3), UnitPrice: core.ParseAmount("100.25")},
			},
			ServiceCharge: core.ChargeSpec{Kind: core.ChargePercentage, Value: core.AmountFromInt(10)},
			VAT:           core.ChargeSpec{Kind: core.ChargeFixed},
			Version:       2,
		},
		SyncStatus: storage.SyncPending,
	}
}

func newRenderer() *pdf.Renderer {
	return pdf.NewRenderer(profile.Default(), pdf.WithClock(func() time.Time { return fixedNow }))
}

func TestHandleEvent_UpsertArchivesAndLedgers(t *testing.T) {
	store := newFakeStore(storedInvoice(1, "INV-2025-0001"))
	ledger := memory.New()
	archive, err := NewArchive(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	w := NewSyncWorker(store, ledger,
		WithArchive(newRenderer(), archive),
		WithLogger(applog.Discard()))

	ev := amqp.NewInvoiceEvent(1, "INV-2025-0001", 2, amqp.ActionUpsert)
	require.NoError(t, w.HandleEvent(context.Background(), ev))

	rows := ledger.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-2025-0001", rows[0].Number)
	assert.Equal(t, "330.83", rows[0].NetTotal)
	assert.Equal(t, "2025-06-12", rows[0].DueDate)
	assert.Equal(t, int64(2), rows[0].Version)

	data, err := os.ReadFile(filepath.Join(archive.Dir(), "Invoice_INV-2025-0001_2025-06-01.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	assert.Equal(t, []syncMark{{1, 2, true}}, store.marks)
}

func TestHandleEvent_UpsertTwiceKeepsOneRow(t *testing.T) {
	inv := storedInvoice(1, "INV-2025-0001")
	store := newFakeStore(inv)
	ledger := memory.New()
	w := NewSyncWorker(store, ledger, WithLogger(applog.Discard()))
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, amqp.NewInvoiceEvent(1, inv.Number, 2, amqp.ActionUpsert)))

	inv.PaymentStatus = core.StatusPaid
	inv.Version = 3
	store.invoices[1] = inv
	require.NoError(t, w.HandleEvent(ctx, amqp.NewInvoiceEvent(1, inv.Number, 3, amqp.ActionUpsert)))

	rows := ledger.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "paid", rows[0].PaymentStatus)
	assert.Equal(t, int64(3), rows[0].Version)
}

func TestHandleEvent_LedgerFailureMarksError(t *testing.T) {
	store := newFakeStore(storedInvoice(1, "INV-2025-0001"))
	w := NewSyncWorker(store, failingLedger{}, WithLogger(applog.Discard()))

	err := w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(1, "INV-2025-0001", 2, amqp.ActionUpsert))
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, []syncMark{{1, 2, false}}, store.marks)
}

func TestHandleEvent_MissingInvoiceIsAcked(t *testing.T) {
	store := newFakeStore()
	w := NewSyncWorker(store, memory.New(), WithLogger(applog.Discard()))

	err := w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(9, "INV-2025-0009", 1, amqp.ActionUpsert))
	assert.NoError(t, err)
	assert.Empty(t, store.marks)
}

func TestHandleEvent_StoreErrorRequeues(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("database is locked")
	w := NewSyncWorker(store, memory.New(), WithLogger(applog.Discard()))

	err := w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(1, "INV-2025-0001", 1, amqp.ActionUpsert))
	assert.ErrorContains(t, err, "database is locked")
}

func TestHandleEvent_Delete(t *testing.T) {
	ledger := memory.New()
	_, err := ledger.Upsert(context.Background(), sheets.LedgerRow{Number: "INV-2025-0001"})
	require.NoError(t, err)
	_, err = ledger.Upsert(context.Background(), sheets.LedgerRow{Number: "INV-2025-0002"})
	require.NoError(t, err)

	w := NewSyncWorker(newFakeStore(), ledger, WithLogger(applog.Discard()))
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(1, "INV-2025-0001", 1, amqp.ActionDelete)))

	rows := ledger.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-2025-0002", rows[0].Number)

	t.Run("ledger failure", func(t *testing.T) {
		w := NewSyncWorker(newFakeStore(), failingLedger{}, WithLogger(applog.Discard()))
		err := w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(1, "INV-2025-0001", 1, amqp.ActionDelete))
		assert.Error(t, err)
	})

	t.Run("no ledger", func(t *testing.T) {
		w := NewSyncWorker(newFakeStore(), nil, WithLogger(applog.Discard()))
		assert.NoError(t, w.HandleEvent(context.Background(), amqp.NewInvoiceEvent(1, "INV-2025-0001", 1, amqp.ActionDelete)))
	})
}

func TestHandleEvent_UnknownAction(t *testing.T) {
	w := NewSyncWorker(newFakeStore(), memory.New(), WithLogger(applog.Discard()))
	err := w.HandleEvent(context.Background(), &amqp.InvoiceEvent{InvoiceID: 1, Action: "archive"})
	assert.ErrorIs(t, err, amqp.ErrInvalidEvent)
}

func TestProcessPending(t *testing.T) {
	synced := storedInvoice(2, "INV-2025-0002")
	synced.SyncStatus = storage.SyncSynced
	store := newFakeStore(storedInvoice(1, "INV-2025-0001"), synced, storedInvoice(3, "INV-2025-0003"))
	ledger := memory.New()
	w := NewSyncWorker(store, ledger, WithLogger(applog.Discard()))

	n, failed, err := w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, failed)
	assert.Len(t, ledger.Rows(), 2)

	n, _, err = w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessPending_CountsFailures(t *testing.T) {
	store := newFakeStore(storedInvoice(1, "INV-2025-0001"))
	w := NewSyncWorker(store, failingLedger{}, WithLogger(applog.Discard()))

	n, failed, err := w.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, failed)
	assert.NoError(t, w.StartupSyncCheck(context.Background()))
}

func TestArchive_Save(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Save(&pdf.Document{FileName: "x.pdf"})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	path, err := archive.Save(&pdf.Document{FileName: "../escape.pdf", Data: []byte("%PDF-1.3")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive.Dir(), "escape.pdf"), path)

	entries, err := os.ReadDir(archive.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

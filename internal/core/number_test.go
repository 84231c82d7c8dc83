package core

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-0001", NextInvoiceNumber(2025, 0))
	assert.Equal(t, "INV-2025-0042", NextInvoiceNumber(2025, 41))
	assert.Equal(t, "INV-2025-12345", NextInvoiceNumber(2025, 12344))
}

func TestFallbackInvoiceNumber(t *testing.T) {
	now := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC).Add(1234 * time.Millisecond)
	got := FallbackInvoiceNumber(now)

	assert.Regexp(t, `^INV-20250704-\d{4}$`, got)
	assert.Equal(t, fmt.Sprintf("INV-20250704-%04d", now.UnixMilli()%10000), got)
	assert.Equal(t, "INV-2025-TEMP", TemporaryInvoiceNumber(2025))
}

func TestNewDraft(t *testing.T) {
	now := time.Date(2025, 12, 20, 18, 0, 0, 0, time.UTC)
	d := NewDraft("INV-2025-0009", now)

	assert.Equal(t, "2025-12-20", d.IssueDate.String())
	assert.Equal(t, "2026-01-04", d.DueDate.String())
	assert.Equal(t, StatusPending, d.PaymentStatus)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 1, d.Items[0].Seq)
}

func TestDateJSON(t *testing.T) {
	var rec InvoiceRecord
	err := json.Unmarshal([]byte(`{"date":"2025-02-01T00:00:00.000Z","dueDate":"2025-02-16"}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", rec.IssueDate.String())
	assert.Equal(t, "2025-02-16", rec.DueDate.String())

	out, err := json.Marshal(struct {
		D Date `json:"d"`
		E Date `json:"e"`
	}{D: NewDate(2025, 1, 2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-01-02","e":null}`, string(out))
}

func TestRecordClone(t *testing.T) {
	rec := InvoiceRecord{Items: []LineItem{{Seq: 1, Description: "a"}}}
	c := rec.Clone()
	c.Items[0].Description = "b"
	assert.Equal(t, "a", rec.Items[0].Description)
}

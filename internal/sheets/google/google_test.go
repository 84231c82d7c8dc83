package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "invoicer/internal/log"
	ports "invoicer/internal/sheets"
)

const testSpreadsheet = "test-id"

// fakeSheets serves the subset of the Sheets v4 API the client uses over an
// in-memory grid.
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]interface{}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + testSpreadsheet
	p := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && p == prefix+":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			if d := rq.DeleteDimension; d != nil {
				f.rows = append(f.rows[:d.Range.StartIndex], f.rows[d.Range.EndIndex:]...)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && p == prefix:
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":7,"title":"Invoices"}}]}`))
	case strings.HasPrefix(p, prefix+"/values/"):
		rng := strings.TrimPrefix(p, prefix+"/values/")
		if r.Method == http.MethodGet {
			var col [][]interface{}
			for _, row := range f.rows {
				col = append(col, row[:1])
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": rng, "values": col})
			return
		}
		var start, end int
		cells := rng[strings.Index(rng, "!")+1:]
		if _, err := fmt.Sscanf(cells, "A%d:G%d", &start, &end); err != nil {
			http.Error(w, "bad range "+cells, http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for len(f.rows) < start {
			f.rows = append(f.rows, []interface{}{""})
		}
		f.rows[start-1] = vr.Values[0]
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) column() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = fmt.Sprint(r[0])
	}
	return out
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(),
		Config{SpreadsheetID: testSpreadsheet, SheetName: "Invoices"},
		applog.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, applog.Discard())
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	data, err := loadCredentials(context.Background(), Config{ServiceAccountJSON: ` {"type":"service_account"} `}, applog.Discard())
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(data))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	data, err = loadCredentials(context.Background(), Config{ServiceAccountFile: path}, applog.Discard())
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(data))

	_, err = loadCredentials(context.Background(), Config{ServiceAccountFile: path + ".missing"}, applog.Discard())
	assert.Error(t, err)

	_, err = loadCredentials(context.Background(), Config{}, applog.Discard())
	assert.ErrorIs(t, err, ErrMissingCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	data, err = loadCredentials(context.Background(), Config{}, applog.Discard())
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(data))
}

func TestClient_UpsertWritesHeaderThenRows(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	ref, err := c.Upsert(ctx, ports.LedgerRow{Number: "INV-2025-0001", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, "'Invoices'!A2:G2", ref)

	ref, err = c.Upsert(ctx, ports.LedgerRow{Number: "INV-2025-0002", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, "'Invoices'!A3:G3", ref)

	ref, err = c.Upsert(ctx, ports.LedgerRow{Number: "INV-2025-0001", NetTotal: "50.00", Version: 2})
	require.NoError(t, err)
	assert.Equal(t, "'Invoices'!A2:G2", ref)

	assert.Equal(t, []string{"Invoice Number", "INV-2025-0001", "INV-2025-0002"}, fake.column())
	assert.Equal(t, "50.00", fake.rows[1][4])
}

func TestClient_UpsertRejectsForeignSheet(t *testing.T) {
	fake := &fakeSheets{rows: [][]interface{}{{"Something else"}}}
	c := newTestClient(t, fake)

	_, err := c.Upsert(context.Background(), ports.LedgerRow{Number: "INV-2025-0001"})
	assert.Error(t, err)
}

func TestClient_Delete(t *testing.T) {
	fake := &fakeSheets{rows: [][]interface{}{
		{"Invoice Number"},
		{"INV-2025-0001"},
		{"INV-2025-0002"},
		{"INV-2025-0003"},
	}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "INV-2025-0002"))
	assert.Equal(t, []string{"Invoice Number", "INV-2025-0001", "INV-2025-0003"}, fake.column())

	require.NoError(t, c.Delete(ctx, "INV-2025-0404"))
	assert.Len(t, fake.column(), 3)
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheet: "Invoices"}
	_, err := c.Upsert(context.Background(), ports.LedgerRow{Number: "A"})
	assert.Error(t, err)
	assert.Error(t, c.Delete(context.Background(), "A"))
}

func TestFindRow(t *testing.T) {
	values := [][]interface{}{{"Invoice Number"}, {"INV-1"}, {}, {" INV-2 "}}
	assert.Equal(t, 2, findRow(values, "INV-1"))
	assert.Equal(t, 4, findRow(values, "INV-2"))
	assert.Zero(t, findRow(values, "Invoice Number"))
	assert.Zero(t, findRow(nil, "INV-1"))
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'Invoices'!A:A", a1("Invoices", "A:A"))
	assert.Equal(t, "'Bob''s Ledger'!A2:G2", a1("Bob's Ledger", "A2:G2"))
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"invoicer/internal/core"
	"invoicer/internal/storage"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

const maxListLimit = 500

// errBadRequest marks malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseID reads the {id} path parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid invoice id %q", raw)
	}
	return id, nil
}

// decodeJSON decodes a single JSON document from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("request body larger than %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return badRequest("empty request body")
		default:
			return badRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must hold a single JSON document")
	}
	return nil
}

// decodeInvoice decodes an invoice record and strips control characters
// from its free-text fields.
func decodeInvoice(w http.ResponseWriter, r *http.Request) (core.InvoiceRecord, error) {
	var rec core.InvoiceRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		return core.InvoiceRecord{}, err
	}

	rec.Number = sanitizeInput(rec.Number)
	rec.CustomerName = sanitizeInput(rec.CustomerName)
	rec.CustomerEmail = sanitizeInput(rec.CustomerEmail)
	rec.CustomerPhone = sanitizeInput(rec.CustomerPhone)
	rec.CustomerAddress = sanitizeInput(rec.CustomerAddress)
	rec.Notes = sanitizeInput(rec.Notes)
	for i := range rec.Items {
		rec.Items[i].Description = sanitizeInput(rec.Items[i].Description)
	}
	return rec, nil
}

// parseListFilter reads status, limit and offset from the query string.
func parseListFilter(q url.Values) (storage.ListFilter, error) {
	var f storage.ListFilter

	if s := strings.TrimSpace(q.Get("status")); s != "" {
		f.Status = core.PaymentStatus(strings.ToLower(s))
		if !f.Status.Valid() {
			return f, badRequest("invalid status %q", s)
		}
	}

	var err error
	if f.Limit, err = queryInt(q, "limit", 0, maxListLimit); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(q, "offset", 0, -1); err != nil {
		return f, err
	}
	return f, nil
}

// queryInt parses a non-negative integer parameter. max < 0 means unbounded.
func queryInt(q url.Values, key string, def, max int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s %q", key, v)
	}
	if max >= 0 && n > max {
		n = max
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/services"
	"invoicer/internal/storage"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Data    any               `json:"data"`
	Error   string            `json:"error,omitempty"`
	Details []core.FieldError `json:"details,omitempty"`
}

// invoiceResponse is a stored invoice with its totals and read-time status.
type invoiceResponse struct {
	core.InvoiceRecord
	services.StatusInfo
	Totals     core.TotalsResult `json:"totals"`
	SyncStatus string            `json:"syncStatus"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (s *Server) toResponse(inv storage.StoredInvoice) invoiceResponse {
	return invoiceResponse{
		InvoiceRecord: inv.InvoiceRecord,
		StatusInfo:    s.svc.Status(inv.InvoiceRecord),
		Totals:        inv.Totals,
		SyncStatus:    inv.SyncStatus,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: msg})
}

// writeServiceError maps a service error to a status code and envelope.
// Unexpected errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(Response{Error: verr.Err.Error(), Details: verr.Details})
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrVersionConflict), errors.Is(err, storage.ErrDuplicateNumber):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoRenderer):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeInternal)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

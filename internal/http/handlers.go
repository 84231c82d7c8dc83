package http

import (
	"net/http"
	"strconv"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
)

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	list, err := s.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	out := make([]invoiceResponse, len(list))
	for i, inv := range list {
		out[i] = s.toResponse(inv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeInvoice(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	stored, err := s.svc.Create(r.Context(), rec)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	s.audit(r, applog.OpCreate, stored.ID, stored.Number)
	w.Header().Set("Location", "/api/v1/invoices/"+strconv.FormatInt(stored.ID, 10))
	writeJSON(w, http.StatusCreated, s.toResponse(stored))
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err)
		return
	}
	stored, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(stored))
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	rec, err := decodeInvoice(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	stored, err := s.svc.Update(r.Context(), id, rec)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	s.audit(r, applog.OpUpdate, stored.ID, stored.Number)
	writeJSON(w, http.StatusOK, s.toResponse(stored))
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	s.audit(r, applog.OpDelete, id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpRender, err)
		return
	}
	doc, err := s.svc.RenderPDF(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, applog.OpRender, err)
		return
	}

	disposition := "attachment"
	if r.URL.Query().Get("inline") == "1" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+doc.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (s *Server) handleInvoiceTotals(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err)
		return
	}
	totals, err := s.svc.Totals(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// handlePreview computes totals and words for an unsaved draft. Nothing is
// validated or stored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeInvoice(w, r)
	if err != nil {
		writeServiceError(w, r, applog.OpPreview, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Preview(rec))
}

func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"invoiceNumber": s.svc.NextNumber(r.Context())})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type statusRequest struct {
	PaymentStatus core.PaymentStatus `json:"paymentStatus"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpStatus, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, applog.OpStatus, err)
		return
	}
	stored, err := s.svc.SetPaymentStatus(r.Context(), id, req.PaymentStatus)
	if err != nil {
		writeServiceError(w, r, applog.OpStatus, err)
		return
	}
	s.audit(r, applog.OpStatus, stored.ID, stored.Number)
	writeJSON(w, http.StatusOK, s.toResponse(stored))
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, r, applog.OpStatus, err)
		return
	}
	stored, err := s.svc.ToggleStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, applog.OpStatus, err)
		return
	}
	s.audit(r, applog.OpStatus, stored.ID, stored.Number)
	writeJSON(w, http.StatusOK, s.toResponse(stored))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeDatabase)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// audit records who changed which invoice.
func (s *Server) audit(r *http.Request, op string, id int64, number string) {
	sess, _ := SessionFromContext(r.Context())
	args := []any{
		applog.FieldOperation, op,
		applog.FieldUser, sess.User,
		applog.FieldInvoiceID, id,
	}
	if number != "" {
		args = append(args, applog.FieldInvoiceNumber, number)
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Invoice changed", args...)
}

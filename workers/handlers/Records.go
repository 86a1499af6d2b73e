package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"

	"golockbridge/types"
)

// GetRecord handles GET /records/{id}
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Records.Get(r.Context(), id)
	if err != nil {
		h.responseError(w, r, err, "")
		return
	}
	if rec == nil {
		// a request rejected before lock submission never gets a record
		if rejected := h.Dispatcher.Rejection(id); rejected != nil {
			h.responseError(w, r, rejected, "")
			return
		}
		responseJSON(w, &APIResponse{Status: "error", Message: fmt.Sprintf("no record %s", id)}, http.StatusNotFound)
		return
	}

	res := &APIRecordResponse{Status: "ok", Record: rec}
	if rec.Status == types.StatusFailed {
		if note, err := h.Records.GetReconciliation(r.Context(), id); err == nil {
			res.Reconciliation = note
		}
	}
	responseJSON(w, res, http.StatusOK)
}

// GetFailedTransactions handles GET /stats/failed
func (h *Handlers) GetFailedTransactions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Records.ListByStatus(r.Context(), types.StatusFailed)
	if err != nil {
		h.responseError(w, r, err, "")
		return
	}
	responseJSON(w, &APIRecordsResponse{Status: "ok", Records: recs}, http.StatusOK)
}

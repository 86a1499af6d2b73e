package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

// LockStatus handles GET /status/{lockId}, answered from the source chain
func (h *Handlers) LockStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Status.QueryByLockID(r.Context(), chi.URLParam(r, "lockId"))
	if err != nil {
		h.responseError(w, r, err, "lockId")
		return
	}
	responseJSON(w, &APIBridgeStatusResponse{Status: "ok", Lock: st}, http.StatusOK)
}

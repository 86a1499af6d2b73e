package handlers

import (
	"net/http"
)

// State lists what can be bridged and at which fees
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIStateResponse{
		Status:        "ok",
		Routes:        h.Bridge.Routes(),
		Fees:          h.Fees,
		BridgeAddress: h.BridgeAddress,
	}, http.StatusOK)
}

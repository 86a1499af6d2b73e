package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"golockbridge/bridge"
	"golockbridge/quote"
	"golockbridge/types"
)

// SubmitLock handles POST /bridge. The workflow runs in the background; the
// caller polls /records/{id} with the returned id.
func (h *Handlers) SubmitLock(w http.ResponseWriter, r *http.Request) {
	var req BridgeRequest
	if err := readJSON(r, w, &req); err != nil {
		h.responseError(w, r, err, "")
		return
	}

	if strings.TrimSpace(req.Recipient) == "" {
		h.responseError(w, r, fmt.Errorf("%w: no recipient provided", types.ErrInvalidRequest), "recipient")
		return
	}

	route, err := h.Bridge.Route(req.Symbol)
	if err != nil {
		h.responseError(w, r, err, "symbol")
		return
	}

	amount, err := quote.ParseAmount(route, req.Amount)
	if err != nil {
		h.responseError(w, r, err, "amount")
		return
	}

	id, err := h.Dispatcher.Start(bridge.Request{Symbol: route.Symbol, Amount: amount, Recipient: req.Recipient})
	if err != nil {
		h.responseError(w, r, err, "amount")
		return
	}

	h.Logger.Info("bridge accepted", zap.String("record_id", id), zap.String("symbol", route.Symbol),
		zap.Stringer("amount", amount), zap.String("recipient", req.Recipient))
	responseJSON(w, &APIAcceptedResponse{Status: "ok", ID: id}, http.StatusAccepted)
}

// Watch handles POST /watch: follow a lock that was submitted earlier,
// for instance after a confirmation timeout. Nothing is submitted.
func (h *Handlers) Watch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := readJSON(r, w, &req); err != nil {
		h.responseError(w, r, err, "")
		return
	}

	raw, err := hexutil.Decode(req.SourceTxHash)
	if err != nil || len(raw) != common.HashLength {
		h.responseError(w, r, fmt.Errorf("%w: malformed source tx hash", types.ErrInvalidRequest), "sourceTxHash")
		return
	}
	if strings.TrimSpace(req.Recipient) == "" {
		h.responseError(w, r, fmt.Errorf("%w: no recipient provided", types.ErrInvalidRequest), "recipient")
		return
	}

	route, err := h.Bridge.Route(req.Symbol)
	if err != nil {
		h.responseError(w, r, err, "symbol")
		return
	}

	watch := bridge.WatchRequest{Symbol: route.Symbol, SourceTxHash: common.BytesToHash(raw), Recipient: req.Recipient}
	if req.Amount != "" {
		if watch.Amount, err = quote.ParseAmount(route, req.Amount); err != nil {
			h.responseError(w, r, err, "amount")
			return
		}
	}

	id, err := h.Dispatcher.Watch(watch)
	if err != nil {
		h.responseError(w, r, err, "")
		return
	}
	responseJSON(w, &APIAcceptedResponse{Status: "ok", ID: id}, http.StatusAccepted)
}

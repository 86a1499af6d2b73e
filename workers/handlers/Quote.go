package handlers

import (
	"net/http"

	"golockbridge/quote"
)

// Quote handles GET /quote?symbol=USDC&amount=12.5
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	route, err := h.Bridge.Route(symbol)
	if err != nil {
		h.responseError(w, r, err, "symbol")
		return
	}

	amount, err := quote.ParseAmount(route, r.URL.Query().Get("amount"))
	if err != nil {
		h.responseError(w, r, err, "amount")
		return
	}

	q, err := h.Bridge.Quote(route.Symbol, amount)
	if err != nil {
		h.responseError(w, r, err, "amount")
		return
	}

	responseJSON(w, &APIQuoteResponse{
		Status:            "ok",
		Quote:             q,
		AmountIn:          quote.FormatAmount(q.AmountIn, route.SourceDecimals),
		NetAmount:         quote.FormatAmount(q.NetAmount, route.SourceDecimals),
		TotalFee:          quote.FormatAmount(q.TotalFee, route.SourceDecimals),
		DestinationAmount: quote.FormatAmount(q.DestinationAmount, route.DestinationDecimals),
		EstimatedSeconds:  q.EstimatedTime.Seconds(),
	}, http.StatusOK)
}

package handlers

import (
	"golockbridge/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

type APIStateResponse struct {
	Status        string             `json:"status"`
	Message       string             `json:"message,omitempty"`
	Routes        []types.TokenRoute `json:"routes"`
	Fees          types.FeeSchedule  `json:"fees"`
	BridgeAddress string             `json:"bridgeAddress"`
}

type APIHealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Destination string `json:"destination"`
}

type APIQuoteResponse struct {
	Status string             `json:"status"`
	Quote  *types.BridgeQuote `json:"quote"`
	// human readable amounts
	AmountIn          string  `json:"amountInFormatted"`
	NetAmount         string  `json:"netAmountFormatted"`
	TotalFee          string  `json:"totalFeeFormatted"`
	DestinationAmount string  `json:"destinationAmountFormatted"`
	EstimatedSeconds  float64 `json:"estimatedSeconds"`
}

// BridgeRequest amounts are decimal strings in whole tokens, e.g. "12.5"
type BridgeRequest struct {
	Symbol    string `json:"symbol"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type WatchRequest struct {
	Symbol       string `json:"symbol"`
	SourceTxHash string `json:"sourceTxHash"`
	Amount       string `json:"amount,omitempty"`
	Recipient    string `json:"recipient"`
}

type APIAcceptedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type APIRecordResponse struct {
	Status         string                    `json:"status"`
	Record         *types.LockRecord         `json:"record"`
	Reconciliation *types.ReconciliationNote `json:"reconciliation,omitempty"`
}

type APIRecordsResponse struct {
	Status  string              `json:"status"`
	Records []*types.LockRecord `json:"records"`
}

type APIBridgeStatusResponse struct {
	Status string              `json:"status"`
	Lock   *types.BridgeStatus `json:"lock"`
}

package types

import (
	"math/big"
	"time"
)

// TokenRoute is the static per-asset bridge configuration.
// Routes are loaded once from config and passed by value, never mutated.
type TokenRoute struct {
	Symbol              string `yaml:"symbol" json:"symbol"`
	SourceToken         string `yaml:"source_token" json:"sourceToken"`             // ERC-20 address on the EVM chain
	DestinationAsset    string `yaml:"destination_asset" json:"destinationAsset"`   // asset id on the destination ledger
	SourceDecimals      uint8  `yaml:"source_decimals" json:"sourceDecimals"`
	DestinationDecimals uint8  `yaml:"destination_decimals" json:"destinationDecimals"`
	RequiresApproval    bool   `yaml:"requires_approval" json:"requiresApproval"`
}

// FeeComponent is one named fee, as a basis-point rate (1 bps = 0.01%)
type FeeComponent struct {
	Name    string `yaml:"name" json:"name"`
	RateBps uint32 `yaml:"rate_bps" json:"rateBps"`
}

// FeeSchedule is applied in order; the sum of rates must stay below 10000
type FeeSchedule struct {
	Components []FeeComponent `yaml:"components" json:"components"`
}

func (s FeeSchedule) TotalBps() uint64 {
	var total uint64
	for _, c := range s.Components {
		total += uint64(c.RateBps)
	}
	return total
}

type FeeAmount struct {
	Name    string   `json:"name"`
	RateBps uint32   `json:"rateBps"`
	Amount  *big.Int `json:"amount"`
}

// BridgeQuote is recomputed on demand and never persisted.
// All amounts are in the source token's smallest unit, except DestinationAmount.
type BridgeQuote struct {
	Symbol            string        `json:"symbol"`
	AmountIn          *big.Int      `json:"amountIn"`
	NetAmount         *big.Int      `json:"netAmount"`
	DestinationAmount *big.Int      `json:"destinationAmount"` // net amount at destination precision
	Fees              []FeeAmount   `json:"fees"`
	TotalFee          *big.Int      `json:"totalFee"`
	TotalFeeBps       uint64        `json:"totalFeeBps"`
	EstimatedTime     time.Duration `json:"estimatedTime"`
}

// ErrorDetail is the failure reason stored on a failed LockRecord
type ErrorDetail struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// LockRecord is a single bridge operation from lock submission to mint.
// It is owned by one status machine for the lifetime of the workflow.
type LockRecord struct {
	ID               string               `json:"id"`
	Symbol           string               `json:"symbol"`
	SourceTxHash     string               `json:"sourceTxHash"`     // known once the lock tx is submitted
	LockID           string               `json:"lockId,omitempty"` // empty until extracted from the receipt
	Amount           *big.Int             `json:"amount"`           // requested amount, source smallest unit
	ExpectedMint     *big.Int             `json:"expectedMint,omitempty"`
	Recipient        string               `json:"recipient"`
	Status           Status               `json:"status"`
	DestinationTxRef string               `json:"destinationTxRef,omitempty"`
	Error            *ErrorDetail         `json:"error,omitempty"`
	Timestamps       map[Status]time.Time `json:"timestamps"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (r LockRecord) Clone() LockRecord {
	c := r
	if r.Amount != nil {
		c.Amount = new(big.Int).Set(r.Amount)
	}
	if r.ExpectedMint != nil {
		c.ExpectedMint = new(big.Int).Set(r.ExpectedMint)
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	c.Timestamps = make(map[Status]time.Time, len(r.Timestamps))
	for k, v := range r.Timestamps {
		c.Timestamps[k] = v
	}
	return c
}

// StatusEvent is published on every transition of a LockRecord
type StatusEvent struct {
	Previous Status     `json:"previous"`
	Record   LockRecord `json:"record"`
}

// LockStatus is what the bridge contract reports for a lock id
type LockStatus struct {
	Exists    bool
	Completed bool
	Amount    *big.Int
	Timestamp time.Time
}

// LedgerBalance is one observation of the destination ledger
type LedgerBalance struct {
	Balance   *big.Int `json:"balance"`
	LastTxRef string   `json:"lastTxRef"`
}

// BridgeStatus is the re-derived status of a lock, independent of in-memory state
type BridgeStatus struct {
	LockID               string       `json:"lockId"`
	Status               Status       `json:"status"`
	Amount               *big.Int     `json:"amount,omitempty"`
	SourceCompleted      bool         `json:"sourceCompleted"`
	LockedAt             *time.Time   `json:"lockedAt,omitempty"`
	SourceTxHash         string       `json:"sourceTxHash,omitempty"`
	DestinationTxRef     string       `json:"destinationTxRef,omitempty"`
	DestinationReachable bool         `json:"destinationReachable"`
	Error                *ErrorDetail `json:"error,omitempty"`
}

// ReconciliationNote is the operator-facing result of re-deriving a failed record
type ReconciliationNote struct {
	RecordID  string        `json:"recordId"`
	LockID    string        `json:"lockId"`
	Status    *BridgeStatus `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checkedAt"`
}

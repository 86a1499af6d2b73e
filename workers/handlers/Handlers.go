package handlers

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"golockbridge/bridge"
	"golockbridge/types"
)

type Bridge interface {
	Routes() []types.TokenRoute
	Route(symbol string) (types.TokenRoute, error)
	Quote(symbol string, amount *big.Int) (*types.BridgeQuote, error)
}

type Dispatcher interface {
	Start(req bridge.Request) (string, error)
	Watch(req bridge.WatchRequest) (string, error)
	Rejection(id string) error
}

type Records interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (*types.LockRecord, error)
	ListByStatus(ctx context.Context, status types.Status) ([]*types.LockRecord, error)
	GetReconciliation(ctx context.Context, recordID string) (*types.ReconciliationNote, error)
}

type StatusQuery interface {
	QueryByLockID(ctx context.Context, lockID string) (*types.BridgeStatus, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers carries what the HTTP endpoints need
type Handlers struct {
	Bridge        Bridge
	Dispatcher    Dispatcher
	Records       Records
	Status        StatusQuery
	Ledger        Pinger
	Fees          types.FeeSchedule
	BridgeAddress string
	Logger        *zap.Logger
}

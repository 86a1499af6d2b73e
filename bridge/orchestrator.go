package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"golockbridge/lockevent"
	"golockbridge/logger"
	"golockbridge/monitor"
	"golockbridge/quote"
	"golockbridge/types"
)

// SourceChain is the source-chain accessor, implemented by EVMRPC.Gateway
type SourceChain interface {
	BridgeAddress() common.Address
	EnsureApproval(ctx context.Context, route types.TokenRoute, amount *big.Int) error
	SubmitLock(ctx context.Context, route types.TokenRoute, amount *big.Int, recipient string) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	ReadLockStatus(ctx context.Context, lockID common.Hash) (*types.LockStatus, error)
}

// MintWatcher is the destination-ledger monitor
type MintWatcher interface {
	Baseline(ctx context.Context, recipient, asset string) (*types.LedgerBalance, error)
	AwaitMint(ctx context.Context, req monitor.MintRequest) (string, error)
}

type Settings struct {
	Routes        []types.TokenRoute
	Fees          types.FeeSchedule
	MaxAttempts   int
	PollInterval  time.Duration
	RequireAmount bool

	// only with RequireAmount
	ExactAmount bool
}

// Request asks to bridge Amount (source smallest units) of Symbol to Recipient
type Request struct {
	// optional, generated when empty
	ID        string   `json:"id,omitempty"`
	Symbol    string   `json:"symbol"`
	Amount    *big.Int `json:"amount"`
	Recipient string   `json:"recipient"`
}

// WatchRequest picks up a lock whose transaction was already submitted
type WatchRequest struct {
	// optional, generated when empty
	ID           string
	Symbol       string
	SourceTxHash common.Hash
	Amount       *big.Int
	Recipient    string
}

// Orchestrator drives lock workflows. It holds no per-workflow state; each
// run owns its Machine, so any number of runs may proceed concurrently.
type Orchestrator struct {
	source SourceChain
	mint   MintWatcher
	routes map[string]types.TokenRoute
	cfg    Settings
	events Publisher
	logger *zap.Logger
}

func NewOrchestrator(cfg Settings, source SourceChain, mint MintWatcher, events Publisher, logger *zap.Logger) *Orchestrator {
	routes := make(map[string]types.TokenRoute, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes[strings.ToUpper(r.Symbol)] = r
	}
	return &Orchestrator{source: source, mint: mint, routes: routes, cfg: cfg, events: events, logger: logger}
}

func (o *Orchestrator) Route(symbol string) (types.TokenRoute, error) {
	route, ok := o.routes[strings.ToUpper(symbol)]
	if !ok {
		return types.TokenRoute{}, fmt.Errorf("%w: %q", types.ErrUnknownRoute, symbol)
	}
	return route, nil
}

func (o *Orchestrator) Routes() []types.TokenRoute {
	return o.cfg.Routes
}

func (o *Orchestrator) Quote(symbol string, amount *big.Int) (*types.BridgeQuote, error) {
	route, err := o.Route(symbol)
	if err != nil {
		return nil, err
	}
	return quote.Quote(route, o.cfg.Fees, amount)
}

// Validate runs every check that needs no network call
func (o *Orchestrator) Validate(req Request) (types.TokenRoute, *types.BridgeQuote, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return types.TokenRoute{}, nil, fmt.Errorf("%w: empty recipient", types.ErrInvalidRequest)
	}
	route, err := o.Route(req.Symbol)
	if err != nil {
		return types.TokenRoute{}, nil, err
	}
	q, err := quote.Quote(route, o.cfg.Fees, req.Amount)
	if err != nil {
		return types.TokenRoute{}, nil, err
	}
	return route, q, nil
}

// Run performs the whole bridge: approval, lock, confirmation, lock id
// extraction and mint observation. Errors before the lock is submitted return
// without a record; afterwards the record is failed and the error is a
// *types.WorkflowError carrying it.
func (o *Orchestrator) Run(ctx context.Context, req Request) (types.LockRecord, error) {
	route, q, err := o.Validate(req)
	if err != nil {
		return types.LockRecord{}, err
	}
	if err := cancelled(ctx, "before approval"); err != nil {
		return types.LockRecord{}, err
	}

	if err := o.source.EnsureApproval(ctx, route, req.Amount); err != nil {
		return types.LockRecord{}, classify(ctx, err)
	}

	baseline, err := o.mint.Baseline(ctx, req.Recipient, route.DestinationAsset)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, types.ErrDestinationUnavailable) {
			err = fmt.Errorf("%w: %w", types.ErrDestinationUnavailable, err)
		}
		return types.LockRecord{}, classify(ctx, err)
	}

	// last point where nothing has been sent for this workflow
	if err := cancelled(ctx, "before lock submission"); err != nil {
		return types.LockRecord{}, err
	}

	req.Symbol = route.Symbol
	m := o.newMachine(req, q)
	rec := m.Snapshot()
	log := o.logger.With(logger.Record(rec.ID, "", "")...)

	txHash, err := o.source.SubmitLock(ctx, route, req.Amount, req.Recipient)
	if err != nil {
		if txHash != (common.Hash{}) {
			// signed but unacknowledged: keep the hash so Watch can pick it up
			m.MarkLocking(txHash.Hex())
			log = log.With(zap.String("source_tx", txHash.Hex()))
		}
		return o.fail(ctx, m, log, err)
	}
	if _, err := m.MarkLocking(txHash.Hex()); err != nil {
		return o.fail(ctx, m, log, err)
	}
	log = log.With(zap.String("source_tx", txHash.Hex()))
	log.Info("lock submitted", zap.String("symbol", route.Symbol), zap.Stringer("amount", req.Amount))

	return o.follow(ctx, m, log, route, txHash, baseline)
}

// Watch follows an already submitted lock transaction, typically one whose
// earlier run ended in ConfirmationTimeout. It never submits anything.
func (o *Orchestrator) Watch(ctx context.Context, req WatchRequest) (types.LockRecord, error) {
	route, err := o.Route(req.Symbol)
	if err != nil {
		return types.LockRecord{}, err
	}
	if req.SourceTxHash == (common.Hash{}) {
		return types.LockRecord{}, fmt.Errorf("%w: empty source tx hash", types.ErrInvalidRequest)
	}
	amount := req.Amount
	if amount == nil {
		amount = new(big.Int)
	}

	var expected *big.Int
	if amount.Sign() > 0 {
		if q, err := quote.Quote(route, o.cfg.Fees, amount); err == nil {
			expected = q.DestinationAmount
		}
	}

	m := o.newMachine(Request{ID: req.ID, Symbol: route.Symbol, Amount: amount, Recipient: req.Recipient}, &types.BridgeQuote{DestinationAmount: expected})
	log := o.logger.With(logger.Record(m.Snapshot().ID, req.SourceTxHash.Hex(), "")...)
	if _, err := m.MarkLocking(req.SourceTxHash.Hex()); err != nil {
		return o.fail(ctx, m, log, err)
	}
	log.Info("watching submitted lock")
	return o.follow(ctx, m, log, route, req.SourceTxHash, nil)
}

// Resume continues a non-terminal record left behind by a previous process.
// A pending record may or may not have reached the chain, so it is failed
// rather than risk a second lock.
func (o *Orchestrator) Resume(ctx context.Context, rec types.LockRecord) (types.LockRecord, error) {
	if rec.Status.Terminal() {
		return rec, nil
	}
	m := NewMachine(rec, o.events)
	log := o.logger.With(logger.Record(rec.ID, rec.SourceTxHash, rec.LockID)...)

	route, err := o.Route(rec.Symbol)
	if err != nil {
		return o.fail(ctx, m, log, err)
	}

	switch rec.Status {
	case types.StatusPending:
		return o.fail(ctx, m, log, fmt.Errorf("%w: interrupted before the lock transaction was known", types.ErrCancelled))
	case types.StatusLocking:
		log.Info("resuming confirmation wait")
		return o.follow(ctx, m, log, route, common.HexToHash(rec.SourceTxHash), nil)
	default:
		log.Info("resuming mint wait", zap.String("status", string(rec.Status)))
		return o.settle(ctx, m, log, route, common.HexToHash(rec.LockID))
	}
}

func (o *Orchestrator) newMachine(req Request, q *types.BridgeQuote) *Machine {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	rec := types.LockRecord{
		ID:         id,
		Symbol:     req.Symbol,
		Amount:     new(big.Int).Set(req.Amount),
		Recipient:  req.Recipient,
		Timestamps: map[types.Status]time.Time{},
	}
	if q != nil && q.DestinationAmount != nil {
		rec.ExpectedMint = new(big.Int).Set(q.DestinationAmount)
	}
	return NewMachine(rec, o.events)
}

// follow waits for the lock receipt, extracts the lock id and watches the mint.
// A nil baseline means the mint may already have happened.
func (o *Orchestrator) follow(ctx context.Context, m *Machine, log *zap.Logger, route types.TokenRoute, txHash common.Hash, baseline *types.LedgerBalance) (types.LockRecord, error) {
	receipt, err := o.source.AwaitConfirmation(ctx, txHash)
	if err != nil {
		return o.fail(ctx, m, log, err)
	}

	lockID, err := lockevent.Extract(receipt, o.source.BridgeAddress())
	if err != nil {
		log.Error("confirmed lock carries no lock event", zap.Error(err))
		return o.fail(ctx, m, log, err)
	}
	if _, err := m.MarkLocked(lockID.Hex()); err != nil {
		return o.fail(ctx, m, log, err)
	}
	log = log.With(zap.String("lock_id", lockID.Hex()))
	log.Info("lock confirmed")

	if baseline == nil {
		return o.settle(ctx, m, log, route, lockID)
	}
	return o.awaitMint(ctx, m, log, route, baseline)
}

// settle handles a locked record without a baseline: the source contract
// may already report the lock as completed.
func (o *Orchestrator) settle(ctx context.Context, m *Machine, log *zap.Logger, route types.TokenRoute, lockID common.Hash) (types.LockRecord, error) {
	status, err := o.source.ReadLockStatus(ctx, lockID)
	switch {
	case err != nil:
		log.Warn("cannot read lock status, watching the ledger", zap.Error(err))
	case status.Completed:
		if _, err := o.toMinting(m); err != nil {
			return o.fail(ctx, m, log, err)
		}
		rec, _ := m.Complete("")
		log.Info("lock already completed on the source chain")
		return rec, nil
	}
	return o.awaitMint(ctx, m, log, route, nil)
}

func (o *Orchestrator) awaitMint(ctx context.Context, m *Machine, log *zap.Logger, route types.TokenRoute, baseline *types.LedgerBalance) (types.LockRecord, error) {
	rec, err := o.toMinting(m)
	if err != nil {
		return o.fail(ctx, m, log, err)
	}

	destRef, err := o.mint.AwaitMint(ctx, monitor.MintRequest{
		Recipient:      rec.Recipient,
		Asset:          route.DestinationAsset,
		ExpectedAmount: rec.ExpectedMint,
		Baseline:       baseline,
		MaxAttempts:    o.cfg.MaxAttempts,
		Interval:       o.cfg.PollInterval,
		Rule:           o.amountRule(),
	})
	if err != nil {
		return o.fail(ctx, m, log, err)
	}

	rec, err = m.Complete(destRef)
	if err != nil {
		return o.fail(ctx, m, log, err)
	}
	log.Info("bridge completed", zap.String("dest_tx", destRef))
	return rec, nil
}

func (o *Orchestrator) amountRule() monitor.AmountRule {
	switch {
	case o.cfg.RequireAmount && o.cfg.ExactAmount:
		return monitor.ExactlyExpected
	case o.cfg.RequireAmount:
		return monitor.AtLeastExpected
	}
	return monitor.AnyIncrease
}

func (o *Orchestrator) toMinting(m *Machine) (types.LockRecord, error) {
	rec := m.Snapshot()
	if rec.Status == types.StatusMinting {
		return rec, nil
	}
	return m.MarkMinting()
}

func (o *Orchestrator) fail(ctx context.Context, m *Machine, log *zap.Logger, err error) (types.LockRecord, error) {
	err = classify(ctx, err)
	rec := m.Fail(err)
	kind := types.KindOf(err)
	log.Warn("bridge failed", zap.String("kind", string(kind)), zap.Bool("recoverable", types.Recoverable(kind)), zap.Error(err))
	return rec, &types.WorkflowError{Record: rec, Err: err}
}

func cancelled(ctx context.Context, stage string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrCancelled, stage, ctx.Err())
	}
	return nil
}

// classify reports any failure that happened because ctx ended as a cancellation
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, types.ErrCancelled) {
		return fmt.Errorf("%w: %v", types.ErrCancelled, err)
	}
	return err
}

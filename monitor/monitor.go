package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"golockbridge/types"
)

// BalanceReader is the destination ledger accessor
type BalanceReader interface {
	PollBalance(ctx context.Context, account, asset string) (*types.LedgerBalance, error)
}

// AmountRule decides how the balance increase is compared to the expected mint
type AmountRule int

const (
	// AnyIncrease accepts any increase with a new tx reference
	AnyIncrease AmountRule = iota
	// AtLeastExpected needs the increase to cover the expected amount
	AtLeastExpected
	// ExactlyExpected needs the increase to equal the expected amount, so a
	// mint of another workflow to the same account is not taken for ours
	ExactlyExpected
)

type MintRequest struct {
	Recipient      string
	Asset          string
	ExpectedAmount *big.Int
	// nil means the first successful poll becomes the baseline
	Baseline    *types.LedgerBalance
	MaxAttempts int
	Interval    time.Duration
	Rule        AmountRule
}

// Monitor watches a destination account until the mint shows up
type Monitor struct {
	ledger BalanceReader
	logger *zap.Logger
}

func New(ledger BalanceReader, logger *zap.Logger) *Monitor {
	return &Monitor{ledger: ledger, logger: logger}
}

// Baseline is the balance observed before the lock is submitted
func (m *Monitor) Baseline(ctx context.Context, recipient, asset string) (*types.LedgerBalance, error) {
	bal, err := m.ledger.PollBalance(ctx, recipient, asset)
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// AwaitMint polls at most MaxAttempts times, Interval apart, and returns the
// destination transaction reference of the mint. The whole wait is bounded by
// MaxAttempts*Interval regardless of how slow the ledger answers.
func (m *Monitor) AwaitMint(ctx context.Context, req MintRequest) (string, error) {
	if req.MaxAttempts <= 0 || req.Interval <= 0 {
		return "", fmt.Errorf("%w: max attempts and interval must be positive", types.ErrInvalidRequest)
	}

	deadline := time.Duration(req.MaxAttempts) * req.Interval
	pollCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	timer := time.NewTimer(req.Interval)
	defer timer.Stop()

	baseline := req.Baseline
	attempts := 0
	for attempts < req.MaxAttempts {
		attempts++
		bal, err := m.ledger.PollBalance(pollCtx, req.Recipient, req.Asset)
		switch {
		case err != nil:
			m.logger.Debug("destination poll failed", zap.String("recipient", req.Recipient), zap.Int("attempt", attempts), zap.Error(err))
		case baseline == nil:
			baseline = bal
		case Matches(baseline, bal, req.ExpectedAmount, req.Rule):
			m.logger.Info("mint observed", zap.String("recipient", req.Recipient), zap.String("dest_tx", bal.LastTxRef),
				zap.Stringer("balance", bal.Balance), zap.Int("attempt", attempts))
			return bal.LastTxRef, nil
		}

		if attempts == req.MaxAttempts {
			break
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(req.Interval)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: awaiting mint for %s: %w", types.ErrCancelled, req.Recipient, ctx.Err())
		case <-pollCtx.Done():
			attempts = req.MaxAttempts
		case <-timer.C:
		}
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: awaiting mint for %s: %w", types.ErrCancelled, req.Recipient, ctx.Err())
	}
	return "", fmt.Errorf("%w: no mint for %s after %d polls", types.ErrMintTimeout, req.Recipient, attempts)
}

// Matches reports whether current shows a mint on top of baseline: a new
// transaction reference and a higher balance, compared to expected by rule.
// Without an expected amount any increase is accepted.
func Matches(baseline, current *types.LedgerBalance, expected *big.Int, rule AmountRule) bool {
	if baseline == nil || current == nil || current.Balance == nil {
		return false
	}
	if current.LastTxRef == "" || current.LastTxRef == baseline.LastTxRef {
		return false
	}
	base := baseline.Balance
	if base == nil {
		base = new(big.Int)
	}
	if current.Balance.Cmp(base) <= 0 {
		return false
	}
	if expected == nil {
		return true
	}
	increase := new(big.Int).Sub(current.Balance, base)
	switch rule {
	case AtLeastExpected:
		return increase.Cmp(expected) >= 0
	case ExactlyExpected:
		return increase.Cmp(expected) == 0
	}
	return true
}

package EVMRPC

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"golockbridge/types"
)

type GatewayConfig struct {
	BridgeAddress  common.Address
	Confirmations  uint64
	ReceiptPoll    time.Duration
	ReceiptTimeout time.Duration
}

// Gateway reads token state and submits approval and lock transactions on the
// source chain. Submissions return immediately; AwaitConfirmation blocks.
type Gateway struct {
	client ChainClient
	signer Signer
	cfg    GatewayConfig
	logger *zap.Logger
}

func NewGateway(client ChainClient, signer Signer, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	return &Gateway{client: client, signer: signer, cfg: cfg, logger: logger}
}

func (g *Gateway) BridgeAddress() common.Address {
	return g.cfg.BridgeAddress
}

// Owner is the account whose tokens get locked
func (g *Gateway) Owner() common.Address {
	return g.signer.Address()
}

func (g *Gateway) callUint(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := ERC20ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s result: %w", method, err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return v, nil
}

func (g *Gateway) ReadBalance(ctx context.Context, route types.TokenRoute, owner common.Address) (*big.Int, error) {
	return g.callUint(ctx, common.HexToAddress(route.SourceToken), "balanceOf", owner)
}

// ReadAllowance is what owner allows the bridge contract to pull
func (g *Gateway) ReadAllowance(ctx context.Context, route types.TokenRoute, owner common.Address) (*big.Int, error) {
	return g.callUint(ctx, common.HexToAddress(route.SourceToken), "allowance", owner, g.cfg.BridgeAddress)
}

// CheckApproval reports whether the bridge may already pull amount from owner
func (g *Gateway) CheckApproval(ctx context.Context, route types.TokenRoute, owner common.Address, amount *big.Int) (bool, error) {
	if !route.RequiresApproval {
		return true, nil
	}
	allowance, err := g.ReadAllowance(ctx, route, owner)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(amount) >= 0, nil
}

func (g *Gateway) SubmitApproval(ctx context.Context, route types.TokenRoute, amount *big.Int) (common.Hash, error) {
	data, err := ERC20ABI.Pack("approve", g.cfg.BridgeAddress, amount)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := g.signer.Submit(ctx, TxCall{To: common.HexToAddress(route.SourceToken), Data: data})
	if err != nil {
		return hash, err
	}
	g.logger.Info("approval submitted", zap.String("token", route.Symbol), zap.String("tx", hash.Hex()), zap.Stringer("amount", amount))
	return hash, nil
}

// EnsureApproval submits and confirms an approval only when the allowance is short
func (g *Gateway) EnsureApproval(ctx context.Context, route types.TokenRoute, amount *big.Int) error {
	ok, err := g.CheckApproval(ctx, route, g.Owner(), amount)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	hash, err := g.SubmitApproval(ctx, route, amount)
	if err != nil {
		return err
	}
	_, err = g.AwaitConfirmation(ctx, hash)
	return err
}

// SubmitLock checks the balance, then submits lock(token, amount, recipient).
// On ErrBroadcastUncertain the returned hash is the signed lock tx.
func (g *Gateway) SubmitLock(ctx context.Context, route types.TokenRoute, amount *big.Int, recipient string) (common.Hash, error) {
	owner := g.Owner()
	balance, err := g.ReadBalance(ctx, route, owner)
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(amount) < 0 {
		return common.Hash{}, fmt.Errorf("%w: %s holds %s %s, %s requested",
			types.ErrInsufficientBalance, owner.Hex(), balance, route.Symbol, amount)
	}

	data, err := BridgeABI.Pack("lock", common.HexToAddress(route.SourceToken), amount, recipient)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := g.signer.Submit(ctx, TxCall{To: g.cfg.BridgeAddress, Data: data})
	if err != nil {
		// a non-zero hash must reach the caller, the lock may be on chain
		return hash, err
	}
	g.logger.Info("lock submitted", zap.String("token", route.Symbol), zap.String("tx", hash.Hex()),
		zap.Stringer("amount", amount), zap.String("recipient", recipient))
	return hash, nil
}

// AwaitConfirmation polls for the receipt until it is Confirmations deep.
// A timeout is recoverable by calling again with the same hash; never resubmit.
func (g *Gateway) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(waitCtx, txHash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx %s in block %v", types.ErrTransactionReverted, txHash.Hex(), receipt.BlockNumber)
			}
			if g.deepEnough(waitCtx, receipt) {
				return receipt, nil
			}
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			g.logger.Warn("error fetching receipt", zap.String("tx", txHash.Hex()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: waiting for %s: %w", types.ErrCancelled, txHash.Hex(), ctx.Err())
			}
			return nil, fmt.Errorf("%w: no receipt for %s within %s", types.ErrConfirmationTimeout, txHash.Hex(), g.cfg.ReceiptTimeout)
		case <-ticker.C:
		}
	}
}

func (g *Gateway) deepEnough(ctx context.Context, receipt *ethtypes.Receipt) bool {
	if g.cfg.Confirmations <= 1 || receipt.BlockNumber == nil {
		return true
	}
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		g.logger.Warn("error getting head block", zap.Error(err))
		return false
	}
	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= g.cfg.Confirmations
}

// ReadLockStatus reads the bridge's own view of a lock
func (g *Gateway) ReadLockStatus(ctx context.Context, lockID common.Hash) (*types.LockStatus, error) {
	data, err := BridgeABI.Pack("lockStatus", lockID)
	if err != nil {
		return nil, err
	}
	bridge := g.cfg.BridgeAddress
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &bridge, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("lockStatus call failed: %w", err)
	}
	values, err := BridgeABI.Unpack("lockStatus", out)
	if err != nil {
		return nil, fmt.Errorf("cannot decode lockStatus result: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("lockStatus returned %d values", len(values))
	}
	completed, _ := values[0].(bool)
	amount, _ := values[1].(*big.Int)
	ts, _ := values[2].(*big.Int)
	if amount == nil || ts == nil {
		return nil, fmt.Errorf("unexpected lockStatus result types %T, %T", values[1], values[2])
	}

	status := &types.LockStatus{
		Exists:    completed || amount.Sign() > 0 || ts.Sign() > 0,
		Completed: completed,
		Amount:    amount,
	}
	if ts.Sign() > 0 {
		status.Timestamp = time.Unix(ts.Int64(), 0).UTC()
	}
	return status, nil
}

package EVMRPC

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ChainClient is the part of *ethclient.Client the bridge needs
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

type endpoint struct {
	url    string
	client ChainClient
}

// FailoverClient tries each RPC endpoint in order and returns the first success.
type FailoverClient struct {
	endpoints []endpoint
	logger    *zap.Logger
}

// Dial connects to every url in the list; unreachable ones are skipped
func Dial(urls []string, logger *zap.Logger) (*FailoverClient, error) {
	f := &FailoverClient{logger: logger}
	for _, url := range urls {
		client, err := ethclient.Dial(url)
		if err != nil {
			logger.Warn("error connecting to EVM RPC", zap.String("url", url), zap.Error(err))
			continue
		}
		f.endpoints = append(f.endpoints, endpoint{url: url, client: client})
	}
	if len(f.endpoints) == 0 {
		return nil, fmt.Errorf("no EVM RPC endpoint reachable out of %d", len(urls))
	}
	return f, nil
}

// NewFailoverClient wraps already constructed clients in priority order
func NewFailoverClient(logger *zap.Logger, clients ...ChainClient) *FailoverClient {
	f := &FailoverClient{logger: logger}
	for i, c := range clients {
		f.endpoints = append(f.endpoints, endpoint{url: fmt.Sprintf("client-%d", i), client: c})
	}
	return f
}

func withClient[T any](f *FailoverClient, ctx context.Context, call func(client ChainClient) (T, error)) (res T, err error) {
	err = fmt.Errorf("no EVM RPC endpoints configured")
	for _, ep := range f.endpoints {
		res, err = call(ep.client)
		if err == nil || !retryable(err) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		f.logger.Debug("EVM RPC call failed, trying next endpoint", zap.String("url", ep.url), zap.Error(err))
	}
	return
}

// retryable is false for answers that another node would give identically
func retryable(err error) bool {
	return err != ethereum.NotFound
}

func (f *FailoverClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return withClient(f, ctx, func(c ChainClient) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (f *FailoverClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	// a receipt missing on one node may be present on a node further ahead
	var lastErr error
	for _, ep := range f.endpoints {
		receipt, err := ep.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ethereum.NotFound
	}
	return nil, lastErr
}

func (f *FailoverClient) BlockNumber(ctx context.Context) (uint64, error) {
	return withClient(f, ctx, func(c ChainClient) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

func (f *FailoverClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return withClient(f, ctx, func(c ChainClient) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (f *FailoverClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return withClient(f, ctx, func(c ChainClient) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (f *FailoverClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return withClient(f, ctx, func(c ChainClient) (uint64, error) {
		return c.EstimateGas(ctx, msg)
	})
}

// SendTransaction broadcasts the same signed tx to the next node on failure;
// the hash is fixed by the signature so this cannot double-submit.
func (f *FailoverClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	_, err := withClient(f, ctx, func(c ChainClient) (struct{}, error) {
		return struct{}{}, c.SendTransaction(ctx, tx)
	})
	return err
}

func (f *FailoverClient) Close() {
	for _, ep := range f.endpoints {
		if c, ok := ep.client.(*ethclient.Client); ok {
			c.Close()
		}
	}
}

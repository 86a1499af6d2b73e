package LEDGERRPC

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ybbus/jsonrpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"golockbridge/types"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	URL               string
	BalanceMethod     string
	HealthMethod      string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client reads account balances from the destination ledger over JSON-RPC.
// All monitors share one client, so the rate limit and breaker are process wide.
type Client struct {
	rpc            jsonrpc.RPCClient
	cfg            Config
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

type balanceParams struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
}

type balanceResult struct {
	Balance   json.Number `json:"balance"`
	LastTxRef string      `json:"lastTxRef"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BalanceMethod == "" {
		cfg.BalanceMethod = "ledger_getBalance"
	}
	if cfg.HealthMethod == "" {
		cfg.HealthMethod = "ledger_health"
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	cbSettings := gobreaker.Settings{
		Name:        "LedgerRPC",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("ledger circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		rpc: jsonrpc.NewClientWithOpts(cfg.URL, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}),
		cfg:            cfg,
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(limit, cfg.Burst),
		logger:         logger,
	}
}

// PollBalance reads the balance of asset held by account and the reference of
// the last transaction that touched it. Any failure is DestinationUnavailable.
func (c *Client) PollBalance(ctx context.Context, account, asset string) (*types.LedgerBalance, error) {
	var res balanceResult
	if err := c.call(ctx, &res, c.cfg.BalanceMethod, &balanceParams{Account: account, Asset: asset}); err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(res.Balance.String(), 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed balance %q for %s", types.ErrDestinationUnavailable, res.Balance, account)
	}
	return &types.LedgerBalance{Balance: balance, LastTxRef: res.LastTxRef}, nil
}

// Ping checks that the ledger answers at all
func (c *Client) Ping(ctx context.Context) error {
	var res json.RawMessage
	return c.call(ctx, &res, c.cfg.HealthMethod)
}

func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", types.ErrDestinationUnavailable, err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.callInternal(ctx, out, method, params...)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrDestinationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", types.ErrDestinationUnavailable, method, err)
}

// the jsonrpc client has no context support; the http timeout bounds the
// goroutine left behind when ctx ends first
func (c *Client) callInternal(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	done := make(chan error, 1)
	go func() {
		done <- c.rpc.CallFor(out, method, params...)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			c.logger.Debug("ledger RPC call failed", zap.String("method", method), zap.Error(err))
		}
		return err
	}
}

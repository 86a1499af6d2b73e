package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"golockbridge/EVMRPC"
	"golockbridge/LEDGERRPC"
	"golockbridge/bridge"
	"golockbridge/config"
	"golockbridge/logger"
	"golockbridge/metrics"
	"golockbridge/monitor"
	"golockbridge/redis"
	"golockbridge/status"
	"golockbridge/workers"
	"golockbridge/workers/handlers"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the yaml configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	lg, err := logger.New(cfg.Server.Env, cfg.Server.LogFile)
	if err != nil {
		log.Fatalf("error building logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Error("bridge stopped with error", zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Configuration, lg *zap.Logger) error {
	lg.Info("starting lock bridge", zap.String("env", cfg.Server.Env), zap.Int("routes", len(cfg.Routes)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// without persistence do not continue
	pool := redis.NewPool(cfg.Server.RedisHost, cfg.Server.RedisPort)
	defer pool.Close()
	store := redis.NewStore(pool, lg.Named("store"))
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach redis: %w", err)
	}

	chain, err := EVMRPC.Dial(cfg.EVM.RPCList, lg.Named("evm"))
	if err != nil {
		return err
	}
	defer chain.Close()

	signer, err := EVMRPC.NewKeyedSigner(chain, cfg.EVM.PrivateKey, cfg.EVM.ChainID)
	if err != nil {
		return fmt.Errorf("cannot load signer key: %w", err)
	}
	if cfg.EVM.PublicAddress != "" && !strings.EqualFold(cfg.EVM.PublicAddress, signer.Address().Hex()) {
		lg.Warn("configured address does not match signer key",
			zap.String("configured", cfg.EVM.PublicAddress), zap.String("signer", signer.Address().Hex()))
	}

	gateway := EVMRPC.NewGateway(chain, signer, EVMRPC.GatewayConfig{
		BridgeAddress:  common.HexToAddress(cfg.EVM.BridgeAddress),
		Confirmations:  cfg.EVM.Confirmations,
		ReceiptPoll:    cfg.EVM.ReceiptPoll,
		ReceiptTimeout: cfg.EVM.ReceiptTimeout,
	}, lg.Named("gateway"))

	ledger := LEDGERRPC.NewClient(LEDGERRPC.Config{
		URL:               cfg.Ledger.URL,
		BalanceMethod:     cfg.Ledger.BalanceMethod,
		HealthMethod:      cfg.Ledger.HealthMethod,
		Timeout:           cfg.Ledger.Timeout,
		RequestsPerSecond: cfg.Ledger.RequestsPerSecond,
		Burst:             cfg.Ledger.Burst,
	}, lg.Named("ledger"))
	if err := ledger.Ping(ctx); err != nil {
		lg.Warn("destination ledger not reachable at startup", zap.Error(err))
	}

	m := metrics.New()
	events := bridge.NewBroadcaster(lg.Named("events"))
	events.Observe(m.Observe)
	persisted := events.Subscribe(1024)

	orch := bridge.NewOrchestrator(bridge.Settings{
		Routes:        cfg.Routes,
		Fees:          cfg.Fees,
		MaxAttempts:   cfg.Monitor.MaxAttempts,
		PollInterval:  cfg.Monitor.PollInterval,
		RequireAmount: cfg.Monitor.RequireAmount,
		ExactAmount:   cfg.Monitor.ExactAmount,
	}, gateway, monitor.New(ledger, lg.Named("monitor")), events, lg.Named("bridge"))

	dispatcher := bridge.NewDispatcher(ctx, orch, lg.Named("dispatcher"))
	query := status.NewService(gateway, ledger, store, lg.Named("status"))

	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		store.Persist(ctx, persisted)
	}()

	if n, err := workers.ResumeOrphans(ctx, store, dispatcher, lg); err != nil {
		lg.Error("cannot list orphaned records", zap.Error(err))
	} else if n > 0 {
		lg.Info("resumed orphaned records", zap.Int("count", n))
	}

	router := workers.NewRouter(&handlers.Handlers{
		Bridge:        orch,
		Dispatcher:    dispatcher,
		Records:       store,
		Status:        query,
		Ledger:        ledger,
		Fees:          cfg.Fees,
		BridgeAddress: gateway.BridgeAddress().Hex(),
		Logger:        lg.Named("http"),
	}, m.Handler(), lg.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workers.ServeHTTP(gctx, workers.HTTPConfig{
			ListenAddr: cfg.Server.ListenAddr,
			UseSSL:     cfg.Server.UseSSL,
		}, router, lg.Named("http"))
	})
	g.Go(func() error {
		return workers.NewReconciler(store, query, cfg.Server.ReconcileInterval, lg.Named("reconcile")).Run(gctx)
	})
	err = g.Wait()

	// in-flight workflows observe the cancelled context and fail as Cancelled
	stop()
	dispatcher.Wait()
	events.Close()
	<-persistDone

	if dropped := events.Dropped(); dropped > 0 {
		lg.Warn("status events dropped", zap.Uint64("count", dropped))
	}
	lg.Info("lock bridge stopped")
	return err
}

// Intent Solver — a settlement backend for intent-based swaps on a
// Sui-style chain: users escrow an input asset with a minimum acceptable
// output, and the solver fills profitable intents from its own inventory,
// hedging atomically on the on-chain central-limit order book.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	solver/engine.go     — orchestrator: discovers open intents (poll + push), gates on profit, settles
//	solver/settle.go     — builds the atomic settlement plan (fund payout, fill, reverse-swap)
//	quoter/quoter.go     — prices swaps against live CLOB depth via dev-inspect + BCS decode
//	registry/registry.go — transaction-plan builders and parsers for the intent protocol
//	rpc/client.go        — typed JSON-RPC client (objects, coins, events, build, execute)
//	rpc/subscription.go  — WebSocket event subscription with auto-reconnect
//	signer/signer.go     — ed25519 keypair, address derivation, transaction signing
//	api/server.go        — HTTP façade: quotes, order books, intent CRUD, wallet-safe builds
//
// How it makes money:
//
//	An intent offers input_balance of one asset for at least min_output_amount
//	of another. The solver quotes the input against the order book; when the
//	book pays more than the owner demands, the difference is profit. The
//	settlement transaction pays the owner, collects the escrowed input, and
//	resells it on the book — atomically, so the solver is never left with an
//	unhedged position.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intent-solver/internal/api"
	"intent-solver/internal/config"
	"intent-solver/internal/quoter"
	"intent-solver/internal/registry"
	"intent-solver/internal/rpc"
	"intent-solver/internal/signer"
	"intent-solver/internal/solver"
	"intent-solver/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SOLVER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.SolverPrivateKey == "" {
		slog.Error("SOLVER_PRIVATE_KEY is required")
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	solverSigner, err := signer.FromHex(cfg.SolverPrivateKey)
	if err != nil {
		logger.Error("invalid solver key", "error", err)
		os.Exit(1)
	}
	var userSigner api.Signer
	if cfg.UserPrivateKey != "" {
		us, err := signer.FromHex(cfg.UserPrivateKey)
		if err != nil {
			logger.Error("invalid user key", "error", err)
			os.Exit(1)
		}
		userSigner = us
	}

	rpcClient := rpc.New(cfg.RPCURL, cfg.WSURL, logger)
	reg := registry.New(cfg.Protocol.PackageID, cfg.Protocol.ConfigID)

	pools := make([]types.Pool, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pools = append(pools, types.Pool{
			PoolID:      p.PoolID,
			BaseType:    p.BaseType,
			QuoteType:   p.QuoteType,
			BaseScalar:  p.BaseScalar,
			QuoteScalar: p.QuoteScalar,
			TickSize:    p.TickSize,
			LotSize:     p.LotSize,
		})
	}

	q, err := quoter.New(rpcClient, cfg.Protocol.DeepbookPackage, solverSigner.Address(), pools, logger)
	if err != nil {
		logger.Error("failed to create quoter", "error", err)
		os.Exit(1)
	}

	eng := solver.New(solver.Options{
		MinProfitBps:    cfg.Solver.MinProfitBps,
		MaxGasPrice:     cfg.Solver.MaxGasPrice,
		PollInterval:    cfg.Solver.PollingInterval,
		PollLimit:       cfg.Solver.PollLimit,
		EnableEvents:    cfg.Solver.EnableEvents,
		DryRun:          cfg.DryRun,
		DeepbookPackage: cfg.Protocol.DeepbookPackage,
		DeepFeeType:     cfg.Protocol.DeepFeeTokenType,
		CheckInputType:  pools[0].BaseType,
		CheckOutputType: pools[0].QuoteType,
	}, solver.NewLedger(rpcClient), q, reg, solverSigner, logger)

	apiServer := api.NewServer(api.Options{
		Port:      cfg.APIPort,
		DevMode:   cfg.Logging.Level == "debug",
		GasBudget: cfg.Solver.MaxGasPrice,
		RPCURL:    cfg.RPCURL,
		PackageID: cfg.Protocol.PackageID,
		ConfigID:  cfg.Protocol.ConfigID,
		DryRun:    cfg.DryRun,
	}, q, rpcClient, eng, reg, api.NewTokenTable(cfg.Tokens), userSigner, logger)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server failed", "error", err)
		}
	}()
	logger.Info("api started", "url", fmt.Sprintf("http://localhost:%d", cfg.APIPort))

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no settlements will be submitted")
	}

	logger.Info("intent solver started",
		"pools", len(pools),
		"min_profit_bps", cfg.Solver.MinProfitBps,
		"events", cfg.Solver.EnableEvents,
		"dry_run", cfg.DryRun,
	)

	// Wait for a shutdown signal or an unrecoverable event-stream loss
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-eng.Fatal():
		logger.Error("event stream lost for good", "error", err)
		exitCode = 2
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	eng.Stop()
	os.Exit(exitCode)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

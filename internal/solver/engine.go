// Package solver is the engine that discovers open intents, decides whether
// filling them is profitable, and settles the profitable ones atomically.
//
// Discovery runs on two cooperating paths: a fixed-interval poll of the
// newest IntentCreated events and an optional push subscription. Both feed
// process(id); a processing set collapses duplicate deliveries to at most
// one pipeline per intent. Each pipeline is sequential — read, quote,
// execute — and shares nothing with concurrent pipelines except the metrics
// counters and the dedup set.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intent-solver/internal/registry"
	"intent-solver/internal/rpc"
	"intent-solver/pkg/types"
)

// pipelineTimeout bounds one intent's read→quote→execute sequence.
const pipelineTimeout = 60 * time.Second

var (
	// ErrNoFeeCoin means the solver inventory holds no DEEP coin to pay
	// the book's taker fee with.
	ErrNoFeeCoin = errors.New("no fee coin in solver inventory")
	// ErrInsufficientBalance means the solver cannot fund the intent's
	// output amount plus buffer.
	ErrInsufficientBalance = errors.New("insufficient output-asset balance")
)

// Subscription is the ownership token of a live push subscription.
type Subscription interface {
	Unsubscribe()
	Done() <-chan struct{}
	Err() error
}

// Ledger is the slice of the RPC client the engine consumes.
type Ledger interface {
	GetObject(ctx context.Context, id string) (*types.ObjectSnapshot, error)
	GetCoins(ctx context.Context, owner, coinType string) ([]types.Coin, error)
	QueryEvents(ctx context.Context, moveEventType string, limit int, descending bool) ([]types.EventEnvelope, error)
	SubscribeEvents(ctx context.Context, moveEventType string, handler func(types.EventEnvelope)) (Subscription, error)
	BuildUnsigned(ctx context.Context, plan *types.TransactionPlan, sender string) ([]byte, error)
	ExecuteSigned(ctx context.Context, txBytes []byte, signature string) (*types.ExecutionResult, error)
}

// QuoteProvider is the slice of the quoter the engine consumes.
type QuoteProvider interface {
	Quote(ctx context.Context, inputType, outputType string, inputRaw uint64) (*types.SwapQuote, error)
	FindPool(a, b string) (*types.Pool, bool)
}

// TxSigner signs transaction bytes with the solver key.
type TxSigner interface {
	Address() string
	Sign(txBytes []byte) string
}

// Options tunes the engine. Zero values fall back to the defaults below.
type Options struct {
	MinProfitBps    uint64        // skip fills below this margin (default 50)
	MaxGasPrice     uint64        // gas budget for settlement transactions
	PollInterval    time.Duration // event poll period (default 10s)
	PollLimit       int           // newest events fetched per poll (default 100)
	EnableEvents    bool          // also subscribe for push delivery
	DryRun          bool          // evaluate but never submit
	DeepbookPackage string        // package of the CLOB's pool module
	DeepFeeType     string        // coin type of the book's fee asset
	CheckInputType  string        // cold-start check swap input
	CheckOutputType string        // cold-start check swap output
	CheckInputRaw   uint64        // cold-start check size (default 1e9)
}

func (o *Options) applyDefaults() {
	if o.MinProfitBps == 0 {
		o.MinProfitBps = 50
	}
	if o.PollInterval == 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.PollLimit == 0 {
		o.PollLimit = 100
	}
	if o.CheckInputRaw == 0 {
		o.CheckInputRaw = 1_000_000_000
	}
}

// Engine orchestrates discovery, evaluation and settlement.
type Engine struct {
	opts     Options
	ledger   Ledger
	quoter   QuoteProvider
	registry *registry.Registry
	signer   TxSigner
	logger   *slog.Logger

	metrics    Metrics
	processing *processingSet

	sub     Subscription
	fatalCh chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an engine. Start must be called before it does anything.
func New(opts Options, ledger Ledger, quoter QuoteProvider, reg *registry.Registry, signer TxSigner, logger *slog.Logger) *Engine {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		opts:       opts,
		ledger:     ledger,
		quoter:     quoter,
		registry:   reg,
		signer:     signer,
		logger:     logger.With("component", "engine"),
		processing: newProcessingSet(),
		fatalCh:    make(chan error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the cold-start connectivity check, opens the push subscription
// when enabled, and launches the poll loop.
func (e *Engine) Start() error {
	// One synchronous quote against the book confirms the CLOB path works
	// before we accept any intent.
	checkCtx, checkCancel := context.WithTimeout(e.ctx, pipelineTimeout)
	defer checkCancel()
	q, err := e.quoter.Quote(checkCtx, e.opts.CheckInputType, e.opts.CheckOutputType, e.opts.CheckInputRaw)
	if err != nil {
		return fmt.Errorf("cold-start quote failed: %w", err)
	}
	e.logger.Info("cold-start check passed",
		"input_raw", e.opts.CheckInputRaw,
		"output_raw", q.OutputRaw,
		"mid_price", q.MidPrice,
	)

	if e.opts.EnableEvents {
		sub, err := e.ledger.SubscribeEvents(e.ctx, e.registry.CreatedEventType(), e.onCreatedEvent)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		e.sub = sub

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			select {
			case <-e.ctx.Done():
			case <-sub.Done():
				if err := sub.Err(); err != nil {
					// Polling still works, but push delivery is gone for
					// good; escalate so the process can restart clean.
					select {
					case e.fatalCh <- err:
					default:
					}
				}
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop()
	}()

	return nil
}

// Stop cancels discovery, releases the subscription, and waits for in-flight
// pipelines to drain.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	if e.sub != nil {
		e.sub.Unsubscribe()
	}
	e.wg.Wait()
	e.logger.Info("shutdown complete", "in_flight", e.processing.Len())
}

// Fatal reports an unrecoverable loss of the RPC event stream.
func (e *Engine) Fatal() <-chan error { return e.fatalCh }

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() types.MetricsSnapshot { return e.metrics.Snapshot() }

// InFlight returns the current processing-set size.
func (e *Engine) InFlight() int { return e.processing.Len() }

// ExecuteIntent settles one intent synchronously, bypassing the profit gate.
// The processing set serialises it against background pipelines for the same
// intent; the chain's status check is the final arbiter either way.
func (e *Engine) ExecuteIntent(ctx context.Context, intentID string) (*types.ExecutionResult, error) {
	if !e.processing.TryAcquire(intentID) {
		return nil, rpc.InvalidArgument("intent %s is already being processed", intentID)
	}
	defer e.processing.Release(intentID)

	snap, err := e.ledger.GetObject(ctx, intentID)
	if err != nil {
		return nil, err
	}
	intent, err := registry.ParseIntent(snap)
	if err != nil {
		return nil, err
	}
	if intent.Status != types.StatusOpen {
		return nil, rpc.InvalidArgument("intent %s is %s, not OPEN", intentID, intent.Status)
	}
	if registry.IsExpired(intent, time.Now().UnixMilli()) {
		return nil, rpc.InvalidArgument("intent %s deadline has passed", intentID)
	}

	plan, err := e.buildSettlementPlan(ctx, intent)
	if err != nil {
		return nil, err
	}
	if e.opts.DryRun {
		return nil, rpc.InvalidArgument("dry-run mode: settlement not submitted")
	}

	result, err := e.submit(ctx, plan)
	if err != nil {
		return nil, err
	}
	e.metrics.incExecuted()
	e.metrics.addGas(result.GasUsed)
	e.logger.Info("intent settled on request",
		"intent", intentID,
		"digest", result.Digest,
		"gas_used", result.GasUsed,
	)
	return result, nil
}

// ————————————————————————————————————————————————————————————————————————
// Discovery
// ————————————————————————————————————————————————————————————————————————

func (e *Engine) pollLoop() {
	e.pollOnce()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

// pollOnce fetches the newest IntentCreated events and feeds each into a
// pipeline. Transient failures are dropped — the next tick covers them.
func (e *Engine) pollOnce() {
	ctx, cancel := context.WithTimeout(e.ctx, e.opts.PollInterval)
	defer cancel()

	events, err := e.ledger.QueryEvents(ctx, e.registry.CreatedEventType(), e.opts.PollLimit, true)
	if err != nil {
		e.logger.Warn("event poll failed", "error", err)
		return
	}

	for _, env := range events {
		parsed, err := registry.ParseEvent(env)
		if err != nil {
			e.logger.Warn("unparseable event", "type", env.Type, "error", err)
			continue
		}
		created, ok := parsed.(types.IntentCreatedEvent)
		if !ok {
			continue
		}
		e.spawn(created.IntentID)
	}
}

// onCreatedEvent handles one push delivery. Runs on the subscription's read
// goroutine, so it only spawns.
func (e *Engine) onCreatedEvent(env types.EventEnvelope) {
	parsed, err := registry.ParseEvent(env)
	if err != nil {
		e.logger.Warn("unparseable event", "type", env.Type, "error", err)
		return
	}
	created, ok := parsed.(types.IntentCreatedEvent)
	if !ok {
		return
	}
	e.spawn(created.IntentID)
}

func (e *Engine) spawn(intentID string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.process(intentID)
	}()
}

// ————————————————————————————————————————————————————————————————————————
// Pipeline
// ————————————————————————————————————————————————————————————————————————

// process runs the full pipeline for one intent. The processing set
// guarantees at most one concurrent pipeline per ID; the deferred release
// covers every exit path.
func (e *Engine) process(intentID string) {
	if !e.processing.TryAcquire(intentID) {
		return
	}
	defer e.processing.Release(intentID)

	ctx, cancel := context.WithTimeout(e.ctx, pipelineTimeout)
	defer cancel()

	logger := e.logger.With("intent", intentID)

	snap, err := e.ledger.GetObject(ctx, intentID)
	if err != nil {
		if !rpc.IsNotFound(err) {
			logger.Warn("intent read failed", "error", err)
		}
		return
	}
	intent, err := registry.ParseIntent(snap)
	if err != nil {
		logger.Warn("intent parse failed", "error", err)
		return
	}
	if intent.Status != types.StatusOpen {
		return
	}

	e.metrics.incProcessed()

	if registry.IsExpired(intent, time.Now().UnixMilli()) {
		e.cleanupExpired(ctx, intent, logger)
		return
	}

	// Quote the reverse swap: what the book pays us for the asset the
	// owner is giving up.
	quote, err := e.quoter.Quote(ctx, intent.InputType, intent.OutputType, intent.InputBalance)
	if err != nil {
		e.metrics.incSkipped()
		logger.Info("intent unquotable, skipping", "error", err)
		return
	}

	profitRaw := uint64(0)
	if quote.OutputRaw > intent.MinOutputAmount {
		profitRaw = quote.OutputRaw - intent.MinOutputAmount
	}
	profitBps := profitBps(profitRaw, intent.InputBalance)

	if profitBps < e.opts.MinProfitBps {
		e.metrics.incSkipped()
		logger.Info("unprofitable, skipping",
			"profit_raw", profitRaw,
			"profit_bps", profitBps,
			"min_profit_bps", e.opts.MinProfitBps,
		)
		return
	}

	e.execute(ctx, intent, profitRaw, logger)
}

// profitBps is the gating margin: output-denominated profit over the
// input-denominated size. The unit mismatch is inherited behaviour that
// live deployments gate on; keep it until product says otherwise.
func profitBps(profitRaw, inputAmount uint64) uint64 {
	if inputAmount == 0 {
		return 0
	}
	return profitRaw * 10000 / inputAmount
}

// execute builds, signs and submits the atomic settlement transaction.
func (e *Engine) execute(ctx context.Context, intent *types.Intent, profitRaw uint64, logger *slog.Logger) {
	plan, err := e.buildSettlementPlan(ctx, intent)
	if err != nil {
		e.metrics.incSkipped()
		logger.Warn("cannot build settlement", "error", err)
		return
	}

	if e.opts.DryRun {
		logger.Info("DRY-RUN: would settle intent", "profit_raw", profitRaw)
		return
	}

	result, err := e.submit(ctx, plan)
	if err != nil {
		if rev, ok := rpc.AsRevert(err); ok {
			// Another solver beat us or state moved; the intent is
			// whatever the chain says it is.
			logger.Info("settlement reverted",
				"abort_code", rev.Code,
				"reason", registry.AbortReason(rev.Code),
			)
			return
		}
		logger.Warn("settlement failed", "error", err)
		return
	}

	e.metrics.incExecuted()
	e.metrics.addGas(result.GasUsed)
	e.metrics.addProfit(profitRaw)
	logger.Info("intent settled",
		"digest", result.Digest,
		"profit_raw", profitRaw,
		"gas_used", result.GasUsed,
	)
}

// cleanupExpired submits the expiry transaction. Failures are logged and
// swallowed — anyone can clean up, and a later pass will.
func (e *Engine) cleanupExpired(ctx context.Context, intent *types.Intent, logger *slog.Logger) {
	plan := e.registry.PlanCleanupExpired(intent.ID, intent.InputType, intent.OutputType)
	plan.GasBudget = e.opts.MaxGasPrice

	if e.opts.DryRun {
		logger.Info("DRY-RUN: would clean up expired intent")
		return
	}

	if _, err := e.submit(ctx, plan); err != nil {
		logger.Info("expired cleanup failed", "error", err)
		return
	}
	logger.Info("expired intent cleaned up")
}

func (e *Engine) submit(ctx context.Context, plan *types.TransactionPlan) (*types.ExecutionResult, error) {
	txBytes, err := e.ledger.BuildUnsigned(ctx, plan, e.signer.Address())
	if err != nil {
		return nil, err
	}
	return e.ledger.ExecuteSigned(ctx, txBytes, e.signer.Sign(txBytes))
}

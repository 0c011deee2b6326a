// Package api is the HTTP façade over the quoter, the registry client, and
// the solver engine. JSON in, JSON out; no authentication — the façade
// trusts its caller. Amounts cross the boundary in human units and are
// converted to raw units at the edge.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intent-solver/internal/quoter"
	"intent-solver/internal/registry"
	"intent-solver/internal/rpc"
	"intent-solver/internal/solver"
	"intent-solver/pkg/types"
)

// QuoteService is the slice of the quoter the façade consumes.
type QuoteService interface {
	Quote(ctx context.Context, inputType, outputType string, inputRaw uint64) (*types.SwapQuote, error)
	Level2(ctx context.Context, pool *types.Pool) (*types.Level2, error)
	FindPool(a, b string) (*types.Pool, bool)
	Pools() []types.Pool
}

// Ledger is the slice of the RPC client the façade consumes.
type Ledger interface {
	GetObject(ctx context.Context, id string) (*types.ObjectSnapshot, error)
	GetCoins(ctx context.Context, owner, coinType string) ([]types.Coin, error)
	GetBalance(ctx context.Context, owner, coinType string) (uint64, error)
	QueryEvents(ctx context.Context, moveEventType string, limit int, descending bool) ([]types.EventEnvelope, error)
	BuildUnsigned(ctx context.Context, plan *types.TransactionPlan, sender string) ([]byte, error)
	ExecuteSigned(ctx context.Context, txBytes []byte, signature string) (*types.ExecutionResult, error)
}

// Engine is the slice of the solver engine the façade consumes.
type Engine interface {
	ExecuteIntent(ctx context.Context, intentID string) (*types.ExecutionResult, error)
	Metrics() types.MetricsSnapshot
	InFlight() int
}

// Signer signs transaction bytes with a server-held key.
type Signer interface {
	Address() string
	Sign(txBytes []byte) string
}

// Options configures the server.
type Options struct {
	Port      int
	DevMode   bool   // include stack traces in error responses
	GasBudget uint64 // gas budget attached to façade-built transactions
	RPCURL    string // echoed on /health
	PackageID string // echoed on /health
	ConfigID  string // default protocol config object for /config
	DryRun    bool   // echoed on /health
}

// Server is the HTTP façade.
type Server struct {
	opts     Options
	quoter   QuoteService
	ledger   Ledger
	engine   Engine
	registry *registry.Registry
	tokens   *TokenTable

	// userSigner backs the test-path create/cancel endpoints; nil when
	// USER_PRIVATE_KEY is not configured, in which case those endpoints
	// reject with a validation error.
	userSigner Signer

	logger  *slog.Logger
	started time.Time
	http    *http.Server
}

// NewServer wires the façade. Start must be called to begin serving.
func NewServer(opts Options, q QuoteService, ledger Ledger, engine Engine, reg *registry.Registry, tokens *TokenTable, userSigner Signer, logger *slog.Logger) *Server {
	s := &Server{
		opts:       opts,
		quoter:     q,
		ledger:     ledger,
		engine:     engine,
		registry:   reg,
		tokens:     tokens,
		userSigner: userSigner,
		logger:     logger.With("component", "api"),
		started:    time.Now(),
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.withLogging(s.withCORS(s.routes())),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /pools", s.handlePools)
	mux.HandleFunc("POST /quote", s.handleQuote)
	mux.HandleFunc("POST /orderbook", s.handleOrderbook)
	mux.HandleFunc("POST /price", s.handlePrice)

	mux.HandleFunc("POST /intent", s.handleIntent)
	mux.HandleFunc("POST /intent/create", s.handleCreateIntent)
	mux.HandleFunc("POST /intent/execute", s.handleExecuteIntent)
	mux.HandleFunc("POST /intent/cancel", s.handleCancelIntent)
	mux.HandleFunc("POST /intents/open", s.handleOpenIntents)
	mux.HandleFunc("POST /intents/history", s.handleHistory)

	mux.HandleFunc("POST /intent/build/create", s.handleBuildCreate)
	mux.HandleFunc("POST /intent/build/execute", s.handleBuildExecute)
	mux.HandleFunc("POST /intent/build/cancel", s.handleBuildCancel)
	mux.HandleFunc("POST /tx/execute", s.handleExecuteTx)

	mux.HandleFunc("POST /wallet/balance", s.handleWalletBalance)
	mux.HandleFunc("POST /config", s.handleConfig)
	mux.HandleFunc("GET /solver/metrics", s.handleSolverMetrics)

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start serves until Shutdown is called. Blocks.
func (s *Server) Start() error {
	s.logger.Info("api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ————————————————————————————————————————————————————————————————————————
// Middleware
// ————————————————————————————————————————————————————————————————————————

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ————————————————————————————————————————————————————————————————————————
// Error mapping
// ————————————————————————————————————————————————————————————————————————

// writeError maps a domain error onto an HTTP status and the failure
// envelope. Validation and quoter errors are the caller's fault; transient
// and unclassified failures are ours.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case rpc.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, quoter.ErrNoPool),
		errors.Is(err, quoter.ErrNoLiquidity),
		errors.Is(err, rpc.ErrInvalidArgument),
		errors.Is(err, solver.ErrInsufficientBalance),
		errors.Is(err, solver.ErrNoFeeCoin):
		status = http.StatusBadRequest
	}
	if rev, ok := rpc.AsRevert(err); ok {
		status = http.StatusBadRequest
		msg = fmt.Sprintf("%s: %s", registry.AbortReason(rev.Code), rev.Reason)
	}

	resp := errorResponse{Success: false, Error: msg}
	if s.opts.DevMode {
		resp.Stack = string(debug.Stack())
	}
	writeJSON(w, status, resp)
}

// badRequest reports a request validation failure.
func (s *Server) badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	})
}

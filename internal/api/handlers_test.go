package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"intent-solver/internal/quoter"
	"intent-solver/internal/registry"
	"intent-solver/internal/rpc"
	"intent-solver/pkg/types"
)

const (
	testPkg      = "0xabc"
	testConfigID = "0xcfg"
	testPoolID   = "0xpool1"
)

// ————————————————————————————————————————————————————————————————————————
// Fakes
// ————————————————————————————————————————————————————————————————————————

type fakeQuote struct {
	quote *types.SwapQuote
	book  *types.Level2
	err   error
	pools []types.Pool
}

func (f *fakeQuote) Quote(_ context.Context, _, _ string, _ uint64) (*types.SwapQuote, error) {
	return f.quote, f.err
}

func (f *fakeQuote) Level2(_ context.Context, _ *types.Pool) (*types.Level2, error) {
	return f.book, f.err
}

func (f *fakeQuote) FindPool(a, b string) (*types.Pool, bool) {
	for i := range f.pools {
		p := &f.pools[i]
		if (p.BaseType == a && p.QuoteType == b) || (p.BaseType == b && p.QuoteType == a) {
			return p, true
		}
	}
	return nil, false
}

func (f *fakeQuote) Pools() []types.Pool { return f.pools }

type fakeLedger struct {
	mu       sync.Mutex
	objects  map[string]*types.ObjectSnapshot
	coins    map[string][]types.Coin
	balances map[string]uint64
	events   map[string][]types.EventEnvelope

	built      []*types.TransactionPlan
	execResult *types.ExecutionResult
	execErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		objects:  make(map[string]*types.ObjectSnapshot),
		coins:    make(map[string][]types.Coin),
		balances: make(map[string]uint64),
		events:   make(map[string][]types.EventEnvelope),
		execResult: &types.ExecutionResult{
			Digest:        "0xdigest",
			EffectsStatus: "success",
			GasUsed:       700,
		},
	}
}

func (f *fakeLedger) GetObject(_ context.Context, id string) (*types.ObjectSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.objects[id]
	if !ok {
		return nil, rpc.NotFound("object %s", id)
	}
	return snap, nil
}

func (f *fakeLedger) GetCoins(_ context.Context, _, coinType string) ([]types.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coins[coinType], nil
}

func (f *fakeLedger) GetBalance(_ context.Context, _, coinType string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[coinType], nil
}

func (f *fakeLedger) QueryEvents(_ context.Context, eventType string, _ int, _ bool) ([]types.EventEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventType], nil
}

func (f *fakeLedger) BuildUnsigned(_ context.Context, plan *types.TransactionPlan, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, plan)
	return []byte("unsigned-tx"), nil
}

func (f *fakeLedger) ExecuteSigned(_ context.Context, _ []byte, _ string) (*types.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.execResult, nil
}

type fakeEngine struct {
	result *types.ExecutionResult
	err    error
}

func (f *fakeEngine) ExecuteIntent(_ context.Context, _ string) (*types.ExecutionResult, error) {
	return f.result, f.err
}

func (f *fakeEngine) Metrics() types.MetricsSnapshot {
	return types.MetricsSnapshot{Processed: 5, Executed: 2, Skipped: 3, GasSpent: 1000, ProfitRaw: 77}
}

func (f *fakeEngine) InFlight() int { return 1 }

type fakeUserSigner struct{ addr string }

func (f *fakeUserSigner) Address() string    { return f.addr }
func (f *fakeUserSigner) Sign([]byte) string { return "user-sig" }

// ————————————————————————————————————————————————————————————————————————
// Harness
// ————————————————————————————————————————————————————————————————————————

func testPool() types.Pool {
	return types.Pool{
		PoolID:      testPoolID,
		BaseType:    testSUI,
		QuoteType:   testUSDC,
		BaseScalar:  1e9,
		QuoteScalar: 1e6,
	}
}

func newTestServer(t *testing.T, q QuoteService, ledger Ledger, engine Engine, user Signer) *httptest.Server {
	t.Helper()
	s := NewServer(Options{
		Port:      0,
		GasBudget: 1000,
		RPCURL:    "https://node.example",
		PackageID: testPkg,
		ConfigID:  testConfigID,
	}, q, ledger, engine, registry.New(testPkg, testConfigID), testTokens(), user,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	srv := httptest.NewServer(s.withCORS(s.routes()))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func intentSnapshot(id string, balance, minOut uint64, deadlineMs int64, status int) *types.ObjectSnapshot {
	fields := fmt.Sprintf(`{
		"owner": "0xowner",
		"input_balance": "%d",
		"min_output_amount": "%d",
		"deadline": "%d",
		"status": %d,
		"solver": null
	}`, balance, minOut, deadlineMs, status)
	return &types.ObjectSnapshot{
		ID:     id,
		Type:   testPkg + "::intent::Intent<" + testSUI + ", " + testUSDC + ">",
		Fields: json.RawMessage(fields),
	}
}

func futureMs() int64 { return time.Now().Add(time.Hour).UnixMilli() }

// ————————————————————————————————————————————————————————————————————————
// Endpoints
// ————————————————————————————————————————————————————————————————————————

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{pools: []types.Pool{testPool()}}, newFakeLedger(), &fakeEngine{}, nil)

	var resp healthResponse
	if status := getJSON(t, srv, "/health", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !resp.Success || resp.Status != "ok" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Pools != 1 {
		t.Errorf("Pools = %d, want 1", resp.Pools)
	}
	if resp.PackageID != testPkg {
		t.Errorf("PackageID = %q", resp.PackageID)
	}
}

func TestPoolsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{pools: []types.Pool{testPool()}}, newFakeLedger(), &fakeEngine{}, nil)

	var resp poolsResponse
	if status := getJSON(t, srv, "/pools", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(resp.Pools) != 1 || resp.Pools[0].PoolID != testPoolID {
		t.Errorf("pools = %+v", resp.Pools)
	}
	if len(resp.Tokens) != 2 {
		t.Errorf("tokens = %+v", resp.Tokens)
	}
}

func TestQuoteEndpoint(t *testing.T) {
	t.Parallel()
	q := &fakeQuote{
		pools: []types.Pool{testPool()},
		quote: &types.SwapQuote{
			InputRaw:  1_500_000_000,
			OutputRaw: 3_000_000,
			MidPrice:  decimal.RequireFromString("2"),
			Route:     []string{testPoolID},
		},
	}
	srv := newTestServer(t, q, newFakeLedger(), &fakeEngine{}, nil)

	var resp quoteResponse
	status := postJSON(t, srv, "/quote", map[string]any{
		"from": "SUI", "to": "USDC", "amount": "1.5",
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.From != testSUI || resp.To != testUSDC {
		t.Errorf("resolved types = %q/%q", resp.From, resp.To)
	}
	if resp.OutputRaw != 3_000_000 {
		t.Errorf("OutputRaw = %d", resp.OutputRaw)
	}
	// USDC carries 6 decimals: 3_000_000 raw is 3 human units.
	if !resp.OutputAmount.Equal(decimal.RequireFromString("3")) {
		t.Errorf("OutputAmount = %s, want 3", resp.OutputAmount)
	}
}

func TestQuoteEndpointErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fake   *fakeQuote
		body   map[string]any
		status int
	}{
		{
			name:   "missing fields",
			fake:   &fakeQuote{},
			body:   map[string]any{"from": "SUI"},
			status: http.StatusBadRequest,
		},
		{
			name:   "no pool",
			fake:   &fakeQuote{err: fmt.Errorf("sui/usdc: %w", quoter.ErrNoPool)},
			body:   map[string]any{"from": "SUI", "to": "USDC", "amount": "1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "no liquidity",
			fake:   &fakeQuote{err: fmt.Errorf("pool: %w", quoter.ErrNoLiquidity)},
			body:   map[string]any{"from": "SUI", "to": "USDC", "amount": "1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "transient rpc failure",
			fake:   &fakeQuote{err: rpc.Transient("node down")},
			body:   map[string]any{"from": "SUI", "to": "USDC", "amount": "1"},
			status: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, tt.fake, newFakeLedger(), &fakeEngine{}, nil)

			var resp errorResponse
			if status := postJSON(t, srv, "/quote", tt.body, &resp); status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if resp.Success {
				t.Error("error response claims success")
			}
			if resp.Error == "" {
				t.Error("error message empty")
			}
			if resp.Stack != "" {
				t.Error("stack leaked outside dev mode")
			}
		})
	}
}

func TestOrderbookEndpoint(t *testing.T) {
	t.Parallel()
	q := &fakeQuote{
		pools: []types.Pool{testPool()},
		book: &types.Level2{
			Bids: []types.PriceLevel{{Price: decimal.RequireFromString("1.9"), Quantity: decimal.RequireFromString("10")}},
			Asks: []types.PriceLevel{{Price: decimal.RequireFromString("2.1"), Quantity: decimal.RequireFromString("5")}},
		},
	}
	srv := newTestServer(t, q, newFakeLedger(), &fakeEngine{}, nil)

	var resp orderbookResponse
	status := postJSON(t, srv, "/orderbook", map[string]any{"base": "SUI", "quote": "USDC"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.PoolID != testPoolID {
		t.Errorf("PoolID = %q", resp.PoolID)
	}
	if resp.MidPrice.String() != "2" {
		t.Errorf("MidPrice = %s, want 2", resp.MidPrice)
	}
	if resp.Spread.String() != "0.2" {
		t.Errorf("Spread = %s, want 0.2", resp.Spread)
	}
}

func TestPriceEndpoint(t *testing.T) {
	t.Parallel()
	q := &fakeQuote{
		pools: []types.Pool{testPool()},
		book: &types.Level2{
			Bids: []types.PriceLevel{{Price: decimal.RequireFromString("1.9"), Quantity: decimal.RequireFromString("1")}},
			Asks: []types.PriceLevel{{Price: decimal.RequireFromString("2.1"), Quantity: decimal.RequireFromString("1")}},
		},
	}
	srv := newTestServer(t, q, newFakeLedger(), &fakeEngine{}, nil)

	var resp priceResponse
	if status := postJSON(t, srv, "/price", map[string]any{"pair": "SUI_USDC"}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.MidPrice.String() != "2" {
		t.Errorf("MidPrice = %s, want 2", resp.MidPrice)
	}

	var errResp errorResponse
	if status := postJSON(t, srv, "/price", map[string]any{"pair": "garbage"}, &errResp); status != http.StatusBadRequest {
		t.Errorf("malformed pair status = %d, want 400", status)
	}
}

func TestIntentEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects["0xi"] = intentSnapshot("0xi", 1_500_000_000, 3_000_000, futureMs(), 0)
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp intentResponse
	if status := postJSON(t, srv, "/intent", map[string]any{"id": "0xi"}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	v := resp.Intent
	if v.Status != "OPEN" || v.Expired {
		t.Errorf("status/expired = %s/%v", v.Status, v.Expired)
	}
	if !v.InputAmount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("InputAmount = %s, want 1.5", v.InputAmount)
	}
	if !v.MinOutput.Equal(decimal.RequireFromString("3")) {
		t.Errorf("MinOutput = %s, want 3", v.MinOutput)
	}

	var errResp errorResponse
	if status := postJSON(t, srv, "/intent", map[string]any{"id": "0xmissing"}, &errResp); status != http.StatusNotFound {
		t.Errorf("missing intent status = %d, want 404", status)
	}
}

func TestExecuteIntentEndpoint(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{result: &types.ExecutionResult{Digest: "0xd", EffectsStatus: "success", GasUsed: 9}}
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), engine, nil)

	var resp txResponse
	if status := postJSON(t, srv, "/intent/execute", map[string]any{"intentId": "0xi"}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Digest != "0xd" || resp.GasUsed != 9 {
		t.Errorf("resp = %+v", resp)
	}

	failing := &fakeEngine{err: rpc.InvalidArgument("intent 0xi is COMPLETED, not OPEN")}
	srv2 := newTestServer(t, &fakeQuote{}, newFakeLedger(), failing, nil)
	var errResp errorResponse
	if status := postJSON(t, srv2, "/intent/execute", map[string]any{"intentId": "0xi"}, &errResp); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCreateIntentRequiresUserKey(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), &fakeEngine{}, nil)

	var resp errorResponse
	status := postJSON(t, srv, "/intent/create", map[string]any{
		"from": "SUI", "to": "USDC", "amount": "1", "minOutput": "1", "deadlineSeconds": 60,
	}, &resp)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without user key", status)
	}
}

func TestCreateIntentEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.coins[testSUI] = []types.Coin{
		{ID: "0xa", Type: testSUI, Balance: 800_000_000},
		{ID: "0xb", Type: testSUI, Balance: 800_000_000},
	}
	user := &fakeUserSigner{addr: "0xuser"}
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, user)

	var resp txResponse
	status := postJSON(t, srv, "/intent/create", map[string]any{
		"from": "SUI", "to": "USDC", "amount": "1.5", "minOutput": "3", "deadlineSeconds": 60,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Digest != "0xdigest" {
		t.Errorf("Digest = %q", resp.Digest)
	}

	if len(ledger.built) != 1 {
		t.Fatalf("built plans = %d, want 1", len(ledger.built))
	}
	plan := ledger.built[0]
	// merge two coins, split exactly 1.5 SUI, create the intent
	if len(plan.Commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(plan.Commands))
	}
	if plan.Commands[0].MergeCoins == nil {
		t.Error("command 0 is not a merge")
	}
	if got := plan.Commands[1].SplitCoins.Amounts[0].Pure; got != "1500000000" {
		t.Errorf("split amount = %v, want 1500000000", got)
	}
	create := plan.Commands[2].MoveCall
	if create == nil || create.Target != testPkg+"::intent::create_intent" {
		t.Fatalf("command 2 = %+v", plan.Commands[2])
	}
	// min_output is in USDC raw units (6 decimals), deadline in ms.
	if create.Args[1].Pure != "3000000" || create.Args[2].Pure != "60000" {
		t.Errorf("create args = %v / %v", create.Args[1].Pure, create.Args[2].Pure)
	}
}

func TestCreateIntentInsufficientCoins(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.coins[testSUI] = []types.Coin{{ID: "0xa", Type: testSUI, Balance: 100}}
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, &fakeUserSigner{addr: "0xuser"})

	var resp errorResponse
	status := postJSON(t, srv, "/intent/create", map[string]any{
		"from": "SUI", "to": "USDC", "amount": "1.5", "minOutput": "3", "deadlineSeconds": 60,
	}, &resp)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCancelIntentOwnerCheck(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects["0xi"] = intentSnapshot("0xi", 100, 100, futureMs(), 0)
	// Configured user key does not own the intent.
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, &fakeUserSigner{addr: "0xnotowner"})

	var resp errorResponse
	if status := postJSON(t, srv, "/intent/cancel", map[string]any{"intentId": "0xi"}, &resp); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCancelIntentEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects["0xi"] = intentSnapshot("0xi", 100, 100, futureMs(), 0)
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, &fakeUserSigner{addr: "0xowner"})

	var resp txResponse
	if status := postJSON(t, srv, "/intent/cancel", map[string]any{"intentId": "0xi"}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(ledger.built) != 1 {
		t.Fatalf("built plans = %d, want 1", len(ledger.built))
	}
	if got := ledger.built[0].Commands[0].MoveCall.Target; got != testPkg+"::intent::cancel_intent" {
		t.Errorf("target = %q", got)
	}
}

func TestOpenIntentsEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	createdType := testPkg + "::intent::IntentCreated"
	for _, id := range []string{"0xopen", "0xdone", "0xlate"} {
		ledger.events[createdType] = append(ledger.events[createdType], types.EventEnvelope{
			Type:       createdType,
			ParsedJSON: json.RawMessage(fmt.Sprintf(`{"intent_id": "%s", "owner": "0xo", "input_type": "%s", "output_type": "%s", "input_amount": "1", "min_output_amount": "1", "deadline": "1"}`, id, testSUI, testUSDC)),
		})
	}
	ledger.objects["0xopen"] = intentSnapshot("0xopen", 100, 100, futureMs(), 0)
	ledger.objects["0xdone"] = intentSnapshot("0xdone", 0, 100, futureMs(), 1)
	ledger.objects["0xlate"] = intentSnapshot("0xlate", 100, 100, time.Now().Add(-time.Hour).UnixMilli(), 0)

	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp openIntentsResponse
	if status := postJSON(t, srv, "/intents/open", map[string]any{}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Count != 1 || resp.Intents[0].ID != "0xopen" {
		t.Fatalf("resp = %+v, want only 0xopen", resp)
	}

	var withExpired openIntentsResponse
	if status := postJSON(t, srv, "/intents/open", map[string]any{"includeExpired": true}, &withExpired); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if withExpired.Count != 2 {
		t.Errorf("Count = %d, want 2 with expired included", withExpired.Count)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	createdType := testPkg + "::intent::IntentCreated"
	executedType := testPkg + "::intent::IntentExecuted"
	ledger.events[createdType] = []types.EventEnvelope{{
		Type:       createdType,
		ParsedJSON: json.RawMessage(`{"intent_id": "0xi", "owner": "0xo", "input_type": "` + testSUI + `", "output_type": "` + testUSDC + `", "input_amount": "10", "min_output_amount": "9", "deadline": "1"}`),
		Timestamp:  time.UnixMilli(1000),
	}}
	ledger.events[executedType] = []types.EventEnvelope{{
		Type:       executedType,
		ParsedJSON: json.RawMessage(`{"intent_id": "0xi", "solver": "0xs", "input_amount": "10", "output_amount": "9", "fee_amount": "1", "execution_time": "2000"}`),
		Timestamp:  time.UnixMilli(2000),
	}}

	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp historyResponse
	if status := postJSON(t, srv, "/intents/history", map[string]any{}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(resp.Events))
	}
	// Newest first.
	if resp.Events[0].Kind != "executed" || resp.Events[1].Kind != "created" {
		t.Errorf("order = %s, %s", resp.Events[0].Kind, resp.Events[1].Kind)
	}
}

func TestBuildCreateEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.coins[testSUI] = []types.Coin{{ID: "0xa", Type: testSUI, Balance: 2_000_000_000}}
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp buildResponse
	status := postJSON(t, srv, "/intent/build/create", map[string]any{
		"sender": "0xwallet", "from": "SUI", "to": "USDC",
		"amount": "1.5", "minOutput": "3", "deadlineSeconds": 60,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.TxBytes != base64.StdEncoding.EncodeToString([]byte("unsigned-tx")) {
		t.Errorf("TxBytes = %q", resp.TxBytes)
	}
	if resp.Sender != "0xwallet" {
		t.Errorf("Sender = %q", resp.Sender)
	}
}

func TestBuildExecuteEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects["0xi"] = intentSnapshot("0xi", 1_000_000_000, 3_000_000, futureMs(), 0)
	ledger.coins[testUSDC] = []types.Coin{{ID: "0xu", Type: testUSDC, Balance: 5_000_000}}
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp buildResponse
	status := postJSON(t, srv, "/intent/build/execute", map[string]any{
		"sender": "0xwallet", "intentId": "0xi",
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if len(ledger.built) != 1 {
		t.Fatalf("built plans = %d, want 1", len(ledger.built))
	}
	plan := ledger.built[0]
	// split payout, execute_intent, from_balance, transfer input to sender
	if len(plan.Commands) != 4 {
		t.Fatalf("commands = %d, want 4", len(plan.Commands))
	}
	if got := plan.Commands[1].MoveCall.Target; got != testPkg+"::intent::execute_intent" {
		t.Errorf("command 1 target = %q", got)
	}
	if got := plan.Commands[3].TransferObjects.Recipient; got != "0xwallet" {
		t.Errorf("recipient = %q, want sender", got)
	}
}

func TestBuildCancelRejectsNonOwner(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects["0xi"] = intentSnapshot("0xi", 100, 100, futureMs(), 0)
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp errorResponse
	status := postJSON(t, srv, "/intent/build/cancel", map[string]any{
		"sender": "0xstranger", "intentId": "0xi",
	}, &resp)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestExecuteTxEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), &fakeEngine{}, nil)

	var resp txResponse
	status := postJSON(t, srv, "/tx/execute", map[string]any{
		"txBytes":   base64.StdEncoding.EncodeToString([]byte("wallet-signed")),
		"signature": "sig",
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Digest != "0xdigest" {
		t.Errorf("Digest = %q", resp.Digest)
	}

	var errResp errorResponse
	status = postJSON(t, srv, "/tx/execute", map[string]any{
		"txBytes": "not base64!!", "signature": "sig",
	}, &errResp)
	if status != http.StatusBadRequest {
		t.Errorf("bad base64 status = %d, want 400", status)
	}
}

func TestWalletBalanceEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.balances[testSUI] = 2_500_000_000
	ledger.balances[testUSDC] = 7_000_000
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	var resp walletBalanceResponse
	if status := postJSON(t, srv, "/wallet/balance", map[string]any{"address": "0xw"}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(resp.Balances) != 2 {
		t.Fatalf("balances = %d, want 2", len(resp.Balances))
	}
	// Alias order is deterministic: SUI then USDC.
	if resp.Balances[0].Raw != 2_500_000_000 || resp.Balances[0].Amount.String() != "2.5" {
		t.Errorf("SUI balance = %+v", resp.Balances[0])
	}
	if resp.Balances[1].Raw != 7_000_000 || resp.Balances[1].Amount.String() != "7" {
		t.Errorf("USDC balance = %+v", resp.Balances[1])
	}
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()
	ledger := newFakeLedger()
	ledger.objects[testConfigID] = &types.ObjectSnapshot{
		ID:     testConfigID,
		Type:   testPkg + "::intent::ProtocolConfig",
		Fields: json.RawMessage(`{"fee_bps": "30", "fee_recipient": "0xfee", "paused": false}`),
	}
	srv := newTestServer(t, &fakeQuote{}, ledger, &fakeEngine{}, nil)

	// Empty configId falls back to the configured default.
	var resp configResponse
	if status := postJSON(t, srv, "/config", map[string]any{}, &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.FeeBps != 30 || resp.FeeRecipient != "0xfee" || resp.Paused {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSolverMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), &fakeEngine{}, nil)

	var resp metricsResponse
	if status := getJSON(t, srv, "/solver/metrics", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Counters.Processed != 5 || resp.Counters.Executed != 2 {
		t.Errorf("counters = %+v", resp.Counters)
	}
	if resp.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1", resp.InFlight)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), &fakeEngine{}, nil)

	resp, err := http.Get(srv.URL + "/quote")
	if err != nil {
		t.Fatalf("GET /quote: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeQuote{}, newFakeLedger(), &fakeEngine{}, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/quote", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /quote: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}

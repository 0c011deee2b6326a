package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"intent-solver/internal/registry"
	"intent-solver/pkg/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// ————————————————————————————————————————————————————————————————————————
// Info
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:       true,
		Status:        "ok",
		RPCURL:        s.opts.RPCURL,
		PackageID:     s.opts.PackageID,
		Pools:         len(s.quoter.Pools()),
		DryRun:        s.opts.DryRun,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	pools := s.quoter.Pools()
	views := make([]poolView, 0, len(pools))
	for _, p := range pools {
		views = append(views, poolView{
			PoolID:    p.PoolID,
			BaseType:  p.BaseType,
			QuoteType: p.QuoteType,
		})
	}
	writeJSON(w, http.StatusOK, poolsResponse{
		Success: true,
		Pools:   views,
		Tokens:  s.tokens.Aliases(),
	})
}

// ————————————————————————————————————————————————————————————————————————
// Quoting
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.From == "" || req.To == "" {
		s.badRequest(w, "from and to are required")
		return
	}
	if req.Amount.Sign() < 0 {
		s.badRequest(w, "amount must not be negative")
		return
	}

	fromType := s.tokens.Resolve(req.From)
	toType := s.tokens.Resolve(req.To)
	inputRaw := s.tokens.HumanToRaw(req.Amount, fromType)

	quote, err := s.quoter.Quote(r.Context(), fromType, toType, inputRaw)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Success:        true,
		From:           fromType,
		To:             toType,
		InputAmount:    req.Amount,
		OutputAmount:   s.tokens.RawToHuman(quote.OutputRaw, toType),
		InputRaw:       quote.InputRaw,
		OutputRaw:      quote.OutputRaw,
		MidPrice:       quote.MidPrice,
		BestBid:        quote.BestBid,
		BestAsk:        quote.BestAsk,
		PriceImpactPct: quote.PriceImpactPct,
		Route:          quote.Route,
	})
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	var req orderbookRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.Base == "" || req.Quote == "" {
		s.badRequest(w, "base and quote are required")
		return
	}

	pool, book, err := s.fetchBook(r, req.Base, req.Quote)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := orderbookResponse{
		Success: true,
		PoolID:  pool.PoolID,
		Bids:    toBookLevels(book.Bids),
		Asks:    toBookLevels(book.Asks),
	}
	if len(book.Bids) > 0 {
		resp.BestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		resp.BestAsk = book.Asks[0].Price
	}
	if resp.BestBid.IsPositive() && resp.BestAsk.IsPositive() {
		resp.MidPrice = resp.BestBid.Add(resp.BestAsk).Div(decimal.NewFromInt(2))
		resp.Spread = resp.BestAsk.Sub(resp.BestBid)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	base, quote, ok := strings.Cut(req.Pair, "_")
	if !ok || base == "" || quote == "" {
		s.badRequest(w, "pair must be of the form BASE_QUOTE")
		return
	}

	_, book, err := s.fetchBook(r, base, quote)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := priceResponse{Success: true, Pair: req.Pair}
	if len(book.Bids) > 0 {
		resp.BestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		resp.BestAsk = book.Asks[0].Price
	}
	switch {
	case resp.BestBid.IsPositive() && resp.BestAsk.IsPositive():
		resp.MidPrice = resp.BestBid.Add(resp.BestAsk).Div(decimal.NewFromInt(2))
	case resp.BestBid.IsPositive():
		resp.MidPrice = resp.BestBid
	default:
		resp.MidPrice = resp.BestAsk
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fetchBook(r *http.Request, base, quote string) (*types.Pool, *types.Level2, error) {
	baseType := s.tokens.Resolve(base)
	quoteType := s.tokens.Resolve(quote)
	pool, ok := s.quoter.FindPool(baseType, quoteType)
	if !ok {
		return nil, nil, rpcNoPoolError(baseType, quoteType)
	}
	book, err := s.quoter.Level2(r.Context(), pool)
	if err != nil {
		return nil, nil, err
	}
	return pool, book, nil
}

func toBookLevels(levels []types.PriceLevel) []bookLevel {
	out := make([]bookLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, bookLevel{Price: l.Price, Quantity: l.Quantity})
	}
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Intent reads
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.ID == "" {
		s.badRequest(w, "id is required")
		return
	}

	intent, err := s.readIntent(r, req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{Success: true, Intent: s.intentView(intent)})
}

func (s *Server) readIntent(r *http.Request, id string) (*types.Intent, error) {
	snap, err := s.ledger.GetObject(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return registry.ParseIntent(snap)
}

func (s *Server) intentView(intent *types.Intent) intentView {
	return intentView{
		ID:           intent.ID,
		Owner:        intent.Owner,
		InputType:    intent.InputType,
		OutputType:   intent.OutputType,
		InputAmount:  s.tokens.RawToHuman(intent.InputBalance, intent.InputType),
		MinOutput:    s.tokens.RawToHuman(intent.MinOutputAmount, intent.OutputType),
		InputRaw:     intent.InputBalance,
		MinOutputRaw: intent.MinOutputAmount,
		DeadlineMs:   intent.DeadlineMs,
		Status:       intent.Status.String(),
		Expired:      registry.IsExpired(intent, time.Now().UnixMilli()),
		Solver:       intent.Solver,
	}
}

func (s *Server) handleOpenIntents(w http.ResponseWriter, r *http.Request) {
	var req openIntentsRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	limit := clampLimit(req.Limit)

	events, err := s.ledger.QueryEvents(r.Context(), s.registry.CreatedEventType(), limit, true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, env := range events {
		parsed, err := registry.ParseEvent(env)
		if err != nil {
			continue
		}
		created, ok := parsed.(types.IntentCreatedEvent)
		if !ok {
			continue
		}
		if _, dup := seen[created.IntentID]; dup {
			continue
		}
		seen[created.IntentID] = struct{}{}
		ids = append(ids, created.IntentID)
	}

	// Fetch each intent concurrently; unreadable ones are dropped rather
	// than failing the whole listing.
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		views []intentView
	)
	nowMs := time.Now().UnixMilli()
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			intent, err := s.readIntent(r, id)
			if err != nil {
				return
			}
			if intent.Status != types.StatusOpen {
				return
			}
			if !req.IncludeExpired && registry.IsExpired(intent, nowMs) {
				return
			}
			mu.Lock()
			views = append(views, s.intentView(intent))
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sort.Slice(views, func(i, j int) bool { return views[i].DeadlineMs < views[j].DeadlineMs })
	writeJSON(w, http.StatusOK, openIntentsResponse{Success: true, Count: len(views), Intents: views})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	limit := clampLimit(req.Limit)

	created, err := s.ledger.QueryEvents(r.Context(), s.registry.CreatedEventType(), limit, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	executed, err := s.ledger.QueryEvents(r.Context(), s.registry.ExecutedEventType(), limit, true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entries := make([]historyEntry, 0, len(created)+len(executed))
	for _, env := range append(created, executed...) {
		parsed, err := registry.ParseEvent(env)
		if err != nil {
			continue
		}
		switch ev := parsed.(type) {
		case types.IntentCreatedEvent:
			entries = append(entries, historyEntry{
				Kind:        "created",
				IntentID:    ev.IntentID,
				TimestampMs: env.Timestamp.UnixMilli(),
				Owner:       ev.Owner,
				InputType:   ev.InputType,
				OutputType:  ev.OutputType,
				InputRaw:    ev.InputAmount,
				OutputRaw:   ev.MinOutputAmount,
			})
		case types.IntentExecutedEvent:
			entries = append(entries, historyEntry{
				Kind:        "executed",
				IntentID:    ev.IntentID,
				TimestampMs: env.Timestamp.UnixMilli(),
				Solver:      ev.Solver,
				InputRaw:    ev.InputAmount,
				OutputRaw:   ev.OutputAmount,
				FeeRaw:      ev.FeeAmount,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].TimestampMs > entries[j].TimestampMs })
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Events: entries})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// ————————————————————————————————————————————————————————————————————————
// Server-signed flows (test path)
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	if s.userSigner == nil {
		s.badRequest(w, "user key is not configured")
		return
	}
	var req createIntentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}

	plan, err := s.createIntentPlan(r, s.userSigner.Address(), req.From, req.To, req.Amount, req.MinOutput, req.DeadlineSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.submitPlan(w, r, plan, s.userSigner)
}

func (s *Server) handleExecuteIntent(w http.ResponseWriter, r *http.Request) {
	var req executeIntentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.IntentID == "" {
		s.badRequest(w, "intentId is required")
		return
	}

	result, err := s.engine.ExecuteIntent(r.Context(), req.IntentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{
		Success: true,
		Digest:  result.Digest,
		Status:  result.EffectsStatus,
		GasUsed: result.GasUsed,
	})
}

func (s *Server) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	if s.userSigner == nil {
		s.badRequest(w, "user key is not configured")
		return
	}
	var req executeIntentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.IntentID == "" {
		s.badRequest(w, "intentId is required")
		return
	}

	intent, err := s.readIntent(r, req.IntentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !strings.EqualFold(intent.Owner, s.userSigner.Address()) {
		s.badRequest(w, "configured user key is not the intent owner")
		return
	}

	plan := s.registry.PlanCancel(intent.ID, intent.InputType, intent.OutputType, intent.Owner)
	plan.GasBudget = s.opts.GasBudget
	s.submitPlan(w, r, plan, s.userSigner)
}

func (s *Server) submitPlan(w http.ResponseWriter, r *http.Request, plan *types.TransactionPlan, signer Signer) {
	txBytes, err := s.ledger.BuildUnsigned(r.Context(), plan, signer.Address())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.ledger.ExecuteSigned(r.Context(), txBytes, signer.Sign(txBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{
		Success: true,
		Digest:  result.Digest,
		Status:  result.EffectsStatus,
		GasUsed: result.GasUsed,
	})
}

// ————————————————————————————————————————————————————————————————————————
// Wallet-safe builds
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleBuildCreate(w http.ResponseWriter, r *http.Request) {
	var req buildCreateRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.Sender == "" {
		s.badRequest(w, "sender is required")
		return
	}

	plan, err := s.createIntentPlan(r, req.Sender, req.From, req.To, req.Amount, req.MinOutput, req.DeadlineSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.buildPlan(w, r, plan, req.Sender)
}

func (s *Server) handleBuildExecute(w http.ResponseWriter, r *http.Request) {
	var req buildIntentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.Sender == "" || req.IntentID == "" {
		s.badRequest(w, "sender and intentId are required")
		return
	}

	intent, err := s.readIntent(r, req.IntentID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	plan, err := s.executeIntentPlan(r, req.Sender, intent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.buildPlan(w, r, plan, req.Sender)
}

func (s *Server) handleBuildCancel(w http.ResponseWriter, r *http.Request) {
	var req buildIntentRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.Sender == "" || req.IntentID == "" {
		s.badRequest(w, "sender and intentId are required")
		return
	}

	intent, err := s.readIntent(r, req.IntentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !strings.EqualFold(intent.Owner, req.Sender) {
		s.badRequest(w, "sender is not the intent owner")
		return
	}

	plan := s.registry.PlanCancel(intent.ID, intent.InputType, intent.OutputType, intent.Owner)
	plan.GasBudget = s.opts.GasBudget
	s.buildPlan(w, r, plan, req.Sender)
}

func (s *Server) buildPlan(w http.ResponseWriter, r *http.Request, plan *types.TransactionPlan, sender string) {
	txBytes, err := s.ledger.BuildUnsigned(r.Context(), plan, sender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildResponse{
		Success: true,
		Sender:  sender,
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
	})
}

func (s *Server) handleExecuteTx(w http.ResponseWriter, r *http.Request) {
	var req executeTxRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.TxBytes == "" || req.Signature == "" {
		s.badRequest(w, "txBytes and signature are required")
		return
	}
	txBytes, err := base64.StdEncoding.DecodeString(req.TxBytes)
	if err != nil {
		s.badRequest(w, "txBytes is not valid base64: %v", err)
		return
	}

	result, err := s.ledger.ExecuteSigned(r.Context(), txBytes, req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{
		Success: true,
		Digest:  result.Digest,
		Status:  result.EffectsStatus,
		GasUsed: result.GasUsed,
	})
}

// ————————————————————————————————————————————————————————————————————————
// Wallet and protocol info
// ————————————————————————————————————————————————————————————————————————

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	var req walletBalanceRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	if req.Address == "" {
		s.badRequest(w, "address is required")
		return
	}

	aliases := s.tokens.Aliases()
	balances := make([]balanceEntry, 0, len(aliases))
	for _, tok := range aliases {
		raw, err := s.ledger.GetBalance(r.Context(), req.Address, tok.Type)
		if err != nil {
			s.writeError(w, err)
			return
		}
		balances = append(balances, balanceEntry{
			Alias:  tok.Alias,
			Type:   tok.Type,
			Raw:    raw,
			Amount: s.tokens.RawToHuman(raw, tok.Type),
		})
	}
	writeJSON(w, http.StatusOK, walletBalanceResponse{
		Success:  true,
		Address:  req.Address,
		Balances: balances,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body: %v", err)
		return
	}
	configID := req.ConfigID
	if configID == "" {
		configID = s.opts.ConfigID
	}

	snap, err := s.ledger.GetObject(r.Context(), configID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cfg, err := registry.ParseConfig(snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Success:      true,
		ID:           cfg.ID,
		FeeBps:       cfg.FeeBps,
		FeeRecipient: cfg.FeeRecipient,
		Paused:       cfg.Paused,
	})
}

func (s *Server) handleSolverMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Success:  true,
		Counters: s.engine.Metrics(),
		InFlight: s.engine.InFlight(),
	})
}

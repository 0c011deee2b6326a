// Package rpc implements the typed JSON-RPC client for the ledger node.
//
// The client is a thin wrapper: every method is one JSON-RPC call with the
// response mapped into pkg/types values and failures mapped into the domain
// error taxonomy (Transient / NotFound / InvalidArgument / Reverted). There
// is deliberately no retry here — the solver engine's poll cycle is the
// retry loop, and the HTTP façade surfaces transient failures as 5xx.
//
//   - GetObject:      sui_getObject                  — object snapshot with type + fields
//   - GetCoins:       suix_getCoins                  — coin objects of one type for an owner
//   - GetBalance:     suix_getBalance                — aggregate balance of one type
//   - QueryEvents:    suix_queryEvents               — move-event query, newest first when descending
//   - DevInspect:     sui_devInspectTransactionBlock — read-only simulation returning BCS values
//   - BuildUnsigned:  unsafe_buildTransactionBlock   — plan → tx bytes (wire encoding is the node's job)
//   - ExecuteSigned:  sui_executeTransactionBlock    — submit signed bytes, wait for effects
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"intent-solver/pkg/types"
)

const requestTimeout = 15 * time.Second

// Client talks JSON-RPC to a single fullnode.
type Client struct {
	http   *resty.Client
	wsURL  string
	nextID atomic.Int64
	logger *slog.Logger
}

// New creates a client for the given HTTP endpoint. wsURL is used for event
// subscriptions and may be empty if subscriptions are disabled.
func New(rpcURL, wsURL string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(rpcURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		wsURL:  wsURL,
		logger: logger.With("component", "rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and unmarshals result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var body rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		Post("")
	if err != nil {
		return Transient("%s: %v", method, err)
	}
	if resp.StatusCode() >= 500 {
		return Transient("%s: status %d", method, resp.StatusCode())
	}
	if resp.StatusCode() != 200 {
		return InvalidArgument("%s: status %d: %s", method, resp.StatusCode(), resp.String())
	}
	if body.Error != nil {
		return mapRPCError(method, body.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// mapRPCError translates a JSON-RPC error object into the domain taxonomy.
func mapRPCError(method string, e *rpcError) error {
	msg := strings.ToLower(e.Message)
	switch {
	case e.Code == -32602:
		return InvalidArgument("%s: %s", method, e.Message)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "notexists") || strings.Contains(msg, "deleted"):
		return NotFound("%s: %s", method, e.Message)
	case e.Code == -32000 || e.Code == -32603:
		return Transient("%s: %s", method, e.Message)
	default:
		return InvalidArgument("%s: rpc error %d: %s", method, e.Code, e.Message)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Object and coin reads
// ————————————————————————————————————————————————————————————————————————

type objectData struct {
	ObjectID string `json:"objectId"`
	Type     string `json:"type"`
	Content  struct {
		Fields json.RawMessage `json:"fields"`
	} `json:"content"`
}

type objectResult struct {
	Data  *objectData `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// GetObject fetches one object with its declared type and raw field JSON.
func (c *Client) GetObject(ctx context.Context, id string) (*types.ObjectSnapshot, error) {
	var result objectResult
	params := []any{id, map[string]bool{"showType": true, "showContent": true}}
	if err := c.call(ctx, "sui_getObject", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, NotFound("object %s: %s", id, result.Error.Code)
	}
	if result.Data == nil {
		return nil, NotFound("object %s", id)
	}
	return &types.ObjectSnapshot{
		ID:     result.Data.ObjectID,
		Type:   result.Data.Type,
		Fields: result.Data.Content.Fields,
	}, nil
}

type coinPage struct {
	Data []struct {
		CoinObjectID string `json:"coinObjectId"`
		CoinType     string `json:"coinType"`
		Balance      string `json:"balance"`
	} `json:"data"`
}

// GetCoins lists coin objects of coinType owned by owner, in RPC-native order.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string) ([]types.Coin, error) {
	var page coinPage
	params := []any{owner, coinType, nil, 50}
	if err := c.call(ctx, "suix_getCoins", params, &page); err != nil {
		return nil, err
	}
	coins := make([]types.Coin, 0, len(page.Data))
	for _, d := range page.Data {
		bal, err := strconv.ParseUint(d.Balance, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coin %s: bad balance %q: %w", d.CoinObjectID, d.Balance, err)
		}
		coins = append(coins, types.Coin{ID: d.CoinObjectID, Type: d.CoinType, Balance: bal})
	}
	return coins, nil
}

// GetBalance returns the aggregate balance of coinType for owner.
func (c *Client) GetBalance(ctx context.Context, owner, coinType string) (uint64, error) {
	var result struct {
		TotalBalance string `json:"totalBalance"`
	}
	if err := c.call(ctx, "suix_getBalance", params(owner, coinType), &result); err != nil {
		return 0, err
	}
	bal, err := strconv.ParseUint(result.TotalBalance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: bad total %q: %w", coinType, result.TotalBalance, err)
	}
	return bal, nil
}

func params(v ...any) []any { return v }

// ————————————————————————————————————————————————————————————————————————
// Events
// ————————————————————————————————————————————————————————————————————————

type eventPage struct {
	Data []struct {
		Type        string          `json:"type"`
		ParsedJSON  json.RawMessage `json:"parsedJson"`
		TimestampMs string          `json:"timestampMs"`
	} `json:"data"`
}

// QueryEvents returns up to limit events of the given move event type,
// newest first when descending is true.
func (c *Client) QueryEvents(ctx context.Context, moveEventType string, limit int, descending bool) ([]types.EventEnvelope, error) {
	var page eventPage
	filter := map[string]string{"MoveEventType": moveEventType}
	if err := c.call(ctx, "suix_queryEvents", params(filter, nil, limit, descending), &page); err != nil {
		return nil, err
	}

	events := make([]types.EventEnvelope, 0, len(page.Data))
	for _, d := range page.Data {
		ts, _ := strconv.ParseInt(d.TimestampMs, 10, 64)
		events = append(events, types.EventEnvelope{
			Type:       d.Type,
			ParsedJSON: d.ParsedJSON,
			Timestamp:  time.UnixMilli(ts),
		})
	}
	return events, nil
}

// ————————————————————————————————————————————————————————————————————————
// Transactions
// ————————————————————————————————————————————————————————————————————————

// BuildUnsigned asks the node to encode a transaction plan into signable
// bytes for sender. The native wire format stays opaque to this process.
func (c *Client) BuildUnsigned(ctx context.Context, plan *types.TransactionPlan, sender string) ([]byte, error) {
	var result struct {
		TxBytes string `json:"txBytes"`
	}
	if err := c.call(ctx, "unsafe_buildTransactionBlock", params(sender, plan, strconv.FormatUint(plan.GasBudget, 10)), &result); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(result.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("build unsigned: decode tx bytes: %w", err)
	}
	return raw, nil
}

type devInspectResult struct {
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
	Results []struct {
		// Each return value is a [bytes, typeTag] pair.
		ReturnValues [][2]json.RawMessage `json:"returnValues"`
	} `json:"results"`
	Error string `json:"error"`
}

// DevInspect runs a read-only simulation of txBytes as sender and returns
// the BCS-encoded return values of the final command.
func (c *Client) DevInspect(ctx context.Context, txBytes []byte, sender string) ([]types.ReturnValue, error) {
	var result devInspectResult
	encoded := base64.StdEncoding.EncodeToString(txBytes)
	if err := c.call(ctx, "sui_devInspectTransactionBlock", params(sender, encoded), &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, InvalidArgument("dev inspect: %s", result.Error)
	}
	if result.Effects.Status.Status == "failure" {
		code, _ := parseAbortCode(result.Effects.Status.Error)
		return nil, Reverted(code, result.Effects.Status.Error)
	}
	if len(result.Results) == 0 {
		return nil, nil
	}

	last := result.Results[len(result.Results)-1]
	values := make([]types.ReturnValue, 0, len(last.ReturnValues))
	for i, pair := range last.ReturnValues {
		var raw []byte
		if err := json.Unmarshal(pair[0], &raw); err != nil {
			// Some node versions return byte arrays rather than base64 strings.
			var nums []int
			if err2 := json.Unmarshal(pair[0], &nums); err2 != nil {
				return nil, fmt.Errorf("dev inspect: return value %d: %w", i, err)
			}
			raw = make([]byte, len(nums))
			for j, n := range nums {
				raw[j] = byte(n)
			}
		}
		var tag string
		if err := json.Unmarshal(pair[1], &tag); err != nil {
			return nil, fmt.Errorf("dev inspect: return type %d: %w", i, err)
		}
		values = append(values, types.ReturnValue{BCS: raw, TypeTag: tag})
	}
	return values, nil
}

// DevInspectPlan builds the plan for sender and simulates it in one step.
func (c *Client) DevInspectPlan(ctx context.Context, plan *types.TransactionPlan, sender string) ([]types.ReturnValue, error) {
	txBytes, err := c.BuildUnsigned(ctx, plan, sender)
	if err != nil {
		return nil, err
	}
	return c.DevInspect(ctx, txBytes, sender)
}

type executeResult struct {
	Digest  string `json:"digest"`
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
		GasUsed struct {
			ComputationCost string `json:"computationCost"`
			StorageCost     string `json:"storageCost"`
			StorageRebate   string `json:"storageRebate"`
		} `json:"gasUsed"`
	} `json:"effects"`
	Events []struct {
		Type        string          `json:"type"`
		ParsedJSON  json.RawMessage `json:"parsedJson"`
		TimestampMs string          `json:"timestampMs"`
	} `json:"events"`
}

// ExecuteSigned submits signed transaction bytes and waits for effects.
// An on-chain abort surfaces as a RevertError carrying the abort code.
func (c *Client) ExecuteSigned(ctx context.Context, txBytes []byte, signature string) (*types.ExecutionResult, error) {
	var result executeResult
	encoded := base64.StdEncoding.EncodeToString(txBytes)
	opts := map[string]bool{"showEffects": true, "showEvents": true}
	if err := c.call(ctx, "sui_executeTransactionBlock", params(encoded, []string{signature}, opts, "WaitForLocalExecution"), &result); err != nil {
		return nil, err
	}

	if result.Effects.Status.Status == "failure" {
		code, _ := parseAbortCode(result.Effects.Status.Error)
		return nil, Reverted(code, result.Effects.Status.Error)
	}

	events := make([]types.EventEnvelope, 0, len(result.Events))
	for _, e := range result.Events {
		ts, _ := strconv.ParseInt(e.TimestampMs, 10, 64)
		events = append(events, types.EventEnvelope{
			Type:       e.Type,
			ParsedJSON: e.ParsedJSON,
			Timestamp:  time.UnixMilli(ts),
		})
	}

	return &types.ExecutionResult{
		Digest:        result.Digest,
		EffectsStatus: result.Effects.Status.Status,
		GasUsed:       gasTotal(result),
		Events:        events,
	}, nil
}

func gasTotal(r executeResult) uint64 {
	comp, _ := strconv.ParseUint(r.Effects.GasUsed.ComputationCost, 10, 64)
	store, _ := strconv.ParseUint(r.Effects.GasUsed.StorageCost, 10, 64)
	rebate, _ := strconv.ParseUint(r.Effects.GasUsed.StorageRebate, 10, 64)
	total := comp + store
	if rebate > total {
		return 0
	}
	return total - rebate
}

// parseAbortCode extracts the abort code from a node failure string such as
// "MoveAbort(MoveLocation { ... }, 2) in command 1".
func parseAbortCode(status string) (int64, bool) {
	idx := strings.Index(status, "MoveAbort(")
	if idx < 0 {
		return 0, false
	}
	rest := status[idx:]
	close := strings.Index(rest, ")")
	if close < 0 {
		return 0, false
	}
	inner := rest[:close]
	comma := strings.LastIndex(inner, ",")
	if comma < 0 {
		return 0, false
	}
	code, err := strconv.ParseInt(strings.TrimSpace(inner[comma+1:]), 10, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// types.go holds the request and response shapes of the HTTP façade.
// All amounts are human-readable decimals unless the field name carries a
// Raw suffix.
package api

import (
	"github.com/shopspring/decimal"

	"intent-solver/pkg/types"
)

// errorResponse is the uniform failure envelope. Stack is populated only in
// dev mode.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stack   string `json:"stack,omitempty"`
}

// TokenAlias is one row of the alias table exposed on /pools.
type TokenAlias struct {
	Alias    string `json:"alias"`
	Type     string `json:"type"`
	Decimals int    `json:"decimals"`
}

type healthResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	RPCURL        string `json:"rpcUrl"`
	PackageID     string `json:"packageId"`
	Pools         int    `json:"pools"`
	DryRun        bool   `json:"dryRun"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

type poolView struct {
	PoolID    string `json:"poolId"`
	BaseType  string `json:"baseType"`
	QuoteType string `json:"quoteType"`
}

type poolsResponse struct {
	Success bool         `json:"success"`
	Pools   []poolView   `json:"pools"`
	Tokens  []TokenAlias `json:"tokens"`
}

type quoteRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type quoteResponse struct {
	Success        bool            `json:"success"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	InputAmount    decimal.Decimal `json:"inputAmount"`
	OutputAmount   decimal.Decimal `json:"outputAmount"`
	InputRaw       uint64          `json:"inputRaw"`
	OutputRaw      uint64          `json:"outputRaw"`
	MidPrice       decimal.Decimal `json:"midPrice"`
	BestBid        decimal.Decimal `json:"bestBid"`
	BestAsk        decimal.Decimal `json:"bestAsk"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`
	Route          []string        `json:"route"`
}

type orderbookRequest struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type bookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type orderbookResponse struct {
	Success  bool            `json:"success"`
	PoolID   string          `json:"poolId"`
	Bids     []bookLevel     `json:"bids"`
	Asks     []bookLevel     `json:"asks"`
	BestBid  decimal.Decimal `json:"bestBid"`
	BestAsk  decimal.Decimal `json:"bestAsk"`
	MidPrice decimal.Decimal `json:"midPrice"`
	Spread   decimal.Decimal `json:"spread"`
}

type priceRequest struct {
	Pair string `json:"pair"` // "BASE_QUOTE" alias form
}

type priceResponse struct {
	Success  bool            `json:"success"`
	Pair     string          `json:"pair"`
	MidPrice decimal.Decimal `json:"midPrice"`
	BestBid  decimal.Decimal `json:"bestBid"`
	BestAsk  decimal.Decimal `json:"bestAsk"`
}

type intentRequest struct {
	ID string `json:"id"`
}

// intentView is the enriched read model of one on-chain intent.
type intentView struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	InputType       string          `json:"inputType"`
	OutputType      string          `json:"outputType"`
	InputAmount     decimal.Decimal `json:"inputAmount"`
	MinOutput       decimal.Decimal `json:"minOutput"`
	InputRaw        uint64          `json:"inputRaw"`
	MinOutputRaw    uint64          `json:"minOutputRaw"`
	DeadlineMs      int64           `json:"deadlineMs"`
	Status          string          `json:"status"`
	Expired         bool            `json:"expired"`
	Solver          string          `json:"solver,omitempty"`
}

type intentResponse struct {
	Success bool       `json:"success"`
	Intent  intentView `json:"intent"`
}

type createIntentRequest struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	MinOutput       decimal.Decimal `json:"minOutput"`
	DeadlineSeconds int64           `json:"deadlineSeconds"`
}

type executeIntentRequest struct {
	IntentID string `json:"intentId"`
}

type txResponse struct {
	Success bool   `json:"success"`
	Digest  string `json:"digest"`
	Status  string `json:"status"`
	GasUsed uint64 `json:"gasUsed"`
}

type openIntentsRequest struct {
	Limit          int  `json:"limit"`
	IncludeExpired bool `json:"includeExpired"`
}

type openIntentsResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Intents []intentView `json:"intents"`
}

type historyRequest struct {
	Limit int `json:"limit"`
}

// historyEntry is one merged lifecycle event, created or executed.
type historyEntry struct {
	Kind        string `json:"kind"` // "created" or "executed"
	IntentID    string `json:"intentId"`
	TimestampMs int64  `json:"timestampMs"`
	Owner       string `json:"owner,omitempty"`
	Solver      string `json:"solver,omitempty"`
	InputType   string `json:"inputType,omitempty"`
	OutputType  string `json:"outputType,omitempty"`
	InputRaw    uint64 `json:"inputRaw,omitempty"`
	OutputRaw   uint64 `json:"outputRaw,omitempty"`
	FeeRaw      uint64 `json:"feeRaw,omitempty"`
}

type historyResponse struct {
	Success bool           `json:"success"`
	Events  []historyEntry `json:"events"`
}

type buildCreateRequest struct {
	Sender          string          `json:"sender"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	MinOutput       decimal.Decimal `json:"minOutput"`
	DeadlineSeconds int64           `json:"deadlineSeconds"`
}

type buildIntentRequest struct {
	Sender   string `json:"sender"`
	IntentID string `json:"intentId"`
}

type buildResponse struct {
	Success bool   `json:"success"`
	Sender  string `json:"sender"`
	TxBytes string `json:"txBytes"` // base64, ready for wallet signing
}

type executeTxRequest struct {
	TxBytes   string `json:"txBytes"` // base64
	Signature string `json:"signature"`
}

type walletBalanceRequest struct {
	Address string `json:"address"`
}

type balanceEntry struct {
	Alias  string          `json:"alias"`
	Type   string          `json:"type"`
	Raw    uint64          `json:"raw"`
	Amount decimal.Decimal `json:"amount"`
}

type walletBalanceResponse struct {
	Success  bool           `json:"success"`
	Address  string         `json:"address"`
	Balances []balanceEntry `json:"balances"`
}

type configRequest struct {
	ConfigID string `json:"configId"`
}

type configResponse struct {
	Success      bool   `json:"success"`
	ID           string `json:"id"`
	FeeBps       uint64 `json:"feeBps"`
	FeeRecipient string `json:"feeRecipient"`
	Paused       bool   `json:"paused"`
}

type metricsResponse struct {
	Success  bool                  `json:"success"`
	Counters types.MetricsSnapshot `json:"counters"`
	InFlight int                   `json:"inFlight"`
}

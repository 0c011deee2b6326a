// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the solver — intents, pools,
// order book snapshots, swap quotes, on-chain event records, and transaction
// plans. It has no dependencies on internal packages, so it can be imported
// by any layer.
package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Intents
// ————————————————————————————————————————————————————————————————————————

// IntentStatus is the lifecycle state of an on-chain intent.
// Transitions are monotone and one-shot: OPEN may move to exactly one of
// the three terminal states and never back.
type IntentStatus uint8

const (
	StatusOpen      IntentStatus = 0
	StatusCompleted IntentStatus = 1
	StatusCancelled IntentStatus = 2
	StatusExpired   IntentStatus = 3
)

// String returns the human-readable status name.
func (s IntentStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the status is one of the three final states.
func (s IntentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Intent is the parsed view of the shared on-chain intent object.
// InputBalance is held in escrow by the contract while Status is OPEN.
// Amounts are raw on-chain units (scaled by the asset's decimal exponent).
type Intent struct {
	ID              string // object ID of the shared intent
	Owner           string // address that posted the intent; alone may cancel
	InputType       string // asset type the owner is paying
	OutputType      string // asset type the owner wants; never equal to InputType
	InputBalance    uint64 // escrowed input, raw units
	MinOutputAmount uint64 // minimum acceptable output, raw units
	DeadlineMs      int64  // absolute wall-clock deadline in ms
	Status          IntentStatus
	Solver          string // filled on transition to COMPLETED, empty otherwise
}

// ProtocolConfig is the shared configuration object of the intent protocol.
// FeeBps is withheld from the input side, never the output side.
type ProtocolConfig struct {
	ID           string
	FeeBps       uint64 // 0..500
	FeeRecipient string
	Paused       bool
}

// ————————————————————————————————————————————————————————————————————————
// Pools and order book
// ————————————————————————————————————————————————————————————————————————

// Pool describes one CLOB pool in the solver's registry.
// BaseScalar/QuoteScalar are decimal-to-raw multipliers (1e9 for a
// 9-decimal asset, 1e6 for a 6-decimal one). TickSize and LotSize are not
// used for quoting but preserved for order placement.
type Pool struct {
	PoolID      string
	BaseType    string
	QuoteType   string
	BaseScalar  uint64
	QuoteScalar uint64
	TickSize    uint64
	LotSize     uint64
}

// PriceLevel is a single bid or ask level in human-unit decimals.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Level2 is a point-in-time depth snapshot of one pool.
// Bids are sorted descending by price, asks ascending.
type Level2 struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// SwapQuote is the result of simulating a market order against live depth.
// Route is the ordered list of pool IDs traversed (always length 1 today).
type SwapQuote struct {
	InputRaw       uint64
	OutputRaw      uint64
	MidPrice       decimal.Decimal
	BestBid        decimal.Decimal
	BestAsk        decimal.Decimal
	PriceImpactPct decimal.Decimal
	Route          []string
}

// ————————————————————————————————————————————————————————————————————————
// Ledger objects, coins, events
// ————————————————————————————————————————————————————————————————————————

// ObjectSnapshot is a raw object read: declared type string plus the field
// map as untouched JSON. Parsers in the registry package interpret Fields.
type ObjectSnapshot struct {
	ID     string
	Type   string // full parameterised type, e.g. "0xabc::intent::Intent<0x2::sui::SUI, 0xdef::usdc::USDC>"
	Fields json.RawMessage
}

// Coin is one coin object owned by an address.
type Coin struct {
	ID      string
	Type    string
	Balance uint64
}

// EventEnvelope is one event as returned by the ledger: the full move event
// type string, the parsed JSON payload, and the emission timestamp.
type EventEnvelope struct {
	Type       string
	ParsedJSON json.RawMessage
	Timestamp  time.Time
}

// IntentEvent is implemented by the four parsed intent protocol events.
type IntentEvent interface {
	EventIntentID() string
}

// IntentCreatedEvent announces a new open intent.
type IntentCreatedEvent struct {
	IntentID        string
	Owner           string
	InputType       string
	OutputType      string
	InputAmount     uint64
	MinOutputAmount uint64
	DeadlineMs      int64
}

// IntentExecutedEvent announces a successful fill.
type IntentExecutedEvent struct {
	IntentID        string
	Solver          string
	InputAmount     uint64
	OutputAmount    uint64
	FeeAmount       uint64
	ExecutionTimeMs int64
}

// IntentCancelledEvent announces an owner cancellation.
type IntentCancelledEvent struct {
	IntentID string
	Owner    string
}

// IntentExpiredEvent announces an expiry cleanup. RefundAmount went back to
// Owner, never to TriggeredBy.
type IntentExpiredEvent struct {
	IntentID     string
	Owner        string
	TriggeredBy  string
	RefundAmount uint64
}

func (e IntentCreatedEvent) EventIntentID() string   { return e.IntentID }
func (e IntentExecutedEvent) EventIntentID() string  { return e.IntentID }
func (e IntentCancelledEvent) EventIntentID() string { return e.IntentID }
func (e IntentExpiredEvent) EventIntentID() string   { return e.IntentID }

// ————————————————————————————————————————————————————————————————————————
// Transaction plans
// ————————————————————————————————————————————————————————————————————————
// A TransactionPlan is the JSON-serializable description of a programmable
// transaction block: an ordered command list where later commands may
// reference the results of earlier ones. The native wire encoding is the
// RPC node's concern; the plan is sent as-is to the unsigned-build endpoint.

// ResultRef points at the Index-th return value of the Command-th command.
type ResultRef struct {
	Command int `json:"command"`
	Index   int `json:"index"`
}

// Argument is one input to a command. Exactly one field is set.
type Argument struct {
	Object  string     `json:"object,omitempty"`  // object ID passed by reference
	Pure    any        `json:"pure,omitempty"`    // plain value (u64s as decimal strings)
	Result  *ResultRef `json:"result,omitempty"`  // result of an earlier command
	GasCoin bool       `json:"gasCoin,omitempty"` // the gas coin itself
}

// ObjectArg references a shared or owned object by ID.
func ObjectArg(id string) Argument { return Argument{Object: id} }

// PureArg passes a plain BCS-encodable value.
func PureArg(v any) Argument { return Argument{Pure: v} }

// ResultArg references the single return value of an earlier command.
func ResultArg(command int) Argument { return Argument{Result: &ResultRef{Command: command}} }

// NestedResultArg references one of several return values of an earlier command.
func NestedResultArg(command, index int) Argument {
	return Argument{Result: &ResultRef{Command: command, Index: index}}
}

// MoveCall invokes target (package::module::function) with type arguments.
type MoveCall struct {
	Target   string     `json:"target"`
	TypeArgs []string   `json:"typeArguments,omitempty"`
	Args     []Argument `json:"arguments,omitempty"`
}

// MergeCoins merges Sources into Destination.
type MergeCoins struct {
	Destination Argument   `json:"destination"`
	Sources     []Argument `json:"sources"`
}

// SplitCoins splits Amounts out of Coin, producing one result per amount.
type SplitCoins struct {
	Coin    Argument   `json:"coin"`
	Amounts []Argument `json:"amounts"`
}

// TransferObjects sends Objects to Recipient.
type TransferObjects struct {
	Objects   []Argument `json:"objects"`
	Recipient string     `json:"recipient"`
}

// Command is one step of a plan. Exactly one field is set.
type Command struct {
	MoveCall        *MoveCall        `json:"moveCall,omitempty"`
	MergeCoins      *MergeCoins      `json:"mergeCoins,omitempty"`
	SplitCoins      *SplitCoins      `json:"splitCoins,omitempty"`
	TransferObjects *TransferObjects `json:"transferObjects,omitempty"`
}

// TransactionPlan is an atomic multi-command transaction. Either every
// command takes effect or none does.
type TransactionPlan struct {
	Commands  []Command `json:"commands"`
	GasBudget uint64    `json:"gasBudget,omitempty"`
}

// Add appends a command and returns its index, for threading results.
func (p *TransactionPlan) Add(c Command) int {
	p.Commands = append(p.Commands, c)
	return len(p.Commands) - 1
}

// ————————————————————————————————————————————————————————————————————————
// Execution
// ————————————————————————————————————————————————————————————————————————

// ReturnValue is one dev-inspect return: raw BCS bytes plus the type tag.
type ReturnValue struct {
	BCS     []byte
	TypeTag string
}

// ExecutionResult is the outcome of a submitted signed transaction.
type ExecutionResult struct {
	Digest        string
	EffectsStatus string // "success" or "failure"
	GasUsed       uint64
	Events        []EventEnvelope
}

// Succeeded reports whether the transaction's effects committed.
func (r *ExecutionResult) Succeeded() bool { return r.EffectsStatus == "success" }

// MetricsSnapshot is a consistent-enough read of the engine counters.
type MetricsSnapshot struct {
	Processed uint64 `json:"processed"`
	Executed  uint64 `json:"executed"`
	Skipped   uint64 `json:"skipped"`
	GasSpent  uint64 `json:"gasSpent"`
	ProfitRaw uint64 `json:"profitRaw"`
}

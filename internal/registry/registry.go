// Package registry is the client for the on-chain intent protocol: pure
// transaction-plan builders for its entry points and parsers for its objects
// and events. Builders have no side effects — they produce plans the RPC
// client encodes and the signer signs.
package registry

import (
	"fmt"

	"intent-solver/pkg/types"
)

// Shared system objects.
const ClockObjectID = "0x6"

// Abort codes of the intent contract, observed as RevertError.Code.
const (
	AbortInvalidStatus      = 0
	AbortInvalidOwner       = 1
	AbortInsufficientOutput = 2
	AbortIntentExpired      = 3
	AbortSameAssetSwap      = 4
	AbortIntentNotExpired   = 5
	AbortIntentNotTerminal  = 6
	AbortZeroAmount         = 7
	AbortInvalidDeadline    = 8
	AbortInvalidFee         = 9
)

// AbortReason maps a contract abort code to its human-readable name.
func AbortReason(code int64) string {
	switch code {
	case AbortInvalidStatus:
		return "intent is not open"
	case AbortInvalidOwner:
		return "caller is not the intent owner"
	case AbortInsufficientOutput:
		return "output coin below min_output_amount"
	case AbortIntentExpired:
		return "intent deadline has passed"
	case AbortSameAssetSwap:
		return "input and output assets are identical"
	case AbortIntentNotExpired:
		return "intent deadline has not passed"
	case AbortIntentNotTerminal:
		return "intent is still open"
	case AbortZeroAmount:
		return "zero amount"
	case AbortInvalidDeadline:
		return "invalid deadline"
	case AbortInvalidFee:
		return "fee out of range"
	default:
		return fmt.Sprintf("abort code %d", code)
	}
}

// Registry builds transaction plans against one deployment of the protocol.
type Registry struct {
	PackageID string // package that holds the intent module
	ConfigID  string // shared ProtocolConfig object
}

// New creates a registry client for the given deployment.
func New(packageID, configID string) *Registry {
	return &Registry{PackageID: packageID, ConfigID: configID}
}

func (r *Registry) target(fn string) string {
	return r.PackageID + "::intent::" + fn
}

// CreatedEventType returns the full move event type for IntentCreated.
func (r *Registry) CreatedEventType() string { return r.PackageID + "::intent::IntentCreated" }

// ExecutedEventType returns the full move event type for IntentExecuted.
func (r *Registry) ExecutedEventType() string { return r.PackageID + "::intent::IntentExecuted" }

// ————————————————————————————————————————————————————————————————————————
// Command builders (for composing larger plans)
// ————————————————————————————————————————————————————————————————————————

// ExecuteIntentCall fills an intent with outputCoin. The command's result is
// the escrowed Balance<In>, to be threaded into a follow-up command.
func (r *Registry) ExecuteIntentCall(intentID string, outputCoin types.Argument, inType, outType string) types.Command {
	return types.Command{MoveCall: &types.MoveCall{
		Target:   r.target("execute_intent"),
		TypeArgs: []string{inType, outType},
		Args: []types.Argument{
			types.ObjectArg(intentID),
			outputCoin,
			types.ObjectArg(r.ConfigID),
			types.ObjectArg(ClockObjectID),
		},
	}}
}

// CreateIntentCall escrows the coin argument into a new intent.
// deadlineDeltaMs is a duration — the contract adds the current clock time.
func (r *Registry) CreateIntentCall(inputCoin types.Argument, inputType, outputType string, minOutputRaw, deadlineDeltaMs uint64) types.Command {
	return types.Command{MoveCall: &types.MoveCall{
		Target:   r.target("create_intent"),
		TypeArgs: []string{inputType, outputType},
		Args: []types.Argument{
			inputCoin,
			types.PureArg(fmt.Sprintf("%d", minOutputRaw)),
			types.PureArg(fmt.Sprintf("%d", deadlineDeltaMs)),
			types.ObjectArg(ClockObjectID),
		},
	}}
}

// CoinFromBalanceCall converts a Balance<T> result into a Coin<T>.
func CoinFromBalanceCall(balance types.Argument, assetType string) types.Command {
	return types.Command{MoveCall: &types.MoveCall{
		Target:   "0x2::coin::from_balance",
		TypeArgs: []string{assetType},
		Args:     []types.Argument{balance},
	}}
}

// ————————————————————————————————————————————————————————————————————————
// Plan builders
// ————————————————————————————————————————————————————————————————————————

// PlanCreate escrows inputCoinID into a new intent. deadlineDeltaMs is a
// duration — the contract adds the current clock time itself.
func (r *Registry) PlanCreate(inputCoinID, inputType, outputType string, minOutputRaw, deadlineDeltaMs uint64) *types.TransactionPlan {
	plan := &types.TransactionPlan{}
	plan.Add(r.CreateIntentCall(types.ObjectArg(inputCoinID), inputType, outputType, minOutputRaw, deadlineDeltaMs))
	return plan
}

// PlanExecute fills the intent with outputCoinID and transfers the released
// input to recipient. The escrowed balance is converted to a coin inside the
// same atomic plan.
func (r *Registry) PlanExecute(intentID, outputCoinID, inType, outType, recipient string) *types.TransactionPlan {
	plan := &types.TransactionPlan{}
	exec := plan.Add(r.ExecuteIntentCall(intentID, types.ObjectArg(outputCoinID), inType, outType))
	coin := plan.Add(CoinFromBalanceCall(types.ResultArg(exec), inType))
	plan.Add(types.Command{TransferObjects: &types.TransferObjects{
		Objects:   []types.Argument{types.ResultArg(coin)},
		Recipient: recipient,
	}})
	return plan
}

// PlanCancel cancels an open intent (owner-only) and returns the escrowed
// input to owner as a coin.
func (r *Registry) PlanCancel(intentID, inType, outType, owner string) *types.TransactionPlan {
	plan := &types.TransactionPlan{}
	cancel := plan.Add(types.Command{MoveCall: &types.MoveCall{
		Target:   r.target("cancel_intent"),
		TypeArgs: []string{inType, outType},
		Args:     []types.Argument{types.ObjectArg(intentID)},
	}})
	coin := plan.Add(CoinFromBalanceCall(types.ResultArg(cancel), inType))
	plan.Add(types.Command{TransferObjects: &types.TransferObjects{
		Objects:   []types.Argument{types.ResultArg(coin)},
		Recipient: owner,
	}})
	return plan
}

// PlanCleanupExpired marks a past-deadline intent EXPIRED and refunds the
// owner. Anyone may submit it.
func (r *Registry) PlanCleanupExpired(intentID, inType, outType string) *types.TransactionPlan {
	plan := &types.TransactionPlan{}
	plan.Add(types.Command{MoveCall: &types.MoveCall{
		Target:   r.target("cleanup_expired"),
		TypeArgs: []string{inType, outType},
		Args: []types.Argument{
			types.ObjectArg(intentID),
			types.ObjectArg(ClockObjectID),
		},
	}})
	return plan
}

// PlanDestroy deletes a terminal intent object. The contract aborts unless
// the intent is terminal with a zero balance.
func (r *Registry) PlanDestroy(intentID, inType, outType string) *types.TransactionPlan {
	plan := &types.TransactionPlan{}
	plan.Add(types.Command{MoveCall: &types.MoveCall{
		Target:   r.target("destroy_intent"),
		TypeArgs: []string{inType, outType},
		Args:     []types.Argument{types.ObjectArg(intentID)},
	}})
	return plan
}

// ————————————————————————————————————————————————————————————————————————
// Helpers
// ————————————————————————————————————————————————————————————————————————

// IsExpired reports whether the intent's deadline is strictly in the past.
func IsExpired(intent *types.Intent, nowMs int64) bool {
	return nowMs > intent.DeadlineMs
}

// Fee computes the protocol fee withheld from the input side.
// Integer arithmetic, truncated toward zero.
func Fee(amount, feeBps uint64) uint64 {
	return amount * feeBps / 10000
}

// plans.go composes transaction plans for the façade's create, execute and
// cancel flows: pick coins from the sender's inventory, cut the exact
// amount, and thread it into the protocol entry point.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"intent-solver/internal/quoter"
	"intent-solver/internal/registry"
	"intent-solver/internal/rpc"
	"intent-solver/internal/solver"
	"intent-solver/pkg/types"
)

func rpcNoPoolError(a, b string) error {
	return fmt.Errorf("%s/%s: %w", a, b, quoter.ErrNoPool)
}

// createIntentPlan funds a new intent from sender's coins: merge enough
// coins of the input asset, split the exact amount, escrow it.
func (s *Server) createIntentPlan(r *http.Request, sender, from, to string, amount, minOutput decimal.Decimal, deadlineSeconds int64) (*types.TransactionPlan, error) {
	if from == "" || to == "" {
		return nil, rpc.InvalidArgument("from and to are required")
	}
	if amount.Sign() <= 0 {
		return nil, rpc.InvalidArgument("amount must be positive")
	}
	if deadlineSeconds <= 0 {
		return nil, rpc.InvalidArgument("deadlineSeconds must be positive")
	}

	fromType := s.tokens.Resolve(from)
	toType := s.tokens.Resolve(to)
	if fromType == toType {
		return nil, rpc.InvalidArgument("input and output assets must differ")
	}

	amountRaw := s.tokens.HumanToRaw(amount, fromType)
	if amountRaw == 0 {
		return nil, rpc.InvalidArgument("amount rounds to zero raw units")
	}
	minOutputRaw := s.tokens.HumanToRaw(minOutput, toType)

	plan := &types.TransactionPlan{GasBudget: s.opts.GasBudget}
	payment, err := s.exactCoin(r, plan, sender, fromType, amountRaw)
	if err != nil {
		return nil, err
	}
	plan.Add(s.registry.CreateIntentCall(payment, fromType, toType, minOutputRaw, uint64(deadlineSeconds)*1000))
	return plan, nil
}

// executeIntentPlan fills an open intent from sender's coins of the output
// asset and returns the released input to sender.
func (s *Server) executeIntentPlan(r *http.Request, sender string, intent *types.Intent) (*types.TransactionPlan, error) {
	if intent.Status != types.StatusOpen {
		return nil, rpc.InvalidArgument("intent %s is %s, not OPEN", intent.ID, intent.Status)
	}
	if registry.IsExpired(intent, time.Now().UnixMilli()) {
		return nil, rpc.InvalidArgument("intent %s deadline has passed", intent.ID)
	}

	plan := &types.TransactionPlan{GasBudget: s.opts.GasBudget}
	payout, err := s.exactCoin(r, plan, sender, intent.OutputType, intent.MinOutputAmount)
	if err != nil {
		return nil, err
	}

	exec := plan.Add(s.registry.ExecuteIntentCall(intent.ID, payout, intent.InputType, intent.OutputType))
	coin := plan.Add(registry.CoinFromBalanceCall(types.ResultArg(exec), intent.InputType))
	plan.Add(types.Command{TransferObjects: &types.TransferObjects{
		Objects:   []types.Argument{types.ResultArg(coin)},
		Recipient: sender,
	}})
	return plan, nil
}

// exactCoin appends merge/split commands yielding a coin of exactly amount
// raw units of coinType from sender's inventory, and returns the argument
// referencing it.
func (s *Server) exactCoin(r *http.Request, plan *types.TransactionPlan, sender, coinType string, amount uint64) (types.Argument, error) {
	coins, err := s.ledger.GetCoins(r.Context(), sender, coinType)
	if err != nil {
		return types.Argument{}, err
	}

	var selected []types.Coin
	var total uint64
	for _, c := range coins {
		selected = append(selected, c)
		total += c.Balance
		if total >= amount {
			break
		}
	}
	if total < amount {
		return types.Argument{}, fmt.Errorf("%w: %s needs %d of %s, has %d",
			solver.ErrInsufficientBalance, sender, amount, coinType, total)
	}

	payment := types.ObjectArg(selected[0].ID)
	if len(selected) > 1 {
		sources := make([]types.Argument, 0, len(selected)-1)
		for _, c := range selected[1:] {
			sources = append(sources, types.ObjectArg(c.ID))
		}
		plan.Add(types.Command{MergeCoins: &types.MergeCoins{Destination: payment, Sources: sources}})
	}
	split := plan.Add(types.Command{SplitCoins: &types.SplitCoins{
		Coin:    payment,
		Amounts: []types.Argument{types.PureArg(fmt.Sprintf("%d", amount))},
	}})
	return types.NestedResultArg(split, 0), nil
}

// settle.go builds the atomic settlement transaction for one intent:
// fund the payout from solver inventory, fill the intent, and resell the
// collected input on the book — all in one plan, so either the owner is
// paid and the solver is hedged, or nothing happens.
package solver

import (
	"context"
	"fmt"

	"intent-solver/internal/registry"
	"intent-solver/pkg/types"
)

// coinBufferBps pads the inventory requirement above min_output_amount.
// On abort the surplus stays in the solver wallet.
const coinBufferBps = 500

// buildSettlementPlan assembles the settlement commands:
//
//	1. merge solver coins of the output asset, split out the exact payout
//	2. execute_intent — pays the owner, yields the escrowed Balance<In>
//	3. convert the balance to a coin
//	4. reverse-swap it on the book (DEEP fee coin from inventory)
//	5. transfer the proceeds and leftovers back to the solver
func (e *Engine) buildSettlementPlan(ctx context.Context, intent *types.Intent) (*types.TransactionPlan, error) {
	pool, ok := e.quoter.FindPool(intent.InputType, intent.OutputType)
	if !ok {
		return nil, fmt.Errorf("pair %s/%s has no pool", intent.InputType, intent.OutputType)
	}

	required := intent.MinOutputAmount + registry.Fee(intent.MinOutputAmount, coinBufferBps)
	payCoins, err := e.selectCoins(ctx, intent.OutputType, required)
	if err != nil {
		return nil, err
	}

	feeCoin, err := e.feeCoin(ctx)
	if err != nil {
		return nil, err
	}

	plan := &types.TransactionPlan{GasBudget: e.opts.MaxGasPrice}

	// Merge into one handle, then split the exact payout.
	payment := types.ObjectArg(payCoins[0].ID)
	if len(payCoins) > 1 {
		sources := make([]types.Argument, 0, len(payCoins)-1)
		for _, c := range payCoins[1:] {
			sources = append(sources, types.ObjectArg(c.ID))
		}
		plan.Add(types.Command{MergeCoins: &types.MergeCoins{Destination: payment, Sources: sources}})
	}
	split := plan.Add(types.Command{SplitCoins: &types.SplitCoins{
		Coin:    payment,
		Amounts: []types.Argument{types.PureArg(fmt.Sprintf("%d", intent.MinOutputAmount))},
	}})

	exec := plan.Add(e.registry.ExecuteIntentCall(intent.ID, types.NestedResultArg(split, 0), intent.InputType, intent.OutputType))
	inputCoin := plan.Add(registry.CoinFromBalanceCall(types.ResultArg(exec), intent.InputType))

	// Resell the collected input on the book. Which entry point depends on
	// which side of the pool the input asset is.
	swapFn := "swap_exact_quote_for_base"
	if intent.InputType == pool.BaseType {
		swapFn = "swap_exact_base_for_quote"
	}
	swap := plan.Add(types.Command{MoveCall: &types.MoveCall{
		Target:   e.opts.DeepbookPackage + "::pool::" + swapFn,
		TypeArgs: []string{pool.BaseType, pool.QuoteType},
		Args: []types.Argument{
			types.ObjectArg(pool.PoolID),
			types.ResultArg(inputCoin),
			types.ObjectArg(feeCoin.ID),
			types.PureArg("0"), // no minimum — profitability was gated on the quote
			types.ObjectArg(registry.ClockObjectID),
		},
	}})

	// The swap returns (leftover base, leftover quote, leftover fee);
	// solver keeps all three.
	plan.Add(types.Command{TransferObjects: &types.TransferObjects{
		Objects: []types.Argument{
			types.NestedResultArg(swap, 0),
			types.NestedResultArg(swap, 1),
			types.NestedResultArg(swap, 2),
		},
		Recipient: e.signer.Address(),
	}})

	return plan, nil
}

// selectCoins picks solver coins of coinType until their sum covers
// required, in RPC-native order. Concurrent fills racing over the same
// coins surface later as a version-conflict revert, which is dropped.
func (e *Engine) selectCoins(ctx context.Context, coinType string, required uint64) ([]types.Coin, error) {
	coins, err := e.ledger.GetCoins(ctx, e.signer.Address(), coinType)
	if err != nil {
		return nil, err
	}

	var selected []types.Coin
	var total uint64
	for _, c := range coins {
		selected = append(selected, c)
		total += c.Balance
		if total >= required {
			return selected, nil
		}
	}
	return nil, fmt.Errorf("%w: need %d of %s, have %d", ErrInsufficientBalance, required, coinType, total)
}

// feeCoin returns one DEEP coin from inventory to pay the book's taker fee.
func (e *Engine) feeCoin(ctx context.Context) (*types.Coin, error) {
	coins, err := e.ledger.GetCoins(ctx, e.signer.Address(), e.opts.DeepFeeType)
	if err != nil {
		return nil, err
	}
	for i := range coins {
		if coins[i].Balance > 0 {
			return &coins[i], nil
		}
	}
	return nil, ErrNoFeeCoin
}

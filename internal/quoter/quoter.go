// Package quoter prices swaps against the on-chain central-limit order book.
//
// Level-2 depth is fetched with a dev-inspect call to the book's read-only
// view function, decoded from BCS, and converted to human-unit decimals.
// Quotes are produced by walking the depth: selling base consumes bids top
// down, buying base consumes asks bottom up. There is no fallback pricing —
// a missing pool or an empty book is an error the caller must handle.
package quoter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"intent-solver/pkg/types"
)

// The contract scales raw prices by 1e9.
var floatScalar = decimal.NewFromInt(1_000_000_000)

const defaultTicksFromMid = 50

var (
	// ErrNoPool means no registered pool covers the asset pair.
	ErrNoPool = errors.New("no pool for asset pair")
	// ErrNoLiquidity means the book is empty on both sides after filtering.
	ErrNoLiquidity = errors.New("no liquidity")
)

// devInspector is the slice of the RPC client the quoter needs.
type devInspector interface {
	DevInspectPlan(ctx context.Context, plan *types.TransactionPlan, sender string) ([]types.ReturnValue, error)
}

// Quoter holds the pool registry and fetches live depth on demand.
// The registry is populated once at construction and read-only after.
type Quoter struct {
	inspector   devInspector
	deepbookPkg string
	sender      string // any funded-or-not address; dev-inspect needs a sender
	pools       []types.Pool
	logger      *slog.Logger
}

// New builds a quoter over the given pools. The unordered
// {base_type, quote_type} pair of each pool must be unique.
func New(inspector devInspector, deepbookPkg, sender string, pools []types.Pool, logger *slog.Logger) (*Quoter, error) {
	seen := make(map[string]string, len(pools))
	for _, p := range pools {
		if p.BaseScalar == 0 || p.QuoteScalar == 0 {
			return nil, fmt.Errorf("pool %s: zero scalar", p.PoolID)
		}
		key := pairKey(p.BaseType, p.QuoteType)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("pools %s and %s cover the same asset pair", prev, p.PoolID)
		}
		seen[key] = p.PoolID
	}

	return &Quoter{
		inspector:   inspector,
		deepbookPkg: deepbookPkg,
		sender:      sender,
		pools:       pools,
		logger:      logger.With("component", "quoter"),
	}, nil
}

// pairKey orders the two types so lookup is direction-agnostic.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// Pools returns the registered pools.
func (q *Quoter) Pools() []types.Pool { return q.pools }

// FindPool returns the unique pool whose base/quote pair matches {a, b}
// in either orientation.
func (q *Quoter) FindPool(a, b string) (*types.Pool, bool) {
	key := pairKey(a, b)
	for i := range q.pools {
		if pairKey(q.pools[i].BaseType, q.pools[i].QuoteType) == key {
			return &q.pools[i], true
		}
	}
	return nil, false
}

// Level2 fetches the live depth snapshot for a pool. Entries with a
// non-positive price or quantity are dropped; an entirely empty book is
// ErrNoLiquidity.
func (q *Quoter) Level2(ctx context.Context, pool *types.Pool) (*types.Level2, error) {
	plan := &types.TransactionPlan{}
	plan.Add(types.Command{MoveCall: &types.MoveCall{
		Target:   q.deepbookPkg + "::pool::get_level2_ticks_from_mid",
		TypeArgs: []string{pool.BaseType, pool.QuoteType},
		Args: []types.Argument{
			types.ObjectArg(pool.PoolID),
			types.PureArg(fmt.Sprintf("%d", defaultTicksFromMid)),
			types.ObjectArg("0x6"),
		},
	}})

	values, err := q.inspector.DevInspectPlan(ctx, plan, q.sender)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("level2: want 4 return values, got %d", len(values))
	}

	vecs := make([][]uint64, 4)
	for i, v := range values {
		vec, err := DecodeU64Vec(v.BCS)
		if err != nil {
			return nil, fmt.Errorf("level2: return value %d: %w", i, err)
		}
		vecs[i] = vec
	}

	bidPrices, bidQtys, askPrices, askQtys := vecs[0], vecs[1], vecs[2], vecs[3]
	if len(bidPrices) != len(bidQtys) || len(askPrices) != len(askQtys) {
		return nil, fmt.Errorf("level2: mismatched price/quantity lengths")
	}

	book := &types.Level2{
		Bids: buildLevels(bidPrices, bidQtys, pool),
		Asks: buildLevels(askPrices, askQtys, pool),
	}
	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return nil, fmt.Errorf("pool %s: %w", pool.PoolID, ErrNoLiquidity)
	}
	return book, nil
}

// buildLevels converts raw (price, quantity) pairs to human units:
//
//	price    = raw_price / 1e9 * base_scalar / quote_scalar
//	quantity = raw_quantity / base_scalar
func buildLevels(prices, qtys []uint64, pool *types.Pool) []types.PriceLevel {
	baseScalar := decimal.NewFromInt(int64(pool.BaseScalar))
	quoteScalar := decimal.NewFromInt(int64(pool.QuoteScalar))

	levels := make([]types.PriceLevel, 0, len(prices))
	for i := range prices {
		if prices[i] == 0 || qtys[i] == 0 {
			continue
		}
		price := decimal.NewFromUint64(prices[i]).Div(floatScalar).Mul(baseScalar).Div(quoteScalar)
		qty := decimal.NewFromUint64(qtys[i]).Div(baseScalar)
		levels = append(levels, types.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}

// Quote simulates a market order of inputRaw units of inputType against the
// pool covering {inputType, outputType} and reports the output in raw units
// of outputType, plus top-of-book and impact figures.
func (q *Quoter) Quote(ctx context.Context, inputType, outputType string, inputRaw uint64) (*types.SwapQuote, error) {
	pool, ok := q.FindPool(inputType, outputType)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", inputType, outputType, ErrNoPool)
	}

	book, err := q.Level2(ctx, pool)
	if err != nil {
		return nil, err
	}

	isSellBase := inputType == pool.BaseType
	inputScalar := pool.QuoteScalar
	outputScalar := pool.BaseScalar
	if isSellBase {
		inputScalar = pool.BaseScalar
		outputScalar = pool.QuoteScalar
	}
	inputHuman := decimal.NewFromUint64(inputRaw).Div(decimal.NewFromInt(int64(inputScalar)))

	var outputHuman, impact decimal.Decimal
	if isSellBase {
		outputHuman, impact = marketSell(book.Bids, inputHuman)
	} else {
		outputHuman, impact = marketBuy(book.Asks, inputHuman)
	}

	var bestBid, bestAsk decimal.Decimal
	if len(book.Bids) > 0 {
		bestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		bestAsk = book.Asks[0].Price
	}

	return &types.SwapQuote{
		InputRaw:       inputRaw,
		OutputRaw:      rawFloor(outputHuman, outputScalar),
		MidPrice:       midPrice(bestBid, bestAsk),
		BestBid:        bestBid,
		BestAsk:        bestAsk,
		PriceImpactPct: impact.Mul(decimal.NewFromInt(100)),
		Route:          []string{pool.PoolID},
	}, nil
}

// marketSell walks bids top down, selling base for quote. The impact is
// measured from top of book to the last level touched, even when that level
// is not exhausted.
func marketSell(bids []types.PriceLevel, inputBase decimal.Decimal) (outQuote, impact decimal.Decimal) {
	if inputBase.IsZero() || len(bids) == 0 {
		return decimal.Zero, decimal.Zero
	}

	remaining := inputBase
	lastPrice := bids[0].Price
	for _, level := range bids {
		if remaining.IsZero() {
			break
		}
		fill := decimal.Min(remaining, level.Quantity)
		outQuote = outQuote.Add(fill.Mul(level.Price))
		remaining = remaining.Sub(fill)
		lastPrice = level.Price
	}

	impact = bids[0].Price.Sub(lastPrice).Div(bids[0].Price)
	return outQuote, impact
}

// marketBuy walks asks bottom up, spending quote to buy base.
func marketBuy(asks []types.PriceLevel, inputQuote decimal.Decimal) (outBase, impact decimal.Decimal) {
	if inputQuote.IsZero() || len(asks) == 0 {
		return decimal.Zero, decimal.Zero
	}

	remaining := inputQuote
	lastPrice := asks[0].Price
	for _, level := range asks {
		if remaining.IsZero() {
			break
		}
		buyable := decimal.Min(remaining.Div(level.Price), level.Quantity)
		if buyable.IsZero() {
			break
		}
		outBase = outBase.Add(buyable)
		remaining = remaining.Sub(buyable.Mul(level.Price))
		lastPrice = level.Price
	}

	impact = lastPrice.Sub(asks[0].Price).Div(asks[0].Price)
	return outBase, impact
}

// rawFloor converts a human quantity back to raw units, truncating.
func rawFloor(human decimal.Decimal, scalar uint64) uint64 {
	raw := human.Mul(decimal.NewFromInt(int64(scalar))).Floor()
	if raw.Sign() < 0 {
		return 0
	}
	return uint64(raw.IntPart())
}

func midPrice(bestBid, bestAsk decimal.Decimal) decimal.Decimal {
	switch {
	case bestBid.IsPositive() && bestAsk.IsPositive():
		return bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	case bestBid.IsPositive():
		return bestBid
	default:
		return bestAsk
	}
}

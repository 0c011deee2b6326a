package solver

import (
	"context"

	"intent-solver/internal/rpc"
	"intent-solver/pkg/types"
)

// rpcLedger adapts *rpc.Client to the Ledger interface; the subscription
// return type needs the indirection.
type rpcLedger struct {
	*rpc.Client
}

// NewLedger wraps the RPC client for the engine.
func NewLedger(c *rpc.Client) Ledger {
	return rpcLedger{Client: c}
}

func (l rpcLedger) SubscribeEvents(ctx context.Context, moveEventType string, handler func(types.EventEnvelope)) (Subscription, error) {
	return l.Client.SubscribeEvents(ctx, moveEventType, handler)
}

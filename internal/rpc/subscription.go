// subscription.go implements push delivery of move events over the node's
// WebSocket endpoint.
//
// Delivery is at-least-once and unordered relative to polling: the engine's
// dedup set collapses duplicates. The connection auto-reconnects with
// exponential backoff (1s → 30s max) and resubscribes after reconnecting;
// events emitted while disconnected are picked up by the poll path instead.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"intent-solver/pkg/types"
)

const (
	wsReadTimeout    = 90 * time.Second
	wsWriteTimeout   = 10 * time.Second
	maxReconnectWait = 30 * time.Second
	maxFailedRedials = 10 // consecutive failures before the subscription is declared lost
)

// Subscription is the ownership token for one live event subscription.
// Releasing it (Unsubscribe) cancels delivery and closes the connection.
// Done is closed if the subscription is lost for good (redial budget spent);
// Err then reports why.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() { s.cancel() }

// Done is closed when the subscription has permanently stopped delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, or nil if the subscription was released.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// SubscribeEvents opens a WebSocket subscription for moveEventType and calls
// handler for every delivered event. handler runs on the read goroutine and
// must not block.
func (c *Client) SubscribeEvents(ctx context.Context, moveEventType string, handler func(types.EventEnvelope)) (*Subscription, error) {
	if c.wsURL == "" {
		return nil, InvalidArgument("subscribe: no websocket url configured")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go c.runSubscription(subCtx, sub, moveEventType, handler)

	return sub, nil
}

func (c *Client) runSubscription(ctx context.Context, sub *Subscription, moveEventType string, handler func(types.EventEnvelope)) {
	backoff := time.Second
	failures := 0

	for {
		err := c.connectAndRead(ctx, moveEventType, handler)
		if ctx.Err() != nil {
			sub.fail(nil)
			return
		}

		failures++
		if failures >= maxFailedRedials {
			c.logger.Error("event subscription lost", "event_type", moveEventType, "error", err)
			sub.fail(Transient("subscription lost after %d attempts: %v", failures, err))
			return
		}

		c.logger.Warn("event stream disconnected, reconnecting",
			"event_type", moveEventType,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			sub.fail(nil)
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Type        string          `json:"type"`
			ParsedJSON  json.RawMessage `json:"parsedJson"`
			TimestampMs string          `json:"timestampMs"`
		} `json:"result"`
	} `json:"params"`
}

func (c *Client) connectAndRead(ctx context.Context, moveEventType string, handler func(types.EventEnvelope)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close the socket when ctx ends so the blocked read returns.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "suix_subscribeEvent",
		Params:  []any{map[string]string{"MoveEventType": moveEventType}},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.logger.Info("event stream connected", "event_type", moveEventType)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var note wsNotification
		if err := json.Unmarshal(msg, &note); err != nil {
			c.logger.Debug("ignoring non-json ws message")
			continue
		}
		if note.Method != "suix_subscribeEvent" || note.Params.Result.Type == "" {
			// Subscription confirmations and pings arrive on the same socket.
			continue
		}

		ts, _ := strconv.ParseInt(note.Params.Result.TimestampMs, 10, 64)
		handler(types.EventEnvelope{
			Type:       note.Params.Result.Type,
			ParsedJSON: note.Params.Result.ParsedJSON,
			Timestamp:  time.UnixMilli(ts),
		})
	}
}

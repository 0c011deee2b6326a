// parse.go interprets raw ledger JSON into typed records.
//
// Field encodings vary across RPC versions: u64s arrive as strings or
// numbers, balances as flat strings or as {"fields":{"value":"…"}}, and
// type names as bare strings or as {"name":"…"}. Every parser here accepts
// all observed shapes.
package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"intent-solver/pkg/types"
)

// ParseIntent extracts a typed Intent from an object snapshot. The input and
// output asset types come from the parameterised object type string.
func ParseIntent(snap *types.ObjectSnapshot) (*types.Intent, error) {
	if snap == nil {
		return nil, fmt.Errorf("parse intent: missing snapshot")
	}

	inType, outType, err := extractTypeParams(snap.Type)
	if err != nil {
		return nil, fmt.Errorf("parse intent %s: %w", snap.ID, err)
	}

	var fields struct {
		Owner           string          `json:"owner"`
		InputBalance    json.RawMessage `json:"input_balance"`
		MinOutputAmount json.RawMessage `json:"min_output_amount"`
		Deadline        json.RawMessage `json:"deadline"`
		Status          json.RawMessage `json:"status"`
		Solver          json.RawMessage `json:"solver"`
	}
	if err := json.Unmarshal(snap.Fields, &fields); err != nil {
		return nil, fmt.Errorf("parse intent %s: %w", snap.ID, err)
	}

	balance, err := parseU64(fields.InputBalance)
	if err != nil {
		return nil, fmt.Errorf("parse intent %s: input_balance: %w", snap.ID, err)
	}
	minOut, err := parseU64(fields.MinOutputAmount)
	if err != nil {
		return nil, fmt.Errorf("parse intent %s: min_output_amount: %w", snap.ID, err)
	}
	deadline, err := parseU64(fields.Deadline)
	if err != nil {
		return nil, fmt.Errorf("parse intent %s: deadline: %w", snap.ID, err)
	}
	status, err := parseU64(fields.Status)
	if err != nil {
		return nil, fmt.Errorf("parse intent %s: status: %w", snap.ID, err)
	}
	if status > uint64(types.StatusExpired) {
		return nil, fmt.Errorf("parse intent %s: unknown status %d", snap.ID, status)
	}

	return &types.Intent{
		ID:              snap.ID,
		Owner:           fields.Owner,
		InputType:       inType,
		OutputType:      outType,
		InputBalance:    balance,
		MinOutputAmount: minOut,
		DeadlineMs:      int64(deadline),
		Status:          types.IntentStatus(status),
		Solver:          parseOptionalAddress(fields.Solver),
	}, nil
}

// ParseConfig extracts the protocol configuration from its shared object.
func ParseConfig(snap *types.ObjectSnapshot) (*types.ProtocolConfig, error) {
	if snap == nil {
		return nil, fmt.Errorf("parse config: missing snapshot")
	}

	var fields struct {
		FeeBps       json.RawMessage `json:"fee_bps"`
		FeeRecipient string          `json:"fee_recipient"`
		Paused       bool            `json:"paused"`
	}
	if err := json.Unmarshal(snap.Fields, &fields); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", snap.ID, err)
	}

	feeBps, err := parseU64(fields.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: fee_bps: %w", snap.ID, err)
	}

	return &types.ProtocolConfig{
		ID:           snap.ID,
		FeeBps:       feeBps,
		FeeRecipient: fields.FeeRecipient,
		Paused:       fields.Paused,
	}, nil
}

// ParseEvent maps an event envelope onto one of the four intent events,
// keyed by the short event name at the end of the type string.
func ParseEvent(env types.EventEnvelope) (types.IntentEvent, error) {
	name := env.Type
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}

	var raw struct {
		IntentID        string          `json:"intent_id"`
		Owner           string          `json:"owner"`
		Solver          string          `json:"solver"`
		TriggeredBy     string          `json:"triggered_by"`
		InputType       json.RawMessage `json:"input_type"`
		OutputType      json.RawMessage `json:"output_type"`
		InputAmount     json.RawMessage `json:"input_amount"`
		OutputAmount    json.RawMessage `json:"output_amount"`
		MinOutputAmount json.RawMessage `json:"min_output_amount"`
		FeeAmount       json.RawMessage `json:"fee_amount"`
		RefundAmount    json.RawMessage `json:"refund_amount"`
		Deadline        json.RawMessage `json:"deadline"`
		ExecutionTime   json.RawMessage `json:"execution_time"`
	}
	if err := json.Unmarshal(env.ParsedJSON, &raw); err != nil {
		return nil, fmt.Errorf("parse event %s: %w", env.Type, err)
	}

	switch name {
	case "IntentCreated":
		inputAmount, err := parseU64(raw.InputAmount)
		if err != nil {
			return nil, fmt.Errorf("parse IntentCreated: input_amount: %w", err)
		}
		minOut, err := parseU64(raw.MinOutputAmount)
		if err != nil {
			return nil, fmt.Errorf("parse IntentCreated: min_output_amount: %w", err)
		}
		deadline, err := parseU64(raw.Deadline)
		if err != nil {
			return nil, fmt.Errorf("parse IntentCreated: deadline: %w", err)
		}
		return types.IntentCreatedEvent{
			IntentID:        raw.IntentID,
			Owner:           raw.Owner,
			InputType:       parseTypeName(raw.InputType),
			OutputType:      parseTypeName(raw.OutputType),
			InputAmount:     inputAmount,
			MinOutputAmount: minOut,
			DeadlineMs:      int64(deadline),
		}, nil

	case "IntentExecuted":
		inputAmount, _ := parseU64(raw.InputAmount)
		outputAmount, _ := parseU64(raw.OutputAmount)
		feeAmount, _ := parseU64(raw.FeeAmount)
		execTime, _ := parseU64(raw.ExecutionTime)
		return types.IntentExecutedEvent{
			IntentID:        raw.IntentID,
			Solver:          raw.Solver,
			InputAmount:     inputAmount,
			OutputAmount:    outputAmount,
			FeeAmount:       feeAmount,
			ExecutionTimeMs: int64(execTime),
		}, nil

	case "IntentCancelled":
		return types.IntentCancelledEvent{IntentID: raw.IntentID, Owner: raw.Owner}, nil

	case "IntentExpired":
		refund, _ := parseU64(raw.RefundAmount)
		return types.IntentExpiredEvent{
			IntentID:     raw.IntentID,
			Owner:        raw.Owner,
			TriggeredBy:  raw.TriggeredBy,
			RefundAmount: refund,
		}, nil

	default:
		return nil, fmt.Errorf("parse event: unknown type %q", env.Type)
	}
}

// parseU64 accepts "123", 123, and {"fields":{"value":"123"}}.
func parseU64(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseUint(s, 10, 64)
	}

	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var wrapped struct {
		Fields struct {
			Value string `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Fields.Value != "" {
		return strconv.ParseUint(wrapped.Fields.Value, 10, 64)
	}

	return 0, fmt.Errorf("unrecognised u64 encoding %s", string(raw))
}

// parseTypeName accepts "0x2::sui::SUI" and {"name":"0x2::sui::SUI"}.
func parseTypeName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var wrapped struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Name
	}
	return ""
}

// parseOptionalAddress accepts null, "0x…", and option-wrapped addresses.
func parseOptionalAddress(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var wrapped struct {
		Fields struct {
			Value string `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Fields.Value
	}
	return ""
}

// extractTypeParams pulls the two type arguments out of a parameterised
// object type such as "0xabc::intent::Intent<0x2::sui::SUI, 0xd::usdc::USDC>".
func extractTypeParams(objectType string) (inType, outType string, err error) {
	open := strings.Index(objectType, "<")
	if open < 0 || !strings.HasSuffix(objectType, ">") {
		return "", "", fmt.Errorf("type %q has no type parameters", objectType)
	}
	inner := objectType[open+1 : len(objectType)-1]

	// Split on the top-level comma only; nested generics keep their commas.
	depth := 0
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				inType = strings.TrimSpace(inner[:i])
				outType = strings.TrimSpace(inner[i+1:])
				if inType == "" || outType == "" {
					return "", "", fmt.Errorf("type %q has empty type parameter", objectType)
				}
				return inType, outType, nil
			}
		}
	}
	return "", "", fmt.Errorf("type %q has fewer than two type parameters", objectType)
}

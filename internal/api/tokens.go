// tokens.go maps human token aliases onto full on-chain asset types and
// handles raw↔human unit conversion. Unknown aliases pass through as raw
// type identifiers; unknown types default to 9 decimals.
package api

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"intent-solver/internal/config"
)

const defaultDecimals = 9

// TokenTable resolves aliases and decimal exponents. Populated once at
// startup, read-only after.
type TokenTable struct {
	aliases  map[string]string // upper-case alias → asset type
	decimals map[string]int    // asset type → decimal exponent
}

// NewTokenTable builds the table from configuration.
func NewTokenTable(tokens []config.TokenConfig) *TokenTable {
	t := &TokenTable{
		aliases:  make(map[string]string, len(tokens)),
		decimals: make(map[string]int, len(tokens)),
	}
	for _, tok := range tokens {
		t.aliases[strings.ToUpper(tok.Alias)] = tok.Type
		if tok.Decimals > 0 {
			t.decimals[tok.Type] = tok.Decimals
		}
	}
	return t
}

// Resolve maps an alias to its asset type; anything unrecognised passes
// through unchanged so callers can use raw type identifiers directly.
func (t *TokenTable) Resolve(aliasOrType string) string {
	if full, ok := t.aliases[strings.ToUpper(aliasOrType)]; ok {
		return full
	}
	return aliasOrType
}

// DecimalsFor returns the configured exponent for an asset type.
func (t *TokenTable) DecimalsFor(assetType string) int {
	if d, ok := t.decimals[assetType]; ok {
		return d
	}
	return defaultDecimals
}

// HumanToRaw converts a human amount to raw units, rounding half up.
func (t *TokenTable) HumanToRaw(amount decimal.Decimal, assetType string) uint64 {
	raw := amount.Shift(int32(t.DecimalsFor(assetType))).Round(0)
	if raw.Sign() < 0 {
		return 0
	}
	return uint64(raw.IntPart())
}

// RawToHuman converts raw units to a human amount.
func (t *TokenTable) RawToHuman(raw uint64, assetType string) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(t.DecimalsFor(assetType)))
}

// Aliases returns the alias table in deterministic order.
func (t *TokenTable) Aliases() []TokenAlias {
	out := make([]TokenAlias, 0, len(t.aliases))
	for alias, full := range t.aliases {
		out = append(out, TokenAlias{
			Alias:    alias,
			Type:     full,
			Decimals: t.DecimalsFor(full),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

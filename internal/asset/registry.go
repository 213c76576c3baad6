package asset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the native currency.
const NativeDecimals = 18

// Metadata describes how an asset is presented to users.
type Metadata struct {
	ID       ID
	Symbol   string
	Decimals int32
}

// Registry holds display metadata for the assets the vault knows about.
// Unknown assets are still accepted by the vault; they format with zero decimals.
type Registry struct {
	mu     sync.RWMutex
	assets map[ID]Metadata
}

// NewRegistry creates a registry seeded with the native currency.
func NewRegistry(nativeSymbol string) *Registry {
	if nativeSymbol == "" {
		nativeSymbol = "ETH"
	}
	r := &Registry{assets: make(map[ID]Metadata)}
	r.assets[Native] = Metadata{ID: Native, Symbol: nativeSymbol, Decimals: NativeDecimals}
	return r
}

// ParseRegistry builds a registry from a "SYMBOL:0xaddr:decimals" comma list.
func ParseRegistry(nativeSymbol, list string) (*Registry, error) {
	r := NewRegistry(nativeSymbol)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("asset entry %q: expected SYMBOL:address:decimals", entry)
		}
		id, err := Parse(parts[1])
		if err != nil {
			return nil, fmt.Errorf("asset entry %q: %w", entry, err)
		}
		decimals, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil || decimals < 0 {
			return nil, fmt.Errorf("asset entry %q: invalid decimals", entry)
		}
		r.Register(Metadata{ID: id, Symbol: strings.ToUpper(parts[0]), Decimals: int32(decimals)})
	}
	return r, nil
}

// Register adds or replaces metadata for an asset.
func (r *Registry) Register(meta Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[meta.ID] = meta
}

// Lookup returns metadata for id, if registered.
func (r *Registry) Lookup(id ID) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.assets[id]
	return meta, ok
}

// All returns registered metadata with native first, then by symbol.
func (r *Registry) All() []Metadata {
	r.mu.RLock()
	out := make([]Metadata, 0, len(r.assets))
	for _, meta := range r.assets {
		out = append(out, meta)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.IsNative() != out[j].ID.IsNative() {
			return out[i].ID.IsNative()
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Format renders a base-unit amount in whole units, e.g. 1500000 with 6
// decimals becomes "1.5".
func (r *Registry) Format(id ID, amount sdkmath.Uint) string {
	var decimals int32
	if meta, ok := r.Lookup(id); ok {
		decimals = meta.Decimals
	}
	return decimal.NewFromBigInt(amount.BigInt(), -decimals).String()
}

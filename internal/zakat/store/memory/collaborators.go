package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// AssetValue is one asset's contribution to the wealth figures.
type AssetValue struct {
	Total     decimal.Decimal
	Zakatable decimal.Decimal
}

// WealthAggregator is an in-memory implementation of the external wealth
// collaborator: it sums the configured values for a set of asset ids.
// Tests and dev mode mutate it with SetAsset to simulate market movement.
type WealthAggregator struct {
	mu     sync.Mutex
	assets map[string]AssetValue
}

func NewWealthAggregator() *WealthAggregator {
	return &WealthAggregator{assets: make(map[string]AssetValue)}
}

func (a *WealthAggregator) SetAsset(id string, total, zakatable decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assets[id] = AssetValue{Total: total, Zakatable: zakatable}
}

func (a *WealthAggregator) RemoveAsset(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.assets, id)
}

func (a *WealthAggregator) Snapshot(_ context.Context, assetIDs []string) (total, zakatable decimal.Decimal, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range assetIDs {
		v, ok := a.assets[id]
		if !ok {
			// Unknown assets contribute nothing; the asset service owns
			// their lifecycle, not this core.
			continue
		}
		total = total.Add(v.Total)
		zakatable = zakatable.Add(v.Zakatable)
	}
	return total, zakatable, nil
}

// StaticPriceSource serves Nisab thresholds from fixed per-gram prices.
// The fiqh gram weights are constants; only the prices are configuration.
type StaticPriceSource struct {
	GoldPricePerGram   decimal.Decimal
	SilverPricePerGram decimal.Decimal
}

// Nisab reference weights: 85 g of gold or 595 g of silver.
var (
	goldNisabGrams   = decimal.NewFromInt(85)
	silverNisabGrams = decimal.NewFromInt(595)
)

func (p *StaticPriceSource) NisabThreshold(_ context.Context, basis types.NisabBasis, _ string) (decimal.Decimal, error) {
	switch basis {
	case types.BasisGold:
		return goldNisabGrams.Mul(p.GoldPricePerGram), nil
	case types.BasisSilver:
		return silverNisabGrams.Mul(p.SilverPricePerGram), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown nisab basis %q", basis)
	}
}

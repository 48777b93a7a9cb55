package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// WealthAggregator supplies the wealth figures for a set of asset ids at
// the time of the call.  How values are derived (prices, conversion) is the
// asset service's concern, not this core's.
type WealthAggregator interface {
	Snapshot(ctx context.Context, assetIDs []string) (total, zakatable decimal.Decimal, err error)
}

// PriceSource supplies the current Nisab threshold for a basis and
// currency.  Once a Hawl starts the threshold is frozen on the record and
// this source is no longer consulted for it.
type PriceSource interface {
	NisabThreshold(ctx context.Context, basis types.NisabBasis, currency string) (decimal.Decimal, error)
}

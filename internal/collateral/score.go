package collateral

import (
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/shopspring/decimal"
)

// Score maps a total collateral value onto 0..100 using the tier table.
// It is monotonic in value and saturates at the top tier.
func Score(p config.CollateralPolicy, total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	var score int64
	for _, tier := range p.Tiers {
		if total.LessThan(decimal.NewFromInt(tier.MinValue)) {
			break
		}
		score = tier.Score
	}
	return score
}

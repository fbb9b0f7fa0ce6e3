// Package scoring aggregates the four sub-scores of a user into a credit
// profile: final score, risk tier and loan offer.
package scoring

import (
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
)

const bpsDenominator = 10000

// Inputs are the sub-scores (each 0..100) and the collateral value a
// profile is computed from.
type Inputs struct {
	OnChain         int64
	OffChain        int64
	Collateral      int64
	Historical      int64
	CollateralValue decimal.Decimal
}

func clampSubScore(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// FinalScore maps the weighted sub-scores onto the score band, rounding down.
func FinalScore(p config.EnginePolicy, in Inputs) int64 {
	weighted := p.OnChainWeight*clampSubScore(in.OnChain) +
		p.OffChainWeight*clampSubScore(in.OffChain) +
		p.CollateralWeight*clampSubScore(in.Collateral) +
		p.HistoricalWeight*clampSubScore(in.Historical)
	// weighted is the raw score scaled by 100
	return p.BandFloor + weighted*p.BandMultiplier/100
}

// Risk places a final score in its tier. Lower scores mean higher risk.
func Risk(t config.RiskThresholds, score int64) models.RiskLevel {
	switch {
	case score >= t.VeryLow:
		return models.RiskVeryLow
	case score >= t.Low:
		return models.RiskLow
	case score >= t.Medium:
		return models.RiskMedium
	case score >= t.High:
		return models.RiskHigh
	default:
		return models.RiskVeryHigh
	}
}

// OfferFor returns the offer row of a risk tier.
func OfferFor(o config.RiskOffers, risk models.RiskLevel) config.Offer {
	switch risk {
	case models.RiskVeryLow:
		return o.VeryLow
	case models.RiskLow:
		return o.Low
	case models.RiskMedium:
		return o.Medium
	case models.RiskHigh:
		return o.High
	default:
		return o.VeryHigh
	}
}

// MaxLoan is the tier's base loan plus its loan-to-value share of collateral.
func MaxLoan(offer config.Offer, collateralValue decimal.Decimal) decimal.Decimal {
	if collateralValue.IsNegative() {
		collateralValue = decimal.Zero
	}
	share := collateralValue.Mul(decimal.NewFromInt(offer.LTVBps)).Div(decimal.NewFromInt(bpsDenominator))
	return decimal.NewFromInt(offer.BaseLoan).Add(share)
}

// InterestRate discounts the tier rate by the collateral sub-score, never
// below the policy floor.
func InterestRate(p config.EnginePolicy, offer config.Offer, collateralScore int64) int64 {
	discount := clampSubScore(collateralScore) * p.DiscountBpsPerPoint
	if discount > p.MaxDiscountBps {
		discount = p.MaxDiscountBps
	}
	rate := offer.RateBps - discount
	if rate < p.MinRateBps {
		rate = p.MinRateBps
	}
	return rate
}

// Compute builds the score fields of a profile. Identical inputs always
// produce identical profiles; the caller sets user and time.
func Compute(p config.EnginePolicy, in Inputs) models.CreditProfile {
	final := FinalScore(p, in)
	risk := Risk(p.Thresholds, final)
	offer := OfferFor(p.Offers, risk)

	return models.CreditProfile{
		FinalScore:      final,
		OnChainScore:    clampSubScore(in.OnChain),
		OffChainScore:   clampSubScore(in.OffChain),
		CollateralScore: clampSubScore(in.Collateral),
		HistoricalScore: clampSubScore(in.Historical),
		RiskLevel:       risk,
		MaxLoanAmount:   MaxLoan(offer, in.CollateralValue),
		InterestRate:    InterestRate(p, offer, in.Collateral),
	}
}

package metrics

import (
	"math/big"

	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// saturate returns weight * min(x, ceiling) / ceiling.
func saturate(f config.Factor, x decimal.Decimal) decimal.Decimal {
	ceiling := decimal.NewFromInt(f.Ceiling)
	if x.IsNegative() {
		x = decimal.Zero
	}
	if x.GreaterThan(ceiling) {
		x = ceiling
	}
	return decimal.NewFromInt(f.Weight).Mul(x).Div(ceiling)
}

// OnChainScore is the bounded weighted sum of the saturated activity
// factors. Nil metrics score 0.
func OnChainScore(p config.OnChainPolicy, m *models.OnChainMetrics) int64 {
	if m == nil {
		return 0
	}

	total := decimal.Sum(
		saturate(p.Transactions, fromUint(m.TotalTransactions)),
		saturate(p.Volume, m.TotalVolume),
		saturate(p.AccountAge, fromUint(m.AccountAge)),
		saturate(p.Diversity, fromUint(m.UniqueContractsUsed)),
		saturate(p.Governance, fromUint(m.GovernanceParticipation)),
		saturate(p.Staking, m.StakingAmount.Add(m.LiquidityProvided)),
	)
	return clamp(total.Floor().IntPart())
}

// OffChainScore is the weighted average of the provider scores minus the
// debt-to-income penalty, floored at 0. Nil metrics score 0.
func OffChainScore(p config.OffChainPolicy, m *models.OffChainMetrics) int64 {
	if m == nil {
		return 0
	}

	weighted := decimal.Sum(
		weigh(p.SocialWeight, m.SocialScore),
		weigh(p.KYCWeight, m.KYCScore),
		weigh(p.EducationWeight, m.EducationScore),
		weigh(p.EmploymentWeight, m.EmploymentScore),
		weigh(p.IncomeWeight, m.IncomeScore),
	).Div(hundred)

	penalty := decimal.NewFromInt(int64(m.DebtToIncomeRatio)).
		Mul(decimal.NewFromInt(p.DebtPenaltyBps)).
		Div(decimal.NewFromInt(10000))

	return clamp(weighted.Sub(penalty).Floor().IntPart())
}

func weigh(weight int64, score uint8) decimal.Decimal {
	return decimal.NewFromInt(weight * int64(score))
}

func fromUint(x uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

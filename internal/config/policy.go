package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Policy is the scoring configuration table. Every constant that shapes a
// sub-score, the final band, the risk tiers or the loan offer lives here.
type Policy struct {
	Engine     EnginePolicy     `toml:"engine"`
	OnChain    OnChainPolicy    `toml:"on_chain"`
	OffChain   OffChainPolicy   `toml:"off_chain"`
	Collateral CollateralPolicy `toml:"collateral"`
	History    HistoryPolicy    `toml:"history"`
}

// EnginePolicy configures the final score aggregation. Weights are percents
// and must sum to 100.
type EnginePolicy struct {
	OnChainWeight    int64 `toml:"on_chain_weight"`
	OffChainWeight   int64 `toml:"off_chain_weight"`
	CollateralWeight int64 `toml:"collateral_weight"`
	HistoricalWeight int64 `toml:"historical_weight"`

	// finalScore = BandFloor + weightedRaw * BandMultiplier
	BandFloor      int64 `toml:"band_floor"`
	BandMultiplier int64 `toml:"band_multiplier"`

	ValidityWindowSecs int64 `toml:"validity_window_secs"`

	Thresholds RiskThresholds `toml:"thresholds"`
	Offers     RiskOffers     `toml:"offers"`

	// Interest discount earned per collateral sub-score point.
	DiscountBpsPerPoint int64 `toml:"discount_bps_per_point"`
	MaxDiscountBps      int64 `toml:"max_discount_bps"`
	MinRateBps          int64 `toml:"min_rate_bps"`
}

// RiskThresholds holds the minimum final score of each tier. Anything below
// High is VeryHigh.
type RiskThresholds struct {
	VeryLow int64 `toml:"very_low"`
	Low     int64 `toml:"low"`
	Medium  int64 `toml:"medium"`
	High    int64 `toml:"high"`
}

type RiskOffers struct {
	VeryLow  Offer `toml:"very_low"`
	Low      Offer `toml:"low"`
	Medium   Offer `toml:"medium"`
	High     Offer `toml:"high"`
	VeryHigh Offer `toml:"very_high"`
}

// Offer is the loan offer of a single risk tier.
type Offer struct {
	BaseLoan int64 `toml:"base_loan"`
	LTVBps   int64 `toml:"ltv_bps"`
	RateBps  int64 `toml:"rate_bps"`
}

// Factor saturates its input at Ceiling and contributes up to Weight points.
type Factor struct {
	Weight  int64 `toml:"weight"`
	Ceiling int64 `toml:"ceiling"`
}

type OnChainPolicy struct {
	Transactions Factor `toml:"transactions"`
	Volume       Factor `toml:"volume"`
	AccountAge   Factor `toml:"account_age"`
	Diversity    Factor `toml:"diversity"`
	Governance   Factor `toml:"governance"`
	Staking      Factor `toml:"staking"`
}

func (p OnChainPolicy) factors() []Factor {
	return []Factor{p.Transactions, p.Volume, p.AccountAge, p.Diversity, p.Governance, p.Staking}
}

type OffChainPolicy struct {
	SocialWeight     int64 `toml:"social_weight"`
	KYCWeight        int64 `toml:"kyc_weight"`
	EducationWeight  int64 `toml:"education_weight"`
	EmploymentWeight int64 `toml:"employment_weight"`
	IncomeWeight     int64 `toml:"income_weight"`
	// Points lost per point of debt-to-income ratio, in basis points.
	DebtPenaltyBps int64 `toml:"debt_penalty_bps"`
}

type CollateralPolicy struct {
	// Tiers are ordered by ascending MinValue. A positive total value earns
	// the score of the highest tier it reaches.
	Tiers []CollateralTier `toml:"tiers"`
}

type CollateralTier struct {
	MinValue int64 `toml:"min_value"`
	Score    int64 `toml:"score"`
}

type HistoryPolicy struct {
	// Points earned by a 100% repayment rate.
	RepaymentWeight  int64 `toml:"repayment_weight"`
	PointsPerLoan    int64 `toml:"points_per_loan"`
	MaxCountedLoans  int64 `toml:"max_counted_loans"`
	PointsPerDefault int64 `toml:"points_per_default"`
	// Penalty charged on default, as basis points of principal.
	DefaultPenaltyBps int64 `toml:"default_penalty_bps"`
}

// DefaultPolicy returns the documented default scoring table.
func DefaultPolicy() Policy {
	return Policy{
		Engine: EnginePolicy{
			OnChainWeight:      30,
			OffChainWeight:     25,
			CollateralWeight:   25,
			HistoricalWeight:   20,
			BandFloor:          300,
			BandMultiplier:     6,
			ValidityWindowSecs: 30 * 24 * 60 * 60,
			Thresholds: RiskThresholds{
				VeryLow: 750,
				Low:     650,
				Medium:  550,
				High:    450,
			},
			Offers: RiskOffers{
				VeryLow:  Offer{BaseLoan: 50000, LTVBps: 8000, RateBps: 500},
				Low:      Offer{BaseLoan: 25000, LTVBps: 7000, RateBps: 800},
				Medium:   Offer{BaseLoan: 10000, LTVBps: 6000, RateBps: 1200},
				High:     Offer{BaseLoan: 2500, LTVBps: 5000, RateBps: 1800},
				VeryHigh: Offer{BaseLoan: 500, LTVBps: 3000, RateBps: 2500},
			},
			DiscountBpsPerPoint: 2,
			MaxDiscountBps:      200,
			MinRateBps:          100,
		},
		OnChain: OnChainPolicy{
			Transactions: Factor{Weight: 25, Ceiling: 1000},
			Volume:       Factor{Weight: 20, Ceiling: 1000},
			AccountAge:   Factor{Weight: 20, Ceiling: 730},
			Diversity:    Factor{Weight: 15, Ceiling: 50},
			Governance:   Factor{Weight: 10, Ceiling: 20},
			Staking:      Factor{Weight: 10, Ceiling: 100},
		},
		OffChain: OffChainPolicy{
			SocialWeight:     15,
			KYCWeight:        25,
			EducationWeight:  10,
			EmploymentWeight: 25,
			IncomeWeight:     25,
			DebtPenaltyBps:   3000,
		},
		Collateral: CollateralPolicy{
			Tiers: []CollateralTier{
				{MinValue: 0, Score: 10},
				{MinValue: 100, Score: 25},
				{MinValue: 1000, Score: 50},
				{MinValue: 10000, Score: 75},
				{MinValue: 50000, Score: 90},
				{MinValue: 100000, Score: 100},
			},
		},
		History: HistoryPolicy{
			RepaymentWeight:   70,
			PointsPerLoan:     3,
			MaxCountedLoans:   10,
			PointsPerDefault:  15,
			DefaultPenaltyBps: 1000,
		},
	}
}

// LoadPolicy overlays the TOML file at path onto DefaultPolicy. An empty path
// yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the invariants the scoring formulas rely on.
func (p Policy) Validate() error {
	e := p.Engine
	if sum := e.OnChainWeight + e.OffChainWeight + e.CollateralWeight + e.HistoricalWeight; sum != 100 {
		return fmt.Errorf("engine weights sum to %d, want 100", sum)
	}
	if e.BandMultiplier <= 0 {
		return errors.New("band multiplier must be positive")
	}
	if e.ValidityWindowSecs <= 0 {
		return errors.New("validity window must be positive")
	}

	t := e.Thresholds
	if !(t.VeryLow > t.Low && t.Low > t.Medium && t.Medium > t.High) {
		return errors.New("risk thresholds must be strictly descending")
	}

	tiers := []Offer{e.Offers.VeryLow, e.Offers.Low, e.Offers.Medium, e.Offers.High, e.Offers.VeryHigh}
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		if cur.BaseLoan > prev.BaseLoan || cur.LTVBps > prev.LTVBps || cur.RateBps < prev.RateBps {
			return fmt.Errorf("offer table not monotonic at tier %d", i)
		}
	}
	if e.MinRateBps < 0 || e.MaxDiscountBps < 0 || e.DiscountBpsPerPoint < 0 {
		return errors.New("rate adjustments must be non-negative")
	}

	var onChain int64
	for _, f := range p.OnChain.factors() {
		if f.Ceiling <= 0 {
			return errors.New("on-chain ceilings must be positive")
		}
		onChain += f.Weight
	}
	if onChain != 100 {
		return fmt.Errorf("on-chain weights sum to %d, want 100", onChain)
	}

	o := p.OffChain
	if sum := o.SocialWeight + o.KYCWeight + o.EducationWeight + o.EmploymentWeight + o.IncomeWeight; sum != 100 {
		return fmt.Errorf("off-chain weights sum to %d, want 100", sum)
	}

	if len(p.Collateral.Tiers) == 0 {
		return errors.New("collateral tiers must not be empty")
	}
	for i, tier := range p.Collateral.Tiers {
		if tier.Score < 0 || tier.Score > 100 {
			return fmt.Errorf("collateral tier %d score out of range", i)
		}
		if i > 0 {
			prev := p.Collateral.Tiers[i-1]
			if tier.MinValue <= prev.MinValue || tier.Score < prev.Score {
				return fmt.Errorf("collateral tier %d not ascending", i)
			}
		}
	}

	if p.History.DefaultPenaltyBps < 0 || p.History.DefaultPenaltyBps > 10000 {
		return errors.New("default penalty must be within 0..10000 bps")
	}
	return nil
}

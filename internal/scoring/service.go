package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Registry is the identity gate of score computation.
type Registry interface {
	IsRegistered(ctx context.Context, user common.Address) (bool, error)
	IsVerified(ctx context.Context, user common.Address) (bool, error)
}

// MetricsSource supplies the on-chain and off-chain sub-scores.
type MetricsSource interface {
	OnChainSubScore(ctx context.Context, user common.Address) (int64, error)
	OffChainSubScore(ctx context.Context, user common.Address) (int64, error)
}

// CollateralSource supplies the collateral sub-score and the collateral value
// the loan offer is based on.
type CollateralSource interface {
	CalculateCollateralScore(ctx context.Context, user common.Address) (int64, error)
	GetTotalCollateralValue(ctx context.Context, user common.Address) (decimal.Decimal, error)
}

// HistorySource supplies the historical sub-score.
type HistorySource interface {
	CalculateHistoricalScore(ctx context.Context, user common.Address) (int64, error)
}

// Summary is the compact view of a profile shown to borrowers.
type Summary struct {
	User               string           `json:"user"`
	Score              int64            `json:"score"`
	RiskLevel          models.RiskLevel `json:"risk_level"`
	MaxLoanAmount      decimal.Decimal  `json:"max_loan_amount"`
	InterestRate       int64            `json:"interest_rate"`
	IsValid            bool             `json:"is_valid"`
	LastCalculatedTime time.Time        `json:"last_calculated_time"`
	Explanation        string           `json:"explanation,omitempty"`
}

// BatchResult is the outcome for one user of a batch computation. Exactly
// one of Profile and Err is set.
type BatchResult struct {
	User    common.Address        `json:"user"`
	Profile *models.CreditProfile `json:"profile,omitempty"`
	Err     error                 `json:"-"`
}

// Service is the credit scoring engine.
type Service interface {
	CalculateCreditScore(ctx context.Context, caller, user common.Address) (*models.CreditProfile, error)
	BatchCalculateScores(ctx context.Context, caller common.Address, users []common.Address) ([]BatchResult, error)

	GetCreditScore(ctx context.Context, user common.Address) (*models.CreditProfile, error)
	IsScoreValid(ctx context.Context, user common.Address) (bool, error)
	GetCreditSummary(ctx context.Context, user common.Address) (*Summary, error)
	GetScoreHistory(ctx context.Context, user common.Address, limit int) ([]*models.ScoreSnapshot, error)
}

type service struct {
	db         *gorm.DB
	repo       ProfileRepository
	registry   Registry
	metrics    MetricsSource
	collateral CollateralSource
	history    HistorySource
	access     access.Controller
	locks      *database.UserLocks
	clock      clockwork.Clock
	pub        events.Publisher
	policy     config.EnginePolicy
	log        *logrus.Entry
}

func NewService(db *gorm.DB, repo ProfileRepository, registry Registry, metrics MetricsSource,
	collateral CollateralSource, history HistorySource, ac access.Controller, locks *database.UserLocks,
	clock clockwork.Clock, pub events.Publisher, policy config.Policy, log *logrus.Entry) Service {
	return &service{
		db:         db,
		repo:       repo,
		registry:   registry,
		metrics:    metrics,
		collateral: collateral,
		history:    history,
		access:     ac,
		locks:      locks,
		clock:      clock,
		pub:        pub,
		policy:     policy.Engine,
		log:        log.WithField("component", "scoring"),
	}
}

// CalculateCreditScore recomputes user's profile. Users may score
// themselves; anyone else needs SCORER.
func (s *service) CalculateCreditScore(ctx context.Context, caller, user common.Address) (*models.CreditProfile, error) {
	if caller != user {
		if err := s.access.Require(ctx, caller, access.RoleScorer); err != nil {
			return nil, err
		}
	}
	return s.calculate(ctx, user)
}

// BatchCalculateScores computes every user independently. A failure for
// one user is reported in its result and does not stop the others.
func (s *service) BatchCalculateScores(ctx context.Context, caller common.Address, users []common.Address) ([]BatchResult, error) {
	if err := s.access.Require(ctx, caller, access.RoleScorer); err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(users))
	var failed int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{User: user, Err: err})
			failed++
			continue
		}
		profile, err := s.calculate(ctx, user)
		if err != nil {
			failed++
		}
		results = append(results, BatchResult{User: user, Profile: profile, Err: err})
	}

	s.log.WithFields(logrus.Fields{"users": len(users), "failed": failed}).Info("Batch score calculation finished")
	return results, nil
}

func (s *service) calculate(ctx context.Context, user common.Address) (*models.CreditProfile, error) {
	registered, err := s.registry.IsRegistered(ctx, user)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("calculate score %s: %w", user.Hex(), apperr.ErrNotRegistered)
	}
	verified, err := s.registry.IsVerified(ctx, user)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, fmt.Errorf("calculate score %s: %w", user.Hex(), apperr.ErrNotVerified)
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	in, err := s.inputs(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("calculate score %s: %w", user.Hex(), err)
	}

	profile := Compute(s.policy, in)
	profile.UserAddress = user.Hex()
	profile.LastCalculatedTime = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Save(ctx, &profile); err != nil {
			return err
		}
		return repo.AppendSnapshot(ctx, models.SnapshotOf(&profile))
	})
	if err != nil {
		return nil, fmt.Errorf("store score %s: %w", user.Hex(), err)
	}
	profile.IsValid = true

	s.log.WithFields(logrus.Fields{
		"user":        user.Hex(),
		"final_score": profile.FinalScore,
		"risk_level":  profile.RiskLevel.String(),
	}).Info("Credit score calculated")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventCreditScoreCalculated, user, profile.LastCalculatedTime, map[string]any{
		"score":      profile.FinalScore,
		"risk_level": profile.RiskLevel.String(),
	}))
	return &profile, nil
}

func (s *service) inputs(ctx context.Context, user common.Address) (Inputs, error) {
	var (
		in  Inputs
		err error
	)
	if in.OnChain, err = s.metrics.OnChainSubScore(ctx, user); err != nil {
		return Inputs{}, fmt.Errorf("on-chain sub-score: %w", err)
	}
	if in.OffChain, err = s.metrics.OffChainSubScore(ctx, user); err != nil {
		return Inputs{}, fmt.Errorf("off-chain sub-score: %w", err)
	}
	if in.Collateral, err = s.collateral.CalculateCollateralScore(ctx, user); err != nil {
		return Inputs{}, fmt.Errorf("collateral sub-score: %w", err)
	}
	if in.CollateralValue, err = s.collateral.GetTotalCollateralValue(ctx, user); err != nil {
		return Inputs{}, fmt.Errorf("collateral value: %w", err)
	}
	if in.Historical, err = s.history.CalculateHistoricalScore(ctx, user); err != nil {
		return Inputs{}, fmt.Errorf("historical sub-score: %w", err)
	}
	return in, nil
}

func (s *service) valid(p *models.CreditProfile) bool {
	window := time.Duration(s.policy.ValidityWindowSecs) * time.Second
	return s.clock.Since(p.LastCalculatedTime) <= window
}

func (s *service) GetCreditScore(ctx context.Context, user common.Address) (*models.CreditProfile, error) {
	profile, err := s.repo.Get(ctx, user.Hex())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("credit score %s: %w", user.Hex(), apperr.ErrNoScoreCalculated)
	}
	profile.IsValid = s.valid(profile)
	return profile, nil
}

func (s *service) IsScoreValid(ctx context.Context, user common.Address) (bool, error) {
	profile, err := s.repo.Get(ctx, user.Hex())
	if err != nil {
		return false, err
	}
	return profile != nil && s.valid(profile), nil
}

func (s *service) GetCreditSummary(ctx context.Context, user common.Address) (*Summary, error) {
	profile, err := s.GetCreditScore(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Summary{
		User:               profile.UserAddress,
		Score:              profile.FinalScore,
		RiskLevel:          profile.RiskLevel,
		MaxLoanAmount:      profile.MaxLoanAmount,
		InterestRate:       profile.InterestRate,
		IsValid:            profile.IsValid,
		LastCalculatedTime: profile.LastCalculatedTime,
	}, nil
}

func (s *service) GetScoreHistory(ctx context.Context, user common.Address, limit int) ([]*models.ScoreSnapshot, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListSnapshots(ctx, user.Hex(), limit)
}

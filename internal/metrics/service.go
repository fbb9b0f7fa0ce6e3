package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Registry is the identity gate the store consults.
type Registry interface {
	IsRegistered(ctx context.Context, user common.Address) (bool, error)
	IsVerified(ctx context.Context, user common.Address) (bool, error)
}

// Service stores on-chain and off-chain metrics and derives their
// sub-scores.
type Service interface {
	SetOnChainMetrics(ctx context.Context, caller, user common.Address, m *models.OnChainMetrics) error
	SetOffChainMetrics(ctx context.Context, caller, user common.Address, m *models.OffChainMetrics) error

	GetOnChainMetrics(ctx context.Context, user common.Address) (*models.OnChainMetrics, error)
	GetOffChainMetrics(ctx context.Context, user common.Address) (*models.OffChainMetrics, error)
	OnChainSubScore(ctx context.Context, user common.Address) (int64, error)
	OffChainSubScore(ctx context.Context, user common.Address) (int64, error)
	IsDataFresh(ctx context.Context, user common.Address, maxAgeDays int) (bool, error)
}

type service struct {
	db       *gorm.DB
	repo     MetricsRepository
	registry Registry
	access   access.Controller
	locks    *database.UserLocks
	clock    clockwork.Clock
	pub      events.Publisher
	onChain  config.OnChainPolicy
	offChain config.OffChainPolicy
	log      *logrus.Entry
}

func NewService(db *gorm.DB, repo MetricsRepository, registry Registry, ac access.Controller,
	locks *database.UserLocks, clock clockwork.Clock, pub events.Publisher, policy config.Policy, log *logrus.Entry) Service {
	return &service{
		db:       db,
		repo:     repo,
		registry: registry,
		access:   ac,
		locks:    locks,
		clock:    clock,
		pub:      pub,
		onChain:  policy.OnChain,
		offChain: policy.OffChain,
		log:      log.WithField("component", "metrics"),
	}
}

func (s *service) SetOnChainMetrics(ctx context.Context, caller, user common.Address, m *models.OnChainMetrics) error {
	if m == nil {
		return fmt.Errorf("%w: metrics required", apperr.ErrInvalidInput)
	}
	if m.TotalVolume.IsNegative() || m.AverageTransactionSize.IsNegative() ||
		m.LiquidityProvided.IsNegative() || m.StakingAmount.IsNegative() {
		return fmt.Errorf("%w: amounts must be non-negative", apperr.ErrInvalidInput)
	}
	if err := s.access.Require(ctx, caller, access.RoleAnalyzer); err != nil {
		return err
	}
	registered, err := s.registry.IsRegistered(ctx, user)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("set on-chain metrics %s: %w", user.Hex(), apperr.ErrNotRegistered)
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	record := *m
	record.UserAddress = user.Hex()
	if record.LastTransactionTime.IsZero() {
		record.LastTransactionTime = s.clock.Now()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).SaveOnChain(ctx, &record)
	})
	if err != nil {
		return fmt.Errorf("set on-chain metrics %s: %w", user.Hex(), err)
	}

	score := OnChainScore(s.onChain, &record)
	s.log.WithFields(logrus.Fields{"user": user.Hex(), "score": score}).Info("On-chain metrics updated")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventOnChainDataUpdated, user, s.clock.Now(), map[string]any{"score": score}))
	return nil
}

func (s *service) SetOffChainMetrics(ctx context.Context, caller, user common.Address, m *models.OffChainMetrics) error {
	if m == nil {
		return fmt.Errorf("%w: metrics required", apperr.ErrInvalidInput)
	}
	for name, v := range map[string]uint8{
		"social_score":         m.SocialScore,
		"kyc_score":            m.KYCScore,
		"education_score":      m.EducationScore,
		"employment_score":     m.EmploymentScore,
		"income_score":         m.IncomeScore,
		"debt_to_income_ratio": m.DebtToIncomeRatio,
	} {
		if v > 100 {
			return fmt.Errorf("%w: %s must be within 0-100", apperr.ErrInvalidInput, name)
		}
	}
	if err := s.access.Require(ctx, caller, access.RoleDataProvider); err != nil {
		return err
	}
	verified, err := s.registry.IsVerified(ctx, user)
	if err != nil {
		return err
	}
	if !verified {
		return fmt.Errorf("set off-chain metrics %s: %w", user.Hex(), apperr.ErrNotVerified)
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	record := *m
	record.UserAddress = user.Hex()
	if record.DataTimestamp.IsZero() {
		record.DataTimestamp = s.clock.Now()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).SaveOffChain(ctx, &record)
	})
	if err != nil {
		return fmt.Errorf("set off-chain metrics %s: %w", user.Hex(), err)
	}

	score := OffChainScore(s.offChain, &record)
	s.log.WithFields(logrus.Fields{"user": user.Hex(), "score": score}).Info("Off-chain metrics updated")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventOffChainDataUpdated, user, s.clock.Now(), map[string]any{
		"score":     score,
		"ipfs_hash": record.IPFSHash,
	}))
	return nil
}

func (s *service) GetOnChainMetrics(ctx context.Context, user common.Address) (*models.OnChainMetrics, error) {
	m, err := s.repo.GetOnChain(ctx, user.Hex())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("on-chain metrics %s: %w", user.Hex(), apperr.ErrNotFound)
	}
	return m, nil
}

func (s *service) GetOffChainMetrics(ctx context.Context, user common.Address) (*models.OffChainMetrics, error) {
	m, err := s.repo.GetOffChain(ctx, user.Hex())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("off-chain metrics %s: %w", user.Hex(), apperr.ErrNotFound)
	}
	return m, nil
}

// OnChainSubScore returns 0 for users without metrics.
func (s *service) OnChainSubScore(ctx context.Context, user common.Address) (int64, error) {
	m, err := s.repo.GetOnChain(ctx, user.Hex())
	if err != nil {
		return 0, err
	}
	return OnChainScore(s.onChain, m), nil
}

// OffChainSubScore returns 0 for users without metrics. Callers that need
// to tell "no data" from a zero score use GetOffChainMetrics.
func (s *service) OffChainSubScore(ctx context.Context, user common.Address) (int64, error) {
	m, err := s.repo.GetOffChain(ctx, user.Hex())
	if err != nil {
		return 0, err
	}
	return OffChainScore(s.offChain, m), nil
}

// maxFreshDays is the widest freshness window a time.Duration can hold;
// any age fits inside a wider one.
const maxFreshDays = math.MaxInt64 / int64(24*time.Hour)

// IsDataFresh reports whether off-chain data is at most maxAgeDays old.
func (s *service) IsDataFresh(ctx context.Context, user common.Address, maxAgeDays int) (bool, error) {
	if maxAgeDays < 0 {
		return false, fmt.Errorf("%w: max age must be non-negative", apperr.ErrInvalidInput)
	}
	m, err := s.repo.GetOffChain(ctx, user.Hex())
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	if int64(maxAgeDays) > maxFreshDays {
		return true, nil
	}
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	return s.clock.Since(m.DataTimestamp) <= maxAge, nil
}

package loan

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

// Registry is the identity gate loan records consult.
type Registry interface {
	IsRegistered(ctx context.Context, user common.Address) (bool, error)
}

// Service defines loan history ledger operations
type Service interface {
	RecordLoan(ctx context.Context, caller, user common.Address, amount decimal.Decimal, rateBps uint32, duration time.Duration) (uint64, error)
	RecordRepayment(ctx context.Context, caller, user common.Address, loanID uint64, repaid decimal.Decimal) error
	RecordDefault(ctx context.Context, caller, user common.Address, loanID uint64) error

	CalculateHistoricalScore(ctx context.Context, user common.Address) (int64, error)
	GetUserLoanStats(ctx context.Context, user common.Address) (Stats, error)
	GetUserLoanHistory(ctx context.Context, user common.Address) ([]*models.LoanRecord, error)
	GetLoan(ctx context.Context, loanID uint64) (*models.LoanRecord, error)
}

type service struct {
	db       *gorm.DB
	repo     LoanRepository
	registry Registry
	access   access.Controller
	locks    *database.UserLocks
	clock    clockwork.Clock
	pub      events.Publisher
	policy   config.HistoryPolicy
	log      *logrus.Entry
}

func NewService(db *gorm.DB, repo LoanRepository, registry Registry, ac access.Controller, locks *database.UserLocks,
	clock clockwork.Clock, pub events.Publisher, policy config.Policy, log *logrus.Entry) Service {
	return &service{
		db:       db,
		repo:     repo,
		registry: registry,
		access:   ac,
		locks:    locks,
		clock:    clock,
		pub:      pub,
		policy:   policy.History,
		log:      log.WithField("component", "loan"),
	}
}

func (s *service) RecordLoan(ctx context.Context, caller, user common.Address, amount decimal.Decimal, rateBps uint32, duration time.Duration) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: loan amount must be positive", apperr.ErrInvalidInput)
	}
	if duration < time.Second {
		return 0, fmt.Errorf("%w: loan duration must be at least one second", apperr.ErrInvalidInput)
	}
	if err := s.access.Require(ctx, caller, access.RoleLoanManager); err != nil {
		return 0, err
	}
	registered, err := s.registry.IsRegistered(ctx, user)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, fmt.Errorf("record loan %s: %w", user.Hex(), apperr.ErrNotRegistered)
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	now := s.clock.Now()
	record := &models.LoanRecord{
		UserAddress:   user.Hex(),
		Amount:        amount,
		InterestRate:  rateBps,
		Duration:      int64(duration / time.Second),
		StartTime:     now,
		RepaidAmount:  decimal.Zero,
		PenaltyAmount: decimal.Zero,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, record)
	})
	if err != nil {
		return 0, fmt.Errorf("record loan %s: %w", user.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{
		"user":     user.Hex(),
		"loan_id":  record.LoanID,
		"amount":   amount.String(),
		"rate_bps": rateBps,
	}).Info("Loan recorded")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventLoanRecorded, user, now, map[string]any{
		"loan_id":       record.LoanID,
		"amount":        amount.String(),
		"interest_rate": rateBps,
		"duration":      record.Duration,
	}))
	return record.LoanID, nil
}

// openLoan loads loanID for user inside tx and checks it is still open.
func openLoan(ctx context.Context, repo LoanRepository, user common.Address, loanID uint64) (*models.LoanRecord, error) {
	record, err := repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserAddress != user.Hex() {
		return nil, apperr.ErrLoanNotFound
	}
	if record.IsClosed() {
		return nil, apperr.ErrAlreadyClosed
	}
	return record, nil
}

func (s *service) RecordRepayment(ctx context.Context, caller, user common.Address, loanID uint64, repaid decimal.Decimal) error {
	if repaid.IsNegative() {
		return fmt.Errorf("%w: repaid amount cannot be negative", apperr.ErrInvalidInput)
	}
	if err := s.access.Require(ctx, caller, access.RoleLoanManager); err != nil {
		return err
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := openLoan(ctx, repo, user, loanID)
		if err != nil {
			return err
		}
		record.IsRepaid = true
		record.EndTime = &now
		record.RepaidAmount = repaid
		return repo.Close(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("record repayment %d: %w", loanID, err)
	}

	s.log.WithFields(logrus.Fields{"user": user.Hex(), "loan_id": loanID, "repaid": repaid.String()}).Info("Loan repaid")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventLoanRepaid, user, now, map[string]any{
		"loan_id": loanID,
		"amount":  repaid.String(),
	}))
	return nil
}

func (s *service) RecordDefault(ctx context.Context, caller, user common.Address, loanID uint64) error {
	if err := s.access.Require(ctx, caller, access.RoleLoanManager); err != nil {
		return err
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	now := s.clock.Now()
	var penalty decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := openLoan(ctx, repo, user, loanID)
		if err != nil {
			return err
		}
		if now.Before(record.DueTime()) {
			return fmt.Errorf("%w: due at %s", apperr.ErrNotYetDue, record.DueTime().UTC().Format(time.RFC3339))
		}
		penalty = Penalty(s.policy, record.Amount)
		record.IsDefaulted = true
		record.EndTime = &now
		record.PenaltyAmount = penalty
		return repo.Close(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("record default %d: %w", loanID, err)
	}

	s.log.WithFields(logrus.Fields{"user": user.Hex(), "loan_id": loanID, "penalty": penalty.String()}).Warn("Loan defaulted")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventLoanDefaulted, user, now, map[string]any{
		"loan_id": loanID,
		"penalty": penalty.String(),
	}))
	return nil
}

func (s *service) CalculateHistoricalScore(ctx context.Context, user common.Address) (int64, error) {
	st, err := s.GetUserLoanStats(ctx, user)
	if err != nil {
		return 0, err
	}
	return HistoricalScore(s.policy, st), nil
}

func (s *service) GetUserLoanStats(ctx context.Context, user common.Address) (Stats, error) {
	loans, err := s.repo.ListByUser(ctx, user.Hex())
	if err != nil {
		return Stats{}, err
	}
	return Summarize(loans), nil
}

func (s *service) GetUserLoanHistory(ctx context.Context, user common.Address) ([]*models.LoanRecord, error) {
	return s.repo.ListByUser(ctx, user.Hex())
}

func (s *service) GetLoan(ctx context.Context, loanID uint64) (*models.LoanRecord, error) {
	record, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("loan %d: %w", loanID, apperr.ErrLoanNotFound)
	}
	return record, nil
}

package collateral

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/huudong03uet/credit-scoring/internal/oracle"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxThresholdBps is the largest accepted liquidation threshold.
const MaxThresholdBps = 10000

// Registry is the identity gate deposits consult.
type Registry interface {
	IsRegistered(ctx context.Context, user common.Address) (bool, error)
}

// Service defines collateral ledger operations
type Service interface {
	AddSupportedToken(ctx context.Context, caller, tok common.Address, thresholdBps uint16) error
	ListSupportedTokens(ctx context.Context) ([]*models.SupportedToken, error)

	DepositCollateral(ctx context.Context, caller, tok common.Address, amount decimal.Decimal) (*models.Collateral, error)
	WithdrawCollateral(ctx context.Context, caller common.Address, index uint64) (*models.Collateral, error)

	CalculateCollateralScore(ctx context.Context, user common.Address) (int64, error)
	GetTotalCollateralValue(ctx context.Context, user common.Address) (decimal.Decimal, error)
	GetUserCollaterals(ctx context.Context, user common.Address) ([]*models.Collateral, error)
	GetCollateral(ctx context.Context, user common.Address, index uint64) (*models.Collateral, error)
}

type service struct {
	db       *gorm.DB
	repo     CollateralRepository
	ledger   token.Ledger
	oracle   oracle.PriceOracle
	registry Registry
	access   access.Controller
	locks    *database.UserLocks
	clock    clockwork.Clock
	pub      events.Publisher
	policy   config.CollateralPolicy
	vault    common.Address
	log      *logrus.Entry
}

// NewService creates a collateral ledger whose deposits are held by vault
// in the token ledger.
func NewService(db *gorm.DB, repo CollateralRepository, ledger token.Ledger, priceOracle oracle.PriceOracle,
	registry Registry, ac access.Controller, locks *database.UserLocks, clock clockwork.Clock,
	pub events.Publisher, policy config.Policy, vault common.Address, log *logrus.Entry) Service {
	return &service{
		db:       db,
		repo:     repo,
		ledger:   ledger,
		oracle:   priceOracle,
		registry: registry,
		access:   ac,
		locks:    locks,
		clock:    clock,
		pub:      pub,
		policy:   policy.Collateral,
		vault:    vault,
		log:      log.WithField("component", "collateral"),
	}
}

func (s *service) AddSupportedToken(ctx context.Context, caller, tok common.Address, thresholdBps uint16) error {
	if thresholdBps > MaxThresholdBps {
		return fmt.Errorf("%w: liquidation threshold %d exceeds %d bps", apperr.ErrInvalidInput, thresholdBps, MaxThresholdBps)
	}
	if err := s.access.Require(ctx, caller, access.RoleAdmin); err != nil {
		return err
	}

	err := s.repo.UpsertSupportedToken(ctx, &models.SupportedToken{
		TokenAddress:         tok.Hex(),
		LiquidationThreshold: thresholdBps,
	})
	if err != nil {
		return fmt.Errorf("add supported token %s: %w", tok.Hex(), err)
	}
	s.log.WithFields(logrus.Fields{"token": tok.Hex(), "threshold_bps": thresholdBps}).Info("Supported token set")
	return nil
}

func (s *service) ListSupportedTokens(ctx context.Context) ([]*models.SupportedToken, error) {
	return s.repo.ListSupportedTokens(ctx)
}

func (s *service) DepositCollateral(ctx context.Context, caller, tok common.Address, amount decimal.Decimal) (*models.Collateral, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", apperr.ErrInvalidInput)
	}
	registered, err := s.registry.IsRegistered(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("deposit %s: %w", caller.Hex(), apperr.ErrNotRegistered)
	}
	supported, err := s.repo.GetSupportedToken(ctx, tok.Hex())
	if err != nil {
		return nil, err
	}
	if supported == nil {
		return nil, fmt.Errorf("deposit %s: %w", tok.Hex(), apperr.ErrTokenNotSupported)
	}

	price, err := s.oracle.Price(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("deposit %s: %w", tok.Hex(), err)
	}

	unlock := s.locks.Lock(caller)
	defer unlock()

	now := s.clock.Now()
	slot := &models.Collateral{
		UserAddress:          caller.Hex(),
		TokenAddress:         tok.Hex(),
		Amount:               amount,
		Value:                amount.Mul(price),
		LiquidationThreshold: supported.LiquidationThreshold,
		IsActive:             true,
		DepositTime:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		repo := s.repo.WithTx(tx)

		before, err := ledger.BalanceOf(ctx, tok, s.vault)
		if err != nil {
			return err
		}
		if tok == token.NativeToken {
			err = ledger.Transfer(ctx, tok, caller, s.vault, amount)
		} else {
			err = ledger.TransferFrom(ctx, tok, s.vault, caller, s.vault, amount)
		}
		if err != nil {
			return translate(err)
		}
		after, err := ledger.BalanceOf(ctx, tok, s.vault)
		if err != nil {
			return err
		}
		if received := after.Sub(before); !received.Equal(amount) {
			return fmt.Errorf("%w: vault received %s, expected %s", apperr.ErrTransferFailed, received, amount)
		}

		index, err := repo.NextSlotIndex(ctx, caller.Hex())
		if err != nil {
			return err
		}
		slot.SlotIndex = index
		return repo.Create(ctx, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("deposit %s: %w", caller.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{
		"user":   caller.Hex(),
		"token":  tok.Hex(),
		"index":  slot.SlotIndex,
		"amount": amount.String(),
		"value":  slot.Value.String(),
	}).Info("Collateral deposited")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventCollateralDeposited, caller, now, map[string]any{
		"token":  tok.Hex(),
		"index":  slot.SlotIndex,
		"amount": amount.String(),
		"value":  slot.Value.String(),
	}))
	return slot, nil
}

func (s *service) WithdrawCollateral(ctx context.Context, caller common.Address, index uint64) (*models.Collateral, error) {
	unlock := s.locks.Lock(caller)
	defer unlock()

	now := s.clock.Now()
	var slot *models.Collateral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		slot, err = repo.GetSlot(ctx, caller.Hex(), index)
		if err != nil {
			return err
		}
		if slot == nil {
			return apperr.ErrInvalidIndex
		}
		if !slot.IsActive {
			return apperr.ErrNotActive
		}

		slot.WithdrawTime = &now
		if err := repo.Deactivate(ctx, slot); err != nil {
			return err
		}

		tok := common.HexToAddress(slot.TokenAddress)
		if err := s.ledger.WithTx(tx).Transfer(ctx, tok, s.vault, caller, slot.Amount); err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw %s[%d]: %w", caller.Hex(), index, err)
	}

	s.log.WithFields(logrus.Fields{
		"user":   caller.Hex(),
		"token":  slot.TokenAddress,
		"index":  index,
		"amount": slot.Amount.String(),
	}).Info("Collateral withdrawn")
	events.Emit(ctx, s.pub, s.log, events.New(events.EventCollateralWithdrawn, caller, now, map[string]any{
		"token":  slot.TokenAddress,
		"index":  index,
		"amount": slot.Amount.String(),
	}))
	return slot, nil
}

func (s *service) CalculateCollateralScore(ctx context.Context, user common.Address) (int64, error) {
	total, err := s.GetTotalCollateralValue(ctx, user)
	if err != nil {
		return 0, err
	}
	return Score(s.policy, total), nil
}

// GetTotalCollateralValue sums the deposit-time value of active slots.
func (s *service) GetTotalCollateralValue(ctx context.Context, user common.Address) (decimal.Decimal, error) {
	slots, err := s.repo.ListActive(ctx, user.Hex())
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, slot := range slots {
		total = total.Add(slot.Value)
	}
	return total, nil
}

func (s *service) GetUserCollaterals(ctx context.Context, user common.Address) ([]*models.Collateral, error) {
	return s.repo.ListActive(ctx, user.Hex())
}

func (s *service) GetCollateral(ctx context.Context, user common.Address, index uint64) (*models.Collateral, error) {
	slot, err := s.repo.GetSlot(ctx, user.Hex(), index)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("collateral %s[%d]: %w", user.Hex(), index, apperr.ErrInvalidIndex)
	}
	return slot, nil
}

// translate maps token ledger failures onto ErrTransferFailed.
func translate(err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, apperr.ErrNotFound):
		return fmt.Errorf("%w: %v", apperr.ErrTransferFailed, err)
	}
	return err
}

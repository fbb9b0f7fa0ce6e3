package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PriceListener is told when an administrator changes a token price.
type PriceListener interface {
	PriceChanged(ctx context.Context, token common.Address)
}

// Service defines token service operations
type Service interface {
	CreateToken(ctx context.Context, caller common.Address, token *models.Token) error
	SetPrice(ctx context.Context, caller, token common.Address, price decimal.Decimal) error
	Mint(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error
	Approve(ctx context.Context, caller, token, spender common.Address, amount decimal.Decimal) error
	Transfer(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error

	GetToken(ctx context.Context, token common.Address) (*models.Token, error)
	ListTokens(ctx context.Context, limit, offset int) ([]*models.Token, error)
	BalanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error)
}

type service struct {
	db        *gorm.DB
	repo      TokenRepository
	ledger    Ledger
	access    access.Controller
	locks     *database.UserLocks
	clock     clockwork.Clock
	listeners []PriceListener
	log       *logrus.Entry
}

// NewService creates a new token service
func NewService(db *gorm.DB, repo TokenRepository, ledger Ledger, ac access.Controller, locks *database.UserLocks,
	clock clockwork.Clock, log *logrus.Entry, listeners ...PriceListener) Service {
	return &service{
		db:        db,
		repo:      repo,
		ledger:    ledger,
		access:    ac,
		locks:     locks,
		clock:     clock,
		listeners: listeners,
		log:       log.WithField("component", "token"),
	}
}

func (s *service) CreateToken(ctx context.Context, caller common.Address, token *models.Token) error {
	if token == nil || !common.IsHexAddress(token.Address) || strings.TrimSpace(token.Symbol) == "" {
		return fmt.Errorf("%w: address and symbol are required", apperr.ErrInvalidInput)
	}
	if token.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", apperr.ErrInvalidInput)
	}
	if err := s.access.Require(ctx, caller, access.RoleAdmin); err != nil {
		return err
	}

	token.Address = common.HexToAddress(token.Address).Hex()
	if token.Name == "" {
		token.Name = token.Symbol
	}
	if token.Decimals == 0 {
		token.Decimals = 18
	}
	token.TotalSupply = decimal.Zero
	if !token.Price.IsZero() {
		now := s.clock.Now()
		token.PriceUpdatedAt = &now
	}

	existing, err := s.repo.GetByAddress(ctx, token.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: token %s already exists", apperr.ErrInvalidInput, token.Address)
	}

	if err := s.repo.Create(ctx, token); err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	s.log.WithFields(logrus.Fields{"token": token.Address, "symbol": token.Symbol}).Info("Token created")
	return nil
}

func (s *service) SetPrice(ctx context.Context, caller, token common.Address, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", apperr.ErrInvalidInput)
	}
	if err := s.access.Require(ctx, caller, access.RoleAdmin); err != nil {
		return err
	}

	if err := s.repo.UpdatePrice(ctx, token.Hex(), price, s.clock.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("set price %s: %w", token.Hex(), apperr.ErrNotFound)
		}
		return fmt.Errorf("set price %s: %w", token.Hex(), err)
	}

	for _, l := range s.listeners {
		l.PriceChanged(ctx, token)
	}
	s.log.WithFields(logrus.Fields{"token": token.Hex(), "price": price.String()}).Info("Token price updated")
	return nil
}

func (s *service) Mint(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error {
	if err := s.access.Require(ctx, caller, access.RoleAdmin); err != nil {
		return err
	}

	unlock := s.locks.Lock(to)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).Mint(ctx, token, to, amount)
	})
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	return nil
}

func (s *service) Approve(ctx context.Context, caller, token, spender common.Address, amount decimal.Decimal) error {
	unlock := s.locks.Lock(caller)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).Approve(ctx, token, caller, spender, amount)
	})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func (s *service) Transfer(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error {
	unlock := s.locks.Lock(caller)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ledger.WithTx(tx).Transfer(ctx, token, caller, to, amount)
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", translate(err))
	}
	return nil
}

func (s *service) GetToken(ctx context.Context, token common.Address) (*models.Token, error) {
	t, err := s.repo.GetByAddress(ctx, token.Hex())
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("token %s: %w", token.Hex(), apperr.ErrNotFound)
	}
	return t, nil
}

func (s *service) ListTokens(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *service) BalanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error) {
	return s.ledger.BalanceOf(ctx, token, account)
}

func (s *service) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	return s.ledger.Allowance(ctx, token, owner, spender)
}

// translate maps ledger shortfalls onto the transfer failure surfaced to callers.
func translate(err error) error {
	if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInsufficientAllowance) {
		return fmt.Errorf("%w: %v", apperr.ErrTransferFailed, err)
	}
	return err
}

package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NativeToken is the sentinel address of the chain's native asset.
var NativeToken = common.Address{}

var ErrInsufficientBalance = errors.New("insufficient balance")

var ErrInsufficientAllowance = errors.New("insufficient allowance")

// Ledger is an ERC20-equivalent balance book. A ledger bound to a
// transaction with WithTx commits or rolls back with it.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	BalanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error)
	Approve(ctx context.Context, token, owner, spender common.Address, amount decimal.Decimal) error
	Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount decimal.Decimal) error
	Mint(ctx context.Context, token, to common.Address, amount decimal.Decimal) error
}

type ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{db: tx}
}

// forUpdate row-locks balance reads where the dialect supports it.
func (l *ledger) forUpdate(q *gorm.DB) *gorm.DB {
	return database.ForUpdate(q)
}

func (l *ledger) balanceRow(ctx context.Context, token, account common.Address) (*models.TokenBalance, error) {
	var row models.TokenBalance
	err := l.forUpdate(l.db.WithContext(ctx)).
		Where("token_address = ? AND account = ?", token.Hex(), account.Hex()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.TokenBalance{
				TokenAddress: token.Hex(),
				Account:      account.Hex(),
				Balance:      decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return &row, nil
}

func (l *ledger) allowanceRow(ctx context.Context, token, owner, spender common.Address) (*models.TokenAllowance, error) {
	var row models.TokenAllowance
	err := l.forUpdate(l.db.WithContext(ctx)).
		Where("token_address = ? AND owner = ? AND spender = ?", token.Hex(), owner.Hex(), spender.Hex()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.TokenAllowance{
				TokenAddress: token.Hex(),
				Owner:        owner.Hex(),
				Spender:      spender.Hex(),
				Amount:       decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return &row, nil
}

func (l *ledger) requireToken(ctx context.Context, token common.Address) (*models.Token, error) {
	var t models.Token
	err := l.db.WithContext(ctx).Where("address = ?", token.Hex()).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token %s", apperr.ErrNotFound, token.Hex())
		}
		return nil, err
	}
	return &t, nil
}

func (l *ledger) BalanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error) {
	row, err := l.balanceRow(ctx, token, account)
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}

func (l *ledger) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	row, err := l.allowanceRow(ctx, token, owner, spender)
	if err != nil {
		return decimal.Zero, err
	}
	return row.Amount, nil
}

func (l *ledger) Approve(ctx context.Context, token, owner, spender common.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: allowance cannot be negative", apperr.ErrInvalidInput)
	}
	if _, err := l.requireToken(ctx, token); err != nil {
		return err
	}
	row, err := l.allowanceRow(ctx, token, owner, spender)
	if err != nil {
		return err
	}
	row.Amount = amount
	return l.db.WithContext(ctx).Save(row).Error
}

func (l *ledger) Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", apperr.ErrInvalidInput)
	}
	if _, err := l.requireToken(ctx, token); err != nil {
		return err
	}
	return l.move(ctx, token, from, to, amount)
}

func (l *ledger) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", apperr.ErrInvalidInput)
	}
	if _, err := l.requireToken(ctx, token); err != nil {
		return err
	}

	allowance, err := l.allowanceRow(ctx, token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Amount.LessThan(amount) {
		return fmt.Errorf("%w: %s approved %s, need %s", ErrInsufficientAllowance,
			from.Hex(), allowance.Amount, amount)
	}
	allowance.Amount = allowance.Amount.Sub(amount)
	if err := l.db.WithContext(ctx).Save(allowance).Error; err != nil {
		return err
	}

	return l.move(ctx, token, from, to, amount)
}

func (l *ledger) move(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	src, err := l.balanceRow(ctx, token, from)
	if err != nil {
		return err
	}
	if src.Balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, from.Hex(), src.Balance, amount)
	}
	if from == to {
		return nil
	}

	dst, err := l.balanceRow(ctx, token, to)
	if err != nil {
		return err
	}

	src.Balance = src.Balance.Sub(amount)
	dst.Balance = dst.Balance.Add(amount)

	if err := l.db.WithContext(ctx).Save(src).Error; err != nil {
		return err
	}
	return l.db.WithContext(ctx).Save(dst).Error
}

// Mint creates supply out of thin air. It backs the test faucet.
func (l *ledger) Mint(ctx context.Context, token, to common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: mint amount must be positive", apperr.ErrInvalidInput)
	}
	t, err := l.requireToken(ctx, token)
	if err != nil {
		return err
	}

	dst, err := l.balanceRow(ctx, token, to)
	if err != nil {
		return err
	}
	dst.Balance = dst.Balance.Add(amount)
	if err := l.db.WithContext(ctx).Save(dst).Error; err != nil {
		return err
	}

	return l.db.WithContext(ctx).Model(t).Update("total_supply", t.TotalSupply.Add(amount)).Error
}

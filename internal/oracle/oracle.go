// Package oracle prices collateral assets.
package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/shopspring/decimal"
)

// PriceOracle returns the unit price of a token. Implementations return
// apperr.ErrOracleUnavailable when they have no usable price.
type PriceOracle interface {
	Price(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// TokenOracle reads the administrator-managed price column of the token table.
type TokenOracle struct {
	repo token.TokenRepository
}

func NewTokenOracle(repo token.TokenRepository) *TokenOracle {
	return &TokenOracle{repo: repo}
}

func (o *TokenOracle) Price(ctx context.Context, tok common.Address) (decimal.Decimal, error) {
	t, err := o.repo.GetByAddress(ctx, tok.Hex())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", apperr.ErrOracleUnavailable, err)
	}
	if t == nil || !t.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", apperr.ErrOracleUnavailable, tok.Hex())
	}
	return t.Price, nil
}

// Static is a fixed price table. Tokens without an entry are unpriced.
type Static map[common.Address]decimal.Decimal

func (s Static) Price(_ context.Context, tok common.Address) (decimal.Decimal, error) {
	p, ok := s[tok]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", apperr.ErrOracleUnavailable, tok.Hex())
	}
	return p, nil
}

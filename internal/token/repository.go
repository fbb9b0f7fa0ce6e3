package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TokenRepository defines the interface for token data operations
type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	GetByAddress(ctx context.Context, address string) (*models.Token, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.Token, error)
	List(ctx context.Context, limit, offset int) ([]*models.Token, error)
	UpdatePrice(ctx context.Context, address string, price decimal.Decimal, at time.Time) error
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository instance
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create creates a new token
func (r *tokenRepository) Create(ctx context.Context, token *models.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}
	return r.db.WithContext(ctx).Create(token).Error
}

// GetByAddress retrieves a token by address
func (r *tokenRepository) GetByAddress(ctx context.Context, address string) (*models.Token, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("address cannot be empty")
	}

	var token models.Token
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// GetBySymbol retrieves a token by symbol
func (r *tokenRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Token, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol cannot be empty")
	}

	var token models.Token
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// List retrieves tokens with pagination
func (r *tokenRepository) List(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	var tokens []*models.Token
	err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&tokens).Error
	return tokens, err
}

// UpdatePrice sets the oracle price of a token
func (r *tokenRepository) UpdatePrice(ctx context.Context, address string, price decimal.Decimal, at time.Time) error {
	if price.IsNegative() {
		return errors.New("price cannot be negative")
	}

	res := r.db.WithContext(ctx).Model(&models.Token{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"price":            price,
			"price_updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package collateral

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollateralRepository defines the interface for collateral data operations
type CollateralRepository interface {
	WithTx(tx *gorm.DB) CollateralRepository

	UpsertSupportedToken(ctx context.Context, token *models.SupportedToken) error
	GetSupportedToken(ctx context.Context, address string) (*models.SupportedToken, error)
	ListSupportedTokens(ctx context.Context) ([]*models.SupportedToken, error)

	NextSlotIndex(ctx context.Context, user string) (uint64, error)
	Create(ctx context.Context, c *models.Collateral) error
	Deactivate(ctx context.Context, c *models.Collateral) error
	GetSlot(ctx context.Context, user string, index uint64) (*models.Collateral, error)
	ListActive(ctx context.Context, user string) ([]*models.Collateral, error)
}

type collateralRepository struct {
	db *gorm.DB
}

// NewCollateralRepository creates a new collateral repository instance
func NewCollateralRepository(db *gorm.DB) CollateralRepository {
	return &collateralRepository{db: db}
}

func (r *collateralRepository) WithTx(tx *gorm.DB) CollateralRepository {
	return &collateralRepository{db: tx}
}

// UpsertSupportedToken inserts a supported token or replaces its threshold
func (r *collateralRepository) UpsertSupportedToken(ctx context.Context, token *models.SupportedToken) error {
	if token == nil {
		return errors.New("supported token cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"liquidation_threshold", "updated_at"}),
	}).Create(token).Error
}

// GetSupportedToken retrieves a supported token by address
func (r *collateralRepository) GetSupportedToken(ctx context.Context, address string) (*models.SupportedToken, error) {
	var token models.SupportedToken
	err := r.db.WithContext(ctx).Where("token_address = ?", address).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *collateralRepository) ListSupportedTokens(ctx context.Context) ([]*models.SupportedToken, error) {
	var tokens []*models.SupportedToken
	err := r.db.WithContext(ctx).Order("token_address").Find(&tokens).Error
	return tokens, err
}

// NextSlotIndex returns the index the user's next deposit will occupy
func (r *collateralRepository) NextSlotIndex(ctx context.Context, user string) (uint64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Collateral{}).
		Where("user_address = ?", user).
		Count(&count).Error
	return uint64(count), err
}

// Create inserts a collateral slot
func (r *collateralRepository) Create(ctx context.Context, c *models.Collateral) error {
	if c == nil {
		return errors.New("collateral cannot be nil")
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// Deactivate marks an active slot withdrawn. It returns ErrNotActive when
// the row was already inactive, whatever c says.
func (r *collateralRepository) Deactivate(ctx context.Context, c *models.Collateral) error {
	if c == nil {
		return errors.New("collateral cannot be nil")
	}
	res := r.db.WithContext(ctx).Model(&models.Collateral{}).
		Where("id = ? AND is_active = ?", c.ID, true).
		Updates(map[string]interface{}{"is_active": false, "withdraw_time": c.WithdrawTime})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotActive
	}
	c.IsActive = false
	return nil
}

// GetSlot retrieves a user's slot by its stable index, row-locked inside a
// transaction
func (r *collateralRepository) GetSlot(ctx context.Context, user string, index uint64) (*models.Collateral, error) {
	var c models.Collateral
	err := database.ForUpdate(r.db.WithContext(ctx)).
		Where("user_address = ? AND slot_index = ?", user, index).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListActive returns the user's active slots ordered by index
func (r *collateralRepository) ListActive(ctx context.Context, user string) ([]*models.Collateral, error) {
	var slots []*models.Collateral
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND is_active = ?", user, true).
		Order("slot_index").
		Find(&slots).Error
	return slots, err
}

package identity

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository interface defines user profile database operations
type ProfileRepository interface {
	WithTx(tx *gorm.DB) ProfileRepository
	Create(ctx context.Context, profile *models.UserProfile) error
	Update(ctx context.Context, profile *models.UserProfile) error
	GetByAddress(ctx context.Context, address string) (*models.UserProfile, error)
	GetByDID(ctx context.Context, did string) (*models.UserProfile, error)
	ListVerified(ctx context.Context) ([]*models.UserProfile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) WithTx(tx *gorm.DB) ProfileRepository {
	return &profileRepository{db: tx}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) Update(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

// GetByAddress returns nil when no profile exists for address
func (r *profileRepository) GetByAddress(ctx context.Context, address string) (*models.UserProfile, error) {
	if address == "" {
		return nil, errors.New("address cannot be empty")
	}

	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByDID returns nil when did is unused
func (r *profileRepository) GetByDID(ctx context.Context, did string) (*models.UserProfile, error) {
	if did == "" {
		return nil, errors.New("did cannot be empty")
	}

	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("did = ?", did).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) ListVerified(ctx context.Context) ([]*models.UserProfile, error) {
	var profiles []*models.UserProfile
	err := r.db.WithContext(ctx).
		Where("is_verified = ? AND is_active = ?", true, true).
		Order("id ASC").
		Find(&profiles).Error
	return profiles, err
}

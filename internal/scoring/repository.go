package scoring

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository stores the current credit profile of each user and the
// append-only history of every computation.
type ProfileRepository interface {
	WithTx(tx *gorm.DB) ProfileRepository
	Save(ctx context.Context, profile *models.CreditProfile) error
	Get(ctx context.Context, user string) (*models.CreditProfile, error)
	AppendSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error
	ListSnapshots(ctx context.Context, user string, limit int) ([]*models.ScoreSnapshot, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) WithTx(tx *gorm.DB) ProfileRepository {
	return &profileRepository{db: tx}
}

// Save upserts the profile keyed by user address
func (r *profileRepository) Save(ctx context.Context, profile *models.CreditProfile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(profile).Error
}

func (r *profileRepository) Get(ctx context.Context, user string) (*models.CreditProfile, error) {
	var profile models.CreditProfile
	err := r.db.WithContext(ctx).Where("user_address = ?", user).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) AppendSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot cannot be nil")
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// ListSnapshots returns the newest snapshots first
func (r *profileRepository) ListSnapshots(ctx context.Context, user string, limit int) ([]*models.ScoreSnapshot, error) {
	var snapshots []*models.ScoreSnapshot
	err := r.db.WithContext(ctx).
		Where("user_address = ?", user).
		Order("id DESC").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}

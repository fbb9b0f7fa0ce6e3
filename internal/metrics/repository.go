package metrics

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricsRepository interface defines metrics database operations
type MetricsRepository interface {
	WithTx(tx *gorm.DB) MetricsRepository
	SaveOnChain(ctx context.Context, m *models.OnChainMetrics) error
	SaveOffChain(ctx context.Context, m *models.OffChainMetrics) error
	GetOnChain(ctx context.Context, user string) (*models.OnChainMetrics, error)
	GetOffChain(ctx context.Context, user string) (*models.OffChainMetrics, error)
}

type metricsRepository struct {
	db *gorm.DB
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *gorm.DB) MetricsRepository {
	return &metricsRepository{db: db}
}

func (r *metricsRepository) WithTx(tx *gorm.DB) MetricsRepository {
	return &metricsRepository{db: tx}
}

// SaveOnChain overwrites the user's on-chain metrics wholesale
func (r *metricsRepository) SaveOnChain(ctx context.Context, m *models.OnChainMetrics) error {
	if m == nil {
		return errors.New("metrics cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

// SaveOffChain overwrites the user's off-chain metrics wholesale
func (r *metricsRepository) SaveOffChain(ctx context.Context, m *models.OffChainMetrics) error {
	if m == nil {
		return errors.New("metrics cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

func (r *metricsRepository) GetOnChain(ctx context.Context, user string) (*models.OnChainMetrics, error) {
	var m models.OnChainMetrics
	err := r.db.WithContext(ctx).Where("user_address = ?", user).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *metricsRepository) GetOffChain(ctx context.Context, user string) (*models.OffChainMetrics, error) {
	var m models.OffChainMetrics
	err := r.db.WithContext(ctx).Where("user_address = ?", user).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

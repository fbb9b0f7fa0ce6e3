package access

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository interface defines role grant database operations
type RoleRepository interface {
	Grant(ctx context.Context, grant *models.RoleGrant) (bool, error)
	Revoke(ctx context.Context, account, role string) (bool, error)
	Has(ctx context.Context, account, role string) (bool, error)
	ListByAccount(ctx context.Context, account string) ([]*models.RoleGrant, error)
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// Grant inserts the grant unless it already exists. It reports whether a row
// was created.
func (r *roleRepository) Grant(ctx context.Context, grant *models.RoleGrant) (bool, error) {
	if grant == nil {
		return false, errors.New("grant cannot be nil")
	}
	if grant.Account == "" || grant.Role == "" {
		return false, errors.New("account and role cannot be empty")
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(grant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *roleRepository) Revoke(ctx context.Context, account, role string) (bool, error) {
	if account == "" || role == "" {
		return false, errors.New("account and role cannot be empty")
	}

	res := r.db.WithContext(ctx).
		Where("account = ? AND role = ?", account, role).
		Delete(&models.RoleGrant{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *roleRepository) Has(ctx context.Context, account, role string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoleGrant{}).
		Where("account = ? AND role = ?", account, role).
		Count(&count).Error
	return count > 0, err
}

func (r *roleRepository) ListByAccount(ctx context.Context, account string) ([]*models.RoleGrant, error) {
	if account == "" {
		return nil, errors.New("account cannot be empty")
	}

	var grants []*models.RoleGrant
	err := r.db.WithContext(ctx).
		Where("account = ?", account).
		Order("role ASC").
		Find(&grants).Error
	return grants, err
}

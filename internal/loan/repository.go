package loan

import (
	"context"
	"errors"

	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"gorm.io/gorm"
)

// LoanRepository defines the interface for loan record operations
type LoanRepository interface {
	WithTx(tx *gorm.DB) LoanRepository
	Create(ctx context.Context, loan *models.LoanRecord) error
	Close(ctx context.Context, loan *models.LoanRecord) error
	GetByID(ctx context.Context, id uint64) (*models.LoanRecord, error)
	ListByUser(ctx context.Context, user string) ([]*models.LoanRecord, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository instance
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) WithTx(tx *gorm.DB) LoanRepository {
	return &loanRepository{db: tx}
}

// Create inserts a loan; the database assigns LoanID
func (r *loanRepository) Create(ctx context.Context, loan *models.LoanRecord) error {
	if loan == nil {
		return errors.New("loan cannot be nil")
	}
	return r.db.WithContext(ctx).Create(loan).Error
}

// Close writes the outcome of a loan that is still open in storage. It
// returns ErrAlreadyClosed when the row was closed by another writer.
func (r *loanRepository) Close(ctx context.Context, loan *models.LoanRecord) error {
	if loan == nil {
		return errors.New("loan cannot be nil")
	}
	res := r.db.WithContext(ctx).Model(&models.LoanRecord{}).
		Where("loan_id = ? AND is_repaid = ? AND is_defaulted = ?", loan.LoanID, false, false).
		Updates(map[string]interface{}{
			"is_repaid":      loan.IsRepaid,
			"is_defaulted":   loan.IsDefaulted,
			"end_time":       loan.EndTime,
			"repaid_amount":  loan.RepaidAmount,
			"penalty_amount": loan.PenaltyAmount,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrAlreadyClosed
	}
	return nil
}

// GetByID retrieves a loan by its id, row-locked inside a transaction
func (r *loanRepository) GetByID(ctx context.Context, id uint64) (*models.LoanRecord, error) {
	var loan models.LoanRecord
	err := database.ForUpdate(r.db.WithContext(ctx)).Where("loan_id = ?", id).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

// ListByUser returns a user's loans in the order they were recorded
func (r *loanRepository) ListByUser(ctx context.Context, user string) ([]*models.LoanRecord, error) {
	var loans []*models.LoanRecord
	err := r.db.WithContext(ctx).
		Where("user_address = ?", user).
		Order("loan_id").
		Find(&loans).Error
	return loans, err
}

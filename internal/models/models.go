package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserProfile is a registered identity
type UserProfile struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Address          string    `json:"address" gorm:"uniqueIndex;not null;size:42"`
	DID              string    `json:"did" gorm:"column:did;uniqueIndex;not null;size:255"`
	IsVerified       bool      `json:"is_verified" gorm:"not null"`
	IsActive         bool      `json:"is_active" gorm:"not null"`
	RegistrationTime time.Time `json:"registration_time"`
	LastUpdateTime   time.Time `json:"last_update_time"`
	ProfileHash      string    `json:"profile_hash" gorm:"size:66"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the table name for UserProfile model
func (UserProfile) TableName() string {
	return "user_profiles"
}

// BeforeCreate hook to validate profile data
func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if len(u.Address) != 42 || u.DID == "" {
		return gorm.ErrInvalidData
	}
	return nil
}

// OnChainMetrics holds behavioural activity for a user. AccountAge is in days.
type OnChainMetrics struct {
	UserAddress             string          `json:"user_address" gorm:"primaryKey;size:42"`
	TotalTransactions       uint64          `json:"total_transactions"`
	TotalVolume             decimal.Decimal `json:"total_volume" gorm:"type:decimal(36,18)"`
	AverageTransactionSize  decimal.Decimal `json:"average_transaction_size" gorm:"type:decimal(36,18)"`
	LiquidityProvided       decimal.Decimal `json:"liquidity_provided" gorm:"type:decimal(36,18)"`
	StakingAmount           decimal.Decimal `json:"staking_amount" gorm:"type:decimal(36,18)"`
	GovernanceParticipation uint64          `json:"governance_participation"`
	ContractInteractions    uint64          `json:"contract_interactions"`
	UniqueContractsUsed     uint64          `json:"unique_contracts_used"`
	AccountAge              uint64          `json:"account_age"`
	LastTransactionTime     time.Time       `json:"last_transaction_time"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// TableName returns the table name for OnChainMetrics model
func (OnChainMetrics) TableName() string {
	return "on_chain_metrics"
}

// OffChainMetrics holds provider-supplied data on a 0-100 scale.
type OffChainMetrics struct {
	UserAddress       string    `json:"user_address" gorm:"primaryKey;size:42"`
	SocialScore       uint8     `json:"social_score"`
	KYCScore          uint8     `json:"kyc_score" gorm:"column:kyc_score"`
	EducationScore    uint8     `json:"education_score"`
	EmploymentScore   uint8     `json:"employment_score"`
	IncomeScore       uint8     `json:"income_score"`
	DebtToIncomeRatio uint8     `json:"debt_to_income_ratio"`
	IPFSHash          string    `json:"ipfs_hash" gorm:"column:ipfs_hash;size:128"`
	DataTimestamp     time.Time `json:"data_timestamp"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for OffChainMetrics model
func (OffChainMetrics) TableName() string {
	return "off_chain_metrics"
}

// SupportedToken is a collateral asset accepted by the ledger
type SupportedToken struct {
	TokenAddress         string    `json:"token_address" gorm:"primaryKey;size:42"`
	LiquidationThreshold uint16    `json:"liquidation_threshold"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName returns the table name for SupportedToken model
func (SupportedToken) TableName() string {
	return "supported_tokens"
}

// Collateral is one deposit slot. SlotIndex is stable for the slot's
// lifetime and slots are never removed.
type Collateral struct {
	ID                   uint            `json:"-" gorm:"primaryKey"`
	UserAddress          string          `json:"user_address" gorm:"not null;size:42;uniqueIndex:idx_collateral_slot"`
	SlotIndex            uint64          `json:"index" gorm:"not null;uniqueIndex:idx_collateral_slot"`
	TokenAddress         string          `json:"token_address" gorm:"not null;size:42"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
	Value                decimal.Decimal `json:"value" gorm:"type:decimal(36,18);not null"`
	LiquidationThreshold uint16          `json:"liquidation_threshold"`
	IsActive             bool            `json:"is_active" gorm:"not null"`
	DepositTime          time.Time       `json:"deposit_time"`
	WithdrawTime         *time.Time      `json:"withdraw_time,omitempty"`
}

// TableName returns the table name for Collateral model
func (Collateral) TableName() string {
	return "collaterals"
}

// BeforeCreate hook to validate collateral data
func (c *Collateral) BeforeCreate(tx *gorm.DB) error {
	if !c.Amount.IsPositive() {
		return gorm.ErrInvalidData
	}
	return nil
}

// LoanRecord is a single loan. LoanID is assigned by the database.
type LoanRecord struct {
	LoanID        uint64          `json:"loan_id" gorm:"primaryKey;autoIncrement;column:loan_id"`
	UserAddress   string          `json:"user_address" gorm:"not null;size:42;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
	InterestRate  uint32          `json:"interest_rate"`
	Duration      int64           `json:"duration"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       *time.Time      `json:"end_time,omitempty"`
	IsRepaid      bool            `json:"is_repaid" gorm:"not null"`
	IsDefaulted   bool            `json:"is_defaulted" gorm:"not null"`
	RepaidAmount  decimal.Decimal `json:"repaid_amount" gorm:"type:decimal(36,18)"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(36,18)"`
}

// TableName returns the table name for LoanRecord model
func (LoanRecord) TableName() string {
	return "loan_records"
}

// DueTime is the earliest moment the loan may be marked defaulted.
func (l *LoanRecord) DueTime() time.Time {
	return l.StartTime.Add(time.Duration(l.Duration) * time.Second)
}

func (l *LoanRecord) IsClosed() bool {
	return l.IsRepaid || l.IsDefaulted
}

// CreditProfile is the latest computed score of a user. IsValid is derived
// at read time and never persisted.
type CreditProfile struct {
	UserAddress        string          `json:"user_address" gorm:"primaryKey;size:42"`
	FinalScore         int64           `json:"final_score"`
	OnChainScore       int64           `json:"on_chain_score"`
	OffChainScore      int64           `json:"off_chain_score"`
	CollateralScore    int64           `json:"collateral_score"`
	HistoricalScore    int64           `json:"historical_score"`
	RiskLevel          RiskLevel       `json:"risk_level"`
	MaxLoanAmount      decimal.Decimal `json:"max_loan_amount" gorm:"type:decimal(36,18)"`
	InterestRate       int64           `json:"interest_rate"`
	LastCalculatedTime time.Time       `json:"last_calculated_time"`
	IsValid            bool            `json:"is_valid" gorm:"-"`
}

// TableName returns the table name for CreditProfile model
func (CreditProfile) TableName() string {
	return "credit_profiles"
}

// ScoreSnapshot is an append-only record of every computed profile.
type ScoreSnapshot struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	UserAddress     string          `json:"user_address" gorm:"not null;size:42;index:idx_snapshot_user_time"`
	CalculatedAt    time.Time       `json:"calculated_at" gorm:"index:idx_snapshot_user_time"`
	FinalScore      int64           `json:"final_score"`
	OnChainScore    int64           `json:"on_chain_score"`
	OffChainScore   int64           `json:"off_chain_score"`
	CollateralScore int64           `json:"collateral_score"`
	HistoricalScore int64           `json:"historical_score"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	MaxLoanAmount   decimal.Decimal `json:"max_loan_amount" gorm:"type:decimal(36,18)"`
	InterestRate    int64           `json:"interest_rate"`
}

// TableName returns the table name for ScoreSnapshot model
func (ScoreSnapshot) TableName() string {
	return "score_snapshots"
}

// SnapshotOf copies a profile into a history entry.
func SnapshotOf(p *CreditProfile) *ScoreSnapshot {
	return &ScoreSnapshot{
		UserAddress:     p.UserAddress,
		CalculatedAt:    p.LastCalculatedTime,
		FinalScore:      p.FinalScore,
		OnChainScore:    p.OnChainScore,
		OffChainScore:   p.OffChainScore,
		CollateralScore: p.CollateralScore,
		HistoricalScore: p.HistoricalScore,
		RiskLevel:       p.RiskLevel,
		MaxLoanAmount:   p.MaxLoanAmount,
		InterestRate:    p.InterestRate,
	}
}

// RoleGrant records that Account holds Role
type RoleGrant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Account   string    `json:"account" gorm:"not null;size:42;uniqueIndex:idx_role_grant"`
	Role      string    `json:"role" gorm:"not null;size:32;uniqueIndex:idx_role_grant"`
	GrantedBy string    `json:"granted_by" gorm:"size:42"`
	GrantedAt time.Time `json:"granted_at"`
}

// TableName returns the table name for RoleGrant model
func (RoleGrant) TableName() string {
	return "role_grants"
}

// Token represents an ERC-20 style asset held in the internal ledger. The
// zero address denotes the native asset. A zero Price means no oracle price.
type Token struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	Address        string          `json:"address" gorm:"uniqueIndex;not null;size:42"`
	Symbol         string          `json:"symbol" gorm:"not null;size:20;index"`
	Name           string          `json:"name" gorm:"not null;size:100"`
	Decimals       uint8           `json:"decimals" gorm:"not null"`
	TotalSupply    decimal.Decimal `json:"total_supply" gorm:"type:decimal(36,18);column:total_supply"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(36,18);column:price"`
	PriceUpdatedAt *time.Time      `json:"price_updated_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName returns the table name for Token model
func (Token) TableName() string {
	return "tokens"
}

// BeforeCreate hook to validate token data
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if len(t.Address) != 42 {
		return gorm.ErrInvalidData
	}
	if t.Symbol == "" || t.Name == "" {
		return gorm.ErrInvalidData
	}
	return nil
}

type TokenBalance struct {
	ID           uint            `json:"-" gorm:"primaryKey"`
	TokenAddress string          `json:"token_address" gorm:"not null;size:42;uniqueIndex:idx_token_balance"`
	Account      string          `json:"account" gorm:"not null;size:42;uniqueIndex:idx_token_balance"`
	Balance      decimal.Decimal `json:"balance" gorm:"type:decimal(36,18);not null"`
}

func (TokenBalance) TableName() string {
	return "token_balances"
}

type TokenAllowance struct {
	ID           uint            `json:"-" gorm:"primaryKey"`
	TokenAddress string          `json:"token_address" gorm:"not null;size:42;uniqueIndex:idx_token_allowance"`
	Owner        string          `json:"owner" gorm:"not null;size:42;uniqueIndex:idx_token_allowance"`
	Spender      string          `json:"spender" gorm:"not null;size:42;uniqueIndex:idx_token_allowance"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
}

func (TokenAllowance) TableName() string {
	return "token_allowances"
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&UserProfile{},
		&OnChainMetrics{},
		&OffChainMetrics{},
		&SupportedToken{},
		&Collateral{},
		&LoanRecord{},
		&CreditProfile{},
		&ScoreSnapshot{},
		&RoleGrant{},
		&Token{},
		&TokenBalance{},
		&TokenAllowance{},
	}
}

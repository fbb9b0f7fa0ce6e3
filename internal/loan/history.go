package loan

import (
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
)

// Stats summarizes a user's loan history. RepaymentRate is the percentage
// of closed loans that were repaid, 0 when none are closed.
type Stats struct {
	Total         int64           `json:"total_loans"`
	Repaid        int64           `json:"repaid_loans"`
	Defaulted     int64           `json:"defaulted_loans"`
	Active        int64           `json:"active_loans"`
	RepaymentRate int64           `json:"repayment_rate"`
	TotalRepaid   decimal.Decimal `json:"total_repaid"`
}

// Summarize computes Stats over loans.
func Summarize(loans []*models.LoanRecord) Stats {
	st := Stats{TotalRepaid: decimal.Zero}
	for _, l := range loans {
		st.Total++
		switch {
		case l.IsRepaid:
			st.Repaid++
			st.TotalRepaid = st.TotalRepaid.Add(l.RepaidAmount)
		case l.IsDefaulted:
			st.Defaulted++
		default:
			st.Active++
		}
	}
	if closed := st.Repaid + st.Defaulted; closed > 0 {
		st.RepaymentRate = st.Repaid * 100 / closed
	}
	return st
}

// HistoricalScore rates a loan history on 0..100: the repayment rate
// scaled to RepaymentWeight, plus a capped bonus per repaid loan, minus a
// penalty per default. No closed loans scores 0.
func HistoricalScore(p config.HistoryPolicy, st Stats) int64 {
	if st.Repaid+st.Defaulted == 0 {
		return 0
	}
	counted := st.Repaid
	if counted > p.MaxCountedLoans {
		counted = p.MaxCountedLoans
	}
	score := st.RepaymentRate*p.RepaymentWeight/100 + counted*p.PointsPerLoan - st.Defaulted*p.PointsPerDefault
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// Penalty is the charge recorded against a defaulted principal.
func Penalty(p config.HistoryPolicy, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(p.DefaultPenaltyBps)).Div(decimal.NewFromInt(10000))
}

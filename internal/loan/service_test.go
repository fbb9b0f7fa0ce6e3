package loan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/database/dbtest"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

const thirtyDays = 30 * 24 * time.Hour

type stubRegistry map[common.Address]bool

func (r stubRegistry) IsRegistered(_ context.Context, user common.Address) (bool, error) {
	return r[user], nil
}

type LoanServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clockwork.FakeClock
	service  Service
	received chan events.Event

	manager common.Address
	alice   common.Address
	bob     common.Address
	carol   common.Address
}

func (s *LoanServiceTestSuite) SetupTest() {
	db := dbtest.New(s.T())
	log := logrus.NewEntry(logrus.New())
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	s.T().Cleanup(cancel)
	s.ctx = ctx

	admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
	s.manager = common.HexToAddress("0x00000000000000000000000000000000000001a0")
	s.alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	s.bob = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	s.carol = common.HexToAddress("0x00000000000000000000000000000000000000c0")

	ac := access.NewController(access.NewRoleRepository(db), s.clock, events.Nop{}, log)
	s.Require().NoError(ac.Seed(ctx, []common.Address{admin}))
	s.Require().NoError(ac.Grant(ctx, admin, s.manager, access.RoleLoanManager))

	bus := events.NewBus(log)
	s.received = make(chan events.Event, 32)
	s.Require().NoError(bus.Subscribe(ctx, func(e events.Event) { s.received <- e }))

	s.service = NewService(db, NewLoanRepository(db), stubRegistry{s.alice: true, s.bob: true}, ac,
		database.NewUserLocks(), s.clock, bus, config.DefaultPolicy(), log)
}

func (s *LoanServiceTestSuite) record(user common.Address, amount int64, d time.Duration) uint64 {
	id, err := s.service.RecordLoan(s.ctx, s.manager, user, decimal.NewFromInt(amount), 500, d)
	s.Require().NoError(err)
	return id
}

func (s *LoanServiceTestSuite) TestRecordLoanAssignsIDs() {
	first := s.record(s.alice, 1000, thirtyDays)
	second := s.record(s.bob, 500, thirtyDays)
	s.Greater(second, first)

	select {
	case e := <-s.received:
		s.Equal(events.EventLoanRecorded, e.Type)
		s.Equal(first, e.Payload["loan_id"])
	case <-time.After(time.Second):
		s.Fail("LoanRecorded not emitted")
	}

	loan, err := s.service.GetLoan(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(s.alice.Hex(), loan.UserAddress)
	s.Equal(int64(2592000), loan.Duration)
	s.Nil(loan.EndTime)
	s.False(loan.IsClosed())
}

func (s *LoanServiceTestSuite) TestRecordLoanRejections() {
	_, err := s.service.RecordLoan(s.ctx, s.alice, s.alice, decimal.NewFromInt(1), 500, thirtyDays)
	s.ErrorIs(err, apperr.ErrUnauthorized)

	_, err = s.service.RecordLoan(s.ctx, s.manager, s.carol, decimal.NewFromInt(1), 500, thirtyDays)
	s.ErrorIs(err, apperr.ErrNotRegistered)

	_, err = s.service.RecordLoan(s.ctx, s.manager, s.alice, decimal.Zero, 500, thirtyDays)
	s.ErrorIs(err, apperr.ErrInvalidInput)

	_, err = s.service.RecordLoan(s.ctx, s.manager, s.alice, decimal.NewFromInt(1), 500, 0)
	s.ErrorIs(err, apperr.ErrInvalidInput)

	_, err = s.service.GetLoan(s.ctx, 42)
	s.ErrorIs(err, apperr.ErrLoanNotFound)
}

func (s *LoanServiceTestSuite) TestThirtyDayLoanRepaid() {
	id := s.record(s.alice, 1000, thirtyDays)
	s.Require().NoError(s.service.RecordRepayment(s.ctx, s.manager, s.alice, id, decimal.NewFromInt(1050)))

	stats, err := s.service.GetUserLoanStats(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Total)
	s.Equal(int64(0), stats.Defaulted)
	s.Equal(int64(100), stats.RepaymentRate)
	s.True(stats.TotalRepaid.Equal(decimal.NewFromInt(1050)))

	score, err := s.service.CalculateHistoricalScore(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(int64(73), score)

	loan, err := s.service.GetLoan(s.ctx, id)
	s.Require().NoError(err)
	s.True(loan.IsRepaid)
	s.NotNil(loan.EndTime)

	err = s.service.RecordRepayment(s.ctx, s.manager, s.alice, id, decimal.NewFromInt(1))
	s.ErrorIs(err, apperr.ErrAlreadyClosed)
	err = s.service.RecordDefault(s.ctx, s.manager, s.alice, id)
	s.ErrorIs(err, apperr.ErrAlreadyClosed)
}

func (s *LoanServiceTestSuite) TestDefaultOnlyAfterDue() {
	id := s.record(s.alice, 1000, thirtyDays)

	err := s.service.RecordDefault(s.ctx, s.manager, s.alice, id)
	s.ErrorIs(err, apperr.ErrNotYetDue)

	s.clock.Advance(thirtyDays - time.Second)
	err = s.service.RecordDefault(s.ctx, s.manager, s.alice, id)
	s.ErrorIs(err, apperr.ErrNotYetDue)

	s.clock.Advance(time.Second)
	s.Require().NoError(s.service.RecordDefault(s.ctx, s.manager, s.alice, id))

	loan, err := s.service.GetLoan(s.ctx, id)
	s.Require().NoError(err)
	s.True(loan.IsDefaulted)
	s.False(loan.IsRepaid)
	s.True(loan.PenaltyAmount.Equal(decimal.NewFromInt(100)))

	err = s.service.RecordDefault(s.ctx, s.manager, s.alice, id)
	s.ErrorIs(err, apperr.ErrAlreadyClosed)

	stats, err := s.service.GetUserLoanStats(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Defaulted)
	s.Equal(int64(0), stats.RepaymentRate)

	score, err := s.service.CalculateHistoricalScore(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Zero(score)
}

func (s *LoanServiceTestSuite) TestLoanOfAnotherUser() {
	id := s.record(s.alice, 1000, time.Hour)

	err := s.service.RecordRepayment(s.ctx, s.manager, s.bob, id, decimal.NewFromInt(1))
	s.ErrorIs(err, apperr.ErrLoanNotFound)
	err = s.service.RecordDefault(s.ctx, s.manager, s.bob, id)
	s.ErrorIs(err, apperr.ErrLoanNotFound)
	err = s.service.RecordRepayment(s.ctx, s.bob, s.alice, id, decimal.NewFromInt(1))
	s.ErrorIs(err, apperr.ErrUnauthorized)
}

func (s *LoanServiceTestSuite) TestHistoryWithoutClosedLoans() {
	s.record(s.alice, 1000, time.Hour)

	score, err := s.service.CalculateHistoricalScore(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Zero(score)

	history, err := s.service.GetUserLoanHistory(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Len(history, 1)

	history, err = s.service.GetUserLoanHistory(s.ctx, s.bob)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *LoanServiceTestSuite) TestConcurrentRecording() {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RecordLoan(s.ctx, s.manager, s.alice, decimal.NewFromInt(10), 100, time.Hour)
			s.NoError(err)
		}()
	}
	wg.Wait()

	stats, err := s.service.GetUserLoanStats(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(int64(8), stats.Total)
	s.Equal(int64(8), stats.Active)
}

func TestLoanServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LoanServiceTestSuite))
}

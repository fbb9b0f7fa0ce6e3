package access

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database/dbtest"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type ControllerTestSuite struct {
	suite.Suite
	ctx        context.Context
	controller Controller
	bus        *events.Bus
	received   chan events.Event
	admin      common.Address
	alice      common.Address
}

func (s *ControllerTestSuite) SetupTest() {
	db := dbtest.New(s.T())
	log := logrus.NewEntry(logrus.New())
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var cancel context.CancelFunc
	s.ctx, cancel = context.WithCancel(context.Background())
	s.T().Cleanup(cancel)

	s.bus = events.NewBus(log)
	s.received = make(chan events.Event, 8)
	s.Require().NoError(s.bus.Subscribe(s.ctx, func(e events.Event) { s.received <- e }))

	s.controller = NewController(NewRoleRepository(db), clock, s.bus, log)
	s.admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	s.alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

	s.Require().NoError(s.controller.Seed(s.ctx, []common.Address{s.admin}))
}

func (s *ControllerTestSuite) TestSeedIsIdempotent() {
	s.NoError(s.controller.Seed(s.ctx, []common.Address{s.admin}))

	roles, err := s.controller.Roles(s.ctx, s.admin)
	s.NoError(err)
	s.Equal([]Role{RoleAdmin}, roles)
}

func (s *ControllerTestSuite) TestRequire() {
	s.NoError(s.controller.Require(s.ctx, s.admin, RoleAdmin))

	err := s.controller.Require(s.ctx, s.alice, RoleScorer)
	s.ErrorIs(err, apperr.ErrUnauthorized)
}

func (s *ControllerTestSuite) TestGrantAndRevoke() {
	s.NoError(s.controller.Grant(s.ctx, s.admin, s.alice, RoleScorer))
	s.NoError(s.controller.Require(s.ctx, s.alice, RoleScorer))

	select {
	case e := <-s.received:
		s.Equal(events.EventRoleGranted, e.Type)
		s.Equal(s.alice.Hex(), e.User)
	case <-time.After(time.Second):
		s.Fail("RoleGranted not published")
	}

	// granting twice is a no-op
	s.NoError(s.controller.Grant(s.ctx, s.admin, s.alice, RoleScorer))

	s.NoError(s.controller.Revoke(s.ctx, s.admin, s.alice, RoleScorer))
	s.ErrorIs(s.controller.Require(s.ctx, s.alice, RoleScorer), apperr.ErrUnauthorized)
}

func (s *ControllerTestSuite) TestGrantRequiresAdmin() {
	err := s.controller.Grant(s.ctx, s.alice, s.alice, RoleAdmin)
	s.ErrorIs(err, apperr.ErrUnauthorized)

	ok, err := s.controller.HasRole(s.ctx, s.alice, RoleAdmin)
	s.NoError(err)
	s.False(ok)
}

func (s *ControllerTestSuite) TestParseRole() {
	r, err := ParseRole("loan_manager")
	s.NoError(err)
	s.Equal(RoleLoanManager, r)

	_, err = ParseRole("superuser")
	s.ErrorIs(err, apperr.ErrInvalidInput)
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

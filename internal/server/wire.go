package server

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/access"
	"github.com/huudong03uet/credit-scoring/internal/collateral"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/identity"
	"github.com/huudong03uet/credit-scoring/internal/loan"
	"github.com/huudong03uet/credit-scoring/internal/metrics"
	"github.com/huudong03uet/credit-scoring/internal/oracle"
	"github.com/huudong03uet/credit-scoring/internal/scoring"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options configure the service graph. Redis is optional; when set, oracle
// prices are cached in it.
type Options struct {
	DB             *gorm.DB
	Policy         config.Policy
	Vault          common.Address
	Publisher      events.Publisher
	Redis          redis.UniversalClient
	OracleCacheTTL time.Duration
	Clock          clockwork.Clock
	Log            *logrus.Entry
}

// Wire builds every service over one database and one set of user locks.
func Wire(o Options) Deps {
	locks := database.NewUserLocks()
	ac := access.NewController(access.NewRoleRepository(o.DB), o.Clock, o.Publisher, o.Log)

	tokenRepo := token.NewTokenRepository(o.DB)
	ledger := token.NewLedger(o.DB)
	var priceOracle oracle.PriceOracle = oracle.NewTokenOracle(tokenRepo)
	var listeners []token.PriceListener
	if o.Redis != nil {
		cached := oracle.NewCachedOracle(priceOracle, o.Redis, o.OracleCacheTTL, o.Log)
		priceOracle = cached
		listeners = append(listeners, cached)
	}
	tokens := token.NewService(o.DB, tokenRepo, ledger, ac, locks, o.Clock, o.Log, listeners...)

	ids := identity.NewService(o.DB, identity.NewProfileRepository(o.DB), ac, locks, o.Clock, o.Publisher, o.Log)
	m := metrics.NewService(o.DB, metrics.NewMetricsRepository(o.DB), ids, ac, locks, o.Clock, o.Publisher, o.Policy, o.Log)
	coll := collateral.NewService(o.DB, collateral.NewCollateralRepository(o.DB), ledger, priceOracle, ids,
		ac, locks, o.Clock, o.Publisher, o.Policy, o.Vault, o.Log)
	loans := loan.NewService(o.DB, loan.NewLoanRepository(o.DB), ids, ac, locks, o.Clock, o.Publisher, o.Policy, o.Log)
	scores := scoring.NewService(o.DB, scoring.NewProfileRepository(o.DB), ids, m, coll, loans,
		ac, locks, o.Clock, o.Publisher, o.Policy, o.Log)

	return Deps{
		Access:     ac,
		Identity:   ids,
		Metrics:    m,
		Tokens:     tokens,
		Collateral: coll,
		Loans:      loans,
		Scoring:    scores,
		Clock:      o.Clock,
	}
}

package oracle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/database/dbtest"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eth  = common.Address{}
	usdc = common.HexToAddress("0x0000000000000000000000000000000000000002")
	wbtc = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

// countingOracle records how often the inner oracle is consulted
type countingOracle struct {
	Static
	calls int
}

func (c *countingOracle) Price(ctx context.Context, tok common.Address) (decimal.Decimal, error) {
	c.calls++
	return c.Static.Price(ctx, tok)
}

func TestTokenOracle(t *testing.T) {
	db := dbtest.New(t)
	repo := token.NewTokenRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Token{
		Address: eth.Hex(), Symbol: "ETH", Name: "Ether", Decimals: 18, Price: decimal.NewFromInt(2000),
	}))
	require.NoError(t, repo.Create(ctx, &models.Token{
		Address: wbtc.Hex(), Symbol: "WBTC", Name: "Wrapped Bitcoin", Decimals: 8,
	}))

	o := NewTokenOracle(repo)

	price, err := o.Price(ctx, eth)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2000)))

	_, err = o.Price(ctx, wbtc)
	assert.ErrorIs(t, err, apperr.ErrOracleUnavailable)

	_, err = o.Price(ctx, usdc)
	assert.ErrorIs(t, err, apperr.ErrOracleUnavailable)
}

func TestStatic(t *testing.T) {
	s := Static{usdc: decimal.NewFromInt(1), wbtc: decimal.Zero}

	price, err := s.Price(context.Background(), usdc)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))

	_, err = s.Price(context.Background(), wbtc)
	assert.ErrorIs(t, err, apperr.ErrOracleUnavailable)
	_, err = s.Price(context.Background(), eth)
	assert.ErrorIs(t, err, apperr.ErrOracleUnavailable)
}

func TestCachedOracle_RedisDownFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	logger, hook := test.NewNullLogger()
	inner := &countingOracle{Static: Static{usdc: decimal.NewFromInt(1)}}
	o := NewCachedOracle(inner, client, time.Minute, logrus.NewEntry(logger))

	price, err := o.Price(context.Background(), usdc)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1, inner.calls)
	assert.NotEmpty(t, hook.Entries)

	_, err = o.Price(context.Background(), wbtc)
	assert.ErrorIs(t, err, apperr.ErrOracleUnavailable)

	o.PriceChanged(context.Background(), usdc)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCachedOracle_ReadThrough(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	tok := common.BytesToAddress(uuid.New().NodeID())
	inner := &countingOracle{Static: Static{tok: decimal.RequireFromString("2000.5")}}
	o := NewCachedOracle(inner, client, time.Minute, logrus.NewEntry(logrus.New()))
	t.Cleanup(func() { client.Del(ctx, key(tok)) })

	for i := 0; i < 3; i++ {
		price, err := o.Price(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "2000.5", price.String())
	}
	assert.Equal(t, 1, inner.calls)

	inner.Static[tok] = decimal.NewFromInt(1800)
	o.PriceChanged(ctx, tok)

	price, err := o.Price(ctx, tok)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1800)))
	assert.Equal(t, 2, inner.calls)
}

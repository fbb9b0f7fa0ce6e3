package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "oracle:price:"

// CachedOracle is a redis read-through cache in front of another oracle.
// Redis failures degrade to the inner oracle. Misses of the inner oracle are
// never cached.
type CachedOracle struct {
	inner  PriceOracle
	client redis.UniversalClient
	ttl    time.Duration
	log    *logrus.Entry
}

func NewCachedOracle(inner PriceOracle, client redis.UniversalClient, ttl time.Duration, log *logrus.Entry) *CachedOracle {
	return &CachedOracle{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    log.WithField("component", "oracle"),
	}
}

func key(tok common.Address) string {
	return keyPrefix + tok.Hex()
}

func (o *CachedOracle) Price(ctx context.Context, tok common.Address) (decimal.Decimal, error) {
	cached, err := o.client.Get(ctx, key(tok)).Result()
	switch {
	case err == nil:
		if p, perr := decimal.NewFromString(cached); perr == nil && p.IsPositive() {
			return p, nil
		}
		o.log.WithField("token", tok.Hex()).Warn("Discarding malformed cached price")
	case !errors.Is(err, redis.Nil):
		o.log.WithError(err).WithField("token", tok.Hex()).Warn("Price cache read failed")
	}

	price, err := o.inner.Price(ctx, tok)
	if err != nil {
		return decimal.Zero, err
	}
	if err := o.client.Set(ctx, key(tok), price.String(), o.ttl).Err(); err != nil {
		o.log.WithError(err).WithField("token", tok.Hex()).Warn("Price cache write failed")
	}
	return price, nil
}

// PriceChanged drops the cached price so the next read sees the new one.
func (o *CachedOracle) PriceChanged(ctx context.Context, tok common.Address) {
	if err := o.client.Del(ctx, key(tok)).Err(); err != nil {
		o.log.WithError(err).WithField("token", tok.Hex()).Warn("Price cache invalidation failed")
	}
}

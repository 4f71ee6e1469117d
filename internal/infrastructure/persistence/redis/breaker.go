package redis

import (
	"errors"

	"github.com/classmark/classmark-hub/pkg/circuitbreaker"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// NewBreaker returns the breaker shared by every Redis caller of a process,
// so an outage noticed by one of them short-circuits the others too.
func NewBreaker(log *logger.Logger) *circuitbreaker.Breaker {
	return circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.Component(name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}, circuitbreaker.WithCounts(countsAgainstRedis))
}

// countsAgainstRedis keeps cache misses from tripping the breaker.
func countsAgainstRedis(err error) bool {
	return !errors.Is(err, ErrCacheMiss)
}

func rejected(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeLimit)
}

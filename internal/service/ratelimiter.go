package service

import (
	"sync"
	"time"

	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/metrics"
	"github.com/makkenzo/keygate/internal/util"
	"go.uber.org/zap"
)

// TokenBucket is the rate-limit state of one key. Capacity and refill rate
// are copied from the record when the bucket is created and never re-read.
type TokenBucket struct {
	Tokens       float64
	Capacity     float64
	RefillPerSec float64
	LastRefillAt time.Time
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.LastRefillAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.Tokens += elapsed * b.RefillPerSec
	if b.Tokens > b.Capacity {
		b.Tokens = b.Capacity
	}
	b.LastRefillAt = now
}

// RateLimiter keeps one continuously refilled token bucket per API key.
// Buckets are created lazily and live until Drop is called.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	now     Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRateLimiter(clock Clock, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		now:     clock.orDefault(),
		metrics: m,
		logger:  logger.Named("RateLimiter"),
	}
}

// Admit refills the key's bucket and consumes one token if available.
func (l *RateLimiter) Admit(key string, record apikey.CredentialRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		b = &TokenBucket{
			Tokens:       float64(record.RateCapacity),
			Capacity:     float64(record.RateCapacity),
			RefillPerSec: record.RateRefillPerSec,
			LastRefillAt: now,
		}
		l.buckets[key] = b
		l.metrics.SetBuckets(len(l.buckets))
		l.logger.Debug("Token bucket created",
			zap.String("key", util.KeyFingerprint(key)),
			zap.Int("capacity", record.RateCapacity),
			zap.Float64("refill_per_sec", record.RateRefillPerSec),
		)
	}

	b.refill(now)

	if b.Tokens >= 1 {
		b.Tokens--
		return true
	}

	l.logger.Debug("Token bucket empty", zap.String("key", util.KeyFingerprint(key)), zap.Float64("tokens", b.Tokens))
	return false
}

// Drop forgets the bucket for key. A later Admit starts from a full bucket.
func (l *RateLimiter) Drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.buckets[key]; !ok {
		return
	}
	delete(l.buckets, key)
	l.metrics.SetBuckets(len(l.buckets))
}

// Peek returns a copy of the bucket for key without refilling it.
func (l *RateLimiter) Peek(key string) (TokenBucket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return TokenBucket{}, false
	}
	return *b, true
}

func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

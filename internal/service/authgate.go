package service

import (
	"crypto/subtle"
	"fmt"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/metrics"
	"github.com/makkenzo/keygate/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AuthOutcomeOK          = "ok"
	AuthOutcomeMissing     = "missing_key"
	AuthOutcomeInvalid     = "invalid_key"
	AuthOutcomeExpired     = "expired"
	AuthOutcomeRateLimited = "rate_limited"
)

// AuthGate answers whether a request may proceed. Each call is independent.
type AuthGate struct {
	store        *KeyStore
	limiter      *RateLimiter
	adminKey     []byte
	adminKeyHash []byte
	now          Clock
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewAuthGate(store *KeyStore, limiter *RateLimiter, cfg config.AuthConfig, clock Clock, m *metrics.Metrics, logger *zap.Logger) (*AuthGate, error) {
	if cfg.AdminKey == "" && cfg.AdminKeyHash == "" {
		return nil, fmt.Errorf("%w: admin credential", ierr.ErrMisconfiguredSecret)
	}

	g := &AuthGate{
		store:   store,
		limiter: limiter,
		now:     clock.orDefault(),
		metrics: m,
		logger:  logger.Named("AuthGate"),
	}
	if cfg.AdminKeyHash != "" {
		g.adminKeyHash = []byte(cfg.AdminKeyHash)
	} else {
		g.adminKey = []byte(cfg.AdminKey)
	}
	return g, nil
}

// AuthenticateRequest checks, in order, presence, existence, expiry and rate
// limit. The first failing check decides the error; an expired key never
// consumes a token.
func (g *AuthGate) AuthenticateRequest(candidateKey string) (apikey.CredentialRecord, error) {
	if candidateKey == "" {
		g.metrics.ObserveAuth(AuthOutcomeMissing)
		return apikey.CredentialRecord{}, ierr.ErrMissingCredential
	}

	var record apikey.CredentialRecord
	err := g.store.view(candidateKey, func(rec apikey.CredentialRecord, ok bool) error {
		if !ok {
			return ierr.ErrInvalidCredential
		}
		if rec.IsExpiredAt(g.now().Unix()) {
			return ierr.ErrExpiredCredential
		}
		if !g.limiter.Admit(candidateKey, rec) {
			return ierr.ErrRateLimited
		}
		record = rec
		return nil
	})

	fp := util.KeyFingerprint(candidateKey)
	switch err {
	case nil:
		g.metrics.ObserveAuth(AuthOutcomeOK)
		g.logger.Debug("API key authenticated", zap.String("key", fp), zap.String("client_name", record.ClientName))
		return record, nil
	case ierr.ErrInvalidCredential:
		g.metrics.ObserveAuth(AuthOutcomeInvalid)
		g.logger.Warn("Unknown api key presented", zap.String("key", fp))
	case ierr.ErrExpiredCredential:
		g.metrics.ObserveAuth(AuthOutcomeExpired)
		g.logger.Info("Expired api key presented", zap.String("key", fp))
	case ierr.ErrRateLimited:
		g.metrics.ObserveAuth(AuthOutcomeRateLimited)
		g.logger.Info("API key rate limited", zap.String("key", fp))
	}
	return apikey.CredentialRecord{}, err
}

// AuthenticateAdmin compares the candidate against the configured admin
// credential. It does not touch the key store or the rate limiter.
func (g *AuthGate) AuthenticateAdmin(candidateAdminKey string) error {
	ok := g.matchAdmin(candidateAdminKey)
	g.metrics.ObserveAdmin(ok)
	if !ok {
		g.logger.Warn("Invalid admin key presented")
		return ierr.ErrInvalidAdminKey
	}
	return nil
}

func (g *AuthGate) matchAdmin(candidate string) bool {
	if candidate == "" {
		return false
	}
	if g.adminKeyHash != nil {
		return bcrypt.CompareHashAndPassword(g.adminKeyHash, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(g.adminKey, []byte(candidate)) == 1
}

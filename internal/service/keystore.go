package service

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/metrics"
	"github.com/makkenzo/keygate/internal/util"
	"go.uber.org/zap"
)

// BucketDropper is notified when a key leaves the store.
type BucketDropper interface {
	Drop(key string)
}

type RateDefaults struct {
	Capacity     int
	RefillPerSec float64
}

// KeyStore owns the key -> record mapping and its persisted snapshot.
//
// Mutations hold writeMu for their whole duration, build the next mapping
// as a copy, persist it, and only then swap it in under mu. A failed write
// therefore leaves memory untouched, and readers never wait on storage I/O.
type KeyStore struct {
	writeMu  sync.Mutex
	mu       sync.RWMutex
	records  map[string]apikey.CredentialRecord
	snapshot apikey.SnapshotStore
	limiter  BucketDropper
	defaults RateDefaults
	now      Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewKeyStore loads the current snapshot. A missing snapshot yields an
// empty store; limiter may be nil.
func NewKeyStore(
	ctx context.Context,
	snapshot apikey.SnapshotStore,
	defaults RateDefaults,
	limiter BucketDropper,
	clock Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*KeyStore, error) {
	log := logger.Named("KeyStore")

	records, err := snapshot.Load(ctx)
	if err != nil {
		log.Error("Failed to load api key snapshot", zap.Error(err))
		return nil, fmt.Errorf("%w: loading snapshot: %v", ierr.ErrStorageFailure, err)
	}
	if records == nil {
		records = make(map[string]apikey.CredentialRecord)
	}

	log.Info("API key snapshot loaded", zap.Int("keys", len(records)))
	m.SetLiveKeys(len(records))

	return &KeyStore{
		records:  records,
		snapshot: snapshot,
		limiter:  limiter,
		defaults: defaults,
		now:      clock.orDefault(),
		metrics:  m,
		logger:   log,
	}, nil
}

// Create issues a new key for clientName valid for daysValid days.
func (s *KeyStore) Create(ctx context.Context, clientName string, daysValid int) (string, apikey.CredentialRecord, error) {
	if daysValid < 1 {
		return "", apikey.CredentialRecord{}, fmt.Errorf("%w: days_valid must be at least 1", ierr.ErrValidation)
	}

	key, err := util.GenerateAPIKey()
	if err != nil {
		s.logger.Error("Failed to generate api key", zap.Error(err))
		return "", apikey.CredentialRecord{}, fmt.Errorf("%w: %v", ierr.ErrInternalServer, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.cloneRecords()
	if _, exists := next[key]; exists {
		return "", apikey.CredentialRecord{}, fmt.Errorf("%w: generated key collides with an existing key", ierr.ErrConflict)
	}

	record := apikey.NewCredentialRecord(clientName, s.now().Unix(), daysValid, s.defaults.Capacity, s.defaults.RefillPerSec)
	next[key] = record

	if err := s.persist(ctx, "create", next); err != nil {
		return "", apikey.CredentialRecord{}, err
	}
	s.commit(next)

	s.logger.Info("API key created",
		zap.String("key", util.KeyFingerprint(key)),
		zap.String("client_name", clientName),
		zap.Int64("expires_at", record.ExpiresAt),
	)
	return key, record, nil
}

func (s *KeyStore) Lookup(key string) (apikey.CredentialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	return rec, ok
}

// Revoke removes key and its rate-limit bucket. Revoking an unknown key is
// not an error and does not touch storage.
func (s *KeyStore) Revoke(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.Lookup(key); !ok {
		s.logger.Debug("Revoke of unknown api key ignored", zap.String("key", util.KeyFingerprint(key)))
		s.dropBuckets(key)
		return nil
	}

	next := s.cloneRecords()
	delete(next, key)

	if err := s.persist(ctx, "revoke", next); err != nil {
		return err
	}
	s.commit(next, key)

	s.logger.Info("API key revoked", zap.String("key", util.KeyFingerprint(key)))
	return nil
}

// List returns a copy of every live key and its record.
func (s *KeyStore) List() map[string]apikey.CredentialRecord {
	return s.cloneRecords()
}

func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PurgeExpired removes every expired key in a single snapshot write.
func (s *KeyStore) PurgeExpired(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	nowUnix := s.now().Unix()
	next := s.cloneRecords()

	var expired []string
	for key, rec := range next {
		if rec.IsExpiredAt(nowUnix) {
			expired = append(expired, key)
			delete(next, key)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.persist(ctx, "purge", next); err != nil {
		return 0, err
	}
	s.commit(next, expired...)

	s.logger.Info("Expired api keys purged", zap.Int("count", len(expired)))
	return len(expired), nil
}

// view runs fn with the record for key while holding the read lock, so a
// concurrent Revoke cannot interleave between the lookup and fn.
func (s *KeyStore) view(key string, fn func(rec apikey.CredentialRecord, ok bool) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	return fn(rec, ok)
}

func (s *KeyStore) cloneRecords() map[string]apikey.CredentialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records)
}

func (s *KeyStore) persist(ctx context.Context, op string, next map[string]apikey.CredentialRecord) error {
	err := s.snapshot.Save(ctx, next)
	s.metrics.ObserveKeyStoreOp(op, err)
	if err != nil {
		s.logger.Error("Failed to persist api key snapshot", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ierr.ErrStorageFailure, op, err)
	}
	return nil
}

// commit swaps in the persisted mapping and drops buckets of removed keys
// under the same lock, caller must hold writeMu.
func (s *KeyStore) commit(next map[string]apikey.CredentialRecord, removed ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = next
	s.dropBuckets(removed...)
	s.metrics.SetLiveKeys(len(next))
}

func (s *KeyStore) dropBuckets(keys ...string) {
	if s.limiter == nil {
		return
	}
	for _, key := range keys {
		s.limiter.Drop(key)
	}
}

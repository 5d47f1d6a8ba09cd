package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"go.uber.org/zap"
)

const (
	snapshotRowID        = 1
	pgUndefinedTableCode = "42P01"
)

// SnapshotRepository stores the whole key mapping as one JSONB row that is
// replaced on every save.
type SnapshotRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSnapshotRepository(db *pgxpool.Pool, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger.Named("SnapshotRepository"),
	}
}

var _ apikey.SnapshotStore = (*SnapshotRepository)(nil)

func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS api_key_snapshots (
			id         SMALLINT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.Error("Failed to ensure api_key_snapshots table", zap.Error(err))
		return fmt.Errorf("db error creating snapshot table: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context) (map[string]apikey.CredentialRecord, error) {
	query := `SELECT document FROM api_key_snapshots WHERE id = $1`

	var document []byte
	err := r.db.QueryRow(ctx, query, snapshotRowID).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Info("No api key snapshot stored yet, starting empty")
			return make(map[string]apikey.CredentialRecord), nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTableCode {
			r.logger.Warn("Snapshot table does not exist, starting empty", zap.String("table", "api_key_snapshots"))
			return make(map[string]apikey.CredentialRecord), nil
		}
		r.logger.Error("Failed to load api key snapshot", zap.Error(err))
		return nil, fmt.Errorf("db error loading snapshot: %w", err)
	}

	return apikey.DecodeSnapshot(document)
}

func (r *SnapshotRepository) Save(ctx context.Context, records map[string]apikey.CredentialRecord) error {
	document, err := apikey.EncodeSnapshot(records)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_key_snapshots (id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, snapshotRowID, document); err != nil {
		r.logger.Error("Failed to save api key snapshot", zap.Int("keys", len(records)), zap.Error(err))
		return fmt.Errorf("db error saving snapshot: %w", err)
	}

	r.logger.Debug("API key snapshot saved", zap.Int("keys", len(records)))
	return nil
}

func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/lib/pq"

	"github.com/AnishMulay/blockfs/internal/blob_store"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

const DefaultTable = "blockfs_blobs"

// PostgresBlobStore keeps blobs in a single key/value table.
type PostgresBlobStore struct {
	db    *sql.DB
	table string
	ls    log_service.LogService
}

// Open connects with dsn, or with the PG_* environment variables when dsn is
// empty, and makes sure the table exists.
func Open(ctx context.Context, dsn, table string, ls log_service.LogService) (*PostgresBlobStore, error) {
	if dsn == "" {
		dsn = envDSN()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	s := New(db, table, ls)
	if err := s.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, table string, ls log_service.LogService) *PostgresBlobStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresBlobStore{db: db, table: table, ls: ls}
}

func envDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_USER", "postgres"),
		getEnv("PG_PASS", ""),
		getEnv("PG_DB_NAME", "postgres"),
		getEnv("PG_SSL_MODE", "disable"),
	)
}

func getEnv(env, def string) string {
	x := os.Getenv(env)
	if x == "" {
		return def
	}
	return x
}

func (s *PostgresBlobStore) quotedTable() string {
	return pq.QuoteIdentifier(s.table)
}

func (s *PostgresBlobStore) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+s.quotedTable()+" ("+
			"key TEXT NOT NULL PRIMARY KEY, "+
			"data BYTEA NOT NULL, "+
			"updated_at TIMESTAMPTZ NOT NULL DEFAULT now())",
	); err != nil {
		return fmt.Errorf("creating `%s` postgres table: %w", s.table, err)
	}
	return nil
}

func (s *PostgresBlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.quotedTable()+" (key, data) VALUES ($1, $2) "+
			"ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()",
		key,
		data,
	); err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to upsert blob",
			Metadata: map[string]any{"table": s.table, "key": key, "error": err.Error()},
		})
		return fmt.Errorf("%w: %s: %w", blob_store.ErrBlobWriteFailed, key, err)
	}
	return nil
}

func (s *PostgresBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := s.db.QueryRowContext(ctx,
		"SELECT data FROM "+s.quotedTable()+" WHERE key = $1",
		key,
	).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", blob_store.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("%w: %s: %w", blob_store.ErrBlobReadFailed, key, err)
	}
	return data, nil
}

func (s *PostgresBlobStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.quotedTable()+" WHERE key = $1",
		key,
	); err != nil {
		return fmt.Errorf("%w: %s: %w", blob_store.ErrBlobDeleteFailed, key, err)
	}
	return nil
}

func (s *PostgresBlobStore) Close() error {
	return s.db.Close()
}

var _ blob_store.BlobStore = (*PostgresBlobStore)(nil)

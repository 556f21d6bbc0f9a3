// internal/storage/postgres_store.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Corphon/StoryForge/internal/models"
)

const analysisSchema = `
CREATE TABLE IF NOT EXISTS script_analyses (
	key         TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	genre       TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	analyzed_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore 分析存放在 script_analyses 表，按 key 覆盖写
type PostgresStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool // 只记住成功，失败时下次调用重试
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB 复用已打开的连接
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, analysisSchema); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, analysis *models.ScriptAnalysis) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO script_analyses (key, title, genre, payload, analyzed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key)
DO UPDATE SET title=EXCLUDED.title, genre=EXCLUDED.genre, payload=EXCLUDED.payload, analyzed_at=EXCLUDED.analyzed_at
`, SanitizeKey(analysis.Title), analysis.Title, analysis.Genre, payload, analysis.AnalyzedAt)
	return err
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*models.ScriptAnalysis, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, payload FROM script_analyses ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out  []*models.ScriptAnalysis
		errs []error
	)
	for rows.Next() {
		var (
			key     string
			payload []byte
		)
		if err := rows.Scan(&key, &payload); err != nil {
			return out, err
		}
		var analysis models.ScriptAnalysis
		if err := json.Unmarshal(payload, &analysis); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", key, err))
			continue
		}
		out = append(out, &analysis)
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

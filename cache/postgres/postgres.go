package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"semantic_cache/cache"
)

const DefaultTable = "semantic_cache"

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds the PostgreSQL connection settings
type Config struct {
	DSN        string
	Table      string
	Dimensions int
}

// Store implements cache.Store on PostgreSQL with the pgvector extension.
// Similarity is 1 - cosine distance (`<=>`).
type Store struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
}

// New creates the extension, table and HNSW index when missing and
// returns a pooled store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	// vector type must exist before pooled connections register it
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, table: table, dimensions: cfg.Dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			question TEXT NOT NULL DEFAULT '',
			answer TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// Query implements cache.Store
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]cache.Result, error) {
	if err := cache.CheckDimensions(vector, s.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}
	query := fmt.Sprintf(`SELECT id, question, answer, model, created_at, 1 - (embedding <=> $1) AS score
		FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.table, err)
	}
	defer rows.Close()

	var results []cache.Result
	for rows.Next() {
		var r cache.Record
		var score float64
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Model, &r.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, cache.Result{Record: r, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}
	return results, nil
}

// Insert implements cache.Store. A duplicate id is an error, never an overwrite.
func (s *Store) Insert(ctx context.Context, record cache.Record) error {
	if err := cache.CheckDimensions(record.Vector, s.dimensions); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, question, answer, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	_, err := s.pool.Exec(ctx, stmt,
		record.ID,
		pgvector.NewVector(record.Vector),
		record.Question,
		record.Answer,
		record.Model,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", record.ID, err)
	}
	return nil
}

// Count implements cache.Maintainer
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.table, err)
	}
	return n, nil
}

// Delete implements cache.Maintainer. The rows are removed in one
// transaction that is rolled back when any id is unknown.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.table), ids)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if missing := int64(len(unique)) - tag.RowsAffected(); missing > 0 {
		return fmt.Errorf("%w: %d of %d ids", cache.ErrNotFound, missing, len(unique))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// Purge implements cache.Maintainer
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", s.table, err)
	}
	return nil
}

// Get implements cache.Maintainer
func (s *Store) Get(ctx context.Context, id string) (*cache.Record, error) {
	var r cache.Record
	var v pgvector.Vector
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id, embedding, question, answer, model, created_at FROM %s WHERE id = $1", s.table), id,
	).Scan(&r.ID, &v, &r.Question, &r.Answer, &r.Model, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	r.Vector = v.Slice()
	return &r, nil
}

// Close closes the pool
func (s *Store) Close() {
	s.pool.Close()
}

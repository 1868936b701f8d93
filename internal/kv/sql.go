package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"saludables/internal/logger"
)

// 文档注释：SQL 表存储（PostgreSQL 与 SQLite 共用）
// 约束：表 _kv_entries 在打开时按 IF NOT EXISTS 创建；upsert 依赖 ON CONFLICT 语法（SQLite ≥ 3.24）。
type SQL struct {
	db      *sql.DB
	get     string
	upsert  string
	del     string
	dialect string
}

const kvSchema = `CREATE TABLE IF NOT EXISTS _kv_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// OpenPostgres：连接池参数沿用服务端默认
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	s := &SQL{
		db:      db,
		dialect: "postgres",
		get:     `SELECT value FROM _kv_entries WHERE key=$1`,
		upsert: `INSERT INTO _kv_entries(key, value, updated_at) VALUES($1, $2, now())
            ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		del: `DELETE FROM _kv_entries WHERE key=$1`,
	}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite：单连接，避免并发写锁冲突
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		return nil, errors.New("kv sqlite: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)
	s := &SQL{
		db:      db,
		dialect: "sqlite",
		get:     `SELECT value FROM _kv_entries WHERE key=?`,
		upsert: `INSERT INTO _kv_entries(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		del: `DELETE FROM _kv_entries WHERE key=?`,
	}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, kvSchema); err != nil {
		logger.L().Error("kv_schema_error", "dialect", s.dialect, "err", err)
		return fmt.Errorf("kv schema: %w", err)
	}
	logger.L().Debug("kv_schema_ok", "dialect", s.dialect)
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.del, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

// SQLRepository implements Repository on database/sql for sqlite and postgres.
// Queries are written with ? placeholders and rebound for postgres.
type SQLRepository struct {
	db        *sql.DB
	driver    string
	clock     clock.Clock
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLRepository)(nil)

// SQLRepositoryFactory creates a factory function that returns a new SQLRepository.
// The factory function implements the RepositoryFactory type.
func SQLRepositoryFactory(cfg StoreConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLRepository(ctx, cfg, clock.Real{})
	}
}

// NewSQLRepository opens the database described by cfg and creates the schema if needed.
// Returns an error if the connection or initialization fails.
func NewSQLRepository(ctx context.Context, cfg StoreConfig, clk clock.Clock) (*SQLRepository, error) {
	log := logging.GetLogger("repo.record.sql_repository").With(
		logging.Group("db", "driver", cfg.Driver),
	)

	dsn, err := cfg.dataSourceName()
	if err != nil {
		return nil, fmt.Errorf("data source name: %w", err)
	}

	if cfg.Driver == DriverSQLite && !strings.HasPrefix(cfg.URL, "file:") && cfg.URL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.URL), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir all: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	repo := &SQLRepository{
		db:        db,
		driver:    cfg.Driver,
		clock:     clk,
		log:       log,
		writeLock: new(sync.Mutex),
	}

	if err := repo.initializeDB(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "record store ready")

	return repo, nil
}

func (r *SQLRepository) initializeDB(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS prompts (
			id               ` + idColumn + `,
			prompt           TEXT   NOT NULL,
			tool             TEXT   NOT NULL,
			result_text      TEXT   NOT NULL DEFAULT '',
			result_file_urls TEXT   NOT NULL DEFAULT '[]',
			notes            TEXT   NOT NULL DEFAULT '',
			tags             TEXT   NOT NULL DEFAULT '[]',
			created_at       BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tools (
			id          ` + idColumn + `,
			name        TEXT    UNIQUE NOT NULL,
			model       TEXT    NOT NULL DEFAULT '',
			tag         TEXT    NOT NULL DEFAULT 'Other',
			description TEXT    NOT NULL DEFAULT '',
			rating      INTEGER NOT NULL DEFAULT 0,
			created_at  BIGINT  NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS use_cases (
			id                 ` + idColumn + `,
			tool_id            BIGINT NOT NULL REFERENCES tools(id) ON DELETE CASCADE,
			title              TEXT   NOT NULL,
			explanation        TEXT   NOT NULL DEFAULT '',
			example_image_urls TEXT   NOT NULL DEFAULT '[]',
			created_at         BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS use_cases_tool_id ON use_cases (tool_id)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var (
		out strings.Builder
		n   int
	)

	for _, c := range query {
		if c != '?' {
			out.WriteRune(c)

			continue
		}

		n++
		out.WriteString("$" + strconv.Itoa(n))
	}

	return out.String()
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, rebind(r.driver, query), args...)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return rows, nil
}

// exec runs a write statement and fails with ErrNotFound if no row was affected.
func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return fmt.Errorf("exec: %w", classify(err))
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// insert runs an INSERT ... RETURNING id and returns the new ID.
func (r *SQLRepository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	var id int64
	if err := r.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert: %w", classify(err))
	}

	return id, nil
}

// classify maps driver constraint errors onto domain errors.
func classify(err error) error {
	var (
		liteErr *sqlite.Error
		pqErr   *pq.Error
	)

	switch {
	case errors.As(err, &liteErr):
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Join(domain.ErrToolAlreadyExists, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return errors.Join(domain.ErrNotFound, err)
		}
	case errors.As(err, &pqErr):
		switch pqErr.Code {
		case "23505": // unique_violation
			return errors.Join(domain.ErrToolAlreadyExists, err)
		case "23503": // foreign_key_violation
			return errors.Join(domain.ErrNotFound, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		return errors.Join(domain.ErrNotFound, err)
	}

	return err
}

func (r *SQLRepository) now() int64 {
	return r.clock.Now().UnixMilli()
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}

	data, _ := json.Marshal(list) //nolint:errchkjson

	return string(data)
}

func decodeList(data string) ([]string, error) {
	list := []string{}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	return list, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

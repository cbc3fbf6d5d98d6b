package database

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"demo-ingest/internal/config"
	"demo-ingest/internal/constants"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// driverName is go-sqlite3 with connectionPragmas applied to every pooled
// connection, not only the first one.
const driverName = "sqlite3_ingest"

// connectionPragmas are per-connection settings. Foreign keys, busy timeout
// and the WAL journal travel in the DSN instead.
var connectionPragmas = []struct {
	name  string
	value string
}{
	{"synchronous", "NORMAL"},
	{"cache_size", "-64000"},
	{"temp_store", "MEMORY"},
	{"mmap_size", "268435456"},
}

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range connectionPragmas {
				if _, err := conn.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value), nil); err != nil {
					return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
				}
			}
			return nil
		},
	})
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open opens the match store at path, creating its directory if needed, and
// brings the schema up to date.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger = logger.With().Str("db_path", path).Logger()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		logger.Error().Err(err).Msg("failed to open match store")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Error().Err(err).Msg("match store unreachable")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	version, err := migrate(db)
	if err != nil {
		db.Close()
		logger.Error().Err(err).Msg("schema migration failed")
		return nil, err
	}

	logger.Info().Int64("schema_version", version).Msg("match store ready")
	return db, nil
}

// dsn enables foreign keys and WAL, waits on locks instead of failing, and
// takes the write lock at BEGIN so read-then-write transactions queue.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// migrate applies the embedded migrations and returns the resulting version.
func migrate(db *sql.DB) (int64, error) {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

package sqlstore

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to Postgres when dsn is a postgres:// URL and to a SQLite
// database otherwise. A SQLite dsn is a file path, a file: URI, or ":memory:".
func Open(dsn string, pool PoolConfig) (*bun.DB, error) {
	if IsPostgres(dsn) {
		return openPostgres(dsn, pool)
	}
	return openSQLite(dsn, pool)
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(dsn string, pool PoolConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	applyPool(sqlDB, pool)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func openSQLite(dsn string, pool PoolConfig) (*bun.DB, error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	memory := isMemory(dsn)

	sqlDB, err := sql.Open("sqlite", withPragmas(dsn, memory))
	if err != nil {
		return nil, err
	}

	if memory {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		applyPool(sqlDB, pool)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func applyPool(sqlDB *sql.DB, pool PoolConfig) {
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, ":memory:?") ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string, memory bool) string {
	params := []string{"_pragma=foreign_keys(1)"}
	if !memory {
		params = append(params,
			"_pragma=busy_timeout(5000)",
			"_pragma=journal_mode(WAL)",
			"_txlock=immediate",
		)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

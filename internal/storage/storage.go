// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"picbrand/internal/models"
)

// Dialect names match the goose dialect identifiers.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite3"
)

// Querier is the cursor the portfolio helper runs against. *sql.DB,
// *sql.Tx and *sql.Conn all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Storage struct {
	DB      *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool // only for the pgx driver
}

// NewStorage opens the configured database and verifies the connection.
func NewStorage(ctx context.Context, cfg models.DatabaseConfig) (*Storage, error) {
	const op = "storage.NewStorage"

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(driver, cfg)
	}

	s := &Storage{Dialect: dialect}
	switch driver {
	case "pgx":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		s.pool = pool
		s.DB = stdlib.OpenDBFromPool(pool)
	case "sqlite":
		s.DB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		// a single connection keeps in-memory databases shared
		s.DB.SetMaxOpenConns(1)
	default:
		s.DB, err = sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
	}

	if err := s.DB.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return s, nil
}

func (s *Storage) Close() {
	s.DB.Close()
	if s.pool != nil {
		s.pool.Close()
	}
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func buildDSN(driver string, cfg models.DatabaseConfig) string {
	switch driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 3306)))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	case "sqlite":
		if cfg.Name == "" {
			return "picbrand.db"
		}
		return cfg.Name
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 5432))),
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	}
}

func portOr(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}

// rebind rewrites ? placeholders into $n for postgres.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

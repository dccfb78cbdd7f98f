package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Config struct {
	// File is a local sqlite database, ":memory:" is allowed.
	File string
	// URL is a remote libsql database (ex. libsql://history.turso.io), it takes
	// precedence over File.
	URL       string
	AuthToken string
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open history db: %w", err)
}

// Open opens the database described by cfg and creates the tables if they don't exist yet.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	var database *sql.DB
	var err error
	if cfg.URL != "" {
		database, err = openRemote(cfg)
	} else {
		database, err = openFile(cfg.File)
	}
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	err = Migrate(ctx, database)
	if err != nil {
		database.Close()
		return nil, wrapOpenDB(err)
	}
	return database, nil
}

func openFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, ":memory:" also needs every query on the same connection
	database.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = database.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

func openRemote(cfg Config) (*sql.DB, error) {
	dsn, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.AuthToken != "" {
		query := dsn.Query()
		query.Set("authToken", cfg.AuthToken)
		dsn.RawQuery = query.Encode()
	}
	return sql.Open("libsql", dsn.String())
}

// Migrate executes every statement of Schema, they are all idempotent.
func Migrate(ctx context.Context, database DBTX) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := database.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Catalog stores compiled statements in SQLite.
type Catalog struct {
	db       *sql.DB
	readOnly bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	readOnly bool
}

// ReadOnly opens an existing catalog for List and Get only. The file is
// never created and Record fails.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// Open opens the catalog at path, creating it unless ReadOnly is given.
//
// Writers record one statement per compiled scenario, so the handle keeps
// a single connection. Readers share the file with a running writer
// through WAL and may use several.
func Open(path string, opts ...Option) (*Catalog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", dsn(path, o.readOnly))
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	if !o.readOnly {
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return &Catalog{db: db, readOnly: o.readOnly}, nil
}

// dsn carries the connection pragmas in the go-sqlite3 URI so every pooled
// connection gets them.
func dsn(path string, readOnly bool) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// pragma reads a pragma value. Used by tests.
func (c *Catalog) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := c.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}

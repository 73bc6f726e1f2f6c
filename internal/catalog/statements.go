package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/value"
)

var (
	// ErrNotFound is returned when no statement has the fingerprint.
	ErrNotFound = errors.New("statement not found")

	// ErrReadOnly is returned by Record on a catalog opened ReadOnly.
	ErrReadOnly = errors.New("catalog is read-only")
)

// Entry is one cataloged statement.
type Entry struct {
	Seq         int64          `json:"seq"`
	Fingerprint string         `json:"fingerprint"`
	Name        string         `json:"name,omitempty"`
	BuildID     string         `json:"build_id"`
	Strategy    string         `json:"strategy"`
	Text        string         `json:"text"`
	Params      map[string]any `json:"params"`
	Hits        int64          `json:"hits"`
}

// Record stores stmt under its fingerprint. Recording a statement that is
// already present only counts the hit; the first name and build ID win.
func (c *Catalog) Record(ctx context.Context, name string, strategy compiler.Strategy, stmt compiler.Statement) (string, error) {
	if c.readOnly {
		return "", ErrReadOnly
	}
	fp, err := stmt.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("record statement: %w", err)
	}
	params, err := value.MarshalCanonical(nonNil(stmt.Params))
	if err != nil {
		return "", fmt.Errorf("record statement: marshal params: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO statements (fingerprint, name, build_id, strategy, text, params)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET hits = hits + 1
	`,
		fp,
		name,
		stmt.BuildID,
		strategy.String(),
		stmt.Text,
		string(params),
	)
	if err != nil {
		return "", fmt.Errorf("record statement: %w", err)
	}
	slog.Info("recorded statement", "fingerprint", fp, "name", name, "build", stmt.BuildID)
	return fp, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

const selectEntry = `SELECT seq, fingerprint, name, build_id, strategy, text, params, hits FROM statements`

// Get returns the statement with the fingerprint, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, fingerprint string) (Entry, error) {
	row := c.db.QueryRowContext(ctx, selectEntry+` WHERE fingerprint = ?`, fingerprint)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get %s: %w", fingerprint, ErrNotFound)
	}
	return e, err
}

// List returns statements in recording order. A non-empty name keeps only
// statements recorded under it. Returns an empty slice, not nil, when
// nothing matches.
func (c *Catalog) List(ctx context.Context, name string) ([]Entry, error) {
	query, args := selectEntry+` ORDER BY seq ASC`, []any{}
	if name != "" {
		query, args = selectEntry+` WHERE name = ? ORDER BY seq ASC`, []any{name}
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}
	return entries, nil
}

// Statement rebuilds the compiled statement of an entry.
func (e Entry) Statement() compiler.Statement {
	return compiler.Statement{BuildID: e.BuildID, Text: e.Text, Params: e.Params}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e      Entry
		params string
	)
	if err := s.Scan(&e.Seq, &e.Fingerprint, &e.Name, &e.BuildID, &e.Strategy, &e.Text, &params, &e.Hits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan statement: %w", err)
	}
	p, err := unmarshalParams(params)
	if err != nil {
		return Entry{}, err
	}
	e.Params = p
	return e, nil
}

// unmarshalParams decodes numbers as json.Number so integers above 2^53
// survive and canonical re-encoding reproduces the stored bytes.
func unmarshalParams(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return out, nil
}

package neo4jrun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cypherq/internal/compiler"
)

// Mode selects read or write routing.
type Mode uint8

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Runner executes compiled statements.
type Runner struct {
	svc     Service
	timeout time.Duration
}

// NewRunner returns a runner over svc. A zero timeout leaves the caller's
// deadline alone.
func NewRunner(svc Service, timeout time.Duration) *Runner {
	return &Runner{svc: svc, timeout: timeout}
}

// Run executes stmt and returns each record as a map keyed by column.
func (r *Runner) Run(ctx context.Context, mode Mode, stmt compiler.Statement) ([]map[string]any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	params, err := driverParams(stmt.Params)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", stmt.BuildID, err)
	}

	start := time.Now()
	exec := r.svc.ExecuteReadQuery
	if mode == Write {
		exec = r.svc.ExecuteWriteQuery
	}
	records, err := exec(ctx, stmt.Text, params)
	if err != nil {
		slog.Error("statement failed",
			"build", stmt.BuildID,
			"database", r.svc.DatabaseName(),
			"mode", mode,
			"error", err,
		)
		return nil, fmt.Errorf("run %s: %w", stmt.BuildID, err)
	}
	slog.Debug("statement executed",
		"build", stmt.BuildID,
		"database", r.svc.DatabaseName(),
		"mode", mode,
		"records", len(records),
		"elapsed", time.Since(start),
	)

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = rec.AsMap()
	}
	return rows, nil
}

// driverParams converts values the driver cannot send. Catalog entries
// carry json.Number, which becomes int64 or float64.
func driverParams(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		c, err := driverValue(v)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func driverValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case map[string]any:
		return driverParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := driverValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

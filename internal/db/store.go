package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steelhouse/smartpixel-config-service/pkg/metrics"
)

// Statement is one parameterized SQL statement for the multi-statement
// executor.
type Statement struct {
	SQL  string
	Args []any
}

// Store owns the Postgres connection pool. All pixel and conversion-variable
// data access goes through it.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(ctx context.Context, connString string, logger *slog.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("no response from postgres: %w", err)
	}

	return &Store{pool: p, logger: logger}, nil
}

// ExecAll runs the statements inside a single transaction and returns the
// total number of rows matched. Either all statements commit or none do.
func (s *Store) ExecAll(ctx context.Context, stmts []Statement) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.SQLOperations.WithLabelValues("multiple_tables", "batch_update", "error").Inc()
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, stmt := range stmts {
		tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			s.logger.Error("unknown db exception to batch update multiple tables", "sql", stmt.SQL, "error", err)
			metrics.SQLOperations.WithLabelValues("multiple_tables", "batch_update", "error").Inc()
			return 0, fmt.Errorf("batch update failed: %w", err)
		}
		s.logger.Debug("rows matched for statement", "rows", tag.RowsAffected(), "sql", stmt.SQL)
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SQLOperations.WithLabelValues("multiple_tables", "batch_update", "error").Inc()
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.SQLOperations.WithLabelValues("multiple_tables", "batch_update", "ok").Inc()
	s.logger.Debug("total rows matched", "rows", total)
	return total, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

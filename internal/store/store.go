package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/trigconv/internal/store/postgres"
)

// Store records analysis runs in PostgreSQL.
type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordRuns inserts a batch of runs in a single transaction.
func (s *Store) RecordRuns(ctx context.Context, runs []postgres.CreateAnalysisRunParams) error {
	if len(runs) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(q *postgres.Queries) error {
		for _, r := range runs {
			if _, err := q.CreateAnalysisRun(ctx, r); err != nil {
				return fmt.Errorf("record run %s: %w", r.FileName, err)
			}
		}
		return nil
	})
}

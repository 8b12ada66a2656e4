package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresSequence struct {
	pool *pgxpool.Pool
}

// NewPostgresSequence allocates numbers from the demanda_counters table.
func NewPostgresSequence(pool *pgxpool.Pool) SequenceAllocator {
	return &postgresSequence{pool: pool}
}

// Allocate upserts and increments in one statement, so concurrent callers on
// any instance never observe the same value.
func (s *postgresSequence) Allocate(ctx context.Context, year int) (int64, error) {
	const query = `
        INSERT INTO demanda_counters (year, seq) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET seq = demanda_counters.seq + 1
        RETURNING seq`
	var seq int64
	if err := s.pool.QueryRow(ctx, query, year).Scan(&seq); err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	return seq, nil
}

package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

type requesterRepository struct {
	pool *pgxpool.Pool
}

// NewRequesterRepository instantiates the Postgres registry.
func NewRequesterRepository(pool *pgxpool.Pool) RequesterRepository {
	return &requesterRepository{pool: pool}
}

func (r *requesterRepository) Ensure(ctx context.Context, name string) (*domain.Requester, error) {
	name = strings.TrimSpace(name)
	const insert = `
        INSERT INTO requesters (id, name) VALUES ($1, $2)
        ON CONFLICT ((LOWER(name))) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, uuid.NewString(), name); err != nil {
		return nil, unavailable("insert requester", err)
	}

	const lookup = `SELECT id, name FROM requesters WHERE LOWER(name) = LOWER($1)`
	var out domain.Requester
	if err := r.pool.QueryRow(ctx, lookup, name).Scan(&out.ID, &out.Name); err != nil {
		return nil, unavailable("get requester", err)
	}
	return &out, nil
}

func (r *requesterRepository) List(ctx context.Context) ([]domain.Requester, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM requesters ORDER BY LOWER(name) ASC`)
	if err != nil {
		return nil, unavailable("list requesters", err)
	}
	defer rows.Close()

	var result []domain.Requester
	for rows.Next() {
		var item domain.Requester
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, unavailable("scan requester", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list requesters", err)
	}
	return result, nil
}

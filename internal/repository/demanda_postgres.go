package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

const demandaColumns = `id, number, requester, description, references_data, deliveries_data, status, created_at, period_key`

type demandaRepository struct {
	pool *pgxpool.Pool
}

// NewDemandaRepository instantiates the Postgres repository.
func NewDemandaRepository(pool *pgxpool.Pool) DemandaRepository {
	return &demandaRepository{pool: pool}
}

func (r *demandaRepository) Create(ctx context.Context, d *domain.Demanda) error {
	const query = `
        INSERT INTO demandas (` + demandaColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	refs, err := encodeAttachments(d.References)
	if err != nil {
		return err
	}
	deliveries, err := encodeAttachments(d.Deliveries)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Number,
		d.Requester,
		d.Description,
		refs,
		deliveries,
		d.Status,
		d.CreatedAt,
		d.PeriodKey,
	); err != nil {
		return unavailable("insert demanda", err)
	}
	return nil
}

func (r *demandaRepository) GetByID(ctx context.Context, id string) (*domain.Demanda, error) {
	const query = `SELECT ` + demandaColumns + ` FROM demandas WHERE id=$1`
	d, err := scanDemanda(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, unavailable("get demanda", err)
	}
	return d, nil
}

// Update locks the row for the duration of mutate so concurrent edits of one
// demanda apply one after another.
func (r *demandaRepository) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Demanda, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin update", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const selectQuery = `SELECT ` + demandaColumns + ` FROM demandas WHERE id=$1 FOR UPDATE`
	d, err := scanDemanda(tx.QueryRow(ctx, selectQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, unavailable("lock demanda", err)
	}

	if err := mutate(d); err != nil {
		return nil, err
	}
	d.Normalize()

	refs, err := encodeAttachments(d.References)
	if err != nil {
		return nil, err
	}
	deliveries, err := encodeAttachments(d.Deliveries)
	if err != nil {
		return nil, err
	}

	const updateQuery = `
        UPDATE demandas SET requester=$1, description=$2, references_data=$3, deliveries_data=$4, status=$5
        WHERE id=$6`
	if _, err := tx.Exec(ctx, updateQuery, d.Requester, d.Description, refs, deliveries, d.Status, id); err != nil {
		return nil, unavailable("update demanda", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit update", err)
	}
	return d, nil
}

func (r *demandaRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM demandas WHERE id=$1`, id)
	if err != nil {
		return unavailable("delete demanda", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (r *demandaRepository) List(ctx context.Context, filter DemandaFilter) ([]domain.Demanda, error) {
	base := `SELECT ` + demandaColumns + ` FROM demandas`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.PeriodKey != "" {
		args = append(args, filter.PeriodKey)
		clauses = append(clauses, fmt.Sprintf("period_key=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if strings.TrimSpace(filter.Requester) != "" {
		args = append(args, likePattern(filter.Requester))
		clauses = append(clauses, fmt.Sprintf("requester ILIKE $%d", len(args)))
	}
	if strings.TrimSpace(filter.SearchTerm) != "" {
		args = append(args, likePattern(filter.SearchTerm))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(number ILIKE %s OR description ILIKE %s OR requester ILIKE %s)", placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC`, base, strings.Join(clauses, " AND "))
	return r.query(ctx, "list demandas", query, args...)
}

func (r *demandaRepository) ListByPeriod(ctx context.Context, periodKey string) ([]domain.Demanda, error) {
	const query = `SELECT ` + demandaColumns + ` FROM demandas WHERE period_key=$1 ORDER BY created_at ASC`
	return r.query(ctx, "list period", query, periodKey)
}

func (r *demandaRepository) Periods(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT period_key FROM demandas`)
	if err != nil {
		return nil, unavailable("list periods", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, unavailable("scan period", err)
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list periods", err)
	}
	domain.SortPeriodsDesc(keys)
	return keys, nil
}

func (r *demandaRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Demanda, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var result []domain.Demanda
	for rows.Next() {
		d, err := scanDemanda(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return result, nil
}

func scanDemanda(row pgx.Row) (*domain.Demanda, error) {
	var (
		d          domain.Demanda
		refs       []byte
		deliveries []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.Number,
		&d.Requester,
		&d.Description,
		&refs,
		&deliveries,
		&d.Status,
		&d.CreatedAt,
		&d.PeriodKey,
	); err != nil {
		return nil, err
	}
	var err error
	if d.References, err = decodeAttachments(refs); err != nil {
		return nil, fmt.Errorf("decode references of %s: %w", d.ID, err)
	}
	if d.Deliveries, err = decodeAttachments(deliveries); err != nil {
		return nil, fmt.Errorf("decode deliveries of %s: %w", d.ID, err)
	}
	return &d, nil
}

// encodeAttachments maps "no attachments" to SQL NULL.
func encodeAttachments(items []domain.Attachment) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return string(raw), nil
}

// decodeAttachments treats NULL and [] alike.
func decodeAttachments(raw []byte) ([]domain.Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []domain.Attachment
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return domain.NormalizeAttachments(items), nil
}

func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

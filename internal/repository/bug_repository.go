package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// BugRepository stores the local bug corpus. Records are kept in the
// tracker's native wire shape so the rollback engine sees exactly what
// the upstream fetch produced.
type BugRepository interface {
	Upsert(ctx context.Context, bug *domain.BugRecord) error
	GetByID(ctx context.Context, id int64) (*domain.BugRecord, error)
	Stream(ctx context.Context, products []string) iter.Seq2[*domain.BugRecord, error]
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

type bugRepository struct {
	pool *pgxpool.Pool
}

// NewBugRepository builds repository.
func NewBugRepository(pool *pgxpool.Pool) BugRepository {
	return &bugRepository{pool: pool}
}

func (r *bugRepository) Upsert(ctx context.Context, bug *domain.BugRecord) error {
	record, err := json.Marshal(bug)
	if err != nil {
		return fmt.Errorf("encode bug %d: %w", bug.ID, err)
	}
	const query = `
        INSERT INTO bug_records (id, product, record, fetched_at, updated_at)
        VALUES ($1, $2, $3, now(), now())
        ON CONFLICT (id) DO UPDATE SET
            product = EXCLUDED.product,
            record = EXCLUDED.record,
            updated_at = now()`
	_, err = r.pool.Exec(ctx, query, bug.ID, bug.Product(), record)
	return err
}

func (r *bugRepository) GetByID(ctx context.Context, id int64) (*domain.BugRecord, error) {
	const query = `SELECT record FROM bug_records WHERE id=$1`
	var record []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(&record); err != nil {
		return nil, err
	}
	return decodeRecord(id, record)
}

// Stream yields corpus records in ID order, optionally filtered to the
// given products. Decoding errors are yielded with a nil record so a
// corrupt row does not end the sweep.
func (r *bugRepository) Stream(ctx context.Context, products []string) iter.Seq2[*domain.BugRecord, error] {
	return func(yield func(*domain.BugRecord, error) bool) {
		var (
			rows pgx.Rows
			err  error
		)
		if len(products) > 0 {
			const query = `SELECT id, record FROM bug_records WHERE product = ANY($1) ORDER BY id`
			rows, err = r.pool.Query(ctx, query, products)
		} else {
			const query = `SELECT id, record FROM bug_records ORDER BY id`
			rows, err = r.pool.Query(ctx, query)
		}
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id     int64
				record []byte
			)
			if err := rows.Scan(&id, &record); err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			bug, err := decodeRecord(id, record)
			if !yield(bug, err) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *bugRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM bug_records WHERE id=$1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *bugRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM bug_records`
	var count int64
	err := r.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

func decodeRecord(id int64, record []byte) (*domain.BugRecord, error) {
	var bug domain.BugRecord
	if err := json.Unmarshal(record, &bug); err != nil {
		return nil, fmt.Errorf("decode bug %d: %w", id, err)
	}
	return &bug, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"movemarket/internal/utils"
	"movemarket/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	unlockTableName  = "movemarket.request_unlocks"
	paymentTableName = "movemarket.payments"
	jobTableName     = "movemarket.company_jobs"
)

var (
	unlockColumns  = utils.StructTagValues(types.Unlock{})
	paymentColumns = utils.StructTagValues(types.Payment{})
	jobColumns     = utils.StructTagValues(types.CompanyJob{})
)

type UnlockRepository struct {
	pool *pgxpool.Pool
}

func NewUnlockRepository(pool *pgxpool.Pool) *UnlockRepository {
	return &UnlockRepository{pool: pool}
}

func (r *UnlockRepository) Exists(ctx context.Context, requestID, companyID string) (bool, error) {
	query, args, err := psql().
		Select("1").
		From(unlockTableName).
		Where(sq.Eq{"request_id": requestID, "company_id": companyID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate unlock-exists query: %w", err)
	}

	var one int
	err = pgxscan.Get(ctx, r.pool, &one, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check unlock record: %w", err)
	}

	return true, nil
}

// Create records an unlock purchase in one transaction. The unlock row
// insert is conditional on the (request, company) pair being absent;
// the audit payment row and the dashboard job row are only written when
// the pair was actually inserted, so a repeat unlock is a clean no-op.
// The returned bool reports whether this call claimed the pair.
func (r *UnlockRepository) Create(ctx context.Context, unlock *types.Unlock, payment *types.Payment, job *types.CompanyJob) (bool, error) {
	now := time.Now()
	unlock.CreatedAt = now
	payment.CreatedAt = now
	job.CreatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin unlock transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql().
		Insert(unlockTableName).
		SetMap(utils.StructToMap(unlock)).
		Suffix("ON CONFLICT (request_id, company_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate insert unlock query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to create unlock record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Pair already unlocked, nothing more to record.
		return false, tx.Commit(ctx)
	}

	query, args, err = psql().
		Insert(paymentTableName).
		SetMap(utils.StructToMap(payment)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate insert payment query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to create payment log: %w", err)
	}

	query, args, err = psql().
		Insert(jobTableName).
		SetMap(utils.StructToMap(job)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate insert job query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to create company job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit unlock transaction: %w", err)
	}

	return true, nil
}

func (r *UnlockRepository) PaymentsByCompany(ctx context.Context, companyID string) ([]*types.Payment, error) {
	query, args, err := psql().
		Select(paymentColumns...).
		From(paymentTableName).
		Where(sq.Eq{"company_id": companyID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payments-by-company query: %w", err)
	}

	var payments = make([]*types.Payment, 0)
	err = pgxscan.Select(ctx, r.pool, &payments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments by company: %w", err)
	}

	return payments, nil
}

func (r *UnlockRepository) JobsByCompany(ctx context.Context, companyID string) ([]*types.CompanyJob, error) {
	query, args, err := psql().
		Select(jobColumns...).
		From(jobTableName).
		Where(sq.Eq{"company_id": companyID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate jobs-by-company query: %w", err)
	}

	var jobs = make([]*types.CompanyJob, 0)
	err = pgxscan.Select(ctx, r.pool, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs by company: %w", err)
	}

	return jobs, nil
}

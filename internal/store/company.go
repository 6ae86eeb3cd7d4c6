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

const companyTableName = "movemarket.companies"

var companyColumns = utils.StructTagValues(types.Company{})

type CompanyRepository struct {
	pool *pgxpool.Pool
}

func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

func (r *CompanyRepository) Company(ctx context.Context, companyID string) (*types.Company, error) {
	query, args, err := psql().
		Select(companyColumns...).
		From(companyTableName).
		Where(sq.Eq{"id": companyID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate company query: %w", err)
	}

	var company types.Company
	err = pgxscan.Get(ctx, r.pool, &company, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to fetch company: %w", err)
	}

	return &company, nil
}

func (r *CompanyRepository) CompanyByOwner(ctx context.Context, ownerID string) (*types.Company, error) {
	query, args, err := psql().
		Select(companyColumns...).
		From(companyTableName).
		Where(sq.Eq{"owner_id": ownerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate company-by-owner query: %w", err)
	}

	var company types.Company
	err = pgxscan.Get(ctx, r.pool, &company, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to fetch company by owner: %w", err)
	}

	return &company, nil
}

// Create inserts the company profile and flips the owner's role to
// company in the same transaction. The role transition happens here and
// nowhere else.
func (r *CompanyRepository) Create(ctx context.Context, company *types.Company) error {
	now := time.Now()
	company.ID = utils.NanoID()
	company.CreatedAt = now
	company.UpdatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create company transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql().
		Insert(companyTableName).
		SetMap(utils.StructToMap(company)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert company query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}

	query, args, err = psql().
		Update(userTableName).
		Set("role", types.RoleCompany).
		Set("updated_at", now).
		Where(sq.Eq{"id": company.OwnerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate owner role query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set owner role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit create company transaction: %w", err)
	}

	return nil
}

func (r *CompanyRepository) SetApproved(ctx context.Context, companyID string, approved bool) error {
	query, args, err := psql().
		Update(companyTableName).
		Set("approved", approved).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": companyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate approve company query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to update company approval")
}

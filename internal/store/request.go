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
	requestTableName = "movemarket.requests"
	contactTableName = "movemarket.request_contacts"
)

var requestColumns = utils.StructTagValues(types.Request{})

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func (r *RequestRepository) Request(ctx context.Context, requestID string) (*types.Request, error) {
	query, args, err := psql().
		Select(requestColumns...).
		From(requestTableName).
		Where(sq.Eq{"id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request query: %w", err)
	}

	var request types.Request
	err = pgxscan.Get(ctx, r.pool, &request, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}

	return &request, nil
}

func (r *RequestRepository) RequestsByUser(ctx context.Context, userID string) ([]*types.Request, error) {
	query, args, err := psql().
		Select(requestColumns...).
		From(requestTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate requests-by-user query: %w", err)
	}

	var requests = make([]*types.Request, 0)
	err = pgxscan.Select(ctx, r.pool, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests by user: %w", err)
	}

	return requests, nil
}

// RequestsByPickupCounties returns all requests when counties is empty,
// otherwise a membership match on the pickup county. Callers that hold
// more counties than the membership cap split them into chunks and union
// the results.
func (r *RequestRepository) RequestsByPickupCounties(ctx context.Context, counties []string) ([]*types.Request, error) {
	builder := psql().
		Select(requestColumns...).
		From(requestTableName).
		OrderBy("created_at desc")

	if len(counties) > 0 {
		builder = builder.Where(sq.Eq{"pickup_county": counties})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate requests-by-counties query: %w", err)
	}

	var requests = make([]*types.Request, 0)
	err = pgxscan.Select(ctx, r.pool, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests by counties: %w", err)
	}

	return requests, nil
}

func (r *RequestRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query, args, err := psql().
		Select("1").
		From(requestTableName).
		Where(sq.Eq{"code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate code-exists query: %w", err)
	}

	var one int
	err = pgxscan.Get(ctx, r.pool, &one, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check request code: %w", err)
	}

	return true, nil
}

// AssignCode backfills a short code onto a request that is missing one.
func (r *RequestRepository) AssignCode(ctx context.Context, requestID, code string) error {
	query, args, err := psql().
		Update(requestTableName).
		Set("code", code).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate assign code query for request %s: %w", requestID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to assign request code")
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, requestID string, status types.RequestStatus) error {
	query, args, err := psql().
		Update(requestTableName).
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update status query for request %s: %w", requestID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to update request status")
}

func (r *RequestRepository) DeleteRequest(ctx context.Context, requestID string) error {
	query, args, err := psql().
		Delete(requestTableName).
		Where(sq.Eq{"id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete request query for request %s: %w", requestID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete request")
}

// Submit materializes a wizard submission in one transaction: the request
// row (no PII), its contact sub-record, a merge upsert of the customer
// profile, and removal of the user's draft.
func (r *RequestRepository) Submit(ctx context.Context, request *types.Request, contact *types.RequestContact) error {
	now := time.Now()
	request.ID = utils.NanoID()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.Status = types.RequestStatusNew

	contact.RequestID = request.ID
	contact.CreatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin submit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql().
		Insert(requestTableName).
		SetMap(utils.StructToMap(request)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert request query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	query, args, err = psql().
		Insert(contactTableName).
		SetMap(utils.StructToMap(contact)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert contact query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create request contact: %w", err)
	}

	query, args, err = psql().
		Insert(userTableName).
		Columns("id", "email", "name", "phone", "role", "created_at", "updated_at").
		Values(request.UserID, nullable(contact.Email), nullable(contact.Name), nullable(contact.Phone), types.RoleCustomer, now, now).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = COALESCE(EXCLUDED.email, " + userTableName + ".email), name = COALESCE(EXCLUDED.name, " + userTableName + ".name), phone = COALESCE(EXCLUDED.phone, " + userTableName + ".phone), updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert profile query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert customer profile: %w", err)
	}

	query, args, err = psql().
		Delete(draftTableName).
		Where(sq.Eq{"user_id": request.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete draft query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submit transaction: %w", err)
	}

	return nil
}

package store

import (
	"context"
	"fmt"

	"movemarket/internal/utils"
	"movemarket/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

var contactColumns = utils.StructTagValues(types.RequestContact{})

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func (r *ContactRepository) Contact(ctx context.Context, requestID string) (*types.RequestContact, error) {
	query, args, err := psql().
		Select(contactColumns...).
		From(contactTableName).
		Where(sq.Eq{"request_id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate contact query: %w", err)
	}

	var contact types.RequestContact
	err = pgxscan.Get(ctx, r.pool, &contact, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to fetch request contact: %w", err)
	}

	return &contact, nil
}

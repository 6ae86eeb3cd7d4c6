package store

import (
	"context"
	"fmt"
	"time"

	"movemarket/internal/utils"
	"movemarket/pkg/types"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activityTableName = "movemarket.activity_logs"

var activityColumns = utils.StructTagValues(types.ActivityLog{})

type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func (r *ActivityRepository) Log(ctx context.Context, actorID, action, subject string) error {
	entry := &types.ActivityLog{
		ID:        utils.NanoID(),
		ActorID:   actorID,
		Action:    action,
		Subject:   subject,
		CreatedAt: time.Now(),
	}

	query, args, err := psql().
		Insert(activityTableName).
		SetMap(utils.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert activity query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to log activity")
}

func (r *ActivityRepository) Recent(ctx context.Context, limit uint64) ([]*types.ActivityLog, error) {
	query, args, err := psql().
		Select(activityColumns...).
		From(activityTableName).
		OrderBy("created_at desc").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate recent activity query: %w", err)
	}

	var entries = make([]*types.ActivityLog, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent activity: %w", err)
	}

	return entries, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"movemarket/internal/utils"
	"movemarket/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const draftTableName = "movemarket.drafts"

type DraftRepository struct {
	pool *pgxpool.Pool
}

func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

type draftRow struct {
	UserID    string    `db:"user_id"`
	Step      int       `db:"step"`
	Form      []byte    `db:"form"`
	Seq       uint64    `db:"seq"`
	UpdatedAt time.Time `db:"updated_at"`
}

var draftColumns = utils.StructTagValues(draftRow{})

func (r *DraftRepository) Draft(ctx context.Context, userID string) (*types.Draft, error) {
	query, args, err := psql().
		Select(draftColumns...).
		From(draftTableName).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate draft query: %w", err)
	}

	var row draftRow
	err = pgxscan.Get(ctx, r.pool, &row, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to fetch draft: %w", err)
	}

	draft := &types.Draft{
		UserID:    row.UserID,
		Step:      row.Step,
		Seq:       row.Seq,
		UpdatedAt: row.UpdatedAt,
	}

	if err := json.Unmarshal(row.Form, &draft.Form); err != nil {
		return nil, fmt.Errorf("failed to decode draft form: %w", err)
	}

	return draft, nil
}

// Save upserts the user's draft. The write carries the engine's autosave
// sequence number and the conflict clause only applies it when the row's
// stored seq is not ahead, so an autosave that arrives late cannot
// overwrite a newer one.
func (r *DraftRepository) Save(ctx context.Context, draft *types.Draft) error {
	draft.UpdatedAt = time.Now()

	form, err := json.Marshal(draft.Form)
	if err != nil {
		return fmt.Errorf("failed to encode draft form: %w", err)
	}

	query, args, err := psql().
		Insert(draftTableName).
		Columns("user_id", "step", "form", "seq", "updated_at").
		Values(draft.UserID, draft.Step, form, draft.Seq, draft.UpdatedAt).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET step = EXCLUDED.step, form = EXCLUDED.form, seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at WHERE " + draftTableName + ".seq <= EXCLUDED.seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate save draft query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to save draft")
}

func (r *DraftRepository) Delete(ctx context.Context, userID string) error {
	query, args, err := psql().
		Delete(draftTableName).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete draft query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete draft")
}

package types

import "time"

// Draft is a per-user snapshot of in-progress wizard state, keyed 1:1 by
// user id. Media is persisted as file names only: the bytes are not
// serializable into the draft, so after a resume the user re-attaches
// files. Seq is a monotonically increasing autosave sequence; the store
// ignores writes whose seq is behind the row's, so a slow early autosave
// cannot clobber a newer one.
type Draft struct {
	UserID    string    `db:"user_id"`
	Step      int       `db:"step"`
	Form      DraftForm `db:"form"` // jsonb
	Seq       uint64    `db:"seq"`
	UpdatedAt time.Time `db:"updated_at"`
}

type DraftForm struct {
	Fields     map[string]string `json:"fields"`
	MediaNames []string          `json:"mediaNames"`
}

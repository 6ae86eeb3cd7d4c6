package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"movemarket/internal/storage"
	"movemarket/pkg/types"

	"github.com/sirupsen/logrus"
)

const DefaultAutosaveDelay = 1200 * time.Millisecond

var (
	ErrValidation         = errors.New("required fields are missing for this step")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrNotAuthenticated   = errors.New("user identity is not known")
)

type DraftStore interface {
	Draft(ctx context.Context, userID string) (*types.Draft, error)
	Save(ctx context.Context, draft *types.Draft) error
	Delete(ctx context.Context, userID string) error
}

type SubmissionStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	Submit(ctx context.Context, request *types.Request, contact *types.RequestContact) error
}

type BlobStore interface {
	UploadAll(ctx context.Context, prefix string, uploads []storage.Upload, progress storage.ProgressFunc) ([]string, error)
}

type Mailer interface {
	Send(templateID, recipient string, payload map[string]string) error
}

// Engine is the per-user wizard state machine: an ordered step cursor
// over a form-data map, with debounced draft autosave, resume, and a
// transactional submit. One engine serves one authenticated user.
type Engine struct {
	logger    *logrus.Logger
	drafts    DraftStore
	store     SubmissionStore
	blobs     BlobStore
	mail      Mailer
	uploadURL string
	userID    string

	mu         sync.Mutex
	step       int
	fields     map[string]string
	media      []storage.Upload
	hasDraft   bool
	submitting bool
	seq        uint64

	sched *Scheduler
}

type Option func(*Engine)

// WithAutosaveDelay overrides the debounce settling period.
func WithAutosaveDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.sched = NewScheduler(d, e.autosave)
	}
}

func New(
	logger *logrus.Logger,
	drafts DraftStore,
	store SubmissionStore,
	blobs BlobStore,
	mail Mailer,
	uploadURL string,
	userID string,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:    logger,
		drafts:    drafts,
		store:     store,
		blobs:     blobs,
		mail:      mail,
		uploadURL: uploadURL,
		userID:    userID,
		fields:    make(map[string]string),
	}
	e.sched = NewScheduler(DefaultAutosaveDelay, e.autosave)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Close cancels any pending autosave. Call when the owning session ends.
func (e *Engine) Close() {
	e.sched.Stop()
}

// Resume loads the user's draft, if any, into the engine. A forceNew
// resume deletes the draft and starts from defaults regardless of what
// exists. Called once after the engine is created.
func (e *Engine) Resume(ctx context.Context, forceNew bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if forceNew {
		e.resetLocked()
		if err := e.drafts.Delete(ctx, e.userID); err != nil {
			return err
		}
		return nil
	}

	draft, err := e.drafts.Draft(ctx, e.userID)
	if err != nil {
		if errors.Is(err, types.ErrDraftNotFound) {
			return nil
		}
		return err
	}

	e.step = draft.Step
	e.fields = make(map[string]string, len(draft.Form.Fields))
	for k, v := range draft.Form.Fields {
		e.fields[k] = v
	}
	e.hasDraft = true
	e.seq = draft.Seq

	// Media bytes are not persisted in drafts; the user re-attaches
	// files after resuming. Only the names came back.
	return nil
}

// SetField records a form value and schedules an autosave.
func (e *Engine) SetField(name, value string) {
	e.mu.Lock()
	e.fields[name] = value
	e.mu.Unlock()

	e.sched.Bump()
}

// AttachMedia queues a file for upload at submission time.
func (e *Engine) AttachMedia(upload storage.Upload) {
	e.mu.Lock()
	e.media = append(e.media, upload)
	e.mu.Unlock()

	e.sched.Bump()
}

// Advance validates the current step and moves forward on success,
// clamped to the last step. Returns ErrValidation and leaves the cursor
// in place otherwise.
func (e *Engine) Advance() error {
	e.mu.Lock()

	if !ValidateStep(e.step, e.fields) {
		e.mu.Unlock()
		return ErrValidation
	}

	if e.step < len(Steps)-1 {
		e.step++
	}
	e.mu.Unlock()

	e.sched.Bump()
	return nil
}

// Retreat moves back one step, clamped to zero. Never validated.
func (e *Engine) Retreat() {
	e.mu.Lock()
	if e.step > 0 {
		e.step--
	}
	e.mu.Unlock()

	e.sched.Bump()
}

type State struct {
	Step       int               `json:"step"`
	StepName   string            `json:"stepName"`
	Fields     map[string]string `json:"fields"`
	MediaNames []string          `json:"mediaNames"`
	HasDraft   bool              `json:"hasDraft"`
	Submitting bool              `json:"submitting"`
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}

	names := make([]string, 0, len(e.media))
	for _, m := range e.media {
		names = append(names, m.Name)
	}

	return State{
		Step:       e.step,
		StepName:   Steps[e.step].Name,
		Fields:     fields,
		MediaNames: names,
		HasDraft:   e.hasDraft,
		Submitting: e.submitting,
	}
}

// autosave persists the current draft snapshot. Failures are logged and
// swallowed: a missed autosave never surfaces to the user or blocks
// further editing.
func (e *Engine) autosave() {
	e.mu.Lock()

	if e.submitting || e.userID == "" {
		e.mu.Unlock()
		return
	}

	// An empty engine has nothing worth a draft row; a timer that raced
	// a submit or reset lands here.
	if e.step == 0 && len(e.fields) == 0 && len(e.media) == 0 {
		e.mu.Unlock()
		return
	}

	e.seq++
	draft := e.snapshotLocked()
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.drafts.Save(ctx, draft); err != nil {
		e.logger.WithError(err).WithField("user_id", draft.UserID).Warn("draft autosave failed")
		return
	}

	e.mu.Lock()
	e.hasDraft = true
	e.mu.Unlock()
}

func (e *Engine) snapshotLocked() *types.Draft {
	fields := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}

	names := make([]string, 0, len(e.media))
	for _, m := range e.media {
		names = append(names, m.Name)
	}

	return &types.Draft{
		UserID: e.userID,
		Step:   e.step,
		Seq:    e.seq,
		Form: types.DraftForm{
			Fields:     fields,
			MediaNames: names,
		},
	}
}

func (e *Engine) resetLocked() {
	e.step = 0
	e.fields = make(map[string]string)
	e.media = nil
	e.hasDraft = false
	e.seq = 0
}

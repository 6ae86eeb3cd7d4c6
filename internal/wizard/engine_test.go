package wizard

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"movemarket/internal/storage"
	"movemarket/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type draftStoreMock struct {
	mu      sync.Mutex
	draft   *types.Draft
	saves   []*types.Draft
	deletes int
	saveErr error
}

func (m *draftStoreMock) Draft(ctx context.Context, userID string) (*types.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.draft == nil {
		return nil, types.ErrDraftNotFound
	}
	return m.draft, nil
}

func (m *draftStoreMock) Save(ctx context.Context, draft *types.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, draft)
	return nil
}

func (m *draftStoreMock) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	m.draft = nil
	return nil
}

func (m *draftStoreMock) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *draftStoreMock) lastSave() *types.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

type submissionStoreMock struct {
	mu         sync.Mutex
	collisions int
	checked    []string
	request    *types.Request
	contact    *types.RequestContact
	submitErr  error
	block      chan struct{}
}

func (m *submissionStoreMock) CodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checked = append(m.checked, code)
	if m.collisions > 0 {
		m.collisions--
		return true, nil
	}
	return false, nil
}

func (m *submissionStoreMock) Submit(ctx context.Context, request *types.Request, contact *types.RequestContact) error {
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitErr != nil {
		return m.submitErr
	}
	m.request = request
	m.contact = contact
	return nil
}

type blobStoreMock struct {
	mu      sync.Mutex
	prefix  string
	uploads []storage.Upload
	err     error
}

func (m *blobStoreMock) UploadAll(ctx context.Context, prefix string, uploads []storage.Upload, progress storage.ProgressFunc) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	m.prefix = prefix
	m.uploads = uploads

	urls := make([]string, 0, len(uploads))
	for _, u := range uploads {
		urls = append(urls, prefix+"/"+u.Name)
	}
	return urls, nil
}

type mailerMock struct {
	mu        sync.Mutex
	templates []string
	payloads  []map[string]string
	err       error
}

func (m *mailerMock) Send(templateID, recipient string, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.templates = append(m.templates, templateID)
	m.payloads = append(m.payloads, payload)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func validFields() map[string]string {
	return map[string]string{
		FieldServiceType:      "full-move",
		FieldPickupProperty:   "apartment",
		FieldPickupCounty:     "Cluj",
		FieldPickupCity:       "Cluj-Napoca",
		FieldDeliveryProperty: "house",
		FieldDeliveryCounty:   "Ilfov",
		FieldDeliveryCity:     "București",
		FieldMoveDate:         "2026-09-15",
		FieldSurveyMethod:     string(types.SurveyMethodVideoCall),
		FieldContactName:      "Ana Pop",
		FieldContactPhone:     "0722000000",
		FieldContactEmail:     "ana@example.com",
	}
}

func newTestEngine(t *testing.T, drafts *draftStoreMock, store *submissionStoreMock, blobs *blobStoreMock, mail *mailerMock) *Engine {
	t.Helper()

	engine := New(
		testLogger(),
		drafts,
		store,
		blobs,
		mail,
		"https://movemarket.test/upload",
		"user-1",
		WithAutosaveDelay(10*time.Millisecond),
	)
	t.Cleanup(engine.Close)

	return engine
}

func TestEngineAdvanceGatesOnValidation(t *testing.T) {
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	err := engine.Advance()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, engine.State().Step)

	engine.SetField(FieldServiceType, "full-move")
	require.NoError(t, engine.Advance())
	assert.Equal(t, 1, engine.State().Step)
	assert.Equal(t, "pickup-property", engine.State().StepName)
}

func TestEngineStepCursorClamps(t *testing.T) {
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	engine.Retreat()
	assert.Equal(t, 0, engine.State().Step)

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	for range len(Steps) + 3 {
		require.NoError(t, engine.Advance())
	}
	assert.Equal(t, len(Steps)-1, engine.State().Step)
}

func TestEngineAutosaveDebounces(t *testing.T) {
	drafts := &draftStoreMock{}
	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	engine.SetField(FieldServiceType, "full-move")
	engine.SetField(FieldPickupCounty, "Cluj")
	engine.SetField(FieldPickupCity, "Cluj-Napoca")

	require.Eventually(t, func() bool {
		return drafts.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	saved := drafts.lastSave()
	assert.Equal(t, "user-1", saved.UserID)
	assert.Equal(t, uint64(1), saved.Seq)
	assert.Equal(t, "full-move", saved.Form.Fields[FieldServiceType])
	assert.Equal(t, "Cluj-Napoca", saved.Form.Fields[FieldPickupCity])

	assert.True(t, engine.State().HasDraft)
}

func TestEngineAutosaveSequenceIncreases(t *testing.T) {
	drafts := &draftStoreMock{}
	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	engine.SetField(FieldServiceType, "full-move")
	require.Eventually(t, func() bool { return drafts.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	engine.SetField(FieldPickupCounty, "Cluj")
	require.Eventually(t, func() bool { return drafts.saveCount() == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(2), drafts.lastSave().Seq)
}

func TestEngineAutosaveFailureIsSwallowed(t *testing.T) {
	drafts := &draftStoreMock{saveErr: errors.New("connection refused")}
	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	engine.SetField(FieldServiceType, "full-move")

	time.Sleep(50 * time.Millisecond)
	assert.False(t, engine.State().HasDraft)
	assert.Equal(t, "full-move", engine.State().Fields[FieldServiceType])
}

func TestEngineCloseCancelsPendingAutosave(t *testing.T) {
	drafts := &draftStoreMock{}
	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	engine.SetField(FieldServiceType, "full-move")
	engine.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, drafts.saveCount())
}

func TestEngineResumeRestoresDraft(t *testing.T) {
	drafts := &draftStoreMock{
		draft: &types.Draft{
			UserID: "user-1",
			Step:   4,
			Seq:    7,
			Form: types.DraftForm{
				Fields: map[string]string{
					FieldServiceType:  "furniture-only",
					FieldPickupCounty: "Timiș",
				},
				MediaNames: []string{"sofa.jpg"},
			},
		},
	}

	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})
	require.NoError(t, engine.Resume(context.Background(), false))

	state := engine.State()
	assert.Equal(t, 4, state.Step)
	assert.Equal(t, "furniture-only", state.Fields[FieldServiceType])
	assert.True(t, state.HasDraft)
	// Draft media carries names only; bytes are re-attached by the user.
	assert.Empty(t, state.MediaNames)
}

func TestEngineResumeWithoutDraftStartsFresh(t *testing.T) {
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	require.NoError(t, engine.Resume(context.Background(), false))

	state := engine.State()
	assert.Equal(t, 0, state.Step)
	assert.Empty(t, state.Fields)
	assert.False(t, state.HasDraft)
}

func TestEngineForceNewDiscardsDraft(t *testing.T) {
	drafts := &draftStoreMock{
		draft: &types.Draft{
			UserID: "user-1",
			Step:   6,
			Form:   types.DraftForm{Fields: map[string]string{FieldServiceType: "full-move"}},
		},
	}

	engine := newTestEngine(t, drafts, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})
	require.NoError(t, engine.Resume(context.Background(), true))

	assert.Equal(t, 1, drafts.deletes)

	state := engine.State()
	assert.Equal(t, 0, state.Step)
	assert.Empty(t, state.Fields)
	assert.False(t, state.HasDraft)
}

func TestEngineSubmit(t *testing.T) {
	store := &submissionStoreMock{}
	engine := newTestEngine(t, &draftStoreMock{}, store, &blobStoreMock{}, &mailerMock{})

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	code, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Regexp(t, `^REQ-[0-9A-Z]{5}$`, code)

	require.NotNil(t, store.request)
	assert.Equal(t, code, store.request.Code)
	assert.Equal(t, "user-1", store.request.UserID)
	assert.Equal(t, "full-move", store.request.ServiceType)
	require.NotNil(t, store.request.MoveDate)
	assert.Equal(t, "2026-09-15", store.request.MoveDate.Format("2006-01-02"))
	assert.Equal(t, []string{}, store.request.MediaURLs)

	require.NotNil(t, store.contact)
	assert.Equal(t, "Ana Pop", store.contact.Name)
	assert.Equal(t, "ana@example.com", store.contact.Email)

	// A successful submission resets the engine for the next request.
	state := engine.State()
	assert.Equal(t, 0, state.Step)
	assert.Empty(t, state.Fields)
	assert.False(t, state.Submitting)
}

func TestEngineSubmitCancelsPendingAutosave(t *testing.T) {
	drafts := &draftStoreMock{}
	engine := New(
		testLogger(),
		drafts,
		&submissionStoreMock{},
		&blobStoreMock{},
		&mailerMock{},
		"https://movemarket.test/upload",
		"user-1",
		WithAutosaveDelay(80*time.Millisecond),
	)
	t.Cleanup(engine.Close)

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	_, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)

	// The debounce window opened by the last SetField is still open when
	// the submit lands. Letting it fire would write a fresh draft row for
	// a user whose submission just deleted theirs.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, drafts.saveCount())
	assert.False(t, engine.State().HasDraft)
}

func TestEngineSubmitValidatesAllSteps(t *testing.T) {
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, &mailerMock{})

	fields := validFields()
	delete(fields, FieldContactEmail)
	for name, value := range fields {
		engine.SetField(name, value)
	}

	_, err := engine.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEngineSubmitFlexibleDatesSkipsMoveDate(t *testing.T) {
	store := &submissionStoreMock{}
	engine := newTestEngine(t, &draftStoreMock{}, store, &blobStoreMock{}, &mailerMock{})

	fields := validFields()
	delete(fields, FieldMoveDate)
	fields[FieldFlexibleDates] = "true"
	for name, value := range fields {
		engine.SetField(name, value)
	}

	_, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)

	assert.Nil(t, store.request.MoveDate)
	assert.True(t, store.request.FlexibleDates)
}

func TestEngineSubmitRetriesCodeCollisions(t *testing.T) {
	store := &submissionStoreMock{collisions: 2}
	engine := newTestEngine(t, &draftStoreMock{}, store, &blobStoreMock{}, &mailerMock{})

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	code, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, store.checked, 3)
	assert.Equal(t, store.checked[2], code)
}

func TestEngineSubmitUploadsMediaForUploadNow(t *testing.T) {
	store := &submissionStoreMock{}
	blobs := &blobStoreMock{}
	engine := newTestEngine(t, &draftStoreMock{}, store, blobs, &mailerMock{})

	fields := validFields()
	fields[FieldSurveyMethod] = string(types.SurveyMethodUploadNow)
	for name, value := range fields {
		engine.SetField(name, value)
	}
	engine.AttachMedia(storage.Upload{Name: "hall.jpg", ContentType: "image/jpeg", Data: []byte{1}})
	engine.AttachMedia(storage.Upload{Name: "kitchen.jpg", ContentType: "image/jpeg", Data: []byte{2}})

	code, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "requests/"+code, blobs.prefix)
	assert.Len(t, blobs.uploads, 2)
	assert.Equal(t, []string{
		"requests/" + code + "/hall.jpg",
		"requests/" + code + "/kitchen.jpg",
	}, store.request.MediaURLs)
}

func TestEngineSubmitSendsUploadLaterMail(t *testing.T) {
	mail := &mailerMock{}
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, mail)

	fields := validFields()
	fields[FieldSurveyMethod] = string(types.SurveyMethodUploadLater)
	for name, value := range fields {
		engine.SetField(name, value)
	}

	code, err := engine.Submit(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, mail.templates, 1)
	assert.Equal(t, "request-upload-later", mail.templates[0])
	assert.Equal(t, code, mail.payloads[0]["code"])
	assert.Contains(t, mail.payloads[0]["upload_url"], code)
}

func TestEngineSubmitMailFailureDoesNotFailSubmission(t *testing.T) {
	mail := &mailerMock{err: errors.New("smtp timeout")}
	engine := newTestEngine(t, &draftStoreMock{}, &submissionStoreMock{}, &blobStoreMock{}, mail)

	fields := validFields()
	fields[FieldSurveyMethod] = string(types.SurveyMethodUploadLater)
	for name, value := range fields {
		engine.SetField(name, value)
	}

	_, err := engine.Submit(context.Background(), nil)
	assert.NoError(t, err)
}

func TestEngineSubmitFailurePreservesState(t *testing.T) {
	store := &submissionStoreMock{submitErr: errors.New("deadlock detected")}
	engine := newTestEngine(t, &draftStoreMock{}, store, &blobStoreMock{}, &mailerMock{})

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	_, err := engine.Submit(context.Background(), nil)
	require.Error(t, err)

	state := engine.State()
	assert.False(t, state.Submitting)
	assert.Equal(t, "full-move", state.Fields[FieldServiceType])

	// The engine is submittable again after the failure.
	store.mu.Lock()
	store.submitErr = nil
	store.mu.Unlock()

	_, err = engine.Submit(context.Background(), nil)
	assert.NoError(t, err)
}

func TestEngineSubmitRejectsConcurrentSubmission(t *testing.T) {
	store := &submissionStoreMock{block: make(chan struct{})}
	engine := newTestEngine(t, &draftStoreMock{}, store, &blobStoreMock{}, &mailerMock{})

	for name, value := range validFields() {
		engine.SetField(name, value)
	}

	done := make(chan error, 1)
	go func() {
		_, err := engine.Submit(context.Background(), nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return engine.State().Submitting
	}, time.Second, 5*time.Millisecond)

	_, err := engine.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(store.block)
	require.NoError(t, <-done)
}

func TestEngineSubmitRequiresIdentity(t *testing.T) {
	engine := New(
		testLogger(),
		&draftStoreMock{},
		&submissionStoreMock{},
		&blobStoreMock{},
		&mailerMock{},
		"https://movemarket.test/upload",
		"",
	)
	defer engine.Close()

	_, err := engine.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

package leads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"movemarket/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestStoreMock struct {
	byID     map[string]*types.Request
	queries  [][]string
	codes    map[string]bool
	assigned map[string]string
	listErr  error
}

func newRequestStoreMock(requests ...*types.Request) *requestStoreMock {
	m := &requestStoreMock{
		byID:     make(map[string]*types.Request),
		codes:    make(map[string]bool),
		assigned: make(map[string]string),
	}
	for _, r := range requests {
		m.byID[r.ID] = r
		if r.Code != "" {
			m.codes[r.Code] = true
		}
	}
	return m
}

func (m *requestStoreMock) Request(ctx context.Context, requestID string) (*types.Request, error) {
	request, ok := m.byID[requestID]
	if !ok {
		return nil, types.ErrRequestNotFound
	}
	return request, nil
}

func (m *requestStoreMock) RequestsByPickupCounties(ctx context.Context, counties []string) ([]*types.Request, error) {
	m.queries = append(m.queries, counties)

	if m.listErr != nil {
		return nil, m.listErr
	}

	match := func(county string) bool {
		if len(counties) == 0 {
			return true
		}
		for _, c := range counties {
			if c == county {
				return true
			}
		}
		return false
	}

	var results []*types.Request
	for _, r := range m.byID {
		if match(r.PickupCounty) {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *requestStoreMock) CodeExists(ctx context.Context, code string) (bool, error) {
	return m.codes[code], nil
}

func (m *requestStoreMock) AssignCode(ctx context.Context, requestID, code string) error {
	m.assigned[requestID] = code
	m.codes[code] = true
	return nil
}

type contactStoreMock struct {
	contacts map[string]*types.RequestContact
	err      error
	fetches  int
}

func (m *contactStoreMock) Contact(ctx context.Context, requestID string) (*types.RequestContact, error) {
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	contact, ok := m.contacts[requestID]
	if !ok {
		return nil, types.ErrContactNotFound
	}
	return contact, nil
}

type unlockStoreMock struct {
	pairs     map[string]bool // requestID + "/" + companyID
	unlocks   []*types.Unlock
	payments  []*types.Payment
	jobs      []*types.CompanyJob
	existsErr error
	createErr error
}

func newUnlockStoreMock() *unlockStoreMock {
	return &unlockStoreMock{pairs: make(map[string]bool)}
}

func pairKey(requestID, companyID string) string {
	return requestID + "/" + companyID
}

func (m *unlockStoreMock) Exists(ctx context.Context, requestID, companyID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.pairs[pairKey(requestID, companyID)], nil
}

func (m *unlockStoreMock) Create(ctx context.Context, unlock *types.Unlock, payment *types.Payment, job *types.CompanyJob) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}

	key := pairKey(unlock.RequestID, unlock.CompanyID)
	if m.pairs[key] {
		return false, nil
	}

	m.pairs[key] = true
	m.unlocks = append(m.unlocks, unlock)
	m.payments = append(m.payments, payment)
	m.jobs = append(m.jobs, job)
	return true, nil
}

func (m *unlockStoreMock) JobsByCompany(ctx context.Context, companyID string) ([]*types.CompanyJob, error) {
	var jobs []*types.CompanyJob
	for _, j := range m.jobs {
		if j.CompanyID == companyID {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *unlockStoreMock) PaymentsByCompany(ctx context.Context, companyID string) ([]*types.Payment, error) {
	var payments []*types.Payment
	for _, p := range m.payments {
		if p.CompanyID == companyID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

type chargerMock struct {
	mu      sync.Mutex
	delay   time.Duration
	charges []string
	err     error
}

func (m *chargerMock) Charge(ctx context.Context, companyID, requestID string, amountCents int64, currency string) (string, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	ref := fmt.Sprintf("pi_%s_%s_%d", companyID, requestID, len(m.charges))
	m.charges = append(m.charges, ref)
	return ref, nil
}

func (m *chargerMock) chargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

type activityLoggerMock struct {
	actions []string
	err     error
}

func (m *activityLoggerMock) Log(ctx context.Context, actorID, action, subject string) error {
	if m.err != nil {
		return m.err
	}
	m.actions = append(m.actions, action)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixture struct {
	requests *requestStoreMock
	contacts *contactStoreMock
	unlocks  *unlockStoreMock
	charger  *chargerMock
	activity *activityLoggerMock
	service  *Service
}

func newFixture(requests ...*types.Request) *fixture {
	f := &fixture{
		requests: newRequestStoreMock(requests...),
		contacts: &contactStoreMock{contacts: make(map[string]*types.RequestContact)},
		unlocks:  newUnlockStoreMock(),
		charger:  &chargerMock{},
		activity: &activityLoggerMock{},
	}
	f.service = NewService(testLogger(), f.requests, f.contacts, f.unlocks, f.charger, f.activity, 2900, "ron")
	return f
}

func request(id, county string, createdAt time.Time) *types.Request {
	return &types.Request{
		ID:           id,
		Code:         "REQ-" + id,
		PickupCounty: county,
		CreatedAt:    createdAt,
	}
}

func TestListRequestsNoCountiesReturnsAll(t *testing.T) {
	now := time.Now()
	f := newFixture(
		request("A1", "Cluj", now.Add(-time.Hour)),
		request("B2", "Ilfov", now),
	)

	results, err := f.service.ListRequests(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "B2", results[0].ID)
	assert.Equal(t, "A1", results[1].ID)

	require.Len(t, f.requests.queries, 1)
	assert.Nil(t, f.requests.queries[0])
}

func TestListRequestsChunksLargeCountySelections(t *testing.T) {
	f := newFixture(request("A1", "C3", time.Now()))

	counties := make([]string, 0, 25)
	for i := range 25 {
		counties = append(counties, fmt.Sprintf("C%d", i))
	}

	results, err := f.service.ListRequests(context.Background(), counties)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, f.requests.queries, 3)
	assert.Len(t, f.requests.queries[0], 10)
	assert.Len(t, f.requests.queries[1], 10)
	assert.Len(t, f.requests.queries[2], 5)
}

func TestListRequestsDeduplicatesAcrossChunks(t *testing.T) {
	f := newFixture(request("A1", "C0", time.Now()))

	// The same county appears in two chunks; the request must come back once.
	counties := make([]string, 0, 11)
	for i := range 10 {
		counties = append(counties, fmt.Sprintf("C%d", i))
	}
	counties = append(counties, "C0")

	results, err := f.service.ListRequests(context.Background(), counties)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListRequestsSortsNewestFirst(t *testing.T) {
	now := time.Now()
	f := newFixture(
		request("A1", "Cluj", now.Add(-2*time.Hour)),
		request("B2", "Cluj", now),
		request("C3", "Cluj", now.Add(-time.Hour)),
	)

	results, err := f.service.ListRequests(context.Background(), []string{"Cluj"})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "B2", results[0].ID)
	assert.Equal(t, "C3", results[1].ID)
	assert.Equal(t, "A1", results[2].ID)
}

func TestListRequestsBackfillsMissingCodes(t *testing.T) {
	r := request("A1", "Cluj", time.Now())
	r.Code = ""
	f := newFixture(r)

	results, err := f.service.ListRequests(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Code)
	assert.Equal(t, results[0].Code, f.requests.assigned["A1"])
}

func TestIsUnlockedFailsClosed(t *testing.T) {
	f := newFixture()
	f.unlocks.existsErr = errors.New("connection reset")

	assert.False(t, f.service.IsUnlocked(context.Background(), "co-1", "A1"))
}

func TestUnlockChargesAndDisclosesContact(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop", Phone: "0722000000"}

	contact, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", contact.Name)

	require.Len(t, f.charger.charges, 1)
	require.Len(t, f.unlocks.payments, 1)
	assert.Equal(t, int64(2900), f.unlocks.payments[0].AmountCents)
	assert.Equal(t, "ron", f.unlocks.payments[0].Currency)
	assert.Equal(t, f.charger.charges[0], f.unlocks.payments[0].ProviderRef)

	require.Len(t, f.unlocks.unlocks, 1)
	assert.Equal(t, f.unlocks.payments[0].ID, f.unlocks.unlocks[0].PaymentID)

	require.Len(t, f.unlocks.jobs, 1)
	assert.Equal(t, "REQ-A1", f.unlocks.jobs[0].RequestCode)

	assert.Equal(t, []string{"lead.unlock"}, f.activity.actions)
}

func TestUnlockIsIdempotentPerPair(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)

	contact, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", contact.Name)

	// The repeat unlock never reaches the payment provider.
	assert.Len(t, f.charger.charges, 1)
	assert.Len(t, f.unlocks.payments, 1)
}

func TestUnlockConcurrentAttemptsChargeOnce(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}
	f.charger.delay = 20 * time.Millisecond

	// Both attempts start before the first charge settles; the second
	// must wait and then short-circuit on the recorded unlock.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.service.Unlock(context.Background(), "co-1", "A1")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.charger.chargeCount())
	assert.Len(t, f.unlocks.payments, 1)
}

func TestUnlockIsScopedPerCompany(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)

	// A different company is still locked and pays its own unlock.
	_, err = f.service.Contact(context.Background(), "co-2", "A1")
	assert.ErrorIs(t, err, ErrLocked)

	_, err = f.service.Unlock(context.Background(), "co-2", "A1")
	require.NoError(t, err)
	assert.Len(t, f.charger.charges, 2)
}

func TestUnlockUnknownRequest(t *testing.T) {
	f := newFixture()

	_, err := f.service.Unlock(context.Background(), "co-1", "missing")
	assert.ErrorIs(t, err, types.ErrRequestNotFound)
	assert.Empty(t, f.charger.charges)
}

func TestUnlockPaymentFailureWritesNothing(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.charger.err = errors.New("card declined")

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.Error(t, err)

	assert.Empty(t, f.unlocks.pairs)
	assert.Empty(t, f.unlocks.payments)
	assert.False(t, f.service.IsUnlocked(context.Background(), "co-1", "A1"))
}

func TestUnlockContactFetchFailureIsRetryable(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.err = errors.New("read timeout")

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	assert.ErrorIs(t, err, ErrContactUnavailable)

	// The unlock and payment stand; a later Contact call succeeds without
	// a second charge.
	assert.True(t, f.service.IsUnlocked(context.Background(), "co-1", "A1"))
	require.Len(t, f.charger.charges, 1)

	f.contacts.err = nil
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}

	contact, err := f.service.Contact(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", contact.Name)
	assert.Len(t, f.charger.charges, 1)
}

func TestContactLockedPair(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}

	_, err := f.service.Contact(context.Background(), "co-1", "A1")
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, 0, f.contacts.fetches)
}

func TestContactServesFromCache(t *testing.T) {
	f := newFixture(request("A1", "Cluj", time.Now()))
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1", Name: "Ana Pop"}

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	fetchesAfterUnlock := f.contacts.fetches

	contact, err := f.service.Contact(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", contact.Name)
	assert.Equal(t, fetchesAfterUnlock, f.contacts.fetches)
}

func TestJobsAndPaymentsAreCompanyScoped(t *testing.T) {
	f := newFixture(
		request("A1", "Cluj", time.Now()),
		request("B2", "Ilfov", time.Now()),
	)
	f.contacts.contacts["A1"] = &types.RequestContact{RequestID: "A1"}
	f.contacts.contacts["B2"] = &types.RequestContact{RequestID: "B2"}

	_, err := f.service.Unlock(context.Background(), "co-1", "A1")
	require.NoError(t, err)
	_, err = f.service.Unlock(context.Background(), "co-2", "B2")
	require.NoError(t, err)

	jobs, err := f.service.Jobs(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "A1", jobs[0].RequestID)

	payments, err := f.service.Payments(context.Background(), "co-2")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "B2", payments[0].RequestID)
}

package leads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"movemarket/internal/utils"
	"movemarket/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// countyChunkSize is the store's membership-filter cap. Larger county
// selections are split into chunks and the results unioned, rather than
// silently truncated.
const countyChunkSize = 10

var (
	ErrLocked             = errors.New("lead is locked for this company")
	ErrContactUnavailable = errors.New("lead unlocked but contact fetch failed, retry")
)

type RequestStore interface {
	Request(ctx context.Context, requestID string) (*types.Request, error)
	RequestsByPickupCounties(ctx context.Context, counties []string) ([]*types.Request, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AssignCode(ctx context.Context, requestID, code string) error
}

type ContactStore interface {
	Contact(ctx context.Context, requestID string) (*types.RequestContact, error)
}

type UnlockStore interface {
	Exists(ctx context.Context, requestID, companyID string) (bool, error)
	Create(ctx context.Context, unlock *types.Unlock, payment *types.Payment, job *types.CompanyJob) (bool, error)
	JobsByCompany(ctx context.Context, companyID string) ([]*types.CompanyJob, error)
	PaymentsByCompany(ctx context.Context, companyID string) ([]*types.Payment, error)
}

// Charger collects the lead price and returns a provider reference.
type Charger interface {
	Charge(ctx context.Context, companyID, requestID string, amountCents int64, currency string) (string, error)
}

type ActivityLogger interface {
	Log(ctx context.Context, actorID, action, subject string) error
}

// Service is the lead disclosure gate: it lists browsable requests and
// decides, per (company, request) pair, whether the contact record may
// be revealed. Disclosure requires a recorded unlock; absence or any
// read error means locked.
type Service struct {
	logger   *logrus.Logger
	requests RequestStore
	contacts ContactStore
	unlocks  UnlockStore
	charger  Charger
	activity ActivityLogger

	priceCents int64
	currency   string

	mu       sync.Mutex
	cache    map[string]map[string]*types.RequestContact // company -> request -> contact
	inflight map[string]*sync.Mutex                      // serializes unlocks per pair
}

func NewService(
	logger *logrus.Logger,
	requests RequestStore,
	contacts ContactStore,
	unlocks UnlockStore,
	charger Charger,
	activity ActivityLogger,
	priceCents int64,
	currency string,
) *Service {
	return &Service{
		logger:     logger,
		requests:   requests,
		contacts:   contacts,
		unlocks:    unlocks,
		charger:    charger,
		activity:   activity,
		priceCents: priceCents,
		currency:   currency,
		cache:      make(map[string]map[string]*types.RequestContact),
		inflight:   make(map[string]*sync.Mutex),
	}
}

// ListRequests returns browsable requests for a company's county
// selection, newest first. No counties means no filter. Requests that
// predate short codes get one assigned and persisted on the way out.
// Returned requests structurally cannot carry contact PII.
func (s *Service) ListRequests(ctx context.Context, counties []string) ([]*types.Request, error) {
	var results []*types.Request

	if len(counties) == 0 {
		all, err := s.requests.RequestsByPickupCounties(ctx, nil)
		if err != nil {
			return nil, err
		}
		results = all
	} else {
		seen := make(map[string]bool)
		for start := 0; start < len(counties); start += countyChunkSize {
			end := min(start+countyChunkSize, len(counties))

			chunk, err := s.requests.RequestsByPickupCounties(ctx, counties[start:end])
			if err != nil {
				return nil, err
			}

			for _, request := range chunk {
				if seen[request.ID] {
					continue
				}
				seen[request.ID] = true
				results = append(results, request)
			}
		}
	}

	for _, request := range results {
		if request.Code != "" {
			continue
		}

		code, err := s.backfillCode(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		request.Code = code
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	return results, nil
}

func (s *Service) backfillCode(ctx context.Context, requestID string) (string, error) {
	for {
		code := utils.RequestCode()

		exists, err := s.requests.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check request code: %w", err)
		}
		if exists {
			continue
		}

		if err := s.requests.AssignCode(ctx, requestID, code); err != nil {
			return "", err
		}

		return code, nil
	}
}

// IsUnlocked reports whether the pair has a recorded unlock. Fails
// closed: any store error reads as locked.
func (s *Service) IsUnlocked(ctx context.Context, companyID, requestID string) bool {
	unlocked, err := s.unlocks.Exists(ctx, requestID, companyID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"company_id": companyID,
			"request_id": requestID,
		}).Error("unlock check failed, treating as locked")
		return false
	}

	return unlocked
}

// pairLock returns the mutex serializing unlock attempts for one
// (company, request) pair, so concurrent purchases cannot both reach the
// payment provider.
func (s *Service) pairLock(companyID, requestID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := companyID + "/" + requestID
	lock, ok := s.inflight[key]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[key] = lock
	}

	return lock
}

// Unlock purchases disclosure of a request's contact for a company.
// Attempts for the same pair are serialized, and an already-unlocked
// pair short-circuits without charging again, so the charge happens at
// most once per pair per process; the charger carries a per-pair
// idempotency key for anything beyond that. The unlock record, audit
// payment row, and dashboard job row are written together, and the
// contact is then fetched into the company's cache. If that last fetch
// fails the payment still stands; the caller retries the fetch via
// Contact.
func (s *Service) Unlock(ctx context.Context, companyID, requestID string) (*types.RequestContact, error) {
	lock := s.pairLock(companyID, requestID)
	lock.Lock()
	defer lock.Unlock()

	if s.IsUnlocked(ctx, companyID, requestID) {
		return s.Contact(ctx, companyID, requestID)
	}

	request, err := s.requests.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}

	providerRef, err := s.charger.Charge(ctx, companyID, requestID, s.priceCents, s.currency)
	if err != nil {
		return nil, fmt.Errorf("lead payment failed: %w", err)
	}

	paymentID := uuid.NewString()

	unlock := &types.Unlock{
		RequestID: requestID,
		CompanyID: companyID,
		PaymentID: paymentID,
	}
	payment := &types.Payment{
		ID:          paymentID,
		CompanyID:   companyID,
		RequestID:   requestID,
		AmountCents: s.priceCents,
		Currency:    s.currency,
		ProviderRef: providerRef,
	}
	job := &types.CompanyJob{
		CompanyID:   companyID,
		RequestID:   requestID,
		RequestCode: request.Code,
	}

	inserted, err := s.unlocks.Create(ctx, unlock, payment, job)
	if err != nil {
		return nil, err
	}

	if inserted {
		if err := s.activity.Log(ctx, companyID, "lead.unlock", requestID); err != nil {
			s.logger.WithError(err).Warn("failed to log unlock activity")
		}
	}

	contact, err := s.contacts.Contact(ctx, requestID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"company_id": companyID,
			"request_id": requestID,
		}).Error("contact fetch after unlock failed")
		return nil, ErrContactUnavailable
	}

	s.cacheContact(companyID, requestID, contact)

	return contact, nil
}

// Contact returns the request's contact record for a company that has
// unlocked it, serving from the in-memory cache when possible. Locked
// pairs get ErrLocked and nothing else.
func (s *Service) Contact(ctx context.Context, companyID, requestID string) (*types.RequestContact, error) {
	if contact, ok := s.cachedContact(companyID, requestID); ok {
		return contact, nil
	}

	if !s.IsUnlocked(ctx, companyID, requestID) {
		return nil, ErrLocked
	}

	contact, err := s.contacts.Contact(ctx, requestID)
	if err != nil {
		return nil, ErrContactUnavailable
	}

	s.cacheContact(companyID, requestID, contact)

	return contact, nil
}

// Jobs lists the company's unlocked leads for its dashboard.
func (s *Service) Jobs(ctx context.Context, companyID string) ([]*types.CompanyJob, error) {
	return s.unlocks.JobsByCompany(ctx, companyID)
}

// Payments lists the company's unlock purchase history.
func (s *Service) Payments(ctx context.Context, companyID string) ([]*types.Payment, error) {
	return s.unlocks.PaymentsByCompany(ctx, companyID)
}

func (s *Service) cacheContact(companyID, requestID string, contact *types.RequestContact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache[companyID] == nil {
		s.cache[companyID] = make(map[string]*types.RequestContact)
	}
	s.cache[companyID][requestID] = contact
}

func (s *Service) cachedContact(companyID, requestID string) (*types.RequestContact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.cache[companyID][requestID]
	return contact, ok
}

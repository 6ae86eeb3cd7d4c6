package server

import (
	"errors"
	"net/http"

	"movemarket/internal/leads"
	"movemarket/pkg/types"

	"github.com/alexedwards/flow"
)

// companyFromContext resolves the authenticated user's company profile.
func (s *Service) companyFromContext(r *http.Request) (*types.Company, error) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		return nil, err
	}

	return s.companyRepo.CompanyByOwner(r.Context(), userID)
}

type leadsFilter struct {
	Counties []string `form:"county"`
}

type leadView struct {
	Request  *types.Request `json:"request"`
	Unlocked bool           `json:"unlocked"`
}

func (s *Service) handleGetLeads(w http.ResponseWriter, r *http.Request) {
	company, err := s.companyFromContext(r)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve company")
		s.respondError(w, http.StatusForbidden, "company profile required")
		return
	}

	var filter leadsFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid county filter")
		return
	}

	counties := filter.Counties
	if len(counties) == 0 {
		counties = company.Counties
	}

	requests, err := s.leads.ListRequests(r.Context(), counties)
	if err != nil {
		s.logger.WithError(err).Error("failed to list leads")
		s.internalServerError(w)
		return
	}

	views := make([]leadView, 0, len(requests))
	for _, request := range requests {
		views = append(views, leadView{
			Request:  request,
			Unlocked: s.leads.IsUnlocked(r.Context(), company.ID, request.ID),
		})
	}

	s.respondJSON(w, http.StatusOK, views)
}

func (s *Service) handlePostUnlock(w http.ResponseWriter, r *http.Request) {
	company, err := s.companyFromContext(r)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve company")
		s.respondError(w, http.StatusForbidden, "company profile required")
		return
	}

	requestID := flow.Param(r.Context(), "requestID")

	contact, err := s.leads.Unlock(r.Context(), company.ID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrRequestNotFound):
			s.respondError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, leads.ErrContactUnavailable):
			// Payment went through; the contact fetch is retryable.
			s.respondError(w, http.StatusBadGateway, "unlocked, but contact details are briefly unavailable")
		default:
			s.logger.WithError(err).Error("lead unlock failed")
			s.respondError(w, http.StatusBadGateway, "unlock failed")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, contact)
}

func (s *Service) handleGetLeadContact(w http.ResponseWriter, r *http.Request) {
	company, err := s.companyFromContext(r)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve company")
		s.respondError(w, http.StatusForbidden, "company profile required")
		return
	}

	requestID := flow.Param(r.Context(), "requestID")

	contact, err := s.leads.Contact(r.Context(), company.ID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, leads.ErrLocked):
			s.respondError(w, http.StatusPaymentRequired, "unlock this lead to view contact details")
		case errors.Is(err, leads.ErrContactUnavailable):
			s.respondError(w, http.StatusBadGateway, "contact details are briefly unavailable")
		default:
			s.logger.WithError(err).Error("failed to fetch lead contact")
			s.internalServerError(w)
		}
		return
	}

	s.respondJSON(w, http.StatusOK, contact)
}

func (s *Service) handleGetCompanyJobs(w http.ResponseWriter, r *http.Request) {
	company, err := s.companyFromContext(r)
	if err != nil {
		s.respondError(w, http.StatusForbidden, "company profile required")
		return
	}

	jobs, err := s.leads.Jobs(r.Context(), company.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch company jobs")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, jobs)
}

func (s *Service) handleGetCompanyPayments(w http.ResponseWriter, r *http.Request) {
	company, err := s.companyFromContext(r)
	if err != nil {
		s.respondError(w, http.StatusForbidden, "company profile required")
		return
	}

	payments, err := s.leads.Payments(r.Context(), company.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch company payments")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, payments)
}

type createCompanyRequest struct {
	Name     string   `json:"name"`
	Counties []string `json:"counties"`
}

func (s *Service) handlePostCompany(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	var body createCompanyRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	if body.Name == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "company name is required")
		return
	}

	if _, err := s.companyRepo.CompanyByOwner(r.Context(), userID); err == nil {
		s.respondError(w, http.StatusConflict, "company profile already exists")
		return
	} else if !errors.Is(err, types.ErrCompanyNotFound) {
		s.logger.WithError(err).Error("failed to check company profile")
		s.internalServerError(w)
		return
	}

	company := &types.Company{
		OwnerID:  userID,
		Name:     body.Name,
		Counties: body.Counties,
	}

	if err := s.companyRepo.Create(r.Context(), company); err != nil {
		s.logger.WithError(err).Error("failed to create company")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusCreated, company)
}

package server

import (
	"errors"
	"net/http"

	"movemarket/pkg/types"

	"github.com/alexedwards/flow"
)

func (s *Service) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	user, err := s.userRepo.User(r.Context(), userID)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			s.respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.WithError(err).Error("failed to fetch profile")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

func (s *Service) handleGetMyRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	requests, err := s.requestRepo.RequestsByUser(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch user requests")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, requests)
}

// handleDeleteRequest lets a customer delete their own request; admins
// may delete any.
func (s *Service) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	requestID := flow.Param(r.Context(), "requestID")

	request, err := s.requestRepo.Request(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, types.ErrRequestNotFound) {
			s.respondError(w, http.StatusNotFound, "request not found")
			return
		}
		s.logger.WithError(err).Error("failed to fetch request")
		s.internalServerError(w)
		return
	}

	role, _ := r.Context().Value(contextKeyRole).(types.Role)
	if request.UserID != userID && role != types.RoleAdmin {
		s.respondError(w, http.StatusForbidden, "not your request")
		return
	}

	if err := s.requestRepo.DeleteRequest(r.Context(), requestID); err != nil {
		s.logger.WithError(err).Error("failed to delete request")
		s.internalServerError(w)
		return
	}

	if err := s.activityRepo.Log(r.Context(), userID, "request.delete", requestID); err != nil {
		s.logger.WithError(err).Warn("failed to log request deletion")
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statusUpdateRequest struct {
	Status types.RequestStatus `json:"status"`
}

var validStatuses = map[types.RequestStatus]bool{
	types.RequestStatusNew:        true,
	types.RequestStatusInInterest: true,
	types.RequestStatusCompleted:  true,
	types.RequestStatusCanceled:   true,
}

func (s *Service) handlePatchRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdateRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	if !validStatuses[body.Status] {
		s.respondError(w, http.StatusUnprocessableEntity, "unknown status")
		return
	}

	requestID := flow.Param(r.Context(), "requestID")

	if err := s.requestRepo.UpdateStatus(r.Context(), requestID, body.Status); err != nil {
		s.logger.WithError(err).Error("failed to update request status")
		s.internalServerError(w)
		return
	}

	if userID, err := s.userIDFromContext(r.Context()); err == nil {
		if err := s.activityRepo.Log(r.Context(), userID, "request.status."+string(body.Status), requestID); err != nil {
			s.logger.WithError(err).Warn("failed to log status change")
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

func (s *Service) handlePatchCompanyApproval(w http.ResponseWriter, r *http.Request) {
	var body approvalRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	companyID := flow.Param(r.Context(), "companyID")

	if err := s.companyRepo.SetApproved(r.Context(), companyID, body.Approved); err != nil {
		s.logger.WithError(err).Error("failed to update company approval")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"approved": body.Approved})
}

func (s *Service) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.activityRepo.Recent(r.Context(), 100)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch activity log")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, entries)
}

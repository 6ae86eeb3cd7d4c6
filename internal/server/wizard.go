package server

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"movemarket/internal/storage"
	"movemarket/internal/wizard"
)

// engineRegistry owns one wizard engine per signed-in user. Engines keep
// the in-flight form state and the autosave scheduler between requests;
// they are discarded on logout and at server shutdown.
type engineRegistry struct {
	mu      sync.Mutex
	engines map[string]*wizard.Engine
}

func newEngineRegistry() *engineRegistry {
	return &engineRegistry{engines: make(map[string]*wizard.Engine)}
}

func (r *engineRegistry) get(userID string) (*wizard.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[userID]
	return engine, ok
}

func (r *engineRegistry) put(userID string, engine *wizard.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.engines[userID]; ok {
		old.Close()
	}
	r.engines[userID] = engine
}

func (r *engineRegistry) remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[userID]; ok {
		engine.Close()
		delete(r.engines, userID)
	}
}

func (r *engineRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, engine := range r.engines {
		engine.Close()
		delete(r.engines, userID)
	}
}

// engineFor returns the user's wizard engine, creating and resuming one
// on first touch. forceNew discards any draft and starts fresh,
// regardless of whether an engine or draft already exists.
func (s *Service) engineFor(r *http.Request, forceNew bool) (*wizard.Engine, error) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		return nil, err
	}

	if engine, ok := s.engines.get(userID); ok && !forceNew {
		return engine, nil
	}

	engine := wizard.New(
		s.logger,
		s.draftRepo,
		s.requestRepo,
		s.blobs,
		s.mail,
		s.config.UploadURL,
		userID,
	)

	if err := engine.Resume(r.Context(), forceNew); err != nil {
		engine.Close()
		return nil, err
	}

	s.engines.put(userID, engine)

	return engine, nil
}

func (s *Service) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	forceNew := r.URL.Query().Get("new") == "true"

	engine, err := s.engineFor(r, forceNew)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, engine.State())
}

type wizardFieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

func (s *Service) handlePutWizardFields(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, false)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	var body wizardFieldsRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	for name, value := range body.Fields {
		engine.SetField(name, value)
	}

	s.respondJSON(w, http.StatusOK, engine.State())
}

func (s *Service) handlePostWizardMedia(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, false)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	files := r.MultipartForm.File["media"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no media files provided")
		return
	}

	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "unreadable media file")
			return
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "unreadable media file")
			return
		}

		engine.AttachMedia(storage.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	s.respondJSON(w, http.StatusOK, engine.State())
}

func (s *Service) handlePostWizardAdvance(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, false)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	if err := engine.Advance(); err != nil {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "please fill in the required fields before continuing",
			"state": engine.State(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, engine.State())
}

func (s *Service) handlePostWizardRetreat(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, false)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	engine.Retreat()

	s.respondJSON(w, http.StatusOK, engine.State())
}

func (s *Service) handlePostWizardReset(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, true)
	if err != nil {
		s.logger.WithError(err).Error("failed to reset wizard")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, engine.State())
}

func (s *Service) handlePostWizardSubmit(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engineFor(r, false)
	if err != nil {
		s.logger.WithError(err).Error("failed to mount wizard")
		s.internalServerError(w)
		return
	}

	code, err := engine.Submit(r.Context(), nil)
	if err != nil {
		switch {
		case errors.Is(err, wizard.ErrValidation):
			s.respondError(w, http.StatusUnprocessableEntity, "please complete all required fields")
		case errors.Is(err, wizard.ErrSubmissionInFlight):
			s.respondError(w, http.StatusConflict, "submission already in progress")
		default:
			s.logger.WithError(err).Error("wizard submission failed")
			s.respondError(w, http.StatusBadGateway, "submission failed, your draft is preserved")
		}
		return
	}

	if userID, err := s.userIDFromContext(r.Context()); err == nil {
		if err := s.activityRepo.Log(r.Context(), userID, "request.submit", code); err != nil {
			s.logger.WithError(err).Warn("failed to log submission activity")
		}
	}

	s.respondJSON(w, http.StatusCreated, map[string]string{"code": code})
}

package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"movemarket/internal/leads"
	"movemarket/internal/mailer"
	"movemarket/internal/store"
	"movemarket/internal/wizard"
	"movemarket/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type Service struct {
	logger *logrus.Logger
	config *types.Config

	requestRepo  *store.RequestRepository
	contactRepo  *store.ContactRepository
	draftRepo    *store.DraftRepository
	userRepo     *store.UserRepository
	companyRepo  *store.CompanyRepository
	activityRepo *store.ActivityRepository

	leads *leads.Service
	blobs wizard.BlobStore
	mail  mailer.Mailer

	cognitoClient *cognitoidentityprovider.Client
	cookie        *securecookie.SecureCookie

	jwksCache *jwk.Cache
	jwksURL   string

	engines *engineRegistry

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	cognitoClient *cognitoidentityprovider.Client,
	requestRepo *store.RequestRepository,
	contactRepo *store.ContactRepository,
	draftRepo *store.DraftRepository,
	userRepo *store.UserRepository,
	companyRepo *store.CompanyRepository,
	activityRepo *store.ActivityRepository,
	leadsService *leads.Service,
	blobs wizard.BlobStore,
	mail mailer.Mailer,
	jwkCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger:        logger,
		config:        config,
		cognitoClient: cognitoClient,
		cookie:        securecookie.New(hashKey, blockKey),

		requestRepo:  requestRepo,
		contactRepo:  contactRepo,
		draftRepo:    draftRepo,
		userRepo:     userRepo,
		companyRepo:  companyRepo,
		activityRepo: activityRepo,

		leads: leadsService,
		blobs: blobs,
		mail:  mail,

		jwksCache: jwkCache,
		jwksURL:   jwksURL,

		engines: newEngineRegistry(),

		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	s.engines.closeAll()
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.HandleFunc("/api/register", s.handlePostRegister, http.MethodPost)
	r.HandleFunc("/api/register/confirm", s.handlePostRegisterConfirm, http.MethodPost)
	r.HandleFunc("/api/login", s.handlePostLogin, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/api/logout", s.handlePostLogout, http.MethodPost)
		r.HandleFunc("/api/me", s.handleGetMe, http.MethodGet)

		// Customer wizard
		r.HandleFunc("/api/wizard", s.handleGetWizard, http.MethodGet)
		r.HandleFunc("/api/wizard/fields", s.handlePutWizardFields, http.MethodPut)
		r.HandleFunc("/api/wizard/media", s.handlePostWizardMedia, http.MethodPost)
		r.HandleFunc("/api/wizard/advance", s.handlePostWizardAdvance, http.MethodPost)
		r.HandleFunc("/api/wizard/retreat", s.handlePostWizardRetreat, http.MethodPost)
		r.HandleFunc("/api/wizard/reset", s.handlePostWizardReset, http.MethodPost)
		r.HandleFunc("/api/wizard/submit", s.handlePostWizardSubmit, http.MethodPost)

		// Customer requests
		r.HandleFunc("/api/requests", s.handleGetMyRequests, http.MethodGet)
		r.HandleFunc("/api/requests/:requestID", s.handleDeleteRequest, http.MethodDelete)

		// Company onboarding
		r.HandleFunc("/api/companies", s.handlePostCompany, http.MethodPost)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRole(types.RoleCompany))

			r.HandleFunc("/api/leads", s.handleGetLeads, http.MethodGet)
			r.HandleFunc("/api/leads/:requestID/unlock", s.handlePostUnlock, http.MethodPost)
			r.HandleFunc("/api/leads/:requestID/contact", s.handleGetLeadContact, http.MethodGet)
			r.HandleFunc("/api/company/jobs", s.handleGetCompanyJobs, http.MethodGet)
			r.HandleFunc("/api/company/payments", s.handleGetCompanyPayments, http.MethodGet)
		})

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRole(types.RoleAdmin))

			r.HandleFunc("/api/admin/requests/:requestID/status", s.handlePatchRequestStatus, http.MethodPatch)
			r.HandleFunc("/api/admin/companies/:companyID/approve", s.handlePatchCompanyApproval, http.MethodPatch)
			r.HandleFunc("/api/admin/activity", s.handleGetActivity, http.MethodGet)
		})
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) userIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	if !ok {
		return "", fmt.Errorf("user id not found in context")
	}
	return userID, nil
}

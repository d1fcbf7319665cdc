package api

import (
	"net/http"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/middlewares"
	"github.com/booksync/quickbooks-connector/internal/oauth"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/qbo"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ManagementServer exposes the per-realm connection lifecycle operations.
// Every route is scoped to one realm; there is no bulk disconnect.
type ManagementServer struct {
	stateAccessor *oauth.StateAccessor
	refresher     *oauth.Refresher
	tester        *oauth.Tester
	store         connection_repository.TokenStore
	router        *mux.Router
	config        *config.Config
}

func NewManagementServer(stateAccessor *oauth.StateAccessor, refresher *oauth.Refresher, tester *oauth.Tester, store connection_repository.TokenStore, r *mux.Router, cfg *config.Config) *ManagementServer {
	return &ManagementServer{
		stateAccessor: stateAccessor,
		refresher:     refresher,
		tester:        tester,
		store:         store,
		router:        r,
		config:        cfg,
	}
}

func (s *ManagementServer) Routes() {
	mmw := &middlewares.MetricsMiddleware{}
	amw := &middlewares.AuthMiddleware{
		Secrets:       s.config.ServiceToServiceCredentials,
		JwtSigningKey: s.config.JwtSigningKey,
	}

	securedSubRouter := s.router.PathPrefix(s.config.UrlBasePath + "/connection").Subrouter()
	securedSubRouter.Use(middlewares.RequestID,
		logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics,
		amw.Authenticate)

	securedSubRouter.HandleFunc("/{realm}/status", s.handleConnectionStatus()).Methods(http.MethodGet)
	securedSubRouter.HandleFunc("/{realm}/refresh", s.handleRefresh()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/{realm}/test", s.handleConnectionTest()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/{realm}/disconnect", s.handleDisconnect()).Methods(http.MethodPost)
}

func (s *ManagementServer) requestLogger(req *http.Request, realmID domain.RealmID) *logrus.Entry {
	principal, _ := middlewares.GetPrincipal(req.Context())
	return logger.Log.WithFields(logrus.Fields{
		"account":    principal.GetAccount(),
		"realm_id":   realmID,
		"request_id": req.Header.Get("X-Request-Id")})
}

func (s *ManagementServer) handleConnectionStatus() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		realmID := domain.RealmID(mux.Vars(req)["realm"])
		log := s.requestLogger(req, realmID)

		status := s.stateAccessor.GetStatus(req.Context(), realmID)

		log.WithFields(logrus.Fields{"connected": status.Connected}).Debug("Connection status lookup")

		writeJSONResponse(w, http.StatusOK, status)
	}
}

type refreshResponse struct {
	Status string `json:"status"`
}

func (s *ManagementServer) handleRefresh() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		realmID := domain.RealmID(mux.Vars(req)["realm"])
		log := s.requestLogger(req, realmID)

		log.Info("Forcing a token refresh")

		err := s.refresher.Refresh(req.Context(), realmID)

		if err == oauth.ErrRefreshInProgress {
			errorResponse := errorResponse{Title: "Token refresh already in progress",
				Status: http.StatusConflict,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		if err == connection_repository.NotFoundError {
			writeConnectionNotFoundResponse(log, w)
			return
		}

		if err != nil {
			errorResponse := errorResponse{Title: "Token refresh failed",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, refreshResponse{Status: "refreshed"})
	}
}

type connectionTestResponse struct {
	Status      string `json:"status"`
	CompanyName string `json:"company_name,omitempty"`
}

func (s *ManagementServer) handleConnectionTest() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		realmID := domain.RealmID(mux.Vars(req)["realm"])
		log := s.requestLogger(req, realmID)

		info, err := s.tester.Test(req.Context(), realmID)

		if err == connection_repository.NotFoundError {
			writeConnectionNotFoundResponse(log, w)
			return
		}

		if err == qbo.ErrUnauthorized {
			// The stored access token was rejected.  The caller should
			// trigger a refresh rather than retrying the test.
			errorResponse := errorResponse{Title: "Access token was rejected",
				Status: http.StatusBadGateway,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		if err != nil {
			errorResponse := errorResponse{Title: "Connection test failed",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, connectionTestResponse{Status: "ok", CompanyName: info.CompanyName})
	}
}

func (s *ManagementServer) handleDisconnect() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		realmID := domain.RealmID(mux.Vars(req)["realm"])
		log := s.requestLogger(req, realmID)

		log.Info("Disconnecting realm")

		err := s.store.Delete(req.Context(), realmID)

		if err == connection_repository.NotFoundError {
			writeConnectionNotFoundResponse(log, w)
			return
		}

		if err != nil {
			errorResponse := errorResponse{Title: "Unable to disconnect realm",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, struct{}{})
	}
}

func writeConnectionNotFoundResponse(log *logrus.Entry, w http.ResponseWriter) {
	errMsg := "No connection found for realm"
	log.Info(errMsg)
	errorResponse := errorResponse{Title: errMsg,
		Status: http.StatusNotFound,
		Detail: errMsg}
	writeJSONResponse(w, errorResponse.Status, errorResponse)
}

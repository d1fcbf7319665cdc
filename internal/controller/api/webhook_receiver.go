package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/controller"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/middlewares"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/sync"
	"github.com/booksync/quickbooks-connector/internal/webhook"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const signatureHeader = "intuit-signature"

// WebhookReceiver terminates the provider's webhook deliveries.  The
// signature check runs against the raw body before any parsing; an
// unverified payload never reaches the pipeline.
type WebhookReceiver struct {
	pipeline *sync.Pipeline
	archiver controller.PayloadArchiver
	router   *mux.Router
	config   *config.Config
}

func NewWebhookReceiver(pipeline *sync.Pipeline, archiver controller.PayloadArchiver, r *mux.Router, cfg *config.Config) *WebhookReceiver {
	return &WebhookReceiver{
		pipeline: pipeline,
		archiver: archiver,
		router:   r,
		config:   cfg,
	}
}

func (wr *WebhookReceiver) Routes() {
	mmw := &middlewares.MetricsMiddleware{}

	subRouter := wr.router.PathPrefix("/webhooks").Subrouter()
	subRouter.Use(middlewares.RequestID,
		logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics)

	subRouter.HandleFunc("/quickbooks", wr.handleWebhook()).Methods(http.MethodPost)
}

type webhookResponse struct {
	Status string `json:"status"`
}

func (wr *WebhookReceiver) handleWebhook() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		requestId := req.Header.Get("X-Request-Id")
		log := logger.Log.WithFields(logrus.Fields{"request_id": requestId})

		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, 1048576))
		if err != nil {
			errMsg := "Unable to read webhook payload"
			logger.LogWithError(log, errMsg, err)
			errorResponse := errorResponse{Title: errMsg,
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		verified, err := webhook.Verify(body, req.Header.Get(signatureHeader), []byte(wr.config.WebhookVerifierToken))
		if err != nil || !verified {
			if err != nil {
				logger.LogWithError(log, "Unable to verify webhook payload", err)
			} else {
				log.Info("Rejected webhook payload with an invalid signature")
			}
			errorResponse := errorResponse{Title: "Signature verification failed",
				Status: http.StatusUnauthorized,
				Detail: "Signature verification failed"}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		var envelope sync.Envelope
		if err := decodeJSON(io.NopCloser(bytes.NewReader(body)), &envelope); err != nil {
			errMsg := "Unable to process json input"
			logger.LogWithError(log, errMsg, err)
			errorResponse := errorResponse{Title: errMsg,
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		wr.archivePayload(req, envelope, body, log)

		if err := wr.pipeline.Ingest(req.Context(), envelope); err != nil {
			errMsg := "Unable to ingest webhook payload"
			logger.LogWithError(log, errMsg, err)
			errorResponse := errorResponse{Title: errMsg,
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, webhookResponse{Status: "ok"})
	}
}

// archivePayload is best-effort.  An archive failure must not cause the
// provider to redeliver a payload the pipeline already ingested.
func (wr *WebhookReceiver) archivePayload(req *http.Request, envelope sync.Envelope, body []byte, log *logrus.Entry) {
	var realmID domain.RealmID
	if len(envelope.EventNotifications) > 0 {
		realmID = domain.RealmID(envelope.EventNotifications[0].RealmID)
	}

	if err := wr.archiver.Archive(req.Context(), realmID, body); err != nil {
		logger.LogWithError(log, "Unable to archive webhook payload", err)
	}
}

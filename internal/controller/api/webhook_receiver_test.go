package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/controller"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/sync"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
)

const webhookEndpoint = "/webhooks/quickbooks"

func signWebhookPayload(body []byte, token string) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func buildWebhookFixture(t *testing.T, verifierToken string, handler *fakeEntityHandler) (*WebhookReceiver, *fakeEventLog) {
	t.Helper()

	cfg := config.GetConfig()
	cfg.WebhookVerifierToken = verifierToken
	cfg.SyncDispatchImpl = "inline"

	store := newFakeTokenStore(domain.ConnectionRecord{
		RealmID:     "1234567890",
		AccessToken: "access",
	})

	fetcher := &fakeEntityFetcher{entity: json.RawMessage(`{"DisplayName":"Fred"}`)}
	events := &fakeEventLog{}

	pipeline := sync.NewPipeline(store, fetcher, events, sync.NewRegistry(handler))

	dispatcher, err := sync.NewSyncJobDispatcher(cfg, pipeline)
	assert.Equal(t, err, nil)
	pipeline.SetDispatcher(dispatcher)

	apiMux := mux.NewRouter()

	wr := NewWebhookReceiver(pipeline, &controller.NoopPayloadArchiver{}, apiMux, cfg)
	wr.Routes()

	return wr, events
}

func buildWebhookBody(entityName string, entityID string) []byte {
	envelope := sync.Envelope{
		EventNotifications: []sync.EventNotification{
			{
				RealmID: "1234567890",
				DataChangeEvent: sync.DataChangeEvent{
					Entities: []sync.EntityNotification{
						{Name: entityName, ID: entityID, Operation: "Update"},
					},
				},
			},
		},
	}

	body, _ := json.Marshal(envelope)
	return body
}

func TestWebhookWithValidSignature(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, events := buildWebhookFixture(t, "verifier-token", handler)

	body := buildWebhookBody("Customer", "42")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "verifier-token"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, events.appendCount(), 1)
	assert.Equal(t, handler.upsertCount(), 1)
}

func TestWebhookWithInvalidSignature(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, events := buildWebhookFixture(t, "verifier-token", handler)

	body := buildWebhookBody("Customer", "42")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "wrong-token"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusUnauthorized)
	assert.Equal(t, events.appendCount(), 0)
	assert.Equal(t, handler.upsertCount(), 0)
}

func TestWebhookWithMissingSignature(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, _ := buildWebhookFixture(t, "verifier-token", handler)

	body := buildWebhookBody("Customer", "42")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusUnauthorized)
}

func TestWebhookWithoutConfiguredVerifierToken(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, _ := buildWebhookFixture(t, "", handler)

	body := buildWebhookBody("Customer", "42")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "anything"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	// An unverifiable payload is rejected, never passed through.
	assert.Equal(t, rr.Code, http.StatusUnauthorized)
}

func TestWebhookWithMalformedJson(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, _ := buildWebhookFixture(t, "verifier-token", handler)

	body := []byte(`{"eventNotifications": [ BROKEN`)

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "verifier-token"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusBadRequest)
}

func TestWebhookUnregisteredKindIsLoggedOnly(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	wr, events := buildWebhookFixture(t, "verifier-token", handler)

	body := buildWebhookBody("Preferences", "7")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "verifier-token"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, events.appendCount(), 1)
	assert.Equal(t, handler.upsertCount(), 0)
}

func TestWebhookProcessingFailureStillReturnsOk(t *testing.T) {
	handler := newFakeEntityHandler(domain.EntityCustomer)
	handler.err = errFakeFailure

	wr, events := buildWebhookFixture(t, "verifier-token", handler)

	body := buildWebhookBody("Customer", "42")

	req, err := http.NewRequest("POST", webhookEndpoint, bytes.NewReader(body))
	assert.Equal(t, err, nil)
	req.Header.Set("intuit-signature", signWebhookPayload(body, "verifier-token"))

	rr := httptest.NewRecorder()
	wr.router.ServeHTTP(rr, req)

	// The failure lives on the event row; the provider gets a 200 so it
	// does not redeliver a payload that was durably logged.
	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, events.appendCount(), 1)
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/oauth"
	"github.com/booksync/quickbooks-connector/internal/qbo"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
)

const (
	connectionEndpoint = "/api/quickbooks-connector/v1/connection"
	connectedRealmID   = "1234567890"
	testClientID       = "test_client_1"
	testClientPSK      = "12345"
)

func buildManagementFixture(t *testing.T, store *fakeTokenStore, companyInfoClient *fakeCompanyInfoClient, tokenURL string) *ManagementServer {
	t.Helper()

	cfg := config.GetConfig()
	cfg.ServiceToServiceCredentials = map[string]interface{}{testClientID: testClientPSK}
	cfg.OAuthTokenUrl = tokenURL
	cfg.TokenExchangeTimeout = 5 * time.Second

	apiMux := mux.NewRouter()

	stateAccessor := oauth.NewStateAccessor(cfg, store)
	refresher := oauth.NewRefresher(cfg, store)
	tester := oauth.NewTester(store, companyInfoClient)

	ms := NewManagementServer(stateAccessor, refresher, tester, store, apiMux, cfg)
	ms.Routes()

	return ms
}

func addServiceCredentials(req *http.Request) {
	req.Header.Set("x-qbc-client-id", testClientID)
	req.Header.Set("x-qbc-account", "0001")
	req.Header.Set("x-qbc-psk", testClientPSK)
}

func connectedStore() *fakeTokenStore {
	return newFakeTokenStore(domain.ConnectionRecord{
		RealmID:      connectedRealmID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(4 * time.Hour),
		CompanyName:  "Fred's Widgets",
	})
}

func TestManagementRequiresAuthentication(t *testing.T) {
	ms := buildManagementFixture(t, connectedStore(), &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("GET", connectionEndpoint+"/"+connectedRealmID+"/status", nil)
	assert.Equal(t, err, nil)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusUnauthorized)
}

func TestManagementConnectionStatus(t *testing.T) {
	ms := buildManagementFixture(t, connectedStore(), &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("GET", connectionEndpoint+"/"+connectedRealmID+"/status", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)

	var status oauth.ConnectionStatus
	err = json.Unmarshal(rr.Body.Bytes(), &status)
	assert.Equal(t, err, nil)
	assert.Equal(t, status.Connected, true)
	assert.Equal(t, status.CompanyName, "Fred's Widgets")
	assert.Equal(t, status.NeedsRefresh, false)
}

func TestManagementConnectionStatusForUnknownRealm(t *testing.T) {
	ms := buildManagementFixture(t, newFakeTokenStore(), &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("GET", connectionEndpoint+"/no-such-realm/status", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	// Status lookups never fail, the body says disconnected.
	assert.Equal(t, rr.Code, http.StatusOK)

	var status oauth.ConnectionStatus
	err = json.Unmarshal(rr.Body.Bytes(), &status)
	assert.Equal(t, err, nil)
	assert.Equal(t, status.Connected, false)
}

func TestManagementForcedRefresh(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	store := connectedStore()
	ms := buildManagementFixture(t, store, &fakeCompanyInfoClient{}, tokenSrv.URL)

	req, err := http.NewRequest("POST", connectionEndpoint+"/"+connectedRealmID+"/refresh", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)

	record, err := store.FindConnectionByRealmID(req.Context(), connectedRealmID)
	assert.Equal(t, err, nil)
	assert.Equal(t, record.AccessToken, "new-access")
}

func TestManagementForcedRefreshUnknownRealm(t *testing.T) {
	ms := buildManagementFixture(t, newFakeTokenStore(), &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("POST", connectionEndpoint+"/no-such-realm/refresh", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusNotFound)
}

func TestManagementConnectionTest(t *testing.T) {
	companyInfoClient := &fakeCompanyInfoClient{info: qbo.CompanyInfo{CompanyName: "Fred's Widgets"}}
	ms := buildManagementFixture(t, connectedStore(), companyInfoClient, "http://localhost/unused")

	req, err := http.NewRequest("POST", connectionEndpoint+"/"+connectedRealmID+"/test", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)

	var response connectionTestResponse
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	assert.Equal(t, err, nil)
	assert.Equal(t, response.Status, "ok")
	assert.Equal(t, response.CompanyName, "Fred's Widgets")
}

func TestManagementConnectionTestWithRejectedToken(t *testing.T) {
	companyInfoClient := &fakeCompanyInfoClient{err: qbo.ErrUnauthorized}
	ms := buildManagementFixture(t, connectedStore(), companyInfoClient, "http://localhost/unused")

	req, err := http.NewRequest("POST", connectionEndpoint+"/"+connectedRealmID+"/test", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusBadGateway)
}

func TestManagementDisconnect(t *testing.T) {
	store := connectedStore()
	ms := buildManagementFixture(t, store, &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("POST", connectionEndpoint+"/"+connectedRealmID+"/disconnect", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusOK)

	realmIDs, err := store.ListRealmIDs(req.Context())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(realmIDs), 0)
}

func TestManagementDisconnectUnknownRealm(t *testing.T) {
	ms := buildManagementFixture(t, newFakeTokenStore(), &fakeCompanyInfoClient{}, "http://localhost/unused")

	req, err := http.NewRequest("POST", connectionEndpoint+"/no-such-realm/disconnect", nil)
	assert.Equal(t, err, nil)
	addServiceCredentials(req)

	rr := httptest.NewRecorder()
	ms.router.ServeHTTP(rr, req)

	assert.Equal(t, rr.Code, http.StatusNotFound)
}

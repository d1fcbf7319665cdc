package qbo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

func buildTestClient(baseURL string) *Client {
	cfg := config.GetConfig()
	cfg.QboApiBaseUrl = baseURL
	cfg.QboMinorVersion = "65"
	cfg.EntityFetchTimeout = 5 * time.Second
	return NewClient(cfg)
}

func TestFetchEntityUnwrapsEnvelope(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v3/company/1234567890/customer/42" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}

		if req.URL.Query().Get("minorversion") != "65" {
			t.Fatal("minorversion query parameter missing")
		}

		if req.Header.Get("Authorization") != "Bearer access-token" {
			t.Fatal("access token was not sent as a bearer token")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Customer":{"Id":"42","DisplayName":"Fred"},"time":"2026-03-14T12:00:00Z"}`))
	}))
	defer srv.Close()

	client := buildTestClient(srv.URL)

	entity, err := client.FetchEntity(context.TODO(), "access-token", "1234567890", domain.EntityCustomer, "42")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	expected := `{"Id":"42","DisplayName":"Fred"}`
	if string(entity) != expected {
		t.Fatalf("expected the inner document %s, got %s", expected, entity)
	}
}

func TestFetchEntityAuthFailure(t *testing.T) {

	testCases := []struct {
		statusCode int
	}{
		{http.StatusUnauthorized},
		{http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(http.StatusText(tc.statusCode), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				http.Error(w, "denied", tc.statusCode)
			}))
			defer srv.Close()

			client := buildTestClient(srv.URL)

			_, err := client.FetchEntity(context.TODO(), "stale-token", "1234567890", domain.EntityCustomer, "42")
			if err != ErrUnauthorized {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestFetchEntityServerError(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := buildTestClient(srv.URL)

	_, err := client.FetchEntity(context.TODO(), "access-token", "1234567890", domain.EntityCustomer, "42")
	if err == nil {
		t.Fatal("expected an error, did not receive an error")
	}

	if err == ErrUnauthorized {
		t.Fatal("a server error was misclassified as an auth failure")
	}
}

func TestCompanyInfo(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v3/company/1234567890/companyinfo/1234567890" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"CompanyInfo":{"CompanyName":"Fred's Widgets","Country":"US"}}`))
	}))
	defer srv.Close()

	client := buildTestClient(srv.URL)

	info, err := client.CompanyInfo(context.TODO(), "access-token", "1234567890")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	if info.CompanyName != "Fred's Widgets" {
		t.Fatalf("expected company name to be parsed, got %s", info.CompanyName)
	}
}

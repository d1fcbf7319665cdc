package qbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned when the API rejects the access token.
// Callers use it to decide between triggering a refresh and giving up.
var ErrUnauthorized = errors.New("quickbooks api rejected the access token")

// Client is a minimal QuickBooks Online v3 API client.  It carries no
// credentials of its own; the caller supplies the access token per call.
type Client struct {
	baseURL      string
	minorVersion string
	httpClient   *http.Client
	callTimeout  time.Duration
}

type CompanyInfo struct {
	CompanyName string `json:"CompanyName"`
	LegalName   string `json:"LegalName"`
	Country     string `json:"Country"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.QboApiBaseUrl, "/"),
		minorVersion: cfg.QboMinorVersion,
		httpClient:   &http.Client{},
		callTimeout:  cfg.EntityFetchTimeout,
	}
}

// FetchEntity retrieves the canonical representation of one entity.  The
// v3 API wraps the entity in an envelope keyed by its kind; the inner
// document is returned untouched.
func (c *Client) FetchEntity(ctx context.Context, accessToken string, realmID domain.RealmID, kind domain.EntityKind, entityID string) (json.RawMessage, error) {

	url := fmt.Sprintf("%s/v3/company/%s/%s/%s?minorversion=%s",
		c.baseURL, realmID, strings.ToLower(kind.String()), entityID, c.minorVersion)

	body, err := c.get(ctx, url, accessToken)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.LogErrorWithRealmID("Unable to parse entity fetch response", err, realmID)
		return nil, err
	}

	entity, ok := envelope[kind.String()]
	if !ok {
		return nil, fmt.Errorf("entity fetch response missing %s document", kind)
	}

	return entity, nil
}

// CompanyInfo issues the lightweight read used to validate that the
// current access token actually works.
func (c *Client) CompanyInfo(ctx context.Context, accessToken string, realmID domain.RealmID) (CompanyInfo, error) {

	var info CompanyInfo

	url := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s?minorversion=%s",
		c.baseURL, realmID, realmID, c.minorVersion)

	body, err := c.get(ctx, url, accessToken)
	if err != nil {
		return info, err
	}

	var envelope struct {
		CompanyInfo CompanyInfo `json:"CompanyInfo"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.LogErrorWithRealmID("Unable to parse company info response", err, realmID)
		return info, err
	}

	return envelope.CompanyInfo, nil
}

func (c *Client) get(ctx context.Context, url string, accessToken string) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		logger.Log.WithFields(logrus.Fields{"status": resp.StatusCode}).Debug("QuickBooks API auth failure")
		return nil, ErrUnauthorized
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quickbooks api returned status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

func truncate(b []byte, max int) string {
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}

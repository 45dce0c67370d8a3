// Package canary is the client for the self-hosted honeytoken factory
// API. Token creation is the one upstream call worth retrying with
// backoff: a partially-prepared drive must be able to resume.
package canary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
)

// CreateResult is the subset of the factory response we keep.
type CreateResult struct {
	TokenID  string
	URL      string
	Hostname string
}

type Client interface {
	CreateToken(ctx context.Context, kind, memo string) (*CreateResult, error)
}

type HTTPClient struct {
	ServerURL   string
	FactoryAuth string
	AlertEmail  string
	HTTP        *http.Client
	MaxRetries  int
}

func NewHTTPClient(serverURL, factoryAuth string) *HTTPClient {
	return &HTTPClient{
		ServerURL:   serverURL,
		FactoryAuth: factoryAuth,
		AlertEmail:  "alerts@example.com",
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		MaxRetries:  3,
	}
}

type createRequest struct {
	FactoryAuth string `json:"factory_auth"`
	Kind        string `json:"kind"`
	Memo        string `json:"memo"`
	Email       string `json:"email"`
}

type createResponse struct {
	Canarytoken struct {
		Canarytoken string `json:"canarytoken"`
		URL         string `json:"url"`
		Hostname    string `json:"hostname"`
	} `json:"canarytoken"`
}

func (c *HTTPClient) CreateToken(ctx context.Context, kind, memo string) (*CreateResult, error) {
	payload, err := json.Marshal(createRequest{
		FactoryAuth: c.FactoryAuth,
		Kind:        kind,
		Memo:        memo,
		Email:       c.AlertEmail,
	})
	if err != nil {
		return nil, err
	}

	url := c.ServerURL + "/api/v1/canarytoken/factory.create"

	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		result, retryable, err := c.tryCreate(ctx, url, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		log.WithError(err).WithFields(log.Fields{
			"kind":    kind,
			"attempt": attempt,
		}).Warn("token creation failed, retrying")

		select {
		case <-ctx.Done():
			return nil, apperrors.NewUpstreamUnavailable("create token", ctx.Err())
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, apperrors.NewUpstreamUnavailable("create token", lastErr)
}

func (c *HTTPClient) tryCreate(ctx context.Context, url string, payload []byte) (*CreateResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("factory returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("factory returned %d", resp.StatusCode)
	}

	var body createResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, err
	}
	if body.Canarytoken.Canarytoken == "" {
		return nil, false, fmt.Errorf("factory response missing token id")
	}

	return &CreateResult{
		TokenID:  body.Canarytoken.Canarytoken,
		URL:      body.Canarytoken.URL,
		Hostname: body.Canarytoken.Hostname,
	}, false, nil
}

var _ Client = (*HTTPClient)(nil)

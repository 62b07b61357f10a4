// Package auth mints the short-lived tenant-scoped bearer credentials the
// protocol client presents to the reasoning-agent backend.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"askbridge/internal/domain"
)

const defaultMintTimeout = 15 * time.Second

// HTTPMinter implements domain.CredentialMinter against a token service.
// It fails closed: invalid input is rejected before any network call.
type HTTPMinter struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// HTTPMinterConfig configures an HTTPMinter.
type HTTPMinterConfig struct {
	Endpoint   string // token service URL
	APIKey     string // service-to-service credential
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewHTTPMinter creates an HTTPMinter.
func NewHTTPMinter(cfg HTTPMinterConfig) *HTTPMinter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultMintTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPMinter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

type mintRequest struct {
	TenantID           string `json:"tenant_id"`
	UserEmail          string `json:"user_email,omitempty"`
	ExpirySeconds      int64  `json:"expiry_seconds"`
	PermissionAudience string `json:"permission_audience,omitempty"`
	NonBillable        bool   `json:"non_billable,omitempty"`
}

type mintResponse struct {
	Token string `json:"token"`
}

// Mint exchanges a tenant auth context for a bearer credential.
func (m *HTTPMinter) Mint(ctx context.Context, auth domain.TenantAuth) (string, error) {
	if auth.TenantID == "" {
		return "", fmt.Errorf("mint: tenant ID is required")
	}
	if auth.Expiry <= 0 {
		return "", fmt.Errorf("mint: expiry must be positive, got %s", auth.Expiry)
	}

	body, err := json.Marshal(mintRequest{
		TenantID:           auth.TenantID,
		UserEmail:          auth.UserEmail,
		ExpirySeconds:      int64(auth.Expiry.Seconds()),
		PermissionAudience: auth.PermissionAudience,
		NonBillable:        auth.NonBillable,
	})
	if err != nil {
		return "", fmt.Errorf("mint: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mint: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mint: token service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("mint: token service returned %d: %s", resp.StatusCode, snippet)
	}

	var out mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("mint: decode response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("mint: token service returned an empty token")
	}
	return out.Token, nil
}

// StaticMinter returns a fixed pre-issued credential. For local development
// and the CLI; validation still fails closed on an empty tenant.
type StaticMinter struct {
	Token string
}

func (s StaticMinter) Mint(_ context.Context, auth domain.TenantAuth) (string, error) {
	if auth.TenantID == "" {
		return "", fmt.Errorf("mint: tenant ID is required")
	}
	if s.Token == "" {
		return "", fmt.Errorf("mint: no static token configured")
	}
	return s.Token, nil
}

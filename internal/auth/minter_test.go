package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"askbridge/internal/domain"
)

func TestHTTPMinter_Mint(t *testing.T) {
	var got mintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"token":"minted-token"}`)
	}))
	defer srv.Close()

	m := NewHTTPMinter(HTTPMinterConfig{Endpoint: srv.URL, APIKey: "svc-key", HTTPClient: srv.Client()})
	token, err := m.Mint(context.Background(), domain.TenantAuth{
		TenantID:           "acme",
		UserEmail:          "dev@acme.test",
		Expiry:             15 * time.Minute,
		PermissionAudience: "knowledge-read",
		NonBillable:        true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "minted-token" {
		t.Fatalf("unexpected token: %q", token)
	}
	if got.TenantID != "acme" || got.ExpirySeconds != 900 || !got.NonBillable {
		t.Fatalf("unexpected mint request: %+v", got)
	}
}

func TestHTTPMinter_FailsClosedOnInvalidInput(t *testing.T) {
	m := NewHTTPMinter(HTTPMinterConfig{Endpoint: "http://unused.invalid"})

	if _, err := m.Mint(context.Background(), domain.TenantAuth{Expiry: time.Minute}); err == nil {
		t.Fatal("expected error for missing tenant ID")
	}
	if _, err := m.Mint(context.Background(), domain.TenantAuth{TenantID: "acme"}); err == nil {
		t.Fatal("expected error for non-positive expiry")
	}
}

func TestHTTPMinter_ServiceErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m := NewHTTPMinter(HTTPMinterConfig{Endpoint: srv.URL, HTTPClient: srv.Client()})
	if _, err := m.Mint(context.Background(), domain.TenantAuth{TenantID: "acme", Expiry: time.Minute}); err == nil {
		t.Fatal("expected error for non-200 token service response")
	}
}

func TestStaticMinter(t *testing.T) {
	m := StaticMinter{Token: "fixed"}
	token, err := m.Mint(context.Background(), domain.TenantAuth{TenantID: "acme"})
	if err != nil || token != "fixed" {
		t.Fatalf("expected fixed token, got %q, %v", token, err)
	}
	if _, err := m.Mint(context.Background(), domain.TenantAuth{}); err == nil {
		t.Fatal("expected error for missing tenant ID")
	}
	if _, err := (StaticMinter{}).Mint(context.Background(), domain.TenantAuth{TenantID: "acme"}); err == nil {
		t.Fatal("expected error for empty static token")
	}
}

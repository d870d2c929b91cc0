package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeAuthenticator struct {
	keys map[string]string
}

func (f fakeAuthenticator) AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error) {
	agentID, ok := f.keys[apiKey]
	if !ok {
		return "", errors.New("unknown api key")
	}
	return agentID, nil
}

func TestServiceAuthMissingKey(t *testing.T) {
	auth := fakeAuthenticator{keys: map[string]string{"key-1": "agent-1"}}
	handler := ServiceAuth(auth, testLogger())(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestServiceAuthValidKeyAttachesAgentID(t *testing.T) {
	auth := fakeAuthenticator{keys: map[string]string{"key-1": "agent-1"}}
	var gotAgentID string
	handler := ServiceAuth(auth, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgentID = AgentID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/reports", nil)
	req.Header.Set("X-API-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotAgentID != "agent-1" {
		t.Fatalf("expected agent-1 in context, got %q", gotAgentID)
	}
}

func TestServiceAuthInvalidKey(t *testing.T) {
	auth := fakeAuthenticator{keys: map[string]string{"key-1": "agent-1"}}
	handler := ServiceAuth(auth, testLogger())(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/reports", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegistrationAuthEmptySecretAllowsAll(t *testing.T) {
	handler := RegistrationAuth("", testLogger())(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/agents/register", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when no registration secret is configured, got %d", rec.Code)
	}
}

func TestRegistrationAuthRejectsBadToken(t *testing.T) {
	handler := RegistrationAuth("cluster-secret", testLogger())(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/agents/register", nil)
	req.Header.Set("X-Registration-Token", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegistrationAuthAcceptsGoodToken(t *testing.T) {
	handler := RegistrationAuth("cluster-secret", testLogger())(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/agents/register", nil)
	req.Header.Set("X-Registration-Token", "cluster-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedHandler(secret string) http.Handler {
	return APIKeyAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAPIKeyAuthRejectsMissingKey(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	authedHandler("s3cret").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/detect", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyAuthRejectsWrongKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	req.Header.Set("x-api-key", "wrong")
	rec := httptest.NewRecorder()
	authedHandler("s3cret").ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyAuthAcceptsCorrectKey(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/detect", nil)
	req.Header.Set("x-api-key", "s3cret")
	rec := httptest.NewRecorder()
	authedHandler("s3cret").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAPIKeyAuthDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	authedHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/detect", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when auth is disabled", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached inner handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/detect", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("credentials allowed for wildcard origin")
	}
}

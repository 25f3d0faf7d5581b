package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func issueHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func callMiddleware(cfg JWTCfg, prepare func(r *http.Request)) (*httptest.ResponseRecorder, int64) {
	var gotUserID int64
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/friend-requests", nil)
	prepare(req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotUserID
}

func TestMiddleware_ValidToken(t *testing.T) {
	secret := "test-hmac-secret"
	token := issueHS256(t, secret, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	rec, userID := callMiddleware(JWTCfg{HS256Secret: secret}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if userID != 42 {
		t.Errorf("expected user ID 42, got %d", userID)
	}
}

func TestMiddleware_NonNumericSubject(t *testing.T) {
	secret := "test-hmac-secret"
	token := issueHS256(t, secret, jwt.MapClaims{
		"sub": "user_01KAHS4J",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec, _ := callMiddleware(JWTCfg{HS256Secret: secret}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-numeric subject, got %d", rec.Code)
	}
}

func TestMiddleware_WrongSecret(t *testing.T) {
	token := issueHS256(t, "other-secret", jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec, _ := callMiddleware(JWTCfg{HS256Secret: "test-hmac-secret"}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signature, got %d", rec.Code)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	secret := "test-hmac-secret"
	token := issueHS256(t, secret, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	})

	rec, _ := callMiddleware(JWTCfg{HS256Secret: secret}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	rec, _ := callMiddleware(JWTCfg{HS256Secret: "test-hmac-secret"}, func(r *http.Request) {})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
}

func TestMiddleware_DebugSubInDevMode(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "test-hmac-secret", DevMode: true}
	rec, userID := callMiddleware(cfg, func(r *http.Request) {
		r.Header.Set("X-Debug-Sub", "7")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 in dev mode, got %d", rec.Code)
	}
	if userID != 7 {
		t.Errorf("expected user ID 7, got %d", userID)
	}
}

func TestMiddleware_DebugSubIgnoredInProd(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "test-hmac-secret", DevMode: false}
	rec, _ := callMiddleware(cfg, func(r *http.Request) {
		r.Header.Set("X-Debug-Sub", "7")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when dev mode is off, got %d", rec.Code)
	}
}

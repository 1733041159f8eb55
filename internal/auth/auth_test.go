package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupAuth(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-with-enough-length")
	require.NoError(t, Init())
}

func TestInit(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, Init())

	t.Setenv("JWT_SECRET", "short")
	assert.Error(t, Init())
}

func TestGenerateAndValidateToken(t *testing.T) {
	setupAuth(t)

	token, err := GenerateToken("u-1", "ops@example.com", "operator")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, "operator", claims.Role)

	_, err = ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTMiddleware(t *testing.T) {
	setupAuth(t)

	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTMiddleware(next)

	token, err := GenerateToken("u-1", "ops@example.com", "operator")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"public health", http.MethodGet, "/health", "", http.StatusOK},
		{"public check", http.MethodPost, "/api/check-invoice", "", http.StatusOK},
		{"preflight", http.MethodOptions, "/api/reports", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/reports", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/api/reports", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/reports", "Bearer nope", http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/api/reports", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "ops@example.com", seen.Email)
}

func TestLoginHandler(t *testing.T) {
	setupAuth(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("AUTH_EMAIL", "ops@example.com")
	t.Setenv("AUTH_PASSWORD_HASH", string(hash))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"email":"OPS@example.com","password":"correct horse"}`, http.StatusOK},
		{"wrong password", `{"email":"ops@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"wrong email", `{"email":"x@example.com","password":"correct horse"}`, http.StatusUnauthorized},
		{"missing fields", `{"email":"ops@example.com"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			LoginHandler(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"token"`)
			}
		})
	}
}

func TestLoginNotConfigured(t *testing.T) {
	setupAuth(t)
	t.Setenv("AUTH_EMAIL", "")
	t.Setenv("AUTH_PASSWORD_HASH", "")

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	rec := httptest.NewRecorder()
	LoginHandler(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

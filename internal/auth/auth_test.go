package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gva-control/gvc/internal/audit"
)

const testSecret = "unit-test-secret"

func TestSignAndVerifyRoundtrip(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := v.Sign("op-7", RoleOperator, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "op-7", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("other-secret").Sign("op-7", RoleOperator, time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign("op-7", RoleOperator, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign("op-7", "root", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsCan(t *testing.T) {
	operator := &Claims{Subject: "a", Role: RoleOperator}
	viewer := &Claims{Subject: "b", Role: RoleViewer}

	assert.True(t, operator.Can(RoleOperator))
	assert.True(t, operator.Can(RoleViewer))
	assert.True(t, viewer.Can(RoleViewer))
	assert.False(t, viewer.Can(RoleOperator))
}

func protectedHandler(t *testing.T, sawOperator *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawOperator = audit.OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRequiresToken(t *testing.T) {
	mw := NewMiddleware(NewVerifier(testSecret))
	var operator string
	handler := mw.Require(RoleOperator)(protectedHandler(t, &operator))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/safety/trigger", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsViewerOnOperatorRoute(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign("viewer-1", RoleViewer, time.Hour)
	require.NoError(t, err)

	mw := NewMiddleware(v)
	var operator string
	handler := mw.Require(RoleOperator)(protectedHandler(t, &operator))

	req := httptest.NewRequest("POST", "/api/v1/safety/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareInjectsOperatorForAudit(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Sign("op-7", RoleOperator, time.Hour)
	require.NoError(t, err)

	mw := NewMiddleware(v)
	var operator string
	handler := mw.Require(RoleOperator)(protectedHandler(t, &operator))

	req := httptest.NewRequest("POST", "/api/v1/safety/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "op-7", operator)
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	mw := NewMiddleware(nil)
	var operator string
	handler := mw.Require(RoleOperator)(protectedHandler(t, &operator))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/safety/trigger", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown", operator)
}

func TestMiddlewareMalformedHeader(t *testing.T) {
	mw := NewMiddleware(NewVerifier(testSecret))
	handler := mw.Require(RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, header := range []string{"Token abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest("GET", "/api/v1/safety/status", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

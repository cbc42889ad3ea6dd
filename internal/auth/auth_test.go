package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	tok, err := IssueToken(testSecret, "user-1", "a@example.com", "Ann", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "Ann", claims.Name)

	_, err = ParseToken("other-secret", tok)
	assert.Error(t, err)

	_, err = IssueToken("", "user-1", "", "", time.Minute)
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	claims := &JwtCustomClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expired,
		"no user":      noUser,
		"wrong issuer": wrongIssuer,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tok)
			assert.Error(t, err)
		})
	}
}

func serve(mw echo.MiddlewareFunc, setup func(*http.Request)) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, _ := c.Get(ContextKeyUserID).(string)
		return c.String(http.StatusOK, id)
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJwtAuthMiddleware(t *testing.T) {
	tok, err := IssueToken(testSecret, "user-1", "", "", time.Minute)
	require.NoError(t, err)

	rec := serve(JwtAuthMiddleware(testSecret), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = serve(JwtAuthMiddleware(testSecret), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer invalid")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(JwtAuthMiddleware(testSecret), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	rec = serve(JwtAuthMiddleware(testSecret), func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access-token", Value: tok})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalJwtMiddleware(t *testing.T) {
	tok, err := IssueToken(testSecret, "user-2", "", "", time.Minute)
	require.NoError(t, err)

	rec := serve(OptionalJwtMiddleware(testSecret), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(OptionalJwtMiddleware(testSecret), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(OptionalJwtMiddleware(testSecret), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	assert.Equal(t, "user-2", rec.Body.String())
}

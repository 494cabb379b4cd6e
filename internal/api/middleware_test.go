package api

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/service"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func signToken(t *testing.T, secret string, userID primitive.ObjectID, role domain.Role, exp time.Time) string {
	t.Helper()
	claims := &service.TokenClaims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			Issuer:    service.TokenIssuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)
	user, _ := srv.user(t, "user@example.com", domain.RoleUser)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"no header", "", http.StatusUnauthorized, "missing token"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "missing token"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", user.ID, domain.RoleUser, future), http.StatusUnauthorized, "invalid token"},
		{"expired", "Bearer " + signToken(t, testSecret, user.ID, domain.RoleUser, time.Now().Add(-time.Minute)), http.StatusUnauthorized, "invalid token"},
		{"unknown role", "Bearer " + signToken(t, testSecret, user.ID, domain.Role("root"), future), http.StatusUnauthorized, "invalid token"},
		{"valid", "Bearer " + signToken(t, testSecret, user.ID, domain.RoleUser, future), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodGet, "/api/exercises", "", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := srv.do(req)
			assert.Equal(t, tt.status, w.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode(t, w)["error"])
			}
		})
	}
}

func TestRoleMiddleware_AdminOnlyRoutes(t *testing.T) {
	srv := newTestServer(t)
	_, userToken := srv.user(t, "user@example.com", domain.RoleUser)

	w := srv.do(jsonRequest(t, http.MethodPost, "/api/exercises", userToken, map[string]string{"name": "x"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient role", decode(t, w)["error"])

	w = srv.do(jsonRequest(t, http.MethodDelete, "/api/exercises/"+primitive.NewObjectID().Hex(), userToken, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "New@Example.com", "password": "secret1", "firstName": "New", "lastName": "User",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "new@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "passwordHash")

	w = srv.do(jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "new@example.com", "password": "secret1", "firstName": "New", "lastName": "User",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user with this email already exists", decode(t, w)["error"])

	w = srv.do(jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "boss@example.com", "password": "secret1", "firstName": "B", "lastName": "Oss", "role": "admin",
	}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "secret1", "firstName": "A", "lastName": "B",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", decode(t, w)["field"])

	w = srv.do(jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "new@example.com", "password": "wrong!"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "new@example.com", "password": "secret1"}))
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = srv.do(jsonRequest(t, http.MethodGet, "/api/auth/profile", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new@example.com", decode(t, w)["email"])

	w = srv.do(jsonRequest(t, http.MethodGet, "/api/auth/profile", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

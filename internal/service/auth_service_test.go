package service

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/repository/memory"
	"alcyxob/motion-coach/internal/validation"
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registration() validation.UserInput {
	return validation.UserInput{Email: " Jane@Example.com ", Password: "secret1", FirstName: "Jane", LastName: "Doe"}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewAuthService(store.Users(), "test-secret", time.Hour, false)

	user, err := svc.Register(ctx, registration())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Register(ctx, registration())
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, loggedIn, err := svc.Login(ctx, validation.CredentialsInput{Email: "JANE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, "HS256", parsed.Method.Alg())

	_, _, err = svc.Login(ctx, validation.CredentialsInput{Email: "jane@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = svc.Login(ctx, validation.CredentialsInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.PasswordHash)
}

func TestAuthService_AdminSignup(t *testing.T) {
	ctx := context.Background()
	in := registration()
	in.Role = domain.RoleAdmin

	_, err := NewAuthService(memory.NewStore().Users(), "s", time.Hour, false).Register(ctx, in)
	assert.ErrorIs(t, err, ErrAdminSignupDisabled)

	user, err := NewAuthService(memory.NewStore().Users(), "s", time.Hour, true).Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(memory.NewStore().Users(), "s", time.Hour, false)
	in := registration()
	in.Password = "123"

	_, err := svc.Register(context.Background(), in)
	var fieldErr *validation.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "password", fieldErr.Field)
	assert.Equal(t, "min", fieldErr.Rule)
}

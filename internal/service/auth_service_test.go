package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-adp-planner/internal/models"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

func newAuthServiceForTest(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(nil, zap.NewNop(), AuthConfig{
		Username:          "planner",
		PasswordHash:      string(hash),
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "weekly-planner",
	})
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	svc := newAuthServiceForTest(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "planner", Password: "s3cret", IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "planner", claims.Username)
	assert.Equal(t, "weekly-planner", claims.Issuer)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthServiceForTest(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "planner", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "intruder", Password: "s3cret"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginValidatesPayload(t *testing.T) {
	svc := newAuthServiceForTest(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "planner"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLoginDisabledWithoutHash(t *testing.T) {
	svc := NewAuthService(nil, nil, AuthConfig{Username: "planner", AccessTokenSecret: "secret"})

	assert.False(t, svc.Enabled())
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "planner", Password: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAuthServiceValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthServiceForTest(t)

	claims := &models.JWTClaims{
		Username: "planner",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthServiceForTest(t)

	claims := &models.JWTClaims{
		Username: "planner",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

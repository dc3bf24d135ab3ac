package services_test

import (
	"io"
	"log"
	"os"
	"testing"

	"loja/internal/services"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func operatorAuthService(t *testing.T, username, password string) *services.AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	return services.NewAuthService(username, string(hash), "test_jwt_secret")
}

func TestAuthService_Login(t *testing.T) {
	authService := operatorAuthService(t, "admin", "password123")

	// Successful login returns a token
	token, err := authService.Login("admin", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Wrong password
	token, err = authService.Login("admin", "wrongpassword")
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "invalid credentials")

	// Wrong username
	token, err = authService.Login("intruder", "password123")
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := operatorAuthService(t, "admin", "password123")

	token, err := authService.Login("admin", "password123")
	assert.NoError(t, err)

	// A freshly issued token validates and carries the username claim
	claims, err := authService.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "admin", claims["username"])

	// Garbage is rejected
	claims, err = authService.ValidateToken("not.a.token")
	assert.Error(t, err)
	assert.Nil(t, claims)

	// Tokens signed with a different secret are rejected
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	foreign := services.NewAuthService("admin", string(hash), "other_secret")
	foreignToken, err := foreign.Login("admin", "password123")
	assert.NoError(t, err)
	claims, err = authService.ValidateToken(foreignToken)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

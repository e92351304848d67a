package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewSessionManager(t *testing.T) {
	secret := "test-secret-key-for-testing-purposes"
	expiry := 24 * time.Hour

	manager := NewSessionManager(secret, expiry)

	assert.NotNil(t, manager)
	assert.Equal(t, secret, manager.secretKey)
	assert.Equal(t, expiry, manager.sessionDuration)
}

func TestGenerateSessionToken(t *testing.T) {
	manager := NewSessionManager("test-secret", 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateSessionToken(userID, "Test User", "user")

	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestValidateToken_ValidToken(t *testing.T) {
	manager := NewSessionManager("test-secret", 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateSessionToken(userID, "Test User", "user")
	assert.NoError(t, err)

	claims, err := manager.ValidateToken(token)

	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, "user", claims.Role)
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	// Create manager with very short expiry
	manager := NewSessionManager("test-secret", 1*time.Nanosecond)
	userID := uuid.New()

	token, err := manager.GenerateSessionToken(userID, "Test User", "user")
	assert.NoError(t, err)

	// Wait for token to expire
	time.Sleep(10 * time.Millisecond)

	claims, err := manager.ValidateToken(token)

	assert.Error(t, err)
	assert.Nil(t, claims)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateToken_InvalidToken(t *testing.T) {
	manager := NewSessionManager("test-secret", 24*time.Hour)

	claims, err := manager.ValidateToken("invalid.token.here")

	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	// Generate with one secret
	manager1 := NewSessionManager("secret-1", 24*time.Hour)
	userID := uuid.New()
	token, err := manager1.GenerateSessionToken(userID, "Test User", "user")
	assert.NoError(t, err)

	// Validate with different secret
	manager2 := NewSessionManager("secret-2", 24*time.Hour)
	claims, err := manager2.ValidateToken(token)

	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestExtractUserID(t *testing.T) {
	manager := NewSessionManager("test-secret", 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateSessionToken(userID, "Test User", "user")
	assert.NoError(t, err)

	extractedID, err := manager.ExtractUserID(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, extractedID)
}

func TestTokenClaims(t *testing.T) {
	manager := NewSessionManager("test-secret", 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateSessionToken(userID, "Admin User", "admin")
	assert.NoError(t, err)

	claims, err := manager.ValidateToken(token)
	assert.NoError(t, err)

	// Verify claims structure
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Admin User", claims.Name)
	assert.Equal(t, "admin", claims.Role)
	assert.NotZero(t, claims.IssuedAt)
	assert.NotZero(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
	assert.Equal(t, "skillswap-auth", claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewJWTManager(t *testing.T) {
	secret := "test-secret-key-for-testing-purposes"
	accessExpiry := 15 * time.Minute
	refreshExpiry := 24 * time.Hour

	manager := NewJWTManager(secret, accessExpiry, refreshExpiry)

	assert.NotNil(t, manager)
	assert.Equal(t, secret, manager.secretKey)
	assert.Equal(t, accessExpiry, manager.accessTokenDuration)
	assert.Equal(t, refreshExpiry, manager.refreshTokenDuration)
}

func TestGenerateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "test@example.com", "testuser", "user")

	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestValidateToken_ValidToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "test@example.com", "testuser", "user")
	assert.NoError(t, err)

	claims, err := manager.ValidateToken(token)

	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "orgchat-api", claims.Audience)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	other := NewJWTManager("other-secret", 15*time.Minute, 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "test@example.com", "testuser", "user")
	assert.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewJWTManager("test-secret", -1*time.Minute, 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "test@example.com", "testuser", "user")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.Error(t, err)
	assert.True(t, IsTokenExpired(token))
}

func TestExtractUserID(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "test@example.com", "testuser", "user")
	assert.NoError(t, err)

	extracted, err := manager.ExtractUserID(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, extracted)
}

package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)

	token, exp, err := s.GenerateToken(Subject{UserID: "u-1", Email: "a@b.test", Type: "regular"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "a@b.test", claims.Email)
	assert.Equal(t, "regular", claims.Type)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, _, err := NewService("one", time.Hour).GenerateToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	s := NewService("secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := s.GenerateToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

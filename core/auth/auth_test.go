package auth

import (
	"strings"
	"testing"
	"time"

	"FragFM/core/errs"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPasswordHash(t *testing.T) {
	p := NewPasswordHasher(bcrypt.MinCost)
	hash, err := p.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, p.Check("s3cret", hash))
	assert.False(t, p.Check("wrong", hash))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPasswordHasherCost(t *testing.T) {
	assert.Equal(t, 12, NewPasswordHasher(12).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).Cost())
}

func TestPasswordTooLong(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost).Hash(strings.Repeat("x", 73))
	require.Error(t, err)
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, 7*24*time.Hour)

	tok, err := m.GenerateToken(12, "admin")
	require.NoError(t, err)

	claims, err := m.ParseToken(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 12, claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "fragfm-api", claims.Issuer)
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.GenerateToken(1, "admin")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenRejectsForeignSignatures(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	other := NewTokenManager(strings.Repeat("x", 32), time.Hour)

	tok, err := other.GenerateToken(1, "admin")
	require.NoError(t, err)
	_, err = m.ParseToken(tok)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseToken(none)
	assert.Error(t, err)

	_, err = m.ParseToken("  ")
	assert.Error(t, err)
	_, err = m.GenerateToken(0, "nobody")
	assert.Error(t, err)
}

package auth

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTMakerRoundTrip(t *testing.T) {
	maker, err := NewJWTMaker(testSecret, time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, issued, err := maker.CreateToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, issued.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestJWTMakerExpired(t *testing.T) {
	maker, err := NewJWTMaker(testSecret, time.Minute)
	require.NoError(t, err)

	issuedAt := time.Now().Add(-time.Hour)
	maker.now = func() time.Time { return issuedAt }
	token, _, err := maker.CreateToken(uuid.New())
	require.NoError(t, err)

	maker.now = time.Now
	_, err = maker.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTMakerRejectsForeignSignature(t *testing.T) {
	maker, err := NewJWTMaker(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewJWTMaker("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	token, _, err := other.CreateToken(uuid.New())
	require.NoError(t, err)

	_, err = maker.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTMakerRejectsNoneAlgorithm(t *testing.T) {
	maker, err := NewJWTMaker(testSecret, time.Hour)
	require.NoError(t, err)

	claims := &Claims{UserID: uuid.New(), RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = maker.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTMakerValidation(t *testing.T) {
	_, err := NewJWTMaker("short", time.Hour)
	assert.Error(t, err)

	_, err = NewJWTMaker(testSecret, 0)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)

	first, err := h.Hash("secret1")
	require.NoError(t, err)
	second, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("secret1", first))
	assert.True(t, h.Verify("secret1", second))
	assert.False(t, h.Verify("secret2", first))
	assert.False(t, h.Verify("secret1", "not-a-hash"))
}

func TestBcryptHasherCostFallback(t *testing.T) {
	assert.Equal(t, 10, NewBcryptHasher(0).Cost)
	assert.Equal(t, 12, NewBcryptHasher(12).Cost)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	p := Principal{ID: uuid.New(), Role: models.RoleSeller}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}

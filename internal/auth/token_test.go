package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	ti, err := NewTokenIssuer(GenerateSecret(), time.Hour)
	require.NoError(t, err)

	token, err := ti.Issue("alice", "overworld", true)
	require.NoError(t, err)

	// Три части JWT
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}

	claims, err := ti.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.Equal(t, "overworld", claims.World)
	assert.True(t, claims.CanWrite)
	assert.Equal(t, "alice", claims.Subject)
}

func TestTokenIssuer_RejectsForeignSecret(t *testing.T) {
	a, err := NewTokenIssuer(GenerateSecret(), time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer(GenerateSecret(), time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("bob", "overworld", false)
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = a.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Expired(t *testing.T) {
	ti, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)

	claims := &Claims{
		Operator: "carol",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	require.NoError(t, err)

	_, err = ti.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_WeakSecret(t *testing.T) {
	_, err := NewTokenIssuer("c2hvcnQ=", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenIssuer("%%%", time.Hour)
	assert.Error(t, err)
}

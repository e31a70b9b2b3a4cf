package capability

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/shieldforce/internal/domain"
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, &key.PublicKey
}

func TestIssueAndVerify(t *testing.T) {
	priv, pub := testKeys(t)
	issuer := NewIssuer(priv, 5*time.Minute)
	verifier := NewVerifier(pub)

	budgets := domain.Budgets{MaxTokens: 4096, MaxToolCalls: 10}
	grant, err := issuer.Issue("agent-7", []string{"crm.read"}, []string{"customers"}, budgets)
	require.NoError(t, err)

	claims, err := verifier.Verify(grant)
	require.NoError(t, err)

	assert.Equal(t, "agent-7", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, []string{"crm.read"}, claims.Tools)
	assert.Equal(t, []string{"customers"}, claims.Scopes)
	assert.Equal(t, budgets, claims.Budgets)
}

func TestVerifyExpiredGrant(t *testing.T) {
	priv, pub := testKeys(t)
	issuer := NewIssuer(priv, -1*time.Minute) // уже истек в момент выпуска
	verifier := NewVerifier(pub)

	grant, err := issuer.Issue("agent-7", nil, nil, domain.Budgets{})
	require.NoError(t, err)

	_, err = verifier.Verify(grant)
	assert.ErrorIs(t, err, ErrExpiredGrant)
}

func TestVerifyBadSignature(t *testing.T) {
	priv, _ := testKeys(t)
	_, otherPub := testKeys(t)

	issuer := NewIssuer(priv, 5*time.Minute)
	verifier := NewVerifier(otherPub)

	grant, err := issuer.Issue("agent-7", nil, nil, domain.Budgets{})
	require.NoError(t, err)

	_, err = verifier.Verify(grant)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyAudienceMismatch(t *testing.T) {
	priv, pub := testKeys(t)
	verifier := NewVerifier(pub)

	// Грант с чужой аудиторией, но валидной подписью
	claims := &domain.CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
			Subject:   "agent-7",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestVerifyGarbageToken(t *testing.T) {
	_, pub := testKeys(t)
	verifier := NewVerifier(pub)

	_, err := verifier.Verify("not-a-jwt-at-all")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExpiredGrant)
}

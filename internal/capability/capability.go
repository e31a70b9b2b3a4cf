package capability

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/shieldforce/internal/domain"
)

// Константы контракта гранта. Agent обязан отвергнуть вызов, если грант
// не проходит Verify, и не выходить за tools/scopes/budgets своего гранта.
const (
	Issuer   = "shieldforce-ingress"
	Audience = "agent"
)

// Таксономия ошибок верификации — вызывающим нужно их различать.
var (
	ErrExpiredGrant     = errors.New("capability: grant expired")
	ErrBadSignature     = errors.New("capability: bad signature")
	ErrAudienceMismatch = errors.New("capability: audience mismatch")
)

// IssuerService подписывает гранты закрытым ключом (RS256).
// Живет только на стороне Ingress: Data Plane агента ключа не видит.
type IssuerService struct {
	privateKey *rsa.PrivateKey
	ttl        time.Duration
}

func NewIssuer(privateKey *rsa.PrivateKey, ttl time.Duration) *IssuerService {
	return &IssuerService{privateKey: privateKey, ttl: ttl}
}

// Issue выпускает короткоживущий подписанный грант с детерминированными
// клеймами. После подписи грант неизменяем; отзыва нет — только истечение.
func (s *IssuerService) Issue(agentID string, tools, scopes []string, budgets domain.Budgets) (string, error) {
	now := time.Now()
	claims := &domain.CapabilityClaims{
		Tools:   tools,
		Scopes:  scopes,
		Budgets: budgets,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant: %w", err)
	}
	return signed, nil
}

// VerifierService проверяет гранты открытым ключом.
// Именно верификатор (а не эмитент) форсирует истечение.
type VerifierService struct {
	publicKey *rsa.PublicKey
}

func NewVerifier(publicKey *rsa.PublicKey) *VerifierService {
	return &VerifierService{publicKey: publicKey}
}

// Verify разбирает грант и маппит ошибки jwt в нашу таксономию.
func (v *VerifierService) Verify(tokenStr string) (*domain.CapabilityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &domain.CapabilityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredGrant
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrAudienceMismatch
		default:
			return nil, fmt.Errorf("invalid grant: %w", err)
		}
	}

	claims, ok := token.Claims.(*domain.CapabilityClaims)
	if !ok || !token.Valid {
		return nil, ErrBadSignature
	}

	return claims, nil
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey превращает []byte в объект для подписи (Ingress/Console)
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

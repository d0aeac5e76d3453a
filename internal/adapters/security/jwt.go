package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// JWTVerifier validates RS256 bearer tokens issued by the platform
// authentication service. This service never signs tokens; it only holds the
// issuer's public key.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
}

// NewJWTVerifier builds a verifier from the issuer's public PEM key.
func NewJWTVerifier(publicKeyPEM string) (*JWTVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("jwt public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pub}, nil
}

// NewEphemeralVerifier generates an in-memory keypair and returns the
// verifier together with a signer func for tests and local development,
// where no real authentication service issues tokens.
func NewEphemeralVerifier() (*JWTVerifier, func(claims ports.AuthClaims) (string, error), error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	verifier := &JWTVerifier{publicKey: &privateKey.PublicKey}
	sign := func(claims ports.AuthClaims) (string, error) {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, platformJWTClaims{
			UserID: claims.UserID.String(),
			Role:   claims.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
				ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			},
		})
		token.Header["kid"] = "ephemeral-key-1"
		return token.SignedString(privateKey)
	}
	return verifier, sign, nil
}

type platformJWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) ParseAndValidate(raw string) (ports.AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &platformJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.AuthClaims{}, domain.ErrTokenExpired
		}
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*platformJWTClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: parse user_id: %v", domain.ErrUnauthorized, err)
	}

	kid, _ := parsed.Header["kid"].(string)

	return ports.AuthClaims{
		UserID:    userID,
		Role:      claims.Role,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		KeyID:     kid,
	}, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}

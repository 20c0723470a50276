package storage

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenProvider mints short-lived ES256 bearer tokens from an org
// signing key. It implements TokenProvider for deployments that hold the
// key themselves instead of delegating to a token service.
type JWTTokenProvider struct {
	name       string
	privateKey *ecdsa.PrivateKey
}

// NewJWTTokenProvider parses a PEM-encoded ECDSA private key (PKCS#8 or
// SEC 1) and returns a provider issuing tokens for the named org.
func NewJWTTokenProvider(name string, pemKey []byte) (*JWTTokenProvider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("token provider requires an org name")
	}
	privateKey, err := parseECPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &JWTTokenProvider{name: name, privateKey: privateKey}, nil
}

// Token mints a token scoped to one repository.
func (p *JWTTokenProvider) Token(_ context.Context, repoID string, options TokenOptions) (string, error) {
	permissions := options.Permissions
	if len(permissions) == 0 {
		permissions = []Permission{PermissionGitWrite, PermissionGitRead}
	}

	ttl := options.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	issuedAt := time.Now()
	claims := jwt.MapClaims{
		"iss":    p.name,
		"sub":    "@pierre/storage",
		"repo":   repoID,
		"scopes": permissions,
		"iat":    issuedAt.Unix(),
		"exp":    issuedAt.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(p.privateKey)
}

func parseECPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("failed to parse private key PEM")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if ecKey, ok := key.(*ecdsa.PrivateKey); ok {
			return ecKey, nil
		}
		return nil, errors.New("private key is not ECDSA")
	}

	if ecKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return ecKey, nil
	}

	return nil, errors.New("unsupported private key format")
}

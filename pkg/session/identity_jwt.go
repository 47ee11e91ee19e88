package session

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier authenticates IdentityIssuedToken tokens signed with the
// server's own ed25519 key pair, grounded on the teacher's
// JWTAuthenticator (internal/auth/jwt.go) and reassigned from HTTP
// bearer auth to the OPC UA IssuedIdentityToken (spec §4.E).
type JWTVerifier struct {
	publicKey ed25519.PublicKey
	issuer    string
}

func NewJWTVerifier(publicKey ed25519.PublicKey, issuer string) *JWTVerifier {
	return &JWTVerifier{publicKey: publicKey, issuer: issuer}
}

func (*JWTVerifier) Kind() IdentityTokenKind { return IdentityIssuedToken }

func (v *JWTVerifier) Verify(tok IdentityToken) (string, error) {
	if len(tok.IssuedTokenData) == 0 {
		return "", errors.New("session: empty issued token")
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(string(tok.IssuedTokenData), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return "", fmt.Errorf("session: parse jwt: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("session: jwt not valid")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("session: jwt missing subject")
	}
	return sub, nil
}

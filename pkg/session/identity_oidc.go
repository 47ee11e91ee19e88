package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier is an alternate IdentityIssuedToken backend: bearer ID
// tokens from a federated identity provider, instead of tokens the
// server itself issues via JWTVerifier. A deployment registers exactly
// one of the two as its IssuedToken verifier. Grounded on the teacher's
// OIDC login flow (internal/auth/oidc.go), reassigned here from an HTTP
// redirect login to straight ID-token verification against the OPC UA
// IssuedIdentityToken (spec §4.E).
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuerURL and configures
// token verification against clientID's audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("session: oidc discovery: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (*OIDCVerifier) Kind() IdentityTokenKind { return IdentityIssuedToken }

func (v *OIDCVerifier) Verify(tok IdentityToken) (string, error) {
	if len(tok.IssuedTokenData) == 0 {
		return "", errors.New("session: empty issued token")
	}
	idToken, err := v.verifier.Verify(context.Background(), string(tok.IssuedTokenData))
	if err != nil {
		return "", fmt.Errorf("session: verify oidc token: %w", err)
	}
	var claims struct {
		Subject string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("session: oidc claims: %w", err)
	}
	return claims.Subject, nil
}

package session

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/uastack/uacore/pkg/securitypolicy"
	"github.com/uastack/uacore/pkg/ua"
)

// X509Verifier authenticates IdentityX509 tokens by running the client
// certificate through the same chain/revocation checks the
// SecureChannel uses for its own peer certificate (pkg/securitypolicy),
// then taking the certificate subject as the principal.
type X509Verifier struct {
	TrustList  []*x509.Certificate
	IssuerList []*x509.Certificate
	CRLs       []securitypolicy.CRL
}

func (*X509Verifier) Kind() IdentityTokenKind { return IdentityX509 }

func (v *X509Verifier) Verify(tok IdentityToken) (string, error) {
	if len(tok.Certificate) == 0 {
		return "", errors.New("session: empty certificate")
	}
	if status := securitypolicy.VerifyCertificate(tok.Certificate, v.TrustList, v.IssuerList, v.CRLs, nil); status != ua.Good {
		return "", fmt.Errorf("session: certificate rejected: %s", status)
	}
	cert, err := x509.ParseCertificate(tok.Certificate)
	if err != nil {
		return "", fmt.Errorf("session: parse certificate: %w", err)
	}
	return cert.Subject.String(), nil
}

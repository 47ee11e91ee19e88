package securitypolicy

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	"github.com/uastack/uacore/pkg/ua"
	"golang.org/x/crypto/ocsp"
)

// CRL is the minimal revocation-list shape this package consults: a
// parsed pkix.CertificateList plus the issuer that signed it.
type CRL struct {
	Issuer *x509.Certificate
	List   *pkix.CertificateList
}

// OCSPResponder optionally augments the CRL-based revocation check
// (spec §4.B names CRL lists explicitly; this is the supplemental path
// named in SPEC_FULL.md's domain-stack wiring). nil disables it.
type OCSPResponder struct {
	Issuer   *x509.Certificate
	Response []byte // raw DER OCSP response, pre-fetched by the caller
}

// VerifyCertificate reproduces open62541's ua_pki_openssl.c decision
// order: time validity is checked before chain trust, which is checked
// before revocation (SPEC_FULL.md §10).
func VerifyCertificate(certDER []byte, trustList, issuerList []*x509.Certificate, crls []CRL, ocspResp *OCSPResponder) ua.StatusCode {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return ua.BadCertificateInvalid
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return ua.BadCertificateTimeInvalid
	}

	roots := x509.NewCertPool()
	intermediates := x509.NewCertPool()
	for _, c := range trustList {
		roots.AddCert(c)
	}
	for _, c := range issuerList {
		intermediates.AddCert(c)
	}

	// Self-signed certificates are valid only if they are themselves in
	// the trust list (checked via chain verification against roots).
	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil || len(chains) == 0 {
		return ua.BadCertificateUntrusted
	}

	if status := checkRevocation(cert, crls, ocspResp); status != ua.Good {
		return status
	}

	return ua.Good
}

func checkRevocation(cert *x509.Certificate, crls []CRL, ocspResp *OCSPResponder) ua.StatusCode {
	found := false
	for _, c := range crls {
		if c.List == nil {
			continue
		}
		if !certIssuedByCRLIssuer(cert, c.Issuer) {
			continue
		}
		found = true
		for _, rc := range c.List.TBSCertList.RevokedCertificates {
			if rc.SerialNumber != nil && cert.SerialNumber != nil && rc.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return ua.BadCertificateRevoked
			}
		}
	}

	if ocspResp != nil {
		resp, err := ocsp.ParseResponse(ocspResp.Response, ocspResp.Issuer)
		if err != nil {
			return ua.BadCertificateRevocationUnknown
		}
		switch resp.Status {
		case ocsp.Revoked:
			return ua.BadCertificateRevoked
		case ocsp.Good:
			return ua.Good
		default:
			return ua.BadCertificateRevocationUnknown
		}
	}

	if !found {
		return ua.BadCertificateRevocationUnknown
	}
	return ua.Good
}

func certIssuedByCRLIssuer(cert *x509.Certificate, issuer *x509.Certificate) bool {
	if issuer == nil {
		return false
	}
	return cert.Issuer.String() == issuer.Subject.String()
}

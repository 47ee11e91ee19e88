// Package securitypolicy implements the SecurityPolicy abstraction of
// spec §4.B: sign/verify, encrypt/decrypt, key derivation, nonce
// generation and certificate handling, with a "None" identity policy and
// a Basic256Sha256-style policy built on Go's standard crypto plus
// golang.org/x/crypto for the parts the standard library doesn't cover
// (OCSP revocation checking). OpenSSL/MBedTLS themselves are out of
// scope per spec §1 — only this abstract interface is specified.
package securitypolicy

import (
	"crypto/rand"
	"fmt"
)

// Policy is the per-algorithm-suite implementation. It is stateless
// between calls; all per-channel key material lives in a ChannelContext
// produced by NewContext.
type Policy interface {
	URI() string

	AsymSign(localPrivateKey []byte, plain []byte) ([]byte, error)
	AsymVerify(remotePublicCert []byte, plain, sig []byte) error
	AsymEncrypt(remotePublicCert []byte, plain []byte) ([]byte, error)
	AsymDecrypt(localPrivateKey []byte, ct []byte) ([]byte, error)

	AsymSignatureSize(localPrivateKey []byte) int
	AsymPlaintextBlockSize(remotePublicCert []byte) int
	AsymCipherTextBlockSize(remotePublicCert []byte) int

	SymSign(key, plain []byte) ([]byte, error)
	SymVerify(key, plain, sig []byte) error
	SymEncrypt(key, iv, plain []byte) ([]byte, error)
	SymDecrypt(key, iv, ct []byte) ([]byte, error)
	SymSignatureSize() int
	SymEncryptionBlockSize() int
	SymEncryptionKeySize() int
	SymSigningKeySize() int

	// DeriveKeys runs the policy's PRF (P_SHA1 or P_SHA256) over the two
	// nonces to produce local/remote signing+encrypting keys and IVs.
	DeriveKeys(clientNonce, serverNonce []byte) (local, remote DerivedKeys, err error)

	CertificateThumbprint(cert []byte) ([]byte, error)
	GenerateNonce(length int) ([]byte, error)
}

// DerivedKeys is one side (local or remote) of the channel's symmetric
// key schedule.
type DerivedKeys struct {
	SigningKey    []byte
	EncryptingKey []byte
	IV            []byte
}

// ChannelContext holds the per-SecureChannel key material produced by a
// policy's key derivation; it is the only mutable state a Policy touches,
// and it lives entirely outside the (stateless) Policy implementation.
type ChannelContext struct {
	PolicyURI string
	Local     DerivedKeys
	Remote    DerivedKeys

	LocalCertificate  []byte
	RemotePublicCert  []byte
	LocalPrivateKey   []byte
}

// NewContext derives a fresh key schedule for one SecureChannel token.
func NewContext(p Policy, clientNonce, serverNonce []byte) (*ChannelContext, error) {
	local, remote, err := p.DeriveKeys(clientNonce, serverNonce)
	if err != nil {
		return nil, fmt.Errorf("securitypolicy: derive keys: %w", err)
	}
	return &ChannelContext{PolicyURI: p.URI(), Local: local, Remote: remote}, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("securitypolicy: random: %w", err)
	}
	return b, nil
}

// URI constants for the two policies implemented here.
const (
	PolicyNoneURI            = "http://opcfoundation.org/UA/SecurityPolicy#None"
	PolicyBasic256Sha256URI  = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// Registry resolves a PolicyUri string to an implementation, the runtime
// equivalent of the spec's "each policy exposes, abstractly" table.
type Registry struct {
	policies map[string]Policy
}

func NewRegistry() *Registry { return &Registry{policies: make(map[string]Policy)} }

func (r *Registry) Register(p Policy) { r.policies[p.URI()] = p }

func (r *Registry) Lookup(uri string) (Policy, bool) {
	p, ok := r.policies[uri]
	return p, ok
}

// DefaultRegistry returns a registry with None and Basic256Sha256
// registered, the minimum set exercised by the integration scenarios.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewNonePolicy())
	r.Register(NewBasic256Sha256Policy())
	return r
}

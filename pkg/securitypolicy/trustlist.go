package securitypolicy

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/fsnotify/fsnotify"
)

// parsePEMCertificates decodes every PEM-encoded CERTIFICATE block in
// raw; a directory entry holding a bare DER certificate is accepted
// too, falling back when no PEM block is found.
func parsePEMCertificates(raw []byte) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		c, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, fmt.Errorf("no PEM certificate blocks found: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// TrustListStore holds the certificates and CRLs VerifyCertificate
// consults, reloaded from a pair of PEM-file directories whenever the
// underlying filesystem changes (spec: file-backed certificate-folder
// reloading).
type TrustListStore struct {
	trustDir      string
	revocationDir string

	mu      sync.RWMutex
	trusted []*x509.Certificate
	issuers []*x509.Certificate
	crls    []CRL

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewTrustListStore loads trustDir/revocationDir once and returns a
// store ready for VerifyCertificate lookups. Call Watch to keep it
// current as an administrator adds or revokes certificates.
func NewTrustListStore(trustDir, revocationDir string) (*TrustListStore, error) {
	s := &TrustListStore{trustDir: trustDir, revocationDir: revocationDir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the trust list, issuer list and CRLs currently
// loaded, safe to pass straight to VerifyCertificate.
func (s *TrustListStore) Snapshot() (trusted, issuers []*x509.Certificate, crls []CRL) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trusted, s.issuers, s.crls
}

func (s *TrustListStore) reload() error {
	trusted, issuers, err := loadCertDir(s.trustDir)
	if err != nil {
		return err
	}
	crls, err := loadCRLDir(s.revocationDir, trusted)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.trusted, s.issuers, s.crls = trusted, issuers, crls
	s.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watcher on the trust and revocation
// directories and reloads the snapshot on every write/create/remove
// event. Call Close to stop it.
func (s *TrustListStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.trustDir); err != nil {
		cclog.Warnf("trust list watch %q: %s", s.trustDir, err)
	}
	if s.revocationDir != "" {
		if err := w.Add(s.revocationDir); err != nil {
			cclog.Warnf("revocation list watch %q: %s", s.revocationDir, err)
		}
	}

	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

func (s *TrustListStore) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			cclog.Errorf("trust list watch: %s", err)
		case e, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				cclog.Errorf("reloading trust list after %s: %s", e, err)
			} else {
				cclog.Infof("trust list reloaded after %s", e)
			}
		}
	}
}

// Close stops the watcher goroutine, if one was started.
func (s *TrustListStore) Close() {
	if s.watcher != nil {
		close(s.done)
		s.watcher.Close()
	}
}

func loadCertDir(dir string) (trusted, issuers []*x509.Certificate, err error) {
	if dir == "" {
		return nil, nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, nil, err
		}
		certs, err := parsePEMCertificates(raw)
		if err != nil {
			cclog.Warnf("trust list %q: %s", e.Name(), err)
			continue
		}
		for _, c := range certs {
			trusted = append(trusted, c)
			if c.IsCA {
				issuers = append(issuers, c)
			}
		}
	}
	return trusted, issuers, nil
}

func loadCRLDir(dir string, issuers []*x509.Certificate) ([]CRL, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []CRL
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		list, err := x509.ParseCRL(raw)
		if err != nil {
			cclog.Warnf("revocation list %q: %s", e.Name(), err)
			continue
		}
		issuer := findIssuerForCRL(list, issuers)
		out = append(out, CRL{Issuer: issuer, List: list})
	}
	return out, nil
}

func findIssuerForCRL(list *x509.CertificateList, issuers []*x509.Certificate) *x509.Certificate {
	for _, c := range issuers {
		if c.Subject.String() == list.TBSCertList.Issuer.String() {
			return c
		}
	}
	return nil
}

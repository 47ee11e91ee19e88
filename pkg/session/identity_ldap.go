package session

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// LDAPVerifier authenticates IdentityUserNamePassword tokens by binding
// against a directory, grounded on the teacher's LdapAuthenticator
// (internal/auth/ldap.go).
type LDAPVerifier struct {
	URL        string
	UserBaseDN string // e.g. "ou=people,dc=example,dc=org"
}

func NewLDAPVerifier(url, userBaseDN string) *LDAPVerifier {
	return &LDAPVerifier{URL: url, UserBaseDN: userBaseDN}
}

func (*LDAPVerifier) Kind() IdentityTokenKind { return IdentityUserNamePassword }

func (v *LDAPVerifier) Verify(tok IdentityToken) (string, error) {
	if tok.Username == "" || tok.Password == "" {
		return "", fmt.Errorf("session: ldap requires username and password")
	}
	conn, err := ldap.DialURL(v.URL)
	if err != nil {
		return "", fmt.Errorf("session: ldap dial: %w", err)
	}
	defer conn.Close()

	dn := fmt.Sprintf("uid=%s,%s", ldap.EscapeFilter(tok.Username), v.UserBaseDN)
	if err := conn.Bind(dn, tok.Password); err != nil {
		return "", fmt.Errorf("session: ldap bind: %w", err)
	}
	return tok.Username, nil
}

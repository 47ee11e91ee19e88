// Package session implements Session and SessionManager (spec §4.E):
// the AuthenticationToken identity, the four identity-token policies and
// channel rebinding, timeout eviction and a maxSessions cap.
//
// Identity-token verification is grounded on the teacher's internal/auth
// package: JWT (golang-jwt/jwt/v5) for IssuedToken, LDAP
// (go-ldap/ldap/v3) for UserName tokens against a directory, and OIDC
// (coreos/go-oidc/v3 + golang.org/x/oauth2) as an alternate IssuedToken
// backend for bearer ID tokens, reassigned from HTTP-session auth to the OPC UA
// ActivateSession identity tokens named in spec §4.E.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/securechannel"
	"github.com/uastack/uacore/pkg/ua"
)

// AuthenticationToken is the opaque session identifier returned by
// CreateSession and presented on every subsequent service call.
type AuthenticationToken ua.NodeId

func (t AuthenticationToken) Equal(o AuthenticationToken) bool { return ua.NodeId(t).Equal(ua.NodeId(o)) }
func (t AuthenticationToken) String() string                   { return ua.NodeId(t).String() }

// NewAuthenticationToken mints a random opaque-identifier token in the
// server's own namespace.
func NewAuthenticationToken(namespace uint16) (AuthenticationToken, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return AuthenticationToken{}, fmt.Errorf("session: generate token: %w", err)
	}
	return AuthenticationToken(ua.NewByteStringNodeId(namespace, b)), nil
}

// IdentityTokenKind is the policy a client used to prove its identity
// (spec §4.E).
type IdentityTokenKind int

const (
	IdentityAnonymous IdentityTokenKind = iota
	IdentityUserNamePassword
	IdentityX509
	IdentityIssuedToken
)

// IdentityToken is the decoded form of whichever token kind the client
// presented in ActivateSession.
type IdentityToken struct {
	Kind     IdentityTokenKind
	Username string
	Password string
	Certificate []byte
	IssuedTokenData []byte
	PolicyID string
}

// IdentityVerifier authenticates one IdentityToken kind. Implementations
// live in identity_*.go, one per teacher-derived auth backend.
type IdentityVerifier interface {
	Kind() IdentityTokenKind
	Verify(tok IdentityToken) (principal string, err error)
}

// State is a Session's lifecycle.
type State int

const (
	SessionCreated State = iota
	SessionActivated
	SessionClosed
)

// Session is one OPC UA Session: bound to a SecureChannel, re-bindable
// to another channel on ActivateSession, with an idle timeout.
type Session struct {
	mu sync.Mutex

	ID           ua.NodeId
	AuthToken    AuthenticationToken
	Principal    string
	State        State
	Channel      *securechannel.Channel
	Timeout      time.Duration
	lastActivity time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

func (s *Session) IsExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State != SessionClosed && now.Sub(s.lastActivity) > s.Timeout
}

// Rebind moves this session onto a new SecureChannel, the "session
// continues across a dropped+re-established channel" path that
// ActivateSession supports (spec §4.E).
func (s *Session) Rebind(ch *securechannel.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Channel = ch
	s.lastActivity = time.Now()
}

var (
	ErrSessionNotFound  = errors.New("session: not found")
	ErrSessionLimit     = errors.New("session: maximum session count reached")
	ErrSessionExpired   = errors.New("session: expired")
	ErrUnknownTokenKind = errors.New("session: no verifier registered for identity token kind")
)

// Manager owns the set of live sessions, enforces MaxSessionCount and
// evicts on idle timeout (spec §4.E operations list).
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	verifiers   map[IdentityTokenKind]IdentityVerifier
	maxSessions int
	namespace   uint16
}

func NewManager(maxSessions int, namespace uint16) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		verifiers:   make(map[IdentityTokenKind]IdentityVerifier),
		maxSessions: maxSessions,
		namespace:   namespace,
	}
}

func (m *Manager) RegisterVerifier(v IdentityVerifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifiers[v.Kind()] = v
}

// CreateSession allocates a new Session in SessionCreated state, bound
// to ch, before any identity has been proven.
func (m *Manager) CreateSession(ch *securechannel.Channel, timeout time.Duration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.maxSessions {
		return nil, ErrSessionLimit
	}
	tok, err := NewAuthenticationToken(m.namespace)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:           ua.NodeId(tok),
		AuthToken:    tok,
		State:        SessionCreated,
		Channel:      ch,
		Timeout:      timeout,
		lastActivity: time.Now(),
	}
	m.sessions[sess.AuthToken.String()] = sess
	return sess, nil
}

// ActivateSession verifies tok against the registered verifier for its
// kind and moves the session to SessionActivated.
func (m *Manager) ActivateSession(authToken AuthenticationToken, tok IdentityToken, ch *securechannel.Channel) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[authToken.String()]
	verifier, hasVerifier := m.verifiers[tok.Kind]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if tok.Kind != IdentityAnonymous {
		if !hasVerifier {
			return nil, ErrUnknownTokenKind
		}
		principal, err := verifier.Verify(tok)
		if err != nil {
			return nil, fmt.Errorf("session: activate: %w", err)
		}
		sess.mu.Lock()
		sess.Principal = principal
		sess.mu.Unlock()
	}
	sess.Rebind(ch)
	sess.mu.Lock()
	sess.State = SessionActivated
	sess.mu.Unlock()
	return sess, nil
}

// CloseSession removes a session from the manager.
func (m *Manager) CloseSession(authToken AuthenticationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[authToken.String()]
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	sess.State = SessionClosed
	sess.mu.Unlock()
	delete(m.sessions, authToken.String())
	return nil
}

// Lookup finds a session by its AuthenticationToken, touching its
// activity timestamp on success (every service call does this).
func (m *Manager) Lookup(authToken AuthenticationToken) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[authToken.String()]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired(time.Now()) {
		m.CloseSession(authToken)
		return nil, ErrSessionExpired
	}
	sess.touch()
	return sess, nil
}

// SweepExpired evicts idle-timed-out sessions; internal/housekeeping
// runs it as a periodic gocron job (RegisterSessionSweep).
func (m *Manager) SweepExpired(now time.Time) []AuthenticationToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []AuthenticationToken
	for key, sess := range m.sessions {
		if sess.IsExpired(now) {
			evicted = append(evicted, sess.AuthToken)
			delete(m.sessions, key)
		}
	}
	return evicted
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

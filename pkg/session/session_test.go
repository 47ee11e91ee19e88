package session

import (
	"testing"
	"time"

	"github.com/uastack/uacore/pkg/securechannel"
	"github.com/uastack/uacore/pkg/securitypolicy"
)

func newTestChannel(t *testing.T) *securechannel.Channel {
	t.Helper()
	ch := securechannel.NewChannel(securitypolicy.NewNonePolicy())
	if err := ch.OnHello(); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.OpenOrRenew(1, 1, time.Hour, []byte("c"), []byte("s")); err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestCreateAndActivateAnonymousSession(t *testing.T) {
	m := NewManager(10, 1)
	ch := newTestChannel(t)
	sess, err := m.CreateSession(ch, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if sess.State != SessionCreated {
		t.Fatalf("want SessionCreated, got %v", sess.State)
	}
	activated, err := m.ActivateSession(sess.AuthToken, IdentityToken{Kind: IdentityAnonymous}, ch)
	if err != nil {
		t.Fatal(err)
	}
	if activated.State != SessionActivated {
		t.Fatalf("want SessionActivated, got %v", activated.State)
	}
}

func TestActivateSessionRejectsUnknownTokenKind(t *testing.T) {
	m := NewManager(10, 1)
	ch := newTestChannel(t)
	sess, err := m.CreateSession(ch, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ActivateSession(sess.AuthToken, IdentityToken{Kind: IdentityUserNamePassword}, ch); err != ErrUnknownTokenKind {
		t.Fatalf("want ErrUnknownTokenKind, got %v", err)
	}
}

func TestMaxSessionsEnforced(t *testing.T) {
	m := NewManager(1, 1)
	ch := newTestChannel(t)
	if _, err := m.CreateSession(ch, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateSession(ch, time.Minute); err != ErrSessionLimit {
		t.Fatalf("want ErrSessionLimit, got %v", err)
	}
}

func TestSweepExpiredEvictsIdleSessions(t *testing.T) {
	m := NewManager(10, 1)
	ch := newTestChannel(t)
	sess, err := m.CreateSession(ch, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	evicted := m.SweepExpired(time.Now())
	if len(evicted) != 1 || !evicted[0].Equal(sess.AuthToken) {
		t.Fatalf("expected session to be evicted, got %v", evicted)
	}
	if m.Count() != 0 {
		t.Fatalf("want 0 sessions after sweep, got %d", m.Count())
	}
}

func TestRebindMovesSessionToNewChannel(t *testing.T) {
	m := NewManager(10, 1)
	ch1 := newTestChannel(t)
	sess, err := m.CreateSession(ch1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	ch2 := newTestChannel(t)
	if _, err := m.ActivateSession(sess.AuthToken, IdentityToken{Kind: IdentityAnonymous}, ch2); err != nil {
		t.Fatal(err)
	}
	if sess.Channel != ch2 {
		t.Fatal("session did not rebind to new channel")
	}
}

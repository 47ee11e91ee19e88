package securechannel

import (
	"fmt"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/securitypolicy"
)

// SecurityToken is one issued token (current or next, spec §4.D token
// rotation: a channel holds at most two live tokens while renewing).
type SecurityToken struct {
	ChannelID      uint32
	TokenID        uint32
	CreatedAt      time.Time
	RevisedLifetime time.Duration
	Keys           securitypolicy.DerivedKeys // local (send) keys derived for this token
	RemoteKeys     securitypolicy.DerivedKeys // remote (receive) keys derived for this token
}

func (t SecurityToken) expiresAt() time.Time { return t.CreatedAt.Add(t.RevisedLifetime) }

// Channel is one SecureChannel: its state machine, its policy, its
// current/next security tokens and its per-direction sequence counters.
type Channel struct {
	mu sync.Mutex

	state  State
	policy securitypolicy.Policy

	current *SecurityToken
	next    *SecurityToken

	sendSeq SequenceCounter
	recvSeq SequenceCounter

	clientNonce []byte
	serverNonce []byte
}

// NewChannel creates a Channel in State Fresh using policy for sign/
// encrypt operations.
func NewChannel(policy securitypolicy.Policy) *Channel {
	return &Channel{state: StateFresh, policy: policy}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) transition(to State) error {
	if !canTransition(c.state, to) {
		return fmt.Errorf("securechannel: illegal transition %s -> %s", c.state, to)
	}
	c.state = to
	return nil
}

// OnHello moves Fresh -> Temporary after the HEL/ACK exchange.
func (c *Channel) OnHello() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(StateTemporary)
}

// OpenOrRenew issues a new SecurityToken from an OPN request/response
// exchange. The first call on a Fresh-derived channel moves Temporary ->
// OpenIssued -> Open; subsequent calls on an Open channel start a
// Renewing cycle (spec §4.D: a second Renew before the first completes
// is rejected; see the StateOpen case below).
func (c *Channel) OpenOrRenew(channelID uint32, tokenID uint32, lifetime time.Duration, clientNonce, serverNonce []byte) (*SecurityToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateTemporary:
		if err := c.transition(StateOpenIssued); err != nil {
			return nil, err
		}
	case StateOpen:
		// A renewal in flight occupies "next" until the peer
		// acknowledges it by using the new token; a second concurrent
		// renewal attempt is rejected rather than silently replacing
		// the in-flight one (resolves the Renew-before-first-completes
		// open question, see SPEC_FULL.md §10).
		if c.next != nil {
			return nil, fmt.Errorf("securechannel: renewal already in progress")
		}
		if err := c.transition(StateRenewing); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("securechannel: cannot open/renew from state %s", c.state)
	}

	localKeys, remoteKeys, err := c.policy.DeriveKeys(clientNonce, serverNonce)
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}

	tok := &SecurityToken{
		ChannelID:       channelID,
		TokenID:         tokenID,
		CreatedAt:       time.Now(),
		RevisedLifetime: lifetime,
		Keys:            localKeys,
		RemoteKeys:      remoteKeys,
	}

	c.clientNonce, c.serverNonce = clientNonce, serverNonce

	if c.current == nil {
		c.current = tok
		if err := c.transition(StateOpen); err != nil {
			return nil, err
		}
	} else {
		c.next = tok
	}
	return tok, nil
}

// ActivateNext promotes the "next" token to "current" once the peer has
// demonstrably started using it (first MSG chunk referencing its
// TokenID), completing a renewal cycle.
func (c *Channel) ActivateNext(tokenID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == nil || c.next.TokenID != tokenID {
		return fmt.Errorf("securechannel: no pending token %d", tokenID)
	}
	c.current = c.next
	c.next = nil
	return c.transition(StateOpen)
}

// TokenForSend returns the token to use for an outgoing chunk: next
// whenever a renewal has issued one, otherwise current (senders switch
// to the new token as soon as it is issued, matching common OPC UA
// stack behavior of pre-emptively using the new token).
func (c *Channel) TokenForSend() *SecurityToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next != nil {
		return c.next
	}
	return c.current
}

// TokenByID looks up current or next by TokenID for decoding an inbound
// chunk's symmetric security header.
func (c *Channel) TokenByID(id uint32) (*SecurityToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.TokenID == id {
		return c.current, true
	}
	if c.next != nil && c.next.TokenID == id {
		return c.next, true
	}
	return nil, false
}

// ExpiredTokens reports tokens whose RevisedLifetime has elapsed, for
// the channel sweep in internal/housekeeping (RegisterChannelSweep) to
// act on.
func (c *Channel) ExpiredTokens(now time.Time) []*SecurityToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []*SecurityToken
	if c.current != nil && now.After(c.current.expiresAt()) {
		expired = append(expired, c.current)
	}
	if c.next != nil && now.After(c.next.expiresAt()) {
		expired = append(expired, c.next)
	}
	return expired
}

// Close moves the channel to StateClosed; idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
}

// NextSendSequenceNumber returns the next value to stamp on an outgoing
// chunk's sequence header.
func (c *Channel) NextSendSequenceNumber() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendSeq.Next()
}

// ValidateRecvSequenceNumber checks and, if valid, accepts received as
// the new high-water mark for the receive direction.
func (c *Channel) ValidateRecvSequenceNumber(received uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.recvSeq.Validate(received); err != nil {
		return err
	}
	c.recvSeq.Accept(received)
	return nil
}

// Package uaclient is a minimal client built directly against a
// server's in-process components (services.Server, session.Manager,
// subscription.Manager) instead of a wire codec: the same
// CLI-wire-client scope boundary already applied to
// pkg/subscription.ClientSubscription's PublishTransport and
// cmd/uaserver/conn.go (spec.md's Non-goals name "the CLI example
// programs" as an out-of-scope external collaborator). cmd/uacli wraps
// this package into a standalone demo binary; internal/integration
// drives the S1-S6 scenarios directly through it.
package uaclient

import (
	"context"
	"fmt"
	"time"

	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/securechannel"
	"github.com/uastack/uacore/pkg/securitypolicy"
	"github.com/uastack/uacore/pkg/services"
	"github.com/uastack/uacore/pkg/session"
	"github.com/uastack/uacore/pkg/subscription"
	"github.com/uastack/uacore/pkg/ua"
)

// Client is one authenticated session against a server's service API.
type Client struct {
	svc      *services.Server
	sessions *session.Manager
	subs     *subscription.Manager

	channel   *securechannel.Channel
	session   *session.Session
	authToken session.AuthenticationToken
}

// New builds a Client against the given server components, using
// policy for its (not-yet-open) SecureChannel.
func New(svc *services.Server, sessions *session.Manager, subs *subscription.Manager, policy securitypolicy.Policy) *Client {
	return &Client{
		svc:      svc,
		sessions: sessions,
		subs:     subs,
		channel:  securechannel.NewChannel(policy),
	}
}

// Open runs HEL/OPN, then CreateSession/ActivateSession(anonymous) —
// the minimum preamble every S1-S6 scenario needs before issuing
// service requests.
func (c *Client) Open(channelID, tokenID uint32, lifetime time.Duration) error {
	if err := c.channel.OnHello(); err != nil {
		return fmt.Errorf("uaclient: hello: %w", err)
	}
	if _, err := c.channel.OpenOrRenew(channelID, tokenID, lifetime, nil, nil); err != nil {
		return fmt.Errorf("uaclient: open channel: %w", err)
	}

	sess, err := c.sessions.CreateSession(c.channel, 0)
	if err != nil {
		return fmt.Errorf("uaclient: create session: %w", err)
	}
	c.session = sess
	c.authToken = sess.AuthToken

	if _, err := c.sessions.ActivateSession(c.authToken, session.IdentityToken{Kind: session.IdentityAnonymous}, c.channel); err != nil {
		return fmt.Errorf("uaclient: activate session: %w", err)
	}
	return nil
}

// Renew issues an OpenSecureChannel(Renew) on the already-open channel
// (S3: token renewal mid-lifetime).
func (c *Client) Renew(channelID, tokenID uint32, lifetime time.Duration) error {
	_, err := c.channel.OpenOrRenew(channelID, tokenID, lifetime, nil, nil)
	return err
}

// Close ends the session.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.sessions.CloseSession(c.authToken)
}

// Read reads one attribute.
func (c *Client) Read(nodeId ua.NodeId, attr ua.AttributeId) ua.DataValue {
	out := c.svc.Read([]services.ReadValueId{{NodeId: nodeId, AttributeId: attr}})
	if len(out) == 0 {
		return ua.DataValue{}
	}
	return out[0]
}

// Write writes one attribute, returning its per-op StatusCode.
func (c *Client) Write(nodeId ua.NodeId, attr ua.AttributeId, v ua.Variant) ua.StatusCode {
	out := c.svc.Write([]services.WriteValue{{NodeId: nodeId, AttributeId: attr, Value: ua.DataValue{Value: v, Status: ua.Good}}})
	if len(out) == 0 {
		return ua.BadInternalError
	}
	return out[0]
}

// AddNode instantiates one node (AddNodes with a single item).
func (c *Client) AddNode(item nodestore.AddNodesItem) (ua.NodeId, ua.StatusCode) {
	ids, statuses := c.svc.AddNodes([]nodestore.AddNodesItem{item})
	if len(ids) == 0 {
		return ua.NodeId{}, ua.BadInternalError
	}
	return ids[0], statuses[0]
}

// Call invokes one method.
func (c *Client) Call(ctx context.Context, req services.CallMethodRequest) services.CallMethodResult {
	out := c.svc.Call(ctx, []services.CallMethodRequest{req})
	if len(out) == 0 {
		return services.CallMethodResult{StatusCode: ua.BadInternalError}
	}
	return out[0]
}

// CreateSubscription allocates a Subscription on the server's
// subscription.Manager and wraps it in a ClientSubscription that keeps
// one in-process PublishRequest outstanding.
func (c *Client) CreateSubscription(publishingInterval time.Duration, maxKeepAlive, lifetime uint32, onNotify subscription.NotificationHandler) *ClientHandle {
	sub := c.subs.CreateSubscription(publishingInterval, maxKeepAlive, lifetime)
	transport := &inProcessTransport{sub: sub}
	return &ClientHandle{
		Subscription: sub,
		client:       subscription.NewClientSubscription(transport, onNotify),
		owner:        c.subs,
	}
}

// ClientHandle is one client-held Subscription plus its republish loop.
type ClientHandle struct {
	Subscription *subscription.Subscription

	client *subscription.ClientSubscription
	owner  *subscription.Manager
}

// Run drives the republish loop until ctx is canceled.
func (h *ClientHandle) Run(ctx context.Context, retryDelay time.Duration) {
	h.client.Run(ctx, retryDelay)
}

// Stop ends the republish loop.
func (h *ClientHandle) Stop() {
	h.client.Stop()
}

// Delete removes the Subscription from the owning Manager.
func (h *ClientHandle) Delete() bool {
	return h.owner.DeleteSubscription(h.Subscription.ID)
}

// inProcessTransport turns one Subscription's PublishCycle into the
// PublishTransport a ClientSubscription drives, waiting out the
// Subscription's own PublishingInterval between cycles the way a real
// network PublishResponse would after its own cadence (spec §4.H).
type inProcessTransport struct {
	sub *subscription.Subscription
}

func (t *inProcessTransport) SendPublishRequest(ctx context.Context) ([]subscription.Notification, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-time.After(t.sub.PublishingInterval):
	}
	notifications, _, expired := t.sub.PublishCycle()
	if expired {
		return nil, false, fmt.Errorf("uaclient: subscription %d expired", t.sub.ID)
	}
	return notifications, false, nil
}

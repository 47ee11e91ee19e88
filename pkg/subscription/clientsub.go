package subscription

import (
	"context"
	"sync"
	"time"
)

// PublishTransport is how a ClientSubscription reaches its server: one
// PublishRequest/PublishResponse round trip. Grounded on open62541's
// ua_client_highlevel_subscriptions.c, generalized so the same
// client-side bookkeeping works whether the transport is a real wire
// round trip or (as in this stack's integration tests) a direct
// in-process call into the server's Subscription.
type PublishTransport interface {
	SendPublishRequest(ctx context.Context) (notifications []Notification, moreNotifications bool, err error)
}

// NotificationHandler receives one MonitoredItem's notified values as
// they arrive on the client.
type NotificationHandler func(n Notification)

// ClientSubscription is the client-side half of a Subscription: it does
// not sample values itself (the server does that) but keeps a
// standing flow of PublishRequests outstanding so the server always has
// one to answer: the next request goes out as soon as a response
// arrives, and a failed request is resent after Run's retryDelay, as
// open62541's client keeps the publish pipeline full.
type ClientSubscription struct {
	Transport PublishTransport
	OnNotify  NotificationHandler

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewClientSubscription wraps transport, delivering every notification
// to onNotify as it arrives.
func NewClientSubscription(transport PublishTransport, onNotify NotificationHandler) *ClientSubscription {
	return &ClientSubscription{Transport: transport, OnNotify: onNotify}
}

// Run starts the republish loop: it keeps exactly one PublishRequest
// outstanding, immediately issuing the next one as soon as a response
// (data or keep-alive) arrives, until ctx is canceled or Stop is
// called. A failed request is retried after retryDelay rather than
// ending the loop, mirroring the client's reconnect-and-resend
// behavior on a transient BadTimeout.
func (c *ClientSubscription) Run(ctx context.Context, retryDelay time.Duration) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		notifications, more, err := c.Transport.SendPublishRequest(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, n := range notifications {
			if c.OnNotify != nil {
				c.OnNotify(n)
			}
		}

		if more {
			// The server indicated it already has another batch queued;
			// loop immediately instead of waiting on the next tick.
			continue
		}
	}
}

// Stop ends a running republish loop and waits for it to exit.
func (c *ClientSubscription) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stop, done := c.stop, c.done
	c.running = false
	c.mu.Unlock()

	close(stop)
	<-done
}

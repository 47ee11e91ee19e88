// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nats adapts the nats.go client to the two things the PubSub
// NetworkMessage broker transport (pkg/pubsub's BrokerTransport) and the
// historian's NATS ingestion collector need: publish a NetworkMessage
// payload on a subject, and subscribe a subject to a byte-slice handler.
// There is deliberately no package-level singleton here — one
// PubSubConnection opens one Client against its own NatsConfig, and the
// historian collector is handed that same Client rather than reaching
// for a global.
package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	cclog "github.com/uastack/uacore/pkg/log"
)

// Client wraps one NATS connection plus the subscriptions opened on it,
// so Close can unwind them in one call.
type Client struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	mu            sync.Mutex
}

// MessageHandler is a callback function for processing received messages.
type MessageHandler func(subject string, data []byte)

// NewClient dials cfg.Address and returns a ready-to-use Client.
func NewClient(cfg *NatsConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("NATS address is required")
	}

	var opts []nats.Option

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}

	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			cclog.Warnf("NATS disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		cclog.Infof("NATS reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("NATS connect failed: %w", err)
	}

	return &Client{
		conn:          nc,
		subscriptions: make([]*nats.Subscription, 0),
	}, nil
}

// Subscribe registers a handler for messages on the given subject, used
// by both the broker PubSub transport (NetworkMessage delivery) and the
// historian collector (line-protocol point ingestion).
func (c *Client) Subscribe(subject string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("NATS subscribe to '%s' failed: %w", subject, err)
	}

	c.subscriptions = append(c.subscriptions, sub)
	return nil
}

// Publish sends data to the specified subject.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("NATS publish to '%s' failed: %w", subject, err)
	}
	return nil
}

// Close unsubscribes all subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subscriptions {
		sub.Unsubscribe()
	}
	c.subscriptions = nil

	if c.conn != nil {
		c.conn.Close()
	}
}

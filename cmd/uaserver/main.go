// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command uaserver is the OPC UA server process: it loads a
// configuration document, brings up the SecureChannel/Session/
// NodeStore/Services/Subscription/PubSub stack on an EventLoop, and
// serves the admin HTTP surface alongside it.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/uastack/uacore/internal/adminapi"
	"github.com/uastack/uacore/internal/config"
	"github.com/uastack/uacore/internal/historian"
	"github.com/uastack/uacore/internal/housekeeping"
	"github.com/uastack/uacore/internal/runtimeEnv"
	"github.com/uastack/uacore/pkg/connection"
	"github.com/uastack/uacore/pkg/eventloop"
	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/nats"
	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/pubsub"
	"github.com/uastack/uacore/pkg/securitypolicy"
	"github.com/uastack/uacore/pkg/services"
	"github.com/uastack/uacore/pkg/session"
	"github.com/uastack/uacore/pkg/subscription"
	"github.com/uastack/uacore/pkg/ua"
)

func main() {
	flagConfigFile := flag.String("config", "./config.json", "path to the server configuration document")
	flag.Parse()

	config.Init(*flagConfigFile)
	cclog.SetLevel(config.Keys.LogLevel)

	if config.Keys.GopsAgentAddr != "" {
		if err := agent.Listen(agent.Options{Addr: config.Keys.GopsAgentAddr}); err != nil {
			cclog.Errorf("gops: %s", err)
		} else {
			defer agent.Close()
		}
	}

	nodes := nodestore.NewStore()
	if err := nodestore.SeedMinimalNamespace0(nodes); err != nil {
		cclog.Fatalf("seeding namespace 0: %s", err)
	}
	svc := services.NewServer(nodes)
	svc.SetLimits(services.Limits{
		MaxNodesPerRead:           config.Keys.MaxNodesPerRead,
		MaxNodesPerWrite:          config.Keys.MaxNodesPerWrite,
		MaxNodesPerBrowse:         config.Keys.MaxNodesPerBrowse,
		MaxNodesPerMethodCall:     config.Keys.MaxNodesPerMethodCall,
		MaxNodesPerNodeManagement: config.Keys.MaxNodesPerNodeManagement,
	})
	loop := eventloop.New()

	sessions := session.NewManager(config.Keys.MaxSessions, 1)
	registerIdentityVerifiers(sessions)

	subs := subscription.NewManager()
	loop.AddCyclic(func(time.Time) {
		subs.SampleAll(func(nodeId ua.NodeId, attr ua.AttributeId) ua.DataValue {
			vals := svc.Read([]services.ReadValueId{{NodeId: nodeId, AttributeId: attr}})
			if len(vals) == 0 {
				return ua.DataValue{}
			}
			return vals[0]
		})
	}, 100*time.Millisecond, time.Time{}, eventloop.CycleMissWithCurrentTime)

	var trustStore *securitypolicy.TrustListStore
	if config.Keys.TrustListPath != "" {
		ts, err := securitypolicy.NewTrustListStore(config.Keys.TrustListPath, config.Keys.RevocationListPath)
		if err != nil {
			cclog.Fatalf("loading trust list: %s", err)
		}
		if err := ts.Watch(); err != nil {
			cclog.Warnf("watching trust list for changes: %s", err)
		}
		trustStore = ts
		defer ts.Close()
	}
	_ = trustStore // loaded and watched only; OPN handling in conn.go does not consult it

	tcp := connection.NewTCPManager(loop)
	tcp.SetAcceptRateLimit(50, 100)
	connHandler := newConnectionHandler(svc, sessions, tcp, config.Keys.MaxSecureChannels)
	if err := tcp.Listen(config.Keys.Endpoint, connHandler.onRecv); err != nil {
		cclog.Fatalf("binding %s: %s", config.Keys.Endpoint, err)
	}
	if err := tcp.Start(); err != nil {
		cclog.Fatalf("starting tcp manager: %s", err)
	}
	loop.AttachSource(tcp)

	hist := historian.NewStore()
	pubsubConns := bootstrapPubSub(hist)
	defer func() {
		for _, c := range pubsubConns {
			c.Close()
		}
	}()

	asyncTimeout, err := time.ParseDuration(config.Keys.AsyncOperationTimeout)
	if err != nil {
		cclog.Warnf("parsing async-operation-timeout %q: %s", config.Keys.AsyncOperationTimeout, err)
		asyncTimeout = 30 * time.Second
	}
	housekeeper, err := housekeeping.New()
	if err != nil {
		cclog.Fatalf("starting housekeeping scheduler: %s", err)
	}
	if err := housekeeper.RegisterSessionSweep(sessions, 30*time.Second); err != nil {
		cclog.Fatalf("registering session sweep: %s", err)
	}
	if err := housekeeper.RegisterChannelSweep(connHandler, 10*time.Second); err != nil {
		cclog.Fatalf("registering securechannel sweep: %s", err)
	}
	if err := housekeeper.RegisterSubscriptionSweep(subs, time.Minute); err != nil {
		cclog.Fatalf("registering subscription sweep: %s", err)
	}
	if err := housekeeper.RegisterAsyncTimeoutSweep(svc.Queue, asyncTimeout, 5*time.Second); err != nil {
		cclog.Fatalf("registering async-operation-timeout sweep: %s", err)
	}
	housekeeper.Start()
	defer housekeeper.Shutdown()

	metrics := adminapi.NewMetrics()
	loop.AddCyclic(func(time.Time) {
		metrics.EventLoopPending.Set(float64(loop.Pending()))
		metrics.SessionCount.Set(float64(sessions.Count()))
	}, 5*time.Second, time.Time{}, eventloop.CycleMissWithCurrentTime)

	admin := adminapi.NewServer(config.Keys.AdminAPIAddr, nodes, metrics)
	if err := admin.Start(); err != nil {
		cclog.Fatalf("admin api: %s", err)
	}
	defer admin.Shutdown()

	if err := runtimeEnv.DropPrivileges(config.Keys.RunAsUser, config.Keys.RunAsGroup); err != nil {
		cclog.Fatalf("dropping privileges: %s", err)
	}
	runtimeEnv.SystemdNotify(true, "running")
	cclog.Infof("uaserver listening at %s (admin api at %s)", config.Keys.Endpoint, config.Keys.AdminAPIAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			runtimeEnv.SystemdNotify(false, "stopping")
			cclog.Info("shutting down")
			return
		case <-ticker.C:
			loop.Run(20 * time.Millisecond)
		}
	}
}

// registerIdentityVerifiers wires the configured identity backends into
// sessions, so ActivateSession accepts exactly the UserIdentityToken
// kinds the operator has configured material for.
func registerIdentityVerifiers(sessions *session.Manager) {
	id := config.Keys.Identity

	if id.JWTIssuer != "" && id.JWTPublicKeyPath != "" {
		pub, err := loadEd25519PublicKey(id.JWTPublicKeyPath)
		if err != nil {
			cclog.Errorf("loading jwt public key: %s", err)
		} else {
			sessions.RegisterVerifier(session.NewJWTVerifier(pub, id.JWTIssuer))
		}
	}

	if id.LDAPURL != "" {
		sessions.RegisterVerifier(session.NewLDAPVerifier(id.LDAPURL, id.LDAPUserBaseDN))
	}

	if id.OIDCIssuerURL != "" {
		v, err := session.NewOIDCVerifier(context.Background(), id.OIDCIssuerURL, id.OIDCClientID)
		if err != nil {
			cclog.Errorf("initializing oidc verifier: %s", err)
		} else {
			sessions.RegisterVerifier(v)
		}
	}
}

func loadEd25519PublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	der := raw
	if block != nil {
		der = block.Bytes
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errUnsupportedKeyType
	}
	return key, nil
}

var errUnsupportedKeyType = errors.New("jwt public key is not ed25519")

// bootstrapPubSub opens one PubSubConnection per configured entry,
// wiring the broker profile to historian ingestion of value-change
// points published on a per-connection subject.
func bootstrapPubSub(hist *historian.Store) []*pubsub.PubSubConnection {
	var conns []*pubsub.PubSubConnection
	for _, c := range config.Keys.PubSub {
		switch c.Profile {
		case "broker":
			cfg := nats.NatsConfig{Address: c.NatsAddress}
			transport := pubsub.NewBrokerTransport(cfg)
			conn := pubsub.NewPubSubConnection(c.Name, pubsub.ProfileBroker, transport)
			if err := conn.Open(); err != nil {
				cclog.Errorf("pubsub connection %s: %s", c.Name, err)
				continue
			}
			conns = append(conns, conn)

			client, err := nats.NewClient(&cfg)
			if err != nil {
				cclog.Errorf("historian collector for %s: %s", c.Name, err)
				continue
			}
			collector := historian.NewCollector(hist, client)
			if err := collector.Start(c.Name + ".history"); err != nil {
				cclog.Errorf("starting historian collector for %s: %s", c.Name, err)
			}
		default:
			cclog.Warnf("pubsub connection %s: profile %q not handled by this entrypoint", c.Name, c.Profile)
		}
	}
	return conns
}

// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
	cclog "github.com/uastack/uacore/pkg/log"
)

// IdentityConfig selects which UserIdentityToken kinds ActivateSession
// accepts and where their verification material lives.
type IdentityConfig struct {
	AnonymousAllowed bool   `json:"anonymous-allowed"`
	JWTIssuer        string `json:"jwt-issuer"`
	JWTPublicKeyPath string `json:"jwt-public-key-path"`
	LDAPURL          string `json:"ldap-url"`
	LDAPUserBaseDN   string `json:"ldap-user-base-dn"`
	OIDCIssuerURL    string `json:"oidc-issuer-url"`
	OIDCClientID     string `json:"oidc-client-id"`
}

// PubSubConnectionConfig describes one PubSubConnection to open at
// startup, keyed by TransportProfileUri ("udp" or "broker").
type PubSubConnectionConfig struct {
	Name        string `json:"name"`
	Profile     string `json:"profile"`
	NatsAddress string `json:"nats-address"`
}

// ServerConfig is the decoded server configuration document.
type ServerConfig struct {
	Endpoint                   string                   `json:"endpoint"`
	ApplicationURI             string                   `json:"application-uri"`
	ProductURI                 string                   `json:"product-uri"`
	SecurityPolicies           []string                 `json:"security-policies"`
	CertificatePath            string                   `json:"certificate-path"`
	PrivateKeyPath             string                   `json:"private-key-path"`
	TrustListPath              string                   `json:"trust-list-path"`
	RevocationListPath         string                   `json:"revocation-list-path"`
	ChannelLifetime            string                   `json:"channel-lifetime"`
	MaxSessions                int                      `json:"max-sessions"`
	SessionTimeout             string                   `json:"session-timeout"`
	MaxSubscriptionsPerSession int                      `json:"max-subscriptions-per-session"`
	CycleMissPolicy            string                   `json:"cycle-miss-policy"`
	MaxSecureChannels          int                      `json:"max-secure-channels"`
	AsyncOperationTimeout      string                   `json:"async-operation-timeout"`
	MaxNodesPerRead            int                      `json:"max-nodes-per-read"`
	MaxNodesPerWrite           int                      `json:"max-nodes-per-write"`
	MaxNodesPerBrowse          int                      `json:"max-nodes-per-browse"`
	MaxNodesPerMethodCall      int                      `json:"max-nodes-per-method-call"`
	MaxNodesPerNodeManagement  int                      `json:"max-nodes-per-node-management"`
	Identity                   IdentityConfig           `json:"identity"`
	PubSub                     []PubSubConnectionConfig `json:"pubsub"`
	LogLevel                   string                   `json:"log-level"`
	RunAsUser                  string                   `json:"run-as-user"`
	RunAsGroup                 string                   `json:"run-as-group"`
	AdminAPIAddr               string                   `json:"admin-api-addr"`
	GopsAgentAddr              string                   `json:"gops-agent-addr"`
}

// Keys holds the process-wide configuration, populated by Init.
var Keys ServerConfig = ServerConfig{
	Endpoint:                   "localhost:4840",
	ApplicationURI:             "urn:uastack:server",
	ProductURI:                 "urn:uastack:server:product",
	SecurityPolicies:           []string{"http://opcfoundation.org/UA/SecurityPolicy#None"},
	ChannelLifetime:            "1h",
	MaxSessions:                100,
	SessionTimeout:             "1h",
	MaxSubscriptionsPerSession: 50,
	CycleMissPolicy:            "current-time",
	MaxSecureChannels:          100,
	AsyncOperationTimeout:      "30s",
	MaxNodesPerRead:            1000,
	MaxNodesPerWrite:           1000,
	MaxNodesPerBrowse:          1000,
	MaxNodesPerMethodCall:      100,
	MaxNodesPerNodeManagement:  100,
	Identity:                   IdentityConfig{AnonymousAllowed: true},
	LogLevel:                   "info",
	AdminAPIAddr:               "localhost:8088",
}

// Init loads process secrets from a .env overlay (private key
// passphrases, NATS credential paths — values that should not live in
// the checked-in JSON document), then reads, validates and decodes the
// server configuration file named by flagConfigFile into Keys.
func Init(flagConfigFile string) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Warnf("Loading .env overlay: %v", err)
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			cclog.Fatal(err)
		}
		return
	}

	Validate(configSchema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		cclog.Fatal(err)
	}
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema validates the server's JSON configuration document
// before it is decoded into ServerConfig.
var configSchema = `
{
  "type": "object",
  "properties": {
    "endpoint": {
      "description": "TCP address the SecureChannel listener binds to (for example: 'localhost:4840').",
      "type": "string"
    },
    "application-uri": {
      "description": "ApplicationDescription.ApplicationUri advertised by GetEndpoints.",
      "type": "string"
    },
    "product-uri": {
      "description": "ApplicationDescription.ProductUri advertised by GetEndpoints.",
      "type": "string"
    },
    "security-policies": {
      "description": "SecurityPolicyUris this server accepts on OPN, in preference order.",
      "type": "array",
      "items": { "type": "string" }
    },
    "certificate-path": {
      "description": "PEM-encoded application instance certificate.",
      "type": "string"
    },
    "private-key-path": {
      "description": "PEM-encoded private key matching certificate-path.",
      "type": "string"
    },
    "trust-list-path": {
      "description": "Directory of trusted peer/CA certificates for X509 verification.",
      "type": "string"
    },
    "revocation-list-path": {
      "description": "Directory of CRLs used during certificate chain verification.",
      "type": "string"
    },
    "channel-lifetime": {
      "description": "Default SecureChannel token lifetime, as a Go duration string.",
      "type": "string"
    },
    "max-sessions": {
      "description": "Upper bound on concurrently active Sessions.",
      "type": "integer",
      "minimum": 1
    },
    "session-timeout": {
      "description": "Idle timeout after which a Session is evicted, as a Go duration string.",
      "type": "string"
    },
    "max-subscriptions-per-session": {
      "description": "Upper bound on Subscriptions owned by one Session.",
      "type": "integer",
      "minimum": 1
    },
    "cycle-miss-policy": {
      "description": "EventLoop cyclic-callback catch-up behaviour when a cycle is missed.",
      "type": "string",
      "enum": ["current-time", "base-time"]
    },
    "max-secure-channels": {
      "description": "Upper bound on concurrently open SecureChannels.",
      "type": "integer",
      "minimum": 1
    },
    "async-operation-timeout": {
      "description": "Deadline an async-queued operation (spec's AsyncQueue) may sit unanswered before the housekeeping sweep fails it, as a Go duration string.",
      "type": "string"
    },
    "max-nodes-per-read": {
      "description": "Upper bound on ReadValueIds in one Read request; exceeding it fails the whole request with BadTooManyOperations.",
      "type": "integer",
      "minimum": 1
    },
    "max-nodes-per-write": {
      "description": "Upper bound on WriteValues in one Write request; exceeding it fails the whole request with BadTooManyOperations.",
      "type": "integer",
      "minimum": 1
    },
    "max-nodes-per-browse": {
      "description": "Upper bound on BrowseDescriptions in one Browse request; exceeding it fails the whole request with BadTooManyOperations.",
      "type": "integer",
      "minimum": 1
    },
    "max-nodes-per-method-call": {
      "description": "Upper bound on CallMethodRequests in one Call request; exceeding it fails the whole request with BadTooManyOperations.",
      "type": "integer",
      "minimum": 1
    },
    "max-nodes-per-node-management": {
      "description": "Upper bound on items in one AddNodes/AddReferences/DeleteNodes/DeleteReferences request; exceeding it fails the whole request with BadTooManyOperations.",
      "type": "integer",
      "minimum": 1
    },
    "identity": {
      "description": "Identity token backends accepted by ActivateSession.",
      "type": "object",
      "properties": {
        "anonymous-allowed": { "type": "boolean" },
        "jwt-issuer": { "type": "string" },
        "jwt-public-key-path": { "type": "string" },
        "ldap-url": { "type": "string" },
        "ldap-user-base-dn": { "type": "string" },
        "oidc-issuer-url": { "type": "string" },
        "oidc-client-id": { "type": "string" }
      }
    },
    "pubsub": {
      "description": "PubSubConnections this server opens at startup.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string" },
          "profile": { "type": "string", "enum": ["udp", "broker"] },
          "nats-address": { "type": "string" }
        },
        "required": ["name", "profile"]
      }
    },
    "log-level": {
      "description": "Minimum level pkg/log emits: debug, info, notice, warn, err, crit.",
      "type": "string"
    },
    "run-as-user": {
      "description": "Unprivileged user the process drops to once the listener and certificate files are opened.",
      "type": "string"
    },
    "run-as-group": {
      "description": "Unprivileged group the process drops to alongside run-as-user.",
      "type": "string"
    },
    "admin-api-addr": {
      "description": "TCP address the health/metrics/debug HTTP surface binds to.",
      "type": "string"
    },
    "gops-agent-addr": {
      "description": "TCP address the gops diagnostics agent listens on; empty disables it.",
      "type": "string"
    }
  },
  "required": ["endpoint", "application-uri"]
}`

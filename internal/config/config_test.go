// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resetKeys() {
	Keys = ServerConfig{
		Endpoint:                   "localhost:4840",
		ApplicationURI:             "urn:uastack:server",
		ProductURI:                 "urn:uastack:server:product",
		SecurityPolicies:           []string{"http://opcfoundation.org/UA/SecurityPolicy#None"},
		ChannelLifetime:            "1h",
		MaxSessions:                100,
		SessionTimeout:             "1h",
		MaxSubscriptionsPerSession: 50,
		CycleMissPolicy:            "current-time",
		Identity:                   IdentityConfig{AnonymousAllowed: true},
		LogLevel:                   "info",
	}
}

func TestInitFull(t *testing.T) {
	resetKeys()
	Init("testdata/full.json")

	require.Equal(t, "0.0.0.0:4840", Keys.Endpoint)
	require.Equal(t, "urn:uastack:testserver", Keys.ApplicationURI)
	require.Len(t, Keys.SecurityPolicies, 2)
	require.Equal(t, 64, Keys.MaxSessions)
	require.Equal(t, "base-time", Keys.CycleMissPolicy)
	require.False(t, Keys.Identity.AnonymousAllowed)
	require.Equal(t, "ldaps://ldap.example.org:636", Keys.Identity.LDAPURL)
	require.Len(t, Keys.PubSub, 2)
	require.Equal(t, "broker", Keys.PubSub[1].Profile)
	require.Equal(t, "nats://localhost:4222", Keys.PubSub[1].NatsAddress)
}

func TestInitMinimalKeepsDefaults(t *testing.T) {
	resetKeys()
	Init("testdata/minimal.json")

	require.Equal(t, "localhost:4840", Keys.Endpoint)
	require.Equal(t, "urn:uastack:minimal", Keys.ApplicationURI)
	// Fields absent from the minimal document are left at their
	// pre-decode defaults, since json.Decode only overwrites present
	// keys.
	require.Equal(t, 100, Keys.MaxSessions)
	require.Equal(t, "current-time", Keys.CycleMissPolicy)
	require.True(t, Keys.Identity.AnonymousAllowed)
}

func TestInitMissingFileLeavesDefaults(t *testing.T) {
	resetKeys()
	Init("testdata/does-not-exist.json")

	require.Equal(t, "localhost:4840", Keys.Endpoint)
	require.Equal(t, "urn:uastack:server", Keys.ApplicationURI)
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nats

// NatsConfig holds the per-PubSubConnection NATS connection settings
// (internal/config.PubSubConnectionConfig.NatsAddress is the wire-level
// subset the server's config document exposes; Username/Password/
// CredsFilePath are set programmatically by callers that need
// authenticated brokers rather than through that document).
type NatsConfig struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"creds-file-path"`
}

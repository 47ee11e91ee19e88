// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command uacli is a minimal demonstration client: it wires its own
// in-process service stack (the same components cmd/uaserver wires,
// minus the TCP listener) and drives it through pkg/uaclient, printing
// what a session opened against that stack would see. It exists to
// exercise pkg/uaclient outside of internal/integration's test harness;
// a real wire-protocol CLI client is out of scope (spec.md's Non-goals
// name "the CLI example programs" as an external collaborator, applied
// throughout this stack — see cmd/uaserver/conn.go and
// pkg/subscription/clientsub.go).
package main

import (
	"context"
	"flag"
	"time"

	"github.com/uastack/uacore/pkg/nodestore"
	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/securitypolicy"
	"github.com/uastack/uacore/pkg/services"
	"github.com/uastack/uacore/pkg/session"
	"github.com/uastack/uacore/pkg/subscription"
	"github.com/uastack/uacore/pkg/ua"
	"github.com/uastack/uacore/pkg/uaclient"
)

func main() {
	flag.Parse()

	nodes := nodestore.NewStore()
	if err := nodestore.SeedMinimalNamespace0(nodes); err != nil {
		cclog.Fatalf("seeding namespace 0: %s", err)
	}

	svc := services.NewServer(nodes)
	sessions := session.NewManager(10, 1)
	subs := subscription.NewManager()

	policy, _ := securitypolicy.DefaultRegistry().Lookup(securitypolicy.PolicyNoneURI)
	c := uaclient.New(svc, sessions, subs, policy)
	if err := c.Open(1, 1, time.Hour); err != nil {
		cclog.Fatalf("opening session: %s", err)
	}
	defer c.Close()

	dv := c.Read(nodestore.ServerCurrentTime, ua.AttrValue)
	cclog.Infof("CurrentTime: %v (status %s)", dv.Value.Scalar, dv.Status)

	_, status := c.AddNode(nodestore.AddNodesItem{
		RequestedNewNodeId: ua.NewStringNodeId(1, "the.answer"),
		BrowseName:         ua.QualifiedName{NamespaceIndex: 1, Name: "the answer"},
		NodeClass:          ua.ClassVariable,
		TypeDefinition:     nodestore.BaseDataVariableType,
		ParentNodeId:       nodestore.ObjectsFolder,
		ReferenceTypeId:    ua.NewNumericNodeId(0, ua.IdOrganizes),
	})
	cclog.Infof("AddNodes the.answer: %s", status)

	wstatus := c.Write(ua.NewStringNodeId(1, "the.answer"), ua.AttrValue, ua.NewScalarVariant(ua.TypeInt32, int32(42)))
	cclog.Infof("Write the.answer=42: %s", wstatus)

	answer := c.Read(ua.NewStringNodeId(1, "the.answer"), ua.AttrValue)
	cclog.Infof("Read the.answer: %v (status %s)", answer.Value.Scalar, answer.Status)

	handle := c.CreateSubscription(500*time.Millisecond, 3, 10, func(n subscription.Notification) {
		cclog.Infof("notification: item %d, %d value(s)", n.MonitoredItemID, len(n.Values))
	})
	handle.Subscription.CreateMonitoredItem(nodestore.ServerCurrentTime, ua.AttrValue, 100*time.Millisecond, 10, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	readFunc := func(nodeId ua.NodeId, attr ua.AttributeId) ua.DataValue {
		vals := svc.Read([]services.ReadValueId{{NodeId: nodeId, AttributeId: attr}})
		if len(vals) == 0 {
			return ua.DataValue{}
		}
		return vals[0]
	}
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				subs.SampleAll(readFunc)
			}
		}
	}()

	handle.Run(ctx, 200*time.Millisecond)
	handle.Delete()
}

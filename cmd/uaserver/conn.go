package main

import (
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/connection"
	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/securechannel"
	"github.com/uastack/uacore/pkg/securitypolicy"
	"github.com/uastack/uacore/pkg/services"
	"github.com/uastack/uacore/pkg/session"
)

const helloAckSize = 8

// connState is the per-TCP-connection bookkeeping a connectionHandler
// keeps between callbacks: one SecureChannel state machine, advanced by
// whatever chunk type arrives next.
type connState struct {
	channel *securechannel.Channel
}

// connectionHandler drives the HEL/ACK/OPN preamble of new TCP
// connections against the SecureChannel state machine and the
// configured SecurityPolicy registry. MSG-body service dispatch (Read/
// Write/Browse/Call requests decoded off the wire and handed to
// services.Server) is the layer above this one and is not built here;
// services.Server and Subscription/PubSub are exercised directly by the
// in-process ClientSubscription/integration-test harness instead,
// consistent with the same CLI-wire-client scope decision recorded for
// pkg/subscription/clientsub.go.
type connectionHandler struct {
	svc         *services.Server
	sessions    *session.Manager
	policies    *securitypolicy.Registry
	tcp         *connection.TCPManager
	maxChannels int

	mu    sync.Mutex
	conns map[connection.ConnectionID]*connState
}

func newConnectionHandler(svc *services.Server, sessions *session.Manager, tcp *connection.TCPManager, maxChannels int) *connectionHandler {
	return &connectionHandler{
		svc:         svc,
		sessions:    sessions,
		policies:    securitypolicy.DefaultRegistry(),
		tcp:         tcp,
		maxChannels: maxChannels,
		conns:       make(map[connection.ConnectionID]*connState),
	}
}

// atCapacity reports whether accepting id as a brand-new SecureChannel
// would exceed maxChannels; an already-tracked id (an existing channel
// sending a subsequent chunk) never trips this.
func (h *connectionHandler) atCapacity(id connection.ConnectionID) bool {
	if h.maxChannels <= 0 {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[id]; ok {
		return false
	}
	return len(h.conns) >= h.maxChannels
}

func (h *connectionHandler) stateFor(id connection.ConnectionID) *connState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.conns[id]
	if !ok {
		policy, _ := h.policies.Lookup(securitypolicy.PolicyNoneURI)
		s = &connState{channel: securechannel.NewChannel(policy)}
		h.conns[id] = s
	}
	return s
}

func (h *connectionHandler) forget(id connection.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Channels snapshots every SecureChannel currently open on this
// listener, for the housekeeping token-rotation-deadline sweep.
func (h *connectionHandler) Channels() []*securechannel.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*securechannel.Channel, 0, len(h.conns))
	for _, st := range h.conns {
		out = append(out, st.channel)
	}
	return out
}

func (h *connectionHandler) onRecv(id connection.ConnectionID, data []byte, err error) {
	if err != nil {
		h.forget(id)
		return
	}
	if len(data) < 8 {
		return
	}

	hdr, decodeErr := securechannel.ReadChunkHeader(data)
	if decodeErr != nil {
		cclog.Warnf("uaserver: connection %d: %s", id, decodeErr)
		return
	}

	if h.atCapacity(id) {
		cclog.Warnf("uaserver: connection %d: rejected, at max-secure-channels capacity", id)
		h.tcp.Close(id)
		return
	}

	st := h.stateFor(id)
	switch hdr.MessageType {
	case securechannel.MsgHello:
		if err := st.channel.OnHello(); err != nil {
			cclog.Warnf("uaserver: connection %d: %s", id, err)
			return
		}
		ack := make([]byte, helloAckSize)
		securechannel.ChunkHeader{MessageType: securechannel.MsgAck, ChunkType: securechannel.ChunkFinal, MessageSize: helloAckSize}.Write(ack)
		h.send(id, ack)

	case securechannel.MsgOpenChannel:
		if _, err := st.channel.OpenOrRenew(uint32(id), 1, time.Hour, nil, nil); err != nil {
			cclog.Warnf("uaserver: connection %d: OPN: %s", id, err)
			return
		}

	case securechannel.MsgClose:
		st.channel.Close()
		h.forget(id)

	case securechannel.MsgMessage:
		cclog.Debugf("uaserver: connection %d: MSG chunk received (%d bytes); service dispatch not wired in this entrypoint", id, len(data))

	default:
		cclog.Warnf("uaserver: connection %d: unrecognized message type %q", id, hdr.MessageType)
	}
}

func (h *connectionHandler) send(id connection.ConnectionID, data []byte) {
	if err := h.tcp.Send(id, data); err != nil {
		cclog.Warnf("uaserver: connection %d: send: %s", id, err)
	}
}

package securechannel

import (
	"testing"
	"time"

	"github.com/uastack/uacore/pkg/securitypolicy"
)

func openChannel(t *testing.T) *Channel {
	t.Helper()
	c := NewChannel(securitypolicy.NewNonePolicy())
	if err := c.OnHello(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OpenOrRenew(1, 1, time.Hour, []byte("c"), []byte("s")); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateOpen {
		t.Fatalf("want Open, got %s", c.State())
	}
	return c
}

func TestChannelOpenLifecycle(t *testing.T) {
	openChannel(t)
}

func TestChannelRejectsConcurrentRenew(t *testing.T) {
	c := openChannel(t)
	if _, err := c.OpenOrRenew(1, 2, time.Hour, []byte("c2"), []byte("s2")); err != nil {
		t.Fatalf("first renewal should succeed: %v", err)
	}
	if c.State() != StateRenewing {
		t.Fatalf("want Renewing, got %s", c.State())
	}
	if _, err := c.OpenOrRenew(1, 3, time.Hour, []byte("c3"), []byte("s3")); err == nil {
		t.Fatal("expected second concurrent renewal to be rejected")
	}
}

func TestChannelActivateNextCompletesRenewal(t *testing.T) {
	c := openChannel(t)
	if _, err := c.OpenOrRenew(1, 2, time.Hour, []byte("c2"), []byte("s2")); err != nil {
		t.Fatal(err)
	}
	if err := c.ActivateNext(2); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateOpen {
		t.Fatalf("want Open after activation, got %s", c.State())
	}
	if tok := c.TokenForSend(); tok.TokenID != 2 {
		t.Fatalf("want token 2 active, got %d", tok.TokenID)
	}
}

func TestSequenceCounterRejectsOutOfOrder(t *testing.T) {
	c := openChannel(t)
	if err := c.ValidateRecvSequenceNumber(1); err != nil {
		t.Fatal(err)
	}
	if err := c.ValidateRecvSequenceNumber(5); err == nil {
		t.Fatal("expected sequence gap to be rejected")
	}
	if err := c.ValidateRecvSequenceNumber(2); err != nil {
		t.Fatalf("correct next sequence number should be accepted: %v", err)
	}
}

func TestSequenceCounterWrapsSkippingZero(t *testing.T) {
	var c SequenceCounter
	c.Accept(0xFFFFFFFF)
	if err := c.Validate(0); err == nil {
		t.Fatal("expected wraparound to skip zero")
	}
	if err := c.Validate(1); err != nil {
		t.Fatalf("wraparound should land on 1: %v", err)
	}
}

func TestChunkHeaderRoundTrip(t *testing.T) {
	h := ChunkHeader{MessageType: MsgMessage, ChunkType: ChunkFinal, MessageSize: 128}
	buf := make([]byte, chunkHeaderSize)
	if err := h.Write(buf); err != nil {
		t.Fatal(err)
	}
	got, err := ReadChunkHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: %+v != %+v", got, h)
	}
}

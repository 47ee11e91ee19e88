package connection

import (
	"context"
	"testing"
	"time"

	"github.com/uastack/uacore/pkg/eventloop"
)

func TestTCPManagerRoundTrip(t *testing.T) {
	loop := eventloop.New()
	mgr := NewTCPManager(loop)
	if err := mgr.Start(); err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()

	accepted := make(chan ConnectionID, 1)
	received := make(chan []byte, 1)
	if err := mgr.Listen("127.0.0.1:0", func(id ConnectionID, data []byte, err error) {
		if err != nil {
			return
		}
		select {
		case accepted <- id:
		default:
		}
		received <- data
	}); err != nil {
		t.Fatal(err)
	}

	addr := mgr.listener.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientID, err := mgr.Connect(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.Send(clientID, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		loop.Run(10 * time.Millisecond)
		select {
		case data := <-received:
			if string(data) != "hello" {
				t.Fatalf("got %q, want hello", data)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for delivery")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

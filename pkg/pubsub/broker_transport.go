package pubsub

import (
	"github.com/uastack/uacore/pkg/eventloop"
	"github.com/uastack/uacore/pkg/nats"
)

// BrokerTransport implements Transport over pkg/nats's Client, backing
// the ProfileBroker TransportProfileUri. NATS subjects stand in for the
// UDP multicast groups/MQTT topics the spec names for this profile.
type BrokerTransport struct {
	cfg    nats.NatsConfig
	client *nats.Client
	state  eventloop.SourceState
}

func NewBrokerTransport(cfg nats.NatsConfig) *BrokerTransport {
	return &BrokerTransport{cfg: cfg, state: eventloop.SourceStopped}
}

func (t *BrokerTransport) Name() string                 { return "nats-broker" }
func (t *BrokerTransport) State() eventloop.SourceState { return t.state }

func (t *BrokerTransport) Start() error {
	t.state = eventloop.SourceStarting
	client, err := nats.NewClient(&t.cfg)
	if err != nil {
		t.state = eventloop.SourceStopped
		return err
	}
	t.client = client
	t.state = eventloop.SourceStarted
	return nil
}

func (t *BrokerTransport) Stop() {
	t.state = eventloop.SourceStopping
	if t.client != nil {
		t.client.Close()
	}
	t.state = eventloop.SourceStopped
}

func (t *BrokerTransport) Publish(topic string, data []byte) error {
	return t.client.Publish(topic, data)
}

func (t *BrokerTransport) Subscribe(topic string, onMessage func(data []byte)) error {
	return t.client.Subscribe(topic, func(_ string, data []byte) {
		onMessage(data)
	})
}

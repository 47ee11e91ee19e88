package historian

import (
	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/nats"
	"github.com/uastack/uacore/pkg/ua"
)

// Collector subscribes to a NATS subject carrying InfluxDB line-protocol
// points (one DataValue per point) and historizes each into a Store.
// Measurement carries the NodeId key; the single field "v" carries the
// Variant payload and "status" the StatusCode, matching the encoding
// VariableValueLineProtocol produces on the publishing side.
type Collector struct {
	Store  *Store
	client *nats.Client
}

// NewCollector wires store to subject on client; Start must be called
// once the client is connected.
func NewCollector(store *Store, client *nats.Client) *Collector {
	return &Collector{Store: store, client: client}
}

// Start subscribes to subject and historizes every decodable point that
// arrives. Decode errors are logged and skipped rather than treated as
// fatal, since one malformed point should not stop ingestion of the
// rest of the stream.
func (c *Collector) Start(subject string) error {
	return c.client.Subscribe(subject, func(_ string, data []byte) {
		c.ingest(data)
	})
}

func (c *Collector) ingest(data []byte) {
	dec := influx.NewDecoderWithBytes(data)
	for dec.Next() {
		s, err := nats.DecodeInfluxSample(dec)
		if err != nil {
			cclog.Warnf("historian: decoding line-protocol point: %s", err)
			continue
		}
		c.storeSample(s)
	}
}

func (c *Collector) storeSample(s nats.InfluxSample) {
	typeName, _ := s.Tags["type"]
	v, ok := s.Fields["v"]
	if !ok {
		return
	}
	status := ua.Good
	if raw, ok := s.Fields["status"]; ok {
		if code, ok := raw.(int64); ok {
			status = ua.StatusCode(code)
		}
	}

	dv := ua.DataValue{
		Value:              ua.NewScalarVariant(typeIDFromTag(typeName), v),
		Status:             status,
		SourceTimestamp:    s.Time,
		HasSourceTimestamp: true,
	}
	c.Store.Append(s.Measurement, s.Time.UnixNano(), dv)
}

// typeIDFromTag maps the "type" tag VariableValueLineProtocol attaches
// to each point back to a TypeID; unknown/absent tags decode as
// TypeVariant so the raw Go value the line-protocol decoder produced
// (float64/int64/string/bool) is still usable by a caller.
func typeIDFromTag(tag string) ua.TypeID {
	switch tag {
	case "Boolean":
		return ua.TypeBoolean
	case "Int32":
		return ua.TypeInt32
	case "UInt32":
		return ua.TypeUInt32
	case "Int64":
		return ua.TypeInt64
	case "UInt64":
		return ua.TypeUInt64
	case "Double":
		return ua.TypeDouble
	case "Float":
		return ua.TypeFloat
	case "String":
		return ua.TypeString
	default:
		return ua.TypeVariant
	}
}

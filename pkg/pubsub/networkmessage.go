package pubsub

import (
	"encoding/json"
	"fmt"

	"github.com/uastack/uacore/pkg/ua"
)

// Encoding selects a WriterGroup's NetworkMessage MIME type (spec §4.I).
type Encoding int

const (
	EncodingUADP Encoding = iota
	EncodingJSON
)

// NetworkMessage is one DataSetWriter's wire payload: a UADP-flavored
// binary frame or a JSON document, both carrying the same DataSet
// field values.
type NetworkMessage struct {
	WriterGroupID  uint16
	DataSetWriterID uint16
	Fields         []ua.DataValue
}

// Encode serializes m per enc. UADP framing uses pkg/ua's Encoder, the
// same binary primitives the SecureChannel codec uses for request/
// response bodies, rather than a bespoke byte-packer.
func Encode(m NetworkMessage, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingUADP:
		return encodeUADP(m)
	case EncodingJSON:
		return encodeJSON(m)
	default:
		return nil, fmt.Errorf("pubsub: unknown encoding %d", enc)
	}
}

func Decode(data []byte, enc Encoding) (NetworkMessage, error) {
	switch enc {
	case EncodingUADP:
		return decodeUADP(data)
	case EncodingJSON:
		return decodeJSON(data)
	default:
		return NetworkMessage{}, fmt.Errorf("pubsub: unknown encoding %d", enc)
	}
}

const uadpVersionFlags = 0x01 // version 1, no extended flags

func encodeUADP(m NetworkMessage) ([]byte, error) {
	e := ua.NewEncoder()
	if err := e.WriteByte(uadpVersionFlags); err != nil {
		return nil, err
	}
	if err := e.WriteUint16(m.WriterGroupID); err != nil {
		return nil, err
	}
	if err := e.WriteUint16(m.DataSetWriterID); err != nil {
		return nil, err
	}
	if err := e.WriteUint16(uint16(len(m.Fields))); err != nil {
		return nil, err
	}
	for _, f := range m.Fields {
		if err := e.WriteDataValue(f); err != nil {
			return nil, fmt.Errorf("pubsub: encode field: %w", err)
		}
	}
	return e.Bytes(), nil
}

func decodeUADP(data []byte) (NetworkMessage, error) {
	d := ua.NewDecoder(data)
	flags, err := d.ReadByte()
	if err != nil {
		return NetworkMessage{}, err
	}
	if flags != uadpVersionFlags {
		return NetworkMessage{}, fmt.Errorf("pubsub: unsupported UADP version/flags 0x%x", flags)
	}
	wgID, err := d.ReadUint16()
	if err != nil {
		return NetworkMessage{}, err
	}
	dswID, err := d.ReadUint16()
	if err != nil {
		return NetworkMessage{}, err
	}
	n, err := d.ReadUint16()
	if err != nil {
		return NetworkMessage{}, err
	}
	fields := make([]ua.DataValue, n)
	for i := range fields {
		fields[i], err = d.ReadDataValue()
		if err != nil {
			return NetworkMessage{}, fmt.Errorf("pubsub: decode field %d: %w", i, err)
		}
	}
	return NetworkMessage{WriterGroupID: wgID, DataSetWriterID: dswID, Fields: fields}, nil
}

// jsonField is the textual NetworkMessage encoding's per-field shape;
// OPC UA's JSON mapping spells this out far more richly (type id,
// source/server timestamps, status), trimmed here to what the scalar
// DataSetFields in this stack's PublishedDataSets actually carry.
type jsonField struct {
	Type   ua.TypeID     `json:"type"`
	Value  any           `json:"value"`
	Status ua.StatusCode `json:"status"`
}

type jsonNetworkMessage struct {
	WriterGroupID   uint16      `json:"writerGroupId"`
	DataSetWriterID uint16      `json:"dataSetWriterId"`
	Fields          []jsonField `json:"fields"`
}

func encodeJSON(m NetworkMessage) ([]byte, error) {
	out := jsonNetworkMessage{
		WriterGroupID:   m.WriterGroupID,
		DataSetWriterID: m.DataSetWriterID,
		Fields:          make([]jsonField, len(m.Fields)),
	}
	for i, f := range m.Fields {
		out.Fields[i] = jsonField{Type: f.Value.Type, Value: f.Value.Scalar, Status: f.Status}
	}
	return json.Marshal(out)
}

func decodeJSON(data []byte) (NetworkMessage, error) {
	var in jsonNetworkMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return NetworkMessage{}, fmt.Errorf("pubsub: decode JSON NetworkMessage: %w", err)
	}
	m := NetworkMessage{
		WriterGroupID:   in.WriterGroupID,
		DataSetWriterID: in.DataSetWriterID,
		Fields:          make([]ua.DataValue, len(in.Fields)),
	}
	for i, f := range in.Fields {
		m.Fields[i] = ua.DataValue{Value: ua.Variant{Type: f.Type, Scalar: f.Value}, Status: f.Status}
	}
	return m, nil
}

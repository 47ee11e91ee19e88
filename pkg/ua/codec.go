package ua

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEncodingLimitsExceeded is returned when the destination buffer (or a
// configured message-size limit) is too small to hold the encoded value.
var ErrEncodingLimitsExceeded = errors.New("ua: encoding limits exceeded")

// ErrDecodingError is returned when a length field exceeds the remaining
// buffer or a discriminant byte is unknown. Decoding never reads past the
// declared message bounds (spec §4.A).
var ErrDecodingError = errors.New("ua: decoding error")

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecodingError, fmt.Sprintf(format, args...))
}

// epoch is the OPC UA DateTime epoch: 1601-01-01T00:00:00Z, in 100ns ticks.
var uaEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// Encoder serializes values little-endian per spec §4.A. It grows an
// internal buffer; callers enforce the remoteRecvBufferSize chunk limit
// upstream (SecureChannel fragmentation) rather than here.
type Encoder struct {
	buf   bytes.Buffer
	limit int // 0 == unlimited
}

func NewEncoder() *Encoder { return &Encoder{} }

// NewLimitedEncoder fails writes once the buffer would exceed limit bytes,
// modelling "the declared buffer is too small".
func NewLimitedEncoder(limit int) *Encoder { return &Encoder{limit: limit} }

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }
func (e *Encoder) Len() int      { return e.buf.Len() }

func (e *Encoder) checkLimit(n int) error {
	if e.limit > 0 && e.buf.Len()+n > e.limit {
		return ErrEncodingLimitsExceeded
	}
	return nil
}

func (e *Encoder) write(b []byte) error {
	if err := e.checkLimit(len(b)); err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

func (e *Encoder) WriteByte(v byte) error { return e.write([]byte{v}) }
func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.WriteByte(1)
	}
	return e.WriteByte(0)
}

func (e *Encoder) WriteUint16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) WriteInt16(v int16) error { return e.WriteUint16(uint16(v)) }

func (e *Encoder) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) WriteInt32(v int32) error { return e.WriteUint32(uint32(v)) }

func (e *Encoder) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) WriteInt64(v int64) error { return e.WriteUint64(uint64(v)) }

func (e *Encoder) WriteFloat32(v float32) error { return e.WriteUint32(math.Float32bits(v)) }
func (e *Encoder) WriteFloat64(v float64) error { return e.WriteUint64(math.Float64bits(v)) }

func (e *Encoder) WriteStatusCode(v StatusCode) error { return e.WriteUint32(uint32(v)) }

// WriteByteString encodes a length-prefixed byte slice; nil encodes as -1
// ("null"), matching the wire convention used for strings and arrays.
func (e *Encoder) WriteByteString(b []byte) error {
	if b == nil {
		return e.WriteInt32(-1)
	}
	if err := e.WriteInt32(int32(len(b))); err != nil {
		return err
	}
	return e.write(b)
}

func (e *Encoder) WriteString(s string) error {
	if s == "" {
		return e.WriteInt32(-1)
	}
	return e.WriteByteString([]byte(s))
}

func (e *Encoder) WriteGuid(g Guid) error { return e.write(g[:]) }

func (e *Encoder) WriteDateTime(t time.Time) error {
	if t.IsZero() {
		return e.WriteInt64(0)
	}
	ticks := t.Sub(uaEpoch).Nanoseconds() / 100
	return e.WriteInt64(ticks)
}

func (e *Encoder) WriteNodeId(n NodeId) error {
	switch n.Kind {
	case IdNumeric:
		switch {
		case n.NamespaceIndex == 0 && n.Numeric <= 0xFF:
			if err := e.WriteByte(0x00); err != nil {
				return err
			}
			return e.WriteByte(byte(n.Numeric))
		case n.NamespaceIndex <= 0xFF && n.Numeric <= 0xFFFF:
			if err := e.WriteByte(0x01); err != nil {
				return err
			}
			if err := e.WriteByte(byte(n.NamespaceIndex)); err != nil {
				return err
			}
			return e.WriteUint16(uint16(n.Numeric))
		default:
			if err := e.WriteByte(0x02); err != nil {
				return err
			}
			if err := e.WriteUint16(n.NamespaceIndex); err != nil {
				return err
			}
			return e.WriteUint32(n.Numeric)
		}
	case IdString:
		if err := e.WriteByte(0x03); err != nil {
			return err
		}
		if err := e.WriteUint16(n.NamespaceIndex); err != nil {
			return err
		}
		return e.WriteString(n.Str)
	case IdGuid:
		if err := e.WriteByte(0x04); err != nil {
			return err
		}
		if err := e.WriteUint16(n.NamespaceIndex); err != nil {
			return err
		}
		return e.WriteGuid(n.Guid)
	case IdByteString:
		if err := e.WriteByte(0x05); err != nil {
			return err
		}
		if err := e.WriteUint16(n.NamespaceIndex); err != nil {
			return err
		}
		return e.WriteByteString(n.Bytes)
	default:
		return fmt.Errorf("ua: unknown NodeId kind %d", n.Kind)
	}
}

const (
	flagHasNamespaceUri = 0x80
	flagHasServerIndex  = 0x40
)

func (e *Encoder) WriteExpandedNodeId(n ExpandedNodeId) error {
	// Re-derive the leading encoding byte with the two high flag bits set
	// as needed, then the NodeId body, then the optional trailers.
	enc := NewEncoder()
	if err := enc.WriteNodeId(n.NodeId); err != nil {
		return err
	}
	body := enc.Bytes()
	flags := byte(0)
	if n.NamespaceUri != "" {
		flags |= flagHasNamespaceUri
	}
	if n.ServerIndex != 0 {
		flags |= flagHasServerIndex
	}
	if err := e.WriteByte(body[0] | flags); err != nil {
		return err
	}
	if err := e.write(body[1:]); err != nil {
		return err
	}
	if flags&flagHasNamespaceUri != 0 {
		if err := e.WriteString(n.NamespaceUri); err != nil {
			return err
		}
	}
	if flags&flagHasServerIndex != 0 {
		if err := e.WriteUint32(n.ServerIndex); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) WriteQualifiedName(q QualifiedName) error {
	if err := e.WriteUint16(q.NamespaceIndex); err != nil {
		return err
	}
	return e.WriteString(q.Name)
}

func (e *Encoder) WriteLocalizedText(t LocalizedText) error {
	flags := byte(0)
	if t.Locale != "" {
		flags |= 0x01
	}
	if t.Text != "" {
		flags |= 0x02
	}
	if err := e.WriteByte(flags); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if err := e.WriteString(t.Locale); err != nil {
			return err
		}
	}
	if flags&0x02 != 0 {
		if err := e.WriteString(t.Text); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant encodes the type byte (flag bits for "is array" (0x80) and
// "has array dimensions" (0x40) packed with the low 6 bits of the builtin
// type id), then the scalar or array payload.
func (e *Encoder) WriteVariant(v Variant) error {
	if v.Type > maxBuiltinType {
		return fmt.Errorf("ua: variant type id %d out of range", v.Type)
	}
	tb := byte(v.Type)
	if v.IsArray() {
		tb |= 0x80
	}
	if v.HasArrayDimensions() {
		tb |= 0x40
	}
	if err := e.WriteByte(tb); err != nil {
		return err
	}
	if v.IsArray() {
		if err := e.WriteInt32(int32(len(v.Array))); err != nil {
			return err
		}
		for _, el := range v.Array {
			if err := e.writeScalar(v.Type, el); err != nil {
				return err
			}
		}
		if v.HasArrayDimensions() {
			if err := e.WriteInt32(int32(len(v.ArrayDimensions))); err != nil {
				return err
			}
			for _, d := range v.ArrayDimensions {
				if err := e.WriteUint32(d); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return e.writeScalar(v.Type, v.Scalar)
}

func (e *Encoder) writeScalar(t TypeID, v any) error {
	switch t {
	case TypeNull:
		return nil
	case TypeBoolean:
		return e.WriteBool(v.(bool))
	case TypeSByte:
		return e.WriteByte(byte(v.(int8)))
	case TypeByte:
		return e.WriteByte(v.(byte))
	case TypeInt16:
		return e.WriteInt16(v.(int16))
	case TypeUInt16:
		return e.WriteUint16(v.(uint16))
	case TypeInt32:
		return e.WriteInt32(v.(int32))
	case TypeUInt32:
		return e.WriteUint32(v.(uint32))
	case TypeInt64:
		return e.WriteInt64(v.(int64))
	case TypeUInt64:
		return e.WriteUint64(v.(uint64))
	case TypeFloat:
		return e.WriteFloat32(v.(float32))
	case TypeDouble:
		return e.WriteFloat64(v.(float64))
	case TypeString:
		return e.WriteString(v.(string))
	case TypeDateTime:
		return e.WriteDateTime(v.(time.Time))
	case TypeGuid:
		return e.WriteGuid(v.(Guid))
	case TypeByteString, TypeXmlElement:
		return e.WriteByteString(v.([]byte))
	case TypeNodeId:
		return e.WriteNodeId(v.(NodeId))
	case TypeExpandedNodeId:
		return e.WriteExpandedNodeId(v.(ExpandedNodeId))
	case TypeStatusCode:
		return e.WriteStatusCode(v.(StatusCode))
	case TypeQualifiedName:
		return e.WriteQualifiedName(v.(QualifiedName))
	case TypeLocalizedText:
		return e.WriteLocalizedText(v.(LocalizedText))
	case TypeExtensionObject:
		return e.WriteExtensionObject(v.(ExtensionObject))
	case TypeDataValue:
		return e.WriteDataValue(v.(DataValue))
	case TypeVariant:
		return e.WriteVariant(v.(Variant))
	default:
		return fmt.Errorf("ua: cannot encode scalar of type %d", t)
	}
}

// WriteDataValue encodes the encoding-mask + present fields, mirroring the
// explicit-absence convention used for LocalizedText.
func (e *Encoder) WriteDataValue(d DataValue) error {
	mask := byte(0x01) // value always present here
	mask |= 0x02        // status always present
	if d.HasSourceTimestamp {
		mask |= 0x04
	}
	if d.HasServerTimestamp {
		mask |= 0x08
	}
	if d.SourcePicoseconds != 0 {
		mask |= 0x10
	}
	if d.ServerPicoseconds != 0 {
		mask |= 0x20
	}
	if err := e.WriteByte(mask); err != nil {
		return err
	}
	if err := e.WriteVariant(d.Value); err != nil {
		return err
	}
	if err := e.WriteStatusCode(d.Status); err != nil {
		return err
	}
	if d.HasSourceTimestamp {
		if err := e.WriteDateTime(d.SourceTimestamp); err != nil {
			return err
		}
		if mask&0x10 != 0 {
			if err := e.WriteUint16(d.SourcePicoseconds); err != nil {
				return err
			}
		}
	}
	if d.HasServerTimestamp {
		if err := e.WriteDateTime(d.ServerTimestamp); err != nil {
			return err
		}
		if mask&0x20 != 0 {
			if err := e.WriteUint16(d.ServerPicoseconds); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- Decoder ---

// Decoder consumes bytes little-endian. It is bounded to exactly the slice
// it was constructed with; every read checks remaining length so decoding
// never reads past the declared message bounds (spec §4.A, §8 property 1).
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) need(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, decodeErr("need %d bytes, have %d", n, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	return b != 0, err
}

func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.need(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.need(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.need(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) ReadStatusCode() (StatusCode, error) {
	v, err := d.ReadUint32()
	return StatusCode(v), err
}

// ReadByteString decodes a length-prefixed byte slice; length -1 decodes
// as nil ("null").
func (d *Decoder) ReadByteString() ([]byte, error) {
	n, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	b, err := d.need(int(n))
	if err != nil {
		return nil, decodeErr("byte string length %d exceeds remaining buffer", n)
	}
	return append([]byte(nil), b...), nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadByteString()
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", nil
	}
	return string(b), nil
}

func (d *Decoder) ReadGuid() (Guid, error) {
	var g Guid
	b, err := d.need(16)
	if err != nil {
		return g, err
	}
	copy(g[:], b)
	return g, nil
}

func (d *Decoder) ReadDateTime() (time.Time, error) {
	ticks, err := d.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	if ticks == 0 {
		return time.Time{}, nil
	}
	return uaEpoch.Add(time.Duration(ticks) * 100), nil
}

func (d *Decoder) ReadNodeId() (NodeId, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return NodeId{}, err
	}
	switch tag {
	case 0x00:
		b, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(0, uint32(b)), nil
	case 0x01:
		ns, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		v, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(uint16(ns), uint32(v)), nil
	case 0x02:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		v, err := d.ReadUint32()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(ns, v), nil
	case 0x03:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		s, err := d.ReadString()
		if err != nil {
			return NodeId{}, err
		}
		return NewStringNodeId(ns, s), nil
	case 0x04:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		g, err := d.ReadGuid()
		if err != nil {
			return NodeId{}, err
		}
		return NewGuidNodeId(ns, g), nil
	case 0x05:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		b, err := d.ReadByteString()
		if err != nil {
			return NodeId{}, err
		}
		return NewByteStringNodeId(ns, b), nil
	default:
		return NodeId{}, decodeErr("unknown NodeId encoding tag 0x%02x", tag)
	}
}

func (d *Decoder) ReadExpandedNodeId() (ExpandedNodeId, error) {
	if d.Remaining() < 1 {
		return ExpandedNodeId{}, decodeErr("expanded node id truncated")
	}
	flags := d.buf[d.off] & (flagHasNamespaceUri | flagHasServerIndex)
	d.buf[d.off] &^= flagHasNamespaceUri | flagHasServerIndex
	nid, err := d.ReadNodeId()
	if err != nil {
		return ExpandedNodeId{}, err
	}
	e := ExpandedNodeId{NodeId: nid}
	if flags&flagHasNamespaceUri != 0 {
		e.NamespaceUri, err = d.ReadString()
		if err != nil {
			return ExpandedNodeId{}, err
		}
	}
	if flags&flagHasServerIndex != 0 {
		e.ServerIndex, err = d.ReadUint32()
		if err != nil {
			return ExpandedNodeId{}, err
		}
	}
	return e, nil
}

func (d *Decoder) ReadQualifiedName() (QualifiedName, error) {
	ns, err := d.ReadUint16()
	if err != nil {
		return QualifiedName{}, err
	}
	name, err := d.ReadString()
	if err != nil {
		return QualifiedName{}, err
	}
	return QualifiedName{NamespaceIndex: ns, Name: name}, nil
}

func (d *Decoder) ReadLocalizedText() (LocalizedText, error) {
	flags, err := d.ReadByte()
	if err != nil {
		return LocalizedText{}, err
	}
	var t LocalizedText
	if flags&0x01 != 0 {
		if t.Locale, err = d.ReadString(); err != nil {
			return LocalizedText{}, err
		}
	}
	if flags&0x02 != 0 {
		if t.Text, err = d.ReadString(); err != nil {
			return LocalizedText{}, err
		}
	}
	return t, nil
}

func (d *Decoder) ReadVariant() (Variant, error) {
	tb, err := d.ReadByte()
	if err != nil {
		return Variant{}, err
	}
	isArray := tb&0x80 != 0
	hasDims := tb&0x40 != 0
	t := TypeID(tb &^ (0x80 | 0x40))
	if t > maxBuiltinType {
		return Variant{}, decodeErr("unknown variant type id %d", t)
	}
	if !isArray {
		sc, err := d.readScalar(t)
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Scalar: sc}, nil
	}
	n, err := d.ReadInt32()
	if err != nil {
		return Variant{}, err
	}
	if n < 0 {
		v := Variant{Type: t, Array: nil}
		if hasDims {
			if v.ArrayDimensions, err = d.readDims(); err != nil {
				return Variant{}, err
			}
			v.arrayDimsPresent = true
		}
		return v, nil
	}
	if int(n) > d.Remaining() {
		return Variant{}, decodeErr("variant array length %d exceeds remaining buffer", n)
	}
	arr := make([]any, n)
	for i := range arr {
		arr[i], err = d.readScalar(t)
		if err != nil {
			return Variant{}, err
		}
	}
	v := Variant{Type: t, Array: arr}
	if hasDims {
		if v.ArrayDimensions, err = d.readDims(); err != nil {
			return Variant{}, err
		}
		v.arrayDimsPresent = true
	}
	return v, nil
}

func (d *Decoder) readDims() ([]uint32, error) {
	n, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	dims := make([]uint32, n)
	for i := range dims {
		if dims[i], err = d.ReadUint32(); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

func (d *Decoder) readScalar(t TypeID) (any, error) {
	switch t {
	case TypeNull:
		return nil, nil
	case TypeBoolean:
		return d.ReadBool()
	case TypeSByte:
		b, err := d.ReadByte()
		return int8(b), err
	case TypeByte:
		return d.ReadByte()
	case TypeInt16:
		return d.ReadInt16()
	case TypeUInt16:
		return d.ReadUint16()
	case TypeInt32:
		return d.ReadInt32()
	case TypeUInt32:
		return d.ReadUint32()
	case TypeInt64:
		return d.ReadInt64()
	case TypeUInt64:
		return d.ReadUint64()
	case TypeFloat:
		return d.ReadFloat32()
	case TypeDouble:
		return d.ReadFloat64()
	case TypeString:
		return d.ReadString()
	case TypeDateTime:
		return d.ReadDateTime()
	case TypeGuid:
		return d.ReadGuid()
	case TypeByteString, TypeXmlElement:
		return d.ReadByteString()
	case TypeNodeId:
		return d.ReadNodeId()
	case TypeExpandedNodeId:
		return d.ReadExpandedNodeId()
	case TypeStatusCode:
		return d.ReadStatusCode()
	case TypeQualifiedName:
		return d.ReadQualifiedName()
	case TypeLocalizedText:
		return d.ReadLocalizedText()
	case TypeExtensionObject:
		return d.ReadExtensionObject()
	case TypeDataValue:
		return d.ReadDataValue()
	case TypeVariant:
		return d.ReadVariant()
	default:
		return nil, decodeErr("cannot decode scalar of type %d", t)
	}
}

func (d *Decoder) ReadDataValue() (DataValue, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return DataValue{}, err
	}
	var dv DataValue
	if mask&0x01 != 0 {
		if dv.Value, err = d.ReadVariant(); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x02 != 0 {
		if dv.Status, err = d.ReadStatusCode(); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x04 != 0 {
		if dv.SourceTimestamp, err = d.ReadDateTime(); err != nil {
			return DataValue{}, err
		}
		dv.HasSourceTimestamp = true
	}
	if mask&0x10 != 0 {
		if dv.SourcePicoseconds, err = d.ReadUint16(); err != nil {
			return DataValue{}, err
		}
	}
	if mask&0x08 != 0 {
		if dv.ServerTimestamp, err = d.ReadDateTime(); err != nil {
			return DataValue{}, err
		}
		dv.HasServerTimestamp = true
	}
	if mask&0x20 != 0 {
		if dv.ServerPicoseconds, err = d.ReadUint16(); err != nil {
			return DataValue{}, err
		}
	}
	return dv, nil
}

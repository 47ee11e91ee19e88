package pubsub

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/uastack/uacore/pkg/ua"
)

func contextBackground() context.Context { return context.Background() }

// fieldOffsets computes, for a UADP template message produced by
// Encode with EncodingUADP, the byte offset of each field's DataValue
// payload within the encoded buffer. Fixed-size fields always encode
// to the same width, so re-running the same walk on every publish
// cycle is unnecessary once the template is built.
//
// DataValue encoding (see pkg/ua/codec.go WriteDataValue): 1 mask byte,
// the Variant (1 type byte + scalar bytes), then a 4-byte StatusCode
// (WriteDataValue always sets the status bit). publishRealtime's
// template DataValues carry no timestamps, so each field is exactly
// 1 (mask) + 1 (Variant type byte) + fixedWidth(type) + 4 (status) bytes.
func fieldOffsets(template []byte, numFields int) []int {
	offsets := make([]int, numFields)
	off := 1 + 2 + 2 + 2 // NetworkMessage header: flags + writerGroupId + dataSetWriterId + field count
	for i := 0; i < numFields; i++ {
		offsets[i] = off + 2 // skip DataValue mask byte + Variant type byte
		off += 2 + fieldWidthAt(template, offsets[i]) + 4 // + status code
	}
	return offsets
}

func fieldWidthAt(template []byte, payloadOffset int) int {
	if payloadOffset <= 1 {
		return 0
	}
	typeByte := template[payloadOffset-1]
	return fixedWidth(ua.TypeID(typeByte))
}

// overwriteScalarAt rewrites the fixed-width scalar payload at offset
// in buf with v's bytes, matching the little-endian layout pkg/ua's
// Encoder uses for the same TypeID.
func overwriteScalarAt(buf []byte, offset int, v ua.Variant) {
	width := fixedWidth(v.Type)
	if width == 0 || offset+width > len(buf) {
		return
	}
	switch v.Type {
	case ua.TypeBoolean:
		b := byte(0)
		if v.Scalar.(bool) {
			b = 1
		}
		buf[offset] = b
	case ua.TypeSByte:
		buf[offset] = byte(v.Scalar.(int8))
	case ua.TypeByte:
		buf[offset] = v.Scalar.(byte)
	case ua.TypeInt16:
		binary.LittleEndian.PutUint16(buf[offset:], uint16(v.Scalar.(int16)))
	case ua.TypeUInt16:
		binary.LittleEndian.PutUint16(buf[offset:], v.Scalar.(uint16))
	case ua.TypeInt32:
		binary.LittleEndian.PutUint32(buf[offset:], uint32(v.Scalar.(int32)))
	case ua.TypeUInt32:
		binary.LittleEndian.PutUint32(buf[offset:], v.Scalar.(uint32))
	case ua.TypeFloat:
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v.Scalar.(float32)))
	case ua.TypeInt64:
		binary.LittleEndian.PutUint64(buf[offset:], uint64(v.Scalar.(int64)))
	case ua.TypeUInt64:
		binary.LittleEndian.PutUint64(buf[offset:], v.Scalar.(uint64))
	case ua.TypeDouble:
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(v.Scalar.(float64)))
	}
}

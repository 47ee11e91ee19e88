// Package securechannel implements the OPC UA chunked message protocol
// and SecureChannel state machine (spec §4.D): HEL/ACK/ERR/OPN/MSG/CLO
// chunk types, symmetric and asymmetric chunk headers, sequence-number
// monotonicity and token rotation.
package securechannel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/uastack/uacore/pkg/ua"
)

// MessageType is the 3-byte ASCII tag at the start of every chunk.
type MessageType string

const (
	MsgHello       MessageType = "HEL"
	MsgAck         MessageType = "ACK"
	MsgError       MessageType = "ERR"
	MsgOpenChannel MessageType = "OPN"
	MsgMessage     MessageType = "MSG"
	MsgClose       MessageType = "CLO"
)

// ChunkType is the 1-byte tag following the message type.
type ChunkType byte

const (
	ChunkFinal        ChunkType = 'F'
	ChunkIntermediate ChunkType = 'C'
	ChunkAbort        ChunkType = 'A'
)

const chunkHeaderSize = 8 // MessageType(3) + ChunkType(1) + MessageSize(4)

// ChunkHeader is the common 8-byte prefix of every chunk.
type ChunkHeader struct {
	MessageType MessageType
	ChunkType   ChunkType
	MessageSize uint32
}

func (h ChunkHeader) Write(buf []byte) error {
	if len(buf) < chunkHeaderSize {
		return errors.New("buffer too small for chunk header")
	}
	copy(buf[0:3], h.MessageType)
	buf[3] = byte(h.ChunkType)
	binary.LittleEndian.PutUint32(buf[4:8], h.MessageSize)
	return nil
}

func ReadChunkHeader(buf []byte) (ChunkHeader, error) {
	if len(buf) < chunkHeaderSize {
		return ChunkHeader{}, fmt.Errorf("%w: short chunk header", ua.ErrDecodingError)
	}
	return ChunkHeader{
		MessageType: MessageType(buf[0:3]),
		ChunkType:   ChunkType(buf[3]),
		MessageSize: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// SymmetricSecurityHeader follows the chunk header on MSG/CLO chunks
// once a SecureChannel is open.
type SymmetricSecurityHeader struct {
	SecureChannelID uint32
	TokenID         uint32
}

const symmetricSecurityHeaderSize = 8

func (h SymmetricSecurityHeader) Write(buf []byte) error {
	if len(buf) < symmetricSecurityHeaderSize {
		return errors.New("buffer too small for symmetric security header")
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.SecureChannelID)
	binary.LittleEndian.PutUint32(buf[4:8], h.TokenID)
	return nil
}

func ReadSymmetricSecurityHeader(buf []byte) (SymmetricSecurityHeader, error) {
	if len(buf) < symmetricSecurityHeaderSize {
		return SymmetricSecurityHeader{}, fmt.Errorf("%w: short symmetric security header", ua.ErrDecodingError)
	}
	return SymmetricSecurityHeader{
		SecureChannelID: binary.LittleEndian.Uint32(buf[0:4]),
		TokenID:         binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// AsymmetricSecurityHeader follows the chunk header on OPN chunks.
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI           string
	SenderCertificate           []byte
	ReceiverCertificateThumbprint []byte
}

func (h AsymmetricSecurityHeader) Encode(enc *ua.Encoder) {
	enc.WriteString(h.SecurityPolicyURI)
	enc.WriteByteString(h.SenderCertificate)
	enc.WriteByteString(h.ReceiverCertificateThumbprint)
}

func DecodeAsymmetricSecurityHeader(dec *ua.Decoder) (AsymmetricSecurityHeader, error) {
	uri, err := dec.ReadString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	cert, err := dec.ReadByteString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	thumb, err := dec.ReadByteString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	return AsymmetricSecurityHeader{SecurityPolicyURI: uri, SenderCertificate: cert, ReceiverCertificateThumbprint: thumb}, nil
}

// SequenceHeader appears after the security header on every chunk.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

const sequenceHeaderSize = 8

func (h SequenceHeader) Write(buf []byte) error {
	if len(buf) < sequenceHeaderSize {
		return errors.New("buffer too small for sequence header")
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.SequenceNumber)
	binary.LittleEndian.PutUint32(buf[4:8], h.RequestID)
	return nil
}

func ReadSequenceHeader(buf []byte) (SequenceHeader, error) {
	if len(buf) < sequenceHeaderSize {
		return SequenceHeader{}, fmt.Errorf("%w: short sequence header", ua.ErrDecodingError)
	}
	return SequenceHeader{
		SequenceNumber: binary.LittleEndian.Uint32(buf[0:4]),
		RequestID:      binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// SequenceCounter enforces the monotonic, wraparound-at-2^32-1 sequence
// numbering rule (spec §4.D property: sequence numbers strictly increase
// modulo 2^32, skipping 0 on wraparound).
type SequenceCounter struct {
	last    uint32
	started bool
}

func (c *SequenceCounter) Next() uint32 {
	if !c.started {
		c.started = true
		c.last = 1
		return c.last
	}
	if c.last == 0xFFFFFFFF {
		c.last = 1
	} else {
		c.last++
	}
	return c.last
}

// Validate checks that received strictly follows the last accepted
// sequence number per the same wraparound rule, without mutating state.
func (c *SequenceCounter) Validate(received uint32) error {
	if !c.started {
		return nil
	}
	expected := c.last + 1
	if c.last == 0xFFFFFFFF {
		expected = 1
	}
	if received != expected {
		return fmt.Errorf("%w: sequence number %d, expected %d", ErrSequenceNumberInvalid, received, expected)
	}
	return nil
}

// Accept records received as the last accepted sequence number after
// Validate has approved it.
func (c *SequenceCounter) Accept(received uint32) {
	c.started = true
	c.last = received
}

var ErrSequenceNumberInvalid = errors.New("securechannel: invalid sequence number")

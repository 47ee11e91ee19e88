package ua

import (
	"testing"
	"time"
)

func TestNodeIdRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   NodeId
	}{
		{"two-byte numeric", NewNumericNodeId(0, 13)},
		{"four-byte numeric", NewNumericNodeId(1, 300)},
		{"numeric", NewNumericNodeId(10, 123456)},
		{"string", NewStringNodeId(1, "the.answer")},
		{"guid", NewGuidNodeId(2, Guid{1, 2, 3})},
		{"bytestring", NewByteStringNodeId(3, []byte{0xDE, 0xAD, 0xBE, 0xEF})},
		{"null", Null},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder()
			if err := enc.WriteNodeId(tt.id); err != nil {
				t.Fatalf("encode: %v", err)
			}
			dec := NewDecoder(enc.Bytes())
			got, err := dec.ReadNodeId()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !got.Equal(tt.id) {
				t.Errorf("got %v, want %v", got, tt.id)
			}
			if dec.Remaining() != 0 {
				t.Errorf("decoder left %d unread bytes", dec.Remaining())
			}
		})
	}
}

func TestNullIsNamespace0Numeric0(t *testing.T) {
	if !Null.IsNull() {
		t.Fatal("Null must be null")
	}
	if NewNumericNodeId(0, 1).IsNull() {
		t.Fatal("ns=0;i=1 must not be null")
	}
	if NewNumericNodeId(1, 0).IsNull() {
		t.Fatal("ns=1;i=0 must not be null")
	}
}

func TestStringRoundTripIncludingNull(t *testing.T) {
	for _, s := range []string{"", "hello", "utf8 éè"} {
		enc := NewEncoder()
		if err := enc.WriteString(s); err != nil {
			t.Fatal(err)
		}
		dec := NewDecoder(enc.Bytes())
		got, err := dec.ReadString()
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("got %q want %q", got, s)
		}
	}
}

func TestVariantScalarRoundTrip(t *testing.T) {
	v := NewScalarVariant(TypeInt32, int32(42))
	enc := NewEncoder()
	if err := enc.WriteVariant(v); err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadVariant()
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeInt32 || got.Scalar.(int32) != 42 {
		t.Errorf("got %+v", got)
	}
	if got.IsArray() {
		t.Error("scalar decoded as array")
	}
}

func TestVariantArrayOfOneDistinctFromScalar(t *testing.T) {
	scalar := NewScalarVariant(TypeInt32, int32(7))
	array := NewArrayVariant(TypeInt32, []any{int32(7)}, nil)

	if scalar.IsArray() == array.IsArray() {
		t.Fatal("scalar and length-1 array must differ in IsArray()")
	}

	enc := NewEncoder()
	if err := enc.WriteVariant(array); err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadVariant()
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsArray() || len(got.Array) != 1 || got.Array[0].(int32) != 7 {
		t.Errorf("got %+v", got)
	}
}

func TestDataValueRoundTrip(t *testing.T) {
	now := time.Now().UTC().Round(time.Microsecond)
	dv := NewGoodDataValue(NewScalarVariant(TypeDateTime, now)).WithServerTimestamp(now)

	enc := NewEncoder()
	if err := enc.WriteDataValue(dv); err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadDataValue()
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != Good {
		t.Errorf("status = %v", got.Status)
	}
	if !got.HasServerTimestamp {
		t.Error("expected HasServerTimestamp")
	}
	if !got.ServerTimestamp.Equal(now) {
		t.Errorf("server timestamp %v != %v", got.ServerTimestamp, now)
	}
}

func TestExtensionObjectNotEncoded(t *testing.T) {
	eo := ExtensionObject{TypeId: NewNumericNodeId(0, 297), Encoding: EncodingNone}
	enc := NewEncoder()
	if err := enc.WriteExtensionObject(eo); err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadExtensionObject()
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNil() {
		t.Error("expected nil extension object")
	}
}

func TestDecodeTruncatedBufferIsDecodingError(t *testing.T) {
	enc := NewEncoder()
	_ = enc.WriteString("hello world")
	truncated := enc.Bytes()[:3]
	dec := NewDecoder(truncated)
	if _, err := dec.ReadString(); err == nil {
		t.Fatal("expected decoding error on truncated buffer")
	}
}

func TestEncodingLimitsExceeded(t *testing.T) {
	enc := NewLimitedEncoder(4)
	if err := enc.WriteUint32(1); err != nil {
		t.Fatalf("first write within limit failed: %v", err)
	}
	if err := enc.WriteByte(1); err == nil {
		t.Fatal("expected encoding limits exceeded")
	}
}

func TestStatusCodeSeverity(t *testing.T) {
	if !Good.Good() {
		t.Error("Good should be Good()")
	}
	if !BadTypeMismatch.IsBad() {
		t.Error("BadTypeMismatch should be IsBad()")
	}
	if !Uncertain.IsUncertain() {
		t.Error("Uncertain should be IsUncertain()")
	}
}

func TestReferenceTypeSet(t *testing.T) {
	var s ReferenceTypeSet
	s = s.With(RefIndexHasComponent).With(RefIndexOrganizes)
	if !s.Contains(RefIndexHasComponent) || !s.Contains(RefIndexOrganizes) {
		t.Fatal("expected both bits set")
	}
	if s.Contains(RefIndexHasSubtype) {
		t.Fatal("unexpected bit set")
	}
	s = s.Without(RefIndexOrganizes)
	if s.Contains(RefIndexOrganizes) {
		t.Fatal("expected bit cleared")
	}
}

package historian

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uastack/uacore/pkg/ua"
)

func TestStoreAppendAndRead(t *testing.T) {
	s := NewStore()
	for i := int64(0); i < 5; i++ {
		dv := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeDouble, float64(i)), Status: ua.Good}
		s.Append("ns=1;i=42", i*1000, dv)
	}

	got, err := s.Read("ns=1;i=42", 1000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 1.0, got[0].Value.Scalar)
	require.Equal(t, 3.0, got[2].Value.Scalar)
}

func TestStoreReadUnknownNode(t *testing.T) {
	s := NewStore()
	_, err := s.Read("ns=1;i=99", 0, 1000)
	require.ErrorIs(t, err, ErrNoData)
}

func TestStoreSpansMultipleBlocks(t *testing.T) {
	s := NewStore()
	total := sampleCap*2 + 10
	for i := 0; i < total; i++ {
		dv := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeInt32, int32(i)), Status: ua.Good}
		s.Append("ns=1;i=7", int64(i), dv)
	}

	got, err := s.Read("ns=1;i=7", 0, int64(total))
	require.NoError(t, err)
	require.Len(t, got, total)
	require.Equal(t, int32(0), got[0].Value.Scalar)
	require.Equal(t, int32(total-1), got[total-1].Value.Scalar)
}

func TestStorePruneEvictsOldBlocks(t *testing.T) {
	s := NewStore()
	total := sampleCap + 20
	for i := 0; i < total; i++ {
		dv := ua.DataValue{Value: ua.NewScalarVariant(ua.TypeInt32, int32(i)), Status: ua.Good}
		s.Append("ns=1;i=8", int64(i), dv)
	}

	freed := s.Prune(int64(sampleCap))
	require.GreaterOrEqual(t, freed, 1)

	got, err := s.Read("ns=1;i=8", 0, int64(total))
	require.NoError(t, err)
	require.Less(t, len(got), total)
}

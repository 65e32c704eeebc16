package memsegment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kopia/memstream/internal/memsegment"
)

func TestManagedSource(t *testing.T) {
	src := memsegment.NewSource(memsegment.SourceManaged)
	require.Equal(t, memsegment.SourceManaged, src.Kind())

	r, err := src.Alloc(memsegment.Size)
	require.NoError(t, err)
	require.True(t, r.IsValid())
	require.Len(t, r.Data, memsegment.Size)
	require.Equal(t, memsegment.SourceManaged, r.Kind)

	// managed regions are zero-initialized by the runtime
	for _, v := range r.Data {
		require.Zero(t, v)
	}

	require.NoError(t, src.Release(r))
}

func TestNativeSource(t *testing.T) {
	src := memsegment.NewSource(memsegment.SourceNative)
	require.Equal(t, memsegment.SourceNative, src.Kind())

	r, err := src.Alloc(memsegment.Size)
	require.NoError(t, err)
	require.True(t, r.IsValid())
	require.Len(t, r.Data, memsegment.Size)
	require.Equal(t, memsegment.SourceNative, r.Kind)

	// the mapping is writable and readable
	r.Data[0] = 0x42
	r.Data[memsegment.Size-1] = 0x24
	require.Equal(t, byte(0x42), r.Data[0])
	require.Equal(t, byte(0x24), r.Data[memsegment.Size-1])

	require.NoError(t, src.Release(r))
}

func TestSourceKindString(t *testing.T) {
	require.Equal(t, "managed", memsegment.SourceManaged.String())
	require.Equal(t, "native", memsegment.SourceNative.String())
}

func TestZeroRegionIsInvalid(t *testing.T) {
	var r memsegment.Region

	require.False(t, r.IsValid())
}

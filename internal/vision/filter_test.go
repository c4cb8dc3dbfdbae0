package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idRegion(id int64) Region {
	return Region{X: float32(id) * 100, Y: 0, W: 50, H: 50, TrackID: id}
}

func TestFilterNoSetsKeepsAll(t *testing.T) {
	regions := []Region{idRegion(1), idRegion(2), {W: 10, H: 10}}
	out := NewFilter(nil, nil).Apply(regions)
	assert.Equal(t, regions, out)
}

func TestFilterBlurIDs(t *testing.T) {
	f := NewFilter([]int64{2}, nil)
	out := f.Apply([]Region{idRegion(1), idRegion(2), {W: 10, H: 10}})

	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].TrackID)
}

func TestFilterExcludeIDs(t *testing.T) {
	f := NewFilter(nil, []int64{2})
	out := f.Apply([]Region{idRegion(1), idRegion(2), {W: 10, H: 10}})

	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].TrackID)
	// Untracked regions survive an exclude filter.
	assert.Equal(t, int64(0), out[1].TrackID)
}

func TestFilterIsIdempotent(t *testing.T) {
	regions := []Region{idRegion(1), idRegion(2), idRegion(3), {W: 10, H: 10}}

	blur := NewFilter([]int64{1, 3}, nil)
	once := blur.Apply(regions)
	assert.Equal(t, once, blur.Apply(once))

	excl := NewFilter(nil, []int64{2})
	once = excl.Apply(regions)
	assert.Equal(t, once, excl.Apply(once))
}

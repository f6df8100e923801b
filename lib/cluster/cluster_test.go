package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

// newRefs builds transcripts with the given counts and linear masses (0 meaning no mass).
func newRefs(unique, total []uint64, mass []float64) transcript.Transcripts {
	refs := make(transcript.Transcripts, len(unique))
	for i := range refs {
		refs[i] = transcript.New(uint32(i), "", 1000)
		refs[i].SetCounts(unique[i], total[i])
		refs[i].SetMass(logmath.Log(mass[i]))
	}
	return refs
}

func members(n int) []uint32 {
	m := make([]uint32, n)
	for i := range m {
		m[i] = uint32(i)
	}
	return m
}

func sumProjected(refs transcript.Transcripts, c *Cluster) (s float64) {
	for _, id := range c.Members {
		s += refs[id].ProjectedCounts
	}
	return
}

func TestProjectTwoTranscripts(t *testing.T) {
	// Raw shares 2 and 28 of a 30-fragment cluster
	refs := newRefs([]uint64{5, 0}, []uint64{10, 20}, []float64{2, 28})
	c := New(0, members(2), math.Log(30), 30)

	projected, err := Project(c, refs)
	require.NoError(t, err)
	assert.True(t, projected)
	assert.InDelta(t, 30, sumProjected(refs, c), 1e-9)
	assert.InDelta(t, 10, refs[0].ProjectedCounts, 1e-9)
	assert.InDelta(t, 20, refs[1].ProjectedCounts, 1e-9)
	assert.Equal(t, 5.0, refs[0].UniqueCounts)
	assert.Equal(t, 20.0, refs[1].TotalCounts)
}

func TestProjectFeasibleIsIdempotent(t *testing.T) {
	refs := newRefs([]uint64{1, 2, 0}, []uint64{10, 10, 10}, []float64{3, 5, 2})
	c := New(0, members(3), math.Log(10), 10)

	projected, err := Project(c, refs)
	require.NoError(t, err)
	assert.False(t, projected)
	first := []float64{refs[0].ProjectedCounts, refs[1].ProjectedCounts, refs[2].ProjectedCounts}
	assert.InDelta(t, 3, first[0], 1e-9)
	assert.InDelta(t, 5, first[1], 1e-9)
	assert.InDelta(t, 2, first[2], 1e-9)

	projected, err = Project(c, refs)
	require.NoError(t, err)
	assert.False(t, projected)
	for i := range first {
		assert.Equal(t, first[i], refs[i].ProjectedCounts)
	}
}

func TestProjectNoMassMember(t *testing.T) {
	refs := newRefs([]uint64{0, 0}, []uint64{4, 4}, []float64{0, 4})
	c := New(0, members(2), math.Log(4), 4)
	projected, err := Project(c, refs)
	require.NoError(t, err)
	assert.False(t, projected)
	assert.Equal(t, 0.0, refs[0].ProjectedCounts)
	assert.InDelta(t, 4, refs[1].ProjectedCounts, 1e-9)
}

func TestProjectUnambiguousExact(t *testing.T) {
	for n := uint64(1); n <= 1000; n++ {
		refs := newRefs([]uint64{n}, []uint64{n}, []float64{float64(n) * 0.37})
		c := New(0, members(1), refs[0].Mass(), n)
		projected, err := Project(c, refs)
		require.NoError(t, err)
		assert.False(t, projected)
		assert.Equal(t, float64(n), refs[0].ProjectedCounts, n)
	}

	// All the mass on one member of a cluster
	refs := newRefs([]uint64{0, 3}, []uint64{2, 3}, []float64{0, 7})
	f := NewForest(len(refs))
	require.NoError(t, f.AddFragment([]uint32{1, 0}))
	require.NoError(t, f.AddFragment([]uint32{1}))
	require.NoError(t, f.AddFragment([]uint32{1}))
	clusters, err := f.Clusters(refs)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	_, err = Project(clusters[0], refs)
	require.NoError(t, err)
	assert.Equal(t, 0.0, refs[0].ProjectedCounts)
	assert.Equal(t, 3.0, refs[1].ProjectedCounts)
}

func TestProjectNoMassMemberStaysZero(t *testing.T) {
	// Member 1 is above its upper bound; member 0 has room but no mass
	refs := newRefs([]uint64{0, 0, 0}, []uint64{10, 20, 15}, []float64{0, 25, 5})
	c := New(0, members(3), math.Log(30), 30)
	projected, err := Project(c, refs)
	require.NoError(t, err)
	assert.True(t, projected)
	assert.Equal(t, 0.0, refs[0].ProjectedCounts)
	assert.InDelta(t, 20, refs[1].ProjectedCounts, 1e-9)
	assert.InDelta(t, 10, refs[2].ProjectedCounts, 1e-9)

	// Without member 0 the count no longer fits
	refs = newRefs([]uint64{0, 0}, []uint64{10, 20}, []float64{0, 30})
	c = New(4, members(2), math.Log(30), 30)
	_, err = Project(c, refs)
	assert.ErrorIs(t, err, ErrInfeasibleProjection)
	assert.Equal(t, 0.0, refs[0].ProjectedCounts)

	// Unique fragments on a member without mass
	refs = newRefs([]uint64{2, 0}, []uint64{10, 20}, []float64{0, 30})
	c = New(5, members(2), math.Log(30), 30)
	_, err = Project(c, refs)
	var ie *InfeasibleProjectionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 5, ie.Cluster)
}

func TestProjectSingletonNotProjected(t *testing.T) {
	// A singleton outside its bounds keeps its raw share
	refs := newRefs([]uint64{8}, []uint64{8}, []float64{1})
	c := New(0, members(1), math.Log(2), 6)
	projected, err := Project(c, refs)
	require.NoError(t, err)
	assert.False(t, projected)
	assert.InDelta(t, 3, refs[0].ProjectedCounts, 1e-9)
}

func TestProjectZeroMass(t *testing.T) {
	refs := newRefs([]uint64{0, 0}, []uint64{0, 0}, []float64{0, 0})
	refs[0].ProjectedCounts = 12
	c := New(3, members(2), logmath.Log0, 0)
	_, err := Project(c, refs)
	assert.ErrorIs(t, err, ErrZeroMassCluster)
	assert.Equal(t, 0.0, refs[0].ProjectedCounts)
	assert.Equal(t, 0.0, refs[1].ProjectedCounts)
}

func TestProjectInfeasible(t *testing.T) {
	// Upper bounds sum to 5 but the cluster holds 30 fragments
	refs := newRefs([]uint64{0, 0}, []uint64{2, 3}, []float64{1, 29})
	c := New(7, members(2), math.Log(30), 30)
	_, err := Project(c, refs)
	require.ErrorIs(t, err, ErrInfeasibleProjection)
	var ie *InfeasibleProjectionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 7, ie.Cluster)
}

func TestProjectUnknownTranscript(t *testing.T) {
	refs := newRefs([]uint64{0}, []uint64{1}, []float64{1})
	c := New(0, []uint32{0, 4}, 0, 1)
	_, err := Project(c, refs)
	assert.ErrorIs(t, err, ErrUnknownTranscript)
}

func TestProjectToPolytope(t *testing.T) {
	cases := []struct {
		name   string
		shares []float64
		lo, hi []float64
		total  float64
		want   []float64
	}{
		{"already feasible", []float64{3, 7}, []float64{0, 0}, []float64{10, 10}, 10, []float64{3, 7}},
		{"shift mass", []float64{2, 28}, []float64{5, 0}, []float64{10, 20}, 30, []float64{10, 20}},
		{"three members", []float64{1, 9, 20}, []float64{2, 0, 0}, []float64{5, 8, 30}, 30, []float64{2, 8, 20}},
		{"even split", []float64{0, 0}, []float64{0, 0}, []float64{10, 10}, 6, []float64{3, 3}},
		{"tight bounds", []float64{4, 4}, []float64{1, 5}, []float64{1, 5}, 6, []float64{1, 5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			x, err := ProjectToPolytope(c.shares, c.lo, c.hi, c.total)
			require.NoError(t, err)
			require.Len(t, x, len(c.want))
			var s float64
			for i := range x {
				assert.InDelta(t, c.want[i], x[i], 1e-9)
				assert.GreaterOrEqual(t, x[i], c.lo[i])
				assert.LessOrEqual(t, x[i], c.hi[i])
				s += x[i]
			}
			assert.InDelta(t, c.total, s, 1e-9)
		})
	}
}

func TestProjectToPolytopeInfeasible(t *testing.T) {
	_, err := ProjectToPolytope([]float64{1}, []float64{3}, []float64{2}, 2)
	assert.ErrorIs(t, err, ErrInfeasibleProjection)
	_, err = ProjectToPolytope([]float64{1, 1}, []float64{3, 3}, []float64{4, 4}, 5)
	assert.ErrorIs(t, err, ErrInfeasibleProjection)
	_, err = ProjectToPolytope([]float64{1, 1}, []float64{0, 0}, []float64{1, 1}, 5)
	assert.ErrorIs(t, err, ErrInfeasibleProjection)
	_, err = ProjectToPolytope([]float64{1, 1}, []float64{0}, []float64{1, 1}, 1)
	assert.Error(t, err)
}

func TestForest(t *testing.T) {
	refs := newRefs([]uint64{0, 0, 0, 0, 0}, []uint64{0, 0, 0, 0, 0}, []float64{1, 2, 3, 0, 4})
	f := NewForest(len(refs))
	require.NoError(t, f.AddFragment([]uint32{0, 2}))
	require.NoError(t, f.AddFragment([]uint32{4}))
	require.NoError(t, f.AddFragment([]uint32{2}))
	require.NoError(t, f.AddFragment(nil))
	assert.ErrorIs(t, f.AddFragment([]uint32{9}), ErrUnknownTranscript)

	clusters, err := f.Clusters(refs)
	require.NoError(t, err)
	require.Len(t, clusters, 4)
	assert.Equal(t, []uint32{0, 2}, clusters[0].Members)
	assert.Equal(t, uint64(2), clusters[0].NumHits())
	assert.InDelta(t, math.Log(4), clusters[0].LogMass(), 1e-12)
	assert.Equal(t, []uint32{1}, clusters[1].Members)
	assert.Equal(t, uint64(0), clusters[1].NumHits())
	assert.Equal(t, []uint32{3}, clusters[2].Members)
	assert.True(t, logmath.IsZero(clusters[2].LogMass()))
	assert.Equal(t, []uint32{4}, clusters[3].Members)
	for i, c := range clusters {
		assert.Equal(t, i, c.ID)
	}

	_, err = f.Clusters(refs[:2])
	assert.ErrorIs(t, err, ErrUnknownTranscript)
}

func TestProjectAll(t *testing.T) {
	for _, nWorker := range []int{1, 4} {
		refs := newRefs(
			[]uint64{5, 0, 3, 0, 0},
			[]uint64{10, 20, 3, 0, 2},
			[]float64{2, 28, 3, 0, 0},
		)
		clusters := []*Cluster{
			New(0, []uint32{0, 1}, math.Log(30), 30),
			New(1, []uint32{2}, math.Log(3), 3),
			New(2, []uint32{3, 4}, logmath.Log0, 2),
		}
		stats, err := ProjectAll(context.Background(), clusters, refs, nWorker)
		require.NoError(t, err)
		assert.Equal(t, Stats{Clusters: 3, Projected: 1, ZeroMass: 1}, stats)
		assert.InDelta(t, 33, refs.TotalProjected(), 1e-9)
	}
}

func TestProjectAllError(t *testing.T) {
	for _, nWorker := range []int{1, 3} {
		refs := newRefs([]uint64{0, 0}, []uint64{2, 3}, []float64{1, 29})
		clusters := []*Cluster{New(0, members(2), math.Log(30), 30)}
		_, err := ProjectAll(context.Background(), clusters, refs, nWorker)
		assert.ErrorIs(t, err, ErrInfeasibleProjection)
	}
}

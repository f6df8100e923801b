package transcript

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
)

func TestNew(t *testing.T) {
	tr := New(3, "tx3", 1500)
	assert.Equal(t, uint32(3), tr.ID)
	assert.True(t, logmath.IsZero(tr.Mass()))
	assert.InDelta(t, 1500, tr.EffectiveLength(false), 1e-9)
	assert.Equal(t, 1500.0, tr.EffectiveLength(true))
}

func TestCounts(t *testing.T) {
	tr := New(0, "a", 100)
	tr.AddHit(true)
	tr.AddHit(false)
	tr.AddHit(false)
	assert.Equal(t, uint64(1), tr.UniqueCount())
	assert.Equal(t, uint64(3), tr.TotalCount())
	tr.SetCounts(5, 10)
	assert.Equal(t, uint64(5), tr.UniqueCount())
	assert.Equal(t, uint64(10), tr.TotalCount())
}

func TestEffectiveLength(t *testing.T) {
	tr := New(0, "a", 1000)
	tr.SetEffectiveLength(751)
	assert.InDelta(t, math.Log(751), tr.LogEffectiveLength(), 1e-12)
	assert.InDelta(t, 751, tr.EffectiveLength(false), 1e-9)
	assert.Equal(t, 1000.0, tr.EffectiveLength(true))

	tr.SetEffectiveLength(0.2)
	assert.InDelta(t, 1000, tr.EffectiveLength(false), 1e-9)
}

func TestTotalProjected(t *testing.T) {
	ts := Transcripts{New(0, "a", 10), New(1, "b", 10)}
	ts[0].ProjectedCounts = 2.5
	ts[1].ProjectedCounts = 4
	assert.Equal(t, 6.5, ts.TotalProjected())
}

//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package transcript holds the per-transcript quantification state.
package transcript

import (
	"math"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
)

// Transcript is one reference sequence reads are assigned to. Transcripts live in a
// Transcripts arena and are referred to by ID everywhere else.
type Transcript struct {
	ID        uint32
	Name      string
	RefLength int

	// Snapshot of the read counts, refreshed before projection
	UniqueCounts float64
	TotalCounts  float64
	// Output of the projection
	ProjectedCounts float64

	uniqueCount  uint64
	totalCount   uint64
	mass         float64
	logEffLength float64
}

// New returns a transcript with no mass and its reference length as effective length.
func New(id uint32, name string, refLength int) Transcript {
	return Transcript{
		ID:           id,
		Name:         name,
		RefLength:    refLength,
		mass:         logmath.Log0,
		logEffLength: math.Log(float64(refLength)),
	}
}

// AddHit records one fragment aligning to the transcript. unique is true if the fragment aligns nowhere else.
func (t *Transcript) AddHit(unique bool) {
	t.totalCount++
	if unique {
		t.uniqueCount++
	}
}

// SetCounts replaces the fragment counters, for counts computed elsewhere.
func (t *Transcript) SetCounts(unique, total uint64) {
	t.uniqueCount = unique
	t.totalCount = total
}

// UniqueCount returns the number of fragments aligning only to this transcript.
func (t *Transcript) UniqueCount() uint64 { return t.uniqueCount }

// TotalCount returns the number of fragments aligning to this transcript, unique or not.
func (t *Transcript) TotalCount() uint64 { return t.totalCount }

// Mass returns the log mass, logmath.Log0 if none.
func (t *Transcript) Mass() float64 { return t.mass }

func (t *Transcript) SetMass(m float64) { t.mass = m }

// LogEffectiveLength returns the cached log effective length.
func (t *Transcript) LogEffectiveLength() float64 { return t.logEffLength }

// SetEffectiveLength caches l (linear scale). Non-positive values fall back to the reference length.
func (t *Transcript) SetEffectiveLength(l float64) {
	if l < 1 {
		l = float64(t.RefLength)
	}
	t.logEffLength = math.Log(l)
}

// EffectiveLength returns the length used for normalization: the reference length if
// noCorrection is set, the cached effective length otherwise.
func (t *Transcript) EffectiveLength(noCorrection bool) float64 {
	if noCorrection {
		return float64(t.RefLength)
	}
	return math.Exp(t.logEffLength)
}

// Transcripts is the transcript arena. Index i holds the transcript of ID i.
type Transcripts []Transcript

// TotalProjected returns the sum of projected counts.
func (ts Transcripts) TotalProjected() (s float64) {
	for i := range ts {
		s += ts[i].ProjectedCounts
	}
	return
}

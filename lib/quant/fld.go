//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package quant

import (
	"math"

	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

const (
	DefaultMaxFragLength   = 1000
	DefaultFragLengthMean  = 250.
	DefaultFragLengthSD    = 25.
	DefaultFragLengthPrior = 1.
)

// FragLengthDist is a histogram of fragment lengths from 1 to a maximum length, seeded with
// a Gaussian prior.
type FragLengthDist struct {
	counts []float64
	// Observed fragments
	n uint64
}

// NewFragLengthDist returns a distribution whose prior is a Gaussian of the given mean and
// standard deviation holding priorWeight fragments.
func NewFragLengthDist(maxLength int, mean, sd, priorWeight float64) *FragLengthDist {
	if maxLength < 1 {
		maxLength = DefaultMaxFragLength
	}
	d := FragLengthDist{counts: make([]float64, maxLength+1)}
	if priorWeight <= 0 || sd <= 0 {
		return &d
	}
	var total float64
	for l := 1; l <= maxLength; l++ {
		z := (float64(l) - mean) / sd
		d.counts[l] = math.Exp(-z * z / 2)
		total += d.counts[l]
	}
	if total > 0 {
		for l := range d.counts {
			d.counts[l] *= priorWeight / total
		}
	}
	return &d
}

// MaxLength returns the longest length in the histogram.
func (d *FragLengthDist) MaxLength() int { return len(d.counts) - 1 }

// NumObserved returns the number of fragments added.
func (d *FragLengthDist) NumObserved() uint64 { return d.n }

// Add records one fragment. Lengths above the maximum count as the maximum.
func (d *FragLengthDist) Add(length int) {
	if length < 1 {
		return
	}
	d.counts[min(length, d.MaxLength())]++
	d.n++
}

// Mean returns the mean fragment length, 0 if the histogram is empty.
func (d *FragLengthDist) Mean() float64 {
	var s, sl float64
	for l, c := range d.counts {
		s += c
		sl += float64(l) * c
	}
	if s == 0 {
		return 0
	}
	return sl / s
}

// EffectiveLength returns L - E[l | l <= L] + 1, or L when no fragment fits.
func (d *FragLengthDist) EffectiveLength(refLength int) float64 {
	var s, sl float64
	for l := 1; l <= min(refLength, d.MaxLength()); l++ {
		s += d.counts[l]
		sl += float64(l) * d.counts[l]
	}
	return effectiveLength(refLength, s, sl)
}

func effectiveLength(refLength int, s, sl float64) float64 {
	if s <= 0 {
		return float64(refLength)
	}
	eff := float64(refLength) - sl/s + 1
	if eff < 1 {
		return float64(refLength)
	}
	return eff
}

// SetEffectiveLengths caches the effective length of every transcript.
func (d *FragLengthDist) SetEffectiveLengths(refs transcript.Transcripts) {
	// Prefix sums of counts and length-weighted counts
	cs := make([]float64, len(d.counts))
	cls := make([]float64, len(d.counts))
	for l := 1; l < len(d.counts); l++ {
		cs[l] = cs[l-1] + d.counts[l]
		cls[l] = cls[l-1] + float64(l)*d.counts[l]
	}
	for i := range refs {
		l := max(0, min(refs[i].RefLength, d.MaxLength()))
		refs[i].SetEffectiveLength(effectiveLength(refs[i].RefLength, cs[l], cls[l]))
	}
}

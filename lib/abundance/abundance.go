//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package abundance turns projected counts into TPM and FPKM and writes them.
package abundance

import (
	"errors"
	"math"

	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

var (
	ErrNoMappedReads = errors.New("abundance: number of mapped reads must be positive")
	ErrUnknownFormat = errors.New("abundance: unknown output format")
)

const (
	million = 1000000.
)

var logBillion = math.Log(1000000000.)

// Abundance is one output row.
type Abundance struct {
	Name     string
	Length   int
	TPM      float64
	FPKM     float64
	NumReads float64
}

// Normalize computes TPM and FPKM of every transcript from its ProjectedCounts. Lengths
// are the cached effective lengths unless noEffectiveLengthCorrection is set.
func Normalize(refs transcript.Transcripts, numMappedReads float64, noEffectiveLengthCorrection bool) ([]Abundance, error) {
	if numMappedReads <= 0 {
		return nil, ErrNoMappedReads
	}
	logNumFragments := math.Log(numMappedReads)

	// Denominator of transcript fractions
	var tfracDenom float64
	for i := range refs {
		refLength := refs[i].EffectiveLength(noEffectiveLengthCorrection)
		tfracDenom += (refs[i].ProjectedCounts / numMappedReads) / refLength
	}

	abundances := make([]Abundance, len(refs))
	for i := range refs {
		t := &refs[i]
		var logLength float64
		if noEffectiveLengthCorrection {
			logLength = math.Log(float64(t.RefLength))
		} else {
			logLength = t.LogEffectiveLength()
		}
		fpkmFactor := math.Exp(logBillion - logLength - logNumFragments)
		count := t.ProjectedCounts
		var fpkm, tpm float64
		if count > 0 {
			fpkm = fpkmFactor * count
		}
		if tfracDenom > 0 {
			npm := count / numMappedReads
			tfrac := (npm / math.Exp(logLength)) / tfracDenom
			tpm = tfrac * million
		}
		abundances[i] = Abundance{Name: t.Name, Length: t.RefLength, TPM: tpm, FPKM: fpkm, NumReads: count}
	}
	return abundances, nil
}

//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package libformat

import (
	"github.com/grailbio/base/log"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
)

// scoreRule is one row of the compatibility table. Rules are tried in order and the first
// matching rule gives the score.
type scoreRule struct {
	name  string
	match func(observed, expected LibraryFormat) bool
	score func(observed, expected LibraryFormat, incompatPrior float64) float64
}

var scoreRules = []scoreRule{
	{
		// Orphaned end of an expected pair: allowed but down-weighted.
		name: "orphan",
		match: func(observed, expected LibraryFormat) bool {
			return expected.Type == PairedEnd && observed.Type == SingleEnd
		},
		score: func(observed, expected LibraryFormat, incompatPrior float64) float64 {
			switch expected.Strandedness {
			case U, AS, SA:
				return logmath.Log1
			}
			if expected.Strandedness == observed.Strandedness {
				return logmath.LogOrphanProb
			}
			return incompatPrior
		},
	},
	{
		name: "layout-mismatch",
		match: func(observed, expected LibraryFormat) bool {
			return observed.Type != expected.Type || observed.Orientation != expected.Orientation
		},
		score: func(observed, expected LibraryFormat, incompatPrior float64) float64 {
			return incompatPrior
		},
	},
	{
		name: "layout-match",
		match: func(observed, expected LibraryFormat) bool {
			return observed.Type == expected.Type && observed.Orientation == expected.Orientation
		},
		score: func(observed, expected LibraryFormat, incompatPrior float64) float64 {
			if expected.Strandedness == U {
				return logmath.LogOneHalf
			}
			if expected.Strandedness == observed.Strandedness {
				return logmath.Log1
			}
			return incompatPrior
		},
	},
}

// LogAlignFormatProb returns the log probability of observing format observed in a library
// of format expected. Mismatches score incompatPrior.
func LogAlignFormatProb(observed, expected LibraryFormat, incompatPrior float64) float64 {
	for _, r := range scoreRules {
		if r.match(observed, expected) {
			return r.score(observed, expected, incompatPrior)
		}
	}
	log.Error.Printf("%v: observed %v expected %v", ErrUnscorableFormat, observed, expected)
	return logmath.Log0
}

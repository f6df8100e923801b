//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package feature

import (
	"github.com/biogo/hts/sam"
	"github.com/biogo/store/interval"

	"git.sr.ht/~vejnar/QuantAbacus/lib/esam"
)

// Trees indexes feature exons by chromosome.
type Trees map[string]*interval.IntTree

// FeatureOverlap is the number of aligned bases of a fragment on a feature, and which
// reads of the fragment overlap it.
type FeatureOverlap struct {
	Length int
	Read   []bool
}

// BuildFeatTrees builds a tree of features: each interval (i.e. exon) of each feature is added to the tree.
// Both strands share a tree as library strand is scored later.
func BuildFeatTrees(features []Feature) (trees Trees, err error) {
	trees = make(Trees)
	icoord := 0
	for _, feat := range features {
		for _, coord := range feat.Coords {
			// New tree for unseen chromosome
			if _, ok := trees[feat.Chrom]; !ok {
				trees[feat.Chrom] = &interval.IntTree{}
			}
			// Creating new interval
			iv := IntInterval{Start: coord[0], End: coord[1], UID: uintptr(icoord), FeatureID: feat.ID}
			// Inserting interval
			err = trees[feat.Chrom].Insert(iv, true)
			if err != nil {
				return
			}
			icoord++
		}
	}
	for _, tree := range trees {
		tree.AdjustRanges()
	}
	return
}

// OverlapFeatureRead returns, for each feature overlapped by at least one read, the aligned length on its exons.
func OverlapFeatureRead(areads []*sam.Record, trees Trees) map[uint32]FeatureOverlap {
	featuresOverlap := make(map[uint32]FeatureOverlap)
	for i, aread := range areads {
		tree, ok := trees[aread.Ref.Name()]
		if !ok {
			continue
		}
		query := IntInterval{Start: aread.Start(), End: aread.End()}
		for _, iv := range tree.Get(query) {
			exon := iv.(IntInterval)
			fo, ok := featuresOverlap[exon.FeatureID]
			if !ok {
				fo = FeatureOverlap{Read: make([]bool, len(areads))}
			}
			fo.Length += esam.Overlap(aread, exon.Start, exon.End)
			fo.Read[i] = true
			featuresOverlap[exon.FeatureID] = fo
		}
	}
	return featuresOverlap
}

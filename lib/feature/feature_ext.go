//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package feature

import (
	"fmt"

	"git.sr.ht/~vejnar/QuantAbacus/lib/cmapper"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

// FeatureExt is a feature with its genome to transcript coordinate mapper.
type FeatureExt struct {
	*Feature
	CoordMapper *cmapper.CoordMapper
}

// ExtendFeatures builds the coordinate mapper of each feature. Feature IDs must match their index.
func ExtendFeatures(features []Feature) ([]*FeatureExt, error) {
	featureExts := make([]*FeatureExt, len(features))
	for ifeat := 0; ifeat < len(features); ifeat++ {
		fe := FeatureExt{Feature: &features[ifeat]}
		if fe.ID != uint32(ifeat) {
			return featureExts, fmt.Errorf("Wrong feature ID %d for %s at position %d", fe.ID, fe.Name, ifeat)
		}
		fe.CoordMapper = &cmapper.CoordMapper{CoordsGenome: fe.Coords, Strand: fe.Sense()}
		fe.CoordMapper.Init()
		featureExts[ifeat] = &fe
	}
	return featureExts, nil
}

// NewTranscripts returns the transcript arena of the features, in feature order.
func NewTranscripts(featureExts []*FeatureExt) transcript.Transcripts {
	refs := make(transcript.Transcripts, len(featureExts))
	for i, fe := range featureExts {
		refs[i] = transcript.New(fe.ID, fe.Name, fe.CoordMapper.Length)
	}
	return refs
}

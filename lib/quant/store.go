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

	"git.sr.ht/~vejnar/QuantAbacus/lib/cluster"
	"git.sr.ht/~vejnar/QuantAbacus/lib/libformat"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

// Store collects fragments: transcript counts, clusters, fragment lengths and the hits kept for EM.
// A Store is not safe for concurrent use.
type Store struct {
	refs      transcript.Transcripts
	forest    *cluster.Forest
	fld       *FragLengthDist
	fragments [][]Hit

	NumFragments  uint64
	NumAssigned   uint64
	NumUnassigned uint64
	Unclassified  uint64
	Statuses      [3]uint64
	Formats       map[libformat.LibraryFormat]uint64
}

func NewStore(refs transcript.Transcripts, fld *FragLengthDist) *Store {
	return &Store{
		refs:    refs,
		forest:  cluster.NewForest(len(refs)),
		fld:     fld,
		Formats: make(map[libformat.LibraryFormat]uint64),
	}
}

// Add records one fragment. Hit weights are normalized to the best hit of the fragment.
func (s *Store) Add(frag Fragment) error {
	s.NumFragments++
	s.Unclassified += uint64(frag.Unclassified)
	for i, n := range frag.Statuses {
		s.Statuses[i] += uint64(n)
	}
	if len(frag.Hits) == 0 {
		s.NumUnassigned++
		return nil
	}
	ids := make([]uint32, len(frag.Hits))
	maxLogProb := frag.Hits[0].LogProb
	for i, h := range frag.Hits {
		ids[i] = h.Transcript
		maxLogProb = max(maxLogProb, h.LogProb)
	}
	if err := s.forest.AddFragment(ids); err != nil {
		return err
	}
	s.NumAssigned++
	hits := make([]Hit, len(frag.Hits))
	for i, h := range frag.Hits {
		s.refs[h.Transcript].AddHit(len(frag.Hits) == 1)
		s.Formats[h.Format]++
		h.weight = math.Exp(h.LogProb - maxLogProb)
		hits[i] = h
	}
	if l := frag.Length(); l > 0 && s.fld != nil {
		s.fld.Add(l)
	}
	s.fragments = append(s.fragments, hits)
	return nil
}

// Fragments returns the hits of every assigned fragment.
func (s *Store) Fragments() [][]Hit { return s.fragments }

// Clusters returns the transcript clusters, with masses taken from refs at call time.
func (s *Store) Clusters() ([]*cluster.Cluster, error) {
	return s.forest.Clusters(s.refs)
}

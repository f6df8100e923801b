//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package quant assembles fragments from alignments and estimates transcript abundances with EM.
package quant

import (
	"errors"
	"fmt"
	"sort"

	"github.com/biogo/hts/sam"

	"git.sr.ht/~vejnar/QuantAbacus/lib/feature"
	"git.sr.ht/~vejnar/QuantAbacus/lib/libformat"
	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
)

// Options select and score alignments.
type Options struct {
	Paired            bool
	Expected          libformat.LibraryFormat
	IncompatPrior     float64
	MinOverlap        int
	MinMappingQuality byte
}

// Hit is the best alignment of a fragment to one transcript.
type Hit struct {
	Transcript uint32
	LogProb    float64
	Format     libformat.LibraryFormat
	// Fragment length on the transcript, 0 if only one end aligned
	Length int

	weight float64
}

// Fragment gathers the hits of all alignments sharing a read name.
type Fragment struct {
	Name string
	Hits []Hit
	// Alignments by OrphanStatus (paired mode only)
	Statuses [3]int
	// Alignments dropped by the orientation classifier
	Unclassified int
}

// Length returns the fragment length if the fragment has a single paired hit, 0 otherwise.
func (f *Fragment) Length() int {
	if len(f.Hits) == 1 {
		return f.Hits[0].Length
	}
	return 0
}

type unit struct {
	reads  []*sam.Record
	status libformat.OrphanStatus
}

// Builder turns groups of SAM records into fragments. A Builder is safe for concurrent use.
type Builder struct {
	trees    feature.Trees
	features []*feature.FeatureExt
	opts     Options
}

func NewBuilder(trees feature.Trees, features []*feature.FeatureExt, opts Options) *Builder {
	return &Builder{trees: trees, features: features, opts: opts}
}

func (b *Builder) keep(r *sam.Record) bool {
	if r.Flags&(sam.Unmapped|sam.Supplementary) != 0 {
		return false
	}
	return r.MapQ >= b.opts.MinMappingQuality
}

func matePair(r1, r2 *sam.Record) bool {
	return r1.MateRef != nil && r2.MateRef != nil &&
		r1.MateRef.Name() == r2.Ref.Name() && r1.MatePos == r2.Pos &&
		r2.MateRef.Name() == r1.Ref.Name() && r2.MatePos == r1.Pos
}

// units splits records into single reads or pairs of reads.
func (b *Builder) units(records []*sam.Record) (units []unit) {
	if !b.opts.Paired {
		for _, r := range records {
			if b.keep(r) {
				units = append(units, unit{reads: []*sam.Record{r}})
			}
		}
		return
	}
	var reads1, reads2 []*sam.Record
	for _, r := range records {
		if !b.keep(r) {
			continue
		}
		if r.Flags&sam.Read2 != 0 {
			reads2 = append(reads2, r)
		} else {
			reads1 = append(reads1, r)
		}
	}
	used := make([]bool, len(reads2))
	for _, r1 := range reads1 {
		mate := -1
		for j, r2 := range reads2 {
			if !used[j] && matePair(r1, r2) {
				mate = j
				break
			}
		}
		if mate == -1 {
			units = append(units, unit{reads: []*sam.Record{r1}, status: libformat.LeftOrphan})
		} else {
			used[mate] = true
			units = append(units, unit{reads: []*sam.Record{r1, reads2[mate]}, status: libformat.Paired})
		}
	}
	for j, r2 := range reads2 {
		if !used[j] {
			units = append(units, unit{reads: []*sam.Record{r2}, status: libformat.RightOrphan})
		}
	}
	return
}

// classify returns the observed format and length of u on fe. ok is false if a read has no base in fe's exons.
func classify(u unit, fe *feature.FeatureExt) (format libformat.LibraryFormat, length int, ok bool, err error) {
	starts := make([]int, len(u.reads))
	ends := make([]int, len(u.reads))
	fwds := make([]bool, len(u.reads))
	for i, r := range u.reads {
		starts[i], ends[i], ok = fe.CoordMapper.Interval(r.Start(), r.End())
		if !ok {
			return
		}
		fwds[i] = r.Strand() == fe.Sense()
	}
	if len(u.reads) == 1 {
		return libformat.HitTypeSingle(starts[0], fwds[0]), 0, true, nil
	}
	format, err = libformat.HitType(starts[0], fwds[0], starts[1], fwds[1])
	length = max(ends[0], ends[1]) - min(starts[0], starts[1])
	return
}

// Build returns the fragment made of records, all sharing one read name.
func (b *Builder) Build(records []*sam.Record) (Fragment, error) {
	var frag Fragment
	if len(records) == 0 {
		return frag, nil
	}
	frag.Name = records[0].Name
	best := make(map[uint32]Hit)
	for _, u := range b.units(records) {
		if b.opts.Paired {
			frag.Statuses[u.status]++
		}
		for id, fo := range feature.OverlapFeatureRead(u.reads, b.trees) {
			if fo.Length < b.opts.MinOverlap {
				continue
			}
			if int(id) >= len(b.features) {
				return frag, fmt.Errorf("quant: unknown feature %d for read %s", id, frag.Name)
			}
			format, length, ok, err := classify(u, b.features[id])
			if errors.Is(err, libformat.ErrUnclassifiableFragment) {
				frag.Unclassified++
				continue
			} else if err != nil {
				return frag, err
			} else if !ok {
				continue
			}
			logProb := libformat.LogAlignFormatProb(format, b.opts.Expected, b.opts.IncompatPrior)
			if logmath.IsZero(logProb) {
				continue
			}
			if h, found := best[id]; !found || logProb > h.LogProb {
				best[id] = Hit{Transcript: id, LogProb: logProb, Format: format, Length: length}
			}
		}
	}
	for _, h := range best {
		frag.Hits = append(frag.Hits, h)
	}
	sort.Slice(frag.Hits, func(i, j int) bool { return frag.Hits[i].Transcript < frag.Hits[j].Transcript })
	return frag, nil
}

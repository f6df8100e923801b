//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package feature

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/gff"
	"github.com/biogo/biogo/seq"
)

// OpenGTF reads the lines of type featureType (usually "exon") of a GTF file and groups them
// into one Feature per value of the idAttribute attribute (usually "transcript_id"). Features
// are numbered in order of first appearance.
func OpenGTF(gpath, featureType, idAttribute string) (features []Feature, err error) {
	gfos, err := os.Open(gpath)
	if err != nil {
		return
	}
	defer gfos.Close()

	byName := make(map[string]int)
	sc := featio.NewScanner(gff.NewReader(gfos))
	for sc.Next() {
		gf, ok := sc.Feat().(*gff.Feature)
		if !ok || gf.Feature != featureType {
			continue
		}
		name := strings.Trim(gf.FeatAttributes.Get(idAttribute), "\" ")
		if name == "" {
			return nil, fmt.Errorf("%w: %s line without %s attribute on %s:%d", ErrFormat, featureType, idAttribute, gf.SeqName, gf.FeatStart+1)
		}
		var strand int8
		switch gf.FeatStrand {
		case seq.Plus:
			strand = 1
		case seq.Minus:
			strand = -1
		}
		i, ok := byName[name]
		if !ok {
			i = len(features)
			byName[name] = i
			features = append(features, Feature{ID: uint32(i), Name: name, Chrom: gf.SeqName, Strand: strand})
		} else if features[i].Chrom != gf.SeqName || features[i].Strand != strand {
			return nil, fmt.Errorf("%w: %s spans several chromosomes or strands", ErrFormat, name)
		}
		features[i].Coords = append(features[i].Coords, []int{gf.FeatStart, gf.FeatEnd})
	}
	if err = sc.Error(); err != nil {
		return nil, err
	}
	for _, f := range features {
		sort.Slice(f.Coords, func(a, b int) bool { return f.Coords[a][0] < f.Coords[b][0] })
	}
	return
}

//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package feature

import (
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// OpenFASTA reads transcript sequences and returns one Feature per record, named after the
// record ID and covering the whole sequence on the + strand.
func OpenFASTA(fpath string) (features []Feature, err error) {
	seq.ValidateSeq = false
	reader, err := fastx.NewDefaultReader(fpath)
	if err != nil {
		return
	}
	defer reader.Close()

	var i uint32
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		name := string(rec.ID)
		features = append(features, Feature{ID: i, Name: name, Chrom: name, Strand: 1, Coords: [][]int{{0, len(rec.Seq.Seq)}}})
		i++
	}
	return features, nil
}

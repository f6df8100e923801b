//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package esam

import (
	"io"

	"github.com/biogo/hts/sam"
)

// Grouper reads consecutive records sharing a read name, as written by aligners or after
// collating by name.
type Grouper struct {
	rr   sam.RecordReader
	next *sam.Record
	eof  bool
}

func NewGrouper(rr sam.RecordReader) *Grouper {
	return &Grouper{rr: rr}
}

// Next returns the records of the next read name, or io.EOF when the input is exhausted.
func (g *Grouper) Next() ([]*sam.Record, error) {
	if g.next == nil {
		if g.eof {
			return nil, io.EOF
		}
		r, err := g.rr.Read()
		if err == io.EOF {
			g.eof = true
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}
		g.next = r
	}
	group := []*sam.Record{g.next}
	g.next = nil
	for {
		r, err := g.rr.Read()
		if err == io.EOF {
			g.eof = true
			return group, nil
		} else if err != nil {
			return nil, err
		}
		if r.Name != group[0].Name {
			g.next = r
			return group, nil
		}
		group = append(group, r)
	}
}

//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package feature

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var ErrFormat = errors.New("feature: malformed feature file")

// Feature is an annotated transcript: its exons on a reference (chromosome, or the
// transcript itself for transcriptome alignments).
type Feature struct {
	ID     uint32
	Name   string
	Chrom  string
	Strand int8
	Coords [][]int
}

// Length returns the length of feature
func (feat Feature) Length() int {
	return IntervalsLength(feat.Coords)
}

// Sense returns the feature strand, unknown strands counting as +1.
func (feat Feature) Sense() int8 {
	if feat.Strand == -1 {
		return -1
	}
	return 1
}

// ParseStrand reads a strand given as +, +1, 1, - or -1. Anything else is 0 (unknown).
func ParseStrand(strand string) int8 {
	switch strand {
	case "+", "1", "+1":
		return 1
	case "-", "-1":
		return -1
	}
	return 0
}

// OpenFON parses a "Feature Object Notation" string and returns a list of Feature
func OpenFON(jpath, fonName, fonChrom, fonStrand, fonCoords string) (features []Feature, err error) {
	jfos, err := os.Open(jpath)
	if err != nil {
		return
	}
	defer jfos.Close()

	d := json.NewDecoder(jfos)
	d.UseNumber()
	var fon struct {
		Version  json.Number              `json:"fon_version"`
		Features []map[string]interface{} `json:"features"`
	}
	if err = d.Decode(&fon); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON %s: %v", ErrFormat, jpath, err)
	}

	// FON version
	if version, err := fon.Version.Int64(); err != nil {
		return nil, fmt.Errorf("%w: FON version in %s", ErrFormat, jpath)
	} else if version != 1 {
		return nil, fmt.Errorf("%w: unknown FON version %d", ErrFormat, version)
	}

	// Get features
	for i, mf := range fon.Features {
		name, okName := mf[fonName].(string)
		chrom, okChrom := mf[fonChrom].(string)
		rawCoords, okCoords := mf[fonCoords].([]interface{})
		if !okName || !okChrom || !okCoords {
			return nil, fmt.Errorf("%w: feature %d in %s misses %s, %s or %s", ErrFormat, i, jpath, fonName, fonChrom, fonCoords)
		}
		strand, _ := mf[fonStrand].(string)
		f := Feature{ID: uint32(i), Name: name, Chrom: chrom, Strand: ParseStrand(strand)}
		// Add coordinates
		f.Coords = make([][]int, len(rawCoords))
		for j, cj := range rawCoords {
			pair, ok := cj.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: coordinates of %s", ErrFormat, name)
			}
			f.Coords[j] = make([]int, 2)
			for k, ck := range pair {
				num, _ := ck.(json.Number)
				n, err := num.Int64()
				if err != nil {
					return nil, fmt.Errorf("%w: coordinates of %s: %v", ErrFormat, name, err)
				}
				f.Coords[j][k] = int(n)
			}
		}
		features = append(features, f)
	}
	return
}

// OpenTAB parses a tabulated file with name and length of transcripts (extra columns are
// ignored) and returns a list of Feature. Each feature is its own reference.
func OpenTAB(tpath string, strand int8) (features []Feature, err error) {
	tfos, err := os.Open(tpath)
	if err != nil {
		return
	}
	defer tfos.Close()

	var i uint32
	var length int
	tscanner := bufio.NewScanner(tfos)
	for tscanner.Scan() {
		line := tscanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: expected name and length in %q", ErrFormat, line)
		}
		length, err = strconv.Atoi(fields[1])
		if err != nil {
			return
		}
		f := Feature{ID: i, Name: fields[0], Chrom: fields[0], Strand: strand, Coords: [][]int{{0, length}}}
		features = append(features, f)
		i++
	}
	if err = tscanner.Err(); err != nil {
		return
	}
	return
}

// IntervalsLength returns the length covered by all intervals (0-based [start,end))
func IntervalsLength(intervals [][]int) (length int) {
	for _, iv := range intervals {
		length += iv[1] - iv[0]
	}
	return
}

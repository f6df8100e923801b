//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package libformat describes sequencing library layouts and how well an observed alignment fits one.
package libformat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFormat          = errors.New("libformat: single-end format must have no orientation")
	ErrUnknownLibType         = errors.New("libformat: unknown library type")
	ErrUnclassifiableFragment = errors.New("libformat: could not associate any known library type with read")
	ErrUnscorableFormat       = errors.New("libformat: no scoring rule matches formats")
)

// ReadType tells whether a fragment was sequenced from one or both ends.
type ReadType uint8

const (
	SingleEnd ReadType = iota
	PairedEnd
)

// ReadOrientation is the relative orientation of the two ends of a pair.
type ReadOrientation uint8

const (
	// Same is both ends on the same strand (M).
	Same ReadOrientation = iota
	// Away is ends pointing away from each other (O).
	Away
	// Toward is ends pointing toward each other (I).
	Toward
	// None is the orientation of single-end reads.
	None
)

// ReadStrandedness is the strand of the read(s) relative to the transcript.
type ReadStrandedness uint8

const (
	// SA is read 1 sense, read 2 antisense.
	SA ReadStrandedness = iota
	// AS is read 1 antisense, read 2 sense.
	AS
	// S is sense.
	S
	// A is antisense.
	A
	// U is unstranded.
	U
)

// LibraryFormat is the layout of a fragment: paired or not, relative orientation of the ends, and strand.
type LibraryFormat struct {
	Type         ReadType
	Orientation  ReadOrientation
	Strandedness ReadStrandedness
}

// New returns a LibraryFormat, checking that single-end formats carry no orientation.
func New(t ReadType, o ReadOrientation, s ReadStrandedness) (LibraryFormat, error) {
	if (t == SingleEnd) != (o == None) {
		return LibraryFormat{}, ErrInvalidFormat
	}
	return LibraryFormat{Type: t, Orientation: o, Strandedness: s}, nil
}

// String returns the library type code (ISF, IU, MSR, SF, U...).
func (f LibraryFormat) String() string {
	var b strings.Builder
	if f.Type == SingleEnd {
		switch f.Strandedness {
		case S:
			return "SF"
		case A:
			return "SR"
		case U:
			return "U"
		}
		return fmt.Sprintf("SE?%d", f.Strandedness)
	}
	switch f.Orientation {
	case Toward:
		b.WriteByte('I')
	case Away:
		b.WriteByte('O')
	case Same:
		b.WriteByte('M')
	default:
		b.WriteByte('?')
	}
	switch f.Strandedness {
	case SA, S:
		b.WriteString("SF")
	case AS, A:
		b.WriteString("SR")
	case U:
		b.WriteByte('U')
	}
	return b.String()
}

// Parse reads a library type code. Paired codes are an orientation (I, O, M) followed by U or
// S plus a strand (F, R); single-end codes are U, SF and SR.
func Parse(code string) (LibraryFormat, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch code {
	case "U":
		return LibraryFormat{SingleEnd, None, U}, nil
	case "SF":
		return LibraryFormat{SingleEnd, None, S}, nil
	case "SR":
		return LibraryFormat{SingleEnd, None, A}, nil
	}
	if len(code) < 2 {
		return LibraryFormat{}, fmt.Errorf("%w: %q", ErrUnknownLibType, code)
	}
	f := LibraryFormat{Type: PairedEnd}
	switch code[0] {
	case 'I':
		f.Orientation = Toward
	case 'O':
		f.Orientation = Away
	case 'M':
		f.Orientation = Same
	default:
		return LibraryFormat{}, fmt.Errorf("%w: %q", ErrUnknownLibType, code)
	}
	switch code[1:] {
	case "U":
		f.Strandedness = U
	case "SF":
		if f.Orientation == Same {
			f.Strandedness = S
		} else {
			f.Strandedness = SA
		}
	case "SR":
		if f.Orientation == Same {
			f.Strandedness = A
		} else {
			f.Strandedness = AS
		}
	default:
		return LibraryFormat{}, fmt.Errorf("%w: %q", ErrUnknownLibType, code)
	}
	return f, nil
}

// OrphanStatus tells which end(s) of a fragment aligned.
type OrphanStatus uint8

const (
	LeftOrphan OrphanStatus = iota
	RightOrphan
	Paired
)

func (s OrphanStatus) String() string {
	switch s {
	case LeftOrphan:
		return "left orphan"
	case RightOrphan:
		return "right orphan"
	case Paired:
		return "paired"
	}
	return "unknown"
}

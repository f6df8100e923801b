//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package libformat

// HitType returns the format observed for a pair from the leftmost position and strand of each end.
func HitType(end1Start int, end1Fwd bool, end2Start int, end2Fwd bool) (LibraryFormat, error) {
	// Opposite strands
	if end1Fwd != end2Fwd {
		// Read 1 forward: ISF if it starts first, OSF otherwise
		if end1Fwd {
			if end1Start <= end2Start {
				return LibraryFormat{PairedEnd, Toward, SA}, nil
			}
			return LibraryFormat{PairedEnd, Away, SA}, nil
		}
		// Read 2 forward: ISR if it starts first, OSR otherwise
		if end2Fwd {
			if end2Start <= end1Start {
				return LibraryFormat{PairedEnd, Toward, AS}, nil
			}
			return LibraryFormat{PairedEnd, Away, AS}, nil
		}
	} else {
		// Same strand: MSF or MSR
		if end1Fwd {
			return LibraryFormat{PairedEnd, Same, S}, nil
		}
		return LibraryFormat{PairedEnd, Same, A}, nil
	}
	return LibraryFormat{PairedEnd, None, U}, ErrUnclassifiableFragment
}

// HitTypeSingle returns the format observed for a single aligned end.
func HitTypeSingle(start int, isForward bool) LibraryFormat {
	if isForward {
		return LibraryFormat{SingleEnd, None, S}
	}
	return LibraryFormat{SingleEnd, None, A}
}

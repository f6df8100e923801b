//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package logmath holds the log-space constants and helpers shared by the quantification steps.
package logmath

import "math"

const (
	// Log0 is the log of zero probability. Any value <= Log0 (including -Inf) means "no mass".
	Log0 = -math.MaxFloat64
	// Log1 is the log of probability one.
	Log1 = 0.0
	// LogOneHalf is ln(0.5).
	LogOneHalf = -0.69314718055994530942
	// LogOrphanProb is the log prior of an orphaned end from a paired-end library, ln(0.1).
	LogOrphanProb = -2.30258509299404568
)

// IsZero reports whether x stands for zero mass.
func IsZero(x float64) bool {
	return x <= Log0 || math.IsNaN(x)
}

// Log returns ln(x), or Log0 if x <= 0.
func Log(x float64) float64 {
	if x <= 0 {
		return Log0
	}
	return math.Log(x)
}

// Exp returns e^x with Log0 mapped to exactly 0.
func Exp(x float64) float64 {
	if IsZero(x) {
		return 0
	}
	return math.Exp(x)
}

// Add returns ln(e^x + e^y).
func Add(x, y float64) float64 {
	if IsZero(x) {
		return y
	}
	if IsZero(y) {
		return x
	}
	if x < y {
		x, y = y, x
	}
	return x + math.Log1p(math.Exp(y-x))
}

// Sum returns ln(sum(e^x)) over xs, Log0 for an empty slice.
func Sum(xs []float64) float64 {
	s := float64(Log0)
	for _, x := range xs {
		s = Add(s, x)
	}
	return s
}

//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package quant

import (
	"context"
	"errors"
	"math"

	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

var ErrNoFragments = errors.New("quant: no assigned fragment")

const (
	// Counts at or below are ignored when testing convergence
	minCountConvergence = 0.01
)

type EMOptions struct {
	MaxRounds                   int
	Tolerance                   float64
	NumWorker                   int
	NoEffectiveLengthCorrection bool
}

func DefaultEMOptions() EMOptions {
	return EMOptions{MaxRounds: 1000, Tolerance: 0.01, NumWorker: 1}
}

// EM estimates the number of fragments from each transcript and stores its log as the
// transcript mass. It returns the number of rounds run.
func EM(ctx context.Context, fragments [][]Hit, refs transcript.Transcripts, opts EMOptions) (int, error) {
	if len(fragments) == 0 {
		return 0, ErrNoFragments
	}
	if opts.MaxRounds < 1 {
		opts.MaxRounds = 1
	}
	nWorker := max(1, min(opts.NumWorker, len(fragments)))

	invLengths := make([]float64, len(refs))
	for i := range refs {
		invLengths[i] = 1 / refs[i].EffectiveLength(opts.NoEffectiveLengthCorrection)
	}
	alphas := make([]float64, len(refs))
	for i := range alphas {
		alphas[i] = float64(len(fragments)) / float64(len(refs))
	}

	chunk := (len(fragments) + nWorker - 1) / nWorker
	accs := make([][]float64, nWorker)
	for i := range accs {
		accs[i] = make([]float64, len(refs))
	}

	var round int
	for round = 1; round <= opts.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return round, err
		}
		g, _ := errgroup.WithContext(ctx)
		for w := 0; w < nWorker; w++ {
			acc := accs[w]
			frags := fragments[min(w*chunk, len(fragments)):min((w+1)*chunk, len(fragments))]
			g.Go(func() error {
				clear(acc)
				for _, hits := range frags {
					var denom float64
					for _, h := range hits {
						denom += alphas[h.Transcript] * invLengths[h.Transcript] * h.weight
					}
					if denom <= 0 {
						continue
					}
					for _, h := range hits {
						acc[h.Transcript] += alphas[h.Transcript] * invLengths[h.Transcript] * h.weight / denom
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return round, err
		}

		var maxRelDiff float64
		for i := range alphas {
			var next float64
			for _, acc := range accs {
				next += acc[i]
			}
			if next > minCountConvergence {
				maxRelDiff = max(maxRelDiff, math.Abs(next-alphas[i])/next)
			}
			alphas[i] = next
		}
		if maxRelDiff < opts.Tolerance {
			break
		}
	}
	if round > opts.MaxRounds {
		round = opts.MaxRounds
		log.Printf("EM stopped after %d rounds without converging", round)
	}

	for i := range refs {
		refs[i].SetMass(logmath.Log(alphas[i]))
	}
	return round, nil
}

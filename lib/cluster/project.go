//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

// Stats counts what happened to the clusters of a projection pass.
type Stats struct {
	Clusters  int
	Projected int
	ZeroMass  int
}

func (s Stats) Merge(o Stats) Stats {
	s.Clusters += o.Clusters
	s.Projected += o.Projected
	s.ZeroMass += o.ZeroMass
	return s
}

// Project distributes the cluster's fragment count over its members in proportion to their
// mass and writes it to ProjectedCounts. If a member's share falls outside
// [UniqueCounts, TotalCounts], the shares of a multi-member cluster are projected onto the
// closest feasible point. Members without mass always get 0. projected is true if that happened.
func Project(c *Cluster, refs transcript.Transcripts) (projected bool, err error) {
	for _, id := range c.Members {
		if int(id) >= len(refs) {
			return false, fmt.Errorf("cluster %d: %w: %d", c.ID, ErrUnknownTranscript, id)
		}
		t := &refs[id]
		t.UniqueCounts = float64(t.UniqueCount())
		t.TotalCounts = float64(t.TotalCount())
	}

	if logmath.IsZero(c.logMass) {
		for _, id := range c.Members {
			refs[id].ProjectedCounts = 0
		}
		return false, ErrZeroMassCluster
	}

	logClusterCount := logmath.Log(float64(c.numHits))
	var requiresProjection bool
	for _, id := range c.Members {
		t := &refs[id]
		logTranscriptMass := t.Mass()
		if logmath.IsZero(logTranscriptMass) {
			t.ProjectedCounts = 0
			continue
		}
		logClusterFraction := logTranscriptMass - c.logMass
		if logClusterFraction == 0 {
			// Member holding all the cluster mass
			t.ProjectedCounts = float64(c.numHits)
		} else {
			t.ProjectedCounts = logmath.Exp(logClusterFraction + logClusterCount)
		}
		if t.ProjectedCounts > t.TotalCounts || t.ProjectedCounts < t.UniqueCounts {
			requiresProjection = true
		}
	}

	if c.Size() > 1 && requiresProjection {
		shares := make([]float64, c.Size())
		lo := make([]float64, c.Size())
		hi := make([]float64, c.Size())
		for i, id := range c.Members {
			t := &refs[id]
			shares[i] = t.ProjectedCounts
			if logmath.IsZero(t.Mass()) {
				// Members without mass stay at 0
				if t.UniqueCounts > 0 {
					return false, &InfeasibleProjectionError{Cluster: c.ID, Reason: fmt.Sprintf("transcript %d has no mass but %g unique fragment(s)", id, t.UniqueCounts)}
				}
				continue
			}
			lo[i] = t.UniqueCounts
			hi[i] = t.TotalCounts
		}
		x, err := ProjectToPolytope(shares, lo, hi, float64(c.numHits))
		if err != nil {
			var ie *InfeasibleProjectionError
			if errors.As(err, &ie) {
				ie.Cluster = c.ID
			}
			return false, err
		}
		for i, id := range c.Members {
			refs[id].ProjectedCounts = x[i]
		}
		return true, nil
	}
	return false, nil
}

// ProjectToPolytope returns the point closest (Euclidean) to shares within the box [lo, hi]
// whose coordinates sum to total.
//
// The solution is x_i = clamp(shares_i - lambda, lo_i, hi_i). The sum is a non-increasing
// piecewise linear function of lambda with breakpoints at shares_i - hi_i and shares_i - lo_i,
// so lambda is bracketed by binary search over the sorted breakpoints and then interpolated.
func ProjectToPolytope(shares, lo, hi []float64, total float64) ([]float64, error) {
	n := len(shares)
	if len(lo) != n || len(hi) != n {
		return nil, fmt.Errorf("cluster: %d shares but %d lower and %d upper bounds", n, len(lo), len(hi))
	}
	if n == 0 {
		if total != 0 {
			return nil, &InfeasibleProjectionError{Cluster: -1, Reason: "no member to hold count"}
		}
		return nil, nil
	}
	var sumLo, sumHi float64
	for i := 0; i < n; i++ {
		if lo[i] > hi[i] {
			return nil, &InfeasibleProjectionError{Cluster: -1, Reason: fmt.Sprintf("member %d lower bound %g above upper bound %g", i, lo[i], hi[i])}
		}
		sumLo += lo[i]
		sumHi += hi[i]
	}
	tol := 1e-9 * math.Max(1, math.Abs(total))
	if sumLo > total+tol {
		return nil, &InfeasibleProjectionError{Cluster: -1, Reason: fmt.Sprintf("lower bounds sum to %g above count %g", sumLo, total)}
	}
	if sumHi < total-tol {
		return nil, &InfeasibleProjectionError{Cluster: -1, Reason: fmt.Sprintf("upper bounds sum to %g below count %g", sumHi, total)}
	}

	sum := func(lambda float64) (s float64) {
		for i := 0; i < n; i++ {
			s += clamp(shares[i]-lambda, lo[i], hi[i])
		}
		return
	}
	breaks := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		breaks = append(breaks, shares[i]-hi[i], shares[i]-lo[i])
	}
	sort.Float64s(breaks)

	// First breakpoint where the sum drops to total or below
	k := sort.Search(len(breaks), func(k int) bool { return sum(breaks[k]) <= total })
	var lambda float64
	switch k {
	case 0:
		lambda = breaks[0]
	case len(breaks):
		lambda = breaks[len(breaks)-1]
	default:
		a, b := breaks[k-1], breaks[k]
		fa, fb := sum(a), sum(b)
		if fa == fb {
			lambda = b
		} else {
			lambda = a + (fa-total)/(fa-fb)*(b-a)
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = clamp(shares[i]-lambda, lo[i], hi[i])
	}
	return x, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func projectOne(c *Cluster, refs transcript.Transcripts, s *Stats) error {
	s.Clusters++
	projected, err := Project(c, refs)
	if errors.Is(err, ErrZeroMassCluster) {
		s.ZeroMass++
		if c.numHits > 0 {
			log.Error.Printf("Warning: cluster %d has 0 mass but %d fragment(s)", c.ID, c.numHits)
		} else {
			log.Debug.Printf("Warning: cluster %d has 0 mass", c.ID)
		}
		return nil
	} else if err != nil {
		return err
	}
	if projected {
		s.Projected++
	}
	return nil
}

// ProjectAll projects every cluster. Clusters are disjoint so with nWorker > 1 they are
// spread over workers; otherwise they are processed in order.
func ProjectAll(ctx context.Context, clusters []*Cluster, refs transcript.Transcripts, nWorker int) (Stats, error) {
	var total Stats
	if nWorker <= 1 {
		for _, c := range clusters {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := projectOne(c, refs, &total); err != nil {
				return total, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		chCluster := make(chan *Cluster, nWorker*10)
		g.Go(func() error {
			defer close(chCluster)
			for _, c := range clusters {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case chCluster <- c:
				}
			}
			return nil
		})
		stats := make([]Stats, nWorker)
		for w := 0; w < nWorker; w++ {
			s := &stats[w]
			g.Go(func() error {
				for c := range chCluster {
					if err := projectOne(c, refs, s); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		for _, s := range stats {
			total = total.Merge(s)
		}
	}
	if total.ZeroMass > 0 {
		log.Printf("Warning: %d cluster(s) with 0 mass", total.ZeroMass)
	}
	return total, nil
}

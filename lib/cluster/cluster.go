//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package cluster groups transcripts sharing ambiguous fragments and redistributes each group's mass.
package cluster

import (
	"errors"
	"fmt"

	"git.sr.ht/~vejnar/QuantAbacus/lib/logmath"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

var (
	ErrZeroMassCluster      = errors.New("cluster: cluster has 0 mass")
	ErrInfeasibleProjection = errors.New("cluster: projection bounds are infeasible")
	ErrUnknownTranscript    = errors.New("cluster: transcript ID out of range")
)

// InfeasibleProjectionError reports a cluster whose bounds cannot hold its count.
type InfeasibleProjectionError struct {
	Cluster int
	Reason  string
}

func (e *InfeasibleProjectionError) Error() string {
	return fmt.Sprintf("cluster %d: %v: %s", e.Cluster, ErrInfeasibleProjection, e.Reason)
}

func (e *InfeasibleProjectionError) Unwrap() error { return ErrInfeasibleProjection }

// Cluster is a set of transcripts connected by shared fragments.
type Cluster struct {
	ID      int
	Members []uint32
	logMass float64
	numHits uint64
}

// New returns a cluster over members with aggregate log mass and fragment count.
func New(id int, members []uint32, logMass float64, numHits uint64) *Cluster {
	return &Cluster{ID: id, Members: members, logMass: logMass, numHits: numHits}
}

func (c *Cluster) LogMass() float64 { return c.logMass }
func (c *Cluster) NumHits() uint64  { return c.numHits }
func (c *Cluster) Size() int        { return len(c.Members) }

// Forest discovers clusters with a union-find over transcript IDs.
type Forest struct {
	parent []uint32
	rank   []uint8
	// Fragments counted on the first transcript they hit
	hits []uint64
}

// NewForest returns a forest of n singleton clusters.
func NewForest(n int) *Forest {
	f := Forest{parent: make([]uint32, n), rank: make([]uint8, n), hits: make([]uint64, n)}
	for i := range f.parent {
		f.parent[i] = uint32(i)
	}
	return &f
}

func (f *Forest) find(i uint32) uint32 {
	for f.parent[i] != i {
		f.parent[i] = f.parent[f.parent[i]]
		i = f.parent[i]
	}
	return i
}

func (f *Forest) union(a, b uint32) {
	ra, rb := f.find(a), f.find(b)
	if ra == rb {
		return
	}
	switch {
	case f.rank[ra] < f.rank[rb]:
		f.parent[ra] = rb
	case f.rank[ra] > f.rank[rb]:
		f.parent[rb] = ra
	default:
		f.parent[rb] = ra
		f.rank[ra]++
	}
}

// AddFragment merges the clusters of all transcripts hit by one fragment.
func (f *Forest) AddFragment(ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if int(id) >= len(f.parent) {
			return fmt.Errorf("%w: %d", ErrUnknownTranscript, id)
		}
	}
	for _, id := range ids[1:] {
		f.union(ids[0], id)
	}
	f.hits[ids[0]]++
	return nil
}

// Clusters returns the partition of refs, ordered by smallest member (IDs follow that order). Each cluster's
// log mass is the sum of its members' masses.
func (f *Forest) Clusters(refs transcript.Transcripts) ([]*Cluster, error) {
	if len(refs) != len(f.parent) {
		return nil, fmt.Errorf("%w: forest of %d transcripts, got %d", ErrUnknownTranscript, len(f.parent), len(refs))
	}
	byRoot := make(map[uint32]*Cluster)
	var clusters []*Cluster
	for i := range f.parent {
		root := f.find(uint32(i))
		c, ok := byRoot[root]
		if !ok {
			c = &Cluster{ID: len(clusters), logMass: logmath.Log0}
			byRoot[root] = c
			clusters = append(clusters, c)
		}
		c.Members = append(c.Members, uint32(i))
		c.numHits += f.hits[i]
		c.logMass = logmath.Add(c.logMass, refs[i].Mass())
	}
	return clusters, nil
}

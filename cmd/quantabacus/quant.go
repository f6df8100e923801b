//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"
	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/QuantAbacus/lib/abundance"
	"git.sr.ht/~vejnar/QuantAbacus/lib/cluster"
	"git.sr.ht/~vejnar/QuantAbacus/lib/esam"
	"git.sr.ht/~vejnar/QuantAbacus/lib/feature"
	"git.sr.ht/~vejnar/QuantAbacus/lib/quant"
)

const (
	batchLength = 100
)

// AddCommas adds commas after every 3 characters.
func AddCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return AddCommas(s[0:len(s)-3]) + "," + s[len(s)-3:]
}

// readGroups sends batches of records grouped by read name.
func readGroups(ctx context.Context, pathSAMs []esam.PathSAM, samCmdIn []string, nWorker int, chAln chan<- [][]*sam.Record, timeStart time.Time, verboseLevel int) error {
	defer close(chAln)
	var nGroup uint64
	timeLog := time.Now()
	for _, pathSAM := range pathSAMs {
		if verboseLevel > 0 {
			fmt.Printf("%.1fmin - Opening %s\n", time.Since(timeStart).Minutes(), pathSAM.Path)
		}
		in, err := esam.OpenSAM(pathSAM, samCmdIn, nWorker)
		if err != nil {
			return err
		}
		grouper := esam.NewGrouper(in)
		groups := make([][]*sam.Record, 0, batchLength)
		for {
			group, err := grouper.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				in.Close()
				return err
			}
			groups = append(groups, group)
			if len(groups) == batchLength {
				select {
				case <-ctx.Done():
					in.Close()
					return ctx.Err()
				case chAln <- groups:
				}
				groups = make([][]*sam.Record, 0, batchLength)
			}
			nGroup++

			if verboseLevel > 0 {
				timeNow := time.Now()
				if timeNow.Sub(timeLog).Minutes() > 1. {
					fmt.Printf("%.1fmin - %s fragments - %.2f Mf/hr\n", timeNow.Sub(timeStart).Minutes(), AddCommas(strconv.FormatUint(nGroup, 10)), (float64(nGroup)/timeNow.Sub(timeStart).Hours())/1000000.)
					timeLog = timeNow
				}
			}
		}
		// Send last batch
		if len(groups) > 0 {
			select {
			case <-ctx.Done():
				in.Close()
				return ctx.Err()
			case chAln <- groups:
			}
		}
		if err := in.Close(); err != nil {
			return err
		}
	}
	return nil
}

// buildFragments turns batches of records into fragments with nWorker workers.
func buildFragments(ctx context.Context, builder *quant.Builder, nWorker int, chAln <-chan [][]*sam.Record, chFrag chan<- []quant.Fragment) error {
	defer close(chFrag)
	wg, wgctx := errgroup.WithContext(ctx)
	for i := 0; i < nWorker; i++ {
		wg.Go(func() error {
			for groups := range chAln {
				frags := make([]quant.Fragment, len(groups))
				for j, group := range groups {
					frag, err := builder.Build(group)
					if err != nil {
						return err
					}
					frags[j] = frag
				}
				select {
				case <-wgctx.Done():
					return wgctx.Err()
				case chFrag <- frags:
				}
			}
			return nil
		})
	}
	return wg.Wait()
}

// checkReferences checks that every input aligns to at least one feature chromosome.
func checkReferences(pathSAMs []esam.PathSAM, samCmdIn []string, features []feature.Feature) error {
	chroms := make(map[string]bool)
	for _, feat := range features {
		chroms[feat.Chrom] = true
	}
	for _, pathSAM := range pathSAMs {
		header, err := esam.GetSAMHeader(pathSAM, samCmdIn)
		if err != nil {
			return err
		}
		found := false
		if header != nil {
			for _, ref := range header.Refs() {
				if chroms[ref.Name()] {
					found = true
					break
				}
			}
		}
		if !found {
			return fmt.Errorf("No reference of %s matches a feature chromosome", pathSAM.Path)
		}
	}
	return nil
}

// Quantify reads all alignments, estimates abundances and writes them. It returns the number of fragments read.
func Quantify(pathSAMs []esam.PathSAM, samCmdIn []string, features []feature.Feature, featuresMapping map[string]string, bopts quant.Options, opts *Options, timeStart time.Time) (nFragment uint64, err error) {
	// Workers
	nWorker1 := max(1, opts.NumWorker/2)
	nWorker2 := max(1, opts.NumWorker-nWorker1)

	if err = checkReferences(pathSAMs, samCmdIn, features); err != nil {
		return 0, err
	}

	// Init. extended features and transcripts
	featureExts, err := feature.ExtendFeatures(features)
	if err != nil {
		return 0, err
	}
	trees, err := feature.BuildFeatTrees(features)
	if err != nil {
		return 0, err
	}
	refs := feature.NewTranscripts(featureExts)
	builder := quant.NewBuilder(trees, featureExts, bopts)
	fld := quant.NewFragLengthDist(opts.FragLenMax, opts.FragLenMean, opts.FragLenSD, quant.DefaultFragLengthPrior)
	store := quant.NewStore(refs, fld)
	assigned := set.New(set.ThreadSafe)

	// Init context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	chAln := make(chan [][]*sam.Record, nWorker2*10)
	chFrag := make(chan []quant.Fragment, nWorker2*10)
	g.Go(func() error {
		return readGroups(gctx, pathSAMs, samCmdIn, nWorker1, chAln, timeStart, opts.VerboseLevel)
	})
	g.Go(func() error {
		return buildFragments(gctx, builder, nWorker2, chAln, chFrag)
	})

	// Collect fragments
	var errCollect error
	for frags := range chFrag {
		if errCollect != nil {
			continue
		}
		for _, frag := range frags {
			if errCollect = store.Add(frag); errCollect != nil {
				cancel()
				break
			}
			if len(frag.Hits) > 0 {
				assigned.Add(frag.Name)
			}
		}
	}
	if err = g.Wait(); errCollect != nil {
		return store.NumFragments, errCollect
	} else if err != nil {
		return store.NumFragments, err
	}
	nFragment = store.NumFragments
	if store.NumAssigned == 0 {
		return nFragment, errors.New("No fragment assigned to any feature")
	}
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - %s fragments, %s assigned\n", time.Since(timeStart).Minutes(), AddCommas(strconv.FormatUint(nFragment, 10)), AddCommas(strconv.FormatUint(store.NumAssigned, 10)))
	}

	// Effective lengths
	if !opts.NoEffectiveLengthCorrection {
		fld.SetEffectiveLengths(refs)
		if opts.VerboseLevel > 0 {
			fmt.Printf("%.1fmin - Mean fragment length %.1f (%d observed)\n", time.Since(timeStart).Minutes(), fld.Mean(), fld.NumObserved())
		}
	}

	// EM
	rounds, err := quant.EM(ctx, store.Fragments(), refs, quant.EMOptions{
		MaxRounds:                   opts.EMMaxRounds,
		Tolerance:                   opts.EMTolerance,
		NumWorker:                   opts.NumWorker,
		NoEffectiveLengthCorrection: opts.NoEffectiveLengthCorrection,
	})
	if err != nil {
		return nFragment, err
	}
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - EM done in %d rounds\n", time.Since(timeStart).Minutes(), rounds)
	}

	// Projection
	clusters, err := store.Clusters()
	if err != nil {
		return nFragment, err
	}
	stats, err := cluster.ProjectAll(ctx, clusters, refs, opts.NumWorker)
	if err != nil {
		return nFragment, err
	}
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - %d clusters, %d projected\n", time.Since(timeStart).Minutes(), stats.Clusters, stats.Projected)
	}

	// Normalization
	abundances, err := abundance.Normalize(refs, float64(store.NumAssigned), opts.NoEffectiveLengthCorrection)
	if err != nil {
		return nFragment, err
	}
	if featuresMapping != nil {
		for i := range abundances {
			abundances[i].Name = feature.MapName(abundances[i].Name, featuresMapping)
		}
	}

	// Output: Quantification
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - Writing %s output in %s\n", time.Since(timeStart).Minutes(), opts.QuantFormat, opts.QuantPath)
	}
	if err = abundance.WriteAbundancesFile(opts.QuantPath, opts.QuantFormat, opts.AppendOutput, headerComments(bopts, store), abundances); err != nil {
		return nFragment, err
	}

	// Output: Report
	if opts.PathReport != "" {
		if err = WriteReport(opts.PathReport, NewReport(store, assigned, stats, rounds)); err != nil {
			return nFragment, err
		}
	}
	return nFragment, nil
}

func headerComments(bopts quant.Options, store *quant.Store) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# quantabacus %s\n", version)
	fmt.Fprintf(&b, "# lib_type %s\n", bopts.Expected)
	fmt.Fprintf(&b, "# num_fragments %d\n", store.NumFragments)
	fmt.Fprintf(&b, "# num_assigned %d\n", store.NumAssigned)
	return b.String()
}

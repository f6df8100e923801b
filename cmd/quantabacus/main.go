//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/grailbio/base/log"

	"git.sr.ht/~vejnar/QuantAbacus/lib/esam"
	"git.sr.ht/~vejnar/QuantAbacus/lib/feature"
	"git.sr.ht/~vejnar/QuantAbacus/lib/libformat"
	"git.sr.ht/~vejnar/QuantAbacus/lib/quant"
)

var version = "DEV"

// openFeatures loads the transcript annotations in the requested format.
func openFeatures(opts *Options) (features []feature.Feature, err error) {
	switch strings.ToLower(opts.FormatFeatures) {
	case "fon":
		features, err = feature.OpenFON(opts.PathFeatures, opts.FONName, opts.FONChrom, opts.FONStrand, opts.FONCoords)
	case "tab":
		features, err = feature.OpenTAB(opts.PathFeatures, feature.ParseStrand(opts.FeatureStrand))
	case "gtf":
		features, err = feature.OpenGTF(opts.PathFeatures, opts.GTFFeature, opts.GTFAttribute)
	case "fasta":
		features, err = feature.OpenFASTA(opts.PathFeatures)
	default:
		return nil, fmt.Errorf("unknown feature format %q", opts.FormatFeatures)
	}
	if err == nil && len(features) == 0 {
		err = fmt.Errorf("no feature in %s", opts.PathFeatures)
	}
	return
}

// inputPaths checks and returns the SAM and BAM inputs.
func inputPaths(opts *Options) (pathSAMs []esam.PathSAM, samCmdIn []string, err error) {
	if len(opts.PathSAMs) > 0 {
		for _, p := range strings.Split(opts.PathSAMs, ",") {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("%s not found", p)
			}
			pathSAMs = append(pathSAMs, esam.PathSAM{Path: p, Binary: false})
		}
		if len(opts.SAMCommandIn) > 0 {
			samCmdIn = strings.Split(opts.SAMCommandIn, ",")
		}
	}
	if len(opts.PathBAMs) > 0 {
		for _, p := range strings.Split(opts.PathBAMs, ",") {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("%s not found", p)
			}
			pathSAMs = append(pathSAMs, esam.PathSAM{Path: p, Binary: true})
		}
	}
	if len(pathSAMs) == 0 {
		return nil, nil, errors.New("No SAM/BAM input")
	}
	return
}

// builderOptions converts the library and read selection arguments.
func builderOptions(opts *Options) (quant.Options, error) {
	expected, err := libformat.Parse(opts.LibType)
	if err != nil {
		return quant.Options{}, err
	}
	paired := expected.Type == libformat.PairedEnd
	if opts.Paired && !paired {
		return quant.Options{}, fmt.Errorf("library type %s is single-end but paired is set", expected)
	}
	if opts.MinMappingQuality < 0 || opts.MinMappingQuality > 255 {
		return quant.Options{}, fmt.Errorf("read_min_mapping_quality %d out of range", opts.MinMappingQuality)
	}
	return quant.Options{
		Paired:            paired,
		Expected:          expected,
		IncompatPrior:     opts.IncompatPrior,
		MinOverlap:        opts.MinOverlap,
		MinMappingQuality: byte(opts.MinMappingQuality),
	}, nil
}

func main() {
	// Arguments: Parse
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}

	// Version
	if opts.PrintVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Verbose
	if opts.Verbose && opts.VerboseLevel == 0 {
		opts.VerboseLevel = 1
	}
	if opts.VerboseLevel > 1 {
		log.SetLevel(log.Debug)
	}

	// Max CPU
	runtime.GOMAXPROCS(max(1, opts.NumWorker*2))

	// Time start
	var timeStart time.Time
	if opts.VerboseLevel > 0 {
		timeStart = time.Now()
	}

	// Check arguments
	if len(opts.PathFeatures) == 0 {
		log.Fatal("No Feature input")
	} else if _, err := os.Stat(opts.PathFeatures); os.IsNotExist(err) {
		log.Fatal(opts.PathFeatures, " not found")
	}
	pathSAMs, samCmdIn, err := inputPaths(opts)
	if err != nil {
		log.Fatal(err)
	}
	bopts, err := builderOptions(opts)
	if err != nil {
		log.Fatal(err)
	}
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - Library type %s\n", time.Since(timeStart).Minutes(), bopts.Expected)
	}

	// Open features
	features, err := openFeatures(opts)
	if err != nil {
		log.Fatal(err)
	}

	// Open feature mapping
	var featuresMapping map[string]string
	if opts.PathMapping != "" {
		featuresMapping, err = feature.OpenMapping(opts.PathMapping)
		if err != nil {
			log.Fatal(err)
		}
	}

	// Quantify
	nFragment, err := Quantify(pathSAMs, samCmdIn, features, featuresMapping, bopts, opts, timeStart)
	if err != nil {
		log.Fatal(err)
	}

	// Verbose
	if opts.VerboseLevel > 0 {
		fmt.Printf("%.1fmin - Done %d fragments\n", time.Since(timeStart).Minutes(), nFragment)
	}
}

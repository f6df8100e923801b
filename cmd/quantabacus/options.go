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
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"git.sr.ht/~vejnar/QuantAbacus/lib/quant"
)

// Options holds every command line argument. Keys of the YAML options file are the flag names.
type Options struct {
	Config string `yaml:"-"`
	// General
	PathReport   string `yaml:"path_report"`
	NumWorker    int    `yaml:"num_worker"`
	Verbose      bool   `yaml:"verbose"`
	VerboseLevel int    `yaml:"verbose_level"`
	PrintVersion bool   `yaml:"-"`
	// Input
	PathSAMs       string `yaml:"path_sam"`
	PathBAMs       string `yaml:"path_bam"`
	SAMCommandIn   string `yaml:"sam_command_in"`
	PathFeatures   string `yaml:"path_features"`
	FormatFeatures string `yaml:"format_features"`
	FONName        string `yaml:"fon_name"`
	FONChrom       string `yaml:"fon_chrom"`
	FONStrand      string `yaml:"fon_strand"`
	FONCoords      string `yaml:"fon_coords"`
	GTFFeature     string `yaml:"gtf_feature"`
	GTFAttribute   string `yaml:"gtf_attribute"`
	FeatureStrand  string `yaml:"feature_strand"`
	// Library and read selection
	LibType           string  `yaml:"lib_type"`
	Paired            bool    `yaml:"paired"`
	IncompatPrior     float64 `yaml:"incompat_prior"`
	MinOverlap        int     `yaml:"read_min_overlap"`
	MinMappingQuality int     `yaml:"read_min_mapping_quality"`
	// Fragment length and EM
	FragLenMean                 float64 `yaml:"frag_len_mean"`
	FragLenSD                   float64 `yaml:"frag_len_sd"`
	FragLenMax                  int     `yaml:"frag_len_max"`
	NoEffectiveLengthCorrection bool    `yaml:"no_effective_length_correction"`
	EMMaxRounds                 int     `yaml:"em_max_rounds"`
	EMTolerance                 float64 `yaml:"em_tolerance"`
	// Output
	QuantPath    string `yaml:"quant_path"`
	QuantFormat  string `yaml:"quant_format"`
	AppendOutput bool   `yaml:"append"`
	PathMapping  string `yaml:"path_mapping"`
}

func defaultOptions() *Options {
	em := quant.DefaultEMOptions()
	return &Options{
		NumWorker:      1,
		FormatFeatures: "fon",
		FONName:        "transcript_stable_id",
		FONChrom:       "chrom",
		FONStrand:      "strand",
		FONCoords:      "exons",
		GTFFeature:     "exon",
		GTFAttribute:   "transcript_id",
		FeatureStrand:  "+",
		LibType:        "U",
		IncompatPrior:  math.Log(1e-20),
		MinOverlap:     10,
		FragLenMean:    quant.DefaultFragLengthMean,
		FragLenSD:      quant.DefaultFragLengthSD,
		FragLenMax:     quant.DefaultMaxFragLength,
		EMMaxRounds:    em.MaxRounds,
		EMTolerance:    em.Tolerance,
		QuantPath:      "quant.tsv",
		QuantFormat:    "tsv",
	}
}

func newFlagSet(opts *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("quantabacus", flag.ContinueOnError)
	// Arguments: General
	fs.StringVar(&opts.Config, "config", opts.Config, "Path to YAML options file (flags take precedence)")
	fs.StringVar(&opts.PathReport, "path_report", opts.PathReport, "Write report to path (stdout with -)")
	fs.IntVar(&opts.NumWorker, "num_worker", opts.NumWorker, "Number of worker(s)")
	fs.IntVar(&opts.VerboseLevel, "verbose_level", opts.VerboseLevel, "Verbose level")
	fs.BoolVar(&opts.Verbose, "verbose", opts.Verbose, "Verbose")
	fs.BoolVar(&opts.PrintVersion, "version", opts.PrintVersion, "Print version and quit")
	// Arguments: Input
	fs.StringVar(&opts.PathSAMs, "path_sam", opts.PathSAMs, "Path to SAM file(s) (comma separated)")
	fs.StringVar(&opts.PathBAMs, "path_bam", opts.PathBAMs, "Path to BAM file(s) (comma separated)")
	fs.StringVar(&opts.SAMCommandIn, "sam_command_in", opts.SAMCommandIn, "Command line to execute for opening each of the SAM file (comma separated)")
	fs.StringVar(&opts.PathFeatures, "path_features", opts.PathFeatures, "Path to features file")
	fs.StringVar(&opts.FormatFeatures, "format_features", opts.FormatFeatures, "Format of features: 'fon', 'tab', 'gtf' or 'fasta'")
	fs.StringVar(&opts.FONName, "fon_name", opts.FONName, "FON key for feature name")
	fs.StringVar(&opts.FONChrom, "fon_chrom", opts.FONChrom, "FON key for chromosome or locus")
	fs.StringVar(&opts.FONStrand, "fon_strand", opts.FONStrand, "FON key for strand")
	fs.StringVar(&opts.FONCoords, "fon_coords", opts.FONCoords, "FON key for coordinates (exons for example)")
	fs.StringVar(&opts.GTFFeature, "gtf_feature", opts.GTFFeature, "GTF feature type making transcripts")
	fs.StringVar(&opts.GTFAttribute, "gtf_attribute", opts.GTFAttribute, "GTF attribute naming transcripts")
	fs.StringVar(&opts.FeatureStrand, "feature_strand", opts.FeatureStrand, "Default feature strand (+ (+1) or - (-1))")
	// Arguments: Library and read selection
	fs.StringVar(&opts.LibType, "lib_type", opts.LibType, "Expected library type (ISR, ISF, IU, SR, SF, U...)")
	fs.BoolVar(&opts.Paired, "paired", opts.Paired, "Pair-end sequencing (implied by paired library types)")
	fs.Float64Var(&opts.IncompatPrior, "incompat_prior", opts.IncompatPrior, "Log probability of an alignment incompatible with the library type")
	fs.IntVar(&opts.MinOverlap, "read_min_overlap", opts.MinOverlap, "Minimum total overlap of the read with the feature interval(s)")
	fs.IntVar(&opts.MinMappingQuality, "read_min_mapping_quality", opts.MinMappingQuality, "Minimum read mapping quality")
	// Arguments: Fragment length and EM
	fs.Float64Var(&opts.FragLenMean, "frag_len_mean", opts.FragLenMean, "Mean of the fragment length prior")
	fs.Float64Var(&opts.FragLenSD, "frag_len_sd", opts.FragLenSD, "Standard deviation of the fragment length prior")
	fs.IntVar(&opts.FragLenMax, "frag_len_max", opts.FragLenMax, "Maximum fragment length")
	fs.BoolVar(&opts.NoEffectiveLengthCorrection, "no_effective_length_correction", opts.NoEffectiveLengthCorrection, "Use transcript lengths instead of effective lengths")
	fs.IntVar(&opts.EMMaxRounds, "em_max_rounds", opts.EMMaxRounds, "Maximum number of EM rounds")
	fs.Float64Var(&opts.EMTolerance, "em_tolerance", opts.EMTolerance, "EM convergence tolerance (maximum relative change)")
	// Arguments: Output
	fs.StringVar(&opts.QuantPath, "quant_path", opts.QuantPath, "Path to quantification output (stdout with -)")
	fs.StringVar(&opts.QuantFormat, "quant_format", opts.QuantFormat, "Quantification output format: 'tsv', 'tsv+lz4', 'tsv+lz4hc', 'tsv+zst' or 'tsv+gz'")
	fs.BoolVar(&opts.AppendOutput, "append", opts.AppendOutput, "Append to quantification output (default create)")
	fs.StringVar(&opts.PathMapping, "path_mapping", opts.PathMapping, "Path to feature name(s) mapping (tabulated file)")
	return fs
}

// parseOptions parses args over the defaults, then the YAML options file if any, then args again.
func parseOptions(args []string) (*Options, error) {
	opts := defaultOptions()
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Config == "" {
		return opts, nil
	}
	f, err := os.Open(opts.Config)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("options file %s: %w", opts.Config, err)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

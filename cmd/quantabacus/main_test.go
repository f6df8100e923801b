package main

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/QuantAbacus/lib/abundance"
	"git.sr.ht/~vejnar/QuantAbacus/lib/cluster"
	"git.sr.ht/~vejnar/QuantAbacus/lib/esam"
	"git.sr.ht/~vejnar/QuantAbacus/lib/feature"
	"git.sr.ht/~vejnar/QuantAbacus/lib/libformat"
	"git.sr.ht/~vejnar/QuantAbacus/lib/quant"
	"git.sr.ht/~vejnar/QuantAbacus/lib/transcript"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0666))
	return p
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions([]string{"-path_features", "tx.fon"})
	require.NoError(t, err)
	assert.Equal(t, "tx.fon", opts.PathFeatures)
	assert.Equal(t, "U", opts.LibType)
	assert.Equal(t, 10, opts.MinOverlap)
	assert.Equal(t, math.Log(1e-20), opts.IncompatPrior)
	assert.Equal(t, 1000, opts.EMMaxRounds)
	assert.Equal(t, quant.DefaultMaxFragLength, opts.FragLenMax)
}

func TestParseOptionsConfig(t *testing.T) {
	config := writeFile(t, "options.yaml", `
path_features: from_config.tsv
format_features: tab
lib_type: ISR
paired: true
num_worker: 4
em_tolerance: 0.001
`)
	opts, err := parseOptions([]string{"-config", config, "-num_worker", "2"})
	require.NoError(t, err)
	assert.Equal(t, "from_config.tsv", opts.PathFeatures)
	assert.Equal(t, "tab", opts.FormatFeatures)
	assert.Equal(t, "ISR", opts.LibType)
	assert.True(t, opts.Paired)
	assert.Equal(t, 0.001, opts.EMTolerance)
	// Flags win over the options file
	assert.Equal(t, 2, opts.NumWorker)
	// Untouched defaults
	assert.Equal(t, "transcript_stable_id", opts.FONName)

	empty := writeFile(t, "empty.yaml", "")
	_, err = parseOptions([]string{"-config", empty})
	assert.NoError(t, err)

	typo := writeFile(t, "typo.yaml", "num_workers: 3\n")
	_, err = parseOptions([]string{"-config", typo})
	assert.Error(t, err)

	_, err = parseOptions([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestBuilderOptions(t *testing.T) {
	bopts, err := builderOptions(defaultOptions())
	require.NoError(t, err)
	assert.False(t, bopts.Paired)
	assert.Equal(t, libformat.LibraryFormat{Type: libformat.SingleEnd, Orientation: libformat.None, Strandedness: libformat.U}, bopts.Expected)

	opts := defaultOptions()
	opts.LibType = "ISR"
	opts.MinMappingQuality = 30
	bopts, err = builderOptions(opts)
	require.NoError(t, err)
	assert.True(t, bopts.Paired)
	assert.Equal(t, libformat.LibraryFormat{Type: libformat.PairedEnd, Orientation: libformat.Toward, Strandedness: libformat.AS}, bopts.Expected)
	assert.Equal(t, byte(30), bopts.MinMappingQuality)

	opts.Paired = true
	_, err = builderOptions(opts)
	assert.NoError(t, err)

	opts.LibType = "SR"
	_, err = builderOptions(opts)
	assert.Error(t, err)

	opts.LibType = "XYZ"
	_, err = builderOptions(opts)
	assert.ErrorIs(t, err, libformat.ErrUnknownLibType)
}

func TestAddCommas(t *testing.T) {
	assert.Equal(t, "12", AddCommas("12"))
	assert.Equal(t, "1,234,567", AddCommas("1234567"))
}

func TestWriteReport(t *testing.T) {
	refs := transcript.Transcripts{transcript.New(0, "a", 100), transcript.New(1, "b", 100)}
	store := quant.NewStore(refs, nil)
	isr := libformat.LibraryFormat{Type: libformat.PairedEnd, Orientation: libformat.Toward, Strandedness: libformat.AS}
	require.NoError(t, store.Add(quant.Fragment{Name: "r1", Statuses: [3]int{0, 0, 1}, Hits: []quant.Hit{{Transcript: 0, Format: isr}}}))
	require.NoError(t, store.Add(quant.Fragment{Name: "r2", Statuses: [3]int{1, 0, 0}}))
	assigned := set.New(set.ThreadSafe)
	assigned.Add("r1")

	p := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteReport(p, NewReport(store, assigned, cluster.Stats{Clusters: 2, Projected: 1}, 12)))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	var r map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, 2., r["fragments"])
	assert.Equal(t, 1., r["fragments_assigned"])
	assert.Equal(t, 1., r["read_names_assigned"])
	assert.Equal(t, 12., r["em_rounds"])
	assert.Equal(t, map[string]interface{}{"paired": 1., "left orphan": 1.}, r["alignments_by_status"])
	assert.Equal(t, map[string]interface{}{"ISR": 1.}, r["hits_by_lib_type"])
}

var testSeq = strings.Repeat("ACGTT", 10)

func samRecord(name string, flags int, ref string, pos int) string {
	cigar := "50M"
	if ref == "*" {
		cigar = "*"
	}
	return strings.Join([]string{name, strconv.Itoa(flags), ref, strconv.Itoa(pos), "60", cigar, "*", "0", "0", testSeq, "*"}, "\t") + "\n"
}

const testSAMHeader = "@HD\tVN:1.6\tSO:queryname\n@SQ\tSN:tx1\tLN:1000\n@SQ\tSN:tx2\tLN:800\n"

func quantifyFixture(t *testing.T, nWorker int, samText string) (*Options, error) {
	t.Helper()
	dir := t.TempDir()
	pathFeatures := writeFile(t, "tx.tsv", "tx1\t1000\ntx2\t800\n")
	pathSAM := writeFile(t, "aln.sam", samText)

	opts := defaultOptions()
	opts.PathFeatures = pathFeatures
	opts.FormatFeatures = "tab"
	opts.PathSAMs = pathSAM
	opts.NumWorker = nWorker
	opts.QuantPath = filepath.Join(dir, "quant.tsv")
	opts.PathReport = filepath.Join(dir, "report.json")

	features, err := openFeatures(opts)
	require.NoError(t, err)
	pathSAMs, samCmdIn, err := inputPaths(opts)
	require.NoError(t, err)
	bopts, err := builderOptions(opts)
	require.NoError(t, err)
	_, err = Quantify(pathSAMs, samCmdIn, features, nil, bopts, opts, time.Now())
	return opts, err
}

func TestQuantify(t *testing.T) {
	samText := testSAMHeader +
		samRecord("r1", 0, "tx1", 101) +
		samRecord("r2", 16, "tx1", 301) +
		samRecord("r3", 0, "tx1", 501) +
		samRecord("r4", 0, "tx2", 101) +
		samRecord("r5", 0, "tx1", 701) +
		samRecord("r5", 256, "tx2", 301) +
		samRecord("r6", 4, "*", 0)

	for _, nWorker := range []int{1, 4} {
		opts, err := quantifyFixture(t, nWorker, samText)
		require.NoError(t, err, nWorker)

		f, err := os.Open(opts.QuantPath)
		require.NoError(t, err)
		defer f.Close()
		var comments, rows []string
		var header string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "#"):
				comments = append(comments, line)
			case header == "":
				header = line
			default:
				rows = append(rows, line)
			}
		}
		require.NoError(t, sc.Err())
		assert.Contains(t, comments, "# num_fragments 6")
		assert.Contains(t, comments, "# num_assigned 5")
		assert.Equal(t, strings.TrimSuffix(abundance.Header, "\n"), header)
		require.Len(t, rows, 2)

		var numReads, tpm float64
		for i, name := range []string{"tx1", "tx2"} {
			fields := strings.Split(rows[i], "\t")
			require.Len(t, fields, 5)
			assert.Equal(t, name, fields[0])
			v, err := strconv.ParseFloat(fields[4], 64)
			require.NoError(t, err)
			numReads += v
			v, err = strconv.ParseFloat(fields[2], 64)
			require.NoError(t, err)
			tpm += v
		}
		assert.Equal(t, "1000", strings.Split(rows[0], "\t")[1])
		assert.InDelta(t, 5, numReads, 1e-9)
		assert.InDelta(t, 1e6, tpm, 1e-6)

		data, err := os.ReadFile(opts.PathReport)
		require.NoError(t, err)
		var r Report
		require.NoError(t, json.Unmarshal(data, &r))
		assert.Equal(t, uint64(6), r.Fragments)
		assert.Equal(t, uint64(5), r.Assigned)
		assert.Equal(t, 5, r.AssignedNames)
		assert.Equal(t, 1, r.Clusters)
	}
}

func TestQuantifyErrors(t *testing.T) {
	for _, nWorker := range []int{1, 4} {
		// Malformed record after enough groups to fill a batch
		var b strings.Builder
		b.WriteString(testSAMHeader)
		for i := 0; i < 3*batchLength; i++ {
			b.WriteString(samRecord("r"+strconv.Itoa(i), 0, "tx1", 101))
		}
		b.WriteString("bad\tflag\ttx1\t1\n")
		_, err := quantifyFixture(t, nWorker, b.String())
		assert.Error(t, err, nWorker)
	}

	// No fragment assigned
	_, err := quantifyFixture(t, 2, testSAMHeader+samRecord("r1", 4, "*", 0))
	assert.Error(t, err)

	// Input references unrelated to the features
	_, err = quantifyFixture(t, 2, "@SQ\tSN:chrX\tLN:1000\n"+samRecord("r1", 0, "chrX", 1))
	assert.Error(t, err)
}

func TestCheckReferences(t *testing.T) {
	p := writeFile(t, "aln.sam", testSAMHeader)
	features := []feature.Feature{{Name: "tx2", Chrom: "tx2"}}
	assert.NoError(t, checkReferences([]esam.PathSAM{{Path: p}}, nil, features))
	assert.NoError(t, checkReferences([]esam.PathSAM{{Path: p}}, []string{"cat"}, features))
	assert.Error(t, checkReferences([]esam.PathSAM{{Path: p}}, nil, []feature.Feature{{Name: "chr1", Chrom: "chr1"}}))
}

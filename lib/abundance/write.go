//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package abundance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Header is the column header line.
const Header = "Name\tLength\tTPM\tFPKM\tNumReads\n"

// WriteAbundances writes headerComments as is, the column header and one row per abundance.
func WriteAbundances(w io.Writer, headerComments string, abundances []Abundance) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(headerComments)
	bw.WriteString(Header)
	for _, a := range abundances {
		bw.WriteString(a.Name)
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(a.Length))
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(a.TPM, 'f', -1, 64))
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(a.FPKM, 'f', -1, 64))
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(a.NumReads, 'f', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewCompressedWriter wraps w according to the compression part of format ("tsv", "tsv+lz4",
// "tsv+lz4hc", "tsv+zst" or "tsv+gz"). Closing the returned writer does not close w.
func NewCompressedWriter(w io.Writer, format string) (io.WriteCloser, error) {
	var zip string
	if strings.Contains(format, "+") {
		doubleFormat := strings.SplitN(format, "+", 2)
		format, zip = doubleFormat[0], doubleFormat[1]
	}
	if format != "tsv" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	switch zip {
	case "":
		return nopCloser{w}, nil
	case "lz4":
		return lz4.NewWriter(w), nil
	case "lz4hc":
		lzWriter := lz4.NewWriter(w)
		lzWriter.Header = lz4.Header{CompressionLevel: 9}
		return lzWriter, nil
	case "zst":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	case "gz":
		return gzip.NewWriter(w), nil
	}
	return nil, fmt.Errorf("%w: compression %q", ErrUnknownFormat, zip)
}

// WriteAbundancesFile writes abundances to path ("-" for stdout) in the given format.
func WriteAbundancesFile(path, format string, appendOutput bool, headerComments string, abundances []Abundance) (err error) {
	var f *os.File
	if path == "-" {
		f = os.Stdout
	} else {
		// Append or Create flag
		var fg int
		if appendOutput {
			fg = os.O_APPEND | os.O_CREATE | os.O_WRONLY
		} else {
			fg = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		if f, err = os.OpenFile(path, fg, 0666); err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
	}
	writer, err := NewCompressedWriter(f, format)
	if err != nil {
		return err
	}
	if err = WriteAbundances(writer, headerComments, abundances); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

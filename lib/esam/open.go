//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package esam

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// Input is an opened SAM/BAM file. Close releases every resource behind it.
type Input struct {
	sam.RecordReader
	closers []io.Closer
	cmd     *exec.Cmd
	eof     bool
}

// Read returns the next record.
func (in *Input) Read() (*sam.Record, error) {
	r, err := in.RecordReader.Read()
	if err == io.EOF {
		in.eof = true
	}
	return r, err
}

// Close closes the input. A command whose output was not read to the end is killed and its
// exit status ignored.
func (in *Input) Close() (err error) {
	for i := len(in.closers) - 1; i >= 0; i-- {
		if cerr := in.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if in.cmd != nil {
		if !in.eof {
			in.cmd.Process.Kill()
			in.cmd.Wait()
			return
		}
		if werr := in.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return
}

// Header returns the header of the opened file.
func (in *Input) Header() *sam.Header {
	switch r := in.RecordReader.(type) {
	case *sam.Reader:
		return r.Header()
	case *bam.Reader:
		return r.Header()
	}
	return nil
}

// OpenSAM opens a BAM file, or a SAM file either directly (gzip compressed if its name ends
// in .gz) or through the output of cmd run with the path as last argument.
func OpenSAM(pathSAM PathSAM, cmd []string, nWorker int) (*Input, error) {
	in := &Input{}
	if pathSAM.Binary {
		f, err := os.Open(pathSAM.Path)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, f)
		br, err := bam.NewReader(f, nWorker)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.closers = append(in.closers, br)
		in.RecordReader = br
		return in, nil
	}
	var r io.Reader
	if len(cmd) == 0 {
		f, err := os.Open(pathSAM.Path)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, f)
		r = f
		if strings.HasSuffix(pathSAM.Path, ".gz") {
			gr, err := gzip.NewReader(f)
			if err != nil {
				in.Close()
				return nil, err
			}
			in.closers = append(in.closers, gr)
			r = gr
		}
	} else {
		args := append(append([]string{}, cmd[1:]...), pathSAM.Path)
		p := exec.Command(cmd[0], args...)
		pp, err := p.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err = p.Start(); err != nil {
			return nil, err
		}
		in.cmd = p
		in.closers = append(in.closers, pp)
		r = pp
	}
	sr, err := sam.NewReader(r)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.RecordReader = sr
	return in, nil
}

// GetSAMHeader returns the header of a SAM/BAM file.
func GetSAMHeader(pathSAM PathSAM, cmd []string) (*sam.Header, error) {
	in, err := OpenSAM(pathSAM, cmd, 1)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return in.Header(), nil
}

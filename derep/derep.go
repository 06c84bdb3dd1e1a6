// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derep collapses identical (or prefix-identical) sequences
// from a demultiplexed sequence file into features, producing a
// per-sample abundance table.
package derep

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"otukit/feature"
	"otukit/logger"
	"otukit/vsearch"
)

// runCommand is swapped out in tests.
var runCommand = vsearch.Run

// Options control a dereplication invocation.
type Options struct {
	// Prefix selects prefix dereplication instead of full-length.
	Prefix bool

	// Cmd is the tool executable; empty means "vsearch" on $PATH.
	Cmd string
}

// Dereplicate collapses the reads in the demultiplexed sequence file
// at seqsPath into unique features. Read labels must have the form
// <sample>_<n>; the sample id is everything before the last
// underscore, since sample ids may themselves contain underscores.
// Features are relabeled to the tool-assigned sequence hashes. The
// input may be gzipped.
func Dereplicate(seqsPath string, opts Options) (*feature.Table, feature.SeqSet, error) {
	dir, err := os.MkdirTemp("", "otukit-derep-")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "derep.fasta")
	ucPath := filepath.Join(dir, "derep.uc")

	mode := vsearch.DerepFullLength
	if opts.Prefix {
		mode = vsearch.DerepPrefix
	}
	cmd, err := vsearch.Derep{
		Cmd:         opts.Cmd,
		Mode:        mode,
		Input:       seqsPath,
		Output:      out,
		UC:          ucPath,
		RelabelSHA1: true,
		RelabelKeep: true,
		QMask:       "none", // ensures no lowercase bases
		XSize:       true,
	}.BuildCommand()
	if err != nil {
		return nil, nil, err
	}
	if err := runCommand(cmd); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(ucPath)
	if err != nil {
		return nil, nil, err
	}
	table, err := sampleTableFromUC(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}

	seqs, err := feature.ReadSeqsFile(out, false)
	if err != nil {
		return nil, nil, err
	}

	// --relabel_keep leaves the original seed label in the
	// description; map it back to the hash id assigned by the tool.
	idMap := make(map[string]string, len(seqs))
	for _, s := range seqs {
		label := s.Desc
		if i := strings.Index(label, " "); i >= 0 {
			label = label[:i]
		}
		if label == "" {
			return nil, nil, fmt.Errorf("derep: dereplicated sequence %q has no original label", s.ID)
		}
		idMap[label] = s.ID
	}
	table, err = table.RelabelFeatures(idMap)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("dereplication complete",
		zap.Int("features", table.NumFeatures()),
		zap.Int("samples", len(table.SampleIDs())))
	return table, seqs, nil
}

// sampleTableFromUC builds the per-sample abundance table from
// dereplication UC records. Each seed or hit record contributes one
// read to the (seed label, sample) cell.
func sampleTableFromUC(r io.Reader) (*feature.Table, error) {
	t := feature.New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		var seed, query string
		switch fields[0] {
		case "S":
			if len(fields) < 9 {
				return nil, fmt.Errorf("derep: line %d: truncated record", n)
			}
			query = fields[8]
			seed = query
		case "H":
			if len(fields) < 10 {
				return nil, fmt.Errorf("derep: line %d: truncated record", n)
			}
			query = fields[8]
			seed = fields[9]
		default:
			continue
		}
		sample, err := sampleOf(query)
		if err != nil {
			return nil, fmt.Errorf("derep: line %d: %v", n, err)
		}
		t.Add(seed, sample, 1)
	}
	return t, sc.Err()
}

// sampleOf extracts the sample id from a demultiplexed read label of
// the form <sample>_<n>. Sample ids may contain the delimiter, so
// the label is split on its last occurrence.
func sampleOf(label string) (string, error) {
	i := strings.LastIndex(label, "_")
	if i < 0 {
		return "", fmt.Errorf("read label %q is not of the form <sample>_<n>", label)
	}
	return label[:i], nil
}

// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chimera wraps the tool's uchime de novo and
// reference-based chimera detection.
package chimera

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"otukit/feature"
	"otukit/logger"
	"otukit/vsearch"
)

// runCommand is swapped out in tests.
var runCommand = vsearch.Run

// Params are the uchime scoring parameters, forwarded verbatim to
// the tool.
type Params struct {
	DN       float64
	MinDiffs int
	MinDiv   float64
	MinH     float64
	XN       float64
}

// DefaultParams returns the uchime defaults.
func DefaultParams() Params {
	return Params{
		DN:       1.4,
		MinDiffs: 3,
		MinDiv:   0.8,
		MinH:     0.28,
		XN:       8.0,
	}
}

// Result holds the outcome of a chimera detection run. Stats is the
// raw per-query uchime output.
type Result struct {
	Chimeras    feature.SeqSet
	NonChimeras feature.SeqSet
	Stats       []byte
}

// UchimeDenovo detects chimeric features among seqs using abundance
// information from table. The table and sequence ids must agree as
// for de novo clustering.
func UchimeDenovo(seqs feature.SeqSet, table *feature.Table, p Params, cmdPath string) (*Result, error) {
	dir, err := os.MkdirTemp("", "otukit-uchime-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	sized, paths, err := prepare(dir, seqs, table)
	if err != nil {
		return nil, err
	}
	cmd, err := vsearch.UchimeDenovo{
		Cmd:          cmdPath,
		Input:        sized,
		Chimeras:     paths.chimeras,
		NonChimeras:  paths.nonChimeras,
		UchimeOut:    paths.stats,
		DN:           p.DN,
		MinDiffs:     p.MinDiffs,
		MinDiv:       p.MinDiv,
		MinH:         p.MinH,
		XN:           p.XN,
		QMask:        "none", // ensures no lowercase bases
		XSize:        true,
		MinSeqLength: 1,
		SingleLine:   true,
	}.BuildCommand()
	if err != nil {
		return nil, err
	}
	if err := runCommand(cmd); err != nil {
		return nil, err
	}
	return collect(paths)
}

// UchimeRef detects chimeric features among seqs against the
// reference set.
func UchimeRef(seqs feature.SeqSet, table *feature.Table, refSeqs feature.SeqSet, p Params, threads int, cmdPath string) (*Result, error) {
	dir, err := os.MkdirTemp("", "otukit-uchime-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	sized, paths, err := prepare(dir, seqs, table)
	if err != nil {
		return nil, err
	}
	db := filepath.Join(dir, "ref.fasta")
	if err := feature.WriteSeqsFile(db, refSeqs); err != nil {
		return nil, err
	}
	cmd, err := vsearch.UchimeRef{
		Cmd:          cmdPath,
		Input:        sized,
		DB:           db,
		Chimeras:     paths.chimeras,
		NonChimeras:  paths.nonChimeras,
		UchimeOut:    paths.stats,
		DN:           p.DN,
		MinDiffs:     p.MinDiffs,
		MinDiv:       p.MinDiv,
		MinH:         p.MinH,
		XN:           p.XN,
		QMask:        "none", // ensures no lowercase bases
		XSize:        true,
		MinSeqLength: 1,
		SingleLine:   true,
		Threads:      threads,
	}.BuildCommand()
	if err != nil {
		return nil, err
	}
	if err := runCommand(cmd); err != nil {
		return nil, err
	}
	return collect(paths)
}

type outPaths struct {
	chimeras    string
	nonChimeras string
	stats       string
}

func prepare(dir string, seqs feature.SeqSet, table *feature.Table) (string, outPaths, error) {
	sized := filepath.Join(dir, "seqs.sized.fasta")
	f, err := os.Create(sized)
	if err != nil {
		return "", outPaths{}, err
	}
	if err := feature.WriteSized(f, seqs, table); err != nil {
		f.Close()
		return "", outPaths{}, err
	}
	if err := f.Close(); err != nil {
		return "", outPaths{}, err
	}
	return sized, outPaths{
		chimeras:    filepath.Join(dir, "chimeras.fasta"),
		nonChimeras: filepath.Join(dir, "nonchimeras.fasta"),
		stats:       filepath.Join(dir, "uchime.tsv"),
	}, nil
}

func collect(paths outPaths) (*Result, error) {
	chimeras, err := feature.ReadSeqsFile(paths.chimeras, false)
	if err != nil {
		return nil, err
	}
	nonChimeras, err := feature.ReadSeqsFile(paths.nonChimeras, false)
	if err != nil {
		return nil, err
	}
	stats, err := os.ReadFile(paths.stats)
	if err != nil {
		return nil, err
	}
	logger.Info("chimera detection complete",
		zap.Int("chimeras", len(chimeras)),
		zap.Int("nonchimeras", len(nonChimeras)))
	return &Result{Chimeras: chimeras, NonChimeras: nonChimeras, Stats: stats}, nil
}

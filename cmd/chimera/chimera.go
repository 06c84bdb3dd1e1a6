// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// chimera detects chimeric features with uchime, de novo or against
// a reference set when one is given.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"otukit/chimera"
	"otukit/feature"
	"otukit/logger"
)

var (
	seqsFile       = flag.String("seqs", "", "input fasta sequence file (required)")
	tableFile      = flag.String("table", "", "input feature table TSV (required)")
	refFile        = flag.String("ref", "", "reference sequence fasta (omit for de novo detection)")
	threads        = flag.Int("threads", 1, "number of vsearch threads (reference mode only)")
	toolPath       = flag.String("vsearch", "", "path to vsearch if not in $PATH")
	outChimeras    = flag.String("out-chimeras", "", "output chimeric sequence fasta (required)")
	outNonChimeras = flag.String("out-nonchimeras", "", "output non-chimeric sequence fasta (required)")
	outStats       = flag.String("out-stats", "", "output per-query uchime statistics (required)")
	verbose        = flag.Bool("v", false, "verbose logging")

	defaults = chimera.DefaultParams()

	dn       = flag.Float64("dn", defaults.DN, "uchime no vote pseudo-count")
	mindiffs = flag.Int("mindiffs", defaults.MinDiffs, "uchime minimum diffs per segment")
	mindiv   = flag.Float64("mindiv", defaults.MinDiv, "uchime minimum divergence")
	minh     = flag.Float64("minh", defaults.MinH, "uchime minimum score to report")
	xn       = flag.Float64("xn", defaults.XN, "uchime no vote weight")
)

func main() {
	flag.Parse()
	if *seqsFile == "" || *tableFile == "" || *outChimeras == "" || *outNonChimeras == "" || *outStats == "" {
		fmt.Fprintln(os.Stderr, "invalid argument: must have seqs, table, out-chimeras, out-nonchimeras and out-stats set")
		flag.Usage()
		os.Exit(1)
	}
	level := zapcore.InfoLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	if err := logger.Init(level); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	table, err := feature.ReadTSVFile(*tableFile)
	if err != nil {
		logger.Fatal("failed to read feature table", zap.Error(err))
	}
	seqs, err := feature.ReadSeqsFile(*seqsFile, false)
	if err != nil {
		logger.Fatal("failed to read sequences", zap.Error(err))
	}

	params := chimera.Params{DN: *dn, MinDiffs: *mindiffs, MinDiv: *mindiv, MinH: *minh, XN: *xn}

	var res *chimera.Result
	if *refFile == "" {
		res, err = chimera.UchimeDenovo(seqs, table, params, *toolPath)
	} else {
		var refSeqs feature.SeqSet
		refSeqs, err = feature.ReadSeqsFile(*refFile, false)
		if err != nil {
			logger.Fatal("failed to read reference sequences", zap.Error(err))
		}
		res, err = chimera.UchimeRef(seqs, table, refSeqs, params, *threads, *toolPath)
	}
	if err != nil {
		logger.Fatal("chimera detection failed", zap.Error(err))
	}

	if err := feature.WriteSeqsFile(*outChimeras, res.Chimeras); err != nil {
		logger.Fatal("failed to write chimeric sequences", zap.Error(err))
	}
	if err := feature.WriteSeqsFile(*outNonChimeras, res.NonChimeras); err != nil {
		logger.Fatal("failed to write non-chimeric sequences", zap.Error(err))
	}
	if err := os.WriteFile(*outStats, res.Stats, 0o644); err != nil {
		logger.Fatal("failed to write uchime statistics", zap.Error(err))
	}
}

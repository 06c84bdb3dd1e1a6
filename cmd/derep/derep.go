// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// derep collapses identical (or prefix-identical) reads from a
// demultiplexed sequence file into unique features, writing the
// per-sample feature table and the dereplicated sequences.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"otukit/derep"
	"otukit/feature"
	"otukit/logger"
)

var (
	seqsFile = flag.String("seqs", "", "input demultiplexed fasta with <sample>_<n> labels (required)")
	prefix   = flag.Bool("prefix", false, "collapse prefix-identical reads instead of full-length identical")
	toolPath = flag.String("vsearch", "", "path to vsearch if not in $PATH")
	outTable = flag.String("out-table", "", "output feature table TSV (required)")
	outSeqs  = flag.String("out-seqs", "", "output dereplicated sequence fasta (required)")
	verbose  = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()
	if *seqsFile == "" || *outTable == "" || *outSeqs == "" {
		fmt.Fprintln(os.Stderr, "invalid argument: must have seqs, out-table and out-seqs set")
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

	table, seqs, err := derep.Dereplicate(*seqsFile, derep.Options{
		Prefix: *prefix,
		Cmd:    *toolPath,
	})
	if err != nil {
		logger.Fatal("dereplication failed", zap.Error(err))
	}

	if err := feature.WriteTSVFile(*outTable, table); err != nil {
		logger.Fatal("failed to write feature table", zap.Error(err))
	}
	if err := feature.WriteSeqsFile(*outSeqs, seqs); err != nil {
		logger.Fatal("failed to write dereplicated sequences", zap.Error(err))
	}
}

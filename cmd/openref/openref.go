// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// openref clusters a feature table and its sequences against a
// reference set, then clusters the leftover unmatched features de
// novo. The written reference set is the input reference set plus
// any newly discovered cluster representatives, so repeated runs
// converge to stable cluster identities.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"otukit/cluster"
	"otukit/feature"
	"otukit/logger"
)

var (
	seqsFile  = flag.String("seqs", "", "input fasta sequence file (required)")
	tableFile = flag.String("table", "", "input feature table TSV (required)")
	refFile   = flag.String("ref", "", "reference sequence fasta (required)")
	identity  = flag.Float64("id", 0, "identity threshold in (0,1] (required)")
	strand    = flag.String("strand", "plus", "query orientation: plus or both")
	threads   = flag.Int("threads", 1, "number of vsearch threads")
	toolPath  = flag.String("vsearch", "", "path to vsearch if not in $PATH")
	outTable  = flag.String("out-table", "", "output clustered table TSV (required)")
	outSeqs   = flag.String("out-seqs", "", "output representative sequence fasta (required)")
	outRef    = flag.String("out-ref", "", "output extended reference fasta (required)")
	verbose   = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()
	if *seqsFile == "" || *tableFile == "" || *refFile == "" || *outTable == "" || *outSeqs == "" || *outRef == "" {
		fmt.Fprintln(os.Stderr, "invalid argument: must have seqs, table, ref, out-table, out-seqs and out-ref set")
		flag.Usage()
		os.Exit(1)
	}
	if *identity <= 0 || *identity > 1 {
		fmt.Fprintln(os.Stderr, "invalid argument: id must be in (0,1]")
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
	refSeqs, err := feature.ReadSeqsFile(*refFile, false)
	if err != nil {
		logger.Fatal("failed to read reference sequences", zap.Error(err))
	}

	res, err := cluster.OpenReference(seqs, table, refSeqs, cluster.Options{
		PercIdentity: *identity,
		Strand:       *strand,
		Threads:      *threads,
		Cmd:          *toolPath,
	})
	if err != nil {
		logger.Fatal("open-reference clustering failed", zap.Error(err))
	}

	if err := feature.WriteTSVFile(*outTable, res.Table); err != nil {
		logger.Fatal("failed to write clustered table", zap.Error(err))
	}
	if err := feature.WriteSeqsFile(*outSeqs, res.Representatives); err != nil {
		logger.Fatal("failed to write representative sequences", zap.Error(err))
	}
	if err := feature.WriteSeqsFile(*outRef, res.NewReferenceSeqs); err != nil {
		logger.Fatal("failed to write extended reference sequences", zap.Error(err))
	}
}

// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vsearch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterSizeBuildCommand(t *testing.T) {
	cmd, err := ClusterSize{
		Input:   "seqs.sized.fasta",
		ID:      0.97,
		UC:      "clusters.uc",
		QMask:   "none",
		XSize:   true,
		Threads: 2,
	}.BuildCommand()
	require.NoError(t, err)
	require.Equal(t, []string{
		"vsearch",
		"--cluster_size", "seqs.sized.fasta",
		"--id", "0.97",
		"--uc", "clusters.uc",
		"--qmask", "none",
		"--xsize",
		"--threads", "2",
	}, cmd.Args)
}

func TestClusterSizeMissingRequired(t *testing.T) {
	_, err := ClusterSize{ID: 0.97}.BuildCommand()
	require.ErrorIs(t, err, ErrMissingRequired)
	_, err = ClusterSize{Input: "seqs.fasta"}.BuildCommand()
	require.ErrorIs(t, err, ErrMissingRequired)
}

func TestUsearchGlobalBuildCommand(t *testing.T) {
	cmd, err := UsearchGlobal{
		Cmd:        "/opt/bin/vsearch",
		Input:      "seqs.sized.fasta",
		DB:         "ref.fasta",
		ID:         0.9,
		UC:         "clusters.uc",
		Strand:     "plus",
		QMask:      "none",
		NotMatched: "notmatched.fasta",
	}.BuildCommand()
	require.NoError(t, err)
	require.Equal(t, []string{
		"/opt/bin/vsearch",
		"--usearch_global", "seqs.sized.fasta",
		"--db", "ref.fasta",
		"--id", "0.9",
		"--uc", "clusters.uc",
		"--strand", "plus",
		"--qmask", "none",
		"--notmatched", "notmatched.fasta",
	}, cmd.Args)
}

func TestDerepBuildCommand(t *testing.T) {
	cmd, err := Derep{
		Input:       "seqs.fna",
		Output:      "derep.fasta",
		UC:          "derep.uc",
		RelabelSHA1: true,
		RelabelKeep: true,
		QMask:       "none",
		XSize:       true,
	}.BuildCommand()
	require.NoError(t, err)
	require.Equal(t, []string{
		"vsearch",
		"--derep_fulllength", "seqs.fna",
		"--output", "derep.fasta",
		"--uc", "derep.uc",
		"--relabel_sha1",
		"--relabel_keep",
		"--qmask", "none",
		"--xsize",
	}, cmd.Args)

	cmd, err = Derep{Mode: DerepPrefix, Input: "seqs.fna"}.BuildCommand()
	require.NoError(t, err)
	require.Equal(t, []string{"vsearch", "--derep_prefix", "seqs.fna"}, cmd.Args)

	_, err = Derep{Mode: "derep_sideways", Input: "seqs.fna"}.BuildCommand()
	require.Error(t, err)
}

func TestUchimeDenovoBuildCommand(t *testing.T) {
	cmd, err := UchimeDenovo{
		Input:        "seqs.sized.fasta",
		Chimeras:     "chimeras.fasta",
		NonChimeras:  "nonchimeras.fasta",
		UchimeOut:    "uchime.tsv",
		DN:           1.4,
		MinDiffs:     3,
		MinDiv:       0.8,
		MinH:         0.28,
		XN:           8.0,
		QMask:        "none",
		XSize:        true,
		MinSeqLength: 1,
		SingleLine:   true,
	}.BuildCommand()
	require.NoError(t, err)
	require.Equal(t, []string{
		"vsearch",
		"--uchime_denovo", "seqs.sized.fasta",
		"--chimeras", "chimeras.fasta",
		"--nonchimeras", "nonchimeras.fasta",
		"--uchimeout", "uchime.tsv",
		"--dn", "1.4",
		"--mindiffs", "3",
		"--mindiv", "0.8",
		"--minh", "0.28",
		"--xn", "8",
		"--qmask", "none",
		"--xsize",
		"--minseqlength", "1",
		"--fasta_width", "0",
	}, cmd.Args)
}

func TestUchimeRefMissingRequired(t *testing.T) {
	_, err := UchimeRef{Input: "seqs.fasta"}.BuildCommand()
	require.ErrorIs(t, err, ErrMissingRequired)
}

func TestExecError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ExecError{CommandLine: "vsearch --cluster_size /tmp/x", Err: cause}
	if !strings.Contains(err.Error(), "vsearch --cluster_size /tmp/x") {
		t.Errorf("error text does not include the command line: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("ExecError does not unwrap to its cause")
	}
}

// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vsearch provides interaction with the VSEARCH sequence
// search and clustering tool.
package vsearch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/biogo/external"
	"go.uber.org/zap"

	"otukit/logger"
)

var ErrMissingRequired = errors.New("vsearch: missing required argument")

// ExecError is returned by Run when vsearch exits with a non-zero
// status. It carries the full command line that was invoked. The
// command line references temporary files that no longer exist, so it
// cannot be re-run verbatim.
type ExecError struct {
	CommandLine string
	Err         error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("vsearch: external command failed: %v (command was: %s; it referenced temporary files that no longer exist and cannot be re-run verbatim)",
		e.Err, e.CommandLine)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Run executes the given command, streaming the tool's stdout and
// stderr to standard error. A non-zero exit is returned as an
// *ExecError. No retries are performed.
func Run(cmd *exec.Cmd) error {
	logger.Info("running external command", zap.String("command", strings.Join(cmd.Args, " ")))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &ExecError{CommandLine: strings.Join(cmd.Args, " "), Err: err}
	}
	return nil
}

// ClusterSize defines parameters for vsearch --cluster_size, which
// clusters sequences in decreasing abundance order at a given
// identity threshold.
type ClusterSize struct {
	// Usage: vsearch --cluster_size seqs.fasta --id 0.97 [options]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}vsearch{{end}}"` // vsearch

	Input string  `buildarg:"--cluster_size{{split}}{{.}}"`         // --cluster_size: abundance-annotated input
	ID    float64 `buildarg:"{{if .}}--id{{split}}{{.}}{{end}}"`    // --id: identity threshold (0,1]
	UC    string  `buildarg:"{{if .}}--uc{{split}}{{.}}{{end}}"`    // --uc: cluster membership outfile
	QMask string  `buildarg:"{{if .}}--qmask{{split}}{{.}}{{end}}"` // --qmask: query masking (none for no lowercase)
	XSize bool    `buildarg:"{{if .}}--xsize{{end}}"`               // --xsize: strip abundance annotations on output

	Centroids string `buildarg:"{{if .}}--centroids{{split}}{{.}}{{end}}"` // --centroids: centroid sequence outfile

	Threads int `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"` // --threads: number of threads
}

// BuildCommand returns an exec.Cmd built from the parameters in c.
func (c ClusterSize) BuildCommand() (*exec.Cmd, error) {
	if c.Input == "" || c.ID == 0 {
		return nil, ErrMissingRequired
	}
	cl := external.Must(external.Build(c))
	return exec.Command(cl[0], cl[1:]...), nil
}

// UsearchGlobal defines parameters for vsearch --usearch_global,
// global alignment of queries against a reference database.
type UsearchGlobal struct {
	// Usage: vsearch --usearch_global seqs.fasta --db ref.fasta --id 0.97 [options]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}vsearch{{end}}"` // vsearch

	Input string  `buildarg:"--usearch_global{{split}}{{.}}"`       // --usearch_global: query sequences
	DB    string  `buildarg:"--db{{split}}{{.}}"`                   // --db: reference sequences
	ID    float64 `buildarg:"{{if .}}--id{{split}}{{.}}{{end}}"`    // --id: identity threshold (0,1]
	UC    string  `buildarg:"{{if .}}--uc{{split}}{{.}}{{end}}"`    // --uc: membership outfile

	Strand string `buildarg:"{{if .}}--strand{{split}}{{.}}{{end}}"` // --strand: plus or both
	QMask  string `buildarg:"{{if .}}--qmask{{split}}{{.}}{{end}}"`  // --qmask: query masking

	NotMatched string `buildarg:"{{if .}}--notmatched{{split}}{{.}}{{end}}"` // --notmatched: unmatched query outfile

	Threads int `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"` // --threads: number of threads
}

// BuildCommand returns an exec.Cmd built from the parameters in u.
func (u UsearchGlobal) BuildCommand() (*exec.Cmd, error) {
	if u.Input == "" || u.DB == "" || u.ID == 0 {
		return nil, ErrMissingRequired
	}
	cl := external.Must(external.Build(u))
	return exec.Command(cl[0], cl[1:]...), nil
}

// Dereplication modes.
const (
	DerepFullLength = "derep_fulllength"
	DerepPrefix     = "derep_prefix"
)

// Derep defines parameters for vsearch dereplication.
type Derep struct {
	// Usage: vsearch --derep_fulllength seqs.fna --output derep.fasta [options]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}vsearch{{end}}"` // vsearch

	Mode  string `buildarg:"{{if .}}--{{.}}{{else}}--derep_fulllength{{end}}"` // --derep_fulllength or --derep_prefix
	Input string `buildarg:"{{.}}"`                                            // input sequences

	Output string `buildarg:"{{if .}}--output{{split}}{{.}}{{end}}"` // --output: dereplicated sequence outfile
	UC     string `buildarg:"{{if .}}--uc{{split}}{{.}}{{end}}"`     // --uc: membership outfile

	RelabelSHA1 bool   `buildarg:"{{if .}}--relabel_sha1{{end}}"`        // --relabel_sha1: relabel with sequence sha1
	RelabelKeep bool   `buildarg:"{{if .}}--relabel_keep{{end}}"`        // --relabel_keep: keep old label in description
	QMask       string `buildarg:"{{if .}}--qmask{{split}}{{.}}{{end}}"` // --qmask: query masking
	XSize       bool   `buildarg:"{{if .}}--xsize{{end}}"`               // --xsize: strip abundance annotations
}

// BuildCommand returns an exec.Cmd built from the parameters in d.
func (d Derep) BuildCommand() (*exec.Cmd, error) {
	if d.Input == "" {
		return nil, ErrMissingRequired
	}
	if d.Mode != "" && d.Mode != DerepFullLength && d.Mode != DerepPrefix {
		return nil, fmt.Errorf("vsearch: invalid dereplication mode: %q", d.Mode)
	}
	cl := external.Must(external.Build(d))
	return exec.Command(cl[0], cl[1:]...), nil
}

// UchimeDenovo defines parameters for vsearch --uchime_denovo
// de novo chimera detection.
type UchimeDenovo struct {
	// Usage: vsearch --uchime_denovo seqs.fasta --chimeras out.fasta [options]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}vsearch{{end}}"` // vsearch

	Input string `buildarg:"--uchime_denovo{{split}}{{.}}"` // abundance-annotated input

	Chimeras    string `buildarg:"{{if .}}--chimeras{{split}}{{.}}{{end}}"`    // --chimeras: chimeric outfile
	NonChimeras string `buildarg:"{{if .}}--nonchimeras{{split}}{{.}}{{end}}"` // --nonchimeras: non-chimeric outfile
	UchimeOut   string `buildarg:"{{if .}}--uchimeout{{split}}{{.}}{{end}}"`   // --uchimeout: per-query statistics outfile

	DN       float64 `buildarg:"{{if .}}--dn{{split}}{{.}}{{end}}"`       // --dn: no vote pseudo-count
	MinDiffs int     `buildarg:"{{if .}}--mindiffs{{split}}{{.}}{{end}}"` // --mindiffs: minimum diffs per segment
	MinDiv   float64 `buildarg:"{{if .}}--mindiv{{split}}{{.}}{{end}}"`   // --mindiv: minimum divergence
	MinH     float64 `buildarg:"{{if .}}--minh{{split}}{{.}}{{end}}"`     // --minh: minimum score to report
	XN       float64 `buildarg:"{{if .}}--xn{{split}}{{.}}{{end}}"`       // --xn: no vote weight

	QMask        string `buildarg:"{{if .}}--qmask{{split}}{{.}}{{end}}"`        // --qmask: query masking
	XSize        bool   `buildarg:"{{if .}}--xsize{{end}}"`                      // --xsize: strip abundance annotations
	MinSeqLength int    `buildarg:"{{if .}}--minseqlength{{split}}{{.}}{{end}}"` // --minseqlength: minimum length to consider
	SingleLine   bool   `buildarg:"{{if .}}--fasta_width{{split}}0{{end}}"`      // --fasta_width 0: unwrapped output
}

// BuildCommand returns an exec.Cmd built from the parameters in u.
func (u UchimeDenovo) BuildCommand() (*exec.Cmd, error) {
	if u.Input == "" {
		return nil, ErrMissingRequired
	}
	cl := external.Must(external.Build(u))
	return exec.Command(cl[0], cl[1:]...), nil
}

// UchimeRef defines parameters for vsearch --uchime_ref
// reference-based chimera detection.
type UchimeRef struct {
	// Usage: vsearch --uchime_ref seqs.fasta --db ref.fasta [options]
	//
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}vsearch{{end}}"` // vsearch

	Input string `buildarg:"--uchime_ref{{split}}{{.}}"` // abundance-annotated input
	DB    string `buildarg:"--db{{split}}{{.}}"`         // --db: reference sequences

	Chimeras    string `buildarg:"{{if .}}--chimeras{{split}}{{.}}{{end}}"`    // --chimeras: chimeric outfile
	NonChimeras string `buildarg:"{{if .}}--nonchimeras{{split}}{{.}}{{end}}"` // --nonchimeras: non-chimeric outfile
	UchimeOut   string `buildarg:"{{if .}}--uchimeout{{split}}{{.}}{{end}}"`   // --uchimeout: per-query statistics outfile

	DN       float64 `buildarg:"{{if .}}--dn{{split}}{{.}}{{end}}"`       // --dn: no vote pseudo-count
	MinDiffs int     `buildarg:"{{if .}}--mindiffs{{split}}{{.}}{{end}}"` // --mindiffs: minimum diffs per segment
	MinDiv   float64 `buildarg:"{{if .}}--mindiv{{split}}{{.}}{{end}}"`   // --mindiv: minimum divergence
	MinH     float64 `buildarg:"{{if .}}--minh{{split}}{{.}}{{end}}"`     // --minh: minimum score to report
	XN       float64 `buildarg:"{{if .}}--xn{{split}}{{.}}{{end}}"`       // --xn: no vote weight

	QMask        string `buildarg:"{{if .}}--qmask{{split}}{{.}}{{end}}"`        // --qmask: query masking
	XSize        bool   `buildarg:"{{if .}}--xsize{{end}}"`                      // --xsize: strip abundance annotations
	MinSeqLength int    `buildarg:"{{if .}}--minseqlength{{split}}{{.}}{{end}}"` // --minseqlength: minimum length to consider
	SingleLine   bool   `buildarg:"{{if .}}--fasta_width{{split}}0{{end}}"`      // --fasta_width 0: unwrapped output

	Threads int `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"` // --threads: number of threads
}

// BuildCommand returns an exec.Cmd built from the parameters in u.
func (u UchimeRef) BuildCommand() (*exec.Cmd, error) {
	if u.Input == "" || u.DB == "" {
		return nil, ErrMissingRequired
	}
	cl := external.Must(external.Build(u))
	return exec.Command(cl[0], cl[1:]...), nil
}

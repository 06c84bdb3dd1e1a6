// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cluster implements de novo, closed-reference and
// open-reference feature clustering around the external tool.
package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"otukit/feature"
	"otukit/logger"
	"otukit/uc"
	"otukit/vsearch"
)

// ErrNoMatches is returned by ClosedReference when no feature
// matched any reference sequence. OpenReference catches it and falls
// back to pure de novo clustering; every other caller should treat
// it as fatal.
var ErrNoMatches = errors.New("cluster: no matches were identified to the reference sequences")

// runCommand is swapped out in tests.
var runCommand = vsearch.Run

// Options control a clustering invocation.
type Options struct {
	// PercIdentity is the identity threshold passed to the tool,
	// in (0, 1].
	PercIdentity float64

	// Strand selects query orientation for reference-based
	// clustering: "plus" (default) or "both".
	Strand string

	// Threads is forwarded to the tool unchanged; zero means the
	// tool's own default.
	Threads int

	// Cmd is the tool executable; empty means "vsearch" on $PATH.
	Cmd string
}

// OpenReferenceResult is the outcome of open-reference clustering.
type OpenReferenceResult struct {
	Table           *feature.Table
	Representatives feature.SeqSet

	// NewReferenceSeqs is the input reference set extended with any
	// newly discovered de novo cluster representatives, so that
	// repeated runs converge to stable cluster identities.
	NewReferenceSeqs feature.SeqSet
}

// DeNovo clusters the features of table and seqs by sequence
// similarity alone, returning the collapsed table and one
// representative sequence per cluster. The feature id sets of table
// and seqs must be identical.
func DeNovo(seqs feature.SeqSet, table *feature.Table, opts Options) (*feature.Table, feature.SeqSet, error) {
	if err := validateExactIDs(table, seqs); err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp("", "otukit-denovo-")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(dir)

	sized := filepath.Join(dir, "seqs.sized.fasta")
	if err := writeSizedFile(sized, seqs, table); err != nil {
		return nil, nil, err
	}
	ucPath := filepath.Join(dir, "clusters.uc")

	cmd, err := vsearch.ClusterSize{
		Cmd:     opts.Cmd,
		Input:   sized,
		ID:      opts.PercIdentity,
		UC:      ucPath,
		QMask:   "none", // ensures no lowercase bases
		XSize:   true,
		Threads: opts.Threads,
	}.BuildCommand()
	if err != nil {
		return nil, nil, err
	}
	if err := runCommand(cmd); err != nil {
		return nil, nil, err
	}

	cm, err := parseUCFile(ucPath)
	if err != nil {
		if errors.Is(err, uc.ErrEmpty) {
			return nil, nil, fmt.Errorf("cluster: clustering produced no membership records: %w", err)
		}
		return nil, nil, err
	}
	if err := cm.FillCounts(table); err != nil {
		return nil, nil, err
	}

	collapsed, err := table.Collapse(cm.Mapping())
	if err != nil {
		return nil, nil, err
	}
	reps, err := Representatives(cm, seqs)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("de novo clustering complete",
		zap.Int("features", table.NumFeatures()),
		zap.Int("clusters", collapsed.NumFeatures()))
	return collapsed, reps, nil
}

// ClosedReference clusters the features of table and seqs against
// refSeqs by best global alignment. Cluster ids are reference ids;
// the representative for each cluster is the highest-abundance
// matched input feature's sequence, written under the reference id.
// Features matching no reference are excluded from the returned
// table and reported in the unmatched sequence set. Every table id
// must have a sequence; the reverse is not required here.
func ClosedReference(seqs feature.SeqSet, table *feature.Table, refSeqs feature.SeqSet, opts Options) (*feature.Table, feature.SeqSet, feature.SeqSet, error) {
	if err := validateTableSubset(table, seqs); err != nil {
		return nil, nil, nil, err
	}

	dir, err := os.MkdirTemp("", "otukit-closedref-")
	if err != nil {
		return nil, nil, nil, err
	}
	defer os.RemoveAll(dir)

	sized := filepath.Join(dir, "seqs.sized.fasta")
	if err := writeSizedFile(sized, seqs, table); err != nil {
		return nil, nil, nil, err
	}
	db := filepath.Join(dir, "ref.fasta")
	if err := feature.WriteSeqsFile(db, refSeqs); err != nil {
		return nil, nil, nil, err
	}
	ucPath := filepath.Join(dir, "clusters.uc")
	notMatched := filepath.Join(dir, "notmatched.fasta")

	strand := opts.Strand
	if strand == "" {
		strand = "plus"
	}
	cmd, err := vsearch.UsearchGlobal{
		Cmd:        opts.Cmd,
		Input:      sized,
		DB:         db,
		ID:         opts.PercIdentity,
		UC:         ucPath,
		Strand:     strand,
		QMask:      "none", // ensures no lowercase bases
		NotMatched: notMatched,
		Threads:    opts.Threads,
	}.BuildCommand()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := runCommand(cmd); err != nil {
		return nil, nil, nil, err
	}

	// The notmatched output carries the abundance annotations from
	// the sized input; strip them on read.
	unmatched, err := feature.ReadSeqsFile(notMatched, true)
	if err != nil {
		return nil, nil, nil, err
	}

	cm, err := parseUCFile(ucPath)
	if err != nil {
		if errors.Is(err, uc.ErrEmpty) {
			return nil, nil, nil, fmt.Errorf("%w; this can happen if the sequences are not homologous to the references, or are not in the same orientation (reverse complemented); orientation can be adjusted with the strand option", ErrNoMatches)
		}
		return nil, nil, nil, err
	}
	if err := cm.FillCounts(table); err != nil {
		return nil, nil, nil, err
	}

	matched := table.Filter(unmatched.IDs(), true)
	collapsed, err := matched.Collapse(cm.Mapping())
	if err != nil {
		return nil, nil, nil, err
	}
	reps, err := Representatives(cm, seqs)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("closed-reference clustering complete",
		zap.Int("features", table.NumFeatures()),
		zap.Int("clusters", collapsed.NumFeatures()),
		zap.Int("unmatched", len(unmatched)))
	return collapsed, reps, unmatched, nil
}

// OpenReference clusters against refSeqs and then de novo clusters
// whatever failed to match. A closed-reference run with no matches
// at all is the one recoverable condition: the whole input is
// treated as unmatched and clustered de novo.
func OpenReference(seqs feature.SeqSet, table *feature.Table, refSeqs feature.SeqSet, opts Options) (*OpenReferenceResult, error) {
	closedTable, reps, unmatched, err := ClosedReference(seqs, table, refSeqs, opts)
	skippedClosedRef := false
	if err != nil {
		if !errors.Is(err, ErrNoMatches) {
			return nil, err
		}
		// Nothing matched; carry the entire input into the de novo
		// stage.
		skippedClosedRef = true
		closedTable, reps, unmatched = table, nil, seqs
		logger.Info("no closed-reference matches, falling back to de novo clustering")
	}

	if len(unmatched) == 0 {
		return &OpenReferenceResult{
			Table:            closedTable,
			Representatives:  reps,
			NewReferenceSeqs: refSeqs,
		}, nil
	}

	unmatchedTable := table.Filter(unmatched.IDs(), false)
	deNovoTable, deNovoReps, err := DeNovo(unmatched, unmatchedTable, opts)
	if err != nil {
		return nil, err
	}

	newRefs, err := mergeSeqs(refSeqs, deNovoReps)
	if err != nil {
		return nil, err
	}
	if skippedClosedRef {
		return &OpenReferenceResult{
			Table:            deNovoTable,
			Representatives:  deNovoReps,
			NewReferenceSeqs: newRefs,
		}, nil
	}

	mergedTable, err := closedTable.Merge(deNovoTable)
	if err != nil {
		return nil, err
	}
	mergedReps, err := mergeSeqs(reps, deNovoReps)
	if err != nil {
		return nil, err
	}
	return &OpenReferenceResult{
		Table:            mergedTable,
		Representatives:  mergedReps,
		NewReferenceSeqs: newRefs,
	}, nil
}

// validateExactIDs requires the feature id sets of table and seqs to
// be identical, reporting the offending ids in either direction.
func validateExactIDs(table *feature.Table, seqs feature.SeqSet) error {
	if err := validateTableSubset(table, seqs); err != nil {
		return err
	}
	var extra []string
	for _, id := range seqs.IDs() {
		if !table.HasFeature(id) {
			extra = append(extra, id)
		}
	}
	if len(extra) != 0 {
		sort.Strings(extra)
		return &feature.IDMismatchError{Missing: extra, From: "sequences", NotIn: "table"}
	}
	return nil
}

// validateTableSubset requires every table feature id to have a
// sequence.
func validateTableSubset(table *feature.Table, seqs feature.SeqSet) error {
	has := make(map[string]bool, len(seqs))
	for _, id := range seqs.IDs() {
		has[id] = true
	}
	var extra []string
	for _, id := range table.FeatureIDs() {
		if !has[id] {
			extra = append(extra, id)
		}
	}
	if len(extra) != 0 {
		return &feature.IDMismatchError{Missing: extra, From: "table", NotIn: "sequences"}
	}
	return nil
}

func writeSizedFile(path string, seqs feature.SeqSet, table *feature.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := feature.WriteSized(f, seqs, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseUCFile(path string) (*uc.ClusterMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return uc.Parse(f)
}

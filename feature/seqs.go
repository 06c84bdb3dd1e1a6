// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feature

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// sizeAnnotation is the abundance annotation appended to sequence
// ids passed to and received from the clustering tool.
const sizeAnnotation = ";size="

// Seq is a single named sequence.
type Seq struct {
	ID   string
	Desc string
	Seq  string
}

// SeqSet is an ordered collection of sequences with unique ids.
type SeqSet []Seq

// IDs returns the sequence ids in set order.
func (s SeqSet) IDs() []string {
	ids := make([]string, len(s))
	for i, e := range s {
		ids[i] = e.ID
	}
	return ids
}

// Index returns a map from id to sequence.
func (s SeqSet) Index() map[string]Seq {
	idx := make(map[string]Seq, len(s))
	for _, e := range s {
		idx[e.ID] = e
	}
	return idx
}

// StripSize returns id with a trailing abundance annotation removed.
// The annotation is a suffix, so the split is from the right in case
// the id itself contains the delimiter.
func StripSize(id string) string {
	if i := strings.LastIndex(id, sizeAnnotation); i >= 0 {
		return id[:i]
	}
	return id
}

// ReadSeqs reads fasta records from r. Duplicate ids are an error.
// When stripSizes is true, trailing abundance annotations are
// removed from the ids before they are used.
func ReadSeqs(r io.Reader, stripSizes bool) (SeqSet, error) {
	var set SeqSet
	seen := make(map[string]bool)
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		id := s.ID
		if stripSizes {
			id = StripSize(id)
		}
		if seen[id] {
			return nil, fmt.Errorf("feature: duplicate sequence id %q", id)
		}
		seen[id] = true
		set = append(set, Seq{ID: id, Desc: s.Desc, Seq: s.Seq.String()})
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return set, nil
}

// ReadSeqsFile reads fasta records from path, decompressing .gz
// transparently.
func ReadSeqsFile(path string, stripSizes bool) (SeqSet, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadSeqs(r, stripSizes)
}

// WriteSeqs writes the set as fasta records.
func WriteSeqs(w io.Writer, set SeqSet) error {
	fw := fasta.NewWriter(w, 60)
	for _, s := range set {
		l := linear.NewSeq(s.ID, alphabet.BytesToLetters([]byte(s.Seq)), alphabet.DNAredundant)
		l.Desc = s.Desc
		if _, err := fw.Write(l); err != nil {
			return err
		}
	}
	return nil
}

// WriteSeqsFile writes the set to path, compressing .gz
// transparently.
func WriteSeqsFile(path string, set SeqSet) error {
	w, err := createMaybeGzip(path)
	if err != nil {
		return err
	}
	if err := WriteSeqs(w, set); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteSized writes the set as fasta records with each id annotated
// with the feature's total abundance from the table, the form the
// clustering tool's abundance bookkeeping expects. A sequence with
// no table row, and any table row with no sequence, is an
// *IDMismatchError.
func WriteSized(w io.Writer, set SeqSet, t *Table) error {
	bw := bufio.NewWriter(w)
	seen := make(map[string]bool, len(set))
	for _, s := range set {
		if !t.HasFeature(s.ID) {
			return &IDMismatchError{Missing: []string{s.ID}, From: "sequences", NotIn: "table"}
		}
		seen[s.ID] = true
		size := int64(math.Round(t.FeatureSum(s.ID)))
		fmt.Fprintf(bw, ">%s%s%d\n%s\n", s.ID, sizeAnnotation, size, s.Seq)
	}
	var extra []string
	for _, id := range t.FeatureIDs() {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	if len(extra) != 0 {
		sort.Strings(extra)
		return &IDMismatchError{Missing: extra, From: "table", NotIn: "sequences"}
	}
	return bw.Flush()
}

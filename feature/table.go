// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feature provides the feature abundance table and
// sequence set types shared by the otukit pipelines.
package feature

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// IDMismatchError reports feature ids present in one input but
// missing from another. The offending ids are listed so data
// preparation problems can be diagnosed directly.
type IDMismatchError struct {
	Missing []string // sorted
	From    string   // input holding the extra ids, e.g. "table"
	NotIn   string   // input they are missing from, e.g. "sequences"
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("feature ids present in %s but not in %s: %s",
		e.From, e.NotIn, strings.Join(e.Missing, ", "))
}

// Table is a sparse feature×sample matrix of non-negative counts.
// Rows are feature ids, columns are sample ids. The zero cells are
// not stored.
type Table struct {
	counts  map[string]map[string]float64
	samples map[string]struct{}
}

// New returns an empty table.
func New() *Table {
	return &Table{
		counts:  make(map[string]map[string]float64),
		samples: make(map[string]struct{}),
	}
}

// Add accumulates count into the (feature, sample) cell. The sample
// is registered on the sample axis even when count is zero.
func (t *Table) Add(feature, sample string, count float64) {
	t.samples[sample] = struct{}{}
	row, ok := t.counts[feature]
	if !ok {
		row = make(map[string]float64)
		t.counts[feature] = row
	}
	row[sample] += count
}

// Get returns the count in the (feature, sample) cell.
func (t *Table) Get(feature, sample string) float64 {
	return t.counts[feature][sample]
}

// HasFeature reports whether the table has a row for id.
func (t *Table) HasFeature(id string) bool {
	_, ok := t.counts[id]
	return ok
}

// NumFeatures returns the number of feature rows.
func (t *Table) NumFeatures() int { return len(t.counts) }

// FeatureIDs returns the feature ids in sorted order.
func (t *Table) FeatureIDs() []string {
	ids := make([]string, 0, len(t.counts))
	for id := range t.counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SampleIDs returns the sample ids in sorted order.
func (t *Table) SampleIDs() []string {
	ids := make([]string, 0, len(t.samples))
	for id := range t.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FeatureSum returns the total abundance of the feature across all
// samples.
func (t *Table) FeatureSum(id string) float64 {
	row, ok := t.counts[id]
	if !ok {
		return 0
	}
	vals := make([]float64, 0, len(row))
	for _, v := range row {
		vals = append(vals, v)
	}
	return floats.Sum(vals)
}

// Sum returns the total abundance over all cells.
func (t *Table) Sum() float64 {
	sums := make([]float64, 0, len(t.counts))
	for id := range t.counts {
		sums = append(sums, t.FeatureSum(id))
	}
	return floats.Sum(sums)
}

// SampleSum returns the total abundance of the sample across all
// features.
func (t *Table) SampleSum(sample string) float64 {
	var vals []float64
	for _, row := range t.counts {
		if v, ok := row[sample]; ok {
			vals = append(vals, v)
		}
	}
	return floats.Sum(vals)
}

// Filter returns a new table restricted to the given feature rows,
// or with them removed when invert is true. The sample axis is
// preserved. Ids without a row are ignored.
func (t *Table) Filter(ids []string, invert bool) *Table {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := New()
	for s := range t.samples {
		out.samples[s] = struct{}{}
	}
	for id, row := range t.counts {
		if keep[id] == invert {
			continue
		}
		nr := make(map[string]float64, len(row))
		for s, v := range row {
			nr[s] = v
		}
		out.counts[id] = nr
	}
	return out
}

// Collapse returns a new table whose rows are the distinct cluster
// ids in m and whose (cluster, sample) cells are the sum of the
// member feature counts for that sample. The mapping must be total
// over the table's rows; an unmapped row is an error. No
// normalization is applied, so the grand total is conserved exactly.
func (t *Table) Collapse(m map[string]string) (*Table, error) {
	out := New()
	for s := range t.samples {
		out.samples[s] = struct{}{}
	}
	for _, id := range t.FeatureIDs() {
		cluster, ok := m[id]
		if !ok {
			return nil, fmt.Errorf("feature: no cluster assignment for feature %q", id)
		}
		for s, v := range t.counts[id] {
			out.Add(cluster, s, v)
		}
	}
	return out, nil
}

// Merge returns the row-wise union of t and other. A feature id
// present in both tables is an error; the colliding ids are listed.
func (t *Table) Merge(other *Table) (*Table, error) {
	var overlap []string
	for id := range other.counts {
		if _, ok := t.counts[id]; ok {
			overlap = append(overlap, id)
		}
	}
	if len(overlap) != 0 {
		sort.Strings(overlap)
		return nil, fmt.Errorf("feature: overlapping feature ids in merge: %s", strings.Join(overlap, ", "))
	}
	out := New()
	for _, src := range []*Table{t, other} {
		for s := range src.samples {
			out.samples[s] = struct{}{}
		}
		for id, row := range src.counts {
			nr := make(map[string]float64, len(row))
			for s, v := range row {
				nr[s] = v
			}
			out.counts[id] = nr
		}
	}
	return out, nil
}

// RelabelFeatures returns a new table with the feature rows renamed
// through idMap. A row id absent from idMap is an error.
func (t *Table) RelabelFeatures(idMap map[string]string) (*Table, error) {
	out := New()
	for s := range t.samples {
		out.samples[s] = struct{}{}
	}
	for id, row := range t.counts {
		nid, ok := idMap[id]
		if !ok {
			return nil, fmt.Errorf("feature: no relabeling for feature %q", id)
		}
		if _, ok := out.counts[nid]; ok {
			return nil, fmt.Errorf("feature: relabeling collapses %q onto an existing id", nid)
		}
		nr := make(map[string]float64, len(row))
		for s, v := range row {
			nr[s] = v
		}
		out.counts[nid] = nr
	}
	return out, nil
}

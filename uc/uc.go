// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uc parses UC-format cluster membership files produced by
// the clustering tool.
package uc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"otukit/feature"
)

// ErrEmpty is returned by Parse when no membership records were
// captured. In reference-based clustering this signals that nothing
// matched the reference.
var ErrEmpty = errors.New("uc: no membership records")

// UC records are tab separated with ten columns. Only the record
// type, query label and target label columns are consumed here.
const (
	typeField = iota
	_         // cluster number
	_         // size / length
	_         // percent identity
	_         // strand
	_         // unused
	_         // unused
	_         // compressed alignment
	queryField
	targetField

	numFields
)

// Record type markers.
const (
	Seed        = 'S' // new cluster seed
	Hit         = 'H' // query joined an existing cluster
	LibrarySeed = 'L' // reference sequence available as a cluster anchor
)

const sizeAnnotation = ";size="

// ClusterMap holds the feature to cluster assignment parsed from a
// UC file, along with per-feature total abundances where the file
// carried them.
type ClusterMap struct {
	clusterOf map[string]string
	counts    map[string]float64
}

// Parse reads UC records from r and builds the feature to cluster
// mapping. Seed records assign a feature to its own cluster with an
// unknown count; hit records assign the feature to the target
// cluster with the count taken from the query's abundance
// annotation. Library seed and other markers are ignored. If no
// records are captured the error is ErrEmpty.
func Parse(r io.Reader) (*ClusterMap, error) {
	cm := &ClusterMap{
		clusterOf: make(map[string]string),
		counts:    make(map[string]float64),
	}
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
		if len(fields[typeField]) != 1 {
			return nil, fmt.Errorf("uc: line %d: bad record type %q", n, fields[typeField])
		}
		marker := fields[typeField][0]
		if marker != Seed && marker != Hit {
			continue
		}
		if len(fields) < numFields {
			return nil, fmt.Errorf("uc: line %d: %d columns, want %d", n, len(fields), numFields)
		}
		switch marker {
		case Seed:
			id, _, _, err := splitSize(fields[queryField])
			if err != nil {
				return nil, fmt.Errorf("uc: line %d: %v", n, err)
			}
			if err := cm.add(id, id); err != nil {
				return nil, fmt.Errorf("uc: line %d: %v", n, err)
			}
		case Hit:
			cluster, _, _, err := splitSize(fields[targetField])
			if err != nil {
				return nil, fmt.Errorf("uc: line %d: %v", n, err)
			}
			id, count, hasCount, err := splitSize(fields[queryField])
			if err != nil {
				return nil, fmt.Errorf("uc: line %d: %v", n, err)
			}
			if err := cm.add(id, cluster); err != nil {
				return nil, fmt.Errorf("uc: line %d: %v", n, err)
			}
			if hasCount {
				cm.counts[id] = count
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cm.clusterOf) == 0 {
		return nil, ErrEmpty
	}
	return cm, nil
}

func (cm *ClusterMap) add(id, cluster string) error {
	if _, ok := cm.clusterOf[id]; ok {
		return fmt.Errorf("duplicate feature id %q", id)
	}
	cm.clusterOf[id] = cluster
	return nil
}

// stripAnnotations removes any trailing annotations from a label.
func stripAnnotations(label string) string {
	if i := strings.Index(label, ";"); i >= 0 {
		return label[:i]
	}
	return label
}

// splitSize decomposes an abundance-annotated label into the bare id
// and the count. The annotation is a suffix, so the label is split on
// the last occurrence in case the id itself contains the delimiter.
func splitSize(label string) (id string, count float64, hasCount bool, err error) {
	i := strings.LastIndex(label, sizeAnnotation)
	if i < 0 {
		return stripAnnotations(label), 0, false, nil
	}
	id = label[:i]
	s := strings.TrimSuffix(label[i+len(sizeAnnotation):], ";")
	count, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return "", 0, false, fmt.Errorf("bad abundance annotation in %q: %v", label, err)
	}
	return id, count, true, nil
}

// Len returns the number of features captured.
func (cm *ClusterMap) Len() int { return len(cm.clusterOf) }

// ClusterOf returns the cluster assignment for the feature.
func (cm *ClusterMap) ClusterOf(id string) (string, bool) {
	c, ok := cm.clusterOf[id]
	return c, ok
}

// Mapping returns a copy of the feature to cluster mapping.
func (cm *ClusterMap) Mapping() map[string]string {
	m := make(map[string]string, len(cm.clusterOf))
	for id, c := range cm.clusterOf {
		m[id] = c
	}
	return m
}

// Clusters returns the distinct cluster ids in sorted order.
func (cm *ClusterMap) Clusters() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range cm.clusterOf {
		if !seen[c] {
			seen[c] = true
			ids = append(ids, c)
		}
	}
	sort.Strings(ids)
	return ids
}

// Members returns the feature ids assigned to the cluster in sorted
// order.
func (cm *ClusterMap) Members(cluster string) []string {
	var ids []string
	for id, c := range cm.clusterOf {
		if c == cluster {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count returns the feature's total abundance if the UC file carried
// it or it has been filled from a table.
func (cm *ClusterMap) Count(id string) (float64, bool) {
	c, ok := cm.counts[id]
	return c, ok
}

// FillCounts looks up the abundance of every feature without a count
// from the table's row sums. Seed records do not carry counts, so
// this must be called before representative selection. A feature
// with no table row is an error.
func (cm *ClusterMap) FillCounts(t *feature.Table) error {
	for id := range cm.clusterOf {
		if _, ok := cm.counts[id]; ok {
			continue
		}
		if !t.HasFeature(id) {
			return &feature.IDMismatchError{Missing: []string{id}, From: "cluster membership", NotIn: "table"}
		}
		cm.counts[id] = t.FeatureSum(id)
	}
	return nil
}

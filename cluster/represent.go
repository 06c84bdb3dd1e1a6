// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cluster

import (
	"fmt"

	"otukit/feature"
	"otukit/uc"
)

// Representatives selects one sequence per cluster. Within a cluster
// the feature with the highest total abundance wins; ties go to the
// lexicographically smallest feature id, so selection is a strict
// total order and is reproducible regardless of input ordering. The
// selected feature's sequence is emitted under the cluster's id,
// clusters in sorted id order.
//
// Every member must have a count (see ClusterMap.FillCounts) and a
// sequence in seqs; a member without a sequence means the inputs are
// no longer consistent and is a fatal error.
func Representatives(cm *uc.ClusterMap, seqs feature.SeqSet) (feature.SeqSet, error) {
	idx := seqs.Index()
	var out feature.SeqSet
	for _, cluster := range cm.Clusters() {
		best := ""
		bestCount := 0.0
		// Members are sorted, so on equal counts the first seen
		// (smallest id) is kept.
		for _, id := range cm.Members(cluster) {
			count, ok := cm.Count(id)
			if !ok {
				return nil, fmt.Errorf("cluster: no abundance for feature %q; counts must be filled before selection", id)
			}
			if best == "" || count > bestCount {
				best, bestCount = id, count
			}
		}
		s, ok := idx[best]
		if !ok {
			return nil, &feature.IDMismatchError{Missing: []string{best}, From: "cluster membership", NotIn: "sequences"}
		}
		out = append(out, feature.Seq{ID: cluster, Seq: s.Seq})
	}
	return out, nil
}

// mergeSeqs returns the concatenation of the given sequence sets,
// erroring on any id collision between them.
func mergeSeqs(sets ...feature.SeqSet) (feature.SeqSet, error) {
	seen := make(map[string]bool)
	var out feature.SeqSet
	for _, set := range sets {
		for _, s := range set {
			if seen[s.ID] {
				return nil, fmt.Errorf("cluster: sequence id %q present in both merged sets", s.ID)
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feature

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	t := New()
	t.Add("feature1", "sample1", 60)
	t.Add("feature1", "sample2", 40)
	t.Add("feature2", "sample1", 1)
	t.Add("feature3", "sample2", 4)
	t.Add("feature4", "sample1", 3)
	t.Add("feature4", "sample2", 4)
	return t
}

func TestSums(t *testing.T) {
	tab := testTable()
	if got := tab.FeatureSum("feature1"); got != 100 {
		t.Errorf("FeatureSum(feature1) = %v, want 100", got)
	}
	if got := tab.FeatureSum("absent"); got != 0 {
		t.Errorf("FeatureSum(absent) = %v, want 0", got)
	}
	if got := tab.SampleSum("sample1"); got != 64 {
		t.Errorf("SampleSum(sample1) = %v, want 64", got)
	}
	if got := tab.Sum(); got != 112 {
		t.Errorf("Sum() = %v, want 112", got)
	}
}

func TestCollapseConservation(t *testing.T) {
	tab := testTable()
	m := map[string]string{
		"feature1": "c1",
		"feature2": "c1",
		"feature3": "c2",
		"feature4": "c2",
	}
	collapsed, err := tab.Collapse(m)
	require.NoError(t, err)

	require.Equal(t, []string{"c1", "c2"}, collapsed.FeatureIDs())
	require.Equal(t, 61.0, collapsed.Get("c1", "sample1"))
	require.Equal(t, 40.0, collapsed.Get("c1", "sample2"))
	require.Equal(t, 3.0, collapsed.Get("c2", "sample1"))
	require.Equal(t, 8.0, collapsed.Get("c2", "sample2"))

	// The grand total and every per-sample total are conserved.
	require.Equal(t, tab.Sum(), collapsed.Sum())
	for _, s := range tab.SampleIDs() {
		require.Equal(t, tab.SampleSum(s), collapsed.SampleSum(s), "sample %s", s)
	}
}

func TestCollapseTrivialClusters(t *testing.T) {
	tab := testTable()
	m := map[string]string{
		"feature1": "feature1",
		"feature2": "feature2",
		"feature3": "feature3",
		"feature4": "feature4",
	}
	collapsed, err := tab.Collapse(m)
	require.NoError(t, err)
	require.Equal(t, tab.FeatureIDs(), collapsed.FeatureIDs())
	for _, id := range tab.FeatureIDs() {
		for _, s := range tab.SampleIDs() {
			require.Equal(t, tab.Get(id, s), collapsed.Get(id, s))
		}
	}
}

func TestCollapseUnmappedRow(t *testing.T) {
	tab := testTable()
	_, err := tab.Collapse(map[string]string{"feature1": "c1"})
	if err == nil || !strings.Contains(err.Error(), "feature") {
		t.Fatalf("expected unmapped row error, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	tab := testTable()

	kept := tab.Filter([]string{"feature1", "feature3"}, false)
	require.Equal(t, []string{"feature1", "feature3"}, kept.FeatureIDs())
	// The sample axis survives filtering.
	require.Equal(t, tab.SampleIDs(), kept.SampleIDs())

	dropped := tab.Filter([]string{"feature1", "feature3"}, true)
	require.Equal(t, []string{"feature2", "feature4"}, dropped.FeatureIDs())

	require.Equal(t, tab.Sum(), kept.Sum()+dropped.Sum())
}

func TestMerge(t *testing.T) {
	a := New()
	a.Add("c1", "sample1", 5)
	b := New()
	b.Add("c2", "sample2", 7)

	merged, err := a.Merge(b)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, merged.FeatureIDs())
	require.Equal(t, []string{"sample1", "sample2"}, merged.SampleIDs())
	require.Equal(t, 12.0, merged.Sum())
}

func TestMergeOverlap(t *testing.T) {
	a := New()
	a.Add("c1", "sample1", 5)
	b := New()
	b.Add("c1", "sample2", 7)

	_, err := a.Merge(b)
	if err == nil || !strings.Contains(err.Error(), "c1") {
		t.Fatalf("expected overlap error naming c1, got %v", err)
	}
}

func TestRelabelFeatures(t *testing.T) {
	tab := New()
	tab.Add("old1", "sample1", 2)
	tab.Add("old2", "sample1", 3)

	relabeled, err := tab.RelabelFeatures(map[string]string{"old1": "new1", "old2": "new2"})
	require.NoError(t, err)
	require.Equal(t, []string{"new1", "new2"}, relabeled.FeatureIDs())
	require.Equal(t, 2.0, relabeled.Get("new1", "sample1"))

	_, err = tab.RelabelFeatures(map[string]string{"old1": "new1"})
	require.Error(t, err)
}

func TestTSVRoundTrip(t *testing.T) {
	tab := testTable()
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, tab))

	got, err := ReadTSV(&buf)
	require.NoError(t, err)
	require.Equal(t, tab.FeatureIDs(), got.FeatureIDs())
	require.Equal(t, tab.SampleIDs(), got.SampleIDs())
	for _, id := range tab.FeatureIDs() {
		for _, s := range tab.SampleIDs() {
			if math.Abs(tab.Get(id, s)-got.Get(id, s)) > 1e-12 {
				t.Errorf("cell (%s,%s) = %v, want %v", id, s, got.Get(id, s), tab.Get(id, s))
			}
		}
	}
}

func TestReadTSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no header", "feature1\t10\n"},
		{"empty", ""},
		{"ragged row", "#OTU ID\tsample1\tsample2\nfeature1\t10\n"},
		{"bad count", "#OTU ID\tsample1\nfeature1\tlots\n"},
		{"negative count", "#OTU ID\tsample1\nfeature1\t-4\n"},
		{"duplicate feature", "#OTU ID\tsample1\nfeature1\t1\nfeature1\t2\n"},
	}
	for _, test := range tests {
		if _, err := ReadTSV(strings.NewReader(test.in)); err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}

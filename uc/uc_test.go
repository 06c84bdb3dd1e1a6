// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"otukit/feature"
)

const clusteringUC = `S	0	20	*	*	*	*	*	feature1	*
H	0	20	100.0	+	0	0	20M	feature2;size=1	feature1;size=100
S	1	22	*	*	*	*	*	feature3;size=4	*
H	1	22	98.0	+	0	0	22M	feature4;size=7	feature3;size=4
L	2	30	*	*	*	*	*	r1	*
C	0	2	*	*	*	*	*	feature1	*
`

func TestParse(t *testing.T) {
	cm, err := Parse(strings.NewReader(clusteringUC))
	require.NoError(t, err)

	require.Equal(t, 4, cm.Len())
	require.Equal(t, []string{"feature1", "feature3"}, cm.Clusters())
	require.Equal(t, []string{"feature1", "feature2"}, cm.Members("feature1"))
	require.Equal(t, []string{"feature3", "feature4"}, cm.Members("feature3"))

	got, ok := cm.ClusterOf("feature4")
	require.True(t, ok)
	require.Equal(t, "feature3", got)

	// Hit records carry counts from the abundance annotation.
	count, ok := cm.Count("feature2")
	require.True(t, ok)
	require.Equal(t, 1.0, count)

	// Seed records do not.
	_, ok = cm.Count("feature1")
	require.False(t, ok)
	_, ok = cm.Count("feature3")
	require.False(t, ok)
}

func TestParseStripsAnnotations(t *testing.T) {
	const in = `S	0	20	*	*	*	*	*	feature1;size=204;	*
H	0	20	100.0	+	0	0	20M	feature2;size=4;	feature1;size=204;
`
	cm, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cm.ClusterOf("feature1"); !ok {
		t.Error("expected seed id to be stripped of annotations")
	}
	c, ok := cm.ClusterOf("feature2")
	if !ok || c != "feature1" {
		t.Errorf("got cluster %q for feature2, want feature1", c)
	}
	count, ok := cm.Count("feature2")
	if !ok || count != 4 {
		t.Errorf("got count %v for feature2, want 4", count)
	}
}

// Abundance annotations are suffixes; an id containing the delimiter
// must be split on the last occurrence.
func TestParseSplitsSizeFromRight(t *testing.T) {
	const in = `S	0	20	*	*	*	*	*	seed	*
H	0	20	100.0	+	0	0	20M	odd;size=x;size=12	seed
`
	cm, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, ok := cm.Count("odd;size=x")
	if !ok || count != 12 {
		t.Errorf("got count %v, ok %v for odd id, want 12", count, ok)
	}
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	const in = "# a comment\n\nS\t0\t20\t*\t*\t*\t*\t*\tfeature1\t*\n"
	cm, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cm.Len() != 1 {
		t.Errorf("got %d features, want 1", cm.Len())
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{
		"",
		"# only a comment\n",
		"L\t0\t30\t*\t*\t*\t*\t*\tr1\t*\nN\t*\t*\t*\t*\t*\t*\t*\tfeature1\t*\n",
	} {
		_, err := Parse(strings.NewReader(in))
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("Parse(%q) error = %v, want ErrEmpty", in, err)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"truncated seed", "S\t0\t20\tfeature1\n"},
		{"truncated hit", "H\t0\t20\t100.0\tfeature2\n"},
		{"bad size", "S\t0\t20\t*\t*\t*\t*\t*\tseed\t*\nH\t0\t20\t100.0\t+\t0\t0\t20M\tfeature2;size=many\tseed\n"},
		{"duplicate feature", "S\t0\t20\t*\t*\t*\t*\t*\tfeature1\t*\nS\t1\t20\t*\t*\t*\t*\t*\tfeature1\t*\n"},
	}
	for _, test := range tests {
		_, err := Parse(strings.NewReader(test.in))
		if err == nil || errors.Is(err, ErrEmpty) {
			t.Errorf("%s: error = %v, want parse failure", test.name, err)
		}
	}
}

func TestFillCounts(t *testing.T) {
	cm, err := Parse(strings.NewReader(clusteringUC))
	require.NoError(t, err)

	table := feature.New()
	table.Add("feature1", "sample1", 60)
	table.Add("feature1", "sample2", 40)
	table.Add("feature2", "sample1", 1)
	table.Add("feature3", "sample2", 4)
	table.Add("feature4", "sample1", 7)

	require.NoError(t, cm.FillCounts(table))

	count, ok := cm.Count("feature1")
	require.True(t, ok)
	require.Equal(t, 100.0, count)

	// Hit counts are not overwritten by the table.
	count, ok = cm.Count("feature2")
	require.True(t, ok)
	require.Equal(t, 1.0, count)
}

func TestFillCountsMissingFeature(t *testing.T) {
	cm, err := Parse(strings.NewReader(clusteringUC))
	require.NoError(t, err)

	table := feature.New()
	table.Add("feature2", "sample1", 1)

	err = cm.FillCounts(table)
	var mismatch *feature.IDMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Contains(t, mismatch.Missing, "feature1")
}

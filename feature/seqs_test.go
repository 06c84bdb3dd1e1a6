// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feature

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSeqs(t *testing.T) {
	const in = ">feature1 first feature\nACGTACGT\n>feature2\nTTGCA\nACGT\n"
	set, err := ReadSeqs(strings.NewReader(in), false)
	require.NoError(t, err)
	require.Equal(t, SeqSet{
		{ID: "feature1", Desc: "first feature", Seq: "ACGTACGT"},
		{ID: "feature2", Seq: "TTGCAACGT"},
	}, set)
}

func TestReadSeqsStripSizes(t *testing.T) {
	const in = ">feature1;size=100\nACGT\n>feature2;size=4\nTTGC\n"
	set, err := ReadSeqs(strings.NewReader(in), true)
	require.NoError(t, err)
	require.Equal(t, []string{"feature1", "feature2"}, set.IDs())
}

func TestReadSeqsDuplicateID(t *testing.T) {
	const in = ">feature1\nACGT\n>feature1\nTTGC\n"
	_, err := ReadSeqs(strings.NewReader(in), false)
	if err == nil || !strings.Contains(err.Error(), "feature1") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestStripSize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"feature1;size=100", "feature1"},
		{"feature1", "feature1"},
		{"odd;size=x;size=12", "odd;size=x"},
	}
	for _, test := range tests {
		if got := StripSize(test.in); got != test.want {
			t.Errorf("StripSize(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestWriteSeqsRoundTrip(t *testing.T) {
	set := SeqSet{
		{ID: "feature1", Desc: "first", Seq: "ACGTACGT"},
		{ID: "feature2", Seq: "TTGC"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSeqs(&buf, set))

	got, err := ReadSeqs(&buf, false)
	require.NoError(t, err)
	require.Equal(t, set, got)
}

func TestWriteSized(t *testing.T) {
	tab := New()
	tab.Add("feature1", "sample1", 60)
	tab.Add("feature1", "sample2", 40)
	tab.Add("feature2", "sample1", 1)

	set := SeqSet{
		{ID: "feature1", Seq: "ACGT"},
		{ID: "feature2", Seq: "TTGC"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSized(&buf, set, tab))
	require.Equal(t, ">feature1;size=100\nACGT\n>feature2;size=1\nTTGC\n", buf.String())
}

func TestWriteSizedSequenceNotInTable(t *testing.T) {
	tab := New()
	tab.Add("feature1", "sample1", 1)

	set := SeqSet{
		{ID: "feature1", Seq: "ACGT"},
		{ID: "feature9", Seq: "TTGC"},
	}
	err := WriteSized(&bytes.Buffer{}, set, tab)
	var mismatch *IDMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, []string{"feature9"}, mismatch.Missing)
	require.Equal(t, "sequences", mismatch.From)
}

func TestWriteSizedExtraTableIDs(t *testing.T) {
	tab := New()
	tab.Add("feature1", "sample1", 1)
	tab.Add("feature2", "sample1", 2)
	tab.Add("feature3", "sample1", 3)

	set := SeqSet{{ID: "feature1", Seq: "ACGT"}}
	err := WriteSized(&bytes.Buffer{}, set, tab)
	var mismatch *IDMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, []string{"feature2", "feature3"}, mismatch.Missing)
	require.Equal(t, "table", mismatch.From)
}

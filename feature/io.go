// Copyright ©2024 The otukit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// openMaybeGzip opens path for reading, decompressing transparently
// when the name carries a .gz suffix.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReadCloser{zr: zr, f: f}, nil
}

type gzipReadCloser struct {
	zr *pgzip.Reader
	f  *os.File
}

func (r *gzipReadCloser) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *gzipReadCloser) Close() error {
	if err := r.zr.Close(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// createMaybeGzip creates path for writing, compressing transparently
// when the name carries a .gz suffix.
func createMaybeGzip(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	return &gzipWriteCloser{zw: pgzip.NewWriter(f), f: f}, nil
}

type gzipWriteCloser struct {
	zw *pgzip.Writer
	f  *os.File
}

func (w *gzipWriteCloser) Write(p []byte) (int, error) { return w.zw.Write(p) }

func (w *gzipWriteCloser) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// ReadTSV reads a feature table in the tab-separated observation
// format: a header line beginning "#OTU ID" followed by one row per
// feature. Zero cells are not stored.
func ReadTSV(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)

	var samples []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return nil, fmt.Errorf("feature: missing #OTU ID header line")
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("feature: header has no sample columns")
		}
		samples = fields[1:]
		break
	}
	if samples == nil {
		return nil, fmt.Errorf("feature: empty table input")
	}

	t := New()
	for _, s := range samples {
		t.samples[s] = struct{}{}
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(samples)+1 {
			return nil, fmt.Errorf("feature: row %q has %d columns, want %d",
				fields[0], len(fields)-1, len(samples))
		}
		id := fields[0]
		if t.HasFeature(id) {
			return nil, fmt.Errorf("feature: duplicate feature id %q", id)
		}
		t.counts[id] = make(map[string]float64)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("feature: bad count for feature %q, sample %q: %v", id, samples[i], err)
			}
			if v < 0 {
				return nil, fmt.Errorf("feature: negative count for feature %q, sample %q", id, samples[i])
			}
			if v != 0 {
				t.counts[id][samples[i]] = v
			}
		}
	}
	return t, sc.Err()
}

// WriteTSV writes the table in the tab-separated observation format
// with features and samples in sorted order.
func WriteTSV(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	samples := t.SampleIDs()
	fmt.Fprint(bw, "#OTU ID")
	for _, s := range samples {
		fmt.Fprintf(bw, "\t%s", s)
	}
	fmt.Fprintln(bw)
	for _, id := range t.FeatureIDs() {
		fmt.Fprint(bw, id)
		for _, s := range samples {
			fmt.Fprintf(bw, "\t%s", strconv.FormatFloat(t.Get(id, s), 'f', -1, 64))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// ReadTSVFile reads a feature table from path, decompressing .gz
// transparently.
func ReadTSVFile(path string) (*Table, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadTSV(r)
}

// WriteTSVFile writes the table to path, compressing .gz
// transparently.
func WriteTSVFile(path string, t *Table) error {
	w, err := createMaybeGzip(path)
	if err != nil {
		return err
	}
	if err := WriteTSV(w, t); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

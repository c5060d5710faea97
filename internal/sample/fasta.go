package sample

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxLineSize = 1 << 20

// SplitFasta reads a combined multi-sample FASTA stream and groups reads by
// sample label, returning one Sample per label in first-seen order. The
// label of a read is the part of its header token before the last
// underscore ("sample1_42" belongs to "sample1"); headers without an
// underscore are their own label. Each Sample carries the merged k-mer
// index of all its reads.
func SplitFasta(r io.Reader, k int) ([]*Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		order   []string
		byLabel = map[string]*Sample{}
		label   string
		seq     strings.Builder
	)

	flush := func() {
		if label == "" || seq.Len() == 0 {
			seq.Reset()
			return
		}
		s, ok := byLabel[label]
		if !ok {
			s = New(label, map[string]int{})
			byLabel[label] = s
			order = append(order, label)
		}
		AddKmers(s.Kmers, seq.String(), k)
		seq.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			label = headerLabel(line)
			continue
		}
		if label == "" {
			return nil, fmt.Errorf("fasta: sequence data before first header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fasta: %w", err)
	}
	flush()

	if len(order) == 0 {
		return nil, fmt.Errorf("fasta: no samples found")
	}
	samples := make([]*Sample, 0, len(order))
	for _, name := range order {
		samples = append(samples, byLabel[name])
	}
	return samples, nil
}

// ReadFasta opens path and splits it into per-sample units.
func ReadFasta(path string, k int) ([]*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := SplitFasta(f, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

func headerLabel(header string) string {
	token := strings.TrimPrefix(header, ">")
	if i := strings.IndexAny(token, " \t"); i >= 0 {
		token = token[:i]
	}
	if i := strings.LastIndex(token, "_"); i > 0 {
		return token[:i]
	}
	return token
}

package pwmatrix

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mgsearch/internal/sample"
)

const (
	matrixFile  = "pwmatrix.tsv"
	samplesFile = "samples.json"

	// unknownToken marks an uncomputed cell in the persisted table.
	unknownToken = "N/A"
)

type samplesPayload struct {
	Metric  string                    `json:"metric"`
	Samples map[string]map[string]int `json:"samples"`
}

// Save writes the matrix as a labeled square TSV table, using unknownToken
// for unfilled cells, plus the label-to-fingerprint association as JSON.
func (m *Matrix) Save(dir string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, matrixFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "id\t%s\n", strings.Join(m.labels, "\t"))
	for _, row := range m.labels {
		w.WriteString(row)
		for _, col := range m.labels {
			w.WriteByte('\t')
			switch {
			case row == col:
				w.WriteByte('0')
			default:
				if v, ok := m.cells[pairKey(row, col)]; ok {
					w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
				} else {
					w.WriteString(unknownToken)
				}
			}
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return err
	}

	payload := samplesPayload{
		Metric:  m.metricName,
		Samples: make(map[string]map[string]int, len(m.samples)),
	}
	for name, s := range m.samples {
		payload.Samples[name] = s.Kmers
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, samplesFile), data, 0o644)
}

// Load restores a matrix previously written by Save. Unknown cells stay
// unknown and fill lazily on first access.
func Load(dir string) (*Matrix, error) {
	data, err := os.ReadFile(filepath.Join(dir, samplesFile))
	if err != nil {
		return nil, err
	}
	var payload samplesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("pwmatrix: samples file: %w", err)
	}

	m, err := New(payload.Metric)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, matrixFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	if !scanner.Scan() {
		return nil, fmt.Errorf("pwmatrix: matrix file is empty")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 2 || header[0] != "id" {
		return nil, fmt.Errorf("pwmatrix: malformed matrix header")
	}
	cols := header[1:]

	for _, name := range cols {
		kmers, ok := payload.Samples[name]
		if !ok {
			return nil, fmt.Errorf("pwmatrix: label %q has no sample association", name)
		}
		m.addLocked(sample.New(name, kmers))
	}

	rows := 0
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(cols)+1 {
			return nil, fmt.Errorf("pwmatrix: row %q has %d cells, want %d", fields[0], len(fields)-1, len(cols))
		}
		row := fields[0]
		if _, ok := m.samples[row]; !ok {
			return nil, fmt.Errorf("pwmatrix: row label %q missing from header", row)
		}
		rows++
		for i, cell := range fields[1:] {
			col := cols[i]
			if row == col || cell == unknownToken {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("pwmatrix: cell (%s, %s): %w", row, col, err)
			}
			key := pairKey(row, col)
			if prev, ok := m.cells[key]; ok && prev != v {
				return nil, fmt.Errorf("pwmatrix: asymmetric cell (%s, %s): %g != %g", row, col, prev, v)
			}
			m.cells[key] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if rows != len(cols) {
		return nil, fmt.Errorf("pwmatrix: table is not square: %d rows, %d columns", rows, len(cols))
	}
	return m, nil
}

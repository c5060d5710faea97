// Package sample holds per-sample k-mer fingerprints and the preprocessing
// that produces them from combined multi-sample FASTA input.
package sample

// Sample pairs an immutable label with its sparse k-mer frequency map.
// Samples are referenced by name everywhere else and never copied.
type Sample struct {
	Name  string
	Kmers map[string]int
}

func New(name string, kmers map[string]int) *Sample {
	if kmers == nil {
		kmers = map[string]int{}
	}
	return &Sample{Name: name, Kmers: kmers}
}

// Reads returns the total k-mer occurrence count across the fingerprint.
func (s *Sample) Reads() int {
	total := 0
	for _, c := range s.Kmers {
		total += c
	}
	return total
}

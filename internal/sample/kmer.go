package sample

import "strings"

// CountKmers slides a window of size k over seq and counts every window made
// of unambiguous bases. Windows containing characters outside ACGT are
// skipped. Sequences shorter than k produce an empty map.
func CountKmers(seq string, k int) map[string]int {
	counts := map[string]int{}
	if k <= 0 || len(seq) < k {
		return counts
	}
	seq = strings.ToUpper(seq)
	for i := 0; i+k <= len(seq); i++ {
		window := seq[i : i+k]
		if !unambiguous(window) {
			continue
		}
		counts[window]++
	}
	return counts
}

func unambiguous(window string) bool {
	for i := 0; i < len(window); i++ {
		switch window[i] {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// AddKmers merges the k-mer counts of seq into counts in place.
func AddKmers(counts map[string]int, seq string, k int) {
	for kmer, c := range CountKmers(seq, k) {
		counts[kmer] += c
	}
}

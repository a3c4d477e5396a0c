package broadcast

// preflightOverheadSeconds pads the advisory estimate for audience
// resolution and per-chunk jitter.
const preflightOverheadSeconds = 5

// chunkRecipients partitions rs into groups of at most size, preserving
// order. Every recipient lands in exactly one chunk.
func chunkRecipients(rs []Recipient, size int) [][]Recipient {
	if size <= 0 || len(rs) == 0 {
		return nil
	}
	chunks := make([][]Recipient, 0, (len(rs)+size-1)/size)
	for start := 0; start < len(rs); start += size {
		end := start + size
		if end > len(rs) {
			end = len(rs)
		}
		chunks = append(chunks, rs[start:end])
	}
	return chunks
}

// EstimateSeconds returns the advisory completion estimate for n
// recipients: one pacing window per chunk plus fixed overhead.
func EstimateSeconds(n, chunkSize int) int {
	if n <= 0 || chunkSize <= 0 {
		return preflightOverheadSeconds
	}
	chunks := (n + chunkSize - 1) / chunkSize
	return chunks + preflightOverheadSeconds
}

// SplitText splits s into fixed-width segments of at most limit runes.
// The split is deliberately naive (no word-boundary awareness) but never
// lands mid-rune.
func SplitText(s string, limit int) []string {
	if limit <= 0 {
		return []string{s}
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	parts := make([]string, 0, (len(rs)+limit-1)/limit)
	for start := 0; start < len(rs); start += limit {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		parts = append(parts, string(rs[start:end]))
	}
	return parts
}

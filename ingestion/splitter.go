package ingestion

// SplitText splits content into chunks of at most size characters with
// overlap characters shared between consecutive chunks. Cut points prefer a
// paragraph break, then a sentence end, then a hard cut, so chunks avoid
// mid-word breaks where the text allows it. Deterministic for fixed input
// and config; callers validate 0 <= overlap < size up front.
func SplitText(content string, size, overlap int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{content}
	}

	chunks := make([]string, 0, len(runes)/size+1)
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}

		// A cut before start+overlap+1 would make the next window start at
		// or before the current one.
		minCut := start + overlap + 1
		cut := findCut(runes, minCut, end)

		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlap
	}
}

func findCut(runes []rune, min, max int) int {
	if p := lastParagraphBreak(runes, min, max); p > 0 {
		return p
	}
	if p := lastSentenceEnd(runes, min, max); p > 0 {
		return p
	}
	return max
}

// lastParagraphBreak returns the position just past the last "\n\n" in
// [min, max), or 0 when none qualifies.
func lastParagraphBreak(runes []rune, min, max int) int {
	for i := max; i > min; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	return 0
}

// lastSentenceEnd returns the position just past the last sentence
// terminator followed by whitespace in [min, max), or 0 when none qualifies.
func lastSentenceEnd(runes []rune, min, max int) int {
	for i := max; i > min; i-- {
		if !isSpace(runes[i-1]) {
			continue
		}
		switch runes[i-2] {
		case '.', '!', '?':
			return i
		}
	}
	return 0
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

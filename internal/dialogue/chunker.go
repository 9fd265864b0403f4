package dialogue

import "strings"

// SentenceChunker cuts a token stream into sentence chunks for synthesis.
// Boundaries are terminal punctuation and newlines; a chunk is held back
// until it carries the minimum word count so the synthesizer never
// receives pathologically short fragments.
type SentenceChunker struct {
	minWords int
	buf      strings.Builder
}

// NewSentenceChunker builds a chunker with the given minimum chunk length.
func NewSentenceChunker(minWords int) *SentenceChunker {
	if minWords < 1 {
		minWords = 1
	}
	return &SentenceChunker{minWords: minWords}
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}

// Feed appends a token delta and returns any chunks completed by it.
func (c *SentenceChunker) Feed(delta string) []string {
	var chunks []string
	for _, r := range delta {
		c.buf.WriteRune(r)
		if !isBoundary(r) {
			continue
		}
		candidate := strings.TrimSpace(c.buf.String())
		if len(strings.Fields(candidate)) >= c.minWords {
			chunks = append(chunks, candidate)
			c.buf.Reset()
		}
		// short fragments stay buffered and ride into the next sentence
	}
	return chunks
}

// Flush returns whatever is buffered, boundary or not. Called when the
// stream ends.
func (c *SentenceChunker) Flush() (string, bool) {
	out := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return out, out != ""
}

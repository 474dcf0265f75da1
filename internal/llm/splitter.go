package llm

import (
	"strings"
)

// TextSplitter breaks source files into overlapping chunks for embedding.
// Sizes are measured in runes.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewCodeSplitter returns the splitter used by the snippet indexer.
func NewCodeSplitter() *TextSplitter {
	return &TextSplitter{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		Separators:   []string{"\nfunc ", "\nclass ", "\ndef ", "\n\n", "\n"},
	}
}

// Split returns the non-empty chunks of text. Every chunk is at most ChunkSize runes.
func (s *TextSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" || s.ChunkSize <= 0 {
		return nil
	}
	pieces := s.splitRecursive(text, s.Separators)

	var chunks []string
	for _, c := range s.merge(pieces) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// splitRecursive cuts text on the first separator that occurs in it, keeping the
// separator at the start of the following piece, and descends into pieces that
// are still too long.
func (s *TextSplitter) splitRecursive(text string, seps []string) []string {
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}
	for i, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, piece := range splitKeep(text, sep) {
			if runeLen(piece) > s.ChunkSize {
				out = append(out, s.splitRecursive(piece, seps[i+1:])...)
			} else {
				out = append(out, piece)
			}
		}
		return out
	}
	return splitRunes(text, s.ChunkSize)
}

// merge packs consecutive pieces into chunks, carrying up to ChunkOverlap runes
// from the tail of the previous chunk into the next one.
func (s *TextSplitter) merge(pieces []string) []string {
	overlap := s.ChunkOverlap
	if overlap < 0 || overlap >= s.ChunkSize {
		overlap = 0
	}

	var (
		chunks []string
		cur    []rune
	)
	for _, p := range pieces {
		pr := []rune(p)
		if len(cur) > 0 && len(cur)+len(pr) > s.ChunkSize {
			chunks = append(chunks, string(cur))
			tail := tailRunes(cur, overlap)
			if len(tail)+len(pr) > s.ChunkSize {
				tail = nil
			}
			cur = append([]rune{}, tail...)
		}
		cur = append(cur, pr...)
	}
	if len(cur) > 0 {
		chunks = append(chunks, string(cur))
	}
	return chunks
}

func splitKeep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitRunes(text string, size int) []string {
	r := []rune(text)
	var out []string
	for len(r) > 0 {
		n := min(size, len(r))
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return out
}

func tailRunes(r []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(r) <= n {
		return r
	}
	return r[len(r)-n:]
}

func runeLen(s string) int {
	return len([]rune(s))
}

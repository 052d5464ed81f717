package service

import (
	"strings"
)

// ChunkConfig controls how extracted PDF text is split for embedding.
type ChunkConfig struct {
	Size       int
	Overlap    int
	Separators []string
}

// DefaultSeparators are tried in order: paragraphs, sentence ends, lines, words.
// When none fits, the chunk is cut at Size.
var DefaultSeparators = []string{
	"\n\n",
	"。", "！", "？",
	". ", "! ", "? ",
	"；", "; ",
	"\n",
	" ",
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:       1000,
		Overlap:    200,
		Separators: DefaultSeparators,
	}
}

// Segment is a chunk of text and its rune offset in the source text.
type Segment struct {
	Text  string
	Start int
}

// Splitter produces overlapping segments no longer than Size runes.
type Splitter struct {
	cfg        ChunkConfig
	separators [][]rune
}

func NewSplitter(cfg ChunkConfig) *Splitter {
	defaults := DefaultChunkConfig()
	if cfg.Size <= 0 {
		cfg.Size = defaults.Size
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = defaults.Overlap
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = defaults.Separators
	}

	seps := make([][]rune, 0, len(cfg.Separators))
	for _, s := range cfg.Separators {
		if s != "" {
			seps = append(seps, []rune(s))
		}
	}
	return &Splitter{cfg: cfg, separators: seps}
}

// Split returns the segments of text in order. Consecutive segments share
// Overlap runes unless a segment had to be cut shorter than that.
func (s *Splitter) Split(text string) []Segment {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(runes)/s.cfg.Size+1)
	start := 0
	for start < len(runes) {
		end := start + s.cfg.Size
		if end >= len(runes) {
			segments = append(segments, Segment{Text: string(runes[start:]), Start: start})
			break
		}

		end = s.cutPoint(runes, start, end)
		segments = append(segments, Segment{Text: string(runes[start:end]), Start: start})

		next := end - s.cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return segments
}

// cutPoint finds the latest separator boundary in (minCut, end], trying
// separators in priority order. It falls back to a hard cut at end.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	minCut := start + s.cfg.Size/2
	if floor := start + s.cfg.Overlap + 1; floor > minCut {
		minCut = floor
	}
	if minCut >= end {
		return end
	}

	for _, sep := range s.separators {
		for p := end; p > minCut; p-- {
			if p-len(sep) < start {
				break
			}
			if hasSeparatorAt(runes, p, sep) {
				return p
			}
		}
	}
	return end
}

func hasSeparatorAt(runes []rune, end int, sep []rune) bool {
	offset := end - len(sep)
	for i, r := range sep {
		if runes[offset+i] != r {
			return false
		}
	}
	return true
}

// nonEmptySegments drops segments that are only whitespace.
func nonEmptySegments(segments []Segment) []Segment {
	out := segments[:0:0]
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			out = append(out, seg)
		}
	}
	return out
}

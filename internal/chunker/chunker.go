package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Piece is one window of the source text. StartChar/EndChar are byte
// offsets into the original text, before whitespace trimming.
type Piece struct {
	Index     int
	Text      string
	StartChar int
	EndChar   int
}

// Chunker splits plain text into overlapping windows, preferring to break
// at a sentence or line boundary when one lands in the second half of the
// window.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var pieces []Piece
	start := 0
	for start < len(text) {
		end := start + c.size
		last := false
		if end >= len(text) {
			end = len(text)
			last = true
		} else {
			end = boundAtRune(text, end)
			window := text[start:end]
			breakPoint := strings.LastIndexByte(window, '.')
			if nl := strings.LastIndexByte(window, '\n'); nl > breakPoint {
				breakPoint = nl
			}
			// Only honor the break when it keeps the chunk reasonably
			// full, otherwise cut at the window edge.
			if breakPoint > c.size/2 {
				end = start + breakPoint + 1
			}
		}
		trimmed := strings.TrimSpace(text[start:end])
		if trimmed != "" {
			pieces = append(pieces, Piece{
				Index:     len(pieces),
				Text:      trimmed,
				StartChar: start,
				EndChar:   end,
			})
		}
		if last {
			break
		}
		// Round to a rune boundary before the progress check: rounding can
		// move the offset back to or before start, which must fall through
		// to the no-overlap step or the scan stalls.
		next := boundAtRune(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// boundAtRune moves pos back to the nearest rune start so windows never
// split a multi-byte character.
func boundAtRune(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

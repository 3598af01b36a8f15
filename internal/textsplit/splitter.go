// Package textsplit splits extracted document text into overlapping ordered
// segments for embedding and retrieval.
package textsplit

import (
	"strings"
	"unicode/utf8"
)

// Config controls splitting for chunk embeddings.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig provides sane defaults for splitting.
func DefaultConfig() Config {
	return Config{
		Size:    800,
		Overlap: 200,
	}
}

// separators, coarsest first. Splitting prefers paragraph boundaries, then
// lines, then sentences, then words; the empty separator is a raw cut.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split returns the ordered segments of text, each at most size runes,
// adjacent segments overlapping by up to overlap runes. The returned order is
// the chunk index and is part of chunk identity. Empty or whitespace-only
// input yields no segments.
func Split(text string, size, overlap int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultConfig().Size
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	pieces := splitBySeparators(clean, size, overlap, separators)
	return mergePieces(pieces, size, overlap)
}

// splitBySeparators recursively breaks text into pieces no longer than size,
// using the coarsest separator that appears in the text and falling back to a
// raw rune cut when no separator helps.
func splitBySeparators(text string, size, overlap int, seps []string) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return splitRunes(text, size, overlap)
	}

	sep := seps[0]
	if !strings.Contains(text, sep) {
		return splitBySeparators(text, size, overlap, seps[1:])
	}

	parts := strings.SplitAfter(text, sep)
	pieces := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= size {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, splitBySeparators(part, size, overlap, seps[1:])...)
	}
	return pieces
}

// mergePieces packs consecutive pieces into segments of at most size runes,
// carrying an overlap tail across segment boundaries to preserve
// cross-boundary context for retrieval.
func mergePieces(pieces []string, size, overlap int) []string {
	segments := make([]string, 0, len(pieces))
	var window []rune

	flush := func() {
		segment := strings.TrimSpace(string(window))
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	for _, piece := range pieces {
		runes := []rune(piece)
		if len(window) > 0 && len(window)+len(runes) > size {
			flush()
			tail := overlapTail(window, overlap)
			// Keep as much of the overlap as the next piece leaves room for.
			if room := size - len(runes); len(tail) > room {
				if room > 0 {
					tail = tail[len(tail)-room:]
				} else {
					tail = nil
				}
			}
			window = tail
		}
		window = append(window, runes...)
	}
	if len(window) > 0 {
		flush()
	}

	return segments
}

func overlapTail(window []rune, overlap int) []rune {
	if overlap <= 0 || len(window) <= overlap {
		return nil
	}
	tail := make([]rune, overlap)
	copy(tail, window[len(window)-overlap:])
	return tail
}

// splitRunes cuts separator-free text into size-rune pieces. Cuts step by
// size-overlap so adjacent pieces still share the configured overlap.
func splitRunes(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step < 1 {
		step = size
	}
	out := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

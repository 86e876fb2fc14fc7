// Package pacing splits narrated text into display chunks and plays timed
// steps through a cancellable scheduler.
package pacing

import "unicode/utf8"

// DefaultChunkLimit is the maximum chunk length in runes.
const DefaultChunkLimit = 200

// Split cuts text into chunks of at most limit runes. A chunk ends after the
// last '.' within the limit when that lies at least half way in, otherwise
// after the last space, otherwise at the limit itself. Chunks are slices of
// text, so joining them reproduces it byte for byte, invalid UTF-8 included.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	var chunks []string
	for {
		end, fits := window(text, limit)
		if fits {
			return append(chunks, text)
		}
		cut := cutPoint(text[:end], limit)
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
}

// window returns the byte offset just past the first limit runes of text and
// whether text holds no more than limit runes. An invalid byte counts as one
// rune.
func window(text string, limit int) (int, bool) {
	offset := 0
	for n := 0; n < limit; n++ {
		if offset >= len(text) {
			return offset, true
		}
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset, offset >= len(text)
}

func cutPoint(window string, limit int) int {
	dot, space := -1, -1
	for i, n := 0, 0; i < len(window); n++ {
		r, size := utf8.DecodeRuneInString(window[i:])
		i += size
		switch r {
		case '.':
			if n >= limit/2 {
				dot = i
			}
		case ' ':
			space = i
		}
	}
	if dot > 0 {
		return dot
	}
	if space > 0 {
		return space
	}
	return len(window)
}

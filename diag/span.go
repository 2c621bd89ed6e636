// Package diag carries source locations and diagnostics shared by the
// lexer, parser, compiler, and VM.
package diag

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Range is a half-open byte-offset range within a source buffer. It
// takes as little as possible (16 bytes in 64bit systems) to represent
// a position within the input.
type Range struct{ Start, End int }

func NewRange(start, end int) Range { return Range{Start: start, End: end} }

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

func (r Range) Str(src []byte) string { return string(src[r.Start:r.End]) }

func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Location is a (line, column) position plus the byte cursor it was
// derived from, both 1-based for Line/Column.
type Location struct {
	Line, Column int32
	Cursor       int
}

// Span is a pair of Locations forming a half-open range, carried on
// every token and every AST node for diagnostics.
type Span struct{ Start, End Location }

func (s Span) String() string {
	sl, sc := int(s.Start.Line), int(s.Start.Column)
	el, ec := int(s.End.Line), int(s.End.Column)
	if sl == el && sc == ec {
		return fmt.Sprintf("%d:%d", sl, sc)
	}
	if sl == el {
		return fmt.Sprintf("%d:%d..%d", sl, sc, ec)
	}
	return fmt.Sprintf("%d:%d..%d:%d", sl, sc, el, ec)
}

// LineIndex allows fast conversion from byte cursor offsets to
// line/column. It stores the start byte offset of each line (0-based).
// Construction is O(n) over the input; lookup is O(log lines) via
// binary search over line starts. CRLF is normalized to LF before
// indexing per the lexer/parser surface contract (spec.md §6).
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) Span(r Range) Span {
	return Span{Start: li.LocationAt(r.Start), End: li.LocationAt(r.End)}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	lineStart := li.lineStart[lineIdx]
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1
	return Location{Line: int32(lineIdx + 1), Column: col, Cursor: cursor}
}

// NormalizeLineEndings rewrites CRLF sequences to LF, per the
// lexer/parser surface contract in spec.md §6.
func NormalizeLineEndings(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] == '\r' && i+1 < len(src) && src[i+1] == '\n' {
			continue
		}
		out = append(out, src[i])
	}
	return out
}

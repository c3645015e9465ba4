// Package display derives the masked editor text from a raw field value.
// Tokens are elided from the editable text and rendered as chips; the
// segment map translates offsets between the two coordinate spaces.
package display

import (
	"slices"
	"strings"

	"github.com/pipeweave/core/internal/token"
)

// Segment is a raw byte range not covered by any token.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Segment) Len() int {
	return s.End - s.Start
}

// Projection is the display form of one raw value.
type Projection struct {
	Raw      string        `json:"raw"`
	Display  string        `json:"display"`
	Segments []Segment     `json:"segments"`
	Tokens   []token.Token `json:"tokens"`
}

// Project builds the display text by concatenating the raw segments that lie
// outside tokens.
func Project(raw string, tokens []token.Token) Projection {
	sorted := slices.Clone(tokens)
	slices.SortFunc(sorted, func(a, b token.Token) int {
		return a.Start - b.Start
	})

	segments := SegmentsFor(raw, sorted)

	var b strings.Builder
	b.Grow(len(raw))
	for _, seg := range segments {
		b.WriteString(raw[seg.Start:seg.End])
	}

	return Projection{
		Raw:      raw,
		Display:  b.String(),
		Segments: segments,
		Tokens:   sorted,
	}
}

// ProjectText is Project over the full-token grammar.
func ProjectText(raw string) Projection {
	return Project(raw, token.Extract(raw))
}

// SegmentsFor returns the ordered non-token ranges of raw. tokens must be
// sorted by Start and must not overlap.
func SegmentsFor(raw string, tokens []token.Token) []Segment {
	segments := make([]Segment, 0, len(tokens)+1)
	cursor := 0
	for _, t := range tokens {
		if cursor < t.Start {
			segments = append(segments, Segment{Start: cursor, End: t.Start})
		}
		if t.End > cursor {
			cursor = t.End
		}
	}
	if cursor < len(raw) {
		segments = append(segments, Segment{Start: cursor, End: len(raw)})
	}
	return segments
}

// DisplayToRaw maps a display offset to a raw offset. An offset on the
// boundary between a segment and a following token maps to the end of that
// segment; offsets past the last segment map to the end of the raw text.
func DisplayToRaw(segments []Segment, rawLen, d int) int {
	remaining := d
	for _, seg := range segments {
		if remaining <= seg.Len() {
			return seg.Start + remaining
		}
		remaining -= seg.Len()
	}
	return rawLen
}

// DisplayToRawAfter is DisplayToRaw biased to the right: an offset on a
// segment boundary maps past any tokens that follow it.
func DisplayToRawAfter(segments []Segment, rawLen, d int) int {
	remaining := d
	for _, seg := range segments {
		if remaining < seg.Len() {
			return seg.Start + remaining
		}
		remaining -= seg.Len()
	}
	return rawLen
}

// RawToDisplay maps a raw offset to a display offset. Offsets inside a token
// map to the display position of that token's chip.
func RawToDisplay(segments []Segment, r int) int {
	acc := 0
	for _, seg := range segments {
		if r < seg.Start {
			return acc
		}
		if r <= seg.End {
			return acc + r - seg.Start
		}
		acc += seg.Len()
	}
	return acc
}

func (p Projection) DisplayToRaw(d int) int {
	return DisplayToRaw(p.Segments, len(p.Raw), d)
}

func (p Projection) RawToDisplay(r int) int {
	return RawToDisplay(p.Segments, r)
}

// ChipOffsets returns the display offset at which each token's chip sits.
func (p Projection) ChipOffsets() []int {
	offsets := make([]int, len(p.Tokens))
	for i, t := range p.Tokens {
		offsets[i] = p.RawToDisplay(t.Start)
	}
	return offsets
}

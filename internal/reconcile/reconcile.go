// Package reconcile maps an edit made to masked display text back onto the
// raw field value without disturbing tokens outside the edited range.
package reconcile

import (
	"strings"

	"github.com/pipeweave/core/internal/display"
	"github.com/pipeweave/core/internal/token"
)

// Patch is the minimal display-space change between two display strings.
type Patch struct {
	DisplayStart int
	Removed      int
	Inserted     string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Removed == 0 && p.Inserted == ""
}

// Result is a reconciled edit.
type Result struct {
	Raw      string
	Caret    int // raw offset just after the inserted text
	RawStart int
	RawEnd   int
	Patch    Patch
}

// Diff computes the common prefix and suffix of prev and next. When limit
// is non-negative the prefix never extends past it, which pins the edit to
// the caret when the change is ambiguous (e.g. typing a repeated character).
func Diff(prev, next string, limit int) Patch {
	n := min(len(prev), len(next))
	if limit >= 0 && limit < n {
		n = limit
	}

	p := 0
	for p < n && prev[p] == next[p] {
		p++
	}

	s := 0
	for s < len(prev)-p && s < len(next)-p && prev[len(prev)-1-s] == next[len(next)-1-s] {
		s++
	}

	return Patch{
		DisplayStart: p,
		Removed:      len(prev) - s - p,
		Inserted:     next[p : len(next)-s],
	}
}

// Reconcile applies the edit prev -> next to raw using the segment map that
// produced prev.
func Reconcile(prevDisplay, nextDisplay string, segments []display.Segment, raw string) Result {
	return apply(Diff(prevDisplay, nextDisplay, -1), segments, raw)
}

// ReconcileAt is Reconcile with the post-edit display caret used to bound
// the diff.
func ReconcileAt(prevDisplay, nextDisplay string, caret int, segments []display.Segment, raw string) Result {
	growth := len(nextDisplay) - len(prevDisplay)
	limit := caret - max(growth, 0)
	if limit < 0 {
		limit = 0
	}
	return apply(Diff(prevDisplay, nextDisplay, limit), segments, raw)
}

func apply(patch Patch, segments []display.Segment, raw string) Result {
	// a deletion starting on a chip boundary must not take the chip with it
	start := display.DisplayToRaw(segments, len(raw), patch.DisplayStart)
	end := start
	if patch.Removed > 0 {
		start = display.DisplayToRawAfter(segments, len(raw), patch.DisplayStart)
		end = display.DisplayToRaw(segments, len(raw), patch.DisplayStart+patch.Removed)
	}

	var b strings.Builder
	b.Grow(len(raw) - (end - start) + len(patch.Inserted))
	b.WriteString(raw[:start])
	b.WriteString(patch.Inserted)
	b.WriteString(raw[end:])

	return Result{
		Raw:      b.String(),
		Caret:    start + len(patch.Inserted),
		RawStart: start,
		RawEnd:   end,
		Patch:    patch,
	}
}

// TriggerAt reports whether the two bytes left of caret in text are the
// opening delimiter.
func TriggerAt(text string, caret int) bool {
	if caret < len(token.Open) || caret > len(text) {
		return false
	}
	return text[caret-len(token.Open):caret] == token.Open
}

// TriggerGone reports whether the two bytes left of caret no longer contain
// the opening delimiter.
func TriggerGone(text string, caret int) bool {
	if caret > len(text) {
		caret = len(text)
	}
	from := max(caret-len(token.Open), 0)
	return !strings.Contains(text[from:max(caret, 0)], token.Open)
}

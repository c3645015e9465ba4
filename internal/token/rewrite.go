package token

import "strings"

// Rewrite walks every reference in text and splices in the literal returned
// by fn. fn returns false to keep a token as is. The number of rewritten
// tokens is returned with the new text.
func Rewrite(text string, fn func(t Token) (string, bool)) (string, int) {
	tokens := ExtractRefs(text)
	if len(tokens) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))

	cursor, changed := 0, 0
	for _, t := range tokens {
		replacement, ok := fn(t)
		if !ok {
			continue
		}
		b.WriteString(text[cursor:t.Start])
		b.WriteString(replacement)
		cursor = t.End
		changed++
	}

	if changed == 0 {
		return text, 0
	}
	b.WriteString(text[cursor:])

	return b.String(), changed
}

// RenameRefs renames every reference to oldName, keeping the kind suffix and
// any inner whitespace verbatim.
func RenameRefs(text, oldName, newName string) (string, int) {
	if oldName == newName {
		return text, 0
	}
	return Rewrite(text, func(t Token) (string, bool) {
		if t.Name != oldName {
			return "", false
		}
		start, end := t.NameRange()
		return text[t.Start:start] + newName + text[end:t.End], true
	})
}

// RewriteKinds replaces the kind suffix of references to name when the
// current suffix is one of from.
func RewriteKinds(text, name string, from map[string]bool, to string) (string, int) {
	return Rewrite(text, func(t Token) (string, bool) {
		if t.Name != name || t.Kind == "" || t.Kind == to || !from[t.Kind] {
			return "", false
		}
		start, end, _ := t.KindRange()
		return text[t.Start:start] + to + text[end:t.End], true
	})
}

// StripRefs removes every reference to name, leaving surrounding text intact.
func StripRefs(text, name string) (string, int) {
	return Rewrite(text, func(t Token) (string, bool) {
		return "", t.Name == name
	})
}

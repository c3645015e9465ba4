// Package token recognizes {{name}} and {{name.kind}} references embedded
// in node field text.
package token

import (
	"regexp"
)

const (
	// Open is the opening delimiter that also triggers the reference picker.
	Open = "{{"
	// Close is the closing delimiter.
	Close = "}}"
)

const identPattern = `[A-Za-z_$][A-Za-z0-9_$]*`

var (
	fullRegex  = regexp.MustCompile(`\{\{\s*(` + identPattern + `)\.(` + identPattern + `)\s*\}\}`)
	refRegex   = regexp.MustCompile(`\{\{\s*(` + identPattern + `)(?:\.(` + identPattern + `))?\s*\}\}`)
	identRegex = regexp.MustCompile(`^` + identPattern + `$`)
)

// Token is one reference occurrence. Start and End are byte offsets into the
// scanned text, End exclusive. Kind is empty when the reference omits it.
type Token struct {
	Name  string `json:"name"`
	Kind  string `json:"kind,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`

	// byte ranges of the name and kind inside the scanned text
	nameStart, nameEnd int
	kindStart, kindEnd int
}

// Len returns the byte length of the token literal.
func (t Token) Len() int {
	return t.End - t.Start
}

// Label is the chip text for the token.
func (t Token) Label() string {
	if t.Kind == "" {
		return t.Name
	}
	return t.Name + "." + t.Kind
}

// NameRange returns the byte range of the name segment.
func (t Token) NameRange() (int, int) {
	return t.nameStart, t.nameEnd
}

// KindRange returns the byte range of the kind segment; ok is false when the
// token has no kind.
func (t Token) KindRange() (start, end int, ok bool) {
	if t.Kind == "" {
		return 0, 0, false
	}
	return t.kindStart, t.kindEnd, true
}

// Extract returns every {{name.kind}} token in text, left to right.
func Extract(text string) []Token {
	return scan(fullRegex, text)
}

// ExtractRefs returns every {{name}} or {{name.kind}} token in text.
func ExtractRefs(text string) []Token {
	return scan(refRegex, text)
}

func scan(re *regexp.Regexp, text string) []Token {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		t := Token{
			Name:      text[m[2]:m[3]],
			Start:     m[0],
			End:       m[1],
			nameStart: m[2],
			nameEnd:   m[3],
		}
		if len(m) > 5 && m[4] >= 0 {
			t.Kind = text[m[4]:m[5]]
			t.kindStart, t.kindEnd = m[4], m[5]
		}
		tokens = append(tokens, t)
	}

	return tokens
}

// IsIdentifier reports whether s can be used as a token name or kind.
func IsIdentifier(s string) bool {
	return identRegex.MatchString(s)
}

// Format renders the canonical literal for a reference.
func Format(name, kind string) string {
	if kind == "" {
		return Open + name + Close
	}
	return Open + name + "." + kind + Close
}

// Names returns the distinct token names in first-seen order.
func Names(tokens []Token) []string {
	seen := make(map[string]bool, len(tokens))
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	return names
}

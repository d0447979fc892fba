// Package idos derives, canonicalizes and deduplicates the idOS identifiers
// carried by task records.
//
// Everything here is pure: the Registry and Resolver operate on an in-memory
// snapshot of one owner's records and never touch a store.
package idos

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// isSpace matches the ECMAScript \s class the identifiers were first
// produced with: Unicode White_Space plus BOM, without NEL.
func isSpace(r rune) bool {
	if r == '\uFEFF' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

func isAllowed(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

// Canonicalize maps a raw identifier to its canonical form.
//
// The raw value is trimmed, uppercased, every whitespace run becomes a single
// dash, runes outside [A-Z0-9_-] are dropped and dash runs are collapsed.
// The second result is false when raw is empty or nothing survives cleanup.
func Canonicalize(raw string) (string, bool) {
	s := strings.TrimFunc(raw, isSpace)
	if s == "" {
		return "", false
	}
	// Full case mapping turns "ß" into "SS" rather than leaving it to be
	// stripped. Casers are stateful, so one is built per call.
	s = cases.Upper(language.Und).String(s)

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if isAllowed(r) {
			b.WriteRune(r)
		}
	}

	// Collapsing only removes dashes, so the allowed alphabet is preserved
	// and a second Canonicalize is a no-op.
	out := collapseDashes(b.String())
	if out == "" {
		return "", false
	}
	return out, true
}

func collapseDashes(s string) string {
	if !strings.Contains(s, "--") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// IsCanonical reports whether s is already in canonical form.
func IsCanonical(s string) bool {
	c, ok := Canonicalize(s)
	return ok && c == s
}

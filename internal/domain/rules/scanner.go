package rules

import (
	"regexp"
	"strings"
)

// wordRe matches property keys and mapped values: letters, digits and underscores.
var wordRe = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

// Wildcard is the catch-all value of mapping rules and filter clauses.
const Wildcard = "*"

// scanner walks a single rule line byte by byte.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) eof() bool { return sc.pos >= len(sc.s) }

func (sc *scanner) peek() byte {
	if sc.eof() {
		return 0
	}
	return sc.s[sc.pos]
}

// skipSpaces advances over blanks and reports whether at least one was consumed.
func (sc *scanner) skipSpaces() bool {
	start := sc.pos
	for !sc.eof() && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
	return sc.pos > start
}

func (sc *scanner) accept(c byte) bool {
	if sc.peek() != c {
		return false
	}
	sc.pos++
	return true
}

// quoted reads a double-quoted string starting at the current position.
// ok is false when the closing quote is missing.
func (sc *scanner) quoted() (string, bool) {
	if !sc.accept('"') {
		return "", false
	}
	end := strings.IndexByte(sc.s[sc.pos:], '"')
	if end < 0 {
		sc.pos = len(sc.s)
		return "", false
	}
	v := sc.s[sc.pos : sc.pos+end]
	sc.pos += end + 1
	return v, true
}

// lines splits rule text into trimmed lines, keeping 1-based numbering.
func lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(strings.TrimRight(l, "\r"))
	}
	return out
}

package tsparse

import (
	"bytes"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"
)

// token is one lexical token. The whole file is tokenized up front so the
// parser can look ahead freely (arrow-function types need it).
type token struct {
	kind rune // scanner.Ident, scanner.String, ... or the punctuation rune
	lit  string
	pos  Pos
	nl   bool   // first token on its line
	doc  string // comment block immediately preceding the token
}

// tokenize splits src into tokens using text/scanner, whose Go-flavored
// lexical rules (identifiers, numbers, quoted strings, // and /* */ comments)
// coincide with TypeScript's for everything outside regular expression
// literals. Single-quoted strings are scanned as char literals and kept.
func tokenize(path string, src []byte) ([]token, []*Error) {
	var (
		s    scanner.Scanner
		errs []*Error
	)
	s.Init(bytes.NewReader(src))
	s.Filename = path
	s.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanChars |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanComments
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || (i > 0 && unicode.IsDigit(ch))
	}
	s.Error = func(s *scanner.Scanner, msg string) {
		if msg == "invalid char literal" {
			return
		}
		errs = append(errs, &Error{Pos: s.Position, Msg: msg})
	}

	var (
		toks     []token
		comments []string
		lastLine = 0
		lastCmt  = 0
	)
	for {
		kind := s.Scan()
		lit := s.TokenText()
		pos := s.Position
		if kind == scanner.Comment {
			if len(comments) > 0 && pos.Line > lastCmt+1 {
				comments = comments[:0]
			}
			comments = append(comments, lit)
			lastCmt = pos.Line + strings.Count(lit, "\n")
			lastLine = lastCmt
			continue
		}
		t := token{kind: kind, lit: lit, pos: pos, nl: pos.Line > lastLine}
		if len(comments) > 0 && pos.Line <= lastCmt+1 {
			t.doc = cleanDoc(comments)
		}
		comments = comments[:0]
		toks = append(toks, t)
		lastLine = pos.Line + strings.Count(lit, "\n")
		if kind == scanner.EOF {
			break
		}
	}
	return toks, errs
}

// cleanDoc strips comment markers and returns the comment text.
func cleanDoc(comments []string) string {
	var lines []string
	for _, c := range comments {
		switch {
		case strings.HasPrefix(c, "//"):
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(c, "//")))
		case strings.HasPrefix(c, "/*"):
			body := strings.TrimSuffix(strings.TrimPrefix(c, "/*"), "*/")
			body = strings.TrimPrefix(body, "*")
			for _, l := range strings.Split(body, "\n") {
				l = strings.TrimSpace(l)
				l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
				if l != "" {
					lines = append(lines, l)
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// unquote decodes a double-, single- or back-quoted string literal. Escapes
// it cannot decode are left as written.
func unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	inner := lit[1 : len(lit)-1]
	switch lit[0] {
	case '"':
		if s, err := strconv.Unquote(lit); err == nil {
			return s
		}
	case '\'':
		conv := strings.ReplaceAll(inner, `\'`, `'`)
		conv = strings.ReplaceAll(conv, `"`, `\"`)
		if s, err := strconv.Unquote(`"` + conv + `"`); err == nil {
			return s
		}
	}
	return inner
}

// joinTokens renders a token run back into compact source text.
func joinTokens(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && needSpace(toks[i-1].lit, t.lit) {
			b.WriteByte(' ')
		}
		b.WriteString(t.lit)
	}
	return b.String()
}

func needSpace(prev, cur string) bool {
	if cur == "[" {
		switch prev {
		case ":", ",", "=", "|", "&":
			return true
		}
		return false
	}
	switch cur {
	case ")", "]", ",", ":", "?", ";", ">", ".", "<":
		return false
	}
	switch prev {
	case "(", "[", ".", "<":
		return false
	}
	return true
}

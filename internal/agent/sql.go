package agent

import (
	"strings"
	"unicode"
)

var answerPrefixes = []string{
	"corrected sql query:",
	"generated sql query:",
	"sqlquery:",
	"sql query:",
	"sql:",
}

// CleanCompletion extracts the SQL from a model completion: the first fenced
// code block if there is one, minus any "SQLQuery:" style label.
func CleanCompletion(s string) string {
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "```"); start != -1 {
		body := s[start+3:]
		// drop the info string (```sql)
		if nl := strings.IndexByte(body, '\n'); nl != -1 && isInfoString(body[:nl]) {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			body = body[:end]
		}
		s = strings.TrimSpace(body)
	}

	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, p := range answerPrefixes {
			if strings.HasPrefix(lower, p) {
				s = strings.TrimSpace(s[len(p):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

func isInfoString(line string) bool {
	line = strings.TrimSpace(line)
	for _, r := range line {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Syntax holds the lexical rules that differ between dialects.
type Syntax struct {
	// BackslashEscapes lets \ escape the next byte in '...' and "..."
	// literals, as MySQL does by default.
	BackslashEscapes bool
}

// SyntaxFor returns the rules for a db.DB dialect name.
func SyntaxFor(dialect string) Syntax {
	return Syntax{BackslashEscapes: dialect == "MySQL"}
}

// scan walks s and reports for every byte whether it is SQL code, as opposed
// to part of a string literal, quoted identifier or comment.
func (x Syntax) scan(s string, visit func(i int, code bool)) {
	skip := func(from, to int) int {
		if to > len(s) {
			to = len(s)
		}
		for j := from; j < to; j++ {
			visit(j, false)
		}
		return to
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			esc := x.BackslashEscapes || c == '\'' && isEscapeString(s, i)
			i = skip(i, closingQuote(s, i+1, c, esc))
		case c == '`':
			i = skip(i, closingQuote(s, i+1, c, false))
		case c == '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end == -1 {
				i = skip(i, len(s))
			} else {
				i = skip(i, i+1+end+1)
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			end := strings.IndexByte(s[i:], '\n')
			if end == -1 {
				i = skip(i, len(s))
			} else {
				i = skip(i, i+end)
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end == -1 {
				i = skip(i, len(s))
			} else {
				i = skip(i, i+2+end+2)
			}
		case c == '$':
			tag, ok := dollarTag(s, i)
			if !ok {
				visit(i, true)
				i++
				continue
			}
			end := strings.Index(s[i+len(tag):], tag)
			if end == -1 {
				i = skip(i, len(s))
			} else {
				i = skip(i, i+len(tag)+end+len(tag))
			}
		default:
			visit(i, true)
			i++
		}
	}
}

// closingQuote returns the index just past the quote closing a literal that
// opened before from. A doubled quote is an escaped quote, and so is \q
// when esc is set.
func closingQuote(s string, from int, q byte, esc bool) int {
	for j := from; j < len(s); j++ {
		if esc && s[j] == '\\' {
			j++
			continue
		}
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// isEscapeString reports whether the quote at i opens a PostgreSQL E'...'
// string.
func isEscapeString(s string, i int) bool {
	if i == 0 || s[i-1] != 'E' && s[i-1] != 'e' {
		return false
	}
	return i == 1 || !isIdentByte(s[i-2])
}

// dollarTag recognises a PostgreSQL dollar quote opener ($$ or $tag$) at i.
func dollarTag(s string, i int) (string, bool) {
	if i > 0 && isIdentByte(s[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return "", false // positional parameter
	}
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[i : j+1], true
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// SplitStatements splits sql with the rules shared by all dialects.
func SplitStatements(sql string) []string { return Syntax{}.SplitStatements(sql) }

// ReturnsRows reports whether stmt should be run as a query rather than an
// exec.
func ReturnsRows(stmt string) bool { return Syntax{}.ReturnsRows(stmt) }

// IsReadOnly reports whether stmt only reads data.
func IsReadOnly(stmt string) bool { return Syntax{}.IsReadOnly(stmt) }

// SplitStatements splits sql on semicolons that are not inside literals,
// quoted identifiers or comments. Pieces holding only whitespace or
// comments are dropped.
func (x Syntax) SplitStatements(sql string) []string {
	var out []string
	start := 0
	hasCode := false

	flush := func(end int) {
		if hasCode {
			out = append(out, strings.TrimSpace(sql[start:end]))
		}
		start = end + 1
		hasCode = false
	}

	x.scan(sql, func(i int, code bool) {
		if !code {
			return
		}
		if sql[i] == ';' {
			flush(i)
			return
		}
		if !unicode.IsSpace(rune(sql[i])) {
			hasCode = true
		}
	})
	if start < len(sql) {
		flush(len(sql))
	}
	return out
}

// keywords returns the upper-cased words of stmt's code, skipping literals
// and comments.
func (x Syntax) keywords(stmt string) []string {
	code := []byte(stmt)
	x.scan(stmt, func(i int, isCode bool) {
		if !isCode {
			code[i] = ' '
		}
	})
	return strings.FieldsFunc(strings.ToUpper(string(code)), func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

func (x Syntax) leadingKeyword(stmt string) string {
	words := x.keywords(stmt)
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

func hasKeyword(words []string, want ...string) bool {
	for _, w := range words {
		for _, k := range want {
			if w == k {
				return true
			}
		}
	}
	return false
}

func (x Syntax) ReturnsRows(stmt string) bool {
	words := x.keywords(stmt)
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "SELECT", "WITH", "VALUES", "TABLE", "PRAGMA", "SHOW", "DESCRIBE", "DESC", "EXPLAIN":
		return true
	}
	return hasKeyword(words, "RETURNING", "OUTPUT")
}

var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE",
	"CREATE", "ALTER", "DROP", "TRUNCATE", "GRANT", "REVOKE",
}

func (x Syntax) IsReadOnly(stmt string) bool {
	words := x.keywords(stmt)
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "SELECT":
		// SELECT ... INTO creates a table or writes a file
		return !hasKeyword(words, "INTO")
	case "WITH", "EXPLAIN":
		return !hasKeyword(words, writeKeywords...) && !hasKeyword(words, "INTO")
	case "VALUES", "TABLE", "SHOW", "DESCRIBE", "DESC":
		return true
	case "PRAGMA":
		return !strings.Contains(stmt, "=")
	}
	return false
}

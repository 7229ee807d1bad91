// Package frontmatter parses the restricted header block found at the top of
// blog post files. Only single-line "key: value" pairs and flat bracketed
// lists are understood; nested YAML is not supported.
package frontmatter

import (
	"bufio"
	"strings"
)

const delimiter = "---"

// Value is a single frontmatter field. It holds either a scalar string or,
// when the raw value was written as [a, b, c], an ordered list of strings.
type Value struct {
	text   string
	list   []string
	isList bool
}

// Scalar creates a scalar value
func Scalar(s string) Value {
	return Value{text: s}
}

// List creates a list value
func List(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{list: items, isList: true}
}

// Interface returns the value as a string or []string
func (v Value) Interface() any {
	if v.isList {
		return v.list
	}
	return v.text
}

// Frontmatter maps field names to their parsed values
type Frontmatter map[string]Value

// String returns the scalar value for key. It returns false for missing keys
// and for list values.
func (f Frontmatter) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v.isList {
		return "", false
	}
	return v.text, true
}

// Map converts the frontmatter into a plain map suitable for struct decoding
func (f Frontmatter) Map() map[string]any {
	m := make(map[string]any, len(f))
	for k, v := range f {
		m[k] = v.Interface()
	}
	return m
}

// Split separates the header block from the body. The header must start on
// the very first line; ok is false when no complete header exists.
func Split(content string) (header string, body string, ok bool) {
	first, rest, found := cutLine(content)
	if !found || first != delimiter {
		return "", content, false
	}

	var lines []string
	for {
		line, remaining, more := cutLine(rest)
		if strings.HasPrefix(line, delimiter) {
			// the closing line may carry trailing characters after ---
			return strings.Join(lines, "\n"), remaining, true
		}
		if !more {
			return "", content, false
		}
		lines = append(lines, line)
		rest = remaining
	}
}

// cutLine returns the first line of s without its line ending
func cutLine(s string) (line, rest string, more bool) {
	line, rest, more = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, more
}

// Parse extracts the frontmatter from content. It returns false when the
// content has no header block.
func Parse(content string) (Frontmatter, bool) {
	header, _, ok := Split(content)
	if !ok {
		return nil, false
	}

	fm := Frontmatter{}
	scanner := bufio.NewScanner(strings.NewReader(header))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		fm[key] = value
	}

	return fm, true
}

func parseLine(line string) (string, Value, bool) {
	rawKey, rawValue, found := strings.Cut(line, ":")
	if !found {
		return "", Value{}, false
	}

	key := strings.TrimSpace(rawKey)
	if key == "" {
		return "", Value{}, false
	}

	value := unquote(strings.TrimSpace(rawValue))
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") && len(value) >= 2 {
		return key, parseList(value[1 : len(value)-1]), true
	}

	return key, Scalar(value), true
}

// parseList splits the inside of a bracketed list. Commas inside quoted
// elements are not escaped, and an empty list holds one empty element.
func parseList(inner string) Value {
	parts := strings.Split(inner, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		item = trimQuoteChar(item, strings.TrimPrefix)
		item = trimQuoteChar(item, strings.TrimSuffix)
		items = append(items, item)
	}
	return List(items...)
}

func trimQuoteChar(s string, trim func(string, string) string) string {
	if t := trim(s, `"`); t != s {
		return t
	}
	return trim(s, `'`)
}

// unquote strips one layer of matching double or single quotes. A lone
// quote character counts as both the opening and the closing quote.
func unquote(s string) string {
	if s == "" {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		if len(s) < 2 {
			return ""
		}
		return s[1 : len(s)-1]
	}
	return s
}

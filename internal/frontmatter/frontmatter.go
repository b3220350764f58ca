// Package frontmatter parses the restricted YAML subset used in backlog
// item files into a flat string map.
//
// The grammar is deliberately small: a block fenced by "---" lines, with
// "key: value" pairs and optional list items that flatten into a single
// comma-joined value. Values are plain strings; surrounding quotes are
// stripped without escape processing, and the null spellings (null, none,
// ~, any casing) normalize to the empty string:
//
//	---
//	id: E-1
//	title: "Checkout flow"
//	parent: null
//	tags:
//	  - payments
//	  - web
//	---
package frontmatter

import (
	"errors"
	"strings"
)

// Map is the flat key to value result of a parse. List keys hold their
// items comma-joined.
type Map map[string]string

// Delimiter fences the frontmatter block.
const Delimiter = "---"

// Parse errors.
var (
	ErrMissingOpeningDelimiter = errors.New("missing opening delimiter")
	ErrMissingClosingDelimiter = errors.New("missing closing delimiter")
)

// Parse extracts the frontmatter block from content. The block must start
// on the very first line; everything after the closing delimiter is
// ignored.
func Parse(content string) (Map, error) {
	lines := splitLines(content)

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != Delimiter {
		return nil, ErrMissingOpeningDelimiter
	}

	result := Map{}
	lastKey := ""
	closed := false

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == Delimiter {
			closed = true

			break
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if item, ok := listItem(line); ok {
			appendListItem(result, lastKey, item)

			continue
		}

		key, value, ok := keyLine(line)
		if !ok {
			continue
		}

		result[key] = normalizeValue(value)
		lastKey = key
	}

	if !closed {
		return nil, ErrMissingClosingDelimiter
	}

	return result, nil
}

// keyLine splits a "key: value" line. Only lines without leading
// whitespace qualify; indented lines belong to list handling or are noise.
func keyLine(line string) (key, value string, ok bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", "", false
	}

	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	return key, value, true
}

// listItem reports whether line is a "- value" list entry, indented or not.
func listItem(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "-") {
		return "", false
	}

	return trimmed[1:], true
}

// appendListItem joins item onto the current value of key, comma-separated.
// Items arriving before any key are dropped.
func appendListItem(result Map, key, item string) {
	if key == "" {
		return
	}

	value := normalizeValue(item)
	if value == "" {
		return
	}

	if result[key] == "" {
		result[key] = value

		return
	}

	result[key] += "," + value
}

// normalizeValue trims, strips one pair of surrounding quotes without
// escape processing, and maps null spellings to the empty string.
func normalizeValue(value string) string {
	value = strings.TrimSpace(value)
	value = unquote(value)

	switch strings.ToLower(value) {
	case "null", "none", "~":
		return ""
	}

	return value
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}

	first := value[0]
	last := value[len(value)-1]

	if first == last && (first == '"' || first == '\'') {
		return value[1 : len(value)-1]
	}

	return value
}

// splitLines splits on newlines, tolerating CRLF input.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

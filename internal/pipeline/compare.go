package pipeline

import (
	"fmt"
	"strings"
)

// CompareMode is the output normalization applied before comparing.
type CompareMode string

const (
	// Line endings unified, trailing whitespace of every line and
	// trailing blank lines ignored.
	CompareLines CompareMode = "lines"
	// Byte-for-byte equality.
	CompareStrict CompareMode = "strict"
	// Whitespace separated tokens must match.
	CompareTokens CompareMode = "tokens"
)

func ParseCompareMode(s string) (CompareMode, error) {
	switch CompareMode(strings.ToLower(s)) {
	case "", CompareLines:
		return CompareLines, nil
	case CompareStrict:
		return CompareStrict, nil
	case CompareTokens:
		return CompareTokens, nil
	}
	return "", fmt.Errorf("unknown compare mode %q", s)
}

// Normalize returns the canonical form of out under the mode.
func Normalize(mode CompareMode, out string) string {
	switch mode {
	case CompareStrict:
		return out
	case CompareTokens:
		return strings.Join(strings.Fields(out), " ")
	}
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func Equal(mode CompareMode, expected, got string) bool {
	return Normalize(mode, expected) == Normalize(mode, got)
}

// FirstDifference locates the first differing line of the normalized
// outputs. Line numbers start at 1; ok is false when they are equal.
func FirstDifference(mode CompareMode, expected, got string) (line int, exp, act string, ok bool) {
	if mode == CompareTokens {
		e, g := strings.Fields(expected), strings.Fields(got)
		for i := 0; i < max(len(e), len(g)); i++ {
			if at(e, i) != at(g, i) {
				return i + 1, at(e, i), at(g, i), true
			}
		}
		return 0, "", "", false
	}
	e := strings.Split(Normalize(mode, expected), "\n")
	g := strings.Split(Normalize(mode, got), "\n")
	for i := 0; i < max(len(e), len(g)); i++ {
		if at(e, i) != at(g, i) {
			return i + 1, at(e, i), at(g, i), true
		}
	}
	return 0, "", "", false
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return "<EOF>"
}

func describeMismatch(mode CompareMode, expected, got string) string {
	line, exp, act, ok := FirstDifference(mode, expected, got)
	if !ok {
		return ""
	}
	unit := "line"
	if mode == CompareTokens {
		unit = "token"
	}
	return fmt.Sprintf("Outputs differ at %s %d: expected %q, got %q",
		unit, line, truncate(exp, 80), truncate(act, 80))
}

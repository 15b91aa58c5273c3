package api

import "strings"

// TrimToRect cuts s to at most maxHeight lines of maxWidth bytes,
// marking every cut with "[...]".
func TrimToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = append(lines[:maxHeight:maxHeight], "[...]")
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if len(line) > maxWidth {
			b.WriteString(line[:maxWidth])
			b.WriteString("[...]")
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}

// Trimmed returns a copy of tc whose texts fit the given rectangle.
func (tc TestCase) Trimmed(maxHeight, maxWidth int) TestCase {
	tc.Input = TrimToRect(tc.Input, maxHeight, maxWidth)
	tc.ErrorDetail = TrimToRect(tc.ErrorDetail, maxHeight, maxWidth)
	if tc.Runs != nil {
		runs := make(map[Role]*RuntimeData, len(tc.Runs))
		for role, rd := range tc.Runs {
			if rd == nil {
				continue
			}
			cp := *rd
			cp.Stdout = TrimToRect(rd.Stdout, maxHeight, maxWidth)
			cp.Stderr = TrimToRect(rd.Stderr, maxHeight, maxWidth)
			runs[role] = &cp
		}
		tc.Runs = runs
	}
	return tc
}

package fsutil

import (
	"path/filepath"
	"strings"
)

// DefaultReportName is used when no name can be derived from the input.
const DefaultReportName = "report"

const maxNameLen = 128

// ReportName derives an output file name from an input path: the input's
// base name without extension, reduced to ASCII letters, digits, dot,
// underscore and dash, then "-report" and ext. Stdin ("-") and names that
// sanitize to nothing use DefaultReportName.
func ReportName(input, ext string) string {
	name := DefaultReportName
	if input != "" && input != "-" {
		base := filepath.Base(input)
		if s := sanitizeName(strings.TrimSuffix(base, filepath.Ext(base))); s != "" {
			name = s + "-" + DefaultReportName
		}
	}
	return name + "." + ext
}

func sanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			// Collapse runs of other characters into one underscore.
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "._")
}

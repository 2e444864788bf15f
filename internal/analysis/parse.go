package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// Tool output grammar: GNU-style diagnostic lines
//
//	path:line[:column]: [severity:] message
//
// optionally followed by unified diff blocks ("--- path" / "+++ path" /
// hunks) that attach a machine-applicable fix to the diagnostics already
// reported for that file.
var diagnosticLine = regexp.MustCompile(
	`^(.+?):(\d+)(?::(\d+))?:\s*(?:(error|warning|info|note):\s*)?(?:\[([A-Za-z0-9]+)\]\s*)?(.*)$`,
)

func parseOutput(output, target string) []Diagnostic {
	var diagnostics []Diagnostic

	lines := strings.Split(output, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]

		if strings.HasPrefix(line, "--- ") {
			path, diff, next := parseDiffBlock(lines, i)
			attachDiff(diagnostics, path, diff)
			i = next
			continue
		}

		if m := diagnosticLine.FindStringSubmatch(line); m != nil {
			startLine, _ := strconv.Atoi(m[2])
			startColumn := 1
			if m[3] != "" {
				startColumn, _ = strconv.Atoi(m[3])
			}
			severity := m[4]
			if severity == "" {
				severity = "error"
			}
			diagnostics = append(diagnostics, Diagnostic{
				Path:        m[1],
				StartLine:   startLine,
				StartColumn: startColumn,
				EndLine:     startLine,
				Severity:    severity,
				Code:        m[5],
				Message:     strings.TrimSpace(m[6]),
				Target:      target,
			})
		}

		i++
	}

	return diagnostics
}

// parseDiffBlock consumes one unified diff starting at lines[start] and
// returns the target path, the diff body and the index past the block.
func parseDiffBlock(lines []string, start int) (path, diff string, next int) {
	path = strings.TrimSpace(strings.TrimPrefix(lines[start], "--- "))
	path = strings.TrimPrefix(path, "a/")

	var body []string
	i := start
	for i < len(lines) {
		line := lines[i]
		switch {
		case i == start,
			strings.HasPrefix(line, "+++ "),
			strings.HasPrefix(line, "@@"),
			strings.HasPrefix(line, "+"),
			strings.HasPrefix(line, "-"),
			strings.HasPrefix(line, " "):
			body = append(body, line)
			i++
		default:
			return path, strings.Join(body, "\n"), i
		}
	}
	return path, strings.Join(body, "\n"), i
}

// attachDiff attaches a diff to the last diagnostic reported for the path,
// allowing one side to be relative since the tool may print paths
// relative to its cwd.
func attachDiff(diagnostics []Diagnostic, path, diff string) {
	for i := len(diagnostics) - 1; i >= 0; i-- {
		if PathsMatch(diagnostics[i].Path, path) {
			diagnostics[i].Diff = diff
			return
		}
	}
}

// PathsMatch reports whether two paths name the same file, treating one
// as possibly relative to the other. The shorter path must cover whole
// segments of the longer one, so a.py never matches data.py.
func PathsMatch(a, b string) bool {
	return a == b || hasPathSuffix(a, b) || hasPathSuffix(b, a)
}

func hasPathSuffix(full, suffix string) bool {
	if !strings.HasSuffix(full, suffix) {
		return false
	}
	rest := full[:len(full)-len(suffix)]
	return strings.HasSuffix(rest, "/")
}

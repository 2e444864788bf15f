package diagnostics

import (
	"fmt"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bonprosoft/pysen-ls/internal/analysis"
)

// Converted groups one analysis result by document, in first-seen order.
type Converted struct {
	Order       []string
	Diagnostics map[string][]protocol.Diagnostic
	Actions     map[string][]protocol.CodeAction
}

// Convert maps tool findings to LSP diagnostics and quick-fix actions.
// Within one document the tool's reporting order is preserved.
func Convert(
	result analysis.Result,
	pathToURI func(string) string,
	withActions bool,
) Converted {
	converted := Converted{
		Diagnostics: make(map[string][]protocol.Diagnostic),
		Actions:     make(map[string][]protocol.CodeAction),
	}

	for _, finding := range result.Diagnostics {
		uri := pathToURI(finding.Path)
		if _, ok := converted.Diagnostics[uri]; !ok {
			converted.Order = append(converted.Order, uri)
			converted.Diagnostics[uri] = []protocol.Diagnostic{}
		}

		diagnostic := toLSPDiagnostic(finding)
		converted.Diagnostics[uri] = append(converted.Diagnostics[uri], diagnostic)

		if withActions {
			if action := buildCodeAction(uri, finding, diagnostic); action != nil {
				converted.Actions[uri] = append(converted.Actions[uri], *action)
			}
		}
	}

	return converted
}

// Seed ensures a document has an entry so a clean run replaces its
// previous diagnostics with an empty set.
func (c *Converted) Seed(uri string) {
	if _, ok := c.Diagnostics[uri]; !ok {
		c.Order = append([]string{uri}, c.Order...)
		c.Diagnostics[uri] = []protocol.Diagnostic{}
	}
}

func toLSPDiagnostic(finding analysis.Diagnostic) protocol.Diagnostic {
	severity := severityFor(finding.Severity)
	source := fmt.Sprintf("%s(pysen)", finding.Target)

	diagnostic := protocol.Diagnostic{
		Range:    diagnosticRange(finding),
		Severity: &severity,
		Source:   &source,
		Message:  finding.Message,
	}
	if finding.Code != "" {
		diagnostic.Code = &protocol.IntegerOrString{Value: finding.Code}
	}
	return diagnostic
}

// diagnosticRange converts the tool's 1-based positions to a 0-based LSP
// range. A fix that deletes lines extends the range one line down so the
// edit can swallow the removed line.
func diagnosticRange(finding analysis.Diagnostic) protocol.Range {
	startLine := finding.StartLine
	if startLine < 1 {
		startLine = 1
	}
	startColumn := finding.StartColumn
	if startColumn < 1 {
		startColumn = 1
	}
	endLine := finding.EndLine
	if endLine < startLine {
		endLine = startLine
	}
	if diffHasDeletion(finding.Diff) {
		endLine++
	}
	endColumn := startColumn
	if startLine != endLine {
		endColumn = 1
	}

	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(startLine - 1),
			Character: uint32(startColumn - 1),
		},
		End: protocol.Position{
			Line:      uint32(endLine - 1),
			Character: uint32(endColumn - 1),
		},
	}
}

func severityFor(severity string) protocol.DiagnosticSeverity {
	switch severity {
	case "warning":
		return protocol.DiagnosticSeverityWarning
	case "info":
		return protocol.DiagnosticSeverityInformation
	case "note":
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

func diffHasDeletion(diff string) bool {
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			return true
		}
	}
	return false
}

// EditFromDiff turns a finding's unified diff into the replacement edit
// for the finding's range. Returns nil when there is no diff. Line
// endings are carried over as-is, so a final line without a trailing
// newline stays that way.
func EditFromDiff(finding analysis.Diagnostic) *protocol.TextEdit {
	if finding.Diff == "" {
		return nil
	}

	var newText strings.Builder
	for _, line := range strings.SplitAfter(finding.Diff, "\n") {
		switch {
		case strings.HasPrefix(line, "---"),
			strings.HasPrefix(line, "+++"),
			strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, " "):
			newText.WriteString(line[1:])
		}
	}

	return &protocol.TextEdit{
		Range:   diagnosticRange(finding),
		NewText: newText.String(),
	}
}

func buildCodeAction(
	uri string,
	finding analysis.Diagnostic,
	diagnostic protocol.Diagnostic,
) *protocol.CodeAction {
	edit := EditFromDiff(finding)
	if edit == nil {
		return nil
	}

	kind := protocol.CodeActionKindQuickFix
	return &protocol.CodeAction{
		Title:       fmt.Sprintf("Apply suggestion from %s (pysen)", finding.Target),
		Kind:        &kind,
		Diagnostics: []protocol.Diagnostic{diagnostic},
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: {*edit},
			},
		},
	}
}

func positionLessOrEqual(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character <= b.Character
}

// RangesOverlap reports whether two ranges share at least one position.
func RangesOverlap(a, b protocol.Range) bool {
	start := a.Start
	if positionLessOrEqual(start, b.Start) {
		start = b.Start
	}
	end := a.End
	if !positionLessOrEqual(end, b.End) {
		end = b.End
	}
	return positionLessOrEqual(start, end)
}

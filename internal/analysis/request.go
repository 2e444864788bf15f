package analysis

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind selects which side of the tool to run.
type Kind int

const (
	KindLint Kind = iota
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindLint:
		return "lint"
	case KindFormat:
		return "format"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scope selects a single document or the whole workspace.
type Scope int

const (
	ScopeDocument Scope = iota
	ScopeWorkspace
)

// Request describes one tool invocation. Immutable once dispatched.
type Request struct {
	ID      string
	Kind    Kind
	Scope   Scope
	URI     string // document scope only
	Path    string // document scope only
	Version int32  // document version at dispatch time
	Targets []string
}

// NewDocumentRequest creates a request scoped to one document.
func NewDocumentRequest(kind Kind, uri, path string, version int32, targets []string) Request {
	return Request{
		ID:      uuid.NewString(),
		Kind:    kind,
		Scope:   ScopeDocument,
		URI:     uri,
		Path:    path,
		Version: version,
		Targets: targets,
	}
}

// NewWorkspaceRequest creates a request scoped to the whole workspace.
func NewWorkspaceRequest(kind Kind, targets []string) Request {
	return Request{
		ID:      uuid.NewString(),
		Kind:    kind,
		Scope:   ScopeWorkspace,
		Targets: targets,
	}
}

// Diagnostic is one finding as reported by the tool, positions 1-based.
// Diff, when present, is a unified diff that fixes the finding.
type Diagnostic struct {
	Path        string
	StartLine   int
	StartColumn int
	EndLine     int
	Severity    string
	Code        string
	Message     string
	Target      string
	Diff        string
}

// ErrorKind classifies an analysis failure.
type ErrorKind int

const (
	ErrTimeout ErrorKind = iota
	ErrLaunchFailure
	ErrParseFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTimeout:
		return "timeout"
	case ErrLaunchFailure:
		return "launch failure"
	case ErrParseFailure:
		return "parse failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is an analysis failure. It never carries diagnostics.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the outcome of one Request, consumed exactly once.
type Result struct {
	RequestID   string
	ExitStatus  int
	RawOutput   string
	Diagnostics []Diagnostic
	Err         *Error
}

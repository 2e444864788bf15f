package analysis

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bonprosoft/pysen-ls/internal/config"
)

// fakeTool writes an executable shell script standing in for the external
// tool and returns a configuration pointing at it.
func fakeTool(t *testing.T, script string) *config.Configuration {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script tool fakes are not portable to windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "pysen")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write fake tool: %v", err)
	}

	settings := config.DefaultSettings()
	settings.ToolPath = path
	settings.AnalysisTimeoutSec = 2
	return &config.Configuration{
		Root:        dir,
		ProjectFile: filepath.Join(dir, "pyproject.toml"),
		BaseDir:     dir,
		Settings:    settings,
	}
}

func TestRunCleanExit(t *testing.T) {
	cfg := fakeTool(t, "exit 0\n")
	req := NewDocumentRequest(KindLint, "file:///a.py", "/tmp/a.py", 1, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("clean run produced diagnostics: %+v", res.Diagnostics)
	}
	if res.RequestID != req.ID {
		t.Errorf("result not tagged with request id")
	}
}

func TestRunNonZeroWithParseableOutput(t *testing.T) {
	cfg := fakeTool(t, `echo "a.py:3:1: error: unused import"
exit 2
`)
	req := NewDocumentRequest(KindLint, "file:///a.py", "/tmp/a.py", 1, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err != nil {
		t.Fatalf("findings with non-zero exit must not be an error: %v", res.Err)
	}
	if res.ExitStatus != 2 {
		t.Errorf("exit status %d, want 2", res.ExitStatus)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Message != "unused import" {
		t.Errorf("unexpected diagnostics: %+v", res.Diagnostics)
	}
}

func TestRunNonZeroUnparseable(t *testing.T) {
	cfg := fakeTool(t, `echo "Traceback (most recent call last)" >&2
exit 1
`)
	req := NewDocumentRequest(KindLint, "file:///a.py", "/tmp/a.py", 1, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err == nil {
		t.Fatal("expected a parse failure")
	}
	if res.Err.Kind != ErrParseFailure {
		t.Errorf("error kind %v, want parse failure", res.Err.Kind)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("failed analysis must carry no diagnostics: %+v", res.Diagnostics)
	}
	if res.RawOutput == "" {
		t.Error("raw output should be preserved for troubleshooting")
	}
}

func TestRunLaunchFailure(t *testing.T) {
	settings := config.DefaultSettings()
	settings.ToolPath = "/nonexistent/pysen-binary"
	cfg := &config.Configuration{BaseDir: t.TempDir(), Settings: settings}
	req := NewDocumentRequest(KindLint, "file:///a.py", "/tmp/a.py", 1, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err == nil || res.Err.Kind != ErrLaunchFailure {
		t.Errorf("expected launch failure, got %v", res.Err)
	}
}

func TestRunTimeout(t *testing.T) {
	cfg := fakeTool(t, "exec sleep 10\n")
	cfg.Settings.AnalysisTimeoutSec = 1
	req := NewDocumentRequest(KindLint, "file:///a.py", "/tmp/a.py", 1, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err == nil || res.Err.Kind != ErrTimeout {
		t.Fatalf("expected timeout, got %v", res.Err)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("timed out analysis must carry no diagnostics")
	}
}

func TestRunMultipleTargetsMergeInOrder(t *testing.T) {
	// The fake reports a different finding per target.
	cfg := fakeTool(t, `case "$2" in
format) echo "a.py:1:1: error: would reformat" ;;
lint) echo "a.py:2:1: error: unused import" ;;
esac
exit 2
`)
	req := NewDocumentRequest(
		KindFormat, "file:///a.py", "/tmp/a.py", 1, []string{"format", "lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Diagnostics) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %+v", len(res.Diagnostics), res.Diagnostics)
	}
	if res.Diagnostics[0].Target != "format" || res.Diagnostics[1].Target != "lint" {
		t.Errorf("targets out of order: %+v", res.Diagnostics)
	}
}

func TestRunKeepsFirstNonZeroExitStatus(t *testing.T) {
	cfg := fakeTool(t, `case "$2" in
format) echo "a.py:1:1: error: would reformat"; exit 2 ;;
lint) exit 0 ;;
esac
`)
	req := NewDocumentRequest(
		KindFormat, "file:///a.py", "/tmp/a.py", 1, []string{"format", "lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.ExitStatus != 2 {
		t.Errorf("exit status %d, want the first non-zero status 2", res.ExitStatus)
	}
}

func TestRunWorkspaceScopeArguments(t *testing.T) {
	// Echo the arguments back as a diagnostic message so they can be checked.
	cfg := fakeTool(t, `echo "args.py:1:1: error: $1 $2"
exit 0
`)
	req := NewWorkspaceRequest(KindLint, []string{"lint"})

	res := NewRunner().Run(context.Background(), req, cfg)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Message != "run lint" {
		t.Errorf("workspace scope should invoke 'run <target>': %+v", res.Diagnostics)
	}
}

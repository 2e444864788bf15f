package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bonprosoft/pysen-ls/internal/config"
)

// Runner wraps invocations of the external lint/format tool. It holds no
// state across calls.
type Runner struct{}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run launches the tool once per target and merges the parsed output.
// The subprocess is bounded by the configured timeout and forcibly
// terminated when it expires.
func (r *Runner) Run(ctx context.Context, req Request, cfg *config.Configuration) Result {
	result := Result{RequestID: req.ID}

	for _, target := range req.Targets {
		exitStatus, output, runErr := r.runTarget(ctx, req, cfg, target)
		// The first non-zero status is the interesting one for the record.
		if result.ExitStatus == 0 {
			result.ExitStatus = exitStatus
		}
		if result.RawOutput != "" && output != "" {
			result.RawOutput += "\n"
		}
		result.RawOutput += output

		if runErr != nil {
			result.Err = runErr
			result.Diagnostics = nil
			return result
		}

		diagnostics := parseOutput(output, target)
		if exitStatus != 0 && len(diagnostics) == 0 {
			// Lint findings legitimately cause a non-zero exit; a non-zero
			// exit with nothing parseable is tool trouble.
			result.Err = &Error{
				Kind: ErrParseFailure,
				Err: fmt.Errorf("%s exited with status %d and unparseable output",
					cfg.Settings.ToolPath, exitStatus),
			}
			result.Diagnostics = nil
			return result
		}
		result.Diagnostics = append(result.Diagnostics, diagnostics...)
	}

	return result
}

func (r *Runner) runTarget(
	ctx context.Context,
	req Request,
	cfg *config.Configuration,
	target string,
) (int, string, *Error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Settings.Timeout())
	defer cancel()

	args := []string{}
	if req.Scope == ScopeDocument {
		args = append(args, "run_files", target, req.Path)
	} else {
		args = append(args, "run", target)
	}

	cmd := exec.CommandContext(ctx, cfg.Settings.ToolPath, args...)
	cmd.Dir = cfg.BaseDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if output == "" {
		output = stderr.String()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return -1, output, &Error{
			Kind: ErrTimeout,
			Err: fmt.Errorf("%s %s timed out after %s",
				cfg.Settings.ToolPath, strings.Join(args, " "), cfg.Settings.Timeout()),
		}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output, nil
		}
		return -1, output, &Error{
			Kind: ErrLaunchFailure,
			Err:  fmt.Errorf("failed to launch %s: %w", cfg.Settings.ToolPath, err),
		}
	}

	return 0, output, nil
}

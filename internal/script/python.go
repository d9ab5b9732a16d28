package script

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/astro-actions/pyscript/internal/actions"
)

//go:embed preamble.py
var pythonPreamble string

// PythonExecutor runs the user script in a fresh interpreter subprocess
// with a generated preamble spliced in front of it.
type PythonExecutor struct {
	// Stdout and Stderr receive a live copy of the subprocess streams
	// in addition to the captured buffers. They default to the parent
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewPythonExecutor creates a new python executor.
func NewPythonExecutor() *PythonExecutor {
	return &PythonExecutor{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Language returns the language identifier.
func (e *PythonExecutor) Language() string {
	return "python"
}

// ValidateScript performs basic validation on the script.
func (e *PythonExecutor) ValidateScript(script string) error {
	return validateNotEmpty("python", script)
}

// Execute assembles the combined program, runs it in a subprocess and
// recovers the sentinel result through the file side channel. The
// generated program and the result file are transient artifacts removed
// regardless of outcome.
func (e *PythonExecutor) Execute(ctx context.Context, req *Request, runCtx *actions.RunContext, core *actions.Core) (*Result, error) {
	interpreter, err := ResolveInterpreter(req.PythonVersion)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "pyscript-")
	if err != nil {
		return nil, fmt.Errorf("failed to create program directory: %w", err)
	}
	defer os.RemoveAll(dir)

	programPath := filepath.Join(dir, "main.py")
	resultPath := filepath.Join(dir, "result.out")
	if err := os.WriteFile(programPath, []byte(assembleProgram(req)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write generated program: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, programPath)
	cmd.Env = append(os.Environ(),
		"PYSCRIPT_RESULT_FILE="+resultPath,
		"PYSCRIPT_RESULT_ENCODING="+string(req.ResultEncoding),
	)
	// Both streams are drained continuously while the subprocess runs,
	// so a full pipe buffer can never deadlock it.
	cmd.Stdout = io.MultiWriter(e.stdout(), &stdout)
	cmd.Stderr = io.MultiWriter(e.stderr(), &stderr)

	err = cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", interpreter, err)
		}
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	raw, err := os.ReadFile(resultPath)
	if err == nil {
		result.RawResult = string(raw)
		result.HasResult = true
	}
	return result, nil
}

// assembleProgram builds the combined program: the generated config and
// script assignments, then the static preamble which executes the user
// source in a shared namespace.
func assembleProgram(req *Request) string {
	baseURL := "None"
	if req.BaseURL != "" {
		baseURL = pyStringLiteral(req.BaseURL)
	}
	exempt := req.RetryExemptStatusCodes
	if len(exempt) == 0 {
		exempt = []int{400, 401, 403, 404, 422}
	}

	var b strings.Builder
	b.WriteString("__PYSCRIPT_CONFIG = {\n")
	fmt.Fprintf(&b, "    \"token\": %s,\n", pyStringLiteral(req.Token))
	fmt.Fprintf(&b, "    \"base_url\": %s,\n", baseURL)
	fmt.Fprintf(&b, "    \"retries\": %d,\n", req.Retries)
	fmt.Fprintf(&b, "    \"retry_exempt_status_codes\": %s,\n", pyIntList(exempt))
	b.WriteString("}\n")
	fmt.Fprintf(&b, "__PYSCRIPT_SOURCE = %s\n\n", pyStringLiteral(req.Script))
	b.WriteString(pythonPreamble)
	return b.String()
}

func (e *PythonExecutor) stdout() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

func (e *PythonExecutor) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}

// ResolveInterpreter locates a Python interpreter matching the version
// selector. "3.x", "3" or an empty selector accept any python3; a
// specific minor version like "3.11" prefers a matching binary and
// falls back to the generic one.
func ResolveInterpreter(version string) (string, error) {
	var candidates []string
	switch version {
	case "", "3", "3.x":
		candidates = []string{"python3", "python"}
	default:
		candidates = []string{"python" + version, "python3", "python"}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter found for version %q", version)
}

// EnsurePythonDependencies installs the client libraries the generated
// preamble imports. A requirements.txt in dir takes precedence over the
// hardcoded minimal set and is always installed, since it may pin
// versions or name extra script dependencies. Without a manifest,
// already-importable libraries are left alone.
func EnsurePythonDependencies(ctx context.Context, interpreter, dir string) error {
	args := []string{"-m", "pip", "install", "--quiet"}
	manifest := filepath.Join(dir, "requirements.txt")
	if _, err := os.Stat(manifest); err == nil {
		args = append(args, "-r", manifest)
	} else {
		check := exec.CommandContext(ctx, interpreter, "-c", "import github, requests")
		if check.Run() == nil {
			return nil
		}
		args = append(args, "PyGithub", "requests")
	}

	install := exec.CommandContext(ctx, interpreter, args...)
	var out bytes.Buffer
	install.Stdout = &out
	install.Stderr = &out
	if err := install.Run(); err != nil {
		return fmt.Errorf("failed to install python dependencies: %w: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astro-actions/pyscript/internal/actions"
	"github.com/astro-actions/pyscript/internal/script"
)

// NewRunCmd creates the run command, the entrypoint the action step
// invokes.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "run",
		Short:         "Execute the inline script configured through the step inputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), os.Stdout)
		},
	}
}

// runAction is the single failure funnel: every fatal condition is
// reported through the failure-marking workflow command before the
// non-zero exit, so the pipeline always renders a readable reason.
func runAction(ctx context.Context, out io.Writer) error {
	env := actions.EnvSnapshot()
	core := actions.NewCore(env, out)

	if err := run(ctx, env, core); err != nil {
		core.SetFailed(err.Error())
		return err
	}
	if core.Failed() {
		return errors.New("script marked the run as failed")
	}
	return nil
}

func run(ctx context.Context, env map[string]string, core *actions.Core) error {
	manifest := loadManifest(env)
	input := inputLookup(core, manifest)

	source := input("script")
	if source == "" {
		return errors.New("input required and not supplied: script")
	}

	runCtx, err := actions.NewRunContext(env)
	if err != nil {
		return err
	}

	req, err := buildRequest(env, input, source)
	if err != nil {
		return err
	}
	if req.Token != "" {
		core.SetSecret(req.Token)
	}

	if req.Language == "" || req.Language == "python" {
		interpreter, err := script.ResolveInterpreter(req.PythonVersion)
		if err != nil {
			return err
		}
		slog.Debug("provisioning python dependencies", "interpreter", interpreter)
		if err := script.EnsurePythonDependencies(ctx, interpreter, req.WorkDir); err != nil {
			return err
		}
	}

	output, ok, err := script.NewRunner(core, runCtx).Run(ctx, req)
	if err != nil {
		return err
	}
	// A run the script already marked as failed never publishes a result,
	// which keeps the in-process path consistent with the subprocess one
	// where set_failed exits before the sentinel is written.
	if ok && !core.Failed() {
		slog.Debug("setting result output", "bytes", len(output))
		if err := core.SetOutput("result", output); err != nil {
			return err
		}
	}
	return nil
}

// buildRequest assembles the immutable execution request from the step
// inputs.
func buildRequest(env map[string]string, input func(string) string, source string) (*script.Request, error) {
	retries, err := parseRetries(input("retries"))
	if err != nil {
		return nil, err
	}
	exempt, err := parseStatusCodes(input("retry-exempt-status-codes"))
	if err != nil {
		return nil, err
	}

	req := &script.Request{
		Script:                 source,
		Language:               orDefault(input("language"), "python"),
		Token:                  input("github-token"),
		Retries:                retries,
		RetryExemptStatusCodes: exempt,
		BaseURL:                input("base-url"),
		ResultEncoding:         script.Encoding(orDefault(input("result-encoding"), "json")),
		PythonVersion:          orDefault(input("python-version"), "3.x"),
		ResultFilter:           input("result-jq"),
		ResultSchema:           input("result-schema"),
		WorkDir:                orDefault(env["GITHUB_WORKSPACE"], "."),
	}

	if appID := input("app-id"); appID != "" {
		id, err := strconv.ParseInt(appID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid app-id %q: %w", appID, err)
		}
		installation, err := strconv.ParseInt(input("installation-id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid installation-id: %w", err)
		}
		key := input("private-key")
		if key == "" {
			return nil, errors.New("private-key is required when app-id is set")
		}
		req.AppID = id
		req.InstallationID = installation
		req.PrivateKey = []byte(key)
	}

	return req, nil
}

func parseRetries(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	retries, err := strconv.Atoi(value)
	if err != nil || retries < 0 {
		return 0, fmt.Errorf("invalid retries %q: expected a non-negative integer", value)
	}
	return retries, nil
}

// parseStatusCodes parses the comma-separated retry-exempt-status-codes
// input.
func parseStatusCodes(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	codes := make([]int, 0, len(parts))
	for _, part := range parts {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid retry-exempt-status-codes entry %q", strings.TrimSpace(part))
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// loadManifest locates the action.yml metadata next to the action so
// declared input defaults apply when the runtime supplied no value. A
// missing manifest is not an error.
func loadManifest(env map[string]string) *actions.Manifest {
	dir := env["GITHUB_ACTION_PATH"]
	if dir == "" {
		dir = "."
	}
	for _, name := range []string{"action.yml", "action.yaml"} {
		if m, err := actions.LoadManifest(filepath.Join(dir, name)); err == nil {
			return m
		}
	}
	return nil
}

func inputLookup(core *actions.Core, manifest *actions.Manifest) func(string) string {
	return func(name string) string {
		if value := core.GetInput(name); value != "" {
			return value
		}
		return manifest.InputDefault(name)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

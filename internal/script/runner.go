package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/xeipuuv/gojsonschema"

	"github.com/astro-actions/pyscript/internal/actions"
)

// Runner owns the lifecycle of one script execution: executor selection,
// the run itself, and the result contract applied to the sentinel value.
type Runner struct {
	core   *actions.Core
	runCtx *actions.RunContext
}

// NewRunner creates a Runner bound to the run's helper objects.
func NewRunner(core *actions.Core, runCtx *actions.RunContext) *Runner {
	return &Runner{core: core, runCtx: runCtx}
}

// Run executes the request and returns the step output value. ok is
// false when the script never set the sentinel result variable, which is
// not an error. A non-zero script exit or a malformed result is.
func (r *Runner) Run(ctx context.Context, req *Request) (output string, ok bool, err error) {
	if !req.ResultEncoding.Valid() {
		return "", false, fmt.Errorf("invalid result-encoding %q: expected json or string", req.ResultEncoding)
	}
	if req.Retries < 0 {
		return "", false, fmt.Errorf("retries must be non-negative, got %d", req.Retries)
	}

	executor, err := NewExecutor(req.Language)
	if err != nil {
		return "", false, err
	}
	if err := executor.ValidateScript(req.Script); err != nil {
		return "", false, err
	}

	result, err := executor.Execute(ctx, req, r.runCtx, r.core)
	if err != nil {
		return "", false, err
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = "see the step log for details"
		}
		return "", false, fmt.Errorf("script exited with code %d: %s", result.ExitCode, detail)
	}
	if !result.HasResult {
		return "", false, nil
	}

	if req.ResultEncoding == EncodingString {
		return result.RawResult, true, nil
	}
	return r.shapeJSONResult(req, result.RawResult)
}

// shapeJSONResult validates the encoded result and applies the optional
// jq filter and JSON Schema checks.
func (r *Runner) shapeJSONResult(req *Request, raw string) (string, bool, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return "", false, fmt.Errorf("result is not valid JSON: %w", err)
	}

	if req.ResultFilter != "" {
		filtered, err := applyFilter(req.ResultFilter, value)
		if err != nil {
			return "", false, err
		}
		value = filtered
	}

	if req.ResultSchema != "" {
		if err := validateSchema(req.ResultSchema, value); err != nil {
			return "", false, err
		}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode result: %w", err)
	}
	return string(encoded), true, nil
}

// applyFilter runs a jq expression over the result value and returns the
// first produced value.
func applyFilter(filter string, value interface{}) (interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid result-jq expression: %w", err)
	}
	iter := query.Run(value)
	out, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("result-jq expression %q produced no value", filter)
	}
	if err, isErr := out.(error); isErr {
		return nil, fmt.Errorf("result-jq expression failed: %w", err)
	}
	return out, nil
}

// validateSchema checks the result value against a JSON Schema document.
func validateSchema(schema string, value interface{}) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("invalid result-schema: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("result does not match schema: %s", strings.Join(details, "; "))
	}
	return nil
}

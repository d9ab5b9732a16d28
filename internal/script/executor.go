package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/astro-actions/pyscript/internal/actions"
)

// Executor runs a user script with the github/context/core helper
// objects in scope.
type Executor interface {
	// Execute runs the script and returns the raw execution outcome. A
	// non-zero exit recorded in the Result is an expected failure mode,
	// not an Execute error; errors are reserved for setup failures.
	Execute(ctx context.Context, req *Request, runCtx *actions.RunContext, core *actions.Core) (*Result, error)

	// Language returns the language identifier for this executor.
	Language() string

	// ValidateScript performs static validation of the script.
	ValidateScript(script string) error
}

// NewExecutor creates an executor for the specified language.
func NewExecutor(language string) (Executor, error) {
	switch language {
	case "", "python":
		return NewPythonExecutor(), nil
	case "javascript":
		return NewJavaScriptExecutor(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
}

// SupportedLanguages returns all supported language identifiers.
func SupportedLanguages() []string {
	return []string{"python", "javascript"}
}

func validateNotEmpty(language, script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("%s script cannot be empty", language)
	}
	return nil
}

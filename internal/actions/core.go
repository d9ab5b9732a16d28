package actions

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Core writes GitHub Actions workflow commands and step outputs. It is
// the Go-side counterpart of the `core` helper object the generated
// preamble exposes to user scripts.
type Core struct {
	env    map[string]string
	out    io.Writer
	failed bool
}

// NewCore creates a Core over an environment snapshot. Workflow command
// lines are written to out.
func NewCore(env map[string]string, out io.Writer) *Core {
	return &Core{env: env, out: out}
}

// Debug writes a debug-level workflow command.
func (c *Core) Debug(message string) {
	c.command("debug", message)
}

// Info writes a plain log line.
func (c *Core) Info(message string) {
	fmt.Fprintln(c.out, message)
}

// Warning writes a warning annotation.
func (c *Core) Warning(message string) {
	c.command("warning", message)
}

// Error writes an error annotation.
func (c *Core) Error(message string) {
	c.command("error", message)
}

// SetFailed records a failure message and marks the run as failed. The
// caller is responsible for mapping the failed state to a non-zero exit.
func (c *Core) SetFailed(message string) {
	c.Error(message)
	c.failed = true
}

// Failed reports whether SetFailed has been called.
func (c *Core) Failed() bool {
	return c.failed
}

// SetSecret registers a value to be masked from subsequent log output by
// the pipeline runtime.
func (c *Core) SetSecret(value string) {
	c.command("add-mask", value)
}

// SetOutput appends a step output to the GITHUB_OUTPUT file. Multiline
// values use the heredoc form with a random delimiter so embedded
// newlines cannot terminate the assignment early.
func (c *Core) SetOutput(name, value string) error {
	return c.appendFile("GITHUB_OUTPUT", name, value)
}

// ExportVariable appends an environment variable export to the
// GITHUB_ENV file.
func (c *Core) ExportVariable(name, value string) error {
	return c.appendFile("GITHUB_ENV", name, value)
}

// GetInput returns the value of a declared step input, or "" when the
// input was not supplied.
func (c *Core) GetInput(name string) string {
	return c.env[inputEnvName(name)]
}

// GetRequiredInput returns the value of a step input, failing when the
// input is absent or empty.
func (c *Core) GetRequiredInput(name string) (string, error) {
	value := c.GetInput(name)
	if value == "" {
		return "", fmt.Errorf("input required and not supplied: %s", name)
	}
	return value, nil
}

func (c *Core) command(name, data string) {
	fmt.Fprintf(c.out, "::%s::%s\n", name, escapeCommandData(data))
}

func (c *Core) appendFile(envKey, name, value string) error {
	path := c.env[envKey]
	if path == "" {
		return fmt.Errorf("%s is not set", envKey)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", envKey, err)
	}
	defer f.Close()

	var line string
	if strings.ContainsAny(value, "\r\n") {
		delimiter := "ghadelimiter_" + uuid.NewString()
		line = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
	} else {
		line = fmt.Sprintf("%s=%s\n", name, value)
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write %s file: %w", envKey, err)
	}
	return nil
}

// escapeCommandData escapes the data portion of a workflow command so
// embedded newlines cannot break the single-line command format.
func escapeCommandData(data string) string {
	replacer := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return replacer.Replace(data)
}

// inputEnvName converts a declared input name to the INPUT_* variable
// the pipeline runtime supplies it under.
func inputEnvName(name string) string {
	mangled := strings.ReplaceAll(strings.ReplaceAll(name, " ", "_"), "-", "_")
	return "INPUT_" + strings.ToUpper(mangled)
}

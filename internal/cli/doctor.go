package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/astro-actions/pyscript/internal/script"
)

type checkResult struct {
	name     string
	ok       bool
	critical bool
	messages []string
}

// NewDoctorCmd creates a doctor subcommand that inspects the runner's
// environment for common problems.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose runner environment issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runDoctorChecks()
			out := cmd.OutOrStdout()
			pass := color.New(color.FgGreen).Sprint("[PASS]")
			fail := color.New(color.FgRed).Sprint("[FAIL]")
			warn := color.New(color.FgYellow).Sprint("[WARN]")

			criticalIssues := 0
			for _, res := range results {
				switch {
				case res.ok:
					fmt.Fprintf(out, "%s %s\n", pass, res.name)
				case res.critical:
					fmt.Fprintf(out, "%s %s\n", fail, res.name)
					criticalIssues++
				default:
					fmt.Fprintf(out, "%s %s\n", warn, res.name)
				}
				for _, msg := range res.messages {
					fmt.Fprintf(out, "    %s\n", msg)
				}
			}

			if criticalIssues > 0 {
				return fmt.Errorf("doctor found %d critical issue(s)", criticalIssues)
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}

func runDoctorChecks() []checkResult {
	return []checkResult{
		checkInterpreter(),
		checkPip(),
		checkOutputFile(),
		checkToken(),
	}
}

func checkInterpreter() checkResult {
	res := checkResult{name: "python interpreter", critical: true}
	path, err := script.ResolveInterpreter(os.Getenv("INPUT_PYTHON_VERSION"))
	if err != nil {
		res.messages = []string{err.Error()}
		return res
	}
	res.ok = true
	res.messages = []string{fmt.Sprintf("resolved to %s", path)}
	return res
}

func checkPip() checkResult {
	res := checkResult{name: "pip availability", critical: true}
	path, err := script.ResolveInterpreter(os.Getenv("INPUT_PYTHON_VERSION"))
	if err != nil {
		res.messages = []string{"no interpreter to probe"}
		return res
	}
	if err := exec.Command(path, "-m", "pip", "--version").Run(); err != nil {
		res.messages = []string{fmt.Sprintf("%s -m pip failed: %v", path, err)}
		return res
	}
	res.ok = true
	return res
}

func checkOutputFile() checkResult {
	res := checkResult{name: "GITHUB_OUTPUT file"}
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		res.messages = []string{"GITHUB_OUTPUT is not set; the result output cannot be surfaced"}
		return res
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		res.messages = []string{fmt.Sprintf("not writable: %v", err)}
		return res
	}
	_ = f.Close()
	res.ok = true
	return res
}

func checkToken() checkResult {
	res := checkResult{name: "API authentication"}
	if os.Getenv("INPUT_GITHUB_TOKEN") == "" && os.Getenv("INPUT_APP_ID") == "" {
		res.messages = []string{"no github-token or app-id input; API calls will be anonymous and rate-limited"}
		return res
	}
	res.ok = true
	return res
}

package actions

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RunContext is an immutable snapshot of the workflow run metadata the
// runner was invoked with. It is built once from an environment snapshot
// and never mutated afterwards.
type RunContext struct {
	EventName string
	Actor     string
	Action    string
	Job       string
	Workflow  string
	SHA       string
	Ref       string
	RunID     int64
	RunNumber int

	// Owner and Repo come from GITHUB_REPOSITORY ("owner/name").
	Owner string
	Repo  string

	APIURL     string
	GraphQLURL string
	ServerURL  string

	// Payload is the decoded webhook event payload. Empty when the
	// event file is missing or unparsable; scripts that do not need the
	// payload must still run.
	Payload map[string]interface{}
}

// NewRunContext builds a RunContext from an environment snapshot. Only a
// malformed GITHUB_REPOSITORY value is an error; every other variable
// defaults to an empty value when absent.
func NewRunContext(env map[string]string) (*RunContext, error) {
	rc := &RunContext{
		EventName:  env["GITHUB_EVENT_NAME"],
		Actor:      env["GITHUB_ACTOR"],
		Action:     env["GITHUB_ACTION"],
		Job:        env["GITHUB_JOB"],
		Workflow:   env["GITHUB_WORKFLOW"],
		SHA:        env["GITHUB_SHA"],
		Ref:        env["GITHUB_REF"],
		APIURL:     withDefault(env["GITHUB_API_URL"], "https://api.github.com"),
		GraphQLURL: withDefault(env["GITHUB_GRAPHQL_URL"], "https://api.github.com/graphql"),
		ServerURL:  withDefault(env["GITHUB_SERVER_URL"], "https://github.com"),
		Payload:    loadEventPayload(env["GITHUB_EVENT_PATH"]),
	}

	rc.RunID, _ = strconv.ParseInt(env["GITHUB_RUN_ID"], 10, 64)
	rc.RunNumber, _ = strconv.Atoi(env["GITHUB_RUN_NUMBER"])

	if repository := env["GITHUB_REPOSITORY"]; repository != "" {
		owner, name, found := strings.Cut(repository, "/")
		if !found || owner == "" || name == "" {
			return nil, fmt.Errorf("malformed GITHUB_REPOSITORY %q: expected owner/repo", repository)
		}
		rc.Owner = owner
		rc.Repo = name
	}

	return rc, nil
}

// IssueNumber returns the issue or pull request number the triggering
// event refers to, or 0 when the event carries neither.
func (rc *RunContext) IssueNumber() int {
	for _, key := range []string{"issue", "pull_request"} {
		if nested, ok := rc.Payload[key].(map[string]interface{}); ok {
			if n, ok := payloadNumber(nested["number"]); ok {
				return n
			}
		}
	}
	if n, ok := payloadNumber(rc.Payload["number"]); ok {
		return n
	}
	return 0
}

// loadEventPayload reads the webhook payload file. Any failure yields an
// empty payload rather than an error.
func loadEventPayload(path string) map[string]interface{} {
	if path == "" {
		return map[string]interface{}{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]interface{}{}
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil || payload == nil {
		return map[string]interface{}{}
	}
	return payload
}

func payloadNumber(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// EnvSnapshot captures the process environment as a map. The runner takes
// the snapshot once at startup so everything downstream works from an
// explicit key-value mapping instead of process-wide state.
func EnvSnapshot() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, found := strings.Cut(kv, "="); found {
			env[key] = value
		}
	}
	return env
}

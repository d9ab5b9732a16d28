package script

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-actions/pyscript/internal/actions"
)

func newJSFixture(t *testing.T, env map[string]string) (*actions.Core, *actions.RunContext, *bytes.Buffer) {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	var log bytes.Buffer
	core := actions.NewCore(env, &log)
	runCtx, err := actions.NewRunContext(env)
	require.NoError(t, err)
	return core, runCtx, &log
}

func TestJavaScriptExecutor_ValidateScript(t *testing.T) {
	executor := NewJavaScriptExecutor()

	assert.NoError(t, executor.ValidateScript(`__result__ = 1`))
	assert.Error(t, executor.ValidateScript(""))
	assert.Error(t, executor.ValidateScript("function {"))
}

func TestJavaScriptExecutor_ContextVisible(t *testing.T) {
	core, runCtx, _ := newJSFixture(t, map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REPOSITORY": "octocat/sandbox",
	})

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `__result__ = context.event_name + ":" + context.repo.owner`,
		Language:       "javascript",
		ResultEncoding: EncodingString,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	require.True(t, result.HasResult)
	assert.Equal(t, "push:octocat", result.RawResult)
}

func TestJavaScriptExecutor_CoreLogging(t *testing.T) {
	core, runCtx, log := newJSFixture(t, nil)

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `core.info("hello from js"); core.warning("heads up")`,
		Language:       "javascript",
		ResultEncoding: EncodingJSON,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.HasResult)
	assert.Contains(t, log.String(), "hello from js")
	assert.Contains(t, log.String(), "::warning::heads up")
}

func TestJavaScriptExecutor_UncaughtError(t *testing.T) {
	core, runCtx, _ := newJSFixture(t, nil)

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `throw new Error("js kettle exploded")`,
		Language:       "javascript",
		ResultEncoding: EncodingJSON,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.HasResult)
	assert.Contains(t, result.Stderr, "js kettle exploded")
}

func TestJavaScriptExecutor_SetFailedMarksRun(t *testing.T) {
	core, runCtx, log := newJSFixture(t, nil)

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `core.set_failed("gave up")`,
		Language:       "javascript",
		ResultEncoding: EncodingJSON,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, core.Failed())
	assert.Contains(t, log.String(), "::error::gave up")
}

func TestJavaScriptExecutor_JSONResult(t *testing.T) {
	core, runCtx, _ := newJSFixture(t, nil)

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `__result__ = {status: "success", count: 42}`,
		Language:       "javascript",
		ResultEncoding: EncodingJSON,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	require.True(t, result.HasResult)
	assert.JSONEq(t, `{"status":"success","count":42}`, result.RawResult)
}

func TestJavaScriptExecutor_NonSerializableResult(t *testing.T) {
	core, runCtx, _ := newJSFixture(t, nil)

	executor := NewJavaScriptExecutor()
	req := &Request{
		Script:         `__result__ = function() {}`,
		Language:       "javascript",
		ResultEncoding: EncodingJSON,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.HasResult)
	assert.Contains(t, result.Stderr, "not JSON serializable")
}

// An API call that fails twice and then succeeds must be transparent to
// the script when retries are configured.
func TestJavaScriptExecutor_RetryTransparency(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 1, "body": "done"})
	}))
	defer server.Close()

	core, runCtx, _ := newJSFixture(t, nil)
	executor := NewJavaScriptExecutor()
	executor.transport = http.DefaultTransport

	req := &Request{
		Script: `var comment = github.rest.issues.create_comment({owner: "o", repo: "r", issue_number: 1, body: "done"});
__result__ = comment.body`,
		Language:       "javascript",
		Token:          "test-token",
		Retries:        3,
		BaseURL:        server.URL,
		ResultEncoding: EncodingString,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode, "stderr: %s", result.Stderr)
	require.True(t, result.HasResult)
	assert.Equal(t, "done", result.RawResult)
	assert.Equal(t, 3, calls)
}

func TestJavaScriptExecutor_GraphQL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"viewer": map[string]interface{}{"login": "octocat"}},
		})
	}))
	defer server.Close()

	core, runCtx, _ := newJSFixture(t, nil)
	executor := NewJavaScriptExecutor()

	req := &Request{
		Script:         `__result__ = github.graphql("{viewer{login}}", {}).data.viewer.login`,
		Language:       "javascript",
		Token:          "test-token",
		BaseURL:        server.URL,
		ResultEncoding: EncodingString,
	}
	result, err := executor.Execute(t.Context(), req, runCtx, core)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode, "stderr: %s", result.Stderr)
	require.True(t, result.HasResult)
	assert.Equal(t, "octocat", result.RawResult)
}

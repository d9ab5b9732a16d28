package script

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dop251/goja"
	"github.com/google/go-github/v50/github"

	"github.com/astro-actions/pyscript/internal/actions"
	"github.com/astro-actions/pyscript/internal/githubapi"
)

// JavaScriptExecutor runs the user script in-process on the goja engine.
// The github helper object is backed by the Go API client wrapper
// instead of a generated preamble.
type JavaScriptExecutor struct {
	// transport overrides the API client's HTTP transport in tests.
	transport http.RoundTripper
}

// NewJavaScriptExecutor creates a new javascript executor.
func NewJavaScriptExecutor() *JavaScriptExecutor {
	return &JavaScriptExecutor{}
}

// Language returns the language identifier.
func (e *JavaScriptExecutor) Language() string {
	return "javascript"
}

// ValidateScript performs static validation of the script.
func (e *JavaScriptExecutor) ValidateScript(script string) error {
	if err := validateNotEmpty("javascript", script); err != nil {
		return err
	}
	if _, err := goja.Compile("script", script, false); err != nil {
		return fmt.Errorf("javascript syntax error: %w", err)
	}
	return nil
}

// Execute runs the script with github/context/core bound into the VM and
// reads the sentinel result back out of the global scope.
func (e *JavaScriptExecutor) Execute(ctx context.Context, req *Request, runCtx *actions.RunContext, core *actions.Core) (*Result, error) {
	client, err := githubapi.NewClient(ctx, &githubapi.Config{
		Token:                  req.Token,
		BaseURL:                req.BaseURL,
		AppID:                  req.AppID,
		PrivateKey:             req.PrivateKey,
		InstallationID:         req.InstallationID,
		Retries:                req.Retries,
		RetryExemptStatusCodes: req.RetryExemptStatusCodes,
		Transport:              e.transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure API client: %w", err)
	}

	vm := goja.New()
	e.bindCore(vm, core)
	e.bindContext(vm, runCtx)
	e.bindGitHub(ctx, vm, client)

	result := &Result{}
	if _, err := vm.RunString(req.Script); err != nil {
		result.ExitCode = 1
		result.Stderr = err.Error()
		return result, nil
	}

	sentinel := vm.Get("__result__")
	if sentinel == nil || goja.IsUndefined(sentinel) || goja.IsNull(sentinel) {
		return result, nil
	}

	if req.ResultEncoding == EncodingString {
		result.RawResult = sentinel.String()
		result.HasResult = true
		return result, nil
	}
	encoded, err := json.Marshal(sentinel.Export())
	if err != nil {
		result.ExitCode = 1
		result.Stderr = fmt.Sprintf("result is not JSON serializable: %v", err)
		return result, nil
	}
	result.RawResult = string(encoded)
	result.HasResult = true
	return result, nil
}

func (e *JavaScriptExecutor) bindCore(vm *goja.Runtime, core *actions.Core) {
	obj := vm.NewObject()
	_ = obj.Set("debug", core.Debug)
	_ = obj.Set("info", core.Info)
	_ = obj.Set("warning", core.Warning)
	_ = obj.Set("error", core.Error)
	_ = obj.Set("set_failed", core.SetFailed)
	_ = obj.Set("set_secret", core.SetSecret)
	_ = obj.Set("set_output", func(name, value string) {
		if err := core.SetOutput(name, value); err != nil {
			panic(vm.ToValue(err.Error()))
		}
	})
	_ = obj.Set("export_variable", func(name, value string) {
		if err := core.ExportVariable(name, value); err != nil {
			panic(vm.ToValue(err.Error()))
		}
	})
	_ = obj.Set("get_input", func(name string, required ...bool) string {
		if len(required) > 0 && required[0] {
			value, err := core.GetRequiredInput(name)
			if err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return value
		}
		return core.GetInput(name)
	})
	_ = vm.Set("core", obj)

	// console.log maps onto the same plain log stream.
	console := vm.NewObject()
	_ = console.Set("log", func(args ...interface{}) {
		core.Info(fmt.Sprintln(args...))
	})
	_ = vm.Set("console", console)
}

func (e *JavaScriptExecutor) bindContext(vm *goja.Runtime, runCtx *actions.RunContext) {
	repo := map[string]interface{}{"owner": runCtx.Owner, "repo": runCtx.Repo}
	_ = vm.Set("context", map[string]interface{}{
		"event_name":  runCtx.EventName,
		"actor":       runCtx.Actor,
		"action":      runCtx.Action,
		"job":         runCtx.Job,
		"workflow":    runCtx.Workflow,
		"sha":         runCtx.SHA,
		"ref":         runCtx.Ref,
		"run_id":      runCtx.RunID,
		"run_number":  runCtx.RunNumber,
		"api_url":     runCtx.APIURL,
		"graphql_url": runCtx.GraphQLURL,
		"server_url":  runCtx.ServerURL,
		"payload":     runCtx.Payload,
		"repo":        repo,
		"issue": map[string]interface{}{
			"owner":  runCtx.Owner,
			"repo":   runCtx.Repo,
			"number": runCtx.IssueNumber(),
		},
	})
}

func (e *JavaScriptExecutor) bindGitHub(ctx context.Context, vm *goja.Runtime, client *githubapi.Client) {
	throw := func(err error) {
		panic(vm.ToValue(err.Error()))
	}
	rest := client.Rest()

	issues := vm.NewObject()
	_ = issues.Set("create_comment", func(params map[string]interface{}) interface{} {
		comment, _, err := rest.Issues.CreateComment(ctx,
			paramString(params, "owner"), paramString(params, "repo"), paramInt(params, "issue_number"),
			&github.IssueComment{Body: github.String(paramString(params, "body"))})
		if err != nil {
			throw(err)
		}
		return toPlain(comment)
	})
	_ = issues.Set("add_labels", func(params map[string]interface{}) interface{} {
		labels, _, err := rest.Issues.AddLabelsToIssue(ctx,
			paramString(params, "owner"), paramString(params, "repo"), paramInt(params, "issue_number"),
			paramStrings(params, "labels"))
		if err != nil {
			throw(err)
		}
		return toPlain(labels)
	})
	_ = issues.Set("list_for_repo", func(params map[string]interface{}) interface{} {
		opts := &github.IssueListByRepoOptions{State: paramString(params, "state")}
		list, _, err := rest.Issues.ListByRepo(ctx,
			paramString(params, "owner"), paramString(params, "repo"), opts)
		if err != nil {
			throw(err)
		}
		return toPlain(list)
	})
	_ = issues.Set("get", func(params map[string]interface{}) interface{} {
		issue, _, err := rest.Issues.Get(ctx,
			paramString(params, "owner"), paramString(params, "repo"), paramInt(params, "issue_number"))
		if err != nil {
			throw(err)
		}
		return toPlain(issue)
	})

	repos := vm.NewObject()
	_ = repos.Set("get", func(params map[string]interface{}) interface{} {
		repo, _, err := rest.Repositories.Get(ctx,
			paramString(params, "owner"), paramString(params, "repo"))
		if err != nil {
			throw(err)
		}
		return toPlain(repo)
	})
	_ = repos.Set("get_commit", func(params map[string]interface{}) interface{} {
		commit, _, err := rest.Repositories.GetCommit(ctx,
			paramString(params, "owner"), paramString(params, "repo"), paramString(params, "ref"), nil)
		if err != nil {
			throw(err)
		}
		return toPlain(commit)
	})

	pulls := vm.NewObject()
	_ = pulls.Set("list", func(params map[string]interface{}) interface{} {
		list, _, err := rest.PullRequests.List(ctx,
			paramString(params, "owner"), paramString(params, "repo"),
			&github.PullRequestListOptions{State: paramString(params, "state")})
		if err != nil {
			throw(err)
		}
		return toPlain(list)
	})
	_ = pulls.Set("get", func(params map[string]interface{}) interface{} {
		pull, _, err := rest.PullRequests.Get(ctx,
			paramString(params, "owner"), paramString(params, "repo"), paramInt(params, "pull_number"))
		if err != nil {
			throw(err)
		}
		return toPlain(pull)
	})

	restObj := vm.NewObject()
	_ = restObj.Set("issues", issues)
	_ = restObj.Set("repos", repos)
	_ = restObj.Set("pulls", pulls)

	gh := vm.NewObject()
	_ = gh.Set("rest", restObj)
	_ = gh.Set("graphql", func(query string, variables map[string]interface{}) interface{} {
		result, err := client.GraphQL(ctx, query, variables)
		if err != nil {
			throw(err)
		}
		return result
	})
	_ = gh.Set("paginate", func(method string, params map[string]interface{}) interface{} {
		items, err := e.paginate(ctx, client, method, params)
		if err != nil {
			throw(err)
		}
		return items
	})
	_ = vm.Set("github", gh)
}

// paginate maps a listing-call name onto the generic pagination helper
// and collects every decoded item across all pages.
func (e *JavaScriptExecutor) paginate(ctx context.Context, client *githubapi.Client, method string, params map[string]interface{}) ([]interface{}, error) {
	owner := paramString(params, "owner")
	repo := paramString(params, "repo")
	state := paramString(params, "state")
	rest := client.Rest()

	switch method {
	case "issues.list_for_repo":
		issues, err := githubapi.PaginateAll(ctx, func(ctx context.Context, opts *github.ListOptions) ([]*github.Issue, *github.Response, error) {
			return rest.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{State: state, ListOptions: *opts})
		})
		if err != nil {
			return nil, err
		}
		return toPlainSlice(issues)
	case "pulls.list":
		pulls, err := githubapi.PaginateAll(ctx, func(ctx context.Context, opts *github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
			return rest.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{State: state, ListOptions: *opts})
		})
		if err != nil {
			return nil, err
		}
		return toPlainSlice(pulls)
	default:
		return nil, fmt.Errorf("unsupported paginate method: %s", method)
	}
}

// toPlain converts an API response value to plain maps and slices so the
// VM sees ordinary JS objects.
func toPlain(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil
	}
	return plain
}

func toPlainSlice[T any](items []T) ([]interface{}, error) {
	plain := make([]interface{}, 0, len(items))
	for _, item := range items {
		plain = append(plain, toPlain(item))
	}
	return plain, nil
}

func paramString(params map[string]interface{}, key string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

func paramInt(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func paramStrings(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

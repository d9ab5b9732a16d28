package script

// Encoding selects how the sentinel result value is surfaced as the
// step output.
type Encoding string

const (
	EncodingJSON   Encoding = "json"
	EncodingString Encoding = "string"
)

// Valid reports whether e is a supported result encoding.
func (e Encoding) Valid() bool {
	return e == EncodingJSON || e == EncodingString
}

// Request describes one script execution. It is constructed once from
// the step inputs and never mutated; exactly one Request produces
// exactly one Result.
type Request struct {
	// Script is the user-supplied script text, executed verbatim. It is
	// trusted at the same level as pipeline-defined commands and is
	// deliberately not sandboxed.
	Script string

	// Language selects the executor: "python" (subprocess) or
	// "javascript" (in-process).
	Language string

	// Token authenticates the pre-configured API client.
	Token string

	// App authentication, used instead of Token when all three are set.
	AppID          int64
	PrivateKey     []byte
	InstallationID int64

	// Retries and RetryExemptStatusCodes configure the API client's
	// per-call retry behaviour. Retries never apply to the script as a
	// whole.
	Retries                int
	RetryExemptStatusCodes []int

	// BaseURL overrides the API base URL for enterprise installs.
	BaseURL string

	// ResultEncoding is "json" or "string".
	ResultEncoding Encoding

	// PythonVersion selects the interpreter for the python executor,
	// e.g. "3.x" or "3.11".
	PythonVersion string

	// ResultFilter is an optional jq expression applied to a JSON
	// result before it is surfaced.
	ResultFilter string

	// ResultSchema is an optional JSON Schema document the JSON result
	// must validate against.
	ResultSchema string

	// WorkDir is the directory searched for a requirements.txt
	// dependency manifest. Defaults to the current directory.
	WorkDir string
}

// Result is the outcome of one script execution.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	RawResult string
	HasResult bool
}

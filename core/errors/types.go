// Package errors implements the failure taxonomy for crew runs and how each kind is surfaced.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failure. Each kind has a defined surfacing behavior.
type Kind int

const (
	KindUnknown Kind = iota

	// KindMissingCredential indicates a required API key is absent before a run starts.
	KindMissingCredential

	// KindNoLocalModels indicates the local daemon was selected but exposes no models.
	KindNoLocalModels

	// KindUnsupportedProvider indicates a provider value outside the known enumeration.
	KindUnsupportedProvider

	// KindInvalidInput indicates malformed user input (unknown crew, bad upload, ...).
	KindInvalidInput

	// KindToolInvocation indicates a tool call made by a role failed.
	KindToolInvocation

	// KindPipelineExecution indicates any other failure while tasks were executing.
	KindPipelineExecution
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindMissingCredential:   "missing_credential",
	KindNoLocalModels:       "no_local_models_available",
	KindUnsupportedProvider: "unsupported_provider",
	KindInvalidInput:        "invalid_input",
	KindToolInvocation:      "tool_invocation_failure",
	KindPipelineExecution:   "pipeline_execution_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindBehavior defines how a failure kind is surfaced.
type KindBehavior struct {
	// BlocksRun is true for kinds detected before any client or role exists.
	BlocksRun bool

	// StatusCode is the HTTP status used when the failure reaches the web layer.
	StatusCode int

	// Warning is the inline message shown instead of the raw error, if any.
	Warning string
}

// DefaultBehaviors returns the surfacing behavior for each kind.
func DefaultBehaviors() map[Kind]KindBehavior {
	return map[Kind]KindBehavior{
		KindMissingCredential: {
			BlocksRun:  true,
			StatusCode: http.StatusUnprocessableEntity,
			Warning:    "⚠️ Please enter your API keys in the sidebar to get started",
		},
		KindNoLocalModels: {
			BlocksRun:  true,
			StatusCode: http.StatusUnprocessableEntity,
			Warning:    "⚠️ No Ollama models found. Please make sure Ollama is running and you have models loaded.",
		},
		KindUnsupportedProvider: {
			BlocksRun:  true,
			StatusCode: http.StatusBadRequest,
		},
		KindInvalidInput: {
			BlocksRun:  true,
			StatusCode: http.StatusBadRequest,
		},
		KindToolInvocation: {
			StatusCode: http.StatusBadGateway,
		},
		KindPipelineExecution: {
			StatusCode: http.StatusInternalServerError,
		},
		KindUnknown: {
			StatusCode: http.StatusInternalServerError,
		},
	}
}

var behaviors = DefaultBehaviors()

// Behavior returns the surfacing behavior for a kind.
func Behavior(k Kind) KindBehavior {
	if b, ok := behaviors[k]; ok {
		return b
	}
	return behaviors[KindUnknown]
}

// CrewError wraps an error with a kind classification.
type CrewError struct {
	Kind       Kind
	Message    string
	Underlying error
	StatusCode int
	Context    map[string]string
}

// Error implements the error interface.
func (e *CrewError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CrewError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is a CrewError of the same kind.
func (e *CrewError) Is(target error) bool {
	var ce *CrewError
	if errors.As(target, &ce) {
		return e.Kind == ce.Kind
	}
	return false
}

// With attaches a context key/value and returns the same error.
func (e *CrewError) With(key, value string) *CrewError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingCredential   = &CrewError{Kind: KindMissingCredential}
	ErrNoLocalModels       = &CrewError{Kind: KindNoLocalModels}
	ErrUnsupportedProvider = &CrewError{Kind: KindUnsupportedProvider}
	ErrInvalidInput        = &CrewError{Kind: KindInvalidInput}
	ErrToolInvocation      = &CrewError{Kind: KindToolInvocation}
	ErrPipelineExecution   = &CrewError{Kind: KindPipelineExecution}
)

// New creates a CrewError of the given kind.
func New(kind Kind, message string) *CrewError {
	return &CrewError{Kind: kind, Message: message}
}

// Newf creates a CrewError with a formatted message.
func Newf(kind Kind, format string, args ...any) *CrewError {
	return &CrewError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, message string, err error) *CrewError {
	if err == nil {
		return nil
	}
	return &CrewError{Kind: kind, Message: message, Underlying: err}
}

// KindOf returns the kind of the outermost CrewError in err's chain.
func KindOf(err error) Kind {
	var ce *CrewError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	var ce *CrewError
	if errors.As(err, &ce) && ce.StatusCode != 0 {
		return ce.StatusCode
	}
	return Behavior(KindOf(err)).StatusCode
}

// UserMessage renders err as the human-readable message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	if warning := Behavior(kind).Warning; warning != "" {
		return warning + missingDetail(err)
	}
	var ce *CrewError
	if errors.As(err, &ce) && Behavior(kind).BlocksRun {
		return "⚠️ " + ce.Message
	}
	return "An error occurred: " + err.Error()
}

func missingDetail(err error) string {
	var ce *CrewError
	if !errors.As(err, &ce) || len(ce.Context) == 0 {
		return ""
	}
	missing, ok := ce.Context["missing"]
	if !ok || missing == "" {
		return ""
	}
	names := strings.Split(missing, ",")
	sort.Strings(names)
	return " (missing: " + strings.Join(names, ", ") + ")"
}

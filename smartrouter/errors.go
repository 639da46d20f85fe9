package smartrouter

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed error taxonomy from spec.md §7.
type ErrorKind string

const (
	KindEmptyQuery            ErrorKind = "empty_query"
	KindInterpretationFailure ErrorKind = "interpretation_failure"
	KindTooManySubqueries     ErrorKind = "too_many_subqueries"
	KindDuplicateID           ErrorKind = "duplicate_id"
	KindDanglingDependency    ErrorKind = "dangling_dependency"
	KindCyclicDependency      ErrorKind = "cyclic_dependency"
	KindNoAgentForCapability  ErrorKind = "no_agent_for_capability"
	KindTimeout               ErrorKind = "timeout"
	KindAgentError            ErrorKind = "agent_error"
	KindDispatchSystemError   ErrorKind = "dispatch_system_error"
	KindAggregationError      ErrorKind = "aggregation_error"
	KindSynthesisError        ErrorKind = "synthesis_error"
	KindEvaluationFailure     ErrorKind = "evaluation_failure"
	KindConfigError           ErrorKind = "config_error"
)

// Sentinel errors for errors.Is comparisons independent of message text.
var (
	ErrEmptyQuery           = errors.New("query text is empty")
	ErrTooManySubqueries    = errors.New("subquery count exceeds max_subqueries")
	ErrDuplicateID          = errors.New("duplicate subquery id")
	ErrDanglingDependency   = errors.New("subquery dependency references unknown id")
	ErrCyclicDependency     = errors.New("cyclic dependency among subqueries")
	ErrNoAgentForCapability = errors.New("no agent found for capability")
	ErrEmptyResponses       = errors.New("cannot synthesize with zero responses")
)

// Error is the structured error type every SmartRouter component returns.
// It carries a Kind for programmatic dispatch, a Context map for
// diagnostics, and an optional wrapped cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %v)", e.Message, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel that corresponds to e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEmptyQuery:
		return e.Kind == KindEmptyQuery
	case ErrTooManySubqueries:
		return e.Kind == KindTooManySubqueries
	case ErrDuplicateID:
		return e.Kind == KindDuplicateID
	case ErrDanglingDependency:
		return e.Kind == KindDanglingDependency
	case ErrCyclicDependency:
		return e.Kind == KindCyclicDependency
	case ErrNoAgentForCapability:
		return e.Kind == KindNoAgentForCapability
	}
	return false
}

// NewError builds a smartrouter.Error with the given kind and message.
func NewError(kind ErrorKind, message string, context map[string]interface{}) *Error {
	return &Error{Kind: kind, Message: message, Context: context}
}

// WrapError builds a smartrouter.Error that wraps an underlying cause.
func WrapError(kind ErrorKind, message string, context map[string]interface{}, cause error) *Error {
	return &Error{Kind: kind, Message: message, Context: context, Cause: cause}
}

// CycleError reports a detected dependency cycle with its path, e.g.
// [sq1, sq2, sq1].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %v", e.Path)
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

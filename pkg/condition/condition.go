// Package condition provides allowlist-gated evaluation of user-authored
// boolean condition strings.
package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrRejected marks a condition string that failed the safety allowlist.
var ErrRejected = errors.New("condition rejected by safety allowlist")

var (
	// allowedPattern is the safety allowlist: identifiers, numbers,
	// literals, comparison/logical operators, parentheses, quotes. It
	// guards against arbitrary code execution from user-authored text.
	allowedPattern = regexp.MustCompile(`^[A-Za-z0-9_\s<>=!&|()+\-*/%.,'"\[\]]*$`)

	// callPattern rejects anything that looks like a function call.
	callPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\(`)

	identifierPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
)

// Evaluator evaluates condition strings against workflow variables. It is an
// allowlist gate over a real expression VM, not a sandboxed interpreter:
// rejected or failing evaluation resolves to false, never to an escape.
// Compiled programs are cached and reused across goroutines.
type Evaluator struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "condition"),
		cache:  make(map[string]*vm.Program),
	}
}

// Evaluate resolves a condition string to a boolean. Known variable names
// are substituted with their JSON-encoded values before the string is gated
// by the allowlist. Any rejection or evaluation failure returns false with
// the reason; callers at the executor boundary never propagate it further.
func (e *Evaluator) Evaluate(condition string, variables map[string]any) (bool, error) {
	if condition == "" {
		return false, nil
	}

	substituted := substituteVariables(condition, variables)

	if err := checkAllowlist(substituted); err != nil {
		return false, err
	}

	program, err := e.compile(substituted)
	if err != nil {
		return false, fmt.Errorf("condition %q does not compile: %w", substituted, err)
	}

	out, err := vm.Run(program, map[string]any{})
	if err != nil {
		return false, fmt.Errorf("condition %q failed to evaluate: %w", substituted, err)
	}

	return Truthy(out), nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.cache[expression] = program

	return program, nil
}

// checkAllowlist rejects condition text that falls outside the safety
// pattern or contains call/statement syntax.
func checkAllowlist(condition string) error {
	if !allowedPattern.MatchString(condition) {
		return fmt.Errorf("%w: %q", ErrRejected, condition)
	}

	if callPattern.MatchString(condition) {
		return fmt.Errorf("%w: call syntax in %q", ErrRejected, condition)
	}

	return nil
}

// substituteVariables replaces bare identifiers that name known variables
// with their JSON-encoded values. Expression keywords stay untouched.
func substituteVariables(condition string, variables map[string]any) string {
	if len(variables) == 0 {
		return condition
	}

	return identifierPattern.ReplaceAllStringFunc(condition, func(name string) string {
		switch name {
		case "true", "false", "nil", "and", "or", "not", "in":
			return name
		}

		value, ok := variables[name]
		if !ok {
			return name
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return name
		}

		return string(encoded)
	})
}

// Truthy coerces an evaluation result to a boolean the way node outputs are
// interpreted throughout the orchestrator.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}

		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}

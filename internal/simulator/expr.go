package simulator

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and caches edge condition expressions. A
// condition sees the conversation variables collected so far plus the
// visitor's last message.
type Evaluator struct {
	compiled map[string]*vm.Program
	mu       sync.RWMutex

	// MaxExpressionLength bounds condition size (default 4096).
	MaxExpressionLength int
}

// NewEvaluator creates an evaluator with an empty cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		compiled:            make(map[string]*vm.Program),
		MaxExpressionLength: 4096,
	}
}

// Evaluate runs a condition against the environment, compiling and
// caching it on first use.
func (e *Evaluator) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	if len(expression) > e.MaxExpressionLength {
		return nil, fmt.Errorf("condition exceeds maximum length of %d characters", e.MaxExpressionLength)
	}

	e.mu.RLock()
	prog, ok := e.compiled[expression]
	e.mu.RUnlock()

	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.Env(env))
		if err != nil {
			return nil, fmt.Errorf("compile condition %q: %w", expression, err)
		}
		e.mu.Lock()
		e.compiled[expression] = prog
		e.mu.Unlock()
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	return result, nil
}

// EvaluateBool runs a condition and coerces the result to a boolean
// the way expression guards expect: zero values are false.
func (e *Evaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("condition %q returned %T, expected bool", expression, result)
	}
}

// buildEnvironment exposes the collected variables both under "vars"
// and at the top level, plus the visitor's last input as "input".
func buildEnvironment(vars map[string]string, lastInput string) map[string]interface{} {
	env := map[string]interface{}{
		"input": lastInput,
	}
	collected := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		collected[k] = v
		if k != "vars" && k != "input" {
			env[k] = v
		}
	}
	env["vars"] = collected
	return env
}

package transform

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// computedEvaluator evaluates CEL expressions against a source document for
// OperatorComputed, caching compiled programs by expression text.
type computedEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// newComputedEvaluator builds a CEL environment exposing the source
// document under the "source" variable.
func newComputedEvaluator() (*computedEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("source", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("transform: building CEL environment: %w", err)
	}
	return &computedEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

func (c *computedEvaluator) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.programs[expr] = prg
	c.mu.Unlock()
	return prg, nil
}

// evaluate compiles (or reuses a cached compile of) expr and evaluates it
// against source.
func (c *computedEvaluator) evaluate(expr string, source map[string]interface{}) (interface{}, error) {
	prg, err := c.program(expr)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(map[string]interface{}{"source": source})
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

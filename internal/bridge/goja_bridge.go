package bridge

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// GojaBridge evaluates host expressions and blocks using an embedded
// ECMAScript interpreter. Each call gets a fresh *goja.Runtime: host
// expressions in this DSL are short, side-effect-free fragments, so the
// cost of a new runtime is preferable to the hazard of leaking bindings
// between unrelated evaluations.
type GojaBridge struct{}

// New returns a Bridge backed by goja.
func New() *GojaBridge { return &GojaBridge{} }

func (b *GojaBridge) EvalExpr(text string, env Env) (any, error) {
	vm := goja.New()
	for name, val := range env {
		if err := vm.Set(name, val); err != nil {
			return nil, fmt.Errorf("bridge: binding %q: %w", name, err)
		}
	}
	v, err := vm.RunString(text)
	if err != nil {
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return nil, fmt.Errorf("bridge: %s: %w", exc.String(), err)
		}
		return nil, fmt.Errorf("bridge: evaluating %q: %w", text, err)
	}
	return v.Export(), nil
}

func (b *GojaBridge) EvalBlock(source string, response any, obj any) (any, error) {
	dedented := Dedent(source)
	vm := goja.New()
	wrapped := "(function(response, obj) {\n" + dedented + "\n})"
	v, err := vm.RunString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("bridge: compiling block: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("bridge: block did not evaluate to a function")
	}
	result, err := fn(goja.Undefined(), vm.ToValue(response), vm.ToValue(obj))
	if err != nil {
		return nil, fmt.Errorf("bridge: block execution: %w", err)
	}
	return result.Export(), nil
}

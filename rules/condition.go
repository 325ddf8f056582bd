package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition is a boolean expression over Env, compiled once and evaluated
// every tick. Coordinators use it for their trigger flags.
type Condition struct {
	src     string
	program *vm.Program
}

func compile(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(Env{}), expr.AsBool())
}

// CompileCondition compiles src. An empty source is always true.
func CompileCondition(src string) (*Condition, error) {
	if src == "" {
		src = "true"
	}
	prog, err := compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return &Condition{src: src, program: prog}, nil
}

// MustCondition is CompileCondition for sources known at build time.
func MustCondition(src string) *Condition {
	c, err := CompileCondition(src)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Condition) String() string { return c.src }

// Eval runs the condition against env.
func (c *Condition) Eval(env Env) (bool, error) {
	out, err := vm.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.src, err)
	}
	match, _ := out.(bool)
	return match, nil
}

package game

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// rootEpsilon bounds |f(x)| for x to count as a root; evaluated expressions
// rarely hit exact zero in floating point.
const rootEpsilon = 1e-9

// Equation is one compiled expression in the variable x. The constants pi and
// e are available in both equations and guesses.
type Equation struct {
	text    string
	program *vm.Program
}

func exprEnv(x float64) map[string]any {
	return map[string]any{
		"x":  x,
		"pi": math.Pi,
		"e":  math.E,
	}
}

func NewEquation(text string) (*Equation, error) {
	program, err := expr.Compile(text, expr.Env(exprEnv(0)), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", text, err)
	}
	return &Equation{text: text, program: program}, nil
}

// ValidEquation reports whether text compiles and evaluates. Used as the
// equation bank's line filter.
func ValidEquation(text string) bool {
	eq, err := NewEquation(text)
	if err != nil {
		return false
	}
	_, err = eq.EvalAt(1)
	return err == nil
}

func (e *Equation) Text() string { return e.text }

// EvalAt evaluates the equation at x.
func (e *Equation) EvalAt(x float64) (float64, error) {
	out, err := expr.Run(e.program, exprEnv(x))
	if err != nil {
		return 0, fmt.Errorf("evaluate %q at x=%v: %w", e.text, x, err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("evaluate %q: non-numeric result %v", e.text, out)
	}
	return f, nil
}

// TryGuessRoot evaluates guess as a candidate root and checks whether the
// equation vanishes there.
func (e *Equation) TryGuessRoot(guess string) (bool, error) {
	program, err := expr.Compile(guess, expr.Env(exprEnv(0)), expr.AsFloat64())
	if err != nil {
		return false, fmt.Errorf("compile guess %q: %w", guess, err)
	}
	out, err := expr.Run(program, exprEnv(0))
	if err != nil {
		return false, fmt.Errorf("evaluate guess %q: %w", guess, err)
	}
	x, ok := out.(float64)
	if !ok {
		return false, fmt.Errorf("guess %q: non-numeric result %v", guess, out)
	}
	y, err := e.EvalAt(x)
	if err != nil {
		return false, err
	}
	return math.Abs(y) <= rootEpsilon, nil
}

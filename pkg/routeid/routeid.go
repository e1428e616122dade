// Package routeid normalizes the group identifiers carried by vehicle and
// delay feeds so every ingress point produces the same ID for a route.
package routeid

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type ID string

func (id ID) String() string {
	return string(id)
}

type Normalizer interface {
	Normalize(raw string) ID
}

const (
	StrategyTrailingZero = "trailing-zero"
	StrategyPassthrough  = "passthrough"
	StrategyExpr         = "expr"
)

// TrailingZero drops a single trailing zero from all-digit identifiers, so
// "100" becomes "10". Anything else passes through untouched.
type TrailingZero struct{}

func (TrailingZero) Normalize(raw string) ID {
	raw = strings.TrimSpace(raw)

	if len(raw) > 1 && isDigits(raw) && raw[len(raw)-1] == '0' {
		return ID(raw[:len(raw)-1])
	}

	return ID(raw)
}

type Passthrough struct{}

func (Passthrough) Normalize(raw string) ID {
	return ID(strings.TrimSpace(raw))
}

type exprEnv struct {
	ID string `expr:"id"`
}

// Expr runs a compiled expression against each identifier. The expression sees
// the raw value as `id` and must return a string.
type Expr struct {
	program *vm.Program
}

func NewExpr(code string) (*Expr, error) {
	program, err := expr.Compile(code, expr.Env(exprEnv{}), expr.AsKind(reflect.String))
	if err != nil {
		return nil, fmt.Errorf("compile route expression: %w", err)
	}

	return &Expr{program: program}, nil
}

func (e *Expr) Normalize(raw string) ID {
	raw = strings.TrimSpace(raw)

	output, err := expr.Run(e.program, exprEnv{ID: raw})
	if err != nil {
		return ID(raw)
	}

	value, ok := output.(string)
	if !ok {
		return ID(raw)
	}

	return ID(value)
}

// FromConfig builds the normalizer named by strategy. An empty strategy uses
// TrailingZero.
func FromConfig(strategy string, expression string) (Normalizer, error) {
	switch strategy {
	case "", StrategyTrailingZero:
		return TrailingZero{}, nil
	case StrategyPassthrough:
		return Passthrough{}, nil
	case StrategyExpr:
		if expression == "" {
			return nil, fmt.Errorf("route strategy %q needs an expression", strategy)
		}
		return NewExpr(expression)
	default:
		return nil, fmt.Errorf("unknown route strategy %q", strategy)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

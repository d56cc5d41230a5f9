package model

import (
	"fmt"
	"math"
)

// Sense is the optimization direction of a LinearProgram.
type Sense int

const (
	Maximize Sense = iota
	Minimize
)

func (s Sense) String() string {
	switch s {
	case Maximize:
		return "max"
	case Minimize:
		return "min"
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Relation is the comparison operator of a constraint row.
type Relation int

const (
	EQ Relation = iota
	LE
	GE
)

func (r Relation) String() string {
	switch r {
	case EQ:
		return "="
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// Variable is a named decision variable with bounds Lower <= x <= Upper.
// Infinite bounds are expressed with math.Inf.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
}

// NonNegative returns a variable bounded by [0, +Inf).
func NonNegative(name string) Variable {
	return Variable{Name: name, Lower: 0, Upper: math.Inf(1)}
}

// Constraint is a single row: Coefficients · x  Relation  RHS.
type Constraint struct {
	Name         string
	Coefficients []float64
	Relation     Relation
	RHS          float64
}

// LinearProgram is a dense linear program in general form.
//
//	opt   Objective · x
//	s.t.  Constraints[i]
//	      Variables[j].Lower <= x[j] <= Variables[j].Upper
type LinearProgram struct {
	Name        string
	Sense       Sense
	Variables   []Variable
	Objective   []float64
	Constraints []Constraint
}

// NumVars returns the number of decision variables.
func (lp *LinearProgram) NumVars() int {
	return len(lp.Variables)
}

// Validate checks the structural invariants of the program: matching vector
// lengths, finite coefficients, consistent bounds and unique variable names.
func (lp *LinearProgram) Validate() error {
	if lp == nil {
		return invalid("program", "is nil")
	}
	n := len(lp.Variables)
	switch {
	case n == 0:
		return invalid("variables", "at least one variable is required")
	case len(lp.Objective) != n:
		return invalid("objective", fmt.Sprintf("has %d coefficients, want %d", len(lp.Objective), n))
	case lp.Sense != Maximize && lp.Sense != Minimize:
		return invalid("sense", fmt.Sprintf("unknown %v", lp.Sense))
	}

	seen := make(map[string]struct{}, n)
	for j, v := range lp.Variables {
		field := fmt.Sprintf("variables[%d]", j)
		switch {
		case v.Name == "":
			return invalid(field, "name is empty")
		case math.IsNaN(v.Lower) || math.IsNaN(v.Upper):
			return invalid(field, "bound is NaN")
		case math.IsInf(v.Lower, 1):
			return invalid(field, "lower bound is +Inf")
		case math.IsInf(v.Upper, -1):
			return invalid(field, "upper bound is -Inf")
		case v.Lower > v.Upper:
			return invalid(field, fmt.Sprintf("lower bound %g exceeds upper bound %g", v.Lower, v.Upper))
		}
		if _, ok := seen[v.Name]; ok {
			return &DuplicateVariableError{Name: v.Name}
		}
		seen[v.Name] = struct{}{}

		if !finite(lp.Objective[j]) {
			return invalid(fmt.Sprintf("objective[%d]", j), "coefficient is not finite")
		}
	}

	for i, c := range lp.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		if c.Name != "" {
			field = fmt.Sprintf("constraints[%s]", c.Name)
		}
		switch {
		case len(c.Coefficients) != n:
			return invalid(field, fmt.Sprintf("has %d coefficients, want %d", len(c.Coefficients), n))
		case c.Relation != EQ && c.Relation != LE && c.Relation != GE:
			return invalid(field, fmt.Sprintf("unknown relation %v", c.Relation))
		case !finite(c.RHS):
			return invalid(field, "rhs is not finite")
		}
		for j, a := range c.Coefficients {
			if !finite(a) {
				return invalid(field, fmt.Sprintf("coefficient %d is not finite", j))
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

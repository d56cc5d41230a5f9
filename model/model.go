package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Column is a standard-form variable with bounds [0, Upper].
type Column struct {
	Name         string
	Upper        float64
	IsArtificial bool
}

// Mapping recovers an original variable from standard-form columns:
//
//	x = Offset + Sign*col[Col] - col[Split]
//
// Split is -1 unless the original variable is free.
type Mapping struct {
	Offset float64
	Sign   float64
	Col    int
	Split  int
}

// Model is a linear program in standard form:
//
//	min  C · x
//	s.t. A x = B,  B >= 0
//	     0 <= x[j] <= V[j].Upper
type Model struct {
	//V columns
	V []*Column

	//C objective function coefficients, minimization form
	C []float64

	//A constraints matrix
	A *mat.Dense

	//B constraints rhs
	B []float64

	// NeedArtificial lists the rows without a +1 slack column to start a basis from.
	NeedArtificial []int
	// RowSlack is the slack column of each row, -1 for equality rows.
	RowSlack []int

	// Origin maps each original variable to its columns.
	Origin []Mapping

	NumRows int
	NumCols int
}

func NewModel(numRows, numCols int) *Model {
	return &Model{
		V:        make([]*Column, numCols),
		C:        make([]float64, numCols),
		A:        mat.NewDense(numRows, numCols, nil),
		B:        make([]float64, numRows),
		RowSlack: make([]int, numRows),
		NumRows:  numRows,
		NumCols:  numCols,
	}
}

// Standardize converts a general-form program into a Model. Lower bounds are
// shifted to zero, variables bounded only above are mirrored, free variables
// are split, inequality rows receive a slack (+1 for <=, -1 for >=) and rows
// with a negative rhs are negated.
func Standardize(lp *LinearProgram) (*Model, error) {
	if err := lp.Validate(); err != nil {
		return nil, err
	}
	if len(lp.Constraints) == 0 {
		return nil, invalid("constraints", "at least one constraint is required")
	}

	numRows := len(lp.Constraints)
	numCols := 0
	for _, v := range lp.Variables {
		numCols++
		if math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1) {
			numCols++
		}
	}
	for _, c := range lp.Constraints {
		if c.Relation != EQ {
			numCols++
		}
	}

	m := NewModel(numRows, numCols)
	m.Origin = make([]Mapping, len(lp.Variables))
	for i, c := range lp.Constraints {
		m.B[i] = c.RHS
	}

	sense := 1.0
	if lp.Sense == Maximize {
		sense = -1
	}

	col := 0
	for j, v := range lp.Variables {
		cost := sense * lp.Objective[j]
		mp := Mapping{Sign: 1, Col: col, Split: -1}
		upper := math.Inf(1)
		switch {
		case !math.IsInf(v.Lower, -1):
			mp.Offset = v.Lower
			upper = v.Upper - v.Lower
		case !math.IsInf(v.Upper, 1):
			mp.Offset, mp.Sign = v.Upper, -1
		default:
			mp.Split = col + 1
		}

		for i, c := range lp.Constraints {
			m.A.Set(i, col, mp.Sign*c.Coefficients[j])
			m.B[i] -= c.Coefficients[j] * mp.Offset
		}
		m.C[col] = mp.Sign * cost
		m.V[col] = &Column{Name: v.Name, Upper: upper}
		col++

		if mp.Split >= 0 {
			for i, c := range lp.Constraints {
				m.A.Set(i, col, -c.Coefficients[j])
			}
			m.C[col] = -cost
			m.V[col] = &Column{Name: v.Name + "_neg", Upper: math.Inf(1)}
			col++
		}
		m.Origin[j] = mp
	}

	//adds slack and surplus variables
	for i, c := range lp.Constraints {
		m.RowSlack[i] = -1
		if c.Relation == EQ {
			continue
		}
		coef := 1.0
		if c.Relation == GE {
			coef = -1
		}
		m.A.Set(i, col, coef)
		m.V[col] = &Column{Name: slackName(c, i), Upper: math.Inf(1)}
		m.RowSlack[i] = col
		col++
	}

	for r := range m.NumRows {
		s := m.RowSlack[r]
		if m.B[r] < 0 || (m.B[r] == 0 && s >= 0 && m.A.At(r, s) < 0) {
			m.MultiplyConstraint(r, -1)
		}
		if s < 0 || m.A.At(r, s) < 0 {
			m.NeedArtificial = append(m.NeedArtificial, r)
		}
	}

	return m, nil
}

func slackName(c Constraint, row int) string {
	if c.Name != "" {
		return "s_" + c.Name
	}
	return fmt.Sprintf("s_%d", row)
}

// AddCol appends a column to A with the given cost.
func (m *Model) AddCol(cVec []float64, coef float64, c *Column) error {
	if len(cVec) != m.NumRows {
		return errors.New("mismatch number of rows, i.e. wrong len of cVec")
	}

	m.A = mat.DenseCopyOf(m.A.Grow(0, 1))
	m.A.SetCol(m.NumCols, cVec)
	m.C = append(m.C, coef)
	m.V = append(m.V, c)

	m.NumCols++
	return nil
}

func (m *Model) MultiplyConstraint(row int, mul float64) error {
	if row < 0 || row >= m.NumRows {
		return errors.New("row does not exists")
	}

	for col := range m.NumCols {
		m.A.Set(row, col, m.A.At(row, col)*mul)
	}
	m.B[row] *= mul
	return nil
}

// Recover maps standard-form column values back to the original variables.
func (m *Model) Recover(x []float64) []float64 {
	vals := make([]float64, len(m.Origin))
	for j, mp := range m.Origin {
		v := mp.Offset + mp.Sign*x[mp.Col]
		if mp.Split >= 0 {
			v -= x[mp.Split]
		}
		vals[j] = v
	}
	return vals
}

// Format renders c, A and b for debug output.
func (m *Model) Format() string {
	var sb strings.Builder
	c := mat.NewVecDense(m.NumCols, m.C)
	b := mat.NewVecDense(m.NumRows, m.B)
	fmt.Fprintf(&sb, "c = %v\n", mat.Formatted(c.T(), mat.Prefix("    "), mat.Squeeze()))
	fmt.Fprintf(&sb, "A = %v\n", mat.Formatted(m.A, mat.Prefix("    "), mat.Squeeze()))
	fmt.Fprintf(&sb, "b = %v\n", mat.Formatted(b, mat.Prefix("    "), mat.Squeeze()))
	return sb.String()
}

package simplex

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"q.log/allocator/logging"
	"q.log/allocator/model"
)

// ErrSingularBasis is returned when the basis matrix cannot be inverted.
var ErrSingularBasis = errors.New("simplex: basis matrix is singular")

// Solve solves lp with a two-phase bounded-variable revised simplex.
//
// Infeasible, unbounded and iteration-limited programs are reported through
// Result.Status. An error is returned only for malformed programs
// (*model.InvalidInputError, *model.DuplicateVariableError).
//
// Solve keeps no state between calls and is safe for concurrent use.
func Solve(lp *model.LinearProgram, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	if err := lp.Validate(); err != nil {
		return nil, err
	}
	if len(lp.Constraints) == 0 {
		return solveBoxed(lp), nil
	}

	m, err := model.Standardize(lp)
	if err != nil {
		return nil, err
	}
	s := newSolver(m, o)
	if s.log.V(logging.TRACE).Enabled() {
		s.log.V(logging.TRACE).Info("standard form", "program", lp.Name, "model", m.Format())
	}

	status, err := s.run()
	if err != nil {
		return nil, err
	}
	if status != Optimal {
		s.log.V(logging.DEBUG).Info("no optimal solution", "program", lp.Name, "status", status.String(), "iterations", s.iter)
		return newResult(status, s.iter), nil
	}
	return extract(lp, m.Recover(s.primal()), s.iter), nil
}

// extract builds an optimal Result. The objective is recomputed from the
// original coefficients rather than read from the tableau.
func extract(lp *model.LinearProgram, vals []float64, iterations int) *Result {
	res := &Result{
		Status:     Optimal,
		Values:     make(map[string]float64, len(vals)),
		Objective:  floats.Dot(lp.Objective, vals),
		Iterations: iterations,
	}
	for j, v := range lp.Variables {
		res.Values[v.Name] = vals[j]
	}
	return res
}

// solveBoxed handles a program without constraint rows: every variable sits
// independently at whichever bound improves the objective.
func solveBoxed(lp *model.LinearProgram) *Result {
	vals := make([]float64, lp.NumVars())
	for j, v := range lp.Variables {
		gain := lp.Objective[j]
		if lp.Sense == model.Minimize {
			gain = -gain
		}
		switch {
		case gain > 0:
			if math.IsInf(v.Upper, 1) {
				return newResult(Unbounded, 0)
			}
			vals[j] = v.Upper
		case gain < 0:
			if math.IsInf(v.Lower, -1) {
				return newResult(Unbounded, 0)
			}
			vals[j] = v.Lower
		case !math.IsInf(v.Lower, -1):
			vals[j] = v.Lower
		case !math.IsInf(v.Upper, 1):
			vals[j] = v.Upper
		}
	}
	return extract(lp, vals, 0)
}

type solver struct {
	m   *model.Model
	log logr.Logger

	tol     float64
	feasTol float64
	dualTol float64
	maxIter int
	iter    int
	phase   int
	bland   bool

	basis   []int
	isBasic []bool
	atUpper []bool
	upper   []float64
	cost    []float64

	basisMat *mat.Dense
	binv     *mat.Dense
	xB       *mat.VecDense
}

func newSolver(m *model.Model, o Options) *solver {
	s := &solver{m: m, log: o.Logger, tol: o.Tolerance}
	s.basis = s.addArtificialVariables()

	s.upper = make([]float64, m.NumCols)
	for j, c := range m.V {
		s.upper[j] = c.Upper
	}
	s.isBasic = make([]bool, m.NumCols)
	s.atUpper = make([]bool, m.NumCols)
	for _, j := range s.basis {
		s.isBasic[j] = true
	}

	s.maxIter = o.IterationLimit
	if s.maxIter <= 0 {
		s.maxIter = o.IterationFactor * (m.NumCols + m.NumRows)
	}
	s.feasTol = s.tol * math.Max(1, floats.Norm(m.B, math.Inf(1)))

	s.basisMat = mat.NewDense(m.NumRows, m.NumRows, nil)
	s.binv = mat.NewDense(m.NumRows, m.NumRows, nil)
	s.xB = mat.NewVecDense(m.NumRows, nil)
	return s
}

// addArtificialVariables appends one artificial column for every row without
// a +1 slack and returns the initial basis, which is the identity.
func (s *solver) addArtificialVariables() []int {
	m := s.m
	basis := make([]int, m.NumRows)
	copy(basis, m.RowSlack)
	for _, r := range m.NeedArtificial {
		bRowVec := make([]float64, m.NumRows)
		bRowVec[r] = 1
		basis[r] = m.NumCols
		m.AddCol(bRowVec, 0, &model.Column{
			Name:         fmt.Sprintf("a_%d", r),
			Upper:        math.Inf(1),
			IsArtificial: true,
		})
	}
	return basis
}

func (s *solver) run() (Status, error) {
	if len(s.m.NeedArtificial) > 0 {
		s.phase = 1
		s.cost = make([]float64, s.m.NumCols)
		for j, c := range s.m.V {
			if c.IsArtificial {
				s.cost[j] = 1
			}
		}
		s.log.V(logging.DEBUG).Info("phase 1 started", "artificials", len(s.m.NeedArtificial))
		status, err := s.iterate()
		if err != nil || status != Optimal {
			return status, err
		}
		infeasibility := s.infeasibility()
		s.log.V(logging.DEBUG).Info("phase 1 complete", "infeasibility", infeasibility, "iterations", s.iter)
		if infeasibility > s.feasTol {
			return Infeasible, nil
		}
		if err := s.driveOutArtificialVars(); err != nil {
			return 0, err
		}
	}

	s.phase = 2
	s.bland = false
	s.cost = make([]float64, s.m.NumCols)
	copy(s.cost, s.m.C)
	status, err := s.iterate()
	if err == nil {
		s.log.V(logging.DEBUG).Info("phase 2 complete", "status", status.String(), "iterations", s.iter)
	}
	return status, err
}

// iterate runs simplex iterations on the current phase costs until no
// reduced cost improves the objective.
func (s *solver) iterate() (Status, error) {
	m := s.m
	s.dualTol = s.tol * math.Max(1, floats.Norm(s.cost, math.Inf(1)))

	cb := mat.NewVecDense(m.NumRows, nil)
	dual := mat.NewVecDense(m.NumRows, nil)
	alpha := mat.NewVecDense(m.NumRows, nil)
	for {
		if err := s.factorize(); err != nil {
			return 0, err
		}

		//pT = cbT*B^-1
		for r, j := range s.basis {
			cb.SetVec(r, s.cost[j])
		}
		dual.MulVec(s.binv.T(), cb)

		q, dir := s.price(dual)
		//optimality condition
		if q < 0 {
			return Optimal, nil
		}
		if s.iter >= s.maxIter {
			s.log.V(logging.DEBUG).Info("iteration limit reached", "phase", s.phase, "limit", s.maxIter)
			return IterationLimitExceeded, nil
		}
		s.iter++

		//compute u = B^-1*A_q
		alpha.MulVec(s.binv, m.A.ColView(q))

		r, step, toUpper := s.ratioTest(q, dir, alpha)
		if math.IsInf(step, 1) {
			return Unbounded, nil
		}
		if r < 0 {
			s.atUpper[q] = !s.atUpper[q]
			s.log.V(logging.TRACE).Info("bound flip", "phase", s.phase, "iteration", s.iter, "column", m.V[q].Name, "atUpper", s.atUpper[q])
			continue
		}
		if step <= s.feasTol && !s.bland {
			s.log.V(logging.TRACE).Info("degenerate step, switching to Bland's rule", "phase", s.phase, "iteration", s.iter)
			s.bland = true
		}
		s.pivot(r, q, toUpper)
	}
}

// factorize recomputes B^-1 and the basic solution xB = B^-1 (b - N_u u) for
// the current basis.
func (s *solver) factorize() error {
	m := s.m
	for r, j := range s.basis {
		for i := range m.NumRows {
			s.basisMat.Set(i, r, m.A.At(i, j))
		}
	}

	//compute B^-1
	if err := s.binv.Inverse(s.basisMat); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("%w: %v", ErrSingularBasis, err)
		}
		s.log.V(logging.DEBUG).Info("ill-conditioned basis", "condition", float64(cond))
	}

	rhs := make([]float64, m.NumRows)
	copy(rhs, m.B)
	for j := range m.NumCols {
		if s.isBasic[j] || !s.atUpper[j] {
			continue
		}
		for i := range rhs {
			rhs[i] -= m.A.At(i, j) * s.upper[j]
		}
	}
	s.xB.MulVec(s.binv, mat.NewVecDense(m.NumRows, rhs))
	return nil
}

// price returns the entering column and its direction (+1 to increase from
// the lower bound, -1 to decrease from the upper bound), or -1 when the basis
// is optimal. Dantzig's rule picks the largest improvement; under Bland's rule
// the smallest eligible index wins.
func (s *solver) price(dual *mat.VecDense) (int, float64) {
	m := s.m
	q, dir, best := -1, 0.0, 0.0
	for j := range m.NumCols {
		if s.isBasic[j] || s.upper[j] == 0 {
			continue
		}
		//c'j = cj - pT*Aj
		d := s.cost[j] - mat.Dot(dual, m.A.ColView(j))
		var gain, jdir float64
		switch {
		case !s.atUpper[j] && d < -s.dualTol:
			gain, jdir = -d, 1
		case s.atUpper[j] && d > s.dualTol:
			gain, jdir = d, -1
		default:
			continue
		}
		if s.bland {
			return j, jdir
		}
		if gain > best {
			q, dir, best = j, jdir, gain
		}
	}
	return q, dir
}

// ratioTest returns the blocking row, the step length and whether the leaving
// variable exits at its upper bound. A row of -1 with a finite step means the
// entering column reaches its own opposite bound first; an infinite step
// means nothing blocks.
func (s *solver) ratioTest(q int, dir float64, alpha *mat.VecDense) (int, float64, bool) {
	r, step, toUpper, tie := -1, math.Inf(1), false, false
	for i := range s.m.NumRows {
		j := s.basis[i]
		xi := s.xB.AtVec(i)
		delta := dir * alpha.AtVec(i)

		var limit float64
		var hitsUpper bool
		switch {
		case delta > pivotTolerance:
			limit = math.Max(xi, 0) / delta
		case delta < -pivotTolerance && !math.IsInf(s.upper[j], 1):
			limit = math.Max(s.upper[j]-xi, 0) / -delta
			hitsUpper = true
		default:
			continue
		}

		switch {
		case r < 0 || limit < step-s.feasTol:
			r, step, toUpper, tie = i, limit, hitsUpper, false
		case limit <= step+s.feasTol:
			tie = true
			if j < s.basis[r] {
				r, toUpper = i, hitsUpper
			}
			step = math.Min(step, limit)
		}
	}

	if tie && !s.bland {
		s.log.V(logging.TRACE).Info("ratio tie, switching to Bland's rule", "phase", s.phase, "iteration", s.iter)
		s.bland = true
	}
	if u := s.upper[q]; !math.IsInf(u, 1) && u <= step {
		return -1, u, false
	}
	return r, step, toUpper
}

func (s *solver) pivot(r, q int, toUpper bool) {
	leaving := s.basis[r]
	s.log.V(logging.TRACE).Info("base change", "phase", s.phase, "iteration", s.iter,
		"leaving", s.m.V[leaving].Name, "entering", s.m.V[q].Name)

	s.isBasic[leaving] = false
	s.atUpper[leaving] = toUpper
	s.basis[r] = q
	s.isBasic[q] = true
	s.atUpper[q] = false
}

// infeasibility is the phase 1 objective: the sum of the artificial values.
func (s *solver) infeasibility() float64 {
	sum := 0.0
	for r, j := range s.basis {
		if s.m.V[j].IsArtificial {
			sum += s.xB.AtVec(r)
		}
	}
	return sum
}

// driveOutArtificialVars pivots basic artificials out of a feasible phase 1
// basis. Artificials left on redundant rows, and all others, are pinned to
// [0, 0] so phase 2 can never move them.
func (s *solver) driveOutArtificialVars() error {
	m := s.m
	for r := range m.NumRows {
		if !m.V[s.basis[r]].IsArtificial {
			continue
		}
		row := mat.NewVecDense(m.NumRows, nil)
		row.CopyVec(s.binv.RowView(r))
		for j := range m.NumCols {
			if s.isBasic[j] || m.V[j].IsArtificial || s.upper[j] == 0 {
				continue
			}
			if math.Abs(mat.Dot(row, m.A.ColView(j))) > pivotTolerance {
				s.pivot(r, j, false)
				if err := s.factorize(); err != nil {
					return err
				}
				break
			}
		}
	}
	for j, c := range m.V {
		if c.IsArtificial {
			s.upper[j] = 0
			s.atUpper[j] = false
		}
	}
	return s.factorize()
}

// primal returns the value of every column. Values within the feasibility
// tolerance of a bound are snapped onto it.
func (s *solver) primal() []float64 {
	x := make([]float64, s.m.NumCols)
	for j := range x {
		if !s.isBasic[j] && s.atUpper[j] {
			x[j] = s.upper[j]
		}
	}
	for r, j := range s.basis {
		x[j] = s.snap(j, s.xB.AtVec(r))
	}
	return x
}

func (s *solver) snap(j int, v float64) float64 {
	if math.Abs(v) <= s.feasTol {
		return 0
	}
	if u := s.upper[j]; !math.IsInf(u, 1) && math.Abs(v-u) <= s.feasTol {
		return u
	}
	return v
}

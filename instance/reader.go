package instance

import (
	"fmt"
	"math"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/lukpank/go-glpk/glpk"
	"github.com/pkg/errors"

	"q.log/allocator/logging"
	"q.log/allocator/model"
)

// Reader reads a free MPS file into a LinearProgram.
type Reader struct {
	filename string
	log      logr.Logger
}

func NewReader(filename string) *Reader {
	return &Reader{
		filename: filename,
		log:      logr.Discard(),
	}
}

// WithLogger sets the logger used to report skipped rows.
func (r *Reader) WithLogger(log logr.Logger) *Reader {
	r.log = log
	return r
}

// Read parses the file. Range rows become a pair of inequalities and free
// rows other than the objective are dropped. Bounds glpk reports as
// ±MaxFloat64 map to infinities.
func (r *Reader) Read() (*model.LinearProgram, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	lp := glpk.New()
	defer lp.Delete()
	if err := lp.ReadMPS(glpk.MPS_FILE, nil, r.filename); err != nil {
		return nil, errors.Wrapf(err, "reading MPS file %s", r.filename)
	}

	nCols := lp.NumCols()
	if nCols == 0 {
		return nil, errors.Errorf("MPS file %s has no columns", r.filename)
	}

	prog := &model.LinearProgram{
		Name:      lp.ProbName(),
		Sense:     model.Minimize,
		Variables: make([]model.Variable, nCols),
		Objective: make([]float64, nCols),
	}
	if lp.ObjDir() == glpk.MAX {
		prog.Sense = model.Maximize
	}

	//populate variables and obj function
	for c := 1; c <= nCols; c++ {
		name := lp.ColName(c)
		if name == "" {
			name = fmt.Sprintf("x%d", c)
		}
		prog.Variables[c-1] = model.Variable{
			Name:  name,
			Lower: bound(lp.ColLB(c)),
			Upper: bound(lp.ColUB(c)),
		}
		prog.Objective[c-1] = lp.ObjCoef(c)
	}

	//populate constraints
	for i := 1; i <= lp.NumRows(); i++ {
		name := lp.RowName(i)
		if name == "" {
			name = fmt.Sprintf("r%d", i)
		}
		rowVec := make([]float64, nCols)
		idxs, row := lp.MatRow(i)
		for k, v := range idxs {
			if v == 0 {
				continue
			}
			rowVec[v-1] = row[k]
		}

		lb, ub := bound(lp.RowLB(i)), bound(lp.RowUB(i))
		switch {
		case math.IsInf(lb, -1) && math.IsInf(ub, 1):
			r.log.V(logging.DEBUG).Info("skipping free row", "row", name)
		case math.IsInf(lb, -1):
			prog.Constraints = append(prog.Constraints, model.Constraint{Name: name, Coefficients: rowVec, Relation: model.LE, RHS: ub})
		case math.IsInf(ub, 1):
			prog.Constraints = append(prog.Constraints, model.Constraint{Name: name, Coefficients: rowVec, Relation: model.GE, RHS: lb})
		case lb == ub:
			prog.Constraints = append(prog.Constraints, model.Constraint{Name: name, Coefficients: rowVec, Relation: model.EQ, RHS: lb})
		default:
			upper := append([]float64(nil), rowVec...)
			prog.Constraints = append(prog.Constraints,
				model.Constraint{Name: name + "_lo", Coefficients: rowVec, Relation: model.GE, RHS: lb},
				model.Constraint{Name: name + "_hi", Coefficients: upper, Relation: model.LE, RHS: ub},
			)
		}
	}

	if err := prog.Validate(); err != nil {
		return nil, errors.Wrapf(err, "MPS file %s", r.filename)
	}
	r.log.V(logging.DEBUG).Info("read MPS file", "file", r.filename, "variables", nCols, "constraints", len(prog.Constraints))
	return prog, nil
}

func bound(v float64) float64 {
	switch v {
	case -math.MaxFloat64:
		return math.Inf(-1)
	case math.MaxFloat64:
		return math.Inf(1)
	}
	return v
}

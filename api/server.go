// Package api serves the allocator over HTTP: the current allocation,
// re-optimization for a new risk level and frontier sweeps.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"q.log/allocator/logging"
	"q.log/allocator/model"
	"q.log/allocator/portfolio"
)

type Server struct {
	log        logr.Logger
	optimizer  *portfolio.Optimizer
	rebalancer *portfolio.Rebalancer
	frontier   portfolio.FrontierSpec
	gatherer   prometheus.Gatherer

	group singleflight.Group
}

type Options struct {
	Logger     logr.Logger
	Optimizer  *portfolio.Optimizer
	Rebalancer *portfolio.Rebalancer
	// Frontier supplies Steps and Workers when a request leaves them unset.
	Frontier portfolio.FrontierSpec
	// Gatherer backs /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
}

func NewServer(o Options) (*Server, error) {
	if o.Optimizer == nil || o.Rebalancer == nil {
		return nil, errors.New("api: optimizer and rebalancer are required")
	}
	log := o.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Server{
		log:        log,
		optimizer:  o.Optimizer,
		rebalancer: o.Rebalancer,
		frontier:   o.Frontier,
		gatherer:   o.Gatherer,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /api/allocation", s.allocation)
	mux.HandleFunc("POST /api/optimize", s.optimize)
	mux.HandleFunc("POST /api/frontier", s.sweepFrontier)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

type OptimizeRequest struct {
	TargetVolatility *float64 `json:"target_volatility"`
}

type AllocationResponse struct {
	TargetVolatility float64         `json:"target_volatility"`
	Status           string          `json:"status,omitempty"`
	Accepted         bool            `json:"accepted"`
	Notice           string          `json:"notice,omitempty"`
	ExpectedReturn   string          `json:"expected_return"`
	Volatility       string          `json:"volatility"`
	Rows             []portfolio.Row `json:"rows"`
}

type FrontierRequest struct {
	MinVolatility float64 `json:"min_volatility"`
	MaxVolatility float64 `json:"max_volatility"`
	Steps         int     `json:"steps"`
}

type FrontierPoint struct {
	TargetVolatility float64   `json:"target_volatility"`
	Status           string    `json:"status"`
	ExpectedReturn   float64   `json:"expected_return"`
	Volatility       float64   `json:"volatility"`
	Weights          []float64 `json:"weights,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) allocation(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, s.current(s.rebalancer.TargetVolatility()))
}

func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decoding optimize request"))
		return
	}
	if req.TargetVolatility == nil {
		s.fail(w, http.StatusBadRequest, errors.New("target_volatility is required"))
		return
	}
	target := *req.TargetVolatility

	// identical in-flight targets share one solve
	key := strconv.FormatFloat(target, 'g', -1, 64)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.rebalancer.SetTargetVolatility(target)
	})
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	u := v.(*portfolio.Update)
	s.log.V(logging.DEBUG).Info("optimize request", "targetVolatility", target, "status", u.Status.String(), "accepted", u.Accepted, "shared", shared)

	resp := s.current(target)
	resp.Status = u.Status.String()
	resp.Accepted = u.Accepted
	resp.Notice = u.Notice
	resp.Rows = portfolio.Allocation(s.rebalancer.Assets(), u.Weights)
	ret, vol := portfolio.Stats(s.rebalancer.Assets(), u.Weights)
	resp.ExpectedReturn, resp.Volatility = portfolio.Percent(ret), portfolio.Percent(vol)
	s.write(w, http.StatusOK, resp)
}

func (s *Server) sweepFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decoding frontier request"))
		return
	}
	sweep := portfolio.FrontierSpec{
		MinVolatility: req.MinVolatility,
		MaxVolatility: req.MaxVolatility,
		Steps:         req.Steps,
		Workers:       s.frontier.Workers,
	}
	if sweep.Steps == 0 {
		sweep.Steps = s.frontier.Steps
	}

	points, err := s.optimizer.Frontier(r.Context(), s.rebalancer.Assets(), sweep)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	out := make([]FrontierPoint, len(points))
	for i, p := range points {
		out[i] = FrontierPoint{
			TargetVolatility: p.TargetVolatility,
			Status:           p.Solution.Status.String(),
			ExpectedReturn:   p.Solution.ExpectedReturn,
			Volatility:       p.Solution.Volatility,
			Weights:          p.Solution.Weights,
		}
	}
	s.write(w, http.StatusOK, out)
}

func (s *Server) current(target float64) *AllocationResponse {
	assets := s.rebalancer.Assets()
	weights := s.rebalancer.Weights()
	ret, vol := portfolio.Stats(assets, weights)
	return &AllocationResponse{
		TargetVolatility: target,
		Accepted:         true,
		ExpectedReturn:   portfolio.Percent(ret),
		Volatility:       portfolio.Percent(vol),
		Rows:             portfolio.Allocation(assets, weights),
	}
}

func statusFor(err error) int {
	var invalid *model.InvalidInputError
	var dup *model.DuplicateVariableError
	switch {
	case errors.As(err, &invalid), errors.As(err, &dup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error(err, "request failed", "code", code)
	}
	s.write(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err, "encoding response")
	}
}

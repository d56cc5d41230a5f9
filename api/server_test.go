package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"q.log/allocator/logging"
	"q.log/allocator/metrics"
	"q.log/allocator/portfolio"
)

var _ = Describe("Server", func() {
	var (
		reg    *prometheus.Registry
		server *httptest.Server
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		rec, err := metrics.NewRecorder(reg)
		Expect(err).NotTo(HaveOccurred())

		log := logging.NewWriterLogger(GinkgoWriter)
		opt := portfolio.NewOptimizer(portfolio.WithLogger(log), portfolio.WithMetrics(rec))
		reb, err := portfolio.NewRebalancer(opt, portfolio.DefaultAssets())
		Expect(err).NotTo(HaveOccurred())

		s, err := NewServer(Options{
			Logger:     log,
			Optimizer:  opt,
			Rebalancer: reb,
			Frontier:   portfolio.FrontierSpec{Steps: 5, Workers: 2},
			Gatherer:   reg,
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(s.Handler())
		DeferCleanup(server.Close)
	})

	post := func(path, body string) *http.Response {
		resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	get := func(path string) *http.Response {
		resp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	weights := func(rows []portfolio.Row) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = r.Weight.InexactFloat64()
		}
		return out
	}

	It("reports health", func() {
		resp := get("/api/health")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var body map[string]string
		decode(resp, &body)
		Expect(body).To(HaveKeyWithValue("status", "ok"))
	})

	It("starts from equal weights", func() {
		resp := get("/api/allocation")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var body AllocationResponse
		decode(resp, &body)
		Expect(weights(body.Rows)).To(Equal([]float64{0.25, 0.25, 0.25, 0.25}))
		Expect(body.ExpectedReturn).To(Equal("13.75%"))
	})

	Context("when optimizing", func() {
		It("accepts a feasible target", func() {
			resp := post("/api/optimize", `{"target_volatility": 0.24}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body AllocationResponse
			decode(resp, &body)
			Expect(body.Status).To(Equal("optimal"))
			Expect(body.Accepted).To(BeTrue())
			Expect(body.ExpectedReturn).To(Equal("15.00%"))
			Expect(weights(body.Rows)).To(Equal([]float64{0.5, 0, 0, 0.5}))
		})

		It("keeps the previous weights when no allocation fits", func() {
			post("/api/optimize", `{"target_volatility": 0.20}`)

			resp := post("/api/optimize", `{"target_volatility": 0.05}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body AllocationResponse
			decode(resp, &body)
			Expect(body.Status).To(Equal("infeasible"))
			Expect(body.Accepted).To(BeFalse())
			Expect(body.Notice).To(Equal(portfolio.NoticeInfeasible))
			Expect(weights(body.Rows)).To(Equal([]float64{1, 0, 0, 0}))

			var current AllocationResponse
			decode(get("/api/allocation"), &current)
			Expect(current.TargetVolatility).To(Equal(0.20))
			Expect(weights(current.Rows)).To(Equal([]float64{1, 0, 0, 0}))
		})

		DescribeTable("rejects bad requests",
			func(body string, code int) {
				Expect(post("/api/optimize", body).StatusCode).To(Equal(code))
			},
			Entry("malformed JSON", `{"target_volatility":`, http.StatusBadRequest),
			Entry("missing target", `{}`, http.StatusBadRequest),
			Entry("negative target", `{"target_volatility": -0.1}`, http.StatusUnprocessableEntity),
		)

		It("wraps decoding failures", func() {
			resp := post("/api/optimize", `[]`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(HavePrefix("decoding optimize request: "))
		})
	})

	Context("when sweeping the frontier", func() {
		It("returns ordered points", func() {
			resp := post("/api/frontier", `{"min_volatility": 0.18, "max_volatility": 0.28}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var points []FrontierPoint
			decode(resp, &points)
			Expect(points).To(HaveLen(5))
			for i := 1; i < len(points); i++ {
				Expect(points[i].TargetVolatility).To(BeNumerically(">", points[i-1].TargetVolatility))
				Expect(points[i].ExpectedReturn).To(BeNumerically(">=", points[i-1].ExpectedReturn-1e-9))
			}
			Expect(points[4].Status).To(Equal("optimal"))
			Expect(points[4].ExpectedReturn).To(BeNumerically("~", 0.18, 1e-9))
		})

		It("reports malformed requests", func() {
			resp := post("/api/frontier", `{"steps": "many"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(HavePrefix("decoding frontier request: "))
		})

		It("rejects an inverted range", func() {
			resp := post("/api/frontier", `{"min_volatility": 0.3, "max_volatility": 0.2}`)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	It("exposes solve metrics", func() {
		post("/api/optimize", `{"target_volatility": 0.22}`)
		resp := get("/metrics")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`allocator_solves_total{status="optimal"} 1`))
	})
})

var _ = Describe("NewServer", func() {
	It("requires an optimizer and rebalancer", func() {
		_, err := NewServer(Options{})
		Expect(err).To(HaveOccurred())
	})
})

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"q.log/allocator/api"
	"q.log/allocator/metrics"
	"q.log/allocator/portfolio"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the allocator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			rec, err := metrics.NewRecorder(reg)
			if err != nil {
				return err
			}

			opt := a.optimizer(portfolio.WithMetrics(rec))
			reb, err := portfolio.NewRebalancer(opt, a.assets)
			if err != nil {
				return err
			}
			if _, err := reb.SetTargetVolatility(a.cfg.TargetVolatility); err != nil {
				return err
			}

			s, err := api.NewServer(api.Options{
				Logger:     a.log.WithName("api"),
				Optimizer:  opt,
				Rebalancer: reb,
				Frontier:   portfolio.FrontierSpec{Steps: a.cfg.Frontier.Steps, Workers: a.cfg.Frontier.Workers},
				Gatherer:   reg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				a.log.Info("Listening", "addr", srv.Addr, "assets", len(a.assets))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "serving HTTP")
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.log.Info("Shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"q.log/allocator/config"
	"q.log/allocator/instance"
	"q.log/allocator/logging"
	"q.log/allocator/portfolio"
	"q.log/allocator/simplex"
)

type app struct {
	cfg    *config.Config
	log    logr.Logger
	assets []portfolio.Asset
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "allocator",
		Short:         "Risk-constrained portfolio allocation with a revised simplex solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())
	root.SetOut(out)

	root.AddCommand(
		a.optimizeCommand(),
		a.frontierCommand(),
		a.solveCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log

	a.assets = portfolio.DefaultAssets()
	if cfg.AssetsFile != "" {
		if a.assets, err = instance.ReadAssets(cfg.AssetsFile); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) optimizer(extra ...portfolio.OptimizerOption) *portfolio.Optimizer {
	opts := []portfolio.OptimizerOption{
		portfolio.WithLogger(a.log.WithName("optimizer")),
		portfolio.WithSolverOptions(a.cfg.SolverOptions()...),
	}
	return portfolio.NewOptimizer(append(opts, extra...)...)
}

func (a *app) optimizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Maximize expected return under the target volatility",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			r, err := portfolio.NewRebalancer(a.optimizer(), a.assets)
			if err != nil {
				return err
			}
			u, err := r.SetTargetVolatility(a.cfg.TargetVolatility)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "target volatility %s: %s\n", portfolio.Percent(a.cfg.TargetVolatility), u.Status)
			if u.Notice != "" {
				fmt.Fprintf(a.out, "%s, keeping previous weights\n", u.Notice)
			}
			return printAllocation(a.out, a.assets, u.Weights)
		},
	}
}

func (a *app) frontierCommand() *cobra.Command {
	var minVol, maxVol float64
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Sweep target volatilities and print the best return for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, err := a.optimizer().Frontier(cmd.Context(), a.assets, portfolio.FrontierSpec{
				MinVolatility: minVol,
				MaxVolatility: maxVol,
				Steps:         a.cfg.Frontier.Steps,
				Workers:       a.cfg.Frontier.Workers,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TARGET\tSTATUS\tRETURN\tVOLATILITY\tITERATIONS")
			for _, p := range points {
				ret, vol := "-", "-"
				if p.Solution.Optimal() {
					ret, vol = portfolio.Percent(p.Solution.ExpectedReturn), portfolio.Percent(p.Solution.Volatility)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					portfolio.Percent(p.TargetVolatility), p.Solution.Status, ret, vol, p.Solution.Iterations)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&minVol, "min-volatility", 0, "lowest target in the sweep")
	cmd.Flags().Float64Var(&maxVol, "max-volatility", 0, "highest target in the sweep, 0 means the riskiest asset")
	return cmd
}

func (a *app) solveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "solve <file.mps>",
		Short: "Solve a linear program read from a free MPS file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lp, err := instance.NewReader(args[0]).WithLogger(a.log.WithName("mps")).Read()
			if err != nil {
				return err
			}
			opts := append(a.cfg.SolverOptions(), simplex.WithLogger(a.log.WithName("simplex")))
			res, err := simplex.Solve(lp, opts...)
			if err != nil {
				return errors.Wrapf(err, "solving %s", args[0])
			}

			fmt.Fprintf(a.out, "status: %s\niterations: %d\n", res.Status, res.Iterations)
			if res.Status != simplex.Optimal {
				return nil
			}
			fmt.Fprintf(a.out, "objective: %g\n", res.Objective)
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tVALUE")
			for _, v := range lp.Variables {
				fmt.Fprintf(tw, "%s\t%g\n", v.Name, res.Values[v.Name])
			}
			return tw.Flush()
		},
	}
}

func printAllocation(w io.Writer, assets []portfolio.Asset, weights []float64) error {
	rows := portfolio.Allocation(assets, weights)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tPRICE\tRETURN\tVOLATILITY\tWEIGHT")
	for i, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Asset, portfolio.Money(assets[i].Price),
			portfolio.Percent(assets[i].ExpectedReturn), portfolio.Percent(assets[i].Volatility), portfolio.Percent(weights[i]))
	}
	ret, vol := portfolio.Stats(assets, weights)
	fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t%s\n", portfolio.Percent(ret), portfolio.Percent(vol), portfolio.Percent(portfolio.Total(rows).InexactFloat64()))
	return tw.Flush()
}

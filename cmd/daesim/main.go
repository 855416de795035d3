package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/daesim/internal/bdf"
	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
	"github.com/san-kum/daesim/internal/problems"
	"github.com/san-kum/daesim/internal/report"
	"github.com/san-kum/daesim/internal/solver"
	"github.com/san-kum/daesim/internal/storage"
	"github.com/san-kum/daesim/internal/tui"
)

var (
	dataDir    string
	configFile string
	rtol       float64
	atol       float64
	tEnd       float64
	points     int
	maxOrder   int
	maxSteps   int
	linSolver  string
	jsonOut    string
	noSave     bool
	numSweep   int
	sweepSpan  float64
	workers    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "daesim",
		Short: "sparse implicit DAE solver lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".daesim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "solve a problem",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	addSolveFlags(runCmd)
	runCmd.Flags().StringVar(&jsonOut, "json", "", "also export the full solution as JSON to this path")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "skip writing the run to the data directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [problem]",
		Short: "benchmark a problem across tolerances",
		Args:  cobra.ExactArgs(1),
		RunE:  benchProblem,
	}
	addSolveFlags(benchCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [problem]",
		Short: "compare sparse and dense linear solvers",
		Args:  cobra.ExactArgs(1),
		RunE:  compareSolvers,
	}
	addSolveFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [problem]",
		Short: "solve a family of problems with scaled parameters in parallel",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepProblem,
	}
	addSolveFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&numSweep, "count", 8, "number of parameter scalings")
	sweepCmd.Flags().Float64Var(&sweepSpan, "span", 2.0, "parameters scaled from 1/span to span")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")

	liveCmd := &cobra.Command{
		Use:   "live [problem]",
		Short: "solve with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addSolveFlags(liveCmd)

	problemsCmd := &cobra.Command{
		Use:   "problems",
		Short: "list built-in problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range problems.Names() {
				m, err := problems.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", name, m.Description())
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the default solver configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.Default())
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, benchCmd, compareCmd, sweepCmd, liveCmd, problemsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSolveFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "solver config file (yaml)")
	cmd.Flags().Float64Var(&rtol, "rtol", config.DefaultRTol, "relative tolerance")
	cmd.Flags().Float64Var(&atol, "atol", config.DefaultATol, "absolute tolerance")
	cmd.Flags().Float64Var(&tEnd, "time", 0, "override the final output time")
	cmd.Flags().IntVar(&points, "points", 0, "override the number of output points")
	cmd.Flags().IntVar(&maxOrder, "max-order", config.DefaultMaxOrder, "maximum BDF order")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step budget")
	cmd.Flags().StringVar(&linSolver, "linear-solver", "auto", "linear solver (auto, sparse, dense)")
}

// buildOptions merges the config file, if any, with command-line flags.
// Flags that were set explicitly win over the file.
func buildOptions(cmd *cobra.Command) (config.Options, error) {
	opts := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return opts, fmt.Errorf("failed to load config: %w", err)
		}
		opts = loaded
	}
	if cmd.Flags().Changed("rtol") || configFile == "" {
		opts.RTol = rtol
	}
	if cmd.Flags().Changed("atol") || configFile == "" {
		opts.ATol = atol
	}
	if cmd.Flags().Changed("max-order") || configFile == "" {
		opts.MaxOrder = maxOrder
	}
	if cmd.Flags().Changed("max-steps") || configFile == "" {
		opts.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("linear-solver") || configFile == "" {
		opts.LinearSolver = linSolver
	}
	return opts, nil
}

func buildProblem(cmd *cobra.Command, name string) (problems.Model, *dae.Problem, evaluate.Backend, []float64, error) {
	model, err := problems.Get(name)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	prob, funcs := model.Build()
	be, err := evaluate.NewCompiled(funcs, prob)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	times := model.DefaultTimes()
	if cmd.Flags().Changed("time") || cmd.Flags().Changed("points") {
		end := times[len(times)-1]
		if cmd.Flags().Changed("time") {
			end = tEnd
		}
		n := len(times)
		if cmd.Flags().Changed("points") {
			n = points
		}
		if n < 2 {
			n = 2
		}
		times = make([]float64, n)
		for i := range times {
			times[i] = end * float64(i) / float64(n-1)
		}
	}
	return model, prob, be, times, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	model, prob, be, times, err := buildProblem(cmd, args[0])
	if err != nil {
		return err
	}

	fmt.Println(report.Header.Render(model.Name()))
	start := time.Now()
	sol, solveErr := solver.New(opts).Solve(prob, be, times)
	elapsed := time.Since(start)
	if sol == nil {
		return solveErr
	}

	fmt.Print(report.Summary(sol))
	fmt.Printf("\nelapsed: %v\n", elapsed)

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(model.Name(), opts.RTol, opts.ATol, opts.LinearSolver, sol)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	if jsonOut != "" {
		if err := storage.ExportJSON(jsonOut, model.Name(), opts.LinearSolver, opts.RTol, opts.ATol, sol); err != nil {
			return err
		}
	}
	return solveErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM\tTIME\tSTATUS\tSTEPS\tRTOL\tSOLVER")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1e\t%s\n",
			run.ID,
			run.Problem,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Steps,
			run.RTol,
			run.LinearSolver,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s\n", meta.Problem)
	fmt.Printf("samples: %d\n\n", len(states))

	numVars := len(states[0])
	const maxPlots = 6
	if numVars > maxPlots {
		numVars = maxPlots
	}
	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			if varIdx < len(states[i]) {
				data[i] = states[i][varIdx]
			}
		}
		fmt.Println(report.Plot(data, fmt.Sprintf("y%d vs time", varIdx)))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	return printJSON(meta)
}

func benchProblem(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	model, prob, be, times, err := buildProblem(cmd, args[0])
	if err != nil {
		return err
	}

	rtols := []float64{1e-4, 1e-6, 1e-8}

	fmt.Printf("benchmarking %s\n\n", model.Name())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RTOL\tSTEPS\tRES EVALS\tJAC EVALS\tTIME")

	for _, rt := range rtols {
		o := opts
		o.RTol = rt
		o.ATol = rt

		start := time.Now()
		sol, err := solver.New(o).Solve(prob, be, times)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%.0e\t%d\t%d\t%d\t%v\n",
			rt, sol.Stats.Steps, sol.Stats.ResEvals, sol.Stats.JacEvals, elapsed)
	}
	return w.Flush()
}

func compareSolvers(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	model, prob, be, times, err := buildProblem(cmd, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("comparing linear solvers on %s\n\n", model.Name())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOLVER\tSTEPS\tLIN SOLVES\tJAC EVALS\tTIME\tFINAL Y0")

	for _, kind := range []string{"sparse", "dense"} {
		o := opts
		o.LinearSolver = kind

		start := time.Now()
		sol, err := solver.New(o).Solve(prob, be, times)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		_, y := sol.Final()
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%.9g\n",
			kind, sol.Stats.Steps, sol.Stats.LinSolves, sol.Stats.JacEvals, elapsed, y[0])
	}
	return w.Flush()
}

func sweepProblem(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	model, err := problems.Get(args[0])
	if err != nil {
		return err
	}

	if numSweep < 2 {
		numSweep = 2
	}
	jobs := make([]solver.Job, 0, numSweep)
	scales := make([]float64, 0, numSweep)
	for i := 0; i < numSweep; i++ {
		frac := float64(i) / float64(numSweep-1)
		scale := (1/sweepSpan)*(1-frac) + sweepSpan*frac

		prob, funcs := model.Build()
		for j := range prob.Params {
			prob.Params[j] *= scale
		}
		be, err := evaluate.NewCompiled(funcs, prob)
		if err != nil {
			return err
		}
		jobs = append(jobs, solver.Job{Problem: prob, Backend: be, Times: model.DefaultTimes()})
		scales = append(scales, scale)
	}

	fmt.Printf("sweeping %s across %d parameter scalings\n\n", model.Name(), numSweep)
	start := time.Now()
	results, err := solver.NewBatch(solver.New(opts), workers).Run(context.Background(), jobs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCALE\tSTATUS\tSTEPS\tFINAL Y0")
	for i, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "%.3f\tfailed: %v\t\t\n", scales[i], res.Err)
			continue
		}
		_, y := res.Solution.Final()
		fmt.Fprintf(w, "%.3f\t%s\t%d\t%.6g\n",
			scales[i], res.Solution.Termination.Status, res.Solution.Stats.Steps, y[0])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nelapsed: %v\n", elapsed)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	model, prob, be, times, err := buildProblem(cmd, args[0])
	if err != nil {
		return err
	}

	solve := func(obs bdf.Observer) (*dae.Solution, error) {
		s := solver.New(opts)
		s.SetObserver(obs)
		return s.Solve(prob, be, times)
	}
	m := tui.NewModel(model.Name(), times[len(times)-1], solve)

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

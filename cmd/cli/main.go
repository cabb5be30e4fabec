package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"warpmine/adapters/excel"
	historyfile "warpmine/adapters/history/file"
	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/domain/history"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal"
	"warpmine/internal/config"
	"warpmine/internal/container"
	"warpmine/internal/errors"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/optimize"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "warpmine",
		Short:         "Run the extraction, exploration and optimization engines from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	app := &cliApp{logLevel: &logLevel}
	rootCmd.AddCommand(
		newSimulateCmd(app),
		newCompareCmd(app),
		newExploreCmd(app),
		newOptimizeCmd(app),
		newChatCmd(app),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliApp builds the container lazily so flag parsing errors never touch
// configuration
type cliApp struct {
	logLevel *string
	c        *container.Container
}

func (a *cliApp) container(ctx context.Context) (*container.Container, error) {
	if a.c != nil {
		return a.c, nil
	}
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// CLI runs are not audited
	cfg.History.Backend = config.HistoryNone

	logger, err := internal.NewLogger(*a.logLevel, false)
	if err != nil {
		return nil, err
	}
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.c = c
	return c, nil
}

func (a *cliApp) close() {
	if a.c != nil {
		a.c.Shutdown(context.Background())
		a.c.Logger.Sync()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func seedFlag(cmd *cobra.Command, seed int64) *int64 {
	if !cmd.Flags().Changed("seed") {
		return nil
	}
	return &seed
}

type paramFlags struct {
	oreGrade, leachingTime, acid, temperature, voltage float64
	mineral                                            string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.oreGrade, "ore-grade", 2.5, "Ore grade in %")
	cmd.Flags().Float64Var(&p.leachingTime, "leaching-time", 24, "Leaching time in hours")
	cmd.Flags().Float64Var(&p.acid, "acid", 1.5, "Acid concentration in mol/L")
	cmd.Flags().Float64Var(&p.temperature, "temperature", 65, "Temperature in °C")
	cmd.Flags().Float64Var(&p.voltage, "voltage", 2.2, "Electrowinning voltage in V")
	cmd.Flags().StringVar(&p.mineral, "mineral", string(process.CopperOxide), "Ore path: copper_oxide|copper_sulfide|cobalt_sulfide")
}

func (p *paramFlags) parameters() process.Parameters {
	return process.Parameters{
		OreGrade:          p.oreGrade,
		LeachingTime:      p.leachingTime,
		AcidConcentration: p.acid,
		Temperature:       p.temperature,
		Voltage:           p.voltage,
		MineralType:       process.MineralType(p.mineral),
	}
}

func newSimulateCmd(app *cliApp) *cobra.Command {
	var params paramFlags
	var model string
	var seed int64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate one leach and electrowinning operating point",
		Long: `Simulate recovery, purity, cost and energy for one operating point.

Example: warpmine simulate --ore-grade 2.5 --leaching-time 8 --temperature 65 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			c, err := app.container(cmd.Context())
			if err != nil {
				return err
			}
			if c.Extraction == nil {
				return errors.EngineDisabled("extraction")
			}
			res, err := c.Extraction.Simulate(cmd.Context(), extraction.Request{
				Parameters: params.parameters(),
				Model:      model,
				Seed:       seedOr(seedFlag(cmd, seed), c.Config.Engines.Seed),
			})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	params.register(cmd)
	cmd.Flags().StringVar(&model, "model", "", "Model: random_forest|neural_network|gradient_boosting (default by ore path)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible output")
	return cmd
}

func newCompareCmd(app *cliApp) *cobra.Command {
	var scenarios []string
	var model, mineral string
	var seed int64

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare operating points side by side",
		Long: `Each --scenario is ore_grade,leaching_time,acid,temperature,voltage.

Example: warpmine compare --scenario 2.5,8,1.5,65,2.2 --scenario 5,24,2,75,2.4 --seed 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			reqs := make([]extraction.Request, 0, len(scenarios))
			for i, s := range scenarios {
				p, err := parseScenario(s, process.MineralType(mineral))
				if err != nil {
					return fmt.Errorf("scenario %d: %w", i+1, err)
				}
				reqs = append(reqs, extraction.Request{Parameters: p, Model: model})
			}

			c, err := app.container(cmd.Context())
			if err != nil {
				return err
			}
			if c.Extraction == nil {
				return errors.EngineDisabled("extraction")
			}
			s := seedOr(seedFlag(cmd, seed), c.Config.Engines.Seed)
			for i := range reqs {
				reqs[i].Seed = s
			}
			res, err := c.Extraction.Compare(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringArrayVar(&scenarios, "scenario", nil, "Scenario as five comma separated numbers (repeatable)")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&mineral, "mineral", string(process.CopperOxide), "Ore path for every scenario")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed shared by every scenario")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func parseScenario(s string, mineral process.MineralType) (process.Parameters, error) {
	parts := strings.Split(s, ",")
	if len(parts) != len(process.Dimensions) {
		return process.Parameters{}, fmt.Errorf("want %d values (%s), got %d",
			len(process.Dimensions), strings.Join(process.Dimensions, ","), len(parts))
	}
	x := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return process.Parameters{}, fmt.Errorf("%s: %q is not a number", process.Dimensions[i], part)
		}
		x[i] = v
	}
	p := process.Parameters{MineralType: mineral}
	p.OreGrade, p.LeachingTime, p.AcidConcentration, p.Temperature, p.Voltage = x[0], x[1], x[2], x[3], x[4]
	return p, nil
}

func newExploreCmd(app *cliApp) *cobra.Command {
	var regionsFile, mineral string
	var samples int
	var depth float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Rank regions by mineral prospectivity",
		Long: `Score and rank regions. Without --regions four demo regions are synthesized.

The regions file is .csv or .xlsx with columns region_id, soil_anomaly_index,
structural_control_score, alteration_index and geophysical_signature.

Example: warpmine explore --regions regions.xlsx --mineral cobalt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			var regions []geology.RegionProfile
			if regionsFile != "" {
				r, err := excel.NewRegionReader(regionsFile).ReadRegions()
				if err != nil {
					return err
				}
				regions = r
			}

			c, err := app.container(cmd.Context())
			if err != nil {
				return err
			}
			if c.Exploration == nil {
				return errors.EngineDisabled("exploration")
			}
			res, err := c.Exploration.Analyze(cmd.Context(), exploration.Request{
				Regions:       regions,
				TargetMineral: mineral,
				Seed:          seedFlag(cmd, seed),
				SampleCount:   samples,
				MaxDepthM:     depth,
			})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&regionsFile, "regions", "", "Region profiles (.csv or .xlsx)")
	cmd.Flags().StringVar(&mineral, "mineral", "", "Target mineral: copper|cobalt (default copper)")
	cmd.Flags().IntVar(&samples, "samples", 0, "Synthetic samples per demo region")
	cmd.Flags().Float64Var(&depth, "max-depth", 0, "Maximum drilling depth in metres")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for the demo regions")
	return cmd
}

func newOptimizeCmd(app *cliApp) *cobra.Command {
	var metric, direction, algorithm, mineral, model string
	var iterations, population, patience int
	var seed int64
	var metrics []string
	var weights []float64

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search for the operating point that best serves one metric",
		Long: `Run a metaheuristic search over the standard operating windows.

Pass --metrics to balance several metrics instead; --weights sets their
relative importance and defaults to equal.

Example: warpmine optimize --metric purity --algorithm genetic --iterations 50 --seed 7
Example: warpmine optimize --metrics recovery,cost --weights 2,1 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			c, err := app.container(cmd.Context())
			if err != nil {
				return err
			}
			if c.Optimization == nil {
				return errors.EngineDisabled("optimization")
			}

			logger := c.Logger.Named("cli")
			progress := func(p optimization.ConvergencePoint) {
				logger.Debug("iteration", zap.Int("iteration", p.Iteration), zap.Float64("best", p.BestValue))
			}
			cfg := optimization.Config{
				PopulationSize: population,
				MaxIterations:  iterations,
				Patience:       patience,
				Seed:           seedFlag(cmd, seed),
			}

			if len(metrics) > 0 {
				res, err := c.Optimization.OptimizeWeighted(cmd.Context(), optimize.WeightedRequest{
					Objective: optimization.WeightedSpec{
						Metrics:     metrics,
						Weights:     weights,
						MineralType: process.MineralType(mineral),
					},
					Algorithm: algorithm,
					Config:    cfg,
					Model:     model,
					Progress:  progress,
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			}

			res, err := c.Optimization.Optimize(cmd.Context(), optimize.Request{
				Objective: optimization.ObjectiveSpec{
					Metric:      metric,
					Direction:   optimization.Direction(direction),
					MineralType: process.MineralType(mineral),
				},
				Algorithm: algorithm,
				Config:    cfg,
				Model:     model,
				Progress:  progress,
			})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", process.MetricRecovery, "Metric: recovery|purity|cost|energy|efficiency")
	cmd.Flags().StringVar(&direction, "direction", "", "maximize|minimize (default by metric)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "genetic|particle_swarm|simulated_annealing|differential_evolution")
	cmd.Flags().StringVar(&mineral, "mineral", "", "Ore path (default copper_oxide)")
	cmd.Flags().StringVar(&model, "model", "", "Extraction model scoring the candidates")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Iteration budget")
	cmd.Flags().IntVar(&population, "population", 0, "Population or swarm size")
	cmd.Flags().IntVar(&patience, "patience", 0, "Stop after this many iterations without improvement")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for a reproducible search")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "Balance these metrics instead of --metric")
	cmd.Flags().Float64SliceVar(&weights, "weights", nil, "Relative weight per --metrics entry")
	cmd.MarkFlagsMutuallyExclusive("metric", "metrics")
	return cmd
}

func newChatCmd(app *cliApp) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chat [text...]",
		Short: "Ask the assistant in plain language",
		Long: `Classify a request and run the matching engine, or answer a question.

Example: warpmine chat "Simulate copper extraction at 65°C for 8 hours"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			c, err := app.container(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := c.Assistant.Respond(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(resp)
			}
			fmt.Printf("[%s]\n%s\n", resp.Intent, resp.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response including data")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the audit log",
	}
	cmd.AddCommand(newHistoryExportCmd())
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var path, out, kind, since string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a JSONL audit log to an Excel workbook",
		Long: `Example: warpmine history export --path data/history.jsonl --out history.xlsx --kind optimization`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Kind: history.Kind(kind)}
			if since != "" {
				ts, err := parseTimestamp(since)
				if err != nil {
					return err
				}
				filter.Since = ts
			}

			store, err := historyfile.Open(path, 1, nil)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := excel.ExportHistory(f, entries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("exported %d entries to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "data/history.jsonl", "Audit log file")
	cmd.Flags().StringVar(&out, "out", "history.xlsx", "Workbook to write")
	cmd.Flags().StringVar(&kind, "kind", "", "Only entries of this kind")
	cmd.Flags().StringVar(&since, "since", "", "Only entries at or after this RFC3339 time")
	return cmd
}

func parseTimestamp(s string) (core.Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return core.Timestamp{}, fmt.Errorf("since must be RFC3339: %w", err)
	}
	return core.NewTimestamp(t), nil
}

func seedOr(seed, fallback *int64) *int64 {
	if seed != nil {
		return seed
	}
	return fallback
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/modules/backtesting"
)

// Run flags
var (
	runScenarios string
	runStart     string
	runEnd       string
	runFormat    string
	runOutput    string
	runPreSync   bool
)

// runCmd runs every scenario of a scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenarios of a YAML file",
	Long: `Run simulates every scenario of the file over [start, end] on a bounded
worker pool and stores the result in the backtest database.

Examples:
  backtest run --scenarios scenarios.yaml
  backtest run --scenarios scenarios.yaml --start 2023-01-02 --end 2023-12-29
  backtest run --scenarios scenarios.yaml --sync --remote http://localhost:9000
  backtest run --scenarios scenarios.yaml --format json --output result.json`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runScenarios, "scenarios", "", "Path to the scenario YAML file")
	runCmd.Flags().StringVar(&runStart, "start", "", "First simulated day (defaults to the file's start)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "Last simulated day (defaults to the file's end)")
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, json")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Write the output to a file instead of stdout")
	runCmd.Flags().BoolVar(&runPreSync, "sync", false, "Sync bars of every scenario symbol before running")
	_ = runCmd.MarkFlagRequired("scenarios")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadScenarios(runScenarios)
	if err != nil {
		return err
	}
	start, err := parseDate("start", runStart, plan.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", runEnd, plan.End)
	if err != nil {
		return err
	}

	container, log, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if container.Config.BacktestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, container.Config.BacktestTimeout)
		defer cancel()
	}

	if runPreSync {
		if container.Syncer == nil {
			return fmt.Errorf("--sync needs --remote or MARKET_DATA_URL")
		}
		res, err := container.Syncer.SyncBars(ctx, scenarioSymbols(plan.Scenarios), end)
		if err != nil {
			return fmt.Errorf("failed to sync bars: %w", err)
		}
		log.Info().
			Int("symbols", res.Symbols).
			Int("inserted", res.Inserted).
			Int("failed", len(res.Failed)).
			Msg("Bars synced")
	}

	result, err := container.Backtesting.RunBacktest(ctx, plan.Scenarios, start, end)
	if err != nil && result == nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if runOutput != "" {
		f, ferr := os.Create(runOutput)
		if ferr != nil {
			return fmt.Errorf("failed to create output file: %w", ferr)
		}
		defer f.Close()
		out = f
	}

	var werr error
	switch strings.ToLower(runFormat) {
	case "json":
		werr = writeResultJSON(out, result)
	default:
		werr = writeResultTable(out, result)
	}
	if werr != nil {
		return werr
	}
	// An interrupted run still prints what finished
	return err
}

// scenarioSymbols lists every symbol the scenarios trade or benchmark against
func scenarioSymbols(scenarios []backtesting.Scenario) []string {
	seen := map[string]bool{}
	for _, sc := range scenarios {
		for _, s := range sc.Symbols {
			seen[s] = true
		}
		for _, sec := range sc.Securities {
			seen[sec.Symbol] = true
		}
		if sc.MarketSymbol != "" {
			seen[sc.MarketSymbol] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func writeResultJSON(w io.Writer, result *backtesting.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeResultTable(w io.Writer, result *backtesting.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Backtest %s  %s .. %s\n\n", result.ID, result.Start.Format(dateLayout), result.End.Format(dateLayout))
	fmt.Fprintln(tw, "SCENARIO\tSTOP\tDAYS\tRETURN\tANNUALIZED\tSHARPE\tMAX DD\tTRADES")
	for _, sc := range result.Scenarios {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%d\n",
			sc.Name,
			sc.StopReason,
			sc.DaysSimulated,
			sc.Performance.TotalReturn*100,
			sc.Performance.AnnualizedReturn*100,
			sc.Performance.Sharpe,
			sc.Risk.MaxDrawdown*100,
			sc.Performance.TradeCount,
		)
	}
	s := result.Summary
	fmt.Fprintf(tw, "\nCompleted %d/%d  avg return %.2f%%  avg sharpe %.2f  max drawdown %.2f%%  trades %d\n",
		s.Completed, s.Scenarios, s.AverageReturn*100, s.AverageSharpe, s.MaxDrawdown*100, s.TotalTrades)
	for _, sc := range result.Scenarios {
		if sc.Error != "" {
			fmt.Fprintf(tw, "  %s: %s\n", sc.Name, sc.Error)
		}
	}
	return tw.Flush()
}

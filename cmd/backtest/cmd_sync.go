package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/foresight/internal/utils"
)

// Sync flags
var (
	syncSymbols    string
	syncEnd        string
	syncIndicators bool
)

// syncCmd pulls missing bars from the market data service
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fill the history database from the market data service",
	Long: `Sync fetches every bar after the latest stored one for each symbol.
Symbols without stored bars are seeded with three years of history.

Examples:
  backtest sync --remote http://localhost:9000 --symbols SPY,AAPL,TLT
  backtest sync --end 2024-06-28 --indicators`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncSymbols, "symbols", "", "Comma separated symbols (defaults to every stored symbol)")
	syncCmd.Flags().StringVar(&syncEnd, "end", "", "Last day to fetch (defaults to today)")
	syncCmd.Flags().BoolVar(&syncIndicators, "indicators", false, "Also fetch economic indicators for the end date")
}

func runSync(cmd *cobra.Command, args []string) error {
	end, err := parseDate("end", syncEnd, time.Now().UTC().Format(dateLayout))
	if err != nil {
		return err
	}

	container, log, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()
	if container.Syncer == nil {
		return fmt.Errorf("sync needs --remote or MARKET_DATA_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	symbols := utils.ParseSymbols(syncSymbols)
	if len(symbols) == 0 {
		if symbols, err = container.HistoryStore.Symbols(ctx); err != nil {
			return fmt.Errorf("failed to list stored symbols: %w", err)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given and none stored")
	}

	res, err := container.Syncer.SyncBars(ctx, symbols, end)
	if err != nil {
		return fmt.Errorf("failed to sync bars: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "symbols %d  inserted %d  rejected %d  failed %d\n",
		res.Symbols, res.Inserted, res.Rejected, len(res.Failed))
	failed := make([]string, 0, len(res.Failed))
	for symbol := range res.Failed {
		failed = append(failed, symbol)
	}
	sort.Strings(failed)
	for _, symbol := range failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", symbol, res.Failed[symbol])
	}

	if syncIndicators {
		n, err := container.Syncer.SyncIndicators(ctx, end)
		if err != nil {
			return fmt.Errorf("failed to sync indicators: %w", err)
		}
		log.Info().Int("indicators", n).Msg("Indicators synced")
	}
	return nil
}

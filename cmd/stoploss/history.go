package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/raykavin/stoploss/pkg/calculator"
	"github.com/raykavin/stoploss/pkg/core"
)

var (
	// History command flags
	showDays  int
	statsDays int
)

func buildHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the local price history store",
	}

	showCmd := &cobra.Command{
		Use:   "show <ticker>",
		Short: "Print the most recent stored daily bars",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
	showCmd.Flags().IntVarP(&showDays, "days", "d", 10, "Number of days to print")

	statsCmd := &cobra.Command{
		Use:   "stats <ticker>",
		Short: "Summarize the daily true-range distribution",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryStats,
	}
	statsCmd.Flags().IntVarP(&statsDays, "days", "d", 90, "Number of days to analyze")

	purgeCmd := &cobra.Command{
		Use:   "purge <ticker>",
		Short: "Delete all stored data for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryPurge,
	}

	historyCmd.AddCommand(showCmd, statsCmd, purgeCmd)
	return historyCmd
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	symbol := core.NormalizeSymbol(args[0])
	bars, err := history.RecentBars(cmd.Context(), symbol, showDays)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no stored data for %s", symbol)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Open", "High", "Low", "Close", "Volume"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, bar := range bars {
		table.Append([]string{
			bar.Date.Format(dateLayout),
			fmt.Sprintf("%.2f", bar.Open),
			fmt.Sprintf("%.2f", bar.High),
			fmt.Sprintf("%.2f", bar.Low),
			fmt.Sprintf("%.2f", bar.Close),
			fmt.Sprintf("%d", bar.Volume),
		})
	}
	table.Render()

	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	symbol := core.NormalizeSymbol(args[0])
	bars, err := history.RecentBars(cmd.Context(), symbol, statsDays+1)
	if err != nil {
		return err
	}

	ranges, err := calculator.TrueRanges(bars)
	if err != nil {
		return err
	}
	if len(ranges) == 0 {
		return fmt.Errorf("not enough stored data for %s", symbol)
	}

	mean, stdDev := stat.MeanStdDev(ranges, nil)

	fmt.Printf("%s daily true range over %d day(s)\n", symbol, len(ranges))
	fmt.Printf("Close:   %.2f (window high %.2f, low %.2f)\n",
		core.Closes(bars).Last(0),
		slices.Max(core.Highs(bars).Values()),
		slices.Min(core.Lows(bars).Values()))
	fmt.Printf("Mean:    %.2f\n", mean)
	fmt.Printf("Std dev: %.2f\n", stdDev)
	fmt.Println()

	hist := histogram.Hist(10, ranges)
	return histogram.Fprint(os.Stdout, hist, histogram.Linear(10))
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	symbol := core.NormalizeSymbol(args[0])
	removed, err := history.Purge(cmd.Context(), symbol)
	if err != nil {
		return err
	}
	if removed == 0 {
		return errors.New("nothing to purge")
	}

	fmt.Printf("Removed %d record(s) for %s\n", removed, symbol)
	return nil
}

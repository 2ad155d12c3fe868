package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/StudioSol/set"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/raykavin/stoploss/pkg/calculator"
	"github.com/raykavin/stoploss/pkg/config"
	"github.com/raykavin/stoploss/pkg/core"
	"github.com/raykavin/stoploss/pkg/fetcher"
	"github.com/raykavin/stoploss/pkg/indicator"
	"github.com/raykavin/stoploss/pkg/logger"
	"github.com/raykavin/stoploss/pkg/notification"
)

const (
	dateLayout = core.DateLayout
	smaPeriod  = 50

	// minimum calendar window fetched when a symbol has no stored history
	minBackfillDays = 180

	// calendar window fetched once when the store holds fewer than
	// smaPeriod trading days
	smaBackfillDays = 75
)

// Command line flags
var (
	// Calculate command flags
	percentage    float64
	simpleMode    bool
	trailingMode  bool
	atrMode       bool
	atrPeriod     int
	atrMultiplier float64
	sinceDate     string
	noHistory     bool
	fromWeek52    bool
	notify        bool
)

func buildCalculateCmd() *cobra.Command {
	calculateCmd := &cobra.Command{
		Use:   "calculate [tickers...]",
		Short: "Calculate stop-loss prices for the given tickers",
		Long: "Fetches current quotes and prints a stop-loss price per ticker. " +
			"Tickers come from the arguments or, when omitted, from the configuration file.",
		RunE: runCalculate,
	}

	// Add flags
	calculateCmd.Flags().Float64VarP(&percentage, "percentage", "p", 0, "Stop-loss distance in percent (e.g. 5.0)")
	calculateCmd.Flags().BoolVarP(&simpleMode, "simple", "s", false, "Stop below the current price (default)")
	calculateCmd.Flags().BoolVarP(&trailingMode, "trailing", "t", false, "Stop below the high-water mark")
	calculateCmd.Flags().BoolVarP(&atrMode, "atr", "a", false, "Stop based on average true range")
	calculateCmd.Flags().IntVar(&atrPeriod, "atr-period", 0, "Number of days in the ATR window")
	calculateCmd.Flags().Float64Var(&atrMultiplier, "atr-multiplier", 0, "ATR multiples between price and stop")
	calculateCmd.Flags().StringVar(&sinceDate, "since", "", "Only consider history from this date (e.g. 2024-01-02)")
	calculateCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip the local price history store")
	calculateCmd.Flags().BoolVar(&fromWeek52, "week52-high", false, "Anchor the stop to the 52-week high")
	calculateCmd.Flags().BoolVarP(&notify, "notify", "n", false, "Send results to the configured Telegram chat")

	return calculateCmd
}

func runCalculate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := initLogger(cfg)
	if err != nil {
		return err
	}

	tickers := resolveTickers(args, cfg)
	if len(tickers) == 0 {
		return errors.New("no tickers given: pass them as arguments or list them in the configuration file")
	}

	mode, err := resolveMode(cfg)
	if err != nil {
		return err
	}

	pct := cfg.Percentage
	if cmd.Flags().Changed("percentage") {
		pct = percentage
	}
	period := cfg.ATRPeriod
	if cmd.Flags().Changed("atr-period") {
		period = atrPeriod
	}
	multiplier := cfg.ATRMultiplier
	if cmd.Flags().Changed("atr-multiplier") {
		multiplier = atrMultiplier
	}

	var since time.Time
	if sinceDate != "" {
		since, err = time.Parse(dateLayout, sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected format %s", sinceDate, dateLayout)
		}
	}

	ctx := cmd.Context()
	quoter := fetcher.New(
		fetcher.WithCacheTTL(cfg.CacheTTL),
		fetcher.WithLogger(log),
	)

	var history core.History
	if !noHistory {
		history, err = openHistory(cfg)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	if history != nil && mode != calculator.ModeSimple {
		refreshHistory(ctx, log, quoter, history, tickers, since, period)
	}

	log.Infof("Fetching quotes for %d ticker(s)", len(tickers))
	quotes := quoter.Quotes(ctx, tickers)

	if history != nil {
		for _, symbol := range tickers {
			qr := quotes[symbol]
			if qr.Err != nil {
				continue
			}
			if _, err := history.StoreQuote(ctx, qr.Quote); err != nil {
				log.WithError(err).Warnf("Could not store quote for %s", symbol)
			}
		}
	}

	calc := calculator.New()
	rows := make([]resultRow, 0, len(tickers))
	for _, symbol := range tickers {
		qr := quotes[symbol]
		if qr.Err != nil {
			log.WithError(qr.Err).Errorf("Skipping %s", symbol)
			rows = append(rows, resultRow{symbol: symbol, err: qr.Err})
			continue
		}

		result, err := computeStop(ctx, log, calc, history, quoter, qr.Quote, mode, pct, period, multiplier, since)
		if err != nil {
			log.WithError(err).Errorf("Skipping %s", symbol)
			rows = append(rows, resultRow{symbol: symbol, err: err})
			continue
		}
		rows = append(rows, resultRow{symbol: symbol, result: &result})
	}

	renderResults(os.Stdout, rows)

	succeeded := lo.CountBy(rows, func(r resultRow) bool { return r.err == nil })
	log.Infof("Calculated %d/%d stop-loss price(s)", succeeded, len(rows))

	if notify {
		sendResults(log, cfg, rows)
	}

	if succeeded == 0 {
		return errors.New("no stop-loss could be calculated")
	}
	return nil
}

// resolveTickers merges the argument list with the configured ticker list,
// normalizing symbols and dropping duplicates while keeping the input order.
func resolveTickers(args []string, cfg *config.Config) []string {
	source := args
	if len(source) == 0 {
		source = cfg.Tickers
	}

	unique := set.NewLinkedHashSetString()
	for _, ticker := range source {
		symbol := core.NormalizeSymbol(ticker)
		if symbol == "" {
			continue
		}
		unique.Add(symbol)
	}

	tickers := make([]string, 0, len(source))
	for ticker := range unique.Iter() {
		tickers = append(tickers, ticker)
	}
	return tickers
}

func resolveMode(cfg *config.Config) (calculator.Mode, error) {
	selected := 0
	mode := calculator.ModeSimple
	if cfg.TrailingEnabled && !simpleMode {
		mode = calculator.ModeTrailing
	}
	if simpleMode {
		selected++
	}
	if trailingMode {
		selected++
		mode = calculator.ModeTrailing
	}
	if atrMode {
		selected++
		mode = calculator.ModeATR
	}
	if selected > 1 {
		return mode, errors.New("--simple, --trailing and --atr are mutually exclusive")
	}
	return mode, nil
}

// refreshHistory brings the stored daily bars up to date before any
// calculation that depends on them.
func refreshHistory(
	ctx context.Context,
	log logger.Logger,
	quoter core.Quoter,
	history core.History,
	symbols []string,
	since time.Time,
	period int,
) {
	log.Info("Updating historical price data")
	progress := progressbar.Default(int64(len(symbols)))
	for _, symbol := range symbols {
		refreshSymbol(ctx, log, quoter, history, symbol, since, period)
		if err := progress.Add(1); err != nil {
			log.WithError(err).Debug("Progress bar error")
		}
	}
}

func refreshSymbol(
	ctx context.Context,
	log logger.Logger,
	quoter core.Quoter,
	history core.History,
	symbol string,
	since time.Time,
	period int,
) {
	last, ok, err := history.LastUpdate(ctx, symbol)
	if err != nil {
		log.WithError(err).Warnf("Could not read last update for %s", symbol)
		return
	}

	var start time.Time
	if ok {
		start = last.AddDate(0, 0, 1)
		if start.After(time.Now()) {
			return
		}
	} else {
		start = backfillStart(period)
		if !since.IsZero() && since.Before(start) {
			start = since
		}
	}

	bars, err := quoter.Daily(ctx, symbol, start)
	if err != nil {
		log.WithError(err).Warnf("Could not fetch history for %s", symbol)
		return
	}

	inserted, err := history.StoreBars(ctx, symbol, bars)
	if err != nil {
		log.WithError(err).Warnf("Could not store history for %s", symbol)
		return
	}
	if inserted > 0 {
		log.Debugf("Stored %d new data point(s) for %s", inserted, symbol)
	}
}

func backfillStart(period int) time.Time {
	days := period * 3
	if days < minBackfillDays {
		days = minBackfillDays
	}
	return time.Now().AddDate(0, 0, -days)
}

func computeStop(
	ctx context.Context,
	log logger.Logger,
	calc *calculator.Calculator,
	history core.History,
	quoter core.Quoter,
	quote core.Quote,
	mode calculator.Mode,
	pct float64,
	period int,
	multiplier float64,
	since time.Time,
) (calculator.Result, error) {
	var opts []calculator.Option

	if history != nil {
		if sma, ok := displaySMA(ctx, log, history, quoter, quote.Symbol); ok {
			opts = append(opts, calculator.WithSMA50(sma))
		}
	}

	if fromWeek52 {
		base := week52Base(ctx, history, quote)
		if base <= 0 {
			return calculator.Result{}, fmt.Errorf("no 52-week high known for %s", quote.Symbol)
		}
		opts = append(opts, calculator.WithBasePrice(base))
	}

	switch mode {
	case calculator.ModeATR:
		if history == nil {
			return calculator.Result{}, errors.New("the atr mode needs stored price history, remove --no-history")
		}
		atr, err := historicalATR(ctx, log, history, quoter, quote.Symbol, period)
		if err != nil {
			return calculator.Result{}, err
		}
		return calc.ATRStop(quote, pct, atr, multiplier, opts...)

	case calculator.ModeTrailing:
		source := calculator.TrackedHighWater()
		if history != nil {
			if mark, ok, err := history.HighWaterMark(ctx, quote.Symbol, since); err != nil {
				log.WithError(err).Warnf("Could not read high-water mark for %s", quote.Symbol)
			} else if ok {
				source = calculator.SuppliedHighWater(mark)
			}
		}
		return calc.Trailing(quote, pct, source, opts...)

	default:
		return calc.Simple(quote, pct, opts...)
	}
}

// displaySMA computes the 50-day moving average over stored closes. When
// the store holds fewer than 50 days the missing window is fetched once
// before giving up on the average.
func displaySMA(
	ctx context.Context,
	log logger.Logger,
	history core.History,
	quoter core.Quoter,
	symbol string,
) (float64, bool) {
	closes, err := storedCloses(ctx, history, symbol)
	if err != nil {
		log.WithError(err).Debugf("No moving average for %s", symbol)
		return 0, false
	}

	if closes.Length() < smaPeriod {
		fetched, err := quoter.Daily(ctx, symbol, time.Now().AddDate(0, 0, -smaBackfillDays))
		if err != nil {
			log.WithError(err).Warnf("Could not backfill history for %s", symbol)
			return 0, false
		}
		if _, err := history.StoreBars(ctx, symbol, fetched); err != nil {
			log.WithError(err).Warnf("Could not store history for %s", symbol)
			return 0, false
		}
		if closes, err = storedCloses(ctx, history, symbol); err != nil {
			return 0, false
		}
	}

	return indicator.LastSMA(closes.LastValues(smaPeriod).Values(), smaPeriod)
}

func storedCloses(ctx context.Context, history core.History, symbol string) (core.Series[float64], error) {
	bars, err := history.RecentBars(ctx, symbol, smaPeriod)
	if err != nil {
		return nil, err
	}
	return core.Closes(bars), nil
}

// week52Base prefers the stored 52-week high and falls back to the value
// reported with the quote.
func week52Base(ctx context.Context, history core.History, quote core.Quote) float64 {
	if history != nil {
		if high, ok, err := history.Latest52WeekHigh(ctx, quote.Symbol); err == nil && ok {
			return high
		}
	}
	return quote.Week52High
}

// historicalATR computes the average true range from stored bars, fetching a
// larger window once when the store does not hold enough days yet.
func historicalATR(
	ctx context.Context,
	log logger.Logger,
	history core.History,
	quoter core.Quoter,
	symbol string,
	period int,
) (float64, error) {
	bars, err := history.RecentBars(ctx, symbol, period+1)
	if err != nil {
		return 0, err
	}

	atr, err := calculator.ATR(bars, period)
	if err == nil {
		return atr, nil
	}
	if !errors.Is(err, core.ErrInsufficientData) {
		return 0, err
	}

	log.Warnf("Not enough stored data for %s, fetching a longer history", symbol)
	fetched, err := quoter.Daily(ctx, symbol, backfillStart(period))
	if err != nil {
		return 0, fmt.Errorf("cannot backfill %s: %w", symbol, err)
	}
	if _, err := history.StoreBars(ctx, symbol, fetched); err != nil {
		return 0, err
	}

	bars, err = history.RecentBars(ctx, symbol, period+1)
	if err != nil {
		return 0, err
	}
	return calculator.ATR(bars, period)
}

type resultRow struct {
	symbol string
	result *calculator.Result
	err    error
}

func renderResults(w io.Writer, rows []resultRow) {
	hasBase := lo.SomeBy(rows, func(r resultRow) bool {
		return r.result != nil && r.result.HasBasePrice
	})

	headers := []string{"Ticker", "Price", "Stop", "Method", "Risk", "SMA 50d", "Guidance"}
	alignment := []int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	}
	if hasBase {
		headers = append(headers, "52wk High")
		alignment = append(alignment, tablewriter.ALIGN_RIGHT)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetColumnAlignment(alignment)

	for _, row := range rows {
		if row.err != nil {
			cells := []string{row.symbol, "-", "-", "-", "-", "-", "error"}
			if hasBase {
				cells = append(cells, "-")
			}
			table.Append(cells)
			continue
		}

		r := row.result
		cells := []string{
			r.Symbol,
			fmt.Sprintf("%.2f", r.CurrentPrice),
			r.FormattedStop(),
			r.FormattedMethod(),
			r.FormattedRisk(),
			r.FormattedSMA(),
			string(r.Guidance()),
		}
		if hasBase {
			base := "-"
			if r.HasBasePrice {
				base = fmt.Sprintf("%.2f", r.BasePrice)
			}
			cells = append(cells, base)
		}
		table.Append(cells)
	}

	table.Render()
}

func sendResults(log logger.Logger, cfg *config.Config, rows []resultRow) {
	if !cfg.Telegram.Enabled {
		log.Warn("Telegram notifications are not enabled in the configuration")
		return
	}

	notifier, err := notification.NewTelegram(cfg.Telegram)
	if err != nil {
		log.WithError(err).Error("Could not initialize Telegram")
		return
	}

	for _, row := range rows {
		if row.err != nil {
			notifier.OnError(fmt.Errorf("%s: %w", row.symbol, row.err))
			continue
		}
		notifier.Notify(notification.ResultMessage(*row.result))
	}
}

package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/engine"
	"trading-assistant/internal/analysis/pivots"
	"trading-assistant/internal/chart"
	apperrors "trading-assistant/internal/errors"
	"trading-assistant/internal/logging"
	"trading-assistant/internal/models"
	"trading-assistant/internal/store"
)

func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newPivotsCmd(app))
	rootCmd.AddCommand(newLevelsCmd(app))
	rootCmd.AddCommand(newZonesCmd(app))
}

// detectOutput is the JSON shape of one detect run with chart commands.
type detectOutput struct {
	Symbol   string                    `json:"symbol"`
	Result   *analysis.DetectionResult `json:"result,omitempty"`
	Commands []string                  `json:"commands,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

func newDetectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <file|symbol>...",
		Short: "Detect patterns, levels and trading zones",
		Long: `Run the full detection pipeline and print the result.

With one input the DetectionResult JSON is printed as is; with several the
inputs are analyzed concurrently and printed per symbol.`,
		Example: `  assistant detect data/AAPL_1d.csv --json
  assistant detect AAPL TSLA --db --commands`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			timeframe, fromDB := inputFlags(cmd)
			withCommands, _ := cmd.Flags().GetBool("commands")
			save, _ := cmd.Flags().GetBool("save")
			logger := logging.WithOperation(logging.FromContextOr(cmd.Context(), app.Logger), "detect")
			ctx := logging.WithLogger(cmd.Context(), logger)

			series := make(map[string][]models.Candle, len(args))
			sources := make(map[string]string, len(args))
			for _, arg := range args {
				symbol, candles, err := app.loadCandles(ctx, arg, timeframe, fromDB)
				if err != nil {
					return err
				}
				if prev, ok := sources[symbol]; ok {
					return apperrors.NewValidationError("input", arg,
						fmt.Sprintf("resolves to symbol %s, already given by %s", symbol, prev), apperrors.ErrInvalidCandles)
				}
				sources[symbol] = arg
				series[symbol] = candles
			}

			runID := uuid.NewString()
			start := time.Now()
			results := app.Engine.DetectBatch(ctx, series)
			elapsed := time.Since(start)

			symbols := make([]string, 0, len(results))
			for s := range results {
				symbols = append(symbols, s)
			}
			sort.Strings(symbols)

			var firstErr error
			outputs := make([]detectOutput, 0, len(symbols))
			for _, symbol := range symbols {
				r := results[symbol]
				out := detectOutput{Symbol: symbol, Result: r.Result}
				if r.Err != nil {
					out.Error = r.Err.Error()
					if firstErr == nil {
						firstErr = fmt.Errorf("%s: %w", symbol, r.Err)
					}
					outputs = append(outputs, out)
					continue
				}

				logging.LogDetection(logger, symbol, len(series[symbol]), len(r.Result.Detected),
					len(r.Result.ActiveLevels.Support), len(r.Result.ActiveLevels.Resistance), elapsed)
				if withCommands {
					out.Commands = chart.Strings(chart.FromResult(symbol, r.Result))
				}
				if save {
					if err := app.saveDetection(cmd, runID, symbol, timeframe, r.Result); err != nil {
						return err
					}
				}
				outputs = append(outputs, out)
			}

			if output.IsJSON() {
				if len(outputs) == 1 && !withCommands && outputs[0].Error == "" {
					return output.JSON(outputs[0].Result)
				}
				if err := output.JSON(outputs); err != nil {
					return err
				}
				return firstErr
			}

			for i, out := range outputs {
				if i > 0 {
					output.Println()
				}
				if out.Error != "" {
					output.Error("%s: %s", out.Symbol, out.Error)
					continue
				}
				printResult(output, out.Symbol, out.Result)
				if len(out.Commands) > 0 {
					output.Println()
					output.Bold("Chart commands")
					for _, c := range out.Commands {
						output.Printf("  %s\n", c)
					}
				}
			}
			return firstErr
		},
	}

	addInputFlags(cmd)
	cmd.Flags().Bool("commands", false, "also print chart overlay commands")
	cmd.Flags().Bool("save", false, "record the result in the SQLite detection log")
	return cmd
}

func (a *App) saveDetection(cmd *cobra.Command, runID, symbol, timeframe string, result *analysis.DetectionResult) error {
	db, err := a.Store()
	if err != nil {
		return err
	}
	if timeframe == "" {
		timeframe = a.Config.Store.Timeframe
	}
	return db.SaveDetection(cmd.Context(), &store.DetectionRecord{
		RunID:     runID,
		Symbol:    symbol,
		Timeframe: timeframe,
		Result:    *result,
	})
}

func printResult(output *Output, symbol string, r *analysis.DetectionResult) {
	output.Bold("%s @ %s", symbol, FormatPrice(r.CurrentPrice))
	output.Info("%s", r.AgentExplanation)
	output.Println()

	if len(r.Detected) == 0 {
		output.Dim("No patterns detected")
	} else {
		table := NewTable(output, "PATTERN", "DIRECTION", "CANDLES", "CONFIDENCE")
		for _, d := range r.Detected {
			table.AddRow(
				analysis.PatternName(d.Type),
				output.Direction(d.Direction),
				fmt.Sprintf("%d-%d", d.StartCandleIndex, d.EndCandleIndex),
				FormatConfidence(d.Confidence),
			)
		}
		table.Render()
	}

	output.Println()
	output.Printf("Support:    %s\n", joinPrices(r.ActiveLevels.Support))
	output.Printf("Resistance: %s\n", joinPrices(r.ActiveLevels.Resistance))

	if z := r.TradingZones; z != nil {
		output.Println()
		printZones(output, z, r.CurrentPrice)
	}
}

func printZones(output *Output, z *analysis.TradingZones, current float64) {
	title := fmt.Sprintf("Trading zones (%s)", z.Trend)
	if z.Fallback {
		title += " - short history, fixed percentages"
	}
	output.Bold("%s", title)

	table := NewTable(output, "ZONE", "PRICE", "DISTANCE")
	table.AddRow("Sell high", output.Red(FormatPrice(z.SELevel)), FormatDistance(z.SELevel, current))
	table.AddRow("Current", FormatPrice(current), "")
	table.AddRow("Retest", output.Green(FormatPrice(z.RetestLevel)), FormatDistance(z.RetestLevel, current))
	table.AddRow("Buy low", output.Green(FormatPrice(z.BuyLowLevel)), FormatDistance(z.BuyLowLevel, current))
	table.AddRow("Buy the dip", output.Green(FormatPrice(z.BTDLevel)), FormatDistance(z.BTDLevel, current))
	table.Render()

	if !z.Fallback {
		output.Dim("MA20 %s  MA50 %s  MA200 %s  range %s-%s",
			FormatPrice(z.MA20), FormatPrice(z.MA50), FormatPrice(z.MA200),
			FormatPrice(z.RecentLow), FormatPrice(z.RecentHigh))
	}
}

func joinPrices(prices []float64) string {
	if len(prices) == 0 {
		return "-"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = FormatPrice(p)
	}
	return strings.Join(parts, ", ")
}

func newPivotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivots <file|symbol>",
		Short: "List swing highs and lows",
		Long: `List pivot highs and lows. By default the spacing, percent-move and
structure filters apply; --raw shows every window extreme. --mtf lists
pivots per resampled timeframe and those confirmed on at least two.`,
		Example: `  assistant pivots data/AAPL_1d.csv --raw
  assistant pivots AAPL --mtf 1,4,12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			timeframe, fromDB := inputFlags(cmd)
			raw, _ := cmd.Flags().GetBool("raw")
			factors, _ := cmd.Flags().GetIntSlice("mtf")

			symbol, candles, err := app.loadCandles(cmd.Context(), args[0], timeframe, fromDB)
			if err != nil {
				return err
			}
			opts := app.Engine.Config().Pivots

			if len(factors) > 0 {
				res, err := pivots.DetectMultiTimeframe(candles, factors, opts)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(res)
				}
				output.Bold("%s multi-timeframe pivots", symbol)
				for _, tf := range res.Timeframes {
					output.Printf("  x%-3d %4d candles  %3d highs  %3d lows\n",
						tf.BarsPerCandle, tf.CandleCount, len(tf.Highs), len(tf.Lows))
				}
				output.Println()
				printPivots(output, res.ConfluenceHighs, res.ConfluenceLows)
				return nil
			}

			var highs, lows []analysis.PivotPoint
			if raw {
				highs, lows, err = pivots.FindPivotsSingleTF(candles, opts.LeftBars, opts.RightBars)
			} else {
				highs, lows, err = pivots.DetectPivotsWithFilters(candles, opts)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string][]analysis.PivotPoint{"highs": highs, "lows": lows})
			}
			output.Bold("%s pivots (%d candles)", symbol, len(candles))
			printPivots(output, highs, lows)
			return nil
		},
	}

	addInputFlags(cmd)
	cmd.Flags().Bool("raw", false, "skip the spacing, move and structure filters")
	cmd.Flags().IntSlice("mtf", nil, "resample factors for multi-timeframe confluence, e.g. 1,4,12")
	return cmd
}

func printPivots(output *Output, highs, lows []analysis.PivotPoint) {
	all := append(append([]analysis.PivotPoint{}, highs...), lows...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	if len(all) == 0 {
		output.Dim("No pivots")
		return
	}

	table := NewTable(output, "INDEX", "TIME", "KIND", "PRICE")
	for _, p := range all {
		kind := output.Red(string(p.Kind))
		if p.Kind == analysis.PivotLow {
			kind = output.Green(string(p.Kind))
		}
		table.AddRow(fmt.Sprintf("%d", p.Index), FormatTime(p.Time), kind, FormatPrice(p.Price))
	}
	table.Render()
}

func newLevelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels <file|symbol>",
		Short: "List support and resistance levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			a, symbol, err := app.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(a.Levels)
			}

			output.Bold("%s levels @ %s", symbol, FormatPrice(a.Result.CurrentPrice))
			all := append(append([]analysis.PriceLevel{}, a.Levels.Resistance...), a.Levels.Support...)
			if len(all) == 0 {
				output.Dim("No levels")
				return nil
			}
			sort.SliceStable(all, func(i, j int) bool { return all[i].Price > all[j].Price })

			table := NewTable(output, "TYPE", "PRICE", "TOUCHES", "FIRST", "LAST", "DISTANCE")
			for _, l := range all {
				kind := output.Red(string(l.Type))
				if l.Type == analysis.LevelSupport {
					kind = output.Green(string(l.Type))
				}
				table.AddRow(kind, FormatPrice(l.Price), fmt.Sprintf("%d", l.TouchCount),
					fmt.Sprintf("%d", l.FirstTouchedIndex), fmt.Sprintf("%d", l.LastTouchedIndex),
					FormatDistance(l.Price, a.Result.CurrentPrice))
			}
			table.Render()
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newZonesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones <file|symbol>",
		Short: "Show buy-the-dip, buy-low, retest and sell-high zones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			a, symbol, err := app.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			z := a.Result.TradingZones
			if z == nil {
				return fmt.Errorf("%s: no candles to compute zones", symbol)
			}
			if output.IsJSON() {
				return output.JSON(z)
			}
			output.Bold("%s @ %s", symbol, FormatPrice(a.Result.CurrentPrice))
			printZones(output, z, a.Result.CurrentPrice)
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

func (a *App) analyze(cmd *cobra.Command, arg string) (*engine.Analysis, string, error) {
	timeframe, fromDB := inputFlags(cmd)
	symbol, candles, err := a.loadCandles(cmd.Context(), arg, timeframe, fromDB)
	if err != nil {
		return nil, symbol, err
	}
	res, err := a.Engine.Analyze(candles)
	return res, symbol, err
}

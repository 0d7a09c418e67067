package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/logging"
	"trading-assistant/internal/store"
)

func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a .csv or .json candle file into the SQLite cache",
		Example: `  assistant import data/AAPL_1d.csv
  assistant import prices.json --symbol TSLA --timeframe 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			path := args[0]
			logger := logging.WithOperation(logging.FromContextOr(cmd.Context(), app.Logger), "import")

			symbol, _ := cmd.Flags().GetString("symbol")
			if symbol == "" {
				symbol = symbolFromPath(path)
			}
			symbol = strings.ToUpper(symbol)
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if timeframe == "" {
				timeframe = app.Config.Store.Timeframe
			}

			candles, err := store.ReadCandlesFile(path)
			if err != nil {
				return err
			}
			if err := analysis.ValidateCandles(candles); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			db, err := app.Store()
			if err != nil {
				return err
			}
			if err := db.SaveCandles(cmd.Context(), symbol, timeframe, candles); err != nil {
				return err
			}
			if err := db.SetLastImport(symbol, timeframe, time.Now()); err != nil {
				return err
			}
			logging.LogImport(logger, symbol, timeframe, path, len(candles))

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"count":     len(candles),
				})
			}
			output.Success("✓ Imported %d %s candles for %s", len(candles), timeframe, symbol)
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "symbol (default from the file name)")
	cmd.Flags().StringP("timeframe", "t", "", "candle timeframe (default from config)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Write cached candles as CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if timeframe == "" {
				timeframe = app.Config.Store.Timeframe
			}
			format, _ := cmd.Flags().GetString("format")
			outPath, _ := cmd.Flags().GetString("output")

			db, err := app.Store()
			if err != nil {
				return err
			}
			candles, err := db.LoadCandles(cmd.Context(), strings.ToUpper(args[0]), timeframe)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return store.WriteCandles(w, store.Format(strings.ToLower(format)), candles)
		},
	}
	cmd.Flags().StringP("timeframe", "t", "", "candle timeframe (default from config)")
	cmd.Flags().StringP("format", "f", "csv", "csv or json")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func newSymbolsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List cached symbols with their latest candle",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if timeframe == "" {
				timeframe = app.Config.Store.Timeframe
			}

			db, err := app.Store()
			if err != nil {
				return err
			}
			symbols, err := db.ListSymbols(cmd.Context())
			if err != nil {
				return err
			}

			type row struct {
				Symbol     string    `json:"symbol"`
				Latest     time.Time `json:"latest"`
				LastImport time.Time `json:"last_import"`
			}
			rows := make([]row, 0, len(symbols))
			for _, s := range symbols {
				latest, err := db.GetCandlesFreshness(cmd.Context(), s, timeframe)
				if err != nil {
					return err
				}
				rows = append(rows, row{Symbol: s, Latest: latest, LastImport: db.GetLastImport(s, timeframe)})
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Dim("No cached symbols")
				return nil
			}
			now := time.Now()
			table := NewTable(output, "SYMBOL", "LATEST "+strings.ToUpper(timeframe), "IMPORTED")
			for _, r := range rows {
				latest := "-"
				if !r.Latest.IsZero() {
					latest = FormatTime(r.Latest.Unix())
				}
				table.AddRow(r.Symbol, latest, FormatAge(r.LastImport, now))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringP("timeframe", "t", "", "candle timeframe (default from config)")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "Show saved detection results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetString("run")

			filter := store.DetectionFilter{Limit: limit, RunID: runID}
			if len(args) == 1 {
				filter.Symbol = strings.ToUpper(args[0])
			}

			db, err := app.Store()
			if err != nil {
				return err
			}
			records, err := db.GetDetections(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if records == nil {
					records = []store.DetectionRecord{}
				}
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No saved detections")
				return nil
			}
			table := NewTable(output, "ID", "RUN", "WHEN", "SYMBOL", "TF", "PATTERNS", "SUMMARY")
			for _, r := range records {
				table.AddRow(
					fmt.Sprintf("%d", r.ID),
					TruncateString(r.RunID, 8),
					FormatTime(r.CreatedAt.Unix()),
					r.Symbol,
					r.Timeframe,
					fmt.Sprintf("%d", len(r.Result.Detected)),
					TruncateString(r.Result.AgentExplanation, 60),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "maximum records")
	cmd.Flags().String("run", "", "only records from this detect run ID")
	return cmd
}

// Package cli provides the command-line interface for the trading assistant.
package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trading-assistant/internal/analysis/engine"
	"trading-assistant/internal/config"
	"trading-assistant/internal/logging"
	"trading-assistant/internal/models"
	"trading-assistant/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Engine *engine.Engine

	db *store.SQLiteStore
}

// NewRootCmd creates the root command for the CLI. Configuration, logger and
// engine are built before any subcommand runs.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "assistant",
		Short: "Trading Assistant - deterministic chart pattern detection",
		Long: `Trading Assistant finds pivots, support and resistance levels, trading
zones and candlestick or chart patterns in OHLCV candle data.

Candles come from .csv/.json files, from SYMBOL_TIMEFRAME files in the
configured data directory, or from the SQLite candle cache (--db).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/trading-assistant/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	rootCmd.AddCommand(newChartCmd(app))

	return rootCmd
}

// skipConfig marks commands that run on defaults without reading a file.
const skipConfig = "skip-config"

func (a *App) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if _, ok := cmd.Annotations[skipConfig]; !ok {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.Config = cfg

	a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	eng, err := engine.New(cfg.EngineConfig(), a.Logger)
	if err != nil {
		return err
	}
	a.Engine = eng
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger))
	a.Logger.Debug().Str("config", cfg.Path).Msg("Assistant initialized")
	return nil
}

// Store opens the SQLite candle cache on first use.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Config.Store.DBPath), 0755); err != nil {
		return nil, err
	}
	db, err := store.NewSQLiteStore(a.Config.Store.DBPath, a.Logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Output builds the printer for cmd honoring the ui.color_enabled setting.
func (a *App) Output(cmd *cobra.Command) *Output {
	out := NewOutput(cmd)
	if a.Config != nil && !a.Config.UI.ColorEnabled {
		out.colorEnabled = false
	}
	return out
}

// isCandleFile reports whether arg names a candle file rather than a symbol.
func isCandleFile(arg string) bool {
	_, err := store.FormatFromPath(arg)
	return err == nil
}

// symbolFromPath derives a symbol from a file name such as data/aapl_1d.csv.
func symbolFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_"); i > 0 {
		stem = stem[:i]
	}
	return strings.ToUpper(stem)
}

// loadCandles resolves arg to candles. Files are read directly; symbols come
// from the cache when fromDB is set and from the data directory otherwise.
func (a *App) loadCandles(ctx context.Context, arg, timeframe string, fromDB bool) (string, []models.Candle, error) {
	if timeframe == "" {
		timeframe = a.Config.Store.Timeframe
	}

	if isCandleFile(arg) && !fromDB {
		candles, err := store.ReadCandlesFile(arg)
		return symbolFromPath(arg), candles, err
	}

	symbol := strings.ToUpper(arg)
	var src store.CandleSource = store.NewFileSource(a.Config.Store.DataDir)
	if fromDB {
		db, err := a.Store()
		if err != nil {
			return symbol, nil, err
		}
		src = db
	}
	candles, err := src.LoadCandles(ctx, symbol, timeframe)
	return symbol, candles, err
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("timeframe", "t", "", "candle timeframe (default from config)")
	cmd.Flags().Bool("db", false, "read candles from the SQLite cache")
}

func inputFlags(cmd *cobra.Command) (timeframe string, fromDB bool) {
	timeframe, _ = cmd.Flags().GetString("timeframe")
	fromDB, _ = cmd.Flags().GetBool("db")
	return timeframe, fromDB
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Trading Assistant v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := app.Output(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Path})
			} else {
				output.Println(app.Config.Path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a commented configuration template",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			app.Output(cmd).Success("✓ Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Analysis")
	output.Printf("  Pivot window:     %d left / %d right\n", cfg.Analysis.LeftBars, cfg.Analysis.RightBars)
	output.Printf("  Min spacing:      %d bars\n", cfg.Analysis.MinSpacingBars)
	output.Printf("  Min move:         %s\n", FormatFraction(cfg.Analysis.MinPercentMove))
	output.Printf("  Level tolerance:  %s\n", FormatFraction(cfg.Analysis.LevelTolerancePct))
	output.Printf("  Trend filter:     %s\n", cfg.Analysis.TrendDirection)
	output.Printf("  Active levels:    %d\n", cfg.Analysis.MaxActiveLevels)
	output.Printf("  Workers:          %d\n", cfg.Analysis.Workers)
	output.Println()

	output.Bold("Patterns")
	output.Printf("  Doji threshold:   %.2f\n", cfg.Patterns.DojiThreshold)
	output.Printf("  Shoulder tol:     %s\n", FormatFraction(cfg.Patterns.ShoulderTolerance))
	output.Printf("  Touch tol:        %s\n", FormatFraction(cfg.Patterns.TouchTolerance))
	output.Printf("  Swing strength:   %d\n", cfg.Patterns.SwingStrength)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:         %s\n", cfg.Store.DBPath)
	output.Printf("  Data dir:         %s\n", cfg.Store.DataDir)
	output.Printf("  Timeframe:        %s\n", cfg.Store.Timeframe)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v\n", cfg.Logging.File)
}

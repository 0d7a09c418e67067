package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trading Assistant Configuration

[analysis]
# Bars on each side that must be strictly below a pivot high (above a pivot low)
left_bars = 2
right_bars = 2
# Minimum bars between kept pivots of the same kind (0 disables)
min_spacing_bars = 3
# Minimum move from the previous opposite pivot, as a fraction (0.01 = 1%)
min_percent_move = 0.01
# Relative distance within which pivots join one level (0.01 = 1%)
level_tolerance_pct = 0.01
# Structure filter: "auto", "up", "down" or "none"
trend_direction = "auto"
# Support and resistance prices reported per side
max_active_levels = 5
# Concurrent symbols in batch detection
workers = 4

[patterns]
# Doji when body / range is below this
doji_threshold = 0.1
# Max relative difference between head-and-shoulders shoulders
shoulder_tolerance = 0.03
# Max relative distance of a bounce or rejection touch from a level
touch_tolerance = 0.005
# Bars on each side confirming a structural swing
swing_strength = 3

[logging]
# debug, info, warn, error, disabled
level = "info"
# Also write a rotated log file
file = false
# file_path = "~/.config/trading-assistant/logs/assistant.log"
max_size_mb = 50
max_backups = 5
max_age_days = 30

[store]
# SQLite candle cache and detection log
# db_path = "~/.config/trading-assistant/candles.db"
# Directory searched for SYMBOL_TIMEFRAME.csv / .json files
data_dir = "."
timeframe = "1d"

[ui]
color_enabled = true
`

func createTemplateConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// WriteTemplate writes the commented default configuration to path. An
// existing file is left alone unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	return createTemplateConfig(path)
}

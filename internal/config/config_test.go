package config

import (
	"os"
	"path/filepath"
	"testing"

	"trading-assistant/internal/analysis/pivots"
	apperrors "trading-assistant/internal/errors"
)

func TestLoad_MissingFileWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected template at %s: %v", path, err)
	}
	if cfg.Path != path {
		t.Errorf("Expected path %s, got %s", path, cfg.Path)
	}

	def := Default()
	if cfg.Analysis != def.Analysis || cfg.Patterns != def.Patterns {
		t.Errorf("Expected template to match defaults:\n got %+v %+v\nwant %+v %+v",
			cfg.Analysis, cfg.Patterns, def.Analysis, def.Patterns)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Analysis.LeftBars != 2 || cfg.Analysis.RightBars != 2 || cfg.Analysis.MinSpacingBars != 3 {
		t.Errorf("Unexpected pivot defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.LevelTolerancePct != 0.01 || cfg.Analysis.TrendDirection != "auto" {
		t.Errorf("Unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Patterns.DojiThreshold != 0.1 || cfg.Patterns.SwingStrength != 3 {
		t.Errorf("Unexpected pattern defaults: %+v", cfg.Patterns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[analysis]
left_bars = 4
trend_direction = "up"

[patterns]
swing_strength = 5

[store]
db_path = "/tmp/assistant-test.db"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.LeftBars != 4 || cfg.Analysis.RightBars != 2 {
		t.Errorf("Expected left_bars 4 and default right_bars 2, got %+v", cfg.Analysis)
	}

	ec := cfg.EngineConfig()
	if ec.Pivots.LeftBars != 4 || ec.Pivots.TrendDirection != pivots.TrendUp {
		t.Errorf("Unexpected engine pivots: %+v", ec.Pivots)
	}
	if ec.Structure.SwingStrength != 5 {
		t.Errorf("Expected swing strength 5, got %d", ec.Structure.SwingStrength)
	}
	if cfg.Store.DBPath != "/tmp/assistant-test.db" {
		t.Errorf("Expected db path from file, got %s", cfg.Store.DBPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis]\nleft_bars = 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ASSISTANT_LEFT_BARS", "6")
	t.Setenv("ASSISTANT_RIGHT_BARS", "3")
	t.Setenv("ASSISTANT_LOG_LEVEL", "debug")
	t.Setenv("ASSISTANT_DB_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.LeftBars != 6 || cfg.Analysis.RightBars != 3 {
		t.Errorf("Expected env window 6/3, got %d/%d", cfg.Analysis.LeftBars, cfg.Analysis.RightBars)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Store.DBPath != "/tmp/override.db" {
		t.Errorf("Expected db path override, got %s", cfg.Store.DBPath)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"window":    "[analysis]\nleft_bars = 0\n",
		"tolerance": "[analysis]\nlevel_tolerance_pct = -0.5\n",
		"trend":     "[analysis]\ntrend_direction = \"sideways\"\n",
		"level":     "[logging]\nlevel = \"loud\"\n",
		"syntax":    "[analysis\nleft_bars = 2\n",
	}
	for name, content := range tests {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
			t.Errorf("%s: expected ErrConfigInvalid, got %v", name, err)
		}
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("WriteTemplate failed: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Errorf("Expected error when file exists")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("Expected overwrite to succeed, got %v", err)
	}
}

func TestLogConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.UI.ColorEnabled = false

	lc := cfg.LogConfig()
	if lc.Level != "warn" || lc.Color {
		t.Errorf("Unexpected log config: %+v", lc)
	}
	if lc.FilePath == "" {
		t.Errorf("Expected a log file path")
	}
}

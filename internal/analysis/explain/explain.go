// Package explain turns detections and levels into a short deterministic
// summary for the chat and voice layers.
package explain

import (
	"fmt"
	"strings"

	"trading-assistant/internal/analysis"
	"trading-assistant/internal/analysis/levels"
)

// NoPatterns is the summary when nothing was detected.
const NoPatterns = "No actionable patterns detected."

// Synthesize builds the summary. The highest-confidence detection leads (the
// earliest one on ties), followed by the nearest support below and resistance
// above currentPrice. When currentPrice is not positive the most-touched levels
// are quoted instead. zones may be nil.
func Synthesize(detections []analysis.PatternDetection, lv analysis.Levels, currentPrice float64, zones *analysis.TradingZones) string {
	var parts []string

	if top, ok := Strongest(detections); ok {
		parts = append(parts, headline(top))
		if others := len(detections) - 1; others == 1 {
			parts = append(parts, "1 other pattern was also detected.")
		} else if others > 1 {
			parts = append(parts, fmt.Sprintf("%d other patterns were also detected.", others))
		}
	} else {
		parts = append(parts, NoPatterns)
	}

	if s := levelSentence(lv, currentPrice); s != "" {
		parts = append(parts, s)
	}

	if zones != nil {
		parts = append(parts, fmt.Sprintf("Zones: buy the dip %.2f, buy low %.2f, retest %.2f, sell high %.2f.",
			zones.BTDLevel, zones.BuyLowLevel, zones.RetestLevel, zones.SELevel))
	}

	return strings.Join(parts, " ")
}

// Strongest returns the detection with the highest confidence. Ties go to
// the pattern that starts earlier, then to the one listed first.
func Strongest(detections []analysis.PatternDetection) (analysis.PatternDetection, bool) {
	if len(detections) == 0 {
		return analysis.PatternDetection{}, false
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence ||
			d.Confidence == best.Confidence && d.StartCandleIndex < best.StartCandleIndex {
			best = d
		}
	}
	return best, true
}

func headline(d analysis.PatternDetection) string {
	name := analysis.PatternName(d.Type)
	switch d.Direction {
	case analysis.PatternBullish:
		return fmt.Sprintf("%s points higher (%.0f%% confidence, candles %d-%d).",
			name, d.Confidence, d.StartCandleIndex, d.EndCandleIndex)
	case analysis.PatternBearish:
		return fmt.Sprintf("%s points lower (%.0f%% confidence, candles %d-%d).",
			name, d.Confidence, d.StartCandleIndex, d.EndCandleIndex)
	default:
		return fmt.Sprintf("%s signals indecision (%.0f%% confidence, candle %d).",
			name, d.Confidence, d.EndCandleIndex)
	}
}

func levelSentence(lv analysis.Levels, currentPrice float64) string {
	if currentPrice <= 0 {
		var quoted []string
		if s := levels.Top(lv.Support, 1); len(s) > 0 {
			quoted = append(quoted, fmt.Sprintf("support %.2f", s[0].Price))
		}
		if r := levels.Top(lv.Resistance, 1); len(r) > 0 {
			quoted = append(quoted, fmt.Sprintf("resistance %.2f", r[0].Price))
		}
		if len(quoted) == 0 {
			return ""
		}
		return "Key levels: " + strings.Join(quoted, " and ") + "."
	}

	support, resistance := levels.Nearest(lv, currentPrice)
	switch {
	case support != nil && resistance != nil:
		return fmt.Sprintf("Nearest support is %.2f (%.1f%% below) and nearest resistance is %.2f (%.1f%% above).",
			support.Price, pct(currentPrice-support.Price, currentPrice),
			resistance.Price, pct(resistance.Price-currentPrice, currentPrice))
	case support != nil:
		return fmt.Sprintf("Nearest support is %.2f (%.1f%% below); no resistance above.",
			support.Price, pct(currentPrice-support.Price, currentPrice))
	case resistance != nil:
		return fmt.Sprintf("Nearest resistance is %.2f (%.1f%% above); no support below.",
			resistance.Price, pct(resistance.Price-currentPrice, currentPrice))
	default:
		return ""
	}
}

func pct(diff, base float64) float64 {
	return diff / base * 100
}

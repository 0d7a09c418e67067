// Package chart models the overlay commands sent to the chart renderer and
// parses their legacy KIND:payload text form.
package chart

import (
	"fmt"
	"strconv"
	"strings"

	"trading-assistant/internal/analysis"
	apperrors "trading-assistant/internal/errors"
)

// Kind identifies a command variant.
type Kind string

const (
	KindLoad       Kind = "LOAD"
	KindSupport    Kind = "SUPPORT"
	KindResistance Kind = "RESISTANCE"
	KindZone       Kind = "ZONE"
	KindPattern    Kind = "PATTERN"
)

// Command is one chart overlay instruction. String renders the legacy text
// form accepted by Parse.
type Command interface {
	Kind() Kind
	String() string
	isCommand()
}

// LoadSymbol switches the chart to a symbol.
type LoadSymbol struct {
	Symbol string `json:"symbol"`
}

// DrawSupport draws a horizontal support line.
type DrawSupport struct {
	Price float64 `json:"price"`
}

// DrawResistance draws a horizontal resistance line.
type DrawResistance struct {
	Price float64 `json:"price"`
}

// ZoneName names one of the trading zones.
type ZoneName string

const (
	ZoneBTD      ZoneName = "btd"
	ZoneBuyLow   ZoneName = "buy_low"
	ZoneRetest   ZoneName = "retest"
	ZoneSellHigh ZoneName = "sell_high"
)

// DrawZone marks a trading zone price.
type DrawZone struct {
	Zone  ZoneName `json:"zone"`
	Price float64  `json:"price"`
}

// MarkPattern highlights a detected pattern over a candle range.
type MarkPattern struct {
	Pattern    string  `json:"pattern"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

func (LoadSymbol) Kind() Kind     { return KindLoad }
func (DrawSupport) Kind() Kind    { return KindSupport }
func (DrawResistance) Kind() Kind { return KindResistance }
func (DrawZone) Kind() Kind       { return KindZone }
func (MarkPattern) Kind() Kind    { return KindPattern }

func (LoadSymbol) isCommand()     {}
func (DrawSupport) isCommand()    {}
func (DrawResistance) isCommand() {}
func (DrawZone) isCommand()       {}
func (MarkPattern) isCommand()    {}

func (c LoadSymbol) String() string     { return fmt.Sprintf("%s:%s", KindLoad, c.Symbol) }
func (c DrawSupport) String() string    { return fmt.Sprintf("%s:%.2f", KindSupport, c.Price) }
func (c DrawResistance) String() string { return fmt.Sprintf("%s:%.2f", KindResistance, c.Price) }
func (c DrawZone) String() string       { return fmt.Sprintf("%s:%s:%.2f", KindZone, c.Zone, c.Price) }
func (c MarkPattern) String() string {
	return fmt.Sprintf("%s:%s:%d-%d:%.2f", KindPattern, c.Pattern, c.Start, c.End, c.Confidence)
}

// FromResult builds the overlay for a detection result: the symbol to load
// (when not empty), active levels, trading zones and detected patterns.
func FromResult(symbol string, r *analysis.DetectionResult) []Command {
	var cmds []Command
	if symbol != "" {
		cmds = append(cmds, LoadSymbol{Symbol: symbol})
	}
	if r == nil {
		return cmds
	}
	for _, p := range r.ActiveLevels.Support {
		cmds = append(cmds, DrawSupport{Price: p})
	}
	for _, p := range r.ActiveLevels.Resistance {
		cmds = append(cmds, DrawResistance{Price: p})
	}
	if z := r.TradingZones; z != nil {
		cmds = append(cmds,
			DrawZone{Zone: ZoneBTD, Price: z.BTDLevel},
			DrawZone{Zone: ZoneBuyLow, Price: z.BuyLowLevel},
			DrawZone{Zone: ZoneRetest, Price: z.RetestLevel},
			DrawZone{Zone: ZoneSellHigh, Price: z.SELevel},
		)
	}
	for _, d := range r.Detected {
		cmds = append(cmds, MarkPattern{
			Pattern:    d.Type,
			Start:      d.StartCandleIndex,
			End:        d.EndCandleIndex,
			Confidence: d.Confidence,
		})
	}
	return cmds
}

// Strings renders commands in their text form.
func Strings(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// Parse reads one command. Text without a known KIND: prefix returns
// ErrNoCommand. A known kind with a bad payload returns a ValidationError
// wrapping ErrMalformedCommand.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	head, payload, ok := strings.Cut(text, ":")
	if !ok {
		return nil, apperrors.ErrNoCommand
	}

	kind := Kind(strings.ToUpper(head))
	switch kind {
	case KindLoad:
		symbol := strings.ToUpper(strings.TrimSpace(payload))
		if symbol == "" || strings.ContainsAny(symbol, " :") {
			return nil, malformed(kind, payload, "symbol must be a single non-empty token")
		}
		return LoadSymbol{Symbol: symbol}, nil

	case KindSupport, KindResistance:
		price, err := parsePrice(payload)
		if err != nil {
			return nil, malformed(kind, payload, err.Error())
		}
		if kind == KindSupport {
			return DrawSupport{Price: price}, nil
		}
		return DrawResistance{Price: price}, nil

	case KindZone:
		name, value, ok := strings.Cut(payload, ":")
		if !ok {
			return nil, malformed(kind, payload, "expected zone:price")
		}
		zone := ZoneName(strings.ToLower(name))
		switch zone {
		case ZoneBTD, ZoneBuyLow, ZoneRetest, ZoneSellHigh:
		default:
			return nil, malformed(kind, payload, "unknown zone "+name)
		}
		price, err := parsePrice(value)
		if err != nil {
			return nil, malformed(kind, payload, err.Error())
		}
		return DrawZone{Zone: zone, Price: price}, nil

	case KindPattern:
		return parsePattern(payload)

	default:
		return nil, apperrors.ErrNoCommand
	}
}

func parsePattern(payload string) (Command, error) {
	fields := strings.Split(payload, ":")
	if len(fields) != 3 || fields[0] == "" {
		return nil, malformed(KindPattern, payload, "expected pattern:start-end:confidence")
	}
	from, to, ok := strings.Cut(fields[1], "-")
	if !ok {
		return nil, malformed(KindPattern, payload, "expected start-end candle range")
	}
	start, err1 := strconv.Atoi(from)
	end, err2 := strconv.Atoi(to)
	if err1 != nil || err2 != nil || start < 0 || end < start {
		return nil, malformed(KindPattern, payload, "invalid candle range "+fields[1])
	}
	conf, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || conf < 0 || conf > 100 {
		return nil, malformed(KindPattern, payload, "confidence must be a number in [0, 100]")
	}
	return MarkPattern{Pattern: fields[0], Start: start, End: end, Confidence: conf}, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if !(v > 0) || v > 1e12 {
		return 0, fmt.Errorf("price %v must be positive and finite", v)
	}
	return v, nil
}

func malformed(kind Kind, payload, message string) error {
	return apperrors.NewValidationError(string(kind), payload, message, apperrors.ErrMalformedCommand)
}

// Extract scans free text for whitespace-separated commands. Tokens that are
// not commands are skipped; malformed commands are returned as errors so the
// caller can report them.
func Extract(text string) ([]Command, []error) {
	var cmds []Command
	var errs []error
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimRight(tok, ".,;!?)")
		tok = strings.TrimLeft(tok, "(")
		cmd, err := Parse(tok)
		switch {
		case err == nil:
			cmds = append(cmds, cmd)
		case apperrors.Is(err, apperrors.ErrNoCommand):
		default:
			errs = append(errs, err)
		}
	}
	return cmds, errs
}

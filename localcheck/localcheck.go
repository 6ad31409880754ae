// Package localcheck parses the output of local-check agent plugins. Each
// line reports one service:
//
//	0 Service_FOO V=1 This check is OK
//	1 Bar_Service - This is WARNING and has no performance data
//	P Some_Service temp=40;30;50|humidity=28;50:100;0:50;0;100 Computed from two values
//	cached(1617883538,300) 0 "Service Name" - arbitrary info text
//
// The first token is the state (0-3) or "P", which means the state is
// computed from the warn/crit levels in the performance data. A
// cached(created,interval) prefix carries freshness information.
package localcheck

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/statetreelib/go-statetree/internal/status"
)

// Levels is a warn/crit threshold pair
type Levels struct {
	Warn float64
	Crit float64
}

// Perfdata is one performance value with optional levels and boundaries.
// Entry syntax: NAME=VALUE[;[[WARN_LOWER:]WARN_UPPER][;[[CRIT_LOWER:]CRIT_UPPER][;[MIN][;MAX]]]]
type Perfdata struct {
	Name        string
	Value       float64
	LevelsUpper *Levels
	LevelsLower *Levels
	Min         *float64
	Max         *float64
}

// CacheInfo describes a cached(...) prefix relative to parse time
type CacheInfo struct {
	// Age is the elapsed time since the value was generated
	Age time.Duration
	// LifespanPercent is the elapsed share of the cache interval, in percent
	LifespanPercent float64
	// Interval is the cache interval
	Interval time.Duration
}

// Result is one parsed local-check line
type Result struct {
	Cached *CacheInfo
	Item   string
	State  status.State
	// ApplyLevels is set for "P" lines: the effective state comes from the
	// perfdata levels, not from the raw state token
	ApplyLevels bool
	Text        string
	Perfdata    []Perfdata
}

// LineError reports one malformed line together with the offending output
type LineError struct {
	Output string
	Reason string
}

// Section is the parsed agent section: per-item results plus the malformed
// lines encountered on the way.
type Section struct {
	Errors []LineError
	Data   map[string]Result
}

// Parse parses raw agent output lines as of now
func Parse(lines []string, now time.Time) Section {
	section := Section{Data: make(map[string]Result)}
	for _, raw := range lines {
		tokens := splitLine(raw)
		if len(tokens) == 0 {
			section.Errors = append(section.Errors, LineError{
				Output: raw,
				Reason: "Received empty line. Did any of your local checks return a superfluous newline character?",
			})
			continue
		}

		cached, tokens := parseCache(tokens, now)
		if !isValidLine(tokens) {
			section.Errors = append(section.Errors, LineError{
				Output: strings.Join(tokens, " "),
				Reason: "Received wrong format of local check output.",
			})
			continue
		}

		state, applyLevels, stateMsg := sanitizeState(tokens[0])
		item := tokens[1]
		perfdata, perfMsg := parsePerftext(tokens[2])
		text := strings.ReplaceAll(strings.Join(tokens[3:], " "), `\n`, "\n")
		if stateMsg != "" || perfMsg != "" {
			state = status.Unknown
			applyLevels = false
			text = fmt.Sprintf("%s%sOutput is: %s", stateMsg, perfMsg, text)
		}

		section.Data[item] = Result{
			Cached:      cached,
			Item:        item,
			State:       state,
			ApplyLevels: applyLevels,
			Text:        text,
			Perfdata:    perfdata,
		}
	}
	return section
}

// splitLine tokenizes one line, honoring double-quoted item names so service
// descriptions may contain blanks.
func splitLine(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func parseCache(tokens []string, now time.Time) (*CacheInfo, []string) {
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], "cached(") {
		return nil, tokens
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(tokens[0], "cached("), ")")
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return nil, tokens
	}
	created, err1 := strconv.ParseFloat(parts[0], 64)
	interval, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return nil, tokens
	}
	age := now.Sub(time.Unix(int64(created), 0))
	lifespan := 0.0
	if interval != 0 {
		lifespan = 100.0 * age.Seconds() / interval
	}
	return &CacheInfo{
		Age:             age,
		LifespanPercent: lifespan,
		Interval:        time.Duration(interval * float64(time.Second)),
	}, tokens[1:]
}

func isValidLine(tokens []string) bool {
	return len(tokens) >= 4 || (len(tokens) == 3 && tokens[0] == "P")
}

func sanitizeState(raw string) (state status.State, applyLevels bool, message string) {
	switch raw {
	case "0", "1", "2", "3":
		code, _ := strconv.Atoi(raw)
		return status.State(code), false, ""
	case "P":
		return status.OK, true, ""
	default:
		return status.Unknown, false, fmt.Sprintf("Invalid plugin status %s. ", raw)
	}
}

func parsePerftext(text string) ([]Perfdata, string) {
	if text == "-" {
		return nil, ""
	}
	var perfdata []Perfdata
	var invalid []string
	for _, entry := range strings.Split(text, "|") {
		parsed, err := parsePerfentry(entry)
		if err != nil {
			invalid = append(invalid, entry)
			continue
		}
		perfdata = append(perfdata, parsed)
	}
	if len(invalid) > 0 {
		return perfdata, fmt.Sprintf("Invalid performance data: %q. ", strings.Join(invalid, "|"))
	}
	return perfdata, ""
}

// floatIgnoreUOM parses "16MB" as 16.0 by stripping trailing unit characters
func floatIgnoreUOM(value string) float64 {
	for value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		value = value[:len(value)-1]
	}
	return 0.0
}

func tryFloat(value string) *float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func parsePerfentry(entry string) (Perfdata, error) {
	entry = strings.TrimRight(entry, ";")
	name, rawList, found := strings.Cut(entry, "=")
	if !found || name == "" {
		return Perfdata{}, fmt.Errorf("perfdata entry %q lacks NAME=VALUE", entry)
	}
	raw := strings.Split(rawList, ";")
	perf := Perfdata{Name: name, Value: floatIgnoreUOM(raw[0])}

	// levels quadruple: warn upper, crit upper, warn lower, crit lower
	var warnUpper, critUpper, warnLower, critLower *float64
	if len(raw) >= 2 && raw[1] != "" {
		parts := strings.SplitN(raw[1], ":", 2)
		warnUpper = tryFloat(parts[len(parts)-1])
		if len(parts) > 1 {
			warnLower = tryFloat(parts[0])
		}
	}
	if len(raw) >= 3 && raw[2] != "" {
		parts := strings.SplitN(raw[2], ":", 2)
		critUpper = tryFloat(parts[len(parts)-1])
		if len(parts) > 1 {
			critLower = tryFloat(parts[0])
		}
	}

	// a critical level alone implies warning at the same value
	if warnUpper == nil && critUpper != nil {
		warnUpper = critUpper
	}
	if warnLower == nil && critLower != nil {
		warnLower = critLower
	}
	// a warning level alone gets an unreachable critical level
	if warnUpper != nil && critUpper == nil {
		inf := math.Inf(1)
		critUpper = &inf
	}
	if warnLower != nil && critLower == nil {
		negInf := math.Inf(-1)
		critLower = &negInf
	}

	if warnUpper != nil {
		perf.LevelsUpper = &Levels{Warn: *warnUpper, Crit: *critUpper}
	}
	if warnLower != nil {
		perf.LevelsLower = &Levels{Warn: *warnLower, Crit: *critLower}
	}
	if len(raw) >= 4 {
		perf.Min = tryFloat(raw[3])
	}
	if len(raw) >= 5 {
		perf.Max = tryFloat(raw[4])
	}
	return perf, nil
}

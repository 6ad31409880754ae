package localcheck_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/localcheck"
)

var parseTime = time.Unix(1617883658, 0)

func parseOne(t *testing.T, line string) localcheck.Result {
	t.Helper()
	section := localcheck.Parse([]string{line}, parseTime)
	require.Empty(t, section.Errors)
	require.Len(t, section.Data, 1)
	for _, result := range section.Data {
		return result
	}
	panic("unreachable")
}

func TestParseBasicLine(t *testing.T) {
	result := parseOne(t, "0 Service_FOO V=1 This check is OK")

	require.Equal(t, "Service_FOO", result.Item)
	require.Equal(t, status.OK, result.State)
	require.False(t, result.ApplyLevels)
	require.Equal(t, "This check is OK", result.Text)
	require.Len(t, result.Perfdata, 1)
	require.Equal(t, "V", result.Perfdata[0].Name)
	require.Equal(t, 1.0, result.Perfdata[0].Value)
	require.Nil(t, result.Cached)
}

func TestParseDashMeansNoPerfdata(t *testing.T) {
	result := parseOne(t, "1 Bar_Service - This is WARNING and has no performance data")

	require.Equal(t, status.Warn, result.State)
	require.Empty(t, result.Perfdata)
}

func TestParseQuotedItem(t *testing.T) {
	result := parseOne(t, `0 "Service Name" - arbitrary info text`)

	require.Equal(t, "Service Name", result.Item)
	require.Equal(t, "arbitrary info text", result.Text)
}

func TestParsePLine(t *testing.T) {
	result := parseOne(t, "P Some_Service temp=40;30;50|humidity=28;50:100;0:50;0;100 Computed from two values")

	require.True(t, result.ApplyLevels)
	require.Equal(t, status.OK, result.State)
	require.Len(t, result.Perfdata, 2)

	temp := result.Perfdata[0]
	require.Equal(t, 40.0, temp.Value)
	require.Equal(t, &localcheck.Levels{Warn: 30, Crit: 50}, temp.LevelsUpper)
	require.Nil(t, temp.LevelsLower)

	humidity := result.Perfdata[1]
	require.Equal(t, 28.0, humidity.Value)
	require.Equal(t, &localcheck.Levels{Warn: 100, Crit: 50}, humidity.LevelsUpper)
	require.Equal(t, &localcheck.Levels{Warn: 50, Crit: 0}, humidity.LevelsLower)
	require.Equal(t, 0.0, *humidity.Min)
	require.Equal(t, 100.0, *humidity.Max)
}

func TestParsePLineWithoutText(t *testing.T) {
	// three tokens are enough when the state is computed from levels
	result := parseOne(t, "P Some_Service temp=40;30;50")
	require.True(t, result.ApplyLevels)
	require.Equal(t, "", result.Text)
}

func TestParseCachedPrefix(t *testing.T) {
	// the value was generated 120s before parse time with a 300s interval
	result := parseOne(t, "cached(1617883538,300) 0 Foo - some text")

	require.NotNil(t, result.Cached)
	require.Equal(t, 2*time.Minute, result.Cached.Age)
	require.Equal(t, 5*time.Minute, result.Cached.Interval)
	require.InDelta(t, 40.0, result.Cached.LifespanPercent, 0.001)
	require.Equal(t, status.OK, result.State)
	require.Equal(t, "some text", result.Text)
}

func TestParseLevelDefaults(t *testing.T) {
	for _, tc := range []struct {
		desc  string
		entry string
		upper *localcheck.Levels
	}{
		{
			desc:  "crit alone implies warn at the same value",
			entry: "x=10;;5",
			upper: &localcheck.Levels{Warn: 5, Crit: 5},
		},
		{
			desc:  "warn alone gets an unreachable crit",
			entry: "x=10;5",
			upper: &localcheck.Levels{Warn: 5, Crit: math.Inf(1)},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			result := parseOne(t, "P Foo "+tc.entry)
			require.Len(t, result.Perfdata, 1)
			require.Equal(t, tc.upper, result.Perfdata[0].LevelsUpper)
		})
	}
}

func TestParseIgnoresUnitOfMeasure(t *testing.T) {
	result := parseOne(t, "0 Foo used=16MB all fine")
	require.Equal(t, 16.0, result.Perfdata[0].Value)
}

func TestParseUnescapesNewlines(t *testing.T) {
	result := parseOne(t, `0 Foo - first line\nsecond line`)
	require.Equal(t, "first line\nsecond line", result.Text)
}

func TestParseInvalidState(t *testing.T) {
	result := parseOne(t, "G Foo - some output")

	require.Equal(t, status.Unknown, result.State)
	require.False(t, result.ApplyLevels)
	require.Equal(t, "Invalid plugin status G. Output is: some output", result.Text)
}

func TestParseInvalidPerfdata(t *testing.T) {
	result := parseOne(t, "0 Foo =invalid some output")

	require.Equal(t, status.Unknown, result.State)
	require.Equal(t, `Invalid performance data: "=invalid". Output is: some output`, result.Text)
}

func TestParseMalformedLines(t *testing.T) {
	section := localcheck.Parse([]string{
		"",
		"0 Foo -",
	}, parseTime)

	require.Empty(t, section.Data)
	require.Len(t, section.Errors, 2)
	require.Contains(t, section.Errors[0].Reason, "Received empty line")
	require.Contains(t, section.Errors[1].Reason, "wrong format")
}

func TestCheckGradesLevels(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		line    string
		state   status.State
		summary string
	}{
		{
			desc:    "all metrics within levels",
			line:    "P Foo temp=20;30;50 everything fine",
			state:   status.OK,
			summary: "everything fine, temp: 20",
		},
		{
			desc:    "warn level reached",
			line:    "P Foo temp=40;30;50 temperature high",
			state:   status.Warn,
			summary: "temperature high, temp: 40 (warn/crit at 30/50) (!)",
		},
		{
			desc:    "crit level reached",
			line:    "P Foo temp=60;30;50 temperature very high",
			state:   status.Crit,
			summary: "temperature very high, temp: 60 (warn/crit at 30/50) (!!)",
		},
		{
			desc:    "lower level violated",
			line:    "P Foo humidity=28;50:100;0:50 too dry",
			state:   status.Warn,
			summary: "too dry, humidity: 28 (warn/crit below 50/0) (!)",
		},
		{
			desc:    "worst metric wins",
			line:    "P Foo temp=60;30;50|load=1;5;10 mixed",
			state:   status.Crit,
			summary: "mixed, temp: 60 (warn/crit at 30/50) (!!), load: 1",
		},
		{
			desc:    "no perfdata stays ok",
			line:    "P Foo - all good",
			state:   status.OK,
			summary: "all good",
		},
		{
			desc:    "fixed state ignores levels",
			line:    "0 Foo temp=60;30;50 pinned ok",
			state:   status.OK,
			summary: "pinned ok",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			result := parseOne(t, tc.line)
			state, summary := localcheck.Check(result)
			require.Equal(t, tc.state, state)
			require.Equal(t, tc.summary, summary)
		})
	}
}

func TestCheckSummaryFirstLineOnly(t *testing.T) {
	result := parseOne(t, `0 Foo - first\nsecond`)
	_, summary := localcheck.Check(result)
	require.Equal(t, "first", summary)
}

func TestCheckAppendsCacheInfo(t *testing.T) {
	result := parseOne(t, "cached(1617883538,300) 0 Foo - some text")
	state, summary := localcheck.Check(result)
	require.Equal(t, status.OK, state)
	require.Equal(t,
		"some text, Cache generated 2m0s ago, cache interval: 5m0s, elapsed cache lifespan: 40.0%",
		summary,
	)
}

func TestSectionEntities(t *testing.T) {
	section := localcheck.Parse([]string{
		"0 HTTP - site reachable",
		"P Temperature temp=60;30;50 sensor reading",
	}, parseTime)
	require.Empty(t, section.Errors)

	entities := section.Entities()
	require.Len(t, entities, 2)

	http := entities["HTTP"]
	require.True(t, http.HasBeenChecked)
	require.Equal(t, status.OK, http.State)
	require.Equal(t, status.OK, http.HardState)
	require.Equal(t, "site reachable", http.Output)

	temperature := entities["Temperature"]
	require.Equal(t, status.Crit, temperature.State)
	require.Contains(t, temperature.Output, "temp: 60 (warn/crit at 30/50) (!!)")
}

package planner

import (
	"context"
	"testing"
	"time"

	"lumen/internal/domain"
)

// fakeInspector maps storage symbols to their latest persisted day.
type fakeInspector struct {
	latest map[string]time.Time
}

func (f *fakeInspector) LatestTradingDay(_ context.Context, symbol string) (time.Time, bool) {
	t, ok := f.latest[symbol]
	return t, ok
}

func cnNorm(raw string) string {
	_, storeSym := domain.NormalizeCNSymbol(raw)
	return storeSym
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"full", "incremental", "auto", " AUTO "} {
		if _, err := ParseMode(ok); err != nil {
			t.Errorf("ParseMode(%q) errored: %v", ok, err)
		}
	}
	if _, err := ParseMode("nope"); err == nil {
		t.Error("ParseMode should reject unknown modes")
	}
}

func TestBuildGroupsFullIgnoresHistory(t *testing.T) {
	insp := &fakeInspector{latest: map[string]time.Time{
		"000001.SZ": date(2022, 6, 30),
	}}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	groups, skipped := BuildGroups(context.Background(), insp, []string{"000001"}, cnNorm, start, end, ModeFull, 0)
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	syms, ok := groups[start]
	if !ok || len(syms) != 1 || syms[0] != "000001.SZ" {
		t.Fatalf("groups = %v, want single group at userStart", groups)
	}
}

func TestBuildGroupsIncrementalMonotonicity(t *testing.T) {
	last := date(2022, 6, 30)
	insp := &fakeInspector{latest: map[string]time.Time{"000001.SZ": last}}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	// lookback=0: effective start is D+1.
	groups, _ := BuildGroups(context.Background(), insp, []string{"000001"}, cnNorm, start, end, ModeIncremental, 0)
	if _, ok := groups[date(2022, 7, 1)]; !ok {
		t.Errorf("lookback=0: groups = %v, want start 2022-07-01", groups)
	}

	// lookback=5: effective start is D+1-5.
	groups, _ = BuildGroups(context.Background(), insp, []string{"000001"}, cnNorm, start, end, ModeIncremental, 5)
	if _, ok := groups[date(2022, 6, 26)]; !ok {
		t.Errorf("lookback=5: groups = %v, want start 2022-06-26", groups)
	}

	// Large lookback clamps to userStart.
	groups, _ = BuildGroups(context.Background(), insp, []string{"000001"}, cnNorm, start, end, ModeIncremental, 10000)
	if _, ok := groups[start]; !ok {
		t.Errorf("clamped: groups = %v, want start at userStart", groups)
	}
}

func TestBuildGroupsNoHistoryFallsBackToUserStart(t *testing.T) {
	insp := &fakeInspector{}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	for _, mode := range []Mode{ModeIncremental, ModeAuto} {
		groups, skipped := BuildGroups(context.Background(), insp, []string{"600000"}, cnNorm, start, end, mode, 0)
		if skipped != 0 {
			t.Errorf("%s: skipped = %d", mode, skipped)
		}
		if _, ok := groups[start]; !ok {
			t.Errorf("%s: groups = %v, want start at userStart", mode, groups)
		}
	}
}

func TestBuildGroupsNilNormalizerKeepsSymbolsVerbatim(t *testing.T) {
	// US tickers are already in storage form; they must not be forced
	// through the CN convention.
	insp := &fakeInspector{latest: map[string]time.Time{
		"AAPL": date(2022, 6, 30),
	}}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	groups, skipped := BuildGroups(context.Background(), insp,
		[]string{"AAPL", "MSFT"}, nil, start, end, ModeAuto, 0)

	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	found := make(map[string]bool)
	for _, syms := range groups {
		for _, s := range syms {
			found[s] = true
		}
	}
	if !found["AAPL"] || !found["MSFT"] {
		t.Errorf("grouped symbols = %v, want verbatim AAPL and MSFT", found)
	}
	// AAPL's history was visible under its verbatim name.
	if _, ok := groups[date(2022, 7, 1)]; !ok {
		t.Errorf("groups = %v, want AAPL resuming at 2022-07-01", groups)
	}
}

func TestBuildGroupsSkipsUpToDateSymbols(t *testing.T) {
	insp := &fakeInspector{latest: map[string]time.Time{
		"000001.SZ": date(2022, 12, 31), // up to date
		"600000.SH": date(2022, 6, 30),
	}}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	groups, skipped := BuildGroups(context.Background(), insp,
		[]string{"000001", "600000"}, cnNorm, start, end, ModeIncremental, 0)

	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if groups.Symbols() != 1 {
		t.Errorf("grouped symbols = %d, want 1", groups.Symbols())
	}
}

func TestBuildGroupsNormalizesTimezones(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	insp := &fakeInspector{latest: map[string]time.Time{
		// History reported in a non-UTC zone must still compare correctly.
		"000001.SZ": time.Date(2022, 7, 1, 0, 0, 0, 0, cst),
	}}
	start := time.Date(2022, 1, 1, 8, 0, 0, 0, cst)
	end := time.Date(2022, 12, 31, 8, 0, 0, 0, cst)

	groups, _ := BuildGroups(context.Background(), insp, []string{"000001"}, cnNorm, start, end, ModeAuto, 0)
	for day := range groups {
		if day.Location() != time.UTC {
			t.Errorf("group key %v not in UTC", day)
		}
	}
	if groups.Symbols() != 1 {
		t.Errorf("grouped symbols = %d, want 1", groups.Symbols())
	}
}

func TestBuildGroupsSharedStartGroupsTogether(t *testing.T) {
	insp := &fakeInspector{latest: map[string]time.Time{
		"000001.SZ": date(2022, 6, 30),
		"600000.SH": date(2022, 6, 30),
		"300750.SZ": date(2022, 3, 31),
	}}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	groups, _ := BuildGroups(context.Background(), insp,
		[]string{"000001", "600000", "300750"}, cnNorm, start, end, ModeIncremental, 0)

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2: %v", len(groups), groups)
	}
	if got := len(groups[date(2022, 7, 1)]); got != 2 {
		t.Errorf("2022-07-01 group has %d symbols, want 2", got)
	}
}

func TestBuildPlanBatches(t *testing.T) {
	var symbols []string
	for i := 0; i < 150; i++ {
		symbols = append(symbols, "000001.SZ")
	}
	start, end := date(2022, 1, 1), date(2022, 12, 31)

	plan := BuildPlan(symbols, start, end, "1d", Policy{BatchSize: 64})
	if len(plan.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(plan.Tasks))
	}
	if len(plan.Tasks[0].Symbols) != 64 || len(plan.Tasks[2].Symbols) != 22 {
		t.Errorf("unexpected batch sizes: %d, %d", len(plan.Tasks[0].Symbols), len(plan.Tasks[2].Symbols))
	}
	if plan.Tasks[0].Source != "eastmoney" {
		t.Errorf("default source = %q, want eastmoney", plan.Tasks[0].Source)
	}
}

func TestTaskRequest(t *testing.T) {
	task := Task{
		Source:   "eastmoney",
		Symbols:  []string{"000001.SZ"},
		Start:    date(2022, 1, 1),
		End:      date(2022, 12, 31),
		Interval: "1d",
	}
	req := task.Request("ohlcva")
	if req.Dataset != "ohlcva" || req.Interval != "1d" || len(req.Symbols) != 1 {
		t.Errorf("unexpected request: %+v", req)
	}
}

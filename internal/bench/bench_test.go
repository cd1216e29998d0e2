package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/spake/internal/bench"
	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/generate"
	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/testutil"
)

func catsAndDogs() *ngram.Model {
	m := ngram.New()
	m.Initial = []string{"我"}
	m.Bigram["我"] = ngram.Dist{"喜欢": 1}
	m.Bigram["喜欢"] = ngram.Dist{"狗": 0.5, "猫": 0.5}

	return m
}

// ---------------------------------------------------------------------------
// Aggregation (min/max/mean)
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

func TestSummarize_Throughput(t *testing.T) {
	runs := []bench.RunResult{
		{Duration: time.Second, Tokens: 300},
		{Duration: time.Second, Tokens: 100},
	}

	s := bench.Summarize(runs)
	if s.TokensPerSec != 200 {
		t.Errorf("want 200 tokens/s, got %.2f", s.TokensPerSec)
	}
	if s.Mean != time.Second {
		t.Errorf("want mean=1s, got %v", s.Mean)
	}
}

func TestThroughput_ZeroDuration(t *testing.T) {
	if got := bench.Throughput(10, 0); got != 0 {
		t.Errorf("want 0 for zero duration, got %.4f", got)
	}
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

func TestRun_CountsSentencesAndTokens(t *testing.T) {
	g, err := generate.New(catsAndDogs(), config.GenerateConfig{Seed: 3})
	if err != nil {
		t.Fatalf("generate.New: %v", err)
	}

	runs, err := bench.Run(context.Background(), g, 3, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(runs) != 3 {
		t.Fatalf("want 3 runs, got %d", len(runs))
	}

	for i, r := range runs {
		if r.Index != i || r.Cold != (i == 0) {
			t.Errorf("run %d: index/cold = %d/%v", i, r.Index, r.Cold)
		}
		// Every walk is 我 喜欢 {猫|狗}.
		if r.Sentences != 4 || r.Tokens != 12 {
			t.Errorf("run %d: sentences=%d tokens=%d", i, r.Sentences, r.Tokens)
		}
	}
}

func TestRun_PropagatesWalkErrors(t *testing.T) {
	g, err := generate.New(ngram.New(), config.GenerateConfig{})
	if err != nil {
		t.Fatalf("generate.New: %v", err)
	}

	if _, err := bench.Run(context.Background(), g, 1, 1); !errors.Is(err, generate.ErrEmptyModel) {
		t.Fatalf("want ErrEmptyModel, got %v", err)
	}
}

func TestRun_RejectsBadCounts(t *testing.T) {
	g, _ := generate.New(catsAndDogs(), config.GenerateConfig{})

	if _, err := bench.Run(context.Background(), g, 0, 1); err == nil {
		t.Error("want error for zero runs")
	}
}

func TestProfileStages(t *testing.T) {
	corpus := testutil.WriteCorpus(t, t.TempDir(), "我/喜欢/猫", "我/喜欢/狗")

	runs, err := bench.ProfileStages(context.Background(), corpus, testutil.MapTokenizer{}, 2)
	if err != nil {
		t.Fatalf("ProfileStages: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}

	for _, r := range runs {
		if r.Bytes == 0 || r.Total < r.Train {
			t.Errorf("timings = %+v", r)
		}
	}

	var buf strings.Builder
	bench.FormatStages(runs, &buf)
	if !strings.Contains(buf.String(), "Train") {
		t.Errorf("stage table missing header:\n%s", buf.String())
	}
}

func TestProfileStages_MissingCorpus(t *testing.T) {
	_, err := bench.ProfileStages(context.Background(), "/nonexistent/corpus.txt", testutil.MapTokenizer{}, 1)
	if !errors.Is(err, ngram.ErrMissingCorpus) {
		t.Fatalf("want ErrMissingCorpus, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Mean threshold gate
// ---------------------------------------------------------------------------

func TestMeanThreshold(t *testing.T) {
	tests := []struct {
		name      string
		mean      time.Duration
		threshold float64
		wantErr   bool
	}{
		{"exceeds", 15 * time.Millisecond, 10, true},
		{"below", 5 * time.Millisecond, 10, false},
		{"exactly at", 10 * time.Millisecond, 10, false},
		{"disabled", time.Hour, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckMeanThreshold(tt.mean, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckMeanThreshold(%v, %v) = %v", tt.mean, tt.threshold, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 8 * time.Millisecond, Sentences: 10, Tokens: 40, TokensPerSec: 5000},
		{Index: 1, Cold: false, Duration: 5 * time.Millisecond, Sentences: 10, Tokens: 38, TokensPerSec: 7600},
	}
	stats := bench.Summarize(runs)

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "tokens/s"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, Sentences: 1, Tokens: 3},
	}
	stats := bench.Summarize(runs)

	var buf bytes.Buffer
	bench.FormatJSON(runs, stats, &buf)

	var out struct {
		Runs  []map[string]any `json:"runs"`
		Stats map[string]any   `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Runs) != 1 || out.Runs[0]["tokens"] != float64(3) {
		t.Errorf("runs = %v", out.Runs)
	}
	if out.Stats["mean_ms"] != float64(800) {
		t.Errorf("stats = %v", out.Stats)
	}
}

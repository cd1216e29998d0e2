package doctor_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/spake/internal/doctor"
	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/store"
)

// healthyProject writes a corpus, a model and one source and returns a
// config whose checks all pass.
func healthyProject(t *testing.T) doctor.Config {
	t.Helper()

	dir := t.TempDir()

	corpus := filepath.Join(dir, "corpus.txt")
	writeFile(t, corpus, "我喜欢猫\n")

	m := ngram.New()
	m.Initial = []string{"我"}
	m.Bigram["我"] = ngram.Dist{"喜欢": 1}
	model := filepath.Join(dir, "model.bin")
	if err := store.Save(model, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	src := filepath.Join(dir, "raw.txt")
	writeFile(t, src, "我喜欢猫。")

	return doctor.Config{
		CorpusPath:    corpus,
		ModelPath:     model,
		TokenizerKind: "dict",
		Sources:       []string{src},
		Encodings:     []string{"utf-8"},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	cfg := healthyProject(t)

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	for _, want := range []string{"corpus", "model", "tokenizer", "source"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output should mention %s:\n%s", want, out.String())
		}
	}

	if strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("output contains a failure mark:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// individual failures
// ---------------------------------------------------------------------------

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *doctor.Config)
		want   string
	}{
		{"corpus missing", func(t *testing.T, cfg *doctor.Config) {
			cfg.CorpusPath = filepath.Join(t.TempDir(), "none.txt")
		}, "corpus"},
		{"corpus empty", func(t *testing.T, cfg *doctor.Config) {
			writeFile(t, cfg.CorpusPath, "")
		}, "corpus"},
		{"model missing", func(t *testing.T, cfg *doctor.Config) {
			cfg.ModelPath = filepath.Join(t.TempDir(), "none.bin")
		}, "model"},
		{"model corrupt", func(t *testing.T, cfg *doctor.Config) {
			writeFile(t, cfg.ModelPath, "SPKM garbage")
		}, "model"},
		{"model invalid", func(_ *testing.T, cfg *doctor.Config) {
			cfg.LoadModel = func(string) (*ngram.Model, error) {
				m := ngram.New()
				m.Initial = []string{"a"}
				m.Bigram["a"] = ngram.Dist{"b": 0.4}
				return m, nil
			}
		}, "model"},
		{"unknown tokenizer", func(_ *testing.T, cfg *doctor.Config) {
			cfg.TokenizerKind = "jieba"
		}, "tokenizer"},
		{"sentencepiece path unset", func(_ *testing.T, cfg *doctor.Config) {
			cfg.TokenizerKind = "sentencepiece"
		}, "sentencepiece"},
		{"sentencepiece model missing", func(t *testing.T, cfg *doctor.Config) {
			cfg.TokenizerKind = "sentencepiece"
			cfg.SentencePieceModel = filepath.Join(t.TempDir(), "tokenizer.model")
		}, "sentencepiece"},
		{"dictionary missing", func(t *testing.T, cfg *doctor.Config) {
			cfg.Dictionary = filepath.Join(t.TempDir(), "dict.txt")
		}, "dictionary"},
		{"source missing", func(t *testing.T, cfg *doctor.Config) {
			cfg.Sources = append(cfg.Sources, filepath.Join(t.TempDir(), "gone.txt"))
		}, "gone.txt"},
		{"source undecodable", func(t *testing.T, cfg *doctor.Config) {
			bad := filepath.Join(t.TempDir(), "bad.txt")
			writeFile(t, bad, "\xff\xfe\xfd")
			cfg.Sources = append(cfg.Sources, bad)
		}, "bad.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := healthyProject(t)
			tt.mutate(t, &cfg)

			var out strings.Builder
			result := doctor.Run(cfg, &out)

			if !result.Failed() {
				t.Fatalf("expected failure; output:\n%s", out.String())
			}

			if len(result.Failures()) != 1 {
				t.Errorf("want exactly one failure, got %v", result.Failures())
			}

			if !hasFailureContaining(result.Failures(), tt.want) {
				t.Errorf("expected failure mentioning %q, got: %v", tt.want, result.Failures())
			}

			if !strings.Contains(out.String(), doctor.FailMark) {
				t.Errorf("output missing failure mark:\n%s", out.String())
			}
		})
	}
}

func TestRun_MissingStopwordsIsNotAFailure(t *testing.T) {
	cfg := healthyProject(t)
	cfg.Stopwords = filepath.Join(t.TempDir(), "stop.txt")

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "filter disabled") {
		t.Errorf("output should note the disabled filter:\n%s", out.String())
	}
}

func TestRun_DirectorySourceChecksEachFile(t *testing.T) {
	cfg := healthyProject(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "一")
	writeFile(t, filepath.Join(dir, "b.txt"), "二")
	cfg.Sources = []string{dir}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}

	if strings.Count(out.String(), "source:") != 2 {
		t.Errorf("want two source lines:\n%s", out.String())
	}
}

func TestRun_LoaderErrorIsReported(t *testing.T) {
	cfg := healthyProject(t)
	cfg.LoadModel = func(string) (*ngram.Model, error) { return nil, errLoad }

	result := doctor.Run(cfg, &strings.Builder{})
	if !hasFailureContaining(result.Failures(), errLoad.Error()) {
		t.Errorf("failures = %v", result.Failures())
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	if r.Failed() {
		t.Fatal("zero Result should not be failed")
	}

	r.AddFailure("external check")
	if !r.Failed() || r.Failures()[0] != "external check" {
		t.Errorf("Failures() = %v", r.Failures())
	}
}

var errLoad = errors.New("load exploded")

func hasFailureContaining(failures []string, substr string) bool {
	for _, f := range failures {
		if strings.Contains(f, substr) {
			return true
		}
	}

	return false
}

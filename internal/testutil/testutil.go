// Package testutil provides shared skip helpers and fixtures for tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestSentencePieceCorpus(t *testing.T) {
//	    model := testutil.RequireSentencePieceModel(t)
//	    corpus := testutil.WriteCorpus(t, t.TempDir(), "我/喜欢/猫")
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/tokenizer"
)

// RequireSentencePieceModel returns the path of a SentencePiece model, or
// skips the test. SPAKE_SP_MODEL wins; otherwise models/tokenizer.model is
// searched from the working directory upwards.
func RequireSentencePieceModel(tb testing.TB) string {
	tb.Helper()

	if p := os.Getenv("SPAKE_SP_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}

		tb.Skipf("SentencePiece model not found at SPAKE_SP_MODEL=%q", p)
		return ""
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		tb.Skipf("resolve working directory: %v", err)
		return ""
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	tb.Skip("models/tokenizer.model not found; set SPAKE_SP_MODEL to override")

	return ""
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}

	return path
}

// WriteCorpus writes one line per argument to dir/corpus.txt.
func WriteCorpus(tb testing.TB, dir string, lines ...string) string {
	tb.Helper()

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	return WriteFile(tb, dir, "corpus.txt", b.String())
}

// MapTokenizer segments text by table lookup. Sentences absent from the
// table fall back to splitting on "/", which lets fixtures spell out their
// segmentation inline ("我/喜欢/猫").
type MapTokenizer map[string][]string

// Tokenize implements tokenizer.Tokenizer.
func (m MapTokenizer) Tokenize(s string) ([]string, error) {
	if toks, ok := m[s]; ok {
		return toks, nil
	}

	return strings.Split(s, "/"), nil
}

var _ tokenizer.Tokenizer = MapTokenizer(nil)

// AssertValidModel fails the test when m breaks a structural invariant.
func AssertValidModel(tb testing.TB, m *ngram.Model) {
	tb.Helper()

	if m == nil {
		tb.Fatal("model is nil")
	}

	if err := m.Validate(); err != nil {
		tb.Fatalf("model invalid: %v", err)
	}
}

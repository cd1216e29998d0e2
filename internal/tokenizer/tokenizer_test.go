package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// modelPath returns the path to a SentencePiece model, skipping if absent.
// SPAKE_SP_MODEL wins; otherwise models/tokenizer.model is searched upwards.
func modelPath(t *testing.T) string {
	t.Helper()

	if p := os.Getenv("SPAKE_SP_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		t.Skipf("SPAKE_SP_MODEL=%q not found; skipping sentencepiece tests", p)
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		t.Fatalf("abs path: %v", err)
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")

		_, err = os.Stat(candidate)
		if err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	t.Skip("models/tokenizer.model not found; skipping sentencepiece tests")

	return ""
}

// ---------------------------------------------------------------------------
// Dict
// ---------------------------------------------------------------------------

func TestDict_Tokenize(t *testing.T) {
	d, err := NewDict()
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"words not characters", "我喜欢猫", []string{"我", "喜欢", "猫"}},
		{"whitespace only", " \t ", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize: %v", err)
			}

			if !equalStrings(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDict_DropsWhitespaceKeepsText(t *testing.T) {
	d, err := NewDict()
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}

	input := "我们周末 去 park 玩吧！"

	got, err := d.Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	for i, tok := range got {
		if tok == "" || strings.ContainsAny(tok, " \t") {
			t.Errorf("token[%d] = %q; want non-empty without whitespace", i, tok)
		}
	}

	want := strings.Join(strings.Fields(input), "")
	if joined := strings.Join(got, ""); joined != want {
		t.Errorf("joined tokens = %q, want %q", joined, want)
	}
}

func TestNewDict_UserWords(t *testing.T) {
	d, err := NewDict(Entry{Word: "公园门口"}, Entry{Word: "  "}, Entry{Word: "猫咪乐园", Freq: 50000, Tag: "n"})
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}

	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}

	got, _ := d.Tokenize("我们去公园门口")
	if !slices.Contains(got, "公园门口") {
		t.Errorf("Tokenize = %q, want the user word 公园门口 kept whole", got)
	}
}

func TestLoadDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	content := "\ufeff公园门口 100000 n\n# comment\n\n猫咪乐园\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := LoadDict(path)
	if err != nil {
		t.Fatalf("LoadDict: %v", err)
	}

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}

	got, _ := d.Tokenize("我们去公园门口")
	if !slices.Contains(got, "公园门口") {
		t.Errorf("Tokenize = %q, want the user word 公园门口 kept whole", got)
	}
}

func TestLoadDict_BadFrequency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	if err := os.WriteFile(path, []byte("公园门口 lots\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadDict(path); err == nil {
		t.Fatal("expected error for a non-numeric frequency")
	}
}

func TestLoadDict_Missing(t *testing.T) {
	_, err := LoadDict(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", err)
	}
}

// ---------------------------------------------------------------------------
// Whitespace / Func
// ---------------------------------------------------------------------------

func TestWhitespace_Tokenize(t *testing.T) {
	got, err := Whitespace{}.Tokenize("  the quick\tbrown\nfox ")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	if !equalStrings(got, []string{"the", "quick", "brown", "fox"}) {
		t.Errorf("Tokenize = %q", got)
	}
}

func TestFunc_Tokenize(t *testing.T) {
	var tok Tokenizer = Func(func(s string) []string { return strings.Split(s, "/") })

	got, err := tok.Tokenize("我/喜欢/猫")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	if !equalStrings(got, []string{"我", "喜欢", "猫"}) {
		t.Errorf("Tokenize = %q", got)
	}
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr error
	}{
		{"dict", nil},
		{"", nil},
		{"Whitespace", nil},
		{"sentencepiece", ErrEmptyPath},
		{"jieba", ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			tok, err := New(tt.kind, Options{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New(%q) error = %v, want %v", tt.kind, err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("New(%q): %v", tt.kind, err)
			}

			if tok == nil {
				t.Fatal("expected non-nil tokenizer")
			}
		})
	}
}

func TestNew_DictionaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	if err := os.WriteFile(path, []byte("公园门口\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tok, err := New("dict", Options{Dictionary: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, _ := tok.Tokenize("我们去公园门口")
	if !slices.Contains(got, "公园门口") {
		t.Errorf("Tokenize = %q", got)
	}
}

func TestNew_MissingDictionaryFile(t *testing.T) {
	tok, err := New("dict", Options{Dictionary: filepath.Join(t.TempDir(), "nope.txt")})
	if err == nil {
		t.Fatal("expected error for a missing dictionary")
	}
	if tok != nil {
		t.Errorf("tok = %#v, want nil on error", tok)
	}
}

// ---------------------------------------------------------------------------
// SentencePiece
// ---------------------------------------------------------------------------

func TestNewSentencePieceTokenizer_MissingFile(t *testing.T) {
	_, err := NewSentencePieceTokenizer("/nonexistent/tokenizer.model")
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestNewSentencePieceTokenizer_EmptyPath(t *testing.T) {
	_, err := NewSentencePieceTokenizer("")
	if !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got: %v", err)
	}
}

func TestSentencePiece_Tokenize(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer(%q): %v", path, err)
	}

	got, err := tok.Tokenize("Hello world.")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	if len(got) == 0 {
		t.Fatal("Tokenize returned no tokens")
	}

	for i, s := range got {
		if s == "" || strings.Contains(s, wordStart) {
			t.Errorf("token[%d] = %q; want non-empty without marker", i, s)
		}
	}

	if joined := strings.Join(got, ""); joined != "Helloworld." {
		t.Errorf("joined tokens = %q, want %q", joined, "Helloworld.")
	}

	empty, err := tok.Tokenize("   ")
	if err != nil || len(empty) != 0 {
		t.Errorf("Tokenize(blank) = %q, %v; want empty", empty, err)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

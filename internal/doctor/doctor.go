// Package doctor provides preflight checks for a spake project.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/pipeline"
	"github.com/example/spake/internal/store"
	"github.com/example/spake/internal/text"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// ModelLoader reads a model artifact. store.Load by default.
type ModelLoader func(path string) (*ngram.Model, error)

// Config holds the artifacts and resources each check inspects.
type Config struct {
	// CorpusPath is the project's corpus artifact.
	CorpusPath string
	// ModelPath is the project's model artifact.
	ModelPath string
	// LoadModel overrides how the model artifact is read.
	LoadModel ModelLoader
	// TokenizerKind decides whether a SentencePiece model is required.
	TokenizerKind string
	// SentencePieceModel is checked when TokenizerKind is sentencepiece.
	SentencePieceModel string
	// Dictionary is checked when set.
	Dictionary string
	// Stopwords is optional; a missing list is reported but does not fail.
	Stopwords string
	// Sources are the project's raw inputs; each must decode.
	Sources []string
	// Encodings are the candidate encodings for Sources.
	Encodings []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(w io.Writer, check string, err error) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", check, err))
	fmt.Fprintf(w, "%s %s: %v\n", FailMark, check, err)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- corpus artifact --------------------------------------------------
	if info, err := os.Stat(cfg.CorpusPath); err != nil {
		res.fail(w, "corpus "+cfg.CorpusPath, err)
	} else if info.Size() == 0 {
		res.fail(w, "corpus "+cfg.CorpusPath, errors.New("file is empty"))
	} else {
		fmt.Fprintf(w, "%s corpus: %s (%d bytes)\n", PassMark, cfg.CorpusPath, info.Size())
	}

	// ---- model artifact ---------------------------------------------------
	load := cfg.LoadModel
	if load == nil {
		load = store.Load
	}

	if m, err := load(cfg.ModelPath); err != nil {
		res.fail(w, "model "+cfg.ModelPath, err)
	} else if err := m.Validate(); err != nil {
		res.fail(w, "model "+cfg.ModelPath, err)
	} else {
		fmt.Fprintf(w, "%s model: %s (%d sentences, %d initial tokens)\n",
			PassMark, cfg.ModelPath, m.Stats.Sentences, len(m.Initial))
	}

	// ---- tokenizer resources ----------------------------------------------
	kind, err := config.NormalizeTokenizer(cfg.TokenizerKind)
	switch {
	case err != nil:
		res.fail(w, "tokenizer", err)
	case kind == config.TokenizerSentencePiece:
		if cfg.SentencePieceModel == "" {
			res.fail(w, "sentencepiece model", errors.New("paths.tokenizer_model is not set"))
		} else if _, err := os.Stat(cfg.SentencePieceModel); err != nil {
			res.fail(w, "sentencepiece model", err)
		} else {
			fmt.Fprintf(w, "%s sentencepiece model: %s\n", PassMark, cfg.SentencePieceModel)
		}
	default:
		fmt.Fprintf(w, "%s tokenizer: %s\n", PassMark, kind)
	}

	if cfg.Dictionary != "" {
		if _, err := os.Stat(cfg.Dictionary); err != nil {
			res.fail(w, "dictionary", err)
		} else {
			fmt.Fprintf(w, "%s dictionary: %s\n", PassMark, cfg.Dictionary)
		}
	}

	if cfg.Stopwords != "" {
		if _, err := os.Stat(cfg.Stopwords); errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(w, "%s stop words: %s not found, top-token filter disabled\n", PassMark, cfg.Stopwords)
		} else if err != nil {
			res.fail(w, "stop words", err)
		} else {
			fmt.Fprintf(w, "%s stop words: %s\n", PassMark, cfg.Stopwords)
		}
	}

	// ---- project sources --------------------------------------------------
	files, failed := pipeline.ExpandSources(cfg.Sources)
	for _, fe := range failed {
		res.fail(w, "source "+fe.Path, fe.Err)
	}

	for _, path := range files {
		if _, err := text.ReadFile(path, cfg.Encodings); err != nil {
			res.fail(w, "source "+path, err)
		} else {
			fmt.Fprintf(w, "%s source: %s\n", PassMark, path)
		}
	}

	return res
}

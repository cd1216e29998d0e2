// Package pipeline runs the corpus-to-model steps for one project: merging
// raw sources into a corpus, training and persisting the model, and
// generating sentences from it.
//
// All state lives in an explicit Session; nothing is global.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/example/spake/internal/chatlog"
	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/project"
	"github.com/example/spake/internal/text"
	"github.com/example/spake/internal/tokenizer"
)

// Session carries everything one pipeline run needs.
type Session struct {
	Workspace  project.Workspace
	Project    project.Descriptor
	Tokenizer  tokenizer.Tokenizer
	Normalizer text.Normalizer
	// StopwordsPath is optional; a missing file only disables the filter.
	StopwordsPath string
	// Strict aborts MergeCorpus on the first undecodable source.
	Strict bool
	Logger *slog.Logger

	model *ngram.Model
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return slog.Default()
}

// Model returns the model built or loaded by this session, or nil.
func (s *Session) Model() *ngram.Model {
	return s.model
}

// NewWorkspace maps the configured paths onto a project workspace.
func NewWorkspace(cfg config.Config) project.Workspace {
	return project.Workspace{
		Root:      cfg.Paths.Workspace,
		CorpusDir: cfg.Paths.CorpusDir,
		ModelDir:  cfg.Paths.ModelDir,
	}
}

// NewNormalizer builds the corpus normalizer from configuration. Corpora
// tokenized on whitespace keep a space between merged segments.
func NewNormalizer(cfg config.Config) text.Normalizer {
	n := text.DefaultNormalizer()
	n.Encodings = cfg.Corpus.Encodings
	n.FullStop = cfg.Corpus.FullStop
	n.MergeThreshold = cfg.Corpus.MergeThreshold

	if kind, err := config.NormalizeTokenizer(cfg.Tokenizer.Kind); err == nil && kind == config.TokenizerWhitespace {
		n.Joiner = " "
	}

	return n
}

// GenerateDefaults returns the generation settings from configuration.
// Whitespace-tokenized models get a space joiner unless one is configured.
func GenerateDefaults(cfg config.Config) config.GenerateConfig {
	g := cfg.Generate

	if kind, err := config.NormalizeTokenizer(cfg.Tokenizer.Kind); err == nil && kind == config.TokenizerWhitespace && g.Joiner == "" {
		g.Joiner = " "
	}

	return g
}

// NewTokenizer builds the configured tokenizer. Resource paths are
// relative to the workspace.
func NewTokenizer(cfg config.Config) (tokenizer.Tokenizer, error) {
	root := cfg.Paths.Workspace

	return tokenizer.New(cfg.Tokenizer.Kind, tokenizer.Options{
		SentencePieceModel: ResolvePath(root, cfg.Paths.TokenizerModel),
		Dictionary:         ResolvePath(root, cfg.Paths.Dictionary),
	})
}

// NewExtractor builds the chat-log extractor from configuration.
func NewExtractor(cfg config.Config, logger *slog.Logger) chatlog.Extractor {
	e := chatlog.DefaultExtractor()
	e.HeaderLines = cfg.ChatLog.HeaderLines
	e.Identity = chatlog.Identity{
		Handles:       cfg.ChatLog.Handles,
		Names:         cfg.ChatLog.Names,
		ExcludeMarker: cfg.ChatLog.ExcludeMarker,
	}
	e.MinChars = cfg.Corpus.MinLineChars
	e.Encodings = cfg.Corpus.Encodings
	e.Logger = logger

	return e
}

// Open resolves the named project (or the recent one when name is empty)
// and assembles a session for it.
func Open(cfg config.Config, name string, logger *slog.Logger) (*Session, error) {
	ws := NewWorkspace(cfg)

	d, err := ws.Resolve(name)
	if err != nil {
		return nil, err
	}

	tok, err := NewTokenizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	return &Session{
		Workspace:     ws,
		Project:       d,
		Tokenizer:     tok,
		Normalizer:    NewNormalizer(cfg),
		StopwordsPath: ResolvePath(cfg.Paths.Workspace, cfg.Paths.Stopwords),
		Logger:        logger,
	}, nil
}

// ResolvePath joins a relative path onto root. Empty stays empty.
func ResolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(root, p)
}

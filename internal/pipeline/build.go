package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/generate"
	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/store"
)

// Build trains a model on the project's corpus artifact, validates it,
// saves it to the model path and makes it the session's model.
func (s *Session) Build(ctx context.Context) (*ngram.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := s.logger()

	opts := []ngram.TrainOption{ngram.WithLogger(log)}

	if s.StopwordsPath != "" {
		words, err := ngram.LoadStopwords(s.StopwordsPath, s.Normalizer.Encodings)
		switch {
		case err == nil:
			opts = append(opts, ngram.WithStopwords(words))
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("stop word list not found", "file", s.StopwordsPath)
		default:
			return nil, fmt.Errorf("load stop words: %w", err)
		}
	}

	m, err := ngram.TrainFile(s.Project.CorpusPath, s.Tokenizer, opts...)
	if err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := store.Save(s.Project.ModelPath, m); err != nil {
		return nil, err
	}

	s.model = m

	log.Info("model built",
		"project", s.Project.Name,
		"file", s.Project.ModelPath,
		"sentences", m.Stats.Sentences,
		"vocab", m.Stats.Vocab,
	)

	return m, nil
}

// LoadModel reads the project's model artifact into the session. Errors
// satisfying store.IsNoModel mean the caller may Build instead.
func (s *Session) LoadModel() (*ngram.Model, error) {
	m, err := store.Load(s.Project.ModelPath)
	if err != nil {
		return nil, err
	}

	s.model = m

	return m, nil
}

// EnsureModel returns the session's model, loading it or, when no usable
// artifact exists, building it from the corpus.
func (s *Session) EnsureModel(ctx context.Context) (*ngram.Model, error) {
	if s.model != nil {
		return s.model, nil
	}

	m, err := s.LoadModel()
	if err == nil {
		return m, nil
	}

	if !store.IsNoModel(err) {
		return nil, err
	}

	s.logger().Info("no usable model, building", "project", s.Project.Name, "reason", err)

	return s.Build(ctx)
}

// Generate produces count sentences from the session's model, building or
// loading it first when needed.
func (s *Session) Generate(ctx context.Context, cfg config.GenerateConfig, count int) ([]string, error) {
	if count < 0 {
		return nil, fmt.Errorf("generate: count must be >= 0, got %d", count)
	}

	m, err := s.EnsureModel(ctx)
	if err != nil {
		return nil, err
	}

	g, err := generate.New(m, cfg)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, count)
	for range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sent, err := g.Generate()
		if err != nil {
			return nil, err
		}

		out = append(out, sent)
	}

	return out, nil
}

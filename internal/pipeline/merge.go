package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/example/spake/internal/fsutil"
	"github.com/example/spake/internal/text"
)

// MergeReport summarizes a MergeCorpus run.
type MergeReport struct {
	Path   string
	Files  int
	Lines  int
	Bytes  int
	Failed []text.FileError
}

// ErrNoUsableSource is returned by MergeCorpus when every source failed. The
// existing corpus artifact is kept.
var ErrNoUsableSource = errors.New("no source could be read")

// MergeCorpus normalizes every project source in list order and writes the
// concatenation to the project's corpus artifact. Directory sources expand
// to their .txt files in name order. Sources that cannot be decoded or read
// are skipped and reported, unless Strict is set, in which case the run
// aborts and the existing artifact is left untouched. The artifact is also
// kept when no source could be read at all.
func (s *Session) MergeCorpus(ctx context.Context) (MergeReport, error) {
	start := time.Now()
	log := s.logger()

	files, failed := ExpandSources(s.Project.Sources)
	if s.Strict && len(failed) > 0 {
		return MergeReport{}, fmt.Errorf("merge corpus: %w", failed[0])
	}

	report := MergeReport{Path: s.Project.CorpusPath, Failed: failed}

	var b strings.Builder
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return MergeReport{}, err
		}

		out, err := s.Normalizer.NormalizeFile(path)
		if err != nil {
			if !errors.Is(err, text.ErrDecode) {
				return MergeReport{}, fmt.Errorf("merge corpus: %w", err)
			}

			fe := text.FileError{Path: path, Err: err}
			if s.Strict {
				return MergeReport{}, fmt.Errorf("merge corpus: %w", fe)
			}

			log.Warn("skipping undecodable source", "file", path, "error", err)
			report.Failed = append(report.Failed, fe)
			continue
		}

		report.Files++
		if out == "" {
			continue
		}

		b.WriteString(out)
		b.WriteByte('\n')
		report.Lines += strings.Count(out, "\n") + 1
	}

	if report.Files == 0 && len(report.Failed) > 0 {
		return report, fmt.Errorf("merge corpus: %w (%d failed)", ErrNoUsableSource, len(report.Failed))
	}

	if err := fsutil.WriteFile(report.Path, []byte(b.String()), 0o644); err != nil {
		return MergeReport{}, fmt.Errorf("merge corpus: %w", err)
	}

	report.Bytes = b.Len()

	log.Info("corpus merged",
		"project", s.Project.Name,
		"file", report.Path,
		"sources", report.Files,
		"lines", report.Lines,
		"failed", len(report.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// ExpandSources lists the files behind each source. Unreadable sources are
// returned as failures rather than aborting the walk.
func ExpandSources(sources []string) ([]string, []text.FileError) {
	var (
		files  []string
		failed []text.FileError
	)

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			failed = append(failed, text.FileError{Path: src, Err: err})
			continue
		}

		if !info.IsDir() {
			files = append(files, src)
			continue
		}

		entries, err := os.ReadDir(src)
		if err != nil {
			failed = append(failed, text.FileError{Path: src, Err: err})
			continue
		}

		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)

		for _, name := range names {
			files = append(files, filepath.Join(src, name))
		}
	}

	return files, failed
}

// CorpusStats describes a corpus artifact.
type CorpusStats struct {
	Path    string `json:"path"`
	Lines   int    `json:"lines"`
	Chars   int    `json:"chars"`
	Bytes   int    `json:"bytes"`
	Longest int    `json:"longest"`
}

// CorpusStats reads the project's corpus artifact and counts its lines.
func (s *Session) CorpusStats() (CorpusStats, error) {
	raw, err := os.ReadFile(s.Project.CorpusPath)
	if err != nil {
		return CorpusStats{}, fmt.Errorf("corpus stats: %w", err)
	}

	st := CorpusStats{Path: s.Project.CorpusPath, Bytes: len(raw)}
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}

		n := len([]rune(line))
		st.Lines++
		st.Chars += n
		st.Longest = max(st.Longest, n)
	}

	return st, nil
}

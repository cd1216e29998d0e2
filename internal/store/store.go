// Package store persists trained n-gram models.
//
// Two formats are supported: a compact length-prefixed binary format (the
// default, ".bin") and a SQLite database (".db", ".sqlite") that can be
// inspected with ordinary SQL tools. Load detects the format from the file
// header. Writes always go to a temporary file that is renamed into place.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/example/spake/internal/fsutil"
	"github.com/example/spake/internal/ngram"
)

var (
	// ErrNoModel is returned when no model artifact exists at the path.
	ErrNoModel = errors.New("store: no model")
	// ErrCorruptModel is returned when an artifact cannot be decoded or holds
	// structurally invalid tables.
	ErrCorruptModel = errors.New("store: corrupt model")
)

// IsNoModel reports whether err means no usable model is available, either
// because the artifact is missing or because it is corrupt. Callers typically
// respond by training a new model.
func IsNoModel(err error) bool {
	return errors.Is(err, ErrNoModel) || errors.Is(err, ErrCorruptModel)
}

// Format names an on-disk model encoding.
type Format string

const (
	FormatBinary Format = "binary"
	FormatSQLite Format = "sqlite"
)

const sqliteHeader = "SQLite format 3\x00"

// ParseFormat accepts "binary"/"bin" and "sqlite"/"db".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "binary", "bin":
		return FormatBinary, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("store: unknown format %q (expected binary|sqlite)", raw)
	}
}

// FormatFor picks the format implied by a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatBinary
	}
}

// Save writes m to path in the format implied by its extension.
func Save(path string, m *ngram.Model) error {
	return SaveAs(path, m, FormatFor(path))
}

// SaveAs writes m to path in the given format.
func SaveAs(path string, m *ngram.Model, format Format) error {
	switch format {
	case FormatSQLite:
		return SaveSQLite(path, m)
	case FormatBinary:
		data, err := Encode(m)
		if err != nil {
			return err
		}

		if err := fsutil.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("store: save %s: %w", path, err)
		}

		return nil
	default:
		return fmt.Errorf("store: unknown format %q", format)
	}
}

// Load reads a model from path, detecting the format from the file header.
// A missing file yields ErrNoModel; anything undecodable yields ErrCorruptModel.
func Load(path string) (*ngram.Model, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	if format == FormatSQLite {
		return LoadSQLite(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", path, err)
	}

	return m, nil
}

// Detect reports the format of the artifact at path from its leading bytes.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoModel, path)
		}
		return "", fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(sqliteHeader))
	n, _ := f.Read(head)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte(magic)):
		return FormatBinary, nil
	case bytes.Equal(head, []byte(sqliteHeader)):
		return FormatSQLite, nil
	default:
		return "", corrupt("%s: unrecognized header", path)
	}
}

// Info describes a stored model artifact.
type Info struct {
	Path    string      `json:"path"`
	Format  Format      `json:"format"`
	Size    int64       `json:"size_bytes"`
	Initial int         `json:"initial_tokens"`
	Bigram  int         `json:"bigram_contexts"`
	Trigram int         `json:"trigram_contexts"`
	Stats   ngram.Stats `json:"stats"`
	Vocab   int         `json:"model_vocab"`
}

// Inspect loads the artifact at path and summarizes it.
func Inspect(path string) (Info, error) {
	format, err := Detect(path)
	if err != nil {
		return Info{}, err
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("store: stat %s: %w", path, err)
	}

	m, err := Load(path)
	if err != nil {
		return Info{}, err
	}

	bi, tri := m.Contexts()

	return Info{
		Path:    path,
		Format:  format,
		Size:    st.Size(),
		Initial: len(m.Initial),
		Bigram:  bi,
		Trigram: tri,
		Stats:   m.Stats,
		Vocab:   len(m.Vocabulary()),
	}, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptModel}, args...)...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)

	return keys
}

func sortedUnique(s []string) []string {
	out := append([]string(nil), s...)
	slices.Sort(out)

	return slices.Compact(out)
}

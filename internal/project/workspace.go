package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/example/spake/internal/fsutil"
)

var (
	// ErrNoProject is returned when a named or recent project does not exist.
	ErrNoProject = errors.New("project not found")
	// ErrProjectExists is returned by Create for a name already in use.
	ErrProjectExists = errors.New("project already exists")
)

const (
	projectsDirName  = "projects"
	settingsFileName = "settings.json"
	modelExt         = ".bin"
)

// Settings is workspace-level state kept between runs.
type Settings struct {
	Recent string `json:"recent"`
}

// Workspace is a directory holding project descriptors and, by default, the
// corpus and model artifacts. Relative CorpusDir and ModelDir resolve
// against Root.
type Workspace struct {
	Root      string
	CorpusDir string
	ModelDir  string
	// Format is "json" (default) or "yaml" for newly created descriptors.
	Format string
}

// ProjectsDir is where descriptors are stored.
func (w Workspace) ProjectsDir() string {
	return filepath.Join(w.Root, projectsDirName)
}

func (w Workspace) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}

	return filepath.Join(w.Root, dir)
}

// Ensure creates the workspace directories and a default settings file.
func (w Workspace) Ensure() error {
	for _, p := range []string{w.ProjectsDir(), w.resolve(w.CorpusDir), w.resolve(w.ModelDir)} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", p, err)
		}
	}

	settingsPath := filepath.Join(w.Root, settingsFileName)
	if _, err := os.Stat(settingsPath); errors.Is(err, fs.ErrNotExist) {
		if err := w.SaveSettings(Settings{}); err != nil {
			return err
		}
	}

	return nil
}

// Create registers a new project over sources. Empty and duplicate sources
// are dropped and the rest made absolute. The corpus and model artifacts
// are named after the project.
func (w Workspace) Create(name string, sources []string) (Descriptor, error) {
	if err := ValidateName(name); err != nil {
		return Descriptor{}, err
	}

	if _, err := w.descriptorPath(name); err == nil {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrProjectExists, name)
	}

	cleaned := lo.Uniq(lo.FilterMap(sources, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", false
		}
		if abs, err := filepath.Abs(s); err == nil {
			s = abs
		}
		return s, true
	}))

	d := Descriptor{
		Name:       name,
		Sources:    cleaned,
		CorpusPath: filepath.Join(w.resolve(w.CorpusDir), name+".txt"),
		ModelPath:  filepath.Join(w.resolve(w.ModelDir), name+modelExt),
	}

	if err := w.Save(d); err != nil {
		return Descriptor{}, err
	}

	return d, nil
}

// Save writes d into the projects directory, keeping the format of an
// existing descriptor.
func (w Workspace) Save(d Descriptor) error {
	path, err := w.descriptorPath(d.Name)
	if err != nil {
		ext := ".json"
		if strings.EqualFold(w.Format, "yaml") {
			ext = ".yaml"
		}
		path = filepath.Join(w.ProjectsDir(), d.Name+ext)
	}

	return WriteDescriptor(path, d)
}

// Open loads the descriptor for name.
func (w Workspace) Open(name string) (Descriptor, error) {
	if err := ValidateName(name); err != nil {
		return Descriptor{}, err
	}

	path, err := w.descriptorPath(name)
	if err != nil {
		return Descriptor{}, err
	}

	return ReadDescriptor(path)
}

// List returns the project names in sorted order.
func (w Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.ProjectsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		ext := filepath.Ext(e.Name())
		switch strings.ToLower(ext) {
		case ".json", ".yaml", ".yml":
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}

	names = lo.Uniq(names)
	slices.Sort(names)

	return names, nil
}

// Use opens name and records it as the recent project.
func (w Workspace) Use(name string) (Descriptor, error) {
	d, err := w.Open(name)
	if err != nil {
		return Descriptor{}, err
	}

	s, err := w.LoadSettings()
	if err != nil {
		return Descriptor{}, err
	}

	s.Recent = d.Name
	if err := w.SaveSettings(s); err != nil {
		return Descriptor{}, err
	}

	return d, nil
}

// Resolve opens name, or the recent project when name is empty.
func (w Workspace) Resolve(name string) (Descriptor, error) {
	if name != "" {
		return w.Open(name)
	}

	s, err := w.LoadSettings()
	if err != nil {
		return Descriptor{}, err
	}

	if s.Recent == "" {
		return Descriptor{}, fmt.Errorf("%w: no project given and none used recently", ErrNoProject)
	}

	return w.Open(s.Recent)
}

// LoadSettings reads settings.json. A missing file yields zero settings.
func (w Workspace) LoadSettings() (Settings, error) {
	raw, err := os.ReadFile(filepath.Join(w.Root, settingsFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	return s, nil
}

// SaveSettings writes settings.json.
func (w Workspace) SaveSettings(s Settings) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := fsutil.WriteFile(filepath.Join(w.Root, settingsFileName), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

func (w Workspace) descriptorPath(name string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		p := filepath.Join(w.ProjectsDir(), name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoProject, name)
}

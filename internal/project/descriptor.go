// Package project manages project descriptors and the workspace that holds
// them.
//
// A project names a set of raw corpus sources together with the corpus and
// model artifacts derived from them. Descriptors live under
// <workspace>/projects as JSON or YAML; settings.json remembers the most
// recently used project.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/spake/internal/fsutil"
)

// Descriptor is the persisted record of one project.
type Descriptor struct {
	Name       string   `json:"name" yaml:"name"`
	Sources    []string `json:"sources" yaml:"sources"`
	CorpusPath string   `json:"corpus_path" yaml:"corpus_path"`
	ModelPath  string   `json:"model_path" yaml:"model_path"`
}

// Validate checks the fields a pipeline run depends on.
func (d Descriptor) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if strings.TrimSpace(d.CorpusPath) == "" {
		return fmt.Errorf("project %s: corpus path must not be empty", d.Name)
	}

	if strings.TrimSpace(d.ModelPath) == "" {
		return fmt.Errorf("project %s: model path must not be empty", d.Name)
	}

	return nil
}

// ValidateName rejects names that cannot be used as a file stem.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("project name must not be empty")
	}

	if name != strings.TrimSpace(name) || strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("invalid project name %q", name)
	}

	return nil
}

// ReadDescriptor decodes a descriptor file; the extension selects JSON
// (.json) or YAML (.yaml, .yml).
func ReadDescriptor(path string) (Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}

	var d Descriptor
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &d)
	} else {
		err = json.Unmarshal(raw, &d)
	}
	if err != nil {
		return Descriptor{}, fmt.Errorf("decode descriptor %s: %w", path, err)
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("descriptor %s: %w", path, err)
	}

	return d, nil
}

// WriteDescriptor encodes d to path, choosing the format by extension.
func WriteDescriptor(path string, d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	var (
		raw []byte
		err error
	)
	if isYAML(path) {
		raw, err = yaml.Marshal(d)
	} else {
		raw, err = json.MarshalIndent(d, "", "  ")
		raw = append(raw, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	if err := fsutil.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

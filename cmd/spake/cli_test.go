package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/spake/internal/store"
)

// runCLI executes a fresh root command and returns what it printed to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	var out, errOut bytes.Buffer

	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.Execute()

	return out.String(), err
}

// newProject creates a workspace with one whitespace-tokenized project and
// returns the flags that address it.
func newProject(t *testing.T) []string {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "cats.txt")
	content := "the cat sat on the mat\nthe dog sat on the rug\n"

	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	flags := []string{
		"--workspace", filepath.Join(dir, "ws"),
		"--tokenizer-kind", "whitespace",
		"--corpus-merge-threshold", "1000",
	}

	out, err := runCLI(t, append(flags, "project", "new", src, "--name", "cats")...)
	if err != nil {
		t.Fatalf("project new: %v", err)
	}
	if !strings.Contains(out, "created project cats") {
		t.Fatalf("project new output = %q", out)
	}

	return flags
}

func mustRun(t *testing.T, flags []string, args ...string) string {
	t.Helper()

	out, err := runCLI(t, append(append([]string{}, flags...), args...)...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}

	return out
}

func TestCLI_EndToEnd(t *testing.T) {
	flags := newProject(t)

	if out := mustRun(t, flags, "corpus", "merge"); !strings.Contains(out, "Corpus merged to") {
		t.Errorf("corpus merge output = %q", out)
	}

	if out := mustRun(t, flags, "corpus", "stats"); !strings.Contains(out, "lines:   1") {
		t.Errorf("corpus stats output = %q", out)
	}

	if out := mustRun(t, flags, "model", "build"); !strings.Contains(out, "1 sentences") {
		t.Errorf("model build output = %q", out)
	}

	if out := mustRun(t, flags, "model", "verify"); !strings.Contains(out, "model verification passed") {
		t.Errorf("model verify output = %q", out)
	}

	first := mustRun(t, flags, "--seed", "7", "generate", "-n", "3")
	lines := strings.Split(strings.TrimSpace(first), "\n")
	if len(lines) != 3 {
		t.Fatalf("generate printed %d lines, want 3: %q", len(lines), first)
	}
	for i, l := range lines {
		if !strings.HasPrefix(l, "the ") {
			t.Errorf("line %d = %q, want it to start at the initial token", i, l)
		}
	}

	second := mustRun(t, flags, "--seed", "7", "generate", "-n", "3")
	if first != second {
		t.Errorf("same seed produced different output:\n%q\n%q", first, second)
	}
}

func TestCLI_GenerateBuildsMissingModel(t *testing.T) {
	flags := newProject(t)
	mustRun(t, flags, "corpus", "merge")

	out := mustRun(t, flags, "--seed", "1", "--order", "3-gram", "generate", "cats")
	if strings.TrimSpace(out) == "" {
		t.Fatal("generate printed nothing")
	}
}

func TestCLI_GenerateRejectsBadCount(t *testing.T) {
	flags := newProject(t)

	_, err := runCLI(t, append(flags, "generate", "-n", "0")...)
	if err == nil {
		t.Fatal("expected error for --count 0")
	}
}

func TestCLI_ModelInspectAndExport(t *testing.T) {
	flags := newProject(t)
	mustRun(t, flags, "corpus", "merge")
	mustRun(t, flags, "model", "build")

	out := mustRun(t, flags, "model", "inspect", "--json")

	var info store.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, out)
	}
	if info.Format != store.FormatBinary {
		t.Errorf("format = %q, want %q", info.Format, store.FormatBinary)
	}
	if info.Stats.Sentences != 1 || info.Initial != 1 {
		t.Errorf("sentences = %d, initial = %d; want 1, 1", info.Stats.Sentences, info.Initial)
	}

	dst := filepath.Join(t.TempDir(), "cats.db")
	mustRun(t, flags, "model", "export", "--format", "sqlite", "--out", dst)

	got, err := store.Detect(dst)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got != store.FormatSQLite {
		t.Errorf("exported format = %q, want %q", got, store.FormatSQLite)
	}
}

func TestCLI_ModelExportRequiresOut(t *testing.T) {
	flags := newProject(t)

	if _, err := runCLI(t, append(flags, "model", "export")...); err == nil {
		t.Fatal("expected error without --out")
	}
}

func TestCLI_ModelVerifyMissingArtifact(t *testing.T) {
	flags := newProject(t)

	_, err := runCLI(t, append(flags, "model", "verify")...)
	if err == nil || !strings.Contains(err.Error(), "model verify failed") {
		t.Fatalf("error = %v, want model verify failure", err)
	}
}

func TestCLI_ProjectListShowUse(t *testing.T) {
	flags := newProject(t)

	src := filepath.Join(t.TempDir(), "dogs.txt")
	if err := os.WriteFile(src, []byte("a dog barks loudly\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	mustRun(t, flags, "project", "new", src, "--name", "dogs", "--yaml")

	if out := mustRun(t, flags, "project", "list"); out != "  cats\n* dogs\n" {
		t.Errorf("project list = %q", out)
	}

	if out := mustRun(t, flags, "project", "use", "cats"); !strings.Contains(out, "using project cats") {
		t.Errorf("project use output = %q", out)
	}

	out := mustRun(t, flags, "project", "show")
	if !strings.Contains(out, "name: cats") || !strings.Contains(out, "cats.txt") {
		t.Errorf("project show output = %q", out)
	}

	if _, err := runCLI(t, append(flags, "project", "use", "birds")...); err == nil {
		t.Error("expected error selecting an unknown project")
	}
}

func TestCLI_CorpusNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.txt")
	if err := os.WriteFile(path, []byte("\ufeff你好。今天  天气很好。"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := mustRun(t, []string{"--corpus-merge-threshold", "0"}, "corpus", "normalize", path)
	if out != "你好。\n今天\n天气很好。\n" {
		t.Errorf("normalize output = %q", out)
	}
}

func TestCLI_Doctor(t *testing.T) {
	flags := newProject(t)

	if _, err := runCLI(t, append(flags, "doctor")...); err == nil {
		t.Fatal("expected doctor to fail before the model is built")
	}

	mustRun(t, flags, "corpus", "merge")
	mustRun(t, flags, "model", "build")

	if out := mustRun(t, flags, "doctor"); !strings.Contains(out, "doctor checks passed") {
		t.Errorf("doctor output = %q", out)
	}
}

func TestCLI_Bench(t *testing.T) {
	flags := newProject(t)
	mustRun(t, flags, "corpus", "merge")

	out := mustRun(t, flags, "--seed", "3", "bench", "--runs", "2", "--sentences", "5", "--format", "json")

	var report struct {
		Runs []struct {
			Sentences int `json:"sentences"`
		} `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("bench output is not JSON: %v\n%s", err, out)
	}
	if len(report.Runs) != 2 || report.Runs[0].Sentences != 5 {
		t.Errorf("report = %+v", report)
	}

	if out := mustRun(t, flags, "bench", "--stages", "--runs", "1"); !strings.Contains(out, "Train") {
		t.Errorf("stages output = %q", out)
	}

	if _, err := runCLI(t, append(flags, "bench", "--format", "csv")...); err == nil {
		t.Error("expected error for --format csv")
	}
}

func TestCLI_HealthUnreachable(t *testing.T) {
	if _, err := runCLI(t, "health", "--addr", "127.0.0.1:1"); err == nil {
		t.Fatal("expected health check to fail")
	}
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghostwriter/ghostwriter/pkg/types"
)

// withProject points the CLI globals at a fresh temp project and restores
// them afterwards
func withProject(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	oldRoot, oldCfg, oldLog, oldVerb := projectRoot, cfgFile, logFile, verbosity
	projectRoot = tmpDir
	cfgFile = ""
	logFile = ""
	verbosity = "error"
	t.Cleanup(func() {
		projectRoot, cfgFile, logFile, verbosity = oldRoot, oldCfg, oldLog, oldVerb
	})

	return tmpDir
}

func writeProjectConfig(t *testing.T, cfg *types.GhostwriterConfig) {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(getConfigPath(), data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

func TestGetConfigPath(t *testing.T) {
	root := withProject(t)

	want := filepath.Join(root, "ghostwriter.config.json")
	if got := getConfigPath(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	cfgFile = "/tmp/custom.json"
	if got := getConfigPath(); got != "/tmp/custom.json" {
		t.Errorf("expected explicit config file to win, got %s", got)
	}
}

func TestResolvePath(t *testing.T) {
	root := withProject(t)

	if got := resolvePath("templates/a.tmpl"); got != filepath.Join(root, "templates/a.tmpl") {
		t.Errorf("relative path not anchored at project root: %s", got)
	}
	if got := resolvePath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := resolvePath(""); got != "" {
		t.Errorf("empty path changed: %s", got)
	}
}

func TestGenerateCommand_AdhocRendersTemplates(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, "templates/manual.md.tmpl", "# {{.Values.title}}\n")
	writeProjectFile(t, root, "templates/notes.md.tmpl", "Notes for {{.Values.title}}\n")
	outDir := filepath.Join(root, "out")

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{
		"-t", filepath.Join(root, "templates/manual.md.tmpl"),
		"-t", filepath.Join(root, "templates/notes.md.tmpl"),
		"-v", "title=User Manual",
		"-o", outDir,
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "manual.md"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != "# User Manual\n" {
		t.Errorf("unexpected output: %q", string(data))
	}
	if _, err := os.Stat(filepath.Join(outDir, "notes.md")); err != nil {
		t.Errorf("second template output missing: %v", err)
	}
}

func TestGenerateCommand_AdhocRequiresOutput(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, "manual.md.tmpl", "# Manual\n")

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"-t", filepath.Join(root, "manual.md.tmpl")})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Fatalf("expected missing --output error, got %v", err)
	}
}

func TestGenerateCommand_MalformedValueAborts(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, "manual.md.tmpl", "# Manual\n")
	outDir := filepath.Join(root, "out")

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{
		"-t", filepath.Join(root, "manual.md.tmpl"),
		"-v", "title-without-equals",
		"-o", outDir,
	})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected malformed override to abort generation")
	}
	if _, err := os.Stat(filepath.Join(outDir, "manual.md")); !os.IsNotExist(err) {
		t.Error("no output should be written when overrides are malformed")
	}
}

func TestGenerateCommand_ConfigDriven(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, "templates/manual.md.tmpl", "# {{.Values.title}} {{.Values.release}}\n")
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version: "1.0",
		Documents: []types.DocumentSpec{
			{
				Name:      "manual",
				Templates: []string{"templates/manual.md.tmpl"},
				Values:    map[string]string{"title": "Manual", "release": "1.0"},
				OutputDir: "out",
			},
		},
	})

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"-v", "release=2.0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "out", "manual.md"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != "# Manual 2.0\n" {
		t.Errorf("command line value should win over config: %q", string(data))
	}
}

func TestGenerateCommand_UnknownDocument(t *testing.T) {
	withProject(t)
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version:   "1.0",
		Documents: []types.DocumentSpec{{Name: "manual", Templates: []string{"a.tmpl"}, OutputDir: "out"}},
	})

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"nonexistent"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "document not found") {
		t.Fatalf("expected document-not-found error, got %v", err)
	}
}

func TestApplyOverrides(t *testing.T) {
	doc := types.DocumentSpec{
		Name:        "manual",
		OutputDir:   "out",
		Postprocess: types.PostprocessDocx,
	}

	kind := types.PostprocessHTML
	cacheDir := ""
	applyOverrides(&doc, generateOptions{
		output:      "elsewhere",
		moduleCache: &cacheDir,
		postprocess: &kind,
	})

	if doc.OutputDir != "elsewhere" {
		t.Errorf("output override not applied: %s", doc.OutputDir)
	}
	if doc.ModuleCacheDir != "" {
		t.Errorf("module cache override not applied: %s", doc.ModuleCacheDir)
	}
	if doc.Postprocess != types.PostprocessHTML {
		t.Errorf("postprocess override not applied: %s", doc.Postprocess)
	}

	// Unset options leave the document untouched
	doc2 := types.DocumentSpec{OutputDir: "out", Postprocess: types.PostprocessDocx}
	applyOverrides(&doc2, generateOptions{})
	if doc2.OutputDir != "out" || doc2.Postprocess != types.PostprocessDocx {
		t.Errorf("unset options must not override: %+v", doc2)
	}
}

func TestRunClean(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, ".ghostwriter/state/manual.state.json", "{}")
	writeProjectFile(t, root, "out/manual.md", "# Manual\n")
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version:   "1.0",
		Documents: []types.DocumentSpec{{Name: "manual", Templates: []string{"a.tmpl"}, OutputDir: "out"}},
	})

	if err := runClean(false); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".ghostwriter")); !os.IsNotExist(err) {
		t.Error("state directory should be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "out", "manual.md")); err != nil {
		t.Error("outputs should survive a plain clean")
	}

	if err := runClean(true); err != nil {
		t.Fatalf("clean --outputs failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Error("outputs should be removed with --outputs")
	}
}

func TestRunValidate(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, "templates/manual.md.tmpl", "# {{.Values.title}}\n")
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version: "1.0",
		Documents: []types.DocumentSpec{
			{Name: "manual", Templates: []string{"templates/manual.md.tmpl"}, OutputDir: "out"},
		},
	})

	if err := runValidate(); err != nil {
		t.Fatalf("expected valid configuration, got %v", err)
	}
}

func TestRunValidate_MissingTemplate(t *testing.T) {
	withProject(t)
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version: "1.0",
		Documents: []types.DocumentSpec{
			{Name: "manual", Templates: []string{"templates/gone.md.tmpl"}, OutputDir: "out"},
		},
	})

	if err := runValidate(); err == nil {
		t.Fatal("expected validation to fail for a missing template")
	}
}

func TestRunList(t *testing.T) {
	withProject(t)
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version: "1.0",
		Documents: []types.DocumentSpec{
			{Name: "manual", Templates: []string{"a.tmpl", "b.tmpl"}, OutputDir: "out"},
		},
	})

	if err := runList(); err != nil {
		t.Fatalf("list failed: %v", err)
	}
}

func TestRunStatus_NoStates(t *testing.T) {
	withProject(t)
	writeProjectConfig(t, &types.GhostwriterConfig{
		Version:   "1.0",
		Documents: []types.DocumentSpec{{Name: "manual", Templates: []string{"a.tmpl"}, OutputDir: "out"}},
	})

	if err := runStatus(); err != nil {
		t.Fatalf("status failed: %v", err)
	}
}

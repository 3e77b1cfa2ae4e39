//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghostwriter/ghostwriter/internal/orchestrator"
	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/engine"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/render"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

const interfaceViewXML = `<?xml version="1.0" encoding="UTF-8"?>
<InterfaceView version="1.3">
  <Function id="1" name="gnc" language="SDL">
    <Provided_Interface id="11" name="control_loop" kind="Cyclic" period="100"/>
  </Function>
  <Function id="2" name="tmtc" language="C">
    <Provided_Interface id="21" name="collect" kind="Sporadic" queue_size="8"/>
  </Function>
</InterfaceView>`

const deploymentViewXML = `<?xml version="1.0" encoding="UTF-8"?>
<DeploymentView version="1.0">
  <Node id="1" name="obc" type="x86_linux">
    <Partition id="2" name="flight">
      <Function id="3" name="gnc" path="gnc"/>
    </Partition>
  </Node>
</DeploymentView>`

const systemObjectsCSV = "name;address\ntm_store;0x4000\ncmd_queue;0x5000\n"

// writeFile creates path with content, making parent directories as needed
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// sampleProject lays out artifacts and returns the project root
func sampleProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "artifacts", "iv.xml"), interfaceViewXML)
	writeFile(t, filepath.Join(root, "artifacts", "dv.xml"), deploymentViewXML)
	writeFile(t, filepath.Join(root, "artifacts", "objects.csv"), systemObjectsCSV)
	return root
}

// newOrchestrator wires real collaborators the way the generate command does
func newOrchestrator(t *testing.T, root, cacheDir string) *orchestrator.Orchestrator {
	t.Helper()
	log := logger.CreateLogger("", "error")
	sm := state.NewStateManager(root, log)
	if _, err := sm.InitializeState(types.DocumentSpec{Name: "manual"}); err != nil {
		t.Fatalf("failed to initialize state: %v", err)
	}
	return orchestrator.New(orchestrator.Dependencies{
		Engine:       engine.NewGoTemplateEngine(log),
		Cache:        engine.NewCache(cacheDir, log),
		StateManager: sm,
	}, 2, log)
}

func buildContext(t *testing.T, root, outputDir string, values map[string]string) *render.TemplateContext {
	t.Helper()
	log := logger.CreateLogger("", "error")
	tctx, err := render.NewContextBuilder(log).
		WithInterfaceView(filepath.Join(root, "artifacts", "iv.xml")).
		WithDeploymentView(filepath.Join(root, "artifacts", "dv.xml")).
		WithSystemObjects(filepath.Join(root, "artifacts", "objects.csv")).
		WithValues(values).
		WithOutputDirectory(outputDir).
		Build()
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	return tctx
}

func renderBatch(t *testing.T, orch *orchestrator.Orchestrator, tctx *render.TemplateContext, templates []string, outputDir string, kind types.PostprocessKind) *types.BatchSummary {
	t.Helper()
	jobs, err := orch.PlanJobs("manual", templates, outputDir, kind)
	if err != nil {
		t.Fatalf("failed to plan jobs: %v", err)
	}
	return orch.Render(context.Background(), tctx, jobs)
}

// TestEndToEndGenerate drives the full pipeline: artifacts in, Markdown out,
// render state recorded
func TestEndToEndGenerate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	outputDir := filepath.Join(root, "generated")

	writeFile(t, filepath.Join(root, "templates", "manual.md.tmpl"),
		"# {{.Values.title}}\n\nFunctions: {{range .Interfaces.Functions}}{{.Name}} {{end}}\n")
	writeFile(t, filepath.Join(root, "templates", "nodes.md.tmpl"),
		"Nodes: {{range .Deployment.Nodes}}{{.Name}}{{end}}\nObjects: {{with .SystemObject \"objects\"}}{{len .Instances}}{{end}}\n")

	templates := []string{
		filepath.Join(root, "templates", "manual.md.tmpl"),
		filepath.Join(root, "templates", "nodes.md.tmpl"),
	}

	orch := newOrchestrator(t, root, "")
	tctx := buildContext(t, root, outputDir, map[string]string{"title": "Flight Manual"})
	summary := renderBatch(t, orch, tctx, templates, outputDir, types.PostprocessNone)

	if summary.Failed() != 0 {
		t.Fatalf("expected clean batch, got %d failures: %+v", summary.Failed(), summary.Results)
	}

	manual, err := os.ReadFile(filepath.Join(outputDir, "manual.md"))
	if err != nil {
		t.Fatalf("manual.md not written: %v", err)
	}
	if !strings.Contains(string(manual), "# Flight Manual") {
		t.Errorf("value override missing from output:\n%s", manual)
	}
	if !strings.Contains(string(manual), "gnc tmtc") {
		t.Errorf("interface view functions missing from output:\n%s", manual)
	}

	nodes, err := os.ReadFile(filepath.Join(outputDir, "nodes.md"))
	if err != nil {
		t.Fatalf("nodes.md not written: %v", err)
	}
	if !strings.Contains(string(nodes), "Nodes: obc") || !strings.Contains(string(nodes), "Objects: 2") {
		t.Errorf("deployment or system objects missing from output:\n%s", nodes)
	}

	sm := state.NewStateManager(root, logger.CreateLogger("", "error"))
	st, err := sm.ReadState("manual")
	if err != nil {
		t.Fatalf("render state not persisted: %v", err)
	}
	if st.Status != types.RenderStatusSucceeded {
		t.Errorf("expected succeeded status, got %s", st.Status)
	}
	if st.RenderCount != 1 {
		t.Errorf("expected render count 1, got %d", st.RenderCount)
	}
	if len(st.LastOutputs) != 2 {
		t.Errorf("expected 2 recorded outputs, got %v", st.LastOutputs)
	}
}

// TestRepeatRunsAreByteIdentical renders the same inputs with a cold cache,
// a populated cache, and no cache at all; the output bytes must match in
// every case and the warm run must skip
func TestRepeatRunsAreByteIdentical(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	cacheDir := filepath.Join(root, "cache")
	outputDir := filepath.Join(root, "generated")

	template := filepath.Join(root, "templates", "report.md.tmpl")
	writeFile(t, template,
		"Release {{.Values.release}}: {{range .Interfaces.Functions}}{{.Name}},{{end}}\n")
	values := map[string]string{"release": "3.2"}

	tctx := buildContext(t, root, outputDir, values)

	cold := renderBatch(t, newOrchestrator(t, root, cacheDir), tctx, []string{template}, outputDir, types.PostprocessNone)
	if cold.Failed() != 0 || cold.Results[0].CacheHit {
		t.Fatalf("cold run should render without cache hits: %+v", cold.Results)
	}
	coldBytes, err := os.ReadFile(filepath.Join(outputDir, "report.md"))
	if err != nil {
		t.Fatalf("cold output missing: %v", err)
	}

	// New orchestrator instance: only the on-disk manifests are shared
	warm := renderBatch(t, newOrchestrator(t, root, cacheDir), tctx, []string{template}, outputDir, types.PostprocessNone)
	if warm.Results[0].Status != types.RenderStatusSkipped || !warm.Results[0].CacheHit {
		t.Fatalf("warm run should skip via manifest: %+v", warm.Results[0])
	}
	warmBytes, err := os.ReadFile(filepath.Join(outputDir, "report.md"))
	if err != nil {
		t.Fatalf("warm output missing: %v", err)
	}
	if !bytes.Equal(coldBytes, warmBytes) {
		t.Error("cache skip changed output bytes")
	}

	// Same inputs with the cache disabled entirely
	plainDir := filepath.Join(root, "generated-plain")
	plain := renderBatch(t, newOrchestrator(t, root, ""), buildContext(t, root, plainDir, values), []string{template}, plainDir, types.PostprocessNone)
	if plain.Failed() != 0 {
		t.Fatalf("uncached run failed: %+v", plain.Results)
	}
	plainBytes, err := os.ReadFile(filepath.Join(plainDir, "report.md"))
	if err != nil {
		t.Fatalf("uncached output missing: %v", err)
	}
	if !bytes.Equal(coldBytes, plainBytes) {
		t.Error("cache changed output bytes relative to an uncached run")
	}
}

// TestChangedOverrideInvalidatesCache re-renders with a different -v value
// and expects fresh output, not a stale cache hit
func TestChangedOverrideInvalidatesCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	cacheDir := filepath.Join(root, "cache")
	outputDir := filepath.Join(root, "generated")

	template := filepath.Join(root, "templates", "versioned.md.tmpl")
	writeFile(t, template, "version={{.Values.version}}\n")

	first := renderBatch(t, newOrchestrator(t, root, cacheDir),
		buildContext(t, root, outputDir, map[string]string{"version": "1"}),
		[]string{template}, outputDir, types.PostprocessNone)
	if first.Failed() != 0 {
		t.Fatalf("first render failed: %+v", first.Results)
	}

	second := renderBatch(t, newOrchestrator(t, root, cacheDir),
		buildContext(t, root, outputDir, map[string]string{"version": "2"}),
		[]string{template}, outputDir, types.PostprocessNone)
	if second.Results[0].CacheHit {
		t.Fatal("changed override must not hit the cache")
	}

	out, err := os.ReadFile(filepath.Join(outputDir, "versioned.md"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(out) != "version=2\n" {
		t.Errorf("expected re-render with new value, got %q", out)
	}
}

// TestAbsentDeploymentDiffersFromEmpty distinguishes a missing deployment
// view from a supplied one with no nodes
func TestAbsentDeploymentDiffersFromEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "artifacts", "empty-dv.xml"),
		`<?xml version="1.0"?><DeploymentView version="1.0"></DeploymentView>`)

	template := filepath.Join(root, "templates", "deploy.md.tmpl")
	writeFile(t, template,
		"{{if .HasDeployment}}nodes={{len .Deployment.Nodes}}{{else}}no deployment view{{end}}\n")

	log := logger.CreateLogger("", "error")
	renderOne := func(tctx *render.TemplateContext, outputDir string) string {
		orch := newOrchestrator(t, root, "")
		summary := renderBatch(t, orch, tctx, []string{template}, outputDir, types.PostprocessNone)
		if summary.Failed() != 0 {
			t.Fatalf("render failed: %+v", summary.Results)
		}
		out, err := os.ReadFile(filepath.Join(outputDir, "deploy.md"))
		if err != nil {
			t.Fatalf("output missing: %v", err)
		}
		return string(out)
	}

	absentDir := filepath.Join(root, "out-absent")
	absentCtx, err := render.NewContextBuilder(log).WithOutputDirectory(absentDir).Build()
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	if got := renderOne(absentCtx, absentDir); got != "no deployment view\n" {
		t.Errorf("absent deployment view rendered %q", got)
	}

	emptyDir := filepath.Join(root, "out-empty")
	emptyCtx, err := render.NewContextBuilder(log).
		WithDeploymentView(filepath.Join(root, "artifacts", "empty-dv.xml")).
		WithOutputDirectory(emptyDir).
		Build()
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	if got := renderOne(emptyCtx, emptyDir); got != "nodes=0\n" {
		t.Errorf("empty deployment view rendered %q", got)
	}
}

// TestBatchContinuesPastFailingTemplate renders three templates where the
// middle one fails; its siblings still produce output
func TestBatchContinuesPastFailingTemplate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	outputDir := filepath.Join(root, "generated")

	good1 := filepath.Join(root, "templates", "first.md.tmpl")
	bad := filepath.Join(root, "templates", "second.md.tmpl")
	good2 := filepath.Join(root, "templates", "third.md.tmpl")
	writeFile(t, good1, "first {{.Values.title}}\n")
	writeFile(t, bad, "broken {{.Values.nope}}\n")
	writeFile(t, good2, "third {{.Values.title}}\n")

	orch := newOrchestrator(t, root, "")
	tctx := buildContext(t, root, outputDir, map[string]string{"title": "ok"})
	summary := renderBatch(t, orch, tctx, []string{good1, bad, good2}, outputDir, types.PostprocessNone)

	if summary.Failed() != 1 {
		t.Fatalf("expected exactly one failure, got %d: %+v", summary.Failed(), summary.Results)
	}
	if summary.Succeeded() != 2 {
		t.Fatalf("expected two successes, got %d", summary.Succeeded())
	}

	for _, name := range []string{"first.md", "third.md"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("sibling output %s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outputDir, "second.md")); !os.IsNotExist(err) {
		t.Error("failed template must not leave an output file")
	}

	for _, result := range summary.Results {
		if result.Failed() && !strings.Contains(result.Error, "nope") {
			t.Errorf("failure should name the missing key: %s", result.Error)
		}
	}

	sm := state.NewStateManager(root, logger.CreateLogger("", "error"))
	st, err := sm.ReadState("manual")
	if err != nil {
		t.Fatalf("render state not persisted: %v", err)
	}
	if st.Status != types.RenderStatusFailed {
		t.Errorf("batch with a failure should record failed status, got %s", st.Status)
	}
	if st.FailureCount != 1 {
		t.Errorf("expected failure count 1, got %d", st.FailureCount)
	}
}

// TestDocxConversionSurvivesMissingImage converts to docx with an image
// reference that resolves nowhere; the job degrades but still produces both
// the Markdown and the docx artifact
func TestDocxConversionSurvivesMissingImage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	outputDir := filepath.Join(root, "generated")

	template := filepath.Join(root, "templates", "illustrated.md.tmpl")
	writeFile(t, template, "# {{.Values.title}}\n\n![architecture](diagrams/missing.png)\n")

	orch := newOrchestrator(t, root, "")
	tctx := buildContext(t, root, outputDir, map[string]string{"title": "Illustrated"})
	summary := renderBatch(t, orch, tctx, []string{template}, outputDir, types.PostprocessDocx)

	result := summary.Results[0]
	if result.Status != types.RenderStatusSucceeded {
		t.Fatalf("missing image must degrade, not fail: %+v", result)
	}
	if result.Error == "" || !strings.Contains(result.Error, "missing.png") {
		t.Errorf("degraded job should report the unresolvable asset, got %q", result.Error)
	}
	if result.Artifact == "" || !strings.HasSuffix(result.Artifact, "illustrated.docx") {
		t.Fatalf("expected docx artifact, got %q", result.Artifact)
	}
	if _, err := os.Stat(result.Artifact); err != nil {
		t.Errorf("docx artifact missing on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "illustrated.md")); err != nil {
		t.Errorf("markdown output missing alongside docx: %v", err)
	}
}

// TestMalformedOverrideAbortsBeforeRender rejects a bad -v literal before
// any template executes
func TestMalformedOverrideAbortsBeforeRender(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := sampleProject(t)
	outputDir := filepath.Join(root, "generated")
	template := filepath.Join(root, "templates", "doc.md.tmpl")
	writeFile(t, template, "{{.Values.title}}\n")

	_, err := render.ParseOverrides([]string{"title=ok", "notanoverride"})
	if err == nil {
		t.Fatal("expected malformed override to be rejected")
	}

	// The caller contract: overrides parse before anything renders
	if _, statErr := os.Stat(outputDir); !os.IsNotExist(statErr) {
		t.Error("no output directory may exist after an aborted run")
	}
}

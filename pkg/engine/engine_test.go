package engine_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ghostwriter/ghostwriter/pkg/artifacts"
	"github.com/ghostwriter/ghostwriter/pkg/engine"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/render"
)

func testContext() *render.TemplateContext {
	return &render.TemplateContext{
		Interfaces: &artifacts.InterfaceView{
			Version: "1.3",
			Functions: []*artifacts.Function{
				{Name: "host", Language: artifacts.LanguageSDL},
				{Name: "slave", Language: artifacts.LanguageC},
			},
		},
		SystemObjects: []*artifacts.SystemObjectTable{
			{
				Name:          "threads",
				PropertyNames: []string{"name", "wcet"},
				Instances: []map[string]string{
					{"name": "thr_main", "wcet": "10"},
					{"name": "thr_aux", "wcet": "20"},
				},
			},
		},
		Values:          map[string]string{"version": "2.1", "title": "User Manual"},
		OutputDirectory: "out",
	}
}

func TestGoTemplateEngine_Render(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	source := `# {{.Values.title}} v{{.Values.version}}

{{- range .Interfaces.Functions}}
- {{.Name}} ({{.Language}})
{{- end}}
`
	tmpl, err := eng.Compile("manual.md.tmpl", []byte(source))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, testContext(), render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "# User Manual v2.1") {
		t.Errorf("missing title line in output:\n%s", out)
	}
	if !strings.Contains(out, "- host (SDL)") || !strings.Contains(out, "- slave (C)") {
		t.Errorf("missing function lines in output:\n%s", out)
	}
}

func TestGoTemplateEngine_SystemObjectLookup(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	source := `{{with .SystemObject "threads"}}{{range .Instances}}{{index . "name"}}={{index . "wcet"}};{{end}}{{end}}`
	tmpl, err := eng.Compile("table.md.tmpl", []byte(source))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, testContext(), render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if buf.String() != "thr_main=10;thr_aux=20;" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestGoTemplateEngine_SprigFunctions(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	tmpl, err := eng.Compile("sprig.md.tmpl", []byte(`{{.Values.title | upper}} {{default "draft" ""}}`))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, testContext(), render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if buf.String() != "USER MANUAL draft" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestGoTemplateEngine_AssetFunction(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	tmpl, err := eng.Compile("assets.md.tmpl", []byte(`![arch]({{asset "images/arch.png"}})`))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	recorder := render.NewAssetRecorder()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, testContext(), recorder); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if buf.String() != "![arch](images/arch.png)" {
		t.Errorf("asset must return the path unchanged, got %q", buf.String())
	}
	assets := recorder.Assets()
	if len(assets) != 1 || assets[0] != "images/arch.png" {
		t.Errorf("asset not recorded: %v", assets)
	}
}

func TestGoTemplateEngine_CompileError(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	_, err := eng.Compile("broken.md.tmpl", []byte(`{{range .Items}}no end`))
	if !errors.Is(err, engine.ErrTemplateFailed) {
		t.Errorf("expected ErrTemplateFailed, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "broken.md.tmpl") {
		t.Errorf("error should name the template: %v", err)
	}
}

func TestGoTemplateEngine_MissingValueIsError(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	tests := []struct {
		name   string
		source string
	}{
		{name: "missing map key", source: `{{.Values.nope}}`},
		{name: "unknown field", source: `{{.Nope}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := eng.Compile("strict.md.tmpl", []byte(tt.source))
			if err != nil {
				t.Fatalf("compile failed: %v", err)
			}

			var buf bytes.Buffer
			err = tmpl.Execute(&buf, testContext(), render.NewAssetRecorder())
			if !errors.Is(err, engine.ErrTemplateFailed) {
				t.Errorf("expected ErrTemplateFailed, got %v", err)
			}
		})
	}
}

func TestGoTemplateEngine_AbsentArtifactGuard(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	source := `{{if .HasDeployment}}{{len .Deployment.Nodes}} nodes{{else}}no deployment{{end}}`
	tmpl, err := eng.Compile("guard.md.tmpl", []byte(source))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, testContext(), render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if buf.String() != "no deployment" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestGoTemplateEngine_Deterministic(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	source := `{{.Values.title}}: {{range .SystemObjects}}{{.Name}} {{end}}`
	tmpl, err := eng.Compile("det.md.tmpl", []byte(source))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	ctx := testContext()
	var first, second bytes.Buffer
	if err := tmpl.Execute(&first, ctx, render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if err := tmpl.Execute(&second, ctx, render.NewAssetRecorder()); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("repeated executions must produce identical bytes")
	}
}

func TestGoTemplateEngine_ConcurrentRecorders(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))

	tmpl, err := eng.Compile("conc.md.tmpl", []byte(`{{asset .Values.title}}`))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var wg sync.WaitGroup
	recorders := make([]*render.AssetRecorder, 8)
	for i := range recorders {
		recorders[i] = render.NewAssetRecorder()
	}

	for i := range recorders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := &render.TemplateContext{
				Values: map[string]string{"title": strings.Repeat("x", i+1)},
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, ctx, recorders[i]); err != nil {
				t.Errorf("execute %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Every recorder sees exactly its own single asset
	for i, recorder := range recorders {
		assets := recorder.Assets()
		if len(assets) != 1 || assets[0] != strings.Repeat("x", i+1) {
			t.Errorf("recorder %d polluted: %v", i, assets)
		}
	}
}

func TestGoTemplateEngine_Name(t *testing.T) {
	eng := engine.NewGoTemplateEngine(logger.CreateLogger("", "error"))
	if eng.Name() != "go-template" {
		t.Errorf("unexpected engine name: %s", eng.Name())
	}
}

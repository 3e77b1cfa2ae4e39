package postprocess_test

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/postprocess"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 200, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create asset dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
}

func readZipPart(t *testing.T, path, part string) string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("output is not a zip package: %v", err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == part {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("failed to open part %s: %v", part, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("failed to read part %s: %v", part, err)
			}
			return string(data)
		}
	}
	t.Fatalf("part %s not found in package", part)
	return ""
}

func zipPartNames(t *testing.T, path string) map[string]bool {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("output is not a zip package: %v", err)
	}
	defer r.Close()
	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	return names
}

func TestDocxConverter_Convert(t *testing.T) {
	outputDir := t.TempDir()
	markdownPath := filepath.Join(outputDir, "manual.md")
	markdown := "# User Manual\n\nSome **bold** and `mono` text.\n\n- first\n- second\n\n```\ncode line\n```\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, err := postprocess.New(types.PostprocessDocx, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out != filepath.Join(outputDir, "manual.docx") {
		t.Errorf("expected sibling .docx, got %s", out)
	}

	names := zipPartNames(t, out)
	for _, part := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/document.xml",
		"word/_rels/document.xml.rels",
		"word/styles.xml",
	} {
		if !names[part] {
			t.Errorf("package missing part %s", part)
		}
	}

	doc := readZipPart(t, out, "word/document.xml")
	checks := []string{
		`<w:pStyle w:val="Heading1"/>`,
		"User Manual",
		"<w:b/>",
		"bold",
		`<w:pStyle w:val="ListParagraph"/>`,
		"first",
		`<w:pStyle w:val="Code"/>`,
		"code line",
	}
	for _, want := range checks {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}

	if _, err := os.Stat(markdownPath); err != nil {
		t.Error("markdown must be retained after conversion")
	}
}

func TestDocxConverter_EmbedsImage(t *testing.T) {
	outputDir := t.TempDir()
	writePNG(t, filepath.Join(outputDir, "images", "arch.png"), 4, 2)

	markdownPath := filepath.Join(outputDir, "manual.md")
	markdown := "# Doc\n\n![architecture](images/arch.png)\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, _ := postprocess.New(types.PostprocessDocx, log)

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	names := zipPartNames(t, out)
	if !names["word/media/image1.png"] {
		t.Error("package missing embedded media part")
	}

	rels := readZipPart(t, out, "word/_rels/document.xml.rels")
	if !strings.Contains(rels, `Target="styles.xml"`) {
		t.Errorf("relationships missing styles entry:\n%s", rels)
	}
	if !strings.Contains(rels, `Id="rId2"`) || !strings.Contains(rels, `Target="media/image1.png"`) {
		t.Errorf("relationships missing image entry:\n%s", rels)
	}

	doc := readZipPart(t, out, "word/document.xml")
	if !strings.Contains(doc, `r:embed="rId2"`) {
		t.Error("document.xml missing inline drawing reference")
	}
	// 4x2 px at 96 DPI
	if !strings.Contains(doc, `cx="38100"`) || !strings.Contains(doc, `cy="19050"`) {
		t.Errorf("unexpected drawing extent:\n%s", doc)
	}

	ct := readZipPart(t, out, "[Content_Types].xml")
	if !strings.Contains(ct, `Extension="png"`) {
		t.Error("content types missing png default")
	}
}

func TestDocxConverter_MissingImageFallsBackToAltText(t *testing.T) {
	outputDir := t.TempDir()
	markdownPath := filepath.Join(outputDir, "manual.md")
	markdown := "# Doc\n\n![missing diagram](images/nope.png)\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, _ := postprocess.New(types.PostprocessDocx, log)

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert must not fail on a missing image: %v", err)
	}

	doc := readZipPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "missing diagram") {
		t.Error("alt text not emitted for missing image")
	}
	if strings.Contains(doc, "<w:drawing>") {
		t.Error("no drawing should be emitted for a missing image")
	}

	names := zipPartNames(t, out)
	for name := range names {
		if strings.HasPrefix(name, "word/media/") {
			t.Errorf("unexpected media part %s", name)
		}
	}
}

func TestDocxConverter_Tables(t *testing.T) {
	outputDir := t.TempDir()
	markdownPath := filepath.Join(outputDir, "tables.md")
	markdown := "| Name | WCET |\n|------|------|\n| thr_main | 10 |\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, _ := postprocess.New(types.PostprocessDocx, log)

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	doc := readZipPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "<w:tbl>") || !strings.Contains(doc, "thr_main") {
		t.Errorf("table not emitted:\n%s", doc)
	}
}

func TestDocxConverter_Idempotent(t *testing.T) {
	outputDir := t.TempDir()
	writePNG(t, filepath.Join(outputDir, "logo.png"), 2, 2)
	markdownPath := filepath.Join(outputDir, "manual.md")
	markdown := "# Doc\n\n![logo](logo.png)\n\nBody text.\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, _ := postprocess.New(types.PostprocessDocx, log)

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	first, _ := os.ReadFile(out)

	if _, err := converter.Convert(context.Background(), markdownPath, outputDir); err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}
	second, _ := os.ReadFile(out)

	if !bytes.Equal(first, second) {
		t.Error("repeated conversions must be byte-identical")
	}
}

func TestDocxConverter_XMLEscaping(t *testing.T) {
	outputDir := t.TempDir()
	markdownPath := filepath.Join(outputDir, "escape.md")
	markdown := "Angle <brackets> & ampersands.\n"
	if err := os.WriteFile(markdownPath, []byte(markdown), 0644); err != nil {
		t.Fatalf("failed to write markdown: %v", err)
	}

	log := logger.CreateLogger("", "error")
	converter, _ := postprocess.New(types.PostprocessDocx, log)

	out, err := converter.Convert(context.Background(), markdownPath, outputDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	doc := readZipPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "&lt;brackets&gt;") {
		t.Errorf("angle brackets not escaped:\n%s", doc)
	}
	if strings.Contains(doc, "<brackets>") {
		t.Error("raw angle brackets leaked into document.xml")
	}
}

package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

// htmlConverter renders Markdown into a standalone HTML document
type htmlConverter struct {
	log logger.Logger
	md  goldmark.Markdown
}

func newHTMLConverter(log logger.Logger) *htmlConverter {
	return &htmlConverter{
		log: log,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
	}
}

func (c *htmlConverter) Kind() types.PostprocessKind {
	return types.PostprocessHTML
}

// Convert writes a sibling .html file next to the rendered Markdown
func (c *htmlConverter) Convert(ctx context.Context, markdownPath string, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	source, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	var body bytes.Buffer
	if err := c.md.Convert(source, &body); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(markdownPath), filepath.Ext(markdownPath))
	htmlPath := filepath.Join(outputDir, base+".html")

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", htmlEscape(base))
	page.WriteString("<style>\n" + htmlStyle + "</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	fs := utils.NewFileSystemUtils()
	if err := fs.WriteFile(htmlPath, page.Bytes()); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	c.log.Debug("Converted Markdown to HTML",
		logger.WithField("source", markdownPath),
		logger.WithField("output", htmlPath))

	return htmlPath, nil
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}

const htmlStyle = `body {
  font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif;
  line-height: 1.5;
  max-width: 56rem;
  margin: 0 auto;
  padding: 2rem;
  color: #1f2328;
}
pre {
  background: #f6f8fa;
  padding: 1rem;
  overflow-x: auto;
  border-radius: 6px;
}
code {
  font-family: ui-monospace, "SF Mono", Menlo, Consolas, monospace;
  font-size: 85%;
}
table {
  border-collapse: collapse;
}
th, td {
  border: 1px solid #d1d9e0;
  padding: 0.4rem 0.8rem;
}
th {
  background: #f6f8fa;
}
img {
  max-width: 100%;
}
blockquote {
  margin-left: 0;
  padding-left: 1rem;
  border-left: 4px solid #d1d9e0;
  color: #59636e;
}
`

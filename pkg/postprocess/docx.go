package postprocess

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

const (
	stylesRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	imageRelationshipType  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	// 914400 EMU per inch at the conventional 96 DPI
	emuPerPixel = 9525

	// Usable width of an A4 page with 1in margins
	maxImageWidthEMU = 5731650

	listIndentTwips = 720
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// docxConverter turns rendered Markdown into a Word document. The OOXML
// package is assembled from scratch: document, styles, relationships and
// embedded media, nothing else.
type docxConverter struct {
	log logger.Logger
	md  goldmark.Markdown
}

func newDocxConverter(log logger.Logger) *docxConverter {
	return &docxConverter{
		log: log,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (c *docxConverter) Kind() types.PostprocessKind {
	return types.PostprocessDocx
}

// Convert writes a sibling .docx file next to the rendered Markdown
func (c *docxConverter) Convert(ctx context.Context, markdownPath string, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	source, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	doc := c.md.Parser().Parse(text.NewReader(source))

	builder := newDocxBuilder(outputDir, c.log)
	builder.renderBlocks(doc, source)

	pkg, err := builder.pack()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(markdownPath), filepath.Ext(markdownPath))
	docxPath := filepath.Join(outputDir, base+".docx")

	fs := utils.NewFileSystemUtils()
	if err := fs.WriteFile(docxPath, pkg); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversionFailed, markdownPath, err)
	}

	c.log.Debug("Converted Markdown to DOCX",
		logger.WithField("source", markdownPath),
		logger.WithField("output", docxPath),
		logger.WithField("images", len(builder.media)))

	return docxPath, nil
}

type runFormat struct {
	bold      bool
	italic    bool
	code      bool
	strike    bool
	underline bool
}

func (f runFormat) any() bool {
	return f.bold || f.italic || f.code || f.strike || f.underline
}

type mediaPart struct {
	name string
	data []byte
}

type docxRel struct {
	id     string
	relTyp string
	target string
}

// docxBuilder accumulates the document body and its media while walking
// the Markdown AST
type docxBuilder struct {
	body      bytes.Buffer
	media     []mediaPart
	rels      []docxRel
	imageExts map[string]string
	outputDir string
	log       logger.Logger
	drawingID int
	quoted    bool
}

func newDocxBuilder(outputDir string, log logger.Logger) *docxBuilder {
	return &docxBuilder{
		// rId1 is taken by the styles part; media starts at rId2
		rels:      []docxRel{{id: "rId1", relTyp: stylesRelationshipType, target: "styles.xml"}},
		imageExts: make(map[string]string),
		outputDir: outputDir,
		log:       log,
	}
}

func (b *docxBuilder) renderBlocks(parent ast.Node, source []byte) {
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		b.renderBlock(child, source)
	}
}

func (b *docxBuilder) renderBlock(node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.Heading:
		b.startParagraph(fmt.Sprintf("Heading%d", n.Level), 0)
		b.renderInlines(n, source, runFormat{})
		b.endParagraph()
	case *ast.Paragraph:
		b.startParagraph(b.paragraphStyle(), 0)
		b.renderInlines(n, source, runFormat{})
		b.endParagraph()
	case *ast.TextBlock:
		b.startParagraph(b.paragraphStyle(), 0)
		b.renderInlines(n, source, runFormat{})
		b.endParagraph()
	case *ast.FencedCodeBlock:
		b.renderCodeLines(n.Lines(), source)
	case *ast.CodeBlock:
		b.renderCodeLines(n.Lines(), source)
	case *ast.List:
		b.renderList(n, source, 0)
	case *ast.Blockquote:
		wasQuoted := b.quoted
		b.quoted = true
		b.renderBlocks(n, source)
		b.quoted = wasQuoted
	case *extast.Table:
		b.renderTable(n, source)
	case *ast.ThematicBreak:
		b.body.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`)
	case *ast.HTMLBlock:
		// Raw HTML has no Word rendering
	default:
		b.renderBlocks(node, source)
	}
}

func (b *docxBuilder) paragraphStyle() string {
	if b.quoted {
		return "Quote"
	}
	return ""
}

func (b *docxBuilder) renderCodeLines(lines *text.Segments, source []byte) {
	b.startParagraph("Code", 0)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		if i > 0 {
			b.body.WriteString("<w:r><w:br/></w:r>")
		}
		b.run(strings.TrimRight(string(line.Value(source)), "\n"), runFormat{code: true})
	}
	b.endParagraph()
}

func (b *docxBuilder) renderList(list *ast.List, source []byte, level int) {
	index := list.Start
	if index == 0 {
		index = 1
	}

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", index)
		}
		index++

		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				b.renderList(nested, source, level+1)
				continue
			}

			b.startParagraph("ListParagraph", (level+1)*listIndentTwips)
			if first {
				b.run(marker, runFormat{})
				first = false
			}
			b.renderInlines(child, source, runFormat{})
			b.endParagraph()
		}
	}
}

func (b *docxBuilder) renderTable(table *extast.Table, source []byte) {
	b.body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/>` +
		`<w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`</w:tblBorders></w:tblPr>`)

	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*extast.TableHeader)
		b.body.WriteString("<w:tr>")
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			b.body.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr>`)
			b.startParagraph("", 0)
			format := runFormat{bold: header}
			b.renderInlines(cell, source, format)
			b.endParagraph()
			b.body.WriteString("</w:tc>")
		}
		b.body.WriteString("</w:tr>")
	}

	b.body.WriteString("</w:tbl>")
}

func (b *docxBuilder) renderInlines(parent ast.Node, source []byte, format runFormat) {
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			b.run(string(n.Segment.Value(source)), format)
			if n.HardLineBreak() {
				b.body.WriteString("<w:r><w:br/></w:r>")
			} else if n.SoftLineBreak() {
				b.run(" ", format)
			}
		case *ast.String:
			b.run(string(n.Value), format)
		case *ast.Emphasis:
			next := format
			if n.Level >= 2 {
				next.bold = true
			} else {
				next.italic = true
			}
			b.renderInlines(n, source, next)
		case *ast.CodeSpan:
			next := format
			next.code = true
			b.renderInlines(n, source, next)
		case *extast.Strikethrough:
			next := format
			next.strike = true
			b.renderInlines(n, source, next)
		case *ast.Link:
			next := format
			next.underline = true
			b.renderInlines(n, source, next)
			if dest := string(n.Destination); dest != "" && dest != nodeText(n, source) {
				b.run(fmt.Sprintf(" (%s)", dest), format)
			}
		case *ast.AutoLink:
			next := format
			next.underline = true
			b.run(string(n.URL(source)), next)
		case *ast.Image:
			b.image(n, source)
		case *ast.RawHTML:
			// Raw HTML has no Word rendering
		default:
			b.renderInlines(child, source, format)
		}
	}
}

// image embeds a referenced picture as a media part with an inline drawing,
// sized from its intrinsic pixel dimensions at 96 DPI. Unresolvable or
// undecodable references degrade to their alt text.
func (b *docxBuilder) image(node *ast.Image, source []byte) {
	ref := string(node.Destination)
	alt := nodeText(node, source)
	if alt == "" {
		alt = ref
	}

	path, ok := assetPath(ref, b.outputDir)
	if !ok {
		b.logImageFallback(ref, "not found")
		b.run(alt, runFormat{italic: true})
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		b.logImageFallback(ref, err.Error())
		b.run(alt, runFormat{italic: true})
		return
	}

	cfg, imgFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		b.logImageFallback(ref, "undecodable image")
		b.run(alt, runFormat{italic: true})
		return
	}
	contentType, ok := imageContentTypes[imgFormat]
	if !ok {
		b.logImageFallback(ref, "unsupported format "+imgFormat)
		b.run(alt, runFormat{italic: true})
		return
	}

	filename := fmt.Sprintf("image%d.%s", len(b.media)+1, imgFormat)
	relID := fmt.Sprintf("rId%d", len(b.rels)+1)

	b.media = append(b.media, mediaPart{name: "word/media/" + filename, data: data})
	b.rels = append(b.rels, docxRel{id: relID, relTyp: imageRelationshipType, target: "media/" + filename})
	b.imageExts[imgFormat] = contentType

	cx := int64(cfg.Width) * emuPerPixel
	cy := int64(cfg.Height) * emuPerPixel
	if cx > maxImageWidthEMU {
		cy = cy * maxImageWidthEMU / cx
		cx = maxImageWidthEMU
	}

	b.drawingID++
	name := xmlEscape(alt)
	fmt.Fprintf(&b.body,
		`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
			`<wp:extent cx="%d" cy="%d"/>`+
			`<wp:docPr id="%d" name="%s"/>`+
			`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
			`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
			`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
			`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
			`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
			`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, b.drawingID, name, b.drawingID, name, relID, cx, cy)
}

func (b *docxBuilder) logImageFallback(ref, reason string) {
	b.log.Debug("Embedding alt text for image",
		logger.WithField("image", ref),
		logger.WithField("reason", reason))
}

func (b *docxBuilder) startParagraph(style string, indent int) {
	b.body.WriteString("<w:p>")
	if style != "" || indent > 0 {
		b.body.WriteString("<w:pPr>")
		if style != "" {
			fmt.Fprintf(&b.body, `<w:pStyle w:val="%s"/>`, style)
		}
		if indent > 0 {
			fmt.Fprintf(&b.body, `<w:ind w:left="%d"/>`, indent)
		}
		b.body.WriteString("</w:pPr>")
	}
}

func (b *docxBuilder) endParagraph() {
	b.body.WriteString("</w:p>")
}

func (b *docxBuilder) run(text string, f runFormat) {
	if text == "" {
		return
	}
	b.body.WriteString("<w:r>")
	if f.any() {
		b.body.WriteString("<w:rPr>")
		if f.code {
			b.body.WriteString(`<w:rFonts w:ascii="Consolas" w:hAnsi="Consolas"/><w:sz w:val="20"/>`)
		}
		if f.bold {
			b.body.WriteString("<w:b/>")
		}
		if f.italic {
			b.body.WriteString("<w:i/>")
		}
		if f.strike {
			b.body.WriteString("<w:strike/>")
		}
		if f.underline {
			b.body.WriteString(`<w:u w:val="single"/>`)
		}
		b.body.WriteString("</w:rPr>")
	}
	fmt.Fprintf(&b.body, `<w:t xml:space="preserve">%s</w:t>`, xmlEscape(text))
	b.body.WriteString("</w:r>")
}

// pack assembles the OOXML package
func (b *docxBuilder) pack() ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", b.contentTypes()},
		{"_rels/.rels", []byte(packageRels)},
		{"word/document.xml", b.documentXML()},
		{"word/_rels/document.xml.rels", b.documentRels()},
		{"word/styles.xml", []byte(stylesXML)},
	}

	for _, part := range parts {
		fw, err := w.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", part.name, err)
		}
		if _, err := fw.Write(part.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}

	for _, media := range b.media {
		fw, err := w.Create(media.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", media.name, err)
		}
		if _, err := fw.Write(media.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", media.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize package: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *docxBuilder) contentTypes() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	// Fixed order keeps repeated conversions byte-identical
	for _, ext := range []string{"png", "jpeg", "gif"} {
		if contentType, used := b.imageExts[ext]; used {
			fmt.Fprintf(&sb, `<Default Extension="%s" ContentType="%s"/>`, ext, contentType)
		}
	}
	sb.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	sb.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	sb.WriteString(`</Types>`)
	return []byte(sb.String())
}

func (b *docxBuilder) documentXML() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	sb.WriteString("<w:body>")
	sb.Write(b.body.Bytes())
	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr>`)
	sb.WriteString("</w:body></w:document>")
	return []byte(sb.String())
}

func (b *docxBuilder) documentRels() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, rel := range b.rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, rel.id, rel.relTyp, rel.target)
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

func nodeText(parent ast.Node, source []byte) string {
	var sb strings.Builder
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			sb.Write(n.Segment.Value(source))
		case *ast.String:
			sb.Write(n.Value)
		default:
			sb.WriteString(nodeText(child, source))
		}
	}
	return sb.String()
}

func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const packageRels = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const stylesXML = xmlHeader + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="3"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading5"><w:name w:val="heading 5"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="4"/></w:pPr><w:rPr><w:b/><w:i/><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading6"><w:name w:val="heading 6"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="5"/></w:pPr><w:rPr><w:b/><w:i/><w:sz w:val="20"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Code"><w:name w:val="Code"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="120" w:after="120"/><w:shd w:val="clear" w:color="auto" w:fill="F2F2F2"/></w:pPr><w:rPr><w:rFonts w:ascii="Consolas" w:hAnsi="Consolas"/><w:sz w:val="20"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:after="40"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="720"/></w:pPr><w:rPr><w:i/></w:rPr></w:style>
</w:styles>`

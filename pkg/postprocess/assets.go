package postprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

// ResolveAssets brings every referenced asset into the output directory so
// converted documents stay self-contained. A relative reference is looked up
// in the working directory first, then in outputDir; one found outside the
// output directory is copied in under the same relative path. Absolute
// references are only checked for existence.
//
// Returned paths point at the resolved files. References that resolve
// nowhere are collected into one error wrapping ErrAssetMissing; callers
// treat that as a warning, not a failure.
func ResolveAssets(references []string, outputDir string, log logger.Logger) ([]string, error) {
	fs := utils.NewFileSystemUtils()

	var resolved []string
	var missing []string

	for _, ref := range references {
		if ref == "" {
			continue
		}

		if filepath.IsAbs(ref) {
			if fs.Exists(ref) {
				resolved = append(resolved, ref)
			} else {
				missing = append(missing, ref)
			}
			continue
		}

		target := filepath.Join(outputDir, ref)

		source := ref
		if abs, err := filepath.Abs(ref); err == nil {
			source = abs
		}
		targetAbs := target
		if abs, err := filepath.Abs(target); err == nil {
			targetAbs = abs
		}

		switch {
		case fs.Exists(source) && source != targetAbs:
			if err := fs.CopyFile(source, target); err != nil {
				log.Warn("Failed to copy asset into output directory",
					logger.WithField("asset", ref),
					logger.WithField("error", err))
				missing = append(missing, ref)
				continue
			}
			log.Debug("Copied asset into output directory",
				logger.WithField("asset", ref),
				logger.WithField("target", target))
			resolved = append(resolved, target)
		case fs.Exists(target):
			resolved = append(resolved, target)
		default:
			missing = append(missing, ref)
		}
	}

	if len(missing) > 0 {
		return resolved, fmt.Errorf("%w: %s", ErrAssetMissing, strings.Join(missing, ", "))
	}
	return resolved, nil
}

// ScanImageRefs returns the local image references in a Markdown document,
// in document order with duplicates dropped. Remote and data URLs are not
// assets and are skipped.
func ScanImageRefs(markdown []byte) []string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(markdown))

	var refs []string
	seen := make(map[string]bool)

	ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := node.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		ref := string(img.Destination)
		if ref == "" || isRemoteRef(ref) || seen[ref] {
			return ast.WalkContinue, nil
		}
		seen[ref] = true
		refs = append(refs, ref)
		return ast.WalkContinue, nil
	})

	return refs
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:")
}

// assetPath resolves an image reference the way converted output will see
// it: relative references live in the output directory, absolute ones stand
// alone. Returns the path and whether the file exists.
func assetPath(ref, outputDir string) (string, bool) {
	path := ref
	if !filepath.IsAbs(ref) {
		path = filepath.Join(outputDir, ref)
	}
	if _, err := os.Stat(path); err != nil {
		return path, false
	}
	return path, true
}

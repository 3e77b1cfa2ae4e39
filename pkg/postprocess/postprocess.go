// Package postprocess converts rendered Markdown into its final delivery
// format. Converters are selected by postprocessing mode; conversion and
// asset problems are reported but never invalidate the rendered Markdown.
package postprocess

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

var (
	// ErrUnknownPostprocessor indicates an unsupported postprocessing mode
	ErrUnknownPostprocessor = errors.New("unknown postprocessor")

	// ErrAssetMissing indicates an asset reference that resolved nowhere
	ErrAssetMissing = errors.New("asset missing")

	// ErrConversionFailed indicates a postprocessing step that could not
	// produce its output
	ErrConversionFailed = errors.New("conversion failed")
)

// New returns the converter for a postprocessing mode
func New(kind types.PostprocessKind, log logger.Logger) (interfaces.Converter, error) {
	switch kind {
	case types.PostprocessNone, "":
		return &noneConverter{}, nil
	case types.PostprocessDocx:
		return newDocxConverter(log), nil
	case types.PostprocessHTML:
		return newHTMLConverter(log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPostprocessor, kind)
	}
}

// noneConverter leaves the rendered Markdown as the final output
type noneConverter struct{}

func (c *noneConverter) Kind() types.PostprocessKind {
	return types.PostprocessNone
}

func (c *noneConverter) Convert(_ context.Context, markdownPath string, _ string) (string, error) {
	return markdownPath, nil
}

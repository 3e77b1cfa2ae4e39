package render

import (
	"github.com/ghostwriter/ghostwriter/pkg/artifacts"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
)

// ContextBuilder collects artifact paths and overrides, then reads and
// parses everything in Build. Any artifact error is fatal, so a broken
// input aborts the run before the first template executes.
type ContextBuilder struct {
	log             logger.Logger
	interfaceView   string
	deploymentView  string
	systemObjects   []string
	values          map[string]string
	outputDirectory string
	csvDelimiter    rune
}

// NewContextBuilder creates a builder with no artifacts configured. An
// empty build is valid and yields a context with only values and the
// output directory set.
func NewContextBuilder(log logger.Logger) *ContextBuilder {
	return &ContextBuilder{
		log:    log,
		values: make(map[string]string),
	}
}

// WithInterfaceView sets the interface view artifact path. Empty clears it.
func (b *ContextBuilder) WithInterfaceView(path string) *ContextBuilder {
	b.interfaceView = path
	return b
}

// WithDeploymentView sets the deployment view artifact path. Empty clears it.
func (b *ContextBuilder) WithDeploymentView(path string) *ContextBuilder {
	b.deploymentView = path
	return b
}

// WithSystemObjects appends system object table paths in supply order.
func (b *ContextBuilder) WithSystemObjects(paths ...string) *ContextBuilder {
	b.systemObjects = append(b.systemObjects, paths...)
	return b
}

// WithValues merges override values into the context, later calls and later
// keys overwriting earlier ones.
func (b *ContextBuilder) WithValues(values map[string]string) *ContextBuilder {
	for name, value := range values {
		b.values[name] = value
	}
	return b
}

// WithValue sets a single override value.
func (b *ContextBuilder) WithValue(name, value string) *ContextBuilder {
	b.values[name] = value
	return b
}

// WithOutputDirectory sets the directory exposed to templates as
// output_directory.
func (b *ContextBuilder) WithOutputDirectory(dir string) *ContextBuilder {
	b.outputDirectory = dir
	return b
}

// WithCSVDelimiter sets the field delimiter used when reading system object
// tables. Zero keeps the default ';'.
func (b *ContextBuilder) WithCSVDelimiter(delimiter rune) *ContextBuilder {
	b.csvDelimiter = delimiter
	return b
}

// Build reads all configured artifacts and assembles the context. The
// first artifact error aborts the build.
func (b *ContextBuilder) Build() (*TemplateContext, error) {
	ctx := &TemplateContext{
		OutputDirectory: b.outputDirectory,
	}

	if len(b.values) > 0 {
		ctx.Values = make(map[string]string, len(b.values))
		for name, value := range b.values {
			ctx.Values[name] = value
		}
	}

	if b.interfaceView != "" {
		iv, err := artifacts.ReadInterfaceView(b.interfaceView)
		if err != nil {
			return nil, err
		}
		ctx.Interfaces = iv
		b.log.Debug("Loaded interface view",
			logger.Field{Key: "path", Value: b.interfaceView},
			logger.Field{Key: "functions", Value: len(iv.Functions)})
	}

	if b.deploymentView != "" {
		dv, err := artifacts.ReadDeploymentView(b.deploymentView)
		if err != nil {
			return nil, err
		}
		ctx.Deployment = dv
		b.log.Debug("Loaded deployment view",
			logger.Field{Key: "path", Value: b.deploymentView},
			logger.Field{Key: "nodes", Value: len(dv.Nodes)})
	}

	for _, path := range b.systemObjects {
		table, err := artifacts.ReadSystemObjects(path, b.csvDelimiter)
		if err != nil {
			return nil, err
		}
		ctx.SystemObjects = append(ctx.SystemObjects, table)
		b.log.Debug("Loaded system object table",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "table", Value: table.Name},
			logger.Field{Key: "instances", Value: len(table.Instances)})
	}

	return ctx, nil
}

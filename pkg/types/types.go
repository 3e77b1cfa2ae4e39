// Package types provides core types and configurations for Ghostwriter
package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PostprocessKind represents supported postprocessing modes
type PostprocessKind string

const (
	PostprocessNone PostprocessKind = "none"
	PostprocessDocx PostprocessKind = "to-docx"
	PostprocessHTML PostprocessKind = "to-html"
)

// ParsePostprocessKind validates a postprocessing mode string
func ParsePostprocessKind(s string) (PostprocessKind, error) {
	switch PostprocessKind(s) {
	case PostprocessNone, PostprocessDocx, PostprocessHTML:
		return PostprocessKind(s), nil
	case "":
		return PostprocessNone, nil
	default:
		return "", fmt.Errorf("unknown postprocessing mode: %q (expected none, to-docx or to-html)", s)
	}
}

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RenderStatus represents the current state of a render job
type RenderStatus string

const (
	RenderStatusIdle      RenderStatus = "idle"
	RenderStatusQueued    RenderStatus = "queued"
	RenderStatusRendering RenderStatus = "rendering"
	RenderStatusSucceeded RenderStatus = "succeeded"
	RenderStatusFailed    RenderStatus = "failed"
	RenderStatusSkipped   RenderStatus = "skipped"
)

// ChangeType represents the classification of file changes in watch mode
type ChangeType string

const (
	ChangeTypeTemplate ChangeType = "template"
	ChangeTypeArtifact ChangeType = "artifact"
	ChangeTypeConfig   ChangeType = "config"
)

// DocumentSpec describes one document: the templates to render and the
// artifacts that feed them
type DocumentSpec struct {
	Name           string            `json:"name" yaml:"name"`
	Templates      []string          `json:"templates" yaml:"templates"`
	InterfaceView  string            `json:"interfaceView,omitempty" yaml:"interfaceView,omitempty"`
	DeploymentView string            `json:"deploymentView,omitempty" yaml:"deploymentView,omitempty"`
	SystemObjects  []string          `json:"systemObjects,omitempty" yaml:"systemObjects,omitempty"`
	Values         map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
	OutputDir      string            `json:"outputDir" yaml:"outputDir"`
	ModuleCacheDir string            `json:"moduleCacheDir,omitempty" yaml:"moduleCacheDir,omitempty"`
	Postprocess    PostprocessKind   `json:"postprocess,omitempty" yaml:"postprocess,omitempty"`
	CSVDelimiter   string            `json:"csvDelimiter,omitempty" yaml:"csvDelimiter,omitempty"`
	Enabled        *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SettlingDelay  *int              `json:"settlingDelay,omitempty" yaml:"settlingDelay,omitempty"`
}

// GetName returns the document name
func (d *DocumentSpec) GetName() string { return d.Name }

// IsEnabled reports whether the document participates in generation runs
func (d *DocumentSpec) IsEnabled() bool { return d.Enabled == nil || *d.Enabled }

// GetSettlingDelay returns the watch settling delay in milliseconds
func (d *DocumentSpec) GetSettlingDelay() int {
	if d.SettlingDelay != nil {
		return *d.SettlingDelay
	}
	return 1000
}

// GetCSVDelimiter returns the delimiter for system-object tables
func (d *DocumentSpec) GetCSVDelimiter() rune {
	if d.CSVDelimiter == "" {
		return ';'
	}
	return []rune(d.CSVDelimiter)[0]
}

// GetPostprocess returns the postprocessing mode, defaulting to none
func (d *DocumentSpec) GetPostprocess() PostprocessKind {
	if d.Postprocess == "" {
		return PostprocessNone
	}
	return d.Postprocess
}

// WatchPaths returns every file the document depends on: templates plus
// all referenced artifacts
func (d *DocumentSpec) WatchPaths() []string {
	paths := make([]string, 0, len(d.Templates)+len(d.SystemObjects)+2)
	paths = append(paths, d.Templates...)
	if d.InterfaceView != "" {
		paths = append(paths, d.InterfaceView)
	}
	if d.DeploymentView != "" {
		paths = append(paths, d.DeploymentView)
	}
	paths = append(paths, d.SystemObjects...)
	return paths
}

// OutputBaseName derives the output file name for a template: the base
// name with the final extension stripped
func OutputBaseName(templatePath string) string {
	base := filepath.Base(templatePath)
	ext := filepath.Ext(base)
	if ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// WatchConfig represents file watching configuration. Patterns are
// extra glob patterns watched on top of the per-document paths; a
// change matching one re-renders every enabled document.
type WatchConfig struct {
	Patterns             []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	UseDefaultExclusions bool     `json:"useDefaultExclusions" yaml:"useDefaultExclusions"`
	ExcludeDirs          []string `json:"excludeDirs,omitempty" yaml:"excludeDirs,omitempty"`
	SettlingDelay        int      `json:"settlingDelay,omitempty" yaml:"settlingDelay,omitempty"`
}

// SchedulingConfig represents render scheduling configuration
type SchedulingConfig struct {
	Parallelization int `json:"parallelization" yaml:"parallelization"`
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file" yaml:"file"`
	Level LogLevel `json:"level" yaml:"level"`
}

// GhostwriterConfig represents the main configuration
type GhostwriterConfig struct {
	Version       string              `json:"version" yaml:"version"`
	Documents     []DocumentSpec      `json:"documents" yaml:"documents"`
	Watch         *WatchConfig        `json:"watch,omitempty" yaml:"watch,omitempty"`
	Scheduling    *SchedulingConfig   `json:"scheduling,omitempty" yaml:"scheduling,omitempty"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// EnabledDocuments returns the documents that participate in generation
func (c *GhostwriterConfig) EnabledDocuments() []DocumentSpec {
	var docs []DocumentSpec
	for _, d := range c.Documents {
		if d.IsEnabled() {
			docs = append(docs, d)
		}
	}
	return docs
}

// FindDocument looks a document up by name
func (c *GhostwriterConfig) FindDocument(name string) *DocumentSpec {
	for i := range c.Documents {
		if c.Documents[i].Name == name {
			return &c.Documents[i]
		}
	}
	return nil
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	File              string     `json:"file"`
	Timestamp         time.Time  `json:"timestamp"`
	AffectedDocuments []string   `json:"affectedDocuments"`
	ChangeType        ChangeType `json:"changeType"`
}

// RenderRequest represents one render job: a single template rendered
// against a document's context
type RenderRequest struct {
	ID              string          `json:"id"`
	Document        string          `json:"document"`
	TemplatePath    string          `json:"templatePath"`
	OutputPath      string          `json:"outputPath"`
	Postprocess     PostprocessKind `json:"postprocess,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	TriggeringFiles []string        `json:"triggeringFiles,omitempty"`
}

// RenderResult captures the outcome of one render job. Artifact is the
// postprocessed output path when a conversion ran, empty otherwise.
type RenderResult struct {
	Request    RenderRequest `json:"request"`
	Status     RenderStatus  `json:"status"`
	Error      string        `json:"error,omitempty"`
	Artifact   string        `json:"artifact,omitempty"`
	Duration   time.Duration `json:"duration"`
	CacheHit   bool          `json:"cacheHit,omitempty"`
	Assets     []string      `json:"assets,omitempty"`
	OutputHash string        `json:"outputHash,omitempty"`
}

// Failed reports whether the job ended in failure
func (r *RenderResult) Failed() bool { return r.Status == RenderStatusFailed }

// BatchSummary aggregates the results of one generation run
type BatchSummary struct {
	Document  string         `json:"document"`
	Results   []RenderResult `json:"results"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
}

// Succeeded counts jobs that produced output
func (b *BatchSummary) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == RenderStatusSucceeded || r.Status == RenderStatusSkipped {
			n++
		}
	}
	return n
}

// Failed counts jobs that ended in failure
func (b *BatchSummary) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == RenderStatusFailed {
			n++
		}
	}
	return n
}

// HasFailures reports whether any job in the batch failed
func (b *BatchSummary) HasFailures() bool { return b.Failed() > 0 }

// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/render"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

// Engine compiles template sources into executable templates
type Engine interface {
	Name() string
	Compile(name string, source []byte) (CompiledTemplate, error)
}

// CompiledTemplate renders against the shared template context
type CompiledTemplate interface {
	Execute(w io.Writer, ctx *render.TemplateContext, assets *render.AssetRecorder) error
}

// Converter postprocesses a rendered Markdown file into its final format
type Converter interface {
	Kind() types.PostprocessKind
	Convert(ctx context.Context, markdownPath string, outputDir string) (string, error)
}

// StateManager handles persistent render state for documents
type StateManager interface {
	InitializeState(document types.DocumentSpec) (*state.RenderState, error)
	ReadState(documentName string) (*state.RenderState, error)
	UpdateState(documentName string, updates map[string]interface{}) error
	UpdateRenderStatus(documentName string, status types.RenderStatus) error
	RecordRenderResult(documentName string, summary *types.BatchSummary) error
	RemoveState(documentName string) error
	IsLocked(documentName string) (bool, error)
	DiscoverStates() (map[string]*state.RenderState, error)
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Cleanup() error
}

// RenderNotifier delivers desktop notifications for render outcomes
type RenderNotifier interface {
	NotifyRenderStart(document string)
	NotifyBatchComplete(document string, outputs int, duration time.Duration)
	NotifyBatchFailure(document string, err error)
}

// ChangeCallback is called with a settled batch of file changes
type ChangeCallback func(changes []types.ChangeEvent)

// Watcher observes template and artifact paths for changes
type Watcher interface {
	Add(paths []string) error
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// ConfigManager handles configuration loading and validation
type ConfigManager interface {
	LoadConfig(path string) (*types.GhostwriterConfig, error)
	ValidateConfig(config *types.GhostwriterConfig) error
	WatchConfig(path string, callback func(*types.GhostwriterConfig)) error
	GetDefaultConfig() *types.GhostwriterConfig
}

// FileSystemUtils provides file system operations
type FileSystemUtils interface {
	Exists(path string) bool
	IsDirectory(path string) bool
	CreateDirectory(path string) error
	RemoveDirectory(path string) error
	CopyFile(src, dst string) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

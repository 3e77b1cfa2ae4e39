// Package mocks provides mock implementations of interfaces for testing
package mocks

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/render"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

// MockStateManager is a mock implementation of StateManager for testing
type MockStateManager struct {
	mu            sync.RWMutex
	states        map[string]*state.RenderState
	statusHistory map[string][]types.RenderStatus
	summaries     map[string]*types.BatchSummary
	initError     error
	updateError   error
	recordError   error
	cleanupError  error
	heartbeatCh   chan struct{}
}

// NewMockStateManager creates a new mock state manager
func NewMockStateManager() *MockStateManager {
	return &MockStateManager{
		states:        make(map[string]*state.RenderState),
		statusHistory: make(map[string][]types.RenderStatus),
		summaries:     make(map[string]*types.BatchSummary),
		heartbeatCh:   make(chan struct{}, 1),
	}
}

// InitializeState initializes state for a document
func (m *MockStateManager) InitializeState(document types.DocumentSpec) (*state.RenderState, error) {
	if m.initError != nil {
		return nil, m.initError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := &state.RenderState{
		SessionID: "mock-session",
		PID:       os.Getpid(),
		Document:  document.GetName(),
		Status:    types.RenderStatusIdle,
		Heartbeat: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	m.states[document.GetName()] = st
	return st, nil
}

// ReadState retrieves the state for a document
func (m *MockStateManager) ReadState(documentName string) (*state.RenderState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.states[documentName], nil
}

// UpdateState applies field updates to a document's state
func (m *MockStateManager) UpdateState(documentName string, updates map[string]interface{}) error {
	if m.updateError != nil {
		return m.updateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[documentName]
	if !ok {
		st = &state.RenderState{Document: documentName}
		m.states[documentName] = st
	}

	if status, ok := updates["status"].(types.RenderStatus); ok {
		st.Status = status
		m.statusHistory[documentName] = append(m.statusHistory[documentName], status)
	}
	if lastError, ok := updates["lastError"].(string); ok {
		st.LastError = lastError
	}
	if outputs, ok := updates["lastOutputs"].([]string); ok {
		st.LastOutputs = outputs
	}

	return nil
}

// UpdateRenderStatus updates the render status for a document
func (m *MockStateManager) UpdateRenderStatus(documentName string, status types.RenderStatus) error {
	if m.updateError != nil {
		return m.updateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[documentName]; ok {
		st.Status = status
	} else {
		m.states[documentName] = &state.RenderState{Document: documentName, Status: status}
	}
	m.statusHistory[documentName] = append(m.statusHistory[documentName], status)

	return nil
}

// RecordRenderResult records a batch outcome for a document
func (m *MockStateManager) RecordRenderResult(documentName string, summary *types.BatchSummary) error {
	if m.recordError != nil {
		return m.recordError
	}

	status := types.RenderStatusSucceeded
	if summary.HasFailures() {
		status = types.RenderStatusFailed
	}
	if err := m.UpdateRenderStatus(documentName, status); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[documentName] = summary

	return nil
}

// RemoveState removes the state for a document
func (m *MockStateManager) RemoveState(documentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, documentName)
	return nil
}

// IsLocked reports whether another session holds the document
func (m *MockStateManager) IsLocked(documentName string) (bool, error) {
	return false, nil
}

// DiscoverStates returns all known document states
func (m *MockStateManager) DiscoverStates() (map[string]*state.RenderState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*state.RenderState, len(m.states))
	for name, st := range m.states {
		states[name] = st
	}
	return states, nil
}

// StartHeartbeat starts the heartbeat mechanism
func (m *MockStateManager) StartHeartbeat(ctx context.Context) {
	select {
	case m.heartbeatCh <- struct{}{}:
	default:
	}
}

// StopHeartbeat stops the heartbeat mechanism
func (m *MockStateManager) StopHeartbeat() {
	// No-op for mock
}

// Cleanup performs cleanup operations
func (m *MockStateManager) Cleanup() error {
	return m.cleanupError
}

// StatusHistory returns every status a document passed through
func (m *MockStateManager) StatusHistory(documentName string) []types.RenderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]types.RenderStatus, len(m.statusHistory[documentName]))
	copy(history, m.statusHistory[documentName])
	return history
}

// LastSummary returns the most recently recorded batch summary
func (m *MockStateManager) LastSummary(documentName string) *types.BatchSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaries[documentName]
}

// SetInitError sets the error to return from InitializeState
func (m *MockStateManager) SetInitError(err error) {
	m.initError = err
}

// SetUpdateError sets the error to return from state updates
func (m *MockStateManager) SetUpdateError(err error) {
	m.updateError = err
}

// SetRecordError sets the error to return from RecordRenderResult
func (m *MockStateManager) SetRecordError(err error) {
	m.recordError = err
}

// SetCleanupError sets the error to return from Cleanup
func (m *MockStateManager) SetCleanupError(err error) {
	m.cleanupError = err
}

// MockEngine is a mock implementation of Engine for testing. By default a
// compiled template renders its own source verbatim; RenderFunc overrides
// that.
type MockEngine struct {
	mu           sync.RWMutex
	compileError error
	executeError error
	renderFunc   func(name string, source []byte, tctx *render.TemplateContext, assets *render.AssetRecorder) ([]byte, error)
	compiled     []string
	executed     []string
}

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Name identifies the engine
func (m *MockEngine) Name() string {
	return "mock"
}

// Compile records the compilation and returns a mock compiled template
func (m *MockEngine) Compile(name string, source []byte) (interfaces.CompiledTemplate, error) {
	m.mu.Lock()
	m.compiled = append(m.compiled, name)
	err := m.compileError
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &mockCompiledTemplate{engine: m, name: name, source: source}, nil
}

// SetCompileError sets the error to return from Compile
func (m *MockEngine) SetCompileError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compileError = err
}

// SetExecuteError sets the error to return from Execute
func (m *MockEngine) SetExecuteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executeError = err
}

// SetRenderFunc overrides what executed templates write
func (m *MockEngine) SetRenderFunc(fn func(name string, source []byte, tctx *render.TemplateContext, assets *render.AssetRecorder) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderFunc = fn
}

// Compiled returns the template names passed to Compile
func (m *MockEngine) Compiled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.compiled))
	copy(names, m.compiled)
	return names
}

// Executed returns the template names that were executed
func (m *MockEngine) Executed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.executed))
	copy(names, m.executed)
	return names
}

type mockCompiledTemplate struct {
	engine *MockEngine
	name   string
	source []byte
}

func (t *mockCompiledTemplate) Execute(w io.Writer, tctx *render.TemplateContext, assets *render.AssetRecorder) error {
	t.engine.mu.Lock()
	t.engine.executed = append(t.engine.executed, t.name)
	err := t.engine.executeError
	fn := t.engine.renderFunc
	t.engine.mu.Unlock()

	if err != nil {
		return err
	}

	out := t.source
	if fn != nil {
		out, err = fn(t.name, t.source, tctx, assets)
		if err != nil {
			return err
		}
	}

	_, err = w.Write(out)
	return err
}

// MockConverter is a mock implementation of Converter for testing. A
// successful conversion writes a small sibling artifact next to the
// Markdown file, like the real converters do.
type MockConverter struct {
	mu           sync.RWMutex
	kind         types.PostprocessKind
	convertError error
	converted    []string
}

// NewMockConverter creates a mock converter for the given kind
func NewMockConverter(kind types.PostprocessKind) *MockConverter {
	return &MockConverter{kind: kind}
}

// Kind identifies the postprocessing mode
func (m *MockConverter) Kind() types.PostprocessKind {
	return m.kind
}

// Convert records the call and writes a mock artifact
func (m *MockConverter) Convert(ctx context.Context, markdownPath string, outputDir string) (string, error) {
	m.mu.Lock()
	m.converted = append(m.converted, markdownPath)
	err := m.convertError
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if m.kind == types.PostprocessNone {
		return markdownPath, nil
	}

	ext := ".docx"
	if m.kind == types.PostprocessHTML {
		ext = ".html"
	}
	base := strings.TrimSuffix(filepath.Base(markdownPath), filepath.Ext(markdownPath))
	artifact := filepath.Join(outputDir, base+ext)

	if err := os.WriteFile(artifact, []byte("mock artifact\n"), 0644); err != nil {
		return "", err
	}
	return artifact, nil
}

// Converted returns the Markdown paths passed to Convert
func (m *MockConverter) Converted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, len(m.converted))
	copy(paths, m.converted)
	return paths
}

// SetConvertError sets the error to return from Convert
func (m *MockConverter) SetConvertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convertError = err
}

// MockNotifier is a mock implementation of RenderNotifier for testing
type MockNotifier struct {
	mu        sync.RWMutex
	starts    []string
	completes []string
	failures  []string
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyRenderStart records a render start notification
func (m *MockNotifier) NotifyRenderStart(document string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, document)
}

// NotifyBatchComplete records a batch completion notification
func (m *MockNotifier) NotifyBatchComplete(document string, outputs int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completes = append(m.completes, document)
}

// NotifyBatchFailure records a batch failure notification
func (m *MockNotifier) NotifyBatchFailure(document string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, document)
}

// Starts returns the documents that reported a render start
func (m *MockNotifier) Starts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	starts := make([]string, len(m.starts))
	copy(starts, m.starts)
	return starts
}

// Completes returns the documents that reported a completed batch
func (m *MockNotifier) Completes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	completes := make([]string, len(m.completes))
	copy(completes, m.completes)
	return completes
}

// Failures returns the documents that reported a failed batch
func (m *MockNotifier) Failures() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failures := make([]string, len(m.failures))
	copy(failures, m.failures)
	return failures
}

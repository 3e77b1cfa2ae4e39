// Package state provides persistent render state management for Ghostwriter
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

// stateFileSuffix is appended to the document name to form the state file name.
const stateFileSuffix = ".state.json"

// RenderState represents the persistent render state of a document
type RenderState struct {
	SessionID      string                 `json:"sessionId"`
	PID            int                    `json:"pid"`
	Document       string                 `json:"document"`
	Status         types.RenderStatus     `json:"status"`
	LastRenderTime time.Time              `json:"lastRenderTime"`
	RenderCount    int                    `json:"renderCount"`
	FailureCount   int                    `json:"failureCount"`
	LastError      string                 `json:"lastError,omitempty"`
	LastOutputs    []string               `json:"lastOutputs,omitempty"`
	RenderDuration time.Duration          `json:"renderDuration,omitempty"`
	Heartbeat      time.Time              `json:"heartbeat"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// StateManager handles persistent state files under .ghostwriter/state
type StateManager struct {
	stateDir       string
	logger         logger.Logger
	mu             sync.RWMutex
	states         map[string]*RenderState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewStateManager creates a new state manager rooted at the project directory
func NewStateManager(projectRoot string, log logger.Logger) *StateManager {
	stateDir := filepath.Join(projectRoot, ".ghostwriter", "state")

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &StateManager{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[string]*RenderState),
	}
}

// InitializeState creates or refreshes state for a document, preserving the
// render statistics of any previous session
func (sm *StateManager) InitializeState(document types.DocumentSpec) (*RenderState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := &RenderState{
		SessionID: uuid.New().String(),
		PID:       os.Getpid(),
		Document:  document.GetName(),
		Status:    types.RenderStatusIdle,
		Heartbeat: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	existingState, err := sm.loadStateFile(document.GetName())
	if err == nil && existingState != nil {
		state.RenderCount = existingState.RenderCount
		state.FailureCount = existingState.FailureCount
		state.LastRenderTime = existingState.LastRenderTime
		state.RenderDuration = existingState.RenderDuration
		state.LastOutputs = existingState.LastOutputs
	}

	if err := sm.saveStateFile(state); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	sm.states[document.GetName()] = state
	return state, nil
}

// ReadState reads the state for a document
func (sm *StateManager) ReadState(documentName string) (*RenderState, error) {
	sm.mu.RLock()

	if state, ok := sm.states[documentName]; ok {
		sm.mu.RUnlock()
		return state, nil
	}
	sm.mu.RUnlock()

	return sm.loadStateFile(documentName)
}

// UpdateState updates the state for a document
func (sm *StateManager) UpdateState(documentName string, updates map[string]interface{}) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, ok := sm.states[documentName]
	if !ok {
		var err error
		state, err = sm.loadStateFile(documentName)
		if err != nil {
			return fmt.Errorf("document state not found: %s", documentName)
		}
		sm.states[documentName] = state
	}

	for key, value := range updates {
		switch key {
		case "status":
			if status, ok := value.(types.RenderStatus); ok {
				state.Status = status
			}
		case "lastRenderTime":
			if t, ok := value.(time.Time); ok {
				state.LastRenderTime = t
			}
		case "renderCount":
			if count, ok := value.(int); ok {
				state.RenderCount = count
			}
		case "failureCount":
			if count, ok := value.(int); ok {
				state.FailureCount = count
			}
		case "lastError":
			if err, ok := value.(string); ok {
				state.LastError = err
			}
		case "renderDuration":
			if duration, ok := value.(time.Duration); ok {
				state.RenderDuration = duration
			}
		case "lastOutputs":
			if outputs, ok := value.([]string); ok {
				state.LastOutputs = outputs
			}
		default:
			if state.Metadata == nil {
				state.Metadata = make(map[string]interface{})
			}
			state.Metadata[key] = value
		}
	}

	state.Heartbeat = time.Now()

	return sm.saveStateFile(state)
}

// UpdateRenderStatus updates the render status for a document
func (sm *StateManager) UpdateRenderStatus(documentName string, status types.RenderStatus) error {
	updates := map[string]interface{}{
		"status": status,
	}

	if status == types.RenderStatusSucceeded || status == types.RenderStatusFailed {
		updates["lastRenderTime"] = time.Now()

		sm.mu.RLock()
		state, ok := sm.states[documentName]
		sm.mu.RUnlock()

		if ok {
			if status == types.RenderStatusSucceeded {
				updates["renderCount"] = state.RenderCount + 1
			} else {
				updates["failureCount"] = state.FailureCount + 1
			}
		}
	}

	return sm.UpdateState(documentName, updates)
}

// RecordRenderResult folds a finished batch into the document state
func (sm *StateManager) RecordRenderResult(documentName string, summary *types.BatchSummary) error {
	status := types.RenderStatusSucceeded
	lastError := ""
	if summary.HasFailures() {
		status = types.RenderStatusFailed
		for _, result := range summary.Results {
			if result.Failed() {
				lastError = result.Error
				break
			}
		}
	}

	var outputs []string
	for _, result := range summary.Results {
		if result.Status == types.RenderStatusSucceeded || result.Status == types.RenderStatusSkipped {
			outputs = append(outputs, result.Request.OutputPath)
			if result.Artifact != "" {
				outputs = append(outputs, result.Artifact)
			}
		}
	}

	updates := map[string]interface{}{
		"lastRenderTime": time.Now(),
		"renderDuration": summary.Duration,
		"lastOutputs":    outputs,
		"lastError":      lastError,
	}

	sm.mu.RLock()
	state, ok := sm.states[documentName]
	sm.mu.RUnlock()
	if ok {
		if status == types.RenderStatusSucceeded {
			updates["renderCount"] = state.RenderCount + 1
		} else {
			updates["failureCount"] = state.FailureCount + 1
		}
	}
	updates["status"] = status

	return sm.UpdateState(documentName, updates)
}

// RemoveState removes the state for a document
func (sm *StateManager) RemoveState(documentName string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, documentName)

	stateFile := sm.getStateFilePath(documentName)
	if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}

	return nil
}

// IsLocked checks if a document is being rendered by another live process
func (sm *StateManager) IsLocked(documentName string) (bool, error) {
	state, err := sm.loadStateFile(documentName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if state.PID == os.Getpid() {
		return false, nil
	}

	// A heartbeat older than 30 seconds means the owner is gone
	if time.Since(state.Heartbeat) > 30*time.Second {
		return false, nil
	}

	process, err := os.FindProcess(state.PID)
	if err != nil {
		return false, nil
	}

	// Signal 0 probes for existence without delivering anything
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}

	return true, nil
}

// DiscoverStates finds all existing state files
func (sm *StateManager) DiscoverStates() (map[string]*RenderState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	states := make(map[string]*RenderState)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), stateFileSuffix) {
			continue
		}

		documentName := strings.TrimSuffix(file.Name(), stateFileSuffix)
		state, err := sm.loadStateFile(documentName)
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("document", documentName),
				logger.WithField("error", err))
			continue
		}

		states[documentName] = state
	}

	return states, nil
}

// StartHeartbeat starts the heartbeat updater
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return
	}

	sm.heartbeatStop = make(chan struct{})
	sm.heartbeatTimer = time.NewTicker(10 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sm.heartbeatStop:
				return
			case <-sm.heartbeatTimer.C:
				sm.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}

	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup marks all session states as idle and releases them
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, state := range sm.states {
		state.Status = types.RenderStatusIdle
		state.PID = 0
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Warn("Failed to save final state",
				logger.WithField("document", state.Document),
				logger.WithField("error", err))
		}
	}

	return nil
}

// Private methods

func (sm *StateManager) getStateFilePath(documentName string) string {
	return filepath.Join(sm.stateDir, documentName+stateFileSuffix)
}

func (sm *StateManager) loadStateFile(documentName string) (*RenderState, error) {
	stateFile := sm.getStateFilePath(documentName)

	data, err := os.ReadFile(stateFile)
	if err != nil {
		return nil, err
	}

	var state RenderState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &state, nil
}

func (sm *StateManager) saveStateFile(state *RenderState) error {
	stateFile := sm.getStateFilePath(state.Document)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (sm *StateManager) updateHeartbeats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for _, state := range sm.states {
		state.Heartbeat = now
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Debug("Failed to update heartbeat",
				logger.WithField("document", state.Document),
				logger.WithField("error", err))
		}
	}
}

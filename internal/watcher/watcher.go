// Package watcher observes the files a project's documents depend on and
// reports settled batches of changes mapped to the documents they affect.
// Only indexed inputs and configured watch patterns are reported, so a
// render writing its own outputs never retriggers a batch. The
// configuration file itself is watched by the config reload manager, not
// here.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

const defaultSettling = 500 * time.Millisecond

type pendingChange struct {
	kind      types.ChangeType
	documents []string
}

// FileWatcher watches template and artifact paths with fsnotify. Events
// are collected over a settling window; each settled batch goes to the
// callback as one slice of change events.
type FileWatcher struct {
	projectRoot string
	log         logger.Logger
	callback    interfaces.ChangeCallback

	exclusions *utils.ExclusionMatcher
	patterns   *utils.PatternMatcher
	settling   time.Duration

	// path indexes, absolute path → affected document names
	templates map[string][]string
	artifacts map[string][]string
	allDocs   []string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	extra   map[string]bool
	pending map[string]pendingChange
	timer   *time.Timer
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watcher for the project's enabled documents. The callback
// receives each settled batch; it runs on the watcher's timer goroutine.
func New(projectRoot string, config *types.GhostwriterConfig, callback interfaces.ChangeCallback, log logger.Logger) (*FileWatcher, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		absRoot = projectRoot
	}

	var excludePatterns []string
	settling := defaultSettling
	var patterns *utils.PatternMatcher

	if config.Watch != nil {
		excludePatterns = append(excludePatterns, config.Watch.ExcludeDirs...)
		if config.Watch.UseDefaultExclusions {
			excludePatterns = append(excludePatterns, utils.GetDefaultExclusions()...)
		}
		if config.Watch.SettlingDelay > 0 {
			settling = time.Duration(config.Watch.SettlingDelay) * time.Millisecond
		}
		if len(config.Watch.Patterns) > 0 {
			patterns, err = utils.NewPatternMatcher(config.Watch.Patterns)
			if err != nil {
				return nil, fmt.Errorf("invalid watch pattern: %w", err)
			}
		}
	} else {
		excludePatterns = utils.GetDefaultExclusions()
	}

	exclusions, err := utils.NewExclusionMatcher(excludePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion pattern: %w", err)
	}

	fw := &FileWatcher{
		projectRoot: absRoot,
		log:         log,
		callback:    callback,
		exclusions:  exclusions,
		patterns:    patterns,
		settling:    settling,
		templates:   make(map[string][]string),
		artifacts:   make(map[string][]string),
		extra:       make(map[string]bool),
		pending:     make(map[string]pendingChange),
	}

	for _, doc := range config.EnabledDocuments() {
		fw.allDocs = append(fw.allDocs, doc.GetName())
		for _, path := range doc.Templates {
			key := fw.resolve(path)
			fw.templates[key] = appendDocument(fw.templates[key], doc.GetName())
		}
		for _, path := range doc.WatchPaths()[len(doc.Templates):] {
			key := fw.resolve(path)
			fw.artifacts[key] = appendDocument(fw.artifacts[key], doc.GetName())
		}
	}
	sort.Strings(fw.allDocs)

	return fw, nil
}

var _ interfaces.Watcher = (*FileWatcher)(nil)

// Add registers extra paths to watch. Changes to them count as artifact
// changes affecting every enabled document.
func (fw *FileWatcher) Add(paths []string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, path := range paths {
		key := fw.resolve(path)
		fw.extra[key] = true

		if fw.watcher != nil {
			if err := fw.watcher.Add(filepath.Dir(key)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", key, err)
			}
		}
	}
	return nil
}

// Start begins watching and returns once the watch set is registered.
// Events flow until the context is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.watcher = watcher

	dirs := fw.watchDirectories()
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			fw.log.Warn("Failed to watch directory",
				logger.WithField("dir", dir),
				logger.WithField("error", err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	fw.cancel = cancel
	fw.done = make(chan struct{})
	fw.running = true

	go fw.loop(runCtx)

	fw.log.Info("Started watching",
		logger.WithField("directories", len(dirs)),
		logger.WithField("documents", len(fw.allDocs)),
		logger.WithField("settling", fw.settling.String()))

	return nil
}

// Stop ends watching and waits for the event loop to drain
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
	fw.cancel()
	watcher := fw.watcher
	fw.watcher = nil
	done := fw.done
	fw.mu.Unlock()

	err := watcher.Close()
	<-done

	fw.log.Info("Stopped watching")
	return err
}

// IsRunning reports whether the watcher is active
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// loop drains fsnotify until the watcher is closed or the context ends
func (fw *FileWatcher) loop(ctx context.Context) {
	defer close(fw.done)

	fw.mu.Lock()
	watcher := fw.watcher
	fw.mu.Unlock()
	if watcher == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error("Watcher error", logger.WithField("error", err))
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := fw.resolve(event.Name)

	// New directories under the root join the watch set
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !fw.excluded(path, true) {
				fw.addDirectory(path)
			}
			return
		}
	}

	kind, documents, interesting := fw.classify(path)
	if !interesting {
		return
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.running {
		return
	}

	fw.pending[path] = pendingChange{kind: kind, documents: documents}

	// Restart the settling window on every event so a burst of writes
	// yields one batch
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.settling, fw.flush)
}

// classify decides whether a changed path matters and to which documents.
// Indexed inputs win over exclusions: an explicitly configured artifact is
// never filtered out.
func (fw *FileWatcher) classify(path string) (types.ChangeType, []string, bool) {
	if documents, ok := fw.templates[path]; ok {
		return types.ChangeTypeTemplate, documents, true
	}
	if documents, ok := fw.artifacts[path]; ok {
		return types.ChangeTypeArtifact, documents, true
	}

	fw.mu.Lock()
	isExtra := fw.extra[path]
	fw.mu.Unlock()
	if isExtra {
		return types.ChangeTypeArtifact, fw.allDocs, true
	}

	if fw.patterns != nil && !fw.excluded(path, false) {
		rel := fw.relSlash(path)
		if fw.patterns.Match(rel) || fw.patterns.Match(filepath.Base(path)) {
			return types.ChangeTypeArtifact, fw.allDocs, true
		}
	}

	return "", nil, false
}

// flush hands the settled batch to the callback
func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	if len(fw.pending) == 0 || !fw.running {
		fw.mu.Unlock()
		return
	}
	pending := fw.pending
	fw.pending = make(map[string]pendingChange)
	fw.timer = nil
	fw.mu.Unlock()

	now := time.Now()
	batch := make([]types.ChangeEvent, 0, len(pending))
	for path, change := range pending {
		batch = append(batch, types.ChangeEvent{
			File:              path,
			Timestamp:         now,
			ChangeType:        change.kind,
			AffectedDocuments: change.documents,
		})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].File < batch[j].File })

	fw.log.Info("File changes settled",
		logger.WithField("changes", len(batch)))

	fw.callback(batch)
}

// watchDirectories returns the project tree minus exclusions, plus the
// parent directories of every indexed path (artifacts may live outside
// the project root)
func (fw *FileWatcher) watchDirectories() []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	_ = filepath.Walk(fw.projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != fw.projectRoot && fw.excluded(path, true) {
			return filepath.SkipDir
		}
		add(path)
		return nil
	})

	for path := range fw.templates {
		add(filepath.Dir(path))
	}
	for path := range fw.artifacts {
		add(filepath.Dir(path))
	}
	for path := range fw.extra {
		add(filepath.Dir(path))
	}

	sort.Strings(dirs)
	return dirs
}

// addDirectory registers a newly created directory tree
func (fw *FileWatcher) addDirectory(dir string) {
	fw.mu.Lock()
	watcher := fw.watcher
	fw.mu.Unlock()
	if watcher == nil {
		return
	}

	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if fw.excluded(path, true) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			fw.log.Warn("Failed to watch new directory",
				logger.WithField("dir", path),
				logger.WithField("error", err))
		}
		return nil
	})
}

func (fw *FileWatcher) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(fw.projectRoot, path)
}

func (fw *FileWatcher) relSlash(path string) string {
	rel, err := filepath.Rel(fw.projectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWatcher) excluded(path string, isDir bool) bool {
	rel := fw.relSlash(path)
	if isDir {
		rel += "/"
	}
	return fw.exclusions.IsExcluded(rel)
}

func appendDocument(documents []string, name string) []string {
	for _, existing := range documents {
		if existing == name {
			return documents
		}
	}
	documents = append(documents, name)
	sort.Strings(documents)
	return documents
}

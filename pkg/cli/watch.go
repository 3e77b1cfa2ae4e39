package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/internal/watcher"
	"github.com/ghostwriter/ghostwriter/pkg/config"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

func newWatchCmd() *cobra.Command {
	var documentName string

	cmd := &cobra.Command{
		Use:   "watch [document]",
		Short: "Watch artifacts and regenerate documents on change",
		Long: `Start Ghostwriter in watch mode. It monitors templates and design
artifacts and regenerates the affected documents when changes settle.

If a document name is provided, only that document is watched.
Otherwise, all enabled documents are watched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				documentName = args[0]
			}

			return runWatch(documentName)
		},
	}

	return cmd
}

func runWatch(documentName string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath, newLogger())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if documentName != "" && cfg.FindDocument(documentName) == nil {
		return fmt.Errorf("document not found: %s", documentName)
	}

	log := watchLogger(cfg)

	sm := state.NewStateManager(projectRoot, log)
	sm.StartHeartbeat(ctx)
	defer sm.StopHeartbeat()

	session := &watchSession{
		cfg:      cfg,
		log:      log,
		document: documentName,
	}

	printInfo(fmt.Sprintf("Starting Ghostwriter v%s", version))
	if documentName != "" {
		printInfo(fmt.Sprintf("Watching document: %s", documentName))
	} else {
		printInfo("Watching all enabled documents")
	}

	// Render everything once so outputs start in sync with the artifacts
	session.renderDocuments(ctx, session.watchedDocuments())

	if err := session.startWatcher(ctx); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	// Configuration edits rebuild the watch set on the fly
	cfgManager := config.NewManager(log)
	if err := cfgManager.WatchConfig(configPath, func(newCfg *types.GhostwriterConfig) {
		printInfo("Configuration reloaded, rebuilding watch set")
		session.swapConfig(ctx, newCfg)
	}); err != nil {
		log.Warn("Configuration hot reload unavailable", logger.WithField("error", err))
	}
	defer cfgManager.StopWatching()

	// Handle shutdown signals with context cancellation
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	printInfo(fmt.Sprintf("Received signal: %s", sig))

	cancel()

	printInfo("Shutting down gracefully...")
	session.stop()

	if err := sm.Cleanup(); err != nil {
		printWarning(fmt.Sprintf("Cleanup error: %v", err))
	}

	printSuccess("Ghostwriter stopped gracefully")
	return nil
}

// watchLogger builds the watch-mode logger. Watch sessions log to a file so
// the logs command has something to show; the --log-file flag wins, then the
// configured file, then .ghostwriter/logs/ghostwriter.log.
func watchLogger(cfg *types.GhostwriterConfig) logger.Logger {
	file := logFile
	level := verbosity
	if cfg.Logging != nil {
		if file == "" && cfg.Logging.File != "" {
			file = resolvePath(cfg.Logging.File)
		}
		if level == "info" && cfg.Logging.Level != "" {
			level = string(cfg.Logging.Level)
		}
	}
	if file == "" {
		file = defaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return logger.CreateLogger("", level)
	}
	return logger.CreateLogger(file, level)
}

func defaultLogFile() string {
	return filepath.Join(projectRoot, ".ghostwriter", "logs", "ghostwriter.log")
}

// watchSession holds the moving parts of one watch run. Render batches are
// serialized; the watcher is rebuilt when the configuration changes.
type watchSession struct {
	mu       sync.Mutex
	cfg      *types.GhostwriterConfig
	watcher  *watcher.FileWatcher
	log      logger.Logger
	document string

	renderMu sync.Mutex
}

// watchedDocuments returns the documents this session regenerates
func (s *watchSession) watchedDocuments() []types.DocumentSpec {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if s.document != "" {
		if doc := cfg.FindDocument(s.document); doc != nil {
			return []types.DocumentSpec{*doc}
		}
		return nil
	}
	return cfg.EnabledDocuments()
}

// renderDocuments regenerates the given documents one after another. The
// context is rebuilt per document so changed artifacts are re-read.
func (s *watchSession) renderDocuments(ctx context.Context, docs []types.DocumentSpec) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	parallelization := 0
	if cfg.Scheduling != nil {
		parallelization = cfg.Scheduling.Parallelization
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return
		}

		printInfo(fmt.Sprintf("Regenerating document: %s", doc.Name))
		summary, err := renderDocument(ctx, s.log, cfg, doc, nil, parallelization)
		if err != nil {
			printError(fmt.Sprintf("Generation failed for %s: %v", doc.Name, err))
			continue
		}
		reportSummary(summary)
	}
}

// onChanges maps a settled change batch back to documents and regenerates
// them
func (s *watchSession) onChanges(ctx context.Context, changes []types.ChangeEvent) {
	affected := make(map[string]bool)
	for _, change := range changes {
		s.log.Debug("Change detected",
			logger.WithField("file", change.File),
			logger.WithField("type", string(change.ChangeType)))
		for _, doc := range change.AffectedDocuments {
			affected[doc] = true
		}
	}

	var docs []types.DocumentSpec
	for _, doc := range s.watchedDocuments() {
		if affected[doc.Name] {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return
	}

	s.renderDocuments(ctx, docs)
}

func (s *watchSession) startWatcher(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.scopedConfig(s.cfg)
	s.mu.Unlock()

	fw, err := watcher.New(projectRoot, cfg, func(changes []types.ChangeEvent) {
		s.onChanges(ctx, changes)
	}, s.log)
	if err != nil {
		return err
	}

	if err := fw.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.watcher = fw
	s.mu.Unlock()
	return nil
}

// scopedConfig narrows the configuration to the watched document, if one
// was named
func (s *watchSession) scopedConfig(cfg *types.GhostwriterConfig) *types.GhostwriterConfig {
	if s.document == "" {
		return cfg
	}
	doc := cfg.FindDocument(s.document)
	if doc == nil {
		return cfg
	}
	scoped := *cfg
	scoped.Documents = []types.DocumentSpec{*doc}
	return &scoped
}

// swapConfig installs a reloaded configuration and rebuilds the watcher
// around it
func (s *watchSession) swapConfig(ctx context.Context, cfg *types.GhostwriterConfig) {
	s.mu.Lock()
	s.cfg = cfg
	old := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if ctx.Err() != nil {
		return
	}
	if err := s.startWatcher(ctx); err != nil {
		printError(fmt.Sprintf("Failed to restart watching: %v", err))
	}
}

func (s *watchSession) stop() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

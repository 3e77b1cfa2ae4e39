package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghostwriter/ghostwriter/internal/orchestrator"
	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/config"
	"github.com/ghostwriter/ghostwriter/pkg/engine"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/notifier"
	"github.com/ghostwriter/ghostwriter/pkg/render"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

func newGenerateCmd() *cobra.Command {
	var (
		templates       []string
		interfaceView   string
		deploymentView  string
		systemObjects   []string
		values          []string
		output          string
		moduleCache     string
		postprocess     string
		csvDelimiter    string
		parallelization int
	)

	cmd := &cobra.Command{
		Use:   "generate [document]",
		Short: "Render documents from templates and artifacts",
		Long: `Render Markdown documents from templates and design artifacts.

With --template flags, Ghostwriter renders an ad-hoc document from the given
templates and artifacts. Without them, it renders the named document from
ghostwriter.config.json, or every enabled document when no name is given.

Each template is an independent render job: one failing template never stops
its siblings from producing output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentName := ""
			if len(args) > 0 {
				documentName = args[0]
			}

			overrides, err := render.ParseOverrides(values)
			if err != nil {
				return err
			}

			opts := generateOptions{
				document:        documentName,
				overrides:       overrides,
				parallelization: parallelization,
			}

			if len(templates) > 0 {
				if output == "" {
					return fmt.Errorf("ad-hoc generation requires --output")
				}
				kind, err := types.ParsePostprocessKind(postprocess)
				if err != nil {
					return err
				}
				name := documentName
				if name == "" {
					name = "document"
				}
				doc := types.DocumentSpec{
					Name:           name,
					Templates:      templates,
					InterfaceView:  interfaceView,
					DeploymentView: deploymentView,
					SystemObjects:  systemObjects,
					OutputDir:      output,
					ModuleCacheDir: moduleCache,
					Postprocess:    kind,
					CSVDelimiter:   csvDelimiter,
				}
				return runGenerateAdhoc(cmd.Context(), doc, opts)
			}

			// Config-driven: only flags the user actually set override the
			// document's own settings
			if cmd.Flags().Changed("output") {
				opts.output = output
			}
			if cmd.Flags().Changed("module-cache") {
				opts.moduleCache = &moduleCache
			}
			if cmd.Flags().Changed("postprocess") {
				kind, err := types.ParsePostprocessKind(postprocess)
				if err != nil {
					return err
				}
				opts.postprocess = &kind
			}
			if cmd.Flags().Changed("csv-delimiter") {
				opts.csvDelimiter = csvDelimiter
			}
			return runGenerateFromConfig(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&templates, "template", "t", nil, "template file to render (repeatable, order preserved)")
	cmd.Flags().StringVarP(&interfaceView, "interface-view", "i", "", "Interface View XML file")
	cmd.Flags().StringVarP(&deploymentView, "deployment-view", "d", "", "Deployment View XML file")
	cmd.Flags().StringArrayVarP(&systemObjects, "system-objects", "s", nil, "system object CSV file (repeatable, order preserved)")
	cmd.Flags().StringArrayVarP(&values, "value", "v", nil, "context value as name=value (repeatable, last wins)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (created if absent)")
	cmd.Flags().StringVar(&moduleCache, "module-cache", "", "module cache directory (empty disables caching)")
	cmd.Flags().StringVarP(&postprocess, "postprocess", "p", "", "postprocessing mode (none, to-docx, to-html)")
	cmd.Flags().StringVar(&csvDelimiter, "csv-delimiter", ";", "delimiter for system object CSV files")
	cmd.Flags().IntVar(&parallelization, "parallelization", 0, "concurrent render jobs (default 2)")

	return cmd
}

type generateOptions struct {
	document        string
	overrides       map[string]string
	output          string
	moduleCache     *string
	postprocess     *types.PostprocessKind
	csvDelimiter    string
	parallelization int
}

func runGenerateAdhoc(ctx context.Context, doc types.DocumentSpec, opts generateOptions) error {
	log := newLogger()

	summary, err := renderDocument(ctx, log, nil, doc, opts.overrides, opts.parallelization)
	if err != nil {
		printError(fmt.Sprintf("Generation failed: %v", err))
		return err
	}

	reportSummary(summary)
	if summary.HasFailures() {
		return fmt.Errorf("%d of %d render jobs failed", summary.Failed(), len(summary.Results))
	}
	return nil
}

func runGenerateFromConfig(ctx context.Context, opts generateOptions) error {
	log := newLogger()

	cfg, err := loadConfig(getConfigPath(), log)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var docs []types.DocumentSpec
	if opts.document != "" {
		doc := cfg.FindDocument(opts.document)
		if doc == nil {
			return fmt.Errorf("document not found: %s", opts.document)
		}
		docs = []types.DocumentSpec{*doc}
	} else {
		docs = cfg.EnabledDocuments()
		if len(docs) == 0 {
			printWarning("No enabled documents in configuration")
			return nil
		}
	}

	parallelization := opts.parallelization
	if parallelization <= 0 && cfg.Scheduling != nil {
		parallelization = cfg.Scheduling.Parallelization
	}

	failed := 0
	for _, doc := range docs {
		applyOverrides(&doc, opts)

		printInfo(fmt.Sprintf("Generating document: %s", doc.Name))
		summary, err := renderDocument(ctx, log, cfg, doc, opts.overrides, parallelization)
		if err != nil {
			printError(fmt.Sprintf("Generation failed for %s: %v", doc.Name, err))
			failed++
			continue
		}
		reportSummary(summary)
		if summary.HasFailures() {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) had failures", failed)
	}
	return nil
}

// applyOverrides layers explicitly set generate flags over a configured
// document
func applyOverrides(doc *types.DocumentSpec, opts generateOptions) {
	if opts.output != "" {
		doc.OutputDir = opts.output
	}
	if opts.moduleCache != nil {
		doc.ModuleCacheDir = *opts.moduleCache
	}
	if opts.postprocess != nil {
		doc.Postprocess = *opts.postprocess
	}
	if opts.csvDelimiter != "" {
		doc.CSVDelimiter = opts.csvDelimiter
	}
}

// renderDocument builds the template context for one document and runs its
// render batch. Context construction errors abort before any job starts.
func renderDocument(ctx context.Context, log logger.Logger, cfg *types.GhostwriterConfig, doc types.DocumentSpec, overrides map[string]string, parallelization int) (*types.BatchSummary, error) {
	outputDir := resolvePath(doc.OutputDir)

	builder := render.NewContextBuilder(log).
		WithOutputDirectory(outputDir).
		WithCSVDelimiter(doc.GetCSVDelimiter()).
		WithValues(doc.Values).
		WithValues(overrides)
	if doc.InterfaceView != "" {
		builder = builder.WithInterfaceView(resolvePath(doc.InterfaceView))
	}
	if doc.DeploymentView != "" {
		builder = builder.WithDeploymentView(resolvePath(doc.DeploymentView))
	}
	for _, so := range doc.SystemObjects {
		builder = builder.WithSystemObjects(resolvePath(so))
	}

	tctx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build template context: %w", err)
	}

	eng := engine.NewGoTemplateEngine(log)
	cache := engine.NewCache(resolvePath(doc.ModuleCacheDir), log)

	sm := state.NewStateManager(projectRoot, log)
	if _, err := sm.InitializeState(doc); err != nil {
		log.Warn("Failed to initialize render state", logger.WithField("error", err))
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		Engine:       eng,
		Cache:        cache,
		StateManager: sm,
		Notifier:     notifierFromConfig(cfg, log),
	}, parallelization, log)

	templates := make([]string, len(doc.Templates))
	for i, t := range doc.Templates {
		templates[i] = resolvePath(t)
	}

	jobs, err := orch.PlanJobs(doc.Name, templates, outputDir, doc.GetPostprocess())
	if err != nil {
		return nil, err
	}

	return orch.Render(ctx, tctx, jobs), nil
}

// reportSummary prints one line per render job
func reportSummary(summary *types.BatchSummary) {
	for _, r := range summary.Results {
		switch r.Status {
		case types.RenderStatusSkipped:
			printInfo(fmt.Sprintf("Unchanged %s (cache hit)", r.Request.OutputPath))
			if r.Artifact != "" {
				printInfo(fmt.Sprintf("Postprocessed to %s", r.Artifact))
			}
		case types.RenderStatusSucceeded:
			printSuccess(fmt.Sprintf("Rendered %s (%.2fs)", r.Request.OutputPath, r.Duration.Seconds()))
			if r.Artifact != "" {
				printSuccess(fmt.Sprintf("Postprocessed to %s", r.Artifact))
			}
			if r.Error != "" {
				printWarning(fmt.Sprintf("Warning for %s: %s", r.Request.OutputPath, r.Error))
			}
		case types.RenderStatusFailed:
			printError(fmt.Sprintf("Failed %s: %s", r.Request.TemplatePath, r.Error))
		}
	}
}

func newLogger() logger.Logger {
	return logger.CreateLogger(logFile, verbosity)
}

func loadConfig(path string, log logger.Logger) (*types.GhostwriterConfig, error) {
	return config.NewManager(log).LoadConfig(path)
}

// notifierFromConfig builds the desktop notifier; with no config or the
// feature disabled it stays silent
func notifierFromConfig(cfg *types.GhostwriterConfig, log logger.Logger) *notifier.RenderNotifier {
	nc := notifier.Config{}
	if cfg != nil && cfg.Notifications != nil {
		enabled := cfg.Notifications.Enabled == nil || *cfg.Notifications.Enabled
		nc = notifier.Config{
			Enabled:      enabled,
			SuccessSound: cfg.Notifications.SuccessSound,
			FailureSound: cfg.Notifications.FailureSound,
		}
	}
	return notifier.New(nc, log)
}

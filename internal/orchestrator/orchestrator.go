// Package orchestrator plans and runs render batches. A batch renders every
// template of one document against a single immutable context; jobs run
// concurrently and independently, so one failing template never blocks or
// rolls back its siblings.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gwcontext "github.com/ghostwriter/ghostwriter/pkg/context"
	"github.com/ghostwriter/ghostwriter/pkg/engine"
	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/postprocess"
	"github.com/ghostwriter/ghostwriter/pkg/render"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

// Dependencies contains the orchestrator's injectable collaborators.
// Engine, Cache and StateManager are required. Notifier may be nil for
// silent operation. A non-nil Converter overrides the per-job postprocessor
// lookup, which tests use to observe or fail conversions.
type Dependencies struct {
	Engine       interfaces.Engine
	Cache        *engine.Cache
	StateManager interfaces.StateManager
	Notifier     interfaces.RenderNotifier
	Converter    interfaces.Converter
}

// Orchestrator renders documents
type Orchestrator struct {
	deps            Dependencies
	logger          logger.Logger
	parallelization int
	fs              interfaces.FileSystemUtils
}

// New creates a new Orchestrator. Parallelization values below one fall
// back to the default of two concurrent jobs.
func New(deps Dependencies, parallelization int, log logger.Logger) *Orchestrator {
	if deps.Engine == nil {
		panic("Engine dependency is required")
	}
	if deps.Cache == nil {
		panic("Cache dependency is required")
	}
	if deps.StateManager == nil {
		panic("StateManager dependency is required")
	}

	if parallelization <= 0 {
		parallelization = 2
	}

	return &Orchestrator{
		deps:            deps,
		logger:          log,
		parallelization: parallelization,
		fs:              utils.NewFileSystemUtils(),
	}
}

// PlanJobs expands a document's template list into one render job per
// template. The output name derives from the template base name, so two
// templates that would collapse onto the same output file are rejected
// before anything renders.
func (o *Orchestrator) PlanJobs(document string, templates []string, outputDir string, kind types.PostprocessKind) ([]*types.RenderRequest, error) {
	jobs := make([]*types.RenderRequest, 0, len(templates))
	outputs := make(map[string]string, len(templates))

	for _, template := range templates {
		base := types.OutputBaseName(template)
		if prev, ok := outputs[base]; ok {
			return nil, fmt.Errorf("%w: templates %s and %s both produce output %s",
				render.ErrDuplicateOutput, prev, template, base)
		}
		outputs[base] = template

		jobs = append(jobs, &types.RenderRequest{
			ID:           gwcontext.GenerateJobID(),
			Document:     document,
			TemplatePath: template,
			OutputPath:   filepath.Join(outputDir, base),
			Postprocess:  kind,
			Timestamp:    time.Now(),
		})
	}

	return jobs, nil
}

// Render executes a batch of jobs against one shared context and returns
// the per-job outcomes. Jobs run concurrently up to the configured
// parallelization. Output that a job already wrote stays on disk no matter
// how the job or its siblings end.
func (o *Orchestrator) Render(ctx context.Context, tctx *render.TemplateContext, jobs []*types.RenderRequest) *types.BatchSummary {
	summary := &types.BatchSummary{StartedAt: time.Now()}
	if len(jobs) == 0 {
		summary.Duration = time.Since(summary.StartedAt)
		return summary
	}

	document := jobs[0].Document
	summary.Document = document

	batchCtx := gwcontext.WithBatchID(gwcontext.WithDocument(ctx, document), "")
	log := logger.WithContext(batchCtx, o.logger)

	log.Info("Starting render batch",
		logger.WithField("document", document),
		logger.WithField("jobs", len(jobs)))

	if o.deps.Notifier != nil {
		o.deps.Notifier.NotifyRenderStart(document)
	}
	if err := o.deps.StateManager.UpdateRenderStatus(document, types.RenderStatusRendering); err != nil {
		log.Warn("Failed to update render status", logger.WithField("error", err))
	}

	// One fingerprint covers the whole batch; the context never changes
	// between jobs. Without a fingerprint the cache cannot tell contexts
	// apart, so it sits out this batch.
	fingerprint := ""
	useCache := false
	if fp, err := tctx.Fingerprint(); err != nil {
		log.Warn("Context fingerprint unavailable, cache disabled for this batch",
			logger.WithField("error", err))
	} else {
		fingerprint = fp
		useCache = true
	}

	results := make([]types.RenderResult, len(jobs))

	group, groupCtx := NewSafeGroup(batchCtx, o.logger)
	group.SetLimit(o.parallelization)

	for i, job := range jobs {
		group.Go(func() error {
			results[i] = o.renderJob(groupCtx, tctx, job, fingerprint, useCache)
			return nil
		})
	}

	// Job outcomes travel through the results slice, so Wait only returns
	// an error for a recovered panic. Attribute it to the jobs that never
	// recorded a result.
	if err := group.Wait(); err != nil {
		for i := range results {
			if results[i].Status == "" {
				results[i] = types.RenderResult{
					Request: *jobs[i],
					Status:  types.RenderStatusFailed,
					Error:   err.Error(),
				}
			}
		}
	}

	summary.Results = results
	summary.Duration = time.Since(summary.StartedAt)

	o.finishBatch(log, document, summary)

	return summary
}

// renderJob runs one template end to end: read, render, write, postprocess.
func (o *Orchestrator) renderJob(ctx context.Context, tctx *render.TemplateContext, job *types.RenderRequest, fingerprint string, useCache bool) types.RenderResult {
	ctx = gwcontext.WithJobID(ctx, job.ID)
	log := logger.WithContext(ctx, o.logger)

	start := time.Now()
	result := types.RenderResult{Request: *job}

	fail := func(err error) types.RenderResult {
		result.Status = types.RenderStatusFailed
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.Error("Render job failed",
			logger.WithField("template", job.TemplatePath),
			logger.WithField("error", err))
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("render cancelled: %w", err))
	}

	source, err := os.ReadFile(job.TemplatePath)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %v", engine.ErrTemplateFailed, job.TemplatePath, err))
	}
	templateHash := utils.HashBytes(source)

	if useCache {
		if skip, cached := o.deps.Cache.CanSkip(job.TemplatePath, templateHash, fingerprint, job.OutputPath); skip {
			log.Debug("Output up to date, skipping render",
				logger.WithField("template", job.TemplatePath),
				logger.WithField("output", job.OutputPath))

			result.Status = types.RenderStatusSkipped
			result.CacheHit = true
			result.Assets = cached
			if hash, err := utils.HashFile(job.OutputPath); err == nil {
				result.OutputHash = hash
			}
			return o.postprocessJob(ctx, log, job, result, start)
		}
	}

	template, err := o.deps.Cache.Compile(o.deps.Engine, filepath.Base(job.TemplatePath), source)
	if err != nil {
		return fail(err)
	}

	recorder := render.NewAssetRecorder()
	var buf bytes.Buffer
	if err := template.Execute(&buf, tctx, recorder); err != nil {
		return fail(err)
	}

	// Image references in the rendered output count as assets even when
	// the template never called the asset function
	for _, ref := range postprocess.ScanImageRefs(buf.Bytes()) {
		recorder.Record(ref)
	}

	if err := o.fs.WriteFile(job.OutputPath, buf.Bytes()); err != nil {
		return fail(fmt.Errorf("failed to write output %s: %v", job.OutputPath, err))
	}

	result.Status = types.RenderStatusSucceeded
	result.Assets = recorder.Assets()
	result.OutputHash = utils.HashBytes(buf.Bytes())

	if useCache {
		o.deps.Cache.Store(job.TemplatePath, templateHash, fingerprint, job.OutputPath, result.OutputHash, result.Assets)
	}

	log.Info("Rendered template",
		logger.WithField("template", job.TemplatePath),
		logger.WithField("output", job.OutputPath))

	return o.postprocessJob(ctx, log, job, result, start)
}

// postprocessJob resolves the job's asset references and runs the
// configured converter. The rendered Markdown stays on disk whatever
// happens here: an unresolvable asset degrades the job with a reported
// error, a failed conversion fails the job outright.
func (o *Orchestrator) postprocessJob(ctx context.Context, log logger.Logger, job *types.RenderRequest, result types.RenderResult, start time.Time) types.RenderResult {
	outputDir := filepath.Dir(job.OutputPath)

	if _, err := postprocess.ResolveAssets(result.Assets, outputDir, log); err != nil {
		result.Error = err.Error()
		log.Warn("Asset resolution incomplete",
			logger.WithField("template", job.TemplatePath),
			logger.WithField("error", err))
	}

	converter := o.deps.Converter
	if converter == nil {
		c, err := postprocess.New(job.Postprocess, o.logger)
		if err != nil {
			result.Status = types.RenderStatusFailed
			result.Error = err.Error()
			result.Duration = time.Since(start)
			return result
		}
		converter = c
	}

	artifact, err := converter.Convert(ctx, job.OutputPath, outputDir)
	if err != nil {
		result.Status = types.RenderStatusFailed
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.Error("Postprocessing failed, Markdown output retained",
			logger.WithField("output", job.OutputPath),
			logger.WithField("error", err))
		return result
	}
	if artifact != "" && artifact != job.OutputPath {
		result.Artifact = artifact
	}

	result.Duration = time.Since(start)
	return result
}

// finishBatch records the batch outcome and notifies
func (o *Orchestrator) finishBatch(log logger.Logger, document string, summary *types.BatchSummary) {
	if err := o.deps.StateManager.RecordRenderResult(document, summary); err != nil {
		log.Warn("Failed to record render result", logger.WithField("error", err))
	}

	if summary.HasFailures() {
		log.Error("Render batch finished with failures",
			logger.WithField("document", document),
			logger.WithField("failed", summary.Failed()),
			logger.WithField("succeeded", summary.Succeeded()))
		if o.deps.Notifier != nil {
			o.deps.Notifier.NotifyBatchFailure(document,
				fmt.Errorf("%d of %d jobs failed", summary.Failed(), len(summary.Results)))
		}
		return
	}

	log.Success(fmt.Sprintf("Render batch complete: %d outputs in %s",
		summary.Succeeded(), utils.FormatDuration(summary.Duration)))
	if o.deps.Notifier != nil {
		o.deps.Notifier.NotifyBatchComplete(document, summary.Succeeded(), summary.Duration)
	}
}

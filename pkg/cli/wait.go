package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

func newWaitCmd() *cobra.Command {
	var timeout int
	var documents []string
	var status string
	var pollInterval int

	cmd := &cobra.Command{
		Use:   "wait [document]",
		Short: "Wait for documents to reach a render status",
		Long: `Wait for one or more documents to reach a specific render status.
This command is useful in CI/CD pipelines to wait for a watch session to
finish regenerating documentation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentName := ""
			if len(args) > 0 {
				documentName = args[0]
			}

			return runWait(documentName, documents, status, timeout, pollInterval)
		},
	}

	cmd.Flags().IntVarP(&timeout, "timeout", "t", 300, "timeout in seconds")
	cmd.Flags().StringSliceVar(&documents, "documents", nil, "specific documents to wait for (comma-separated)")
	cmd.Flags().StringVarP(&status, "status", "s", "succeeded", "status to wait for (succeeded, failed, idle)")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 2, "polling interval in seconds")

	return cmd
}

// WaitResult represents the outcome of waiting for one document
type WaitResult struct {
	Document string
	Status   types.RenderStatus
	Duration time.Duration
	Success  bool
	TimedOut bool
}

func runWait(documentName string, documents []string, status string, timeoutSec int, pollIntervalSec int) error {
	targetStatus := types.RenderStatus(status)
	validStatuses := []types.RenderStatus{
		types.RenderStatusIdle,
		types.RenderStatusQueued,
		types.RenderStatusRendering,
		types.RenderStatusSucceeded,
		types.RenderStatusFailed,
		types.RenderStatusSkipped,
	}

	valid := false
	for _, validStatus := range validStatuses {
		if targetStatus == validStatus {
			valid = true
			break
		}
	}

	if !valid {
		return fmt.Errorf("invalid status '%s'. Valid statuses: idle, queued, rendering, succeeded, failed, skipped", status)
	}

	log := newLogger()

	// Determine which documents to wait for
	var names []string
	if documentName != "" {
		names = []string{documentName}
	} else if len(documents) > 0 {
		names = documents
	} else {
		cfg, err := loadConfig(getConfigPath(), log)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		for _, doc := range cfg.Documents {
			names = append(names, doc.Name)
		}

		if len(names) == 0 {
			return fmt.Errorf("no documents found to wait for")
		}
	}

	// Misspelled names would otherwise spin until the timeout
	if cfg, err := loadConfig(getConfigPath(), log); err == nil {
		for _, name := range names {
			if cfg.FindDocument(name) == nil {
				return fmt.Errorf("document not found: %s", name)
			}
		}
	}

	printInfo(fmt.Sprintf("Waiting for %d document(s) to reach status '%s'", len(names), status))
	if timeoutSec > 0 {
		printInfo(fmt.Sprintf("Timeout: %d seconds", timeoutSec))
	}

	sm := state.NewStateManager(projectRoot, log)

	ctx := context.Background()
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	results := waitForDocuments(ctx, sm, names, targetStatus, time.Duration(pollIntervalSec)*time.Second)

	return displayWaitResults(results)
}

// waitForDocuments polls render states until every document reaches the
// target status or the context expires. A missing state file keeps the
// document waiting: the watch session may simply not have written it yet.
func waitForDocuments(ctx context.Context, sm *state.StateManager, names []string, targetStatus types.RenderStatus, pollInterval time.Duration) []WaitResult {
	startTime := time.Now()
	results := make([]WaitResult, len(names))

	for i, name := range names {
		results[i] = WaitResult{
			Document: name,
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	completed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			for i := range results {
				if !completed[results[i].Document] {
					results[i].TimedOut = true
					results[i].Duration = time.Since(startTime)
				}
			}
			return results

		case <-ticker.C:
			allCompleted := true

			for i, name := range names {
				if completed[name] {
					continue
				}

				currentState, err := sm.ReadState(name)
				if err != nil {
					allCompleted = false
					continue
				}

				results[i].Status = currentState.Status

				if currentState.Status == targetStatus {
					results[i].Success = true
					results[i].Duration = time.Since(startTime)
					completed[name] = true
					printSuccess(fmt.Sprintf("Document '%s' reached status '%s'", name, targetStatus))
				} else {
					allCompleted = false
				}
			}

			if allCompleted {
				return results
			}
		}
	}
}

// displayWaitResults prints the final outcome per document
func displayWaitResults(results []WaitResult) error {
	fmt.Println()
	printInfo("Wait Results:")
	fmt.Println()

	successCount := 0
	timeoutCount := 0

	for _, result := range results {
		status := "UNKNOWN"
		switch {
		case result.TimedOut && result.Status != "":
			status = fmt.Sprintf("TIMEOUT (last status: %s)", result.Status)
			timeoutCount++
		case result.TimedOut:
			status = "TIMEOUT (no state recorded)"
			timeoutCount++
		case result.Success:
			status = "SUCCESS"
			successCount++
		default:
			status = fmt.Sprintf("INCOMPLETE (status: %s)", result.Status)
		}

		fmt.Printf("  %-20s %-35s %v\n", result.Document, status, result.Duration.Round(time.Second))
	}

	fmt.Println()
	printInfo(fmt.Sprintf("Summary: %d succeeded, %d timed out", successCount, timeoutCount))

	if successCount != len(results) {
		return fmt.Errorf("not all documents reached the desired status")
	}

	return nil
}

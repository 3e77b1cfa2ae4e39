package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ghostwriter/ghostwriter/internal/state"
	"github.com/ghostwriter/ghostwriter/pkg/engine"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/validation"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show render status of all documents",
		Long:  `Display the current render status of all documents, including last render time and results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured documents",
		Long:  `List all documents defined in the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
}

func newCleanCmd() *cobra.Command {
	var outputs bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean state, logs and the module cache",
		Long: `Remove the .ghostwriter directory holding render state, logs and the
default module cache. With --outputs, configured document output directories
are removed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(outputs)
		},
	}

	cmd.Flags().BoolVar(&outputs, "outputs", false, "also remove configured document output directories")

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file is valid and all documents are properly configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Ghostwriter",
		Long:  `Print the version number of Ghostwriter`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("👻 Ghostwriter v%s\n", version)
		},
	}
}

// Implementation functions

func runStatus() error {
	log := newLogger()
	cfg, err := loadConfig(getConfigPath(), log)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sm := state.NewStateManager(projectRoot, log)

	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tSTATUS\tLAST RENDER\tRENDERS\tFAILURES\tOUTPUTS")
	fmt.Fprintln(w, "--------\t------\t-----------\t-------\t--------\t-------")

	for _, doc := range cfg.Documents {
		status := "idle"
		lastRender := "-"
		renders := 0
		failures := 0
		outputs := 0

		if st, ok := states[doc.Name]; ok {
			status = string(st.Status)
			if !st.LastRenderTime.IsZero() {
				lastRender = st.LastRenderTime.Format("15:04:05")
			}
			renders = st.RenderCount
			failures = st.FailureCount
			outputs = len(st.LastOutputs)
		}

		statusColor := color.WhiteString(status)
		switch types.RenderStatus(status) {
		case types.RenderStatusSucceeded:
			statusColor = color.GreenString(status)
		case types.RenderStatusFailed:
			statusColor = color.RedString(status)
		case types.RenderStatusRendering:
			statusColor = color.YellowString(status)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			doc.Name,
			statusColor,
			lastRender,
			renders,
			failures,
			outputs,
		)
	}

	w.Flush()
	return nil
}

func runList() error {
	cfg, err := loadConfig(getConfigPath(), newLogger())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTEMPLATES\tPOSTPROCESS\tOUTPUT DIR\tENABLED")
	fmt.Fprintln(w, "----\t---------\t-----------\t----------\t-------")

	for _, doc := range cfg.Documents {
		enabled := "✓"
		if !doc.IsEnabled() {
			enabled = "✗"
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			doc.Name,
			len(doc.Templates),
			doc.GetPostprocess(),
			doc.OutputDir,
			enabled,
		)
	}

	w.Flush()
	return nil
}

func runClean(outputs bool) error {
	stateDir := filepath.Join(projectRoot, ".ghostwriter")
	if err := os.RemoveAll(stateDir); err != nil {
		return fmt.Errorf("failed to remove state directory: %w", err)
	}

	if outputs {
		cfg, err := loadConfig(getConfigPath(), newLogger())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		for _, doc := range cfg.Documents {
			if doc.OutputDir == "" {
				continue
			}
			dir := resolvePath(doc.OutputDir)
			if err := os.RemoveAll(dir); err != nil {
				printWarning(fmt.Sprintf("Failed to remove %s: %v", dir, err))
				continue
			}
			printInfo(fmt.Sprintf("Removed outputs of %s (%s)", doc.Name, dir))
		}
	}

	printSuccess("Cleaned state, logs and module cache")
	return nil
}

func runValidate() error {
	log := newLogger()
	configPath := getConfigPath()

	cfg, err := loadConfig(configPath, log)
	if err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	validator := validation.NewDocumentValidator(projectRoot, engine.NewGoTemplateEngine(log))
	result := validator.ValidateConfiguration(cfg)

	errorCount := 0
	warningCount := 0
	for _, e := range result.Errors {
		switch e.Level {
		case validation.ValidationLevelError:
			errorCount++
		case validation.ValidationLevelWarning:
			warningCount++
		}
	}

	if errorCount > 0 {
		printError("Configuration has errors:")
		for _, e := range result.Errors {
			if e.Level == validation.ValidationLevelError {
				fmt.Printf("  ✗ %s.%s: %s\n", e.Document, e.Field, e.Message)
			}
		}
	}

	if warningCount > 0 {
		printWarning("Configuration warnings:")
		for _, e := range result.Errors {
			if e.Level == validation.ValidationLevelWarning {
				fmt.Printf("  ⚠ %s.%s: %s\n", e.Document, e.Field, e.Message)
			}
		}
	}

	if errorCount == 0 {
		printSuccess(fmt.Sprintf("Configuration is valid (%d documents)", len(cfg.Documents)))
		return nil
	}

	return fmt.Errorf("configuration has %d error(s)", errorCount)
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Ghostwriter configuration",
		Long: `Initialize a new Ghostwriter configuration file in the project root.
This command scans the project for templates and design artifacts and creates
a suitable starting configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func runInit(force bool) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	inputs := detectDocumentInputs(projectRoot)
	if len(inputs.templates) > 0 {
		printInfo(fmt.Sprintf("Detected %d template(s)", len(inputs.templates)))
	} else {
		printInfo("No templates found, creating a placeholder document")
	}
	if inputs.interfaceView != "" {
		printInfo(fmt.Sprintf("Detected Interface View: %s", inputs.interfaceView))
	}
	if inputs.deploymentView != "" {
		printInfo(fmt.Sprintf("Detected Deployment View: %s", inputs.deploymentView))
	}
	if len(inputs.systemObjects) > 0 {
		printInfo(fmt.Sprintf("Detected %d system object table(s)", len(inputs.systemObjects)))
	}

	cfg := createDefaultConfig(inputs)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	printInfo("Edit the configuration to customize your documents and templates")

	return nil
}

// documentInputs holds the template and artifact files found in a project
type documentInputs struct {
	templates      []string
	interfaceView  string
	deploymentView string
	systemObjects  []string
}

// detectDocumentInputs scans the project for template and artifact files,
// skipping the usual build and VCS directories
func detectDocumentInputs(root string) documentInputs {
	exclusions, err := utils.NewExclusionMatcher(utils.GetDefaultExclusions())
	if err != nil {
		return documentInputs{}
	}

	var inputs documentInputs

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && exclusions.IsExcluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if exclusions.IsExcluded(rel) {
			return nil
		}

		base := strings.ToLower(info.Name())
		switch {
		case strings.HasSuffix(base, ".tmpl") || strings.HasSuffix(base, ".gotmpl") || strings.HasSuffix(base, ".tpl"):
			inputs.templates = append(inputs.templates, rel)
		case base == "interfaceview.xml" || base == "iv.xml":
			if inputs.interfaceView == "" {
				inputs.interfaceView = rel
			}
		case base == "deploymentview.xml" || base == "dv.xml":
			if inputs.deploymentView == "" {
				inputs.deploymentView = rel
			}
		case strings.HasSuffix(base, ".csv"):
			inputs.systemObjects = append(inputs.systemObjects, rel)
		}
		return nil
	})

	sort.Strings(inputs.templates)
	sort.Strings(inputs.systemObjects)
	return inputs
}

func createDefaultConfig(inputs documentInputs) *types.GhostwriterConfig {
	templates := inputs.templates
	if len(templates) == 0 {
		templates = []string{"templates/manual.md.tmpl"}
	}

	enabled := true
	cfg := &types.GhostwriterConfig{
		Version: "1.0",
		Documents: []types.DocumentSpec{
			{
				Name:           "manual",
				Templates:      templates,
				InterfaceView:  inputs.interfaceView,
				DeploymentView: inputs.deploymentView,
				SystemObjects:  inputs.systemObjects,
				OutputDir:      "generated",
				Postprocess:    types.PostprocessNone,
			},
		},
		Watch: &types.WatchConfig{
			UseDefaultExclusions: true,
			ExcludeDirs: []string{
				"node_modules",
				".git",
				"build",
				"dist",
			},
			SettlingDelay: 500,
		},
		Scheduling: &types.SchedulingConfig{
			Parallelization: 2,
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
	}

	return cfg
}

// Package cli provides the command-line interface for Ghostwriter
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	logFile     string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ghostwriter",
	Short: "The invisible technical writer that haunts your artifacts",
	Long: `👻 Ghostwriter - Documentation generated from your design artifacts

Ghostwriter merges Interface View and Deployment View models, system object
tables and ad-hoc values into a template context, then renders your Markdown
templates against it. Point it at a project once, or let it watch your
artifacts and regenerate documents as they change.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("👻 Ghostwriter v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	// Global flags. The -v shorthand belongs to generate's --value, so
	// verbosity has none.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ghostwriter.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file in addition to the console")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newWaitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in project root
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("ghostwriter.config")
		viper.SetConfigType("json")
	}

	// Read in environment variables
	viper.SetEnvPrefix("GHOSTWRITER")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	ghost := "👻"
	fmt.Printf("%s %s %s\n", ghost, color.GreenString("[Ghostwriter]"), message)
}

func printError(message string) {
	ghost := "👻"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", ghost, color.RedString("[Ghostwriter]"), message)
}

func printInfo(message string) {
	ghost := "👻"
	fmt.Printf("%s %s %s\n", ghost, color.CyanString("[Ghostwriter]"), message)
}

func printWarning(message string) {
	ghost := "👻"
	fmt.Printf("%s %s %s\n", ghost, color.YellowString("[Ghostwriter]"), message)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectRoot, "ghostwriter.config.json")
}

// resolvePath anchors a config-relative path at the project root
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

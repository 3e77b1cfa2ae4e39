package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show generation logs",
		Long: `Display the logs written by watch sessions and file-logged runs.
The configured log file is shown when one is set, otherwise every log under
.ghostwriter/logs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

func runLogs(follow bool, lines int) error {
	var logFiles []string

	// A configured log file wins over the default location
	if cfg, err := loadConfig(getConfigPath(), newLogger()); err == nil {
		if cfg.Logging != nil && cfg.Logging.File != "" {
			path := resolvePath(cfg.Logging.File)
			if _, err := os.Stat(path); err == nil {
				logFiles = append(logFiles, path)
			}
		}
	}

	if len(logFiles) == 0 {
		logDir := filepath.Join(projectRoot, ".ghostwriter", "logs")
		entries, err := os.ReadDir(logDir)
		if err != nil {
			printWarning("No logs found. Run 'ghostwriter watch' to start logging.")
			return nil
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
				logFiles = append(logFiles, filepath.Join(logDir, entry.Name()))
			}
		}
		if len(logFiles) == 0 {
			printWarning("No log files found")
			return nil
		}
	}

	for _, logFile := range logFiles {
		if err := displayLogFile(logFile, lines, follow); err != nil {
			printError(fmt.Sprintf("Failed to display %s: %v", filepath.Base(logFile), err))
		}
	}

	return nil
}

func displayLogFile(logFile string, lines int, follow bool) error {
	if follow {
		// Use tail -f for following logs
		cmd := exec.Command("tail", "-f", "-n", fmt.Sprintf("%d", lines), logFile)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		// Handle interrupt gracefully
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		go func() {
			<-sigChan
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		}()

		return cmd.Run()
	}

	content, err := readLastNLines(logFile, lines)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(logFile), ".log")
	fmt.Printf("\n=== %s ===\n", name)
	fmt.Print(content)

	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}

	lastLines := allLines[start:]
	return strings.Join(lastLines, "\n") + "\n", nil
}

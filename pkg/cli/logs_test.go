package cli

import (
	"fmt"
	"strings"
	"testing"
)

func TestReadLastNLines(t *testing.T) {
	root := withProject(t)

	var content strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	path := writeProjectFile(t, root, "ghostwriter.log", content.String())

	got, err := readLastNLines(path, 3)
	if err != nil {
		t.Fatalf("readLastNLines failed: %v", err)
	}
	if got != "line 8\nline 9\nline 10\n" {
		t.Errorf("unexpected tail: %q", got)
	}
}

func TestReadLastNLines_FewerThanRequested(t *testing.T) {
	root := withProject(t)
	path := writeProjectFile(t, root, "ghostwriter.log", "only line\n")

	got, err := readLastNLines(path, 50)
	if err != nil {
		t.Fatalf("readLastNLines failed: %v", err)
	}
	if got != "only line\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestReadLastNLines_MissingFile(t *testing.T) {
	withProject(t)

	if _, err := readLastNLines("/nonexistent/ghostwriter.log", 10); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunLogs_NoLogs(t *testing.T) {
	withProject(t)

	// Without logs the command informs the user instead of failing
	if err := runLogs(false, 10); err != nil {
		t.Fatalf("logs without log files should not error: %v", err)
	}
}

func TestRunLogs_ShowsSessionLog(t *testing.T) {
	root := withProject(t)
	writeProjectFile(t, root, ".ghostwriter/logs/ghostwriter.log", "rendered manual.md\n")

	if err := runLogs(false, 10); err != nil {
		t.Fatalf("logs failed: %v", err)
	}
}

func TestDisplayLogFile(t *testing.T) {
	root := withProject(t)
	path := writeProjectFile(t, root, ".ghostwriter/logs/ghostwriter.log", "a\nb\nc\n")

	if err := displayLogFile(path, 2, false); err != nil {
		t.Fatalf("displayLogFile failed: %v", err)
	}
}

package artifacts_test

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ghostwriter/ghostwriter/pkg/artifacts"
)

func TestReadSystemObjects(t *testing.T) {
	csv := "name;type;description\n" +
		"thr_main;thread;Main control thread\n" +
		"dev_eth0;device;Ethernet interface\n"
	path := writeArtifact(t, "objects.csv", csv)

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}

	if table.Name != "objects" {
		t.Errorf("expected table name objects, got %s", table.Name)
	}
	want := []string{"name", "type", "description"}
	if !reflect.DeepEqual(table.PropertyNames, want) {
		t.Errorf("expected properties %v, got %v", want, table.PropertyNames)
	}
	if len(table.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(table.Instances))
	}
	if table.Instances[0]["name"] != "thr_main" || table.Instances[0]["type"] != "thread" {
		t.Errorf("unexpected first instance: %v", table.Instances[0])
	}
	if table.Instances[1]["description"] != "Ethernet interface" {
		t.Errorf("unexpected second instance: %v", table.Instances[1])
	}
}

func TestReadSystemObjects_PreservesRowOrder(t *testing.T) {
	csv := "id\nz\na\nm\nb\n"
	path := writeArtifact(t, "order.csv", csv)

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}

	got := table.Column("id")
	want := []string{"z", "a", "m", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected source order %v, got %v", want, got)
	}
}

func TestReadSystemObjects_CustomDelimiter(t *testing.T) {
	csv := "name,wcet\nthr_a,10\nthr_b,20\n"
	path := writeArtifact(t, "threads.csv", csv)

	table, err := artifacts.ReadSystemObjects(path, ',')
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}

	if len(table.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(table.Instances))
	}
	if table.Instances[1]["wcet"] != "20" {
		t.Errorf("unexpected instance: %v", table.Instances[1])
	}
}

func TestReadSystemObjects_QuotedMultilineCell(t *testing.T) {
	csv := "name;notes\n" +
		"thr_main;\"first line\nsecond line\"\n" +
		"thr_aux;plain\n"
	path := writeArtifact(t, "notes.csv", csv)

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}

	if len(table.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(table.Instances))
	}
	if table.Instances[0]["notes"] != "first line\nsecond line" {
		t.Errorf("multiline cell not preserved: %q", table.Instances[0]["notes"])
	}
}

func TestReadSystemObjects_RaggedRow(t *testing.T) {
	csv := "name;type\nthr_main;thread;extra\n"
	path := writeArtifact(t, "ragged.csv", csv)

	_, err := artifacts.ReadSystemObjects(path, 0)
	if !errors.Is(err, artifacts.ErrArtifactMalformed) {
		t.Errorf("expected ErrArtifactMalformed, got %v", err)
	}
}

func TestReadSystemObjects_ShortRow(t *testing.T) {
	csv := "name;type;description\nthr_main;thread\n"
	path := writeArtifact(t, "short.csv", csv)

	_, err := artifacts.ReadSystemObjects(path, 0)
	if !errors.Is(err, artifacts.ErrArtifactMalformed) {
		t.Errorf("expected ErrArtifactMalformed, got %v", err)
	}
}

func TestReadSystemObjects_Missing(t *testing.T) {
	_, err := artifacts.ReadSystemObjects(filepath.Join(t.TempDir(), "nope.csv"), 0)
	if !errors.Is(err, artifacts.ErrArtifactUnreadable) {
		t.Errorf("expected ErrArtifactUnreadable, got %v", err)
	}
}

func TestReadSystemObjects_Empty(t *testing.T) {
	path := writeArtifact(t, "empty.csv", "")

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}
	if len(table.PropertyNames) != 0 || len(table.Instances) != 0 {
		t.Errorf("expected empty table, got %+v", table)
	}
}

func TestReadSystemObjects_HeaderOnly(t *testing.T) {
	path := writeArtifact(t, "header.csv", "name;type\n")

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}
	if len(table.PropertyNames) != 2 {
		t.Errorf("expected 2 properties, got %v", table.PropertyNames)
	}
	if len(table.Instances) != 0 {
		t.Errorf("expected no instances, got %v", table.Instances)
	}
}

func TestSystemObjectTable_NameFromPath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{file: "threads.csv", want: "threads"},
		{file: "so_devices.csv", want: "so_devices"},
		{file: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := writeArtifact(t, tt.file, "name\nx\n")
			table, err := artifacts.ReadSystemObjects(path, 0)
			if err != nil {
				t.Fatalf("ReadSystemObjects failed: %v", err)
			}
			if table.Name != tt.want {
				t.Errorf("expected name %s, got %s", tt.want, table.Name)
			}
		})
	}
}

func TestSystemObjectTable_HasProperty(t *testing.T) {
	path := writeArtifact(t, "props.csv", "name;type\nx;y\n")

	table, err := artifacts.ReadSystemObjects(path, 0)
	if err != nil {
		t.Fatalf("ReadSystemObjects failed: %v", err)
	}
	if !table.HasProperty("type") {
		t.Error("expected HasProperty(type) to be true")
	}
	if table.HasProperty("missing") {
		t.Error("expected HasProperty(missing) to be false")
	}
}

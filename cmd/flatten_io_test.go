package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileFlattenIO_WriteFileCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "flat", "OrderViewRS")
	content := []byte("<xs:schema/>\n")

	fio := fileFlattenIO{}
	if err := fio.WriteFile(out, "entry.xsd", content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(out, "entry.xsd"))
	if err != nil {
		t.Fatalf("unexpected error reading written file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("written content = %q, want %q", got, content)
	}
}

func TestFileFlattenIO_WriteFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	fio := fileFlattenIO{}
	if err := fio.WriteFile(dir, "entry.xsd", []byte("old\n")); err != nil {
		t.Fatal(err)
	}
	if err := fio.WriteFile(dir, "entry.xsd", []byte("new\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "entry.xsd"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new\n" {
		t.Errorf("content = %q, want replacement to win", got)
	}
}

func TestFileFlattenIO_WriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fio := fileFlattenIO{}
	if err := fio.WriteFile(dir, "entry.xsd", []byte("<doc/>\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileFlattenIO_ReadOutput(t *testing.T) {
	dir := t.TempDir()
	content := []byte("<doc/>\n")
	if err := os.WriteFile(filepath.Join(dir, "entry.xsd"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	fio := fileFlattenIO{}
	got, ok, err := fio.ReadOutput(dir, "entry.xsd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !bytes.Equal(got, content) {
		t.Errorf("ReadOutput = %q, %v; want existing content", got, ok)
	}

	_, ok, err = fio.ReadOutput(dir, "missing.xsd")
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if ok {
		t.Error("expected exists=false for a missing file")
	}
}

func TestFileFlattenIO_FileExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "present.xsd"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	fio := fileFlattenIO{}
	exists, err := fio.FileExists(dir, "present.xsd")
	if err != nil || !exists {
		t.Errorf("FileExists(present) = %v, %v; want true", exists, err)
	}
	exists, err = fio.FileExists(dir, "absent.xsd")
	if err != nil || exists {
		t.Errorf("FileExists(absent) = %v, %v; want false", exists, err)
	}
}

func TestFileFlattenIO_NewSessionFlattensFromDisk(t *testing.T) {
	dir := t.TempDir()
	entry := `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="http://www.iata.org/demo"
           xmlns="http://www.iata.org/demo"
           elementFormDefault="qualified" version="1.0">
  <xs:element name="Ping" type="xs:string"/>
</xs:schema>
`
	if err := os.WriteFile(filepath.Join(dir, "entry.xsd"), []byte(entry), 0o644); err != nil {
		t.Fatal(err)
	}

	fio := fileFlattenIO{}
	session := fio.NewSession(dir, nil)
	res, err := session.Flatten(context.Background(), "entry.xsd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].Name != "entry.xsd" {
		t.Fatalf("files = %v, want the single flattened entry", res.Files)
	}
	if !strings.Contains(string(res.Files[0].Data), `<xs:element name="Ping" type="xs:string"/>`) {
		t.Errorf("flattened output missing declaration:\n%s", res.Files[0].Data)
	}
}

func TestFileBatchIO_ListVersionDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"21.3.1", "17.2"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "readme.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	bio := fileBatchIO{}
	got, err := bio.ListVersionDirs(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"17.2", "21.3.1"}
	if len(got) != len(want) {
		t.Fatalf("dirs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q (sorted, directories only)", i, got[i], want[i])
		}
	}
}

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ndckit/xsdflat/internal/manifest"
)

// mockManifestIO is a test double for ManifestIO.
type mockManifestIO struct {
	mf  *manifest.Manifest
	err error
}

func (m *mockManifestIO) ReadManifest(_ string) (*manifest.Manifest, error) {
	return m.mf, m.err
}

func TestNewManifestCmd_ListsVersionsInOrder(t *testing.T) {
	io := &mockManifestIO{mf: batchManifestFixture()}
	c := NewManifestCmd(io)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	for _, want := range []string{"17.2:", "21.3:", "  IATA_OrderViewRS.xsd", "  IATA_OrderCreateRQ.xsd"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
	if strings.Index(text, "17.2:") > strings.Index(text, "21.3:") {
		t.Errorf("expected versions listed in sorted order, got:\n%s", text)
	}
}

func TestNewManifestCmd_JSONOutput(t *testing.T) {
	io := &mockManifestIO{mf: batchManifestFixture()}
	c := NewManifestCmd(io)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--json"})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, out.String())
	}
	if result["version"] != "1" {
		t.Errorf("version = %v, want \"1\"", result["version"])
	}
	versions, ok := result["versions"].([]interface{})
	if !ok || len(versions) != 2 {
		t.Fatalf("versions = %v, want both manifest versions", result["versions"])
	}
	first := versions[0].(map[string]interface{})
	if first["label"] != "17.2" {
		t.Errorf("versions[0].label = %v, want \"17.2\"", first["label"])
	}
	messages, ok := first["messages"].([]interface{})
	if !ok || len(messages) != 1 || messages[0] != "IATA_OrderViewRS.xsd" {
		t.Errorf("messages = %v, want the normalized filename", first["messages"])
	}
}

func TestNewManifestCmd_VersionFilter(t *testing.T) {
	io := &mockManifestIO{mf: batchManifestFixture()}
	c := NewManifestCmd(io)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--version", "21.3"})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "17.2") {
		t.Errorf("expected only 21.3 shown, got:\n%s", out.String())
	}
}

func TestNewManifestCmd_UnknownVersionRejected(t *testing.T) {
	io := &mockManifestIO{mf: batchManifestFixture()}
	c := NewManifestCmd(io)
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{"--version", "99.9"})

	err := c.Execute()
	if err == nil {
		t.Fatal("expected error for unknown --version")
	}
	if !strings.Contains(err.Error(), "unknown version") {
		t.Errorf("error = %v, want unknown version mention", err)
	}
}

func TestNewManifestCmd_ReadFailure(t *testing.T) {
	io := &mockManifestIO{err: errors.New("open message_manifest.yaml: no such file")}
	c := NewManifestCmd(io)
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{})

	err := c.Execute()
	if err == nil {
		t.Fatal("expected error when the manifest cannot be read")
	}
	if !strings.Contains(err.Error(), "reading manifest") {
		t.Errorf("error = %v, want reading manifest wrap", err)
	}
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// mockValidateRunner is a test double for ValidateRunner. Per-file failures
// are scripted; everything else passes.
type mockValidateRunner struct {
	lookPathErr    error
	wellFormedErrs map[string]string
	schemaErrs     map[string]string
	calls          [][]string
}

func (m *mockValidateRunner) LookPath(name string) (string, error) {
	if m.lookPathErr != nil {
		return "", m.lookPathErr
	}
	return "/usr/bin/" + name, nil
}

func (m *mockValidateRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	file := args[len(args)-1]
	schemaRun := false
	for _, a := range args {
		if a == "--schema" {
			schemaRun = true
		}
	}
	if !schemaRun {
		if out, ok := m.wellFormedErrs[file]; ok {
			return []byte(out), errors.New("exit status 1")
		}
		return nil, nil
	}
	if out, ok := m.schemaErrs[file]; ok {
		return []byte(out), errors.New("exit status 3")
	}
	return []byte(file + " validates\n"), nil
}

func TestNewValidateCmd_RequiresSchemaFlag(t *testing.T) {
	c := NewValidateCmd(&mockValidateRunner{})
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{"order.xml"})

	if err := c.Execute(); err == nil {
		t.Error("expected error when --schema is not given")
	}
}

func TestNewValidateCmd_AllDocumentsPass(t *testing.T) {
	runner := &mockValidateRunner{}
	c := NewValidateCmd(runner)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--schema", "flat/IATA_OrderViewRS.xsd", "a.xml", "b.xml"})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"PASS a.xml", "PASS b.xml", "2 passed, 0 failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, out.String())
		}
	}
	schemaSeen := false
	for _, call := range runner.calls {
		for _, arg := range call {
			if arg == "flat/IATA_OrderViewRS.xsd" {
				schemaSeen = true
			}
		}
	}
	if !schemaSeen {
		t.Errorf("expected xmllint invoked with the --schema path, calls: %v", runner.calls)
	}
}

func TestNewValidateCmd_SchemaFailureShowsFirstError(t *testing.T) {
	runner := &mockValidateRunner{schemaErrs: map[string]string{
		"bad.xml": "bad.xml:12: element Total: Schemas validity error : missing child\nbad.xml fails to validate\n",
	}}
	c := NewValidateCmd(runner)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--schema", "order.xsd", "good.xml", "bad.xml"})

	if err := c.Execute(); err == nil {
		t.Error("expected non-zero exit when a document fails validation")
	}
	if !strings.Contains(out.String(), "FAIL bad.xml: bad.xml:12: element Total: Schemas validity error : missing child") {
		t.Errorf("expected first error line in FAIL row, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "1 passed, 1 failed") {
		t.Errorf("expected summary line, got:\n%s", out.String())
	}
}

func TestNewValidateCmd_NotWellFormedSkipsSchemaRun(t *testing.T) {
	runner := &mockValidateRunner{wellFormedErrs: map[string]string{
		"trunc.xml": "trunc.xml:5: parser error : Premature end of data\n",
	}}
	c := NewValidateCmd(runner)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--schema", "order.xsd", "trunc.xml"})

	if err := c.Execute(); err == nil {
		t.Error("expected non-zero exit for a malformed document")
	}
	if !strings.Contains(out.String(), "FAIL trunc.xml: not well-formed: trunc.xml:5: parser error : Premature end of data") {
		t.Errorf("expected not-well-formed FAIL row, got:\n%s", out.String())
	}
	if len(runner.calls) != 1 {
		t.Errorf("expected schema validation skipped after parse failure, calls: %v", runner.calls)
	}
}

func TestNewValidateCmd_MissingXmllint(t *testing.T) {
	runner := &mockValidateRunner{lookPathErr: errors.New("executable file not found in $PATH")}
	c := NewValidateCmd(runner)
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{"--schema", "order.xsd", "a.xml"})

	err := c.Execute()
	if err == nil {
		t.Fatal("expected error when xmllint is unavailable")
	}
	if !strings.Contains(err.Error(), "xmllint not found") {
		t.Errorf("error = %v, want xmllint mention", err)
	}
}

func TestFirstErrorLine(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"first line", "a.xml:3: bad element\nmore context\n", "a.xml:3: bad element"},
		{"skips blanks", "\n\na.xml:3: bad element\n", "a.xml:3: bad element"},
		{"skips validates marker", "a.xml validates\n", "validation failed"},
		{"empty output", "", "validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstErrorLine([]byte(tt.out)); got != tt.want {
				t.Errorf("firstErrorLine(%q) = %q, want %q", tt.out, got, tt.want)
			}
		})
	}
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/ndckit/xsdflat/internal/flatten"
	"github.com/ndckit/xsdflat/internal/schema"
)

// FlattenSession is one corpus-backed flatten run. Several entries
// flattened through the same session share loaded documents.
type FlattenSession interface {
	// Flatten renders the output set for one entry document.
	Flatten(ctx context.Context, entry string) (*flatten.Result, error)
	// Diagnostics returns the corpus loading diagnostics accumulated so far.
	Diagnostics() []schema.Diagnostic
}

// FlattenIO handles I/O for the flatten command.
type FlattenIO interface {
	// NewSession opens a flatten session over the schema corpus rooted at dir.
	NewSession(dir string, families []string) FlattenSession
	// ReadOutput reads dir/name. The bool reports whether the file exists.
	ReadOutput(dir, name string) ([]byte, bool, error)
	// WriteFile writes data to dir/name, creating directories as needed.
	WriteFile(dir, name string, data []byte) error
	// FileExists reports whether dir/name exists.
	FileExists(dir, name string) (bool, error)
}

// flattenOutput is the JSON output schema for the flatten command.
type flattenOutput struct {
	Version     string              `json:"version"`
	RunID       string              `json:"runId"`
	Entry       string              `json:"entry"`
	Outputs     []string            `json:"outputs"`
	Copied      []string            `json:"copied"`
	Drifted     []string            `json:"drifted,omitempty"`
	Diagnostics []schema.Diagnostic `json:"diagnostics"`
}

// newRunID returns a time-ordered identifier for one command invocation.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// NewFlattenCmd creates the flatten subcommand.
func NewFlattenCmd(io FlattenIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "flatten <entry-schema>",
		Short:        "Flatten one entry schema into a self-contained document set",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]
			inputDir, _ := cmd.Flags().GetString("input-dir")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			families, _ := cmd.Flags().GetStringSlice("family")
			jsonMode, _ := cmd.Flags().GetBool("json")
			checkMode, _ := cmd.Flags().GetBool("check")

			session := io.NewSession(inputDir, families)
			res, err := session.Flatten(cmd.Context(), entry)
			if err != nil {
				return emitFLTE001AndError(cmd, jsonMode, entry, err)
			}
			diags := append(session.Diagnostics(), res.Diagnostics...)
			if diags == nil {
				diags = []schema.Diagnostic{}
			}

			if checkMode {
				return runFlattenCheck(cmd, io, outputDir, res, diags, jsonMode)
			}

			out := flattenOutput{
				Version:     "1",
				RunID:       newRunID(),
				Entry:       res.Entry,
				Outputs:     []string{},
				Copied:      []string{},
				Diagnostics: diags,
			}
			colors := newPalette(cmd.OutOrStdout())
			for _, f := range res.Files {
				if err := io.WriteFile(outputDir, f.Name, f.Data); err != nil {
					return fmt.Errorf("writing %s: %w", f.Name, err)
				}
				out.Outputs = append(out.Outputs, f.Name)
				if !jsonMode {
					fmt.Fprintln(cmd.OutOrStdout(), colors.ok("Generated %s", filepath.Join(outputDir, f.Name)))
				}
			}
			for _, ff := range res.Foreign {
				exists, err := io.FileExists(outputDir, ff.Name)
				if err != nil {
					return fmt.Errorf("checking %s: %w", ff.Name, err)
				}
				if exists {
					continue // an existing copy is never overwritten
				}
				if err := io.WriteFile(outputDir, ff.Name, ff.Data); err != nil {
					return fmt.Errorf("copying %s: %w", ff.Name, err)
				}
				out.Copied = append(out.Copied, ff.Name)
				if !jsonMode {
					fmt.Fprintln(cmd.OutOrStdout(), colors.info("Copied external schema: %s", ff.Name))
				}
			}

			if jsonMode {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				printDiagnostics(cmd, diags)
			}
			if hasErrorDiagnostic(diags) {
				return fmt.Errorf("schema corpus has errors")
			}
			return nil
		},
	}

	cmd.Flags().String("input-dir", ".", "directory containing the schema corpus")
	cmd.Flags().String("output-dir", "flattened", "directory to write generated documents to")
	cmd.Flags().StringSlice("family", nil, "namespace-URI prefix owned by the project (repeatable)")
	cmd.Flags().Bool("json", false, "output a machine-readable run report")
	cmd.Flags().Bool("check", false, "diff against existing output instead of writing")

	return cmd
}

// runFlattenCheck compares the would-be output set against the files already
// in outputDir and reports drift without writing anything. A foreign schema
// missing from outputDir counts as drift (it would be copied); one that
// differs does not (existing copies are never overwritten).
func runFlattenCheck(cmd *cobra.Command, io FlattenIO, outputDir string, res *flatten.Result, diags []schema.Diagnostic, jsonMode bool) error {
	colors := newPalette(cmd.OutOrStdout())
	var drifted []string
	for _, f := range res.Files {
		existing, ok, err := io.ReadOutput(outputDir, f.Name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if !ok {
			drifted = append(drifted, f.Name)
			if !jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), colors.bad("missing %s", filepath.Join(outputDir, f.Name)))
			}
			continue
		}
		if bytes.Equal(existing, f.Data) {
			continue
		}
		drifted = append(drifted, f.Name)
		if !jsonMode {
			fmt.Fprintln(cmd.OutOrStdout(), colors.bad("drift in %s", filepath.Join(outputDir, f.Name)))
			printDiff(cmd, colors, existing, f.Data)
		}
	}
	for _, ff := range res.Foreign {
		exists, err := io.FileExists(outputDir, ff.Name)
		if err != nil {
			return fmt.Errorf("checking %s: %w", ff.Name, err)
		}
		if !exists {
			drifted = append(drifted, ff.Name)
			if !jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), colors.bad("missing external schema %s", ff.Name))
			}
		}
	}

	if jsonMode {
		out := flattenOutput{
			Version:     "1",
			RunID:       newRunID(),
			Entry:       res.Entry,
			Outputs:     []string{},
			Copied:      []string{},
			Drifted:     drifted,
			Diagnostics: diags,
		}
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
	} else {
		printDiagnostics(cmd, diags)
	}
	if len(drifted) > 0 {
		return fmt.Errorf("%d file(s) out of date", len(drifted))
	}
	if hasErrorDiagnostic(diags) {
		return fmt.Errorf("schema corpus has errors")
	}
	return nil
}

// printDiff writes the changed spans between the existing file and the
// would-be output, inserts and deletes only.
func printDiff(cmd *cobra.Command, colors palette, existing, generated []byte) {
	diffCfg := diffpatch.New()
	diffs := diffCfg.DiffMain(string(existing), string(generated), true)
	for i := range diffs {
		diff := &diffs[i]
		text := strings.TrimRight(diff.Text, "\n")
		switch diff.Type {
		case diffpatch.DiffDelete:
			for _, line := range strings.Split(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout(), colors.bad("-%s", line))
			}
		case diffpatch.DiffInsert:
			for _, line := range strings.Split(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout(), colors.ok("+%s", line))
			}
		case diffpatch.DiffEqual:
		}
	}
}

// corpusSession implements FlattenSession over one schema corpus.
type corpusSession struct {
	corpus *schema.Corpus
}

func (s *corpusSession) Flatten(ctx context.Context, entry string) (*flatten.Result, error) {
	return flatten.Run(ctx, s.corpus, entry)
}

func (s *corpusSession) Diagnostics() []schema.Diagnostic {
	return s.corpus.Diagnostics()
}

// fileFlattenIO implements FlattenIO using OS file I/O.
// Impl methods wrap OS calls.
type fileFlattenIO struct{}

func newDefaultFlattenIO() *fileFlattenIO {
	return &fileFlattenIO{}
}

func (f *fileFlattenIO) NewSession(dir string, families []string) FlattenSession {
	return &corpusSession{corpus: schema.NewCorpus(dir, families...)}
}

func (f *fileFlattenIO) ReadOutput(dir, name string) ([]byte, bool, error) {
	return f.ReadOutputImpl(dir, name)
}

// ReadOutputImpl reads the file using os.ReadFile, mapping ErrNotExist to
// exists=false.
func (f *fileFlattenIO) ReadOutputImpl(dir, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (f *fileFlattenIO) WriteFile(dir, name string, data []byte) error {
	return writeFileAtomicImpl(filepath.Join(dir, name), data)
}

func (f *fileFlattenIO) FileExists(dir, name string) (bool, error) {
	return fileExistsImpl(filepath.Join(dir, name))
}

// writeFileAtomicImpl performs an atomic write via OS temp file rename,
// creating parent directories first.
func writeFileAtomicImpl(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".xsdflat-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func fileExistsImpl(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
